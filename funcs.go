package mathexpr

import (
	"math"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// maxArity is the largest number of arguments a function may take.
const maxArity = 3

// Function is a function that expressions may call. Functions are looked up
// by name and number of arguments.
type Function struct {
	// Name is the name used to call the function.
	Name string
	// Params gives the kind of each parameter. Undefined accepts any kind.
	// A function may have at most three parameters.
	Params []Kind
	// Returns is the kind of the result.
	Returns Kind
	// Impure marks functions whose results vary between calls with the same
	// arguments. Calls to impure functions are never folded into constants.
	Impure bool
	// Call evaluates the function. args has one value per parameter, each
	// converted to the parameter's kind. The result is converted to Returns.
	Call func(args []any) (any, error)
}

// Prototype describes the function as name(kind, ...).
func (f *Function) Prototype() string {
	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteByte('(')
	for i, k := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k.String())
	}
	b.WriteByte(')')
	return b.String()
}

func (f *Function) validate() error {
	switch {
	case !identifier.MatchString(f.Name):
		return &DefinitionError{Field: "Function.Name", Reason: "invalid function name " + strconv.Quote(f.Name)}
	case len(f.Params) > maxArity:
		return &DefinitionError{Field: "Function.Params", Reason: f.Name + " has " + strconv.Itoa(len(f.Params)) + " parameters"}
	case f.Call == nil:
		return &DefinitionError{Field: "Function.Call", Reason: f.Name + " has no implementation"}
	}
	return nil
}

// Library is a named group of functions.
type Library struct {
	Name      string
	Functions []Function
}

// validate reports every invalid function in the library.
func (lib Library) validate() error {
	var err error
	for i := range lib.Functions {
		err = multierr.Append(err, lib.Functions[i].validate())
	}
	return err
}

// catalog is the set of callable functions indexed by arity, then name.
type catalog struct {
	byArity [maxArity + 1]map[string]*Function
}

// buildCatalog collects the functions of libs. Later libraries override
// earlier ones. Invalid functions are skipped.
func buildCatalog(libs []Library, log logrus.FieldLogger) *catalog {
	c := new(catalog)
	for i := range c.byArity {
		c.byArity[i] = make(map[string]*Function)
	}
	for _, lib := range libs {
		for i := range lib.Functions {
			f := &lib.Functions[i]
			if err := f.validate(); err != nil {
				log.WithField("library", lib.Name).WithError(err).Warn("skipping function")
				continue
			}
			c.byArity[len(f.Params)][f.Name] = f
		}
	}
	return c
}

// lookup finds a function by name and number of arguments.
func (c *catalog) lookup(name string, n int) *Function {
	if n < 0 || n > maxArity {
		return nil
	}
	return c.byArity[n][name]
}

// prototypes lists every function's prototype in sorted order.
func (c *catalog) prototypes() []string {
	var r []string
	for _, m := range c.byArity {
		for _, f := range m {
			r = append(r, f.Prototype())
		}
	}
	sort.Strings(r)
	return r
}

// Niladic creates a pure numeric function of no arguments.
func Niladic(name string, f func() float64) Function {
	return Function{
		Name:    name,
		Returns: Numeric,
		Call:    func([]any) (any, error) { return f(), nil },
	}
}

// Monadic creates a pure numeric function of one argument.
func Monadic(name string, f func(x float64) float64) Function {
	return Function{
		Name:    name,
		Params:  []Kind{Numeric},
		Returns: Numeric,
		Call:    func(args []any) (any, error) { return f(toFloat(args[0])), nil },
	}
}

// Dyadic creates a pure numeric function of two arguments.
func Dyadic(name string, f func(x, y float64) float64) Function {
	return Function{
		Name:    name,
		Params:  []Kind{Numeric, Numeric},
		Returns: Numeric,
		Call:    func(args []any) (any, error) { return f(toFloat(args[0]), toFloat(args[1])), nil },
	}
}

// integral returns x as an int64 if it is an integer in range.
func integral(x float64) any {
	if i, ok := toInt(x); ok {
		return i
	}
	return x
}

// StandardLibrary returns the functions available to every service unless
// WithoutStandardFunctions is used.
func StandardLibrary() Library {
	return Library{Name: "standard", Functions: []Function{
		{Name: "random", Returns: Numeric, Impure: true, Call: func([]any) (any, error) {
			return rand.Float64(), nil
		}},
		{Name: "random", Params: []Kind{Numeric}, Returns: Numeric, Impure: true, Call: func(args []any) (any, error) {
			return randomBelow(0, args[0]), nil
		}},
		{Name: "random", Params: []Kind{Numeric, Numeric}, Returns: Numeric, Impure: true, Call: func(args []any) (any, error) {
			return randomBelow(toFloat(args[0]), args[1]), nil
		}},

		{Name: "abs", Params: []Kind{Numeric}, Returns: Numeric, Call: func(args []any) (any, error) {
			if i, ok := args[0].(int64); ok && i != math.MinInt64 {
				return max(i, -i), nil
			}
			return math.Abs(toFloat(args[0])), nil
		}},
		Monadic("acos", math.Acos),
		Monadic("asin", math.Asin),
		Monadic("atan", math.Atan),
		Monadic("cos", math.Cos),
		Monadic("cosh", math.Cosh),
		Monadic("sin", math.Sin),
		Monadic("sinh", math.Sinh),
		Monadic("tan", math.Tan),
		Monadic("tanh", math.Tanh),
		Monadic("sqrt", math.Sqrt),
		Monadic("exp", expf),
		Monadic("ln", lnf),
		Monadic("lg", func(x float64) float64 { return logf(x, 2) }),
		Monadic("log", func(x float64) float64 { return logf(x, 10) }),
		{Name: "ceiling", Params: []Kind{Numeric}, Returns: Numeric, Call: rounder(math.Ceil)},
		{Name: "floor", Params: []Kind{Numeric}, Returns: Numeric, Call: rounder(math.Floor)},
		{Name: "round", Params: []Kind{Numeric}, Returns: Numeric, Call: rounder(math.RoundToEven)},

		{Name: "strlen", Params: []Kind{String}, Returns: Numeric, Call: func(args []any) (any, error) {
			return int64(utf8.RuneCountInString(args[0].(string))), nil
		}},
		{Name: "trim", Params: []Kind{String}, Returns: String, Call: func(args []any) (any, error) {
			return strings.TrimSpace(args[0].(string)), nil
		}},
		{Name: "upper", Params: []Kind{String}, Returns: String, Call: func(args []any) (any, error) {
			return strings.ToUpper(args[0].(string)), nil
		}},
		{Name: "lower", Params: []Kind{String}, Returns: String, Call: func(args []any) (any, error) {
			return strings.ToLower(args[0].(string)), nil
		}},

		Dyadic("log", logf),
		Dyadic("pow", powf),
		{Name: "min", Params: []Kind{Numeric, Numeric}, Returns: Numeric, Call: func(args []any) (any, error) {
			c, ok := compare(args[0], args[1])
			switch {
			case !ok:
				return math.NaN(), nil
			case c <= 0:
				return args[0], nil
			}
			return args[1], nil
		}},
		{Name: "max", Params: []Kind{Numeric, Numeric}, Returns: Numeric, Call: func(args []any) (any, error) {
			c, ok := compare(args[0], args[1])
			switch {
			case !ok:
				return math.NaN(), nil
			case c >= 0:
				return args[0], nil
			}
			return args[1], nil
		}},
		{Name: "round", Params: []Kind{Numeric, Numeric}, Returns: Numeric, Call: func(args []any) (any, error) {
			d, ok := toInt(args[1])
			if !ok || d < 0 || d > 15 {
				return nil, &EvalError{Op: "round", Reason: "digits must be an integer from 0 to 15"}
			}
			if d == 0 {
				return rounder(math.RoundToEven)(args[:1])
			}
			p := math.Pow10(int(d))
			return math.RoundToEven(toFloat(args[0])*p) / p, nil
		}},
		{Name: "substring", Params: []Kind{String, Numeric}, Returns: String, Call: func(args []any) (any, error) {
			return substring(args[0].(string), args[1], nil)
		}},

		{Name: "substring", Params: []Kind{String, Numeric, Numeric}, Returns: String, Call: func(args []any) (any, error) {
			return substring(args[0].(string), args[1], args[2])
		}},
		{Name: "replace", Params: []Kind{String, String, String}, Returns: String, Call: func(args []any) (any, error) {
			return strings.ReplaceAll(args[0].(string), args[1].(string), args[2].(string)), nil
		}},
		{Name: "clamp", Params: []Kind{Numeric, Numeric, Numeric}, Returns: Numeric, Call: func(args []any) (any, error) {
			x, lo, hi := args[0], args[1], args[2]
			if c, ok := compare(lo, hi); !ok || c > 0 {
				return nil, &EvalError{Op: "clamp", Reason: "bounds are not ordered"}
			}
			if c, ok := compare(x, lo); !ok {
				return math.NaN(), nil
			} else if c < 0 {
				return lo, nil
			}
			if c, _ := compare(x, hi); c > 0 {
				return hi, nil
			}
			return x, nil
		}},
	}}
}

// rounder wraps an integer rounding function so that integer arguments are
// returned unchanged and integral results become int64.
func rounder(f func(float64) float64) func([]any) (any, error) {
	return func(args []any) (any, error) {
		if i, ok := args[0].(int64); ok {
			return i, nil
		}
		return integral(f(toFloat(args[0]))), nil
	}
}

// randomBelow returns a random number in [lo, hi). If both bounds are
// integers, so is the result.
func randomBelow(lo float64, hi any) any {
	h, hok := hi.(int64)
	l, lok := toInt(lo)
	if hok && lok && h > l {
		if d, ok := subi(h, l); ok {
			return l + rand.Int64N(d)
		}
	}
	return lo + rand.Float64()*(toFloat(hi)-lo)
}

// substring returns the runes of s from start, limited to length runes if
// length is not nil.
func substring(s string, start, length any) (any, error) {
	r := []rune(s)
	i, ok := toInt(start)
	if !ok || i < 0 || i > int64(len(r)) {
		return nil, &EvalError{Op: "substring", Reason: "start index out of range"}
	}
	end := int64(len(r))
	if length != nil {
		n, ok := toInt(length)
		if !ok || n < 0 || n > end-i {
			return nil, &EvalError{Op: "substring", Reason: "length out of range"}
		}
		end = i + n
	}
	return string(r[i:end]), nil
}
