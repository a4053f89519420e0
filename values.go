package mathexpr

import (
	"bytes"
	"cmp"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cast"
	"github.com/zephyrtronium/bigfloat"
)

// Kind is the type of a value as the parser and evaluator see it.
type Kind uint8

const (
	// Undefined is the kind of a parameter whose type is not yet known.
	Undefined Kind = iota
	// Numeric values are int64 or float64.
	Numeric
	// Boolean values are bool.
	Boolean
	// String values are string.
	String
	// ByteArray values are []byte, most significant byte first. Two byte
	// arrays are equal only when they have the same length and bytes.
	ByteArray
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Boolean:
		return "boolean"
	case String:
		return "string"
	case ByteArray:
		return "binary"
	default:
		return "undefined"
	}
}

// kindOf returns the kind of a normalized value.
func kindOf(v any) Kind {
	switch v.(type) {
	case int64, float64:
		return Numeric
	case bool:
		return Boolean
	case string:
		return String
	case []byte:
		return ByteArray
	default:
		return Undefined
	}
}

// normalize converts a caller-supplied value to one of the value kinds. If
// want is not Undefined, the value is coerced toward it.
func normalize(v any, want Kind) (any, error) {
	switch x := v.(type) {
	case int64, float64, bool, string, []byte:
		// already normalized
	case float32:
		v = float64(x)
	case int, int8, int16, int32, uint, uint8, uint16, uint32:
		i, err := cast.ToInt64E(x)
		if err != nil {
			return nil, err
		}
		v = i
	case uint64:
		if x > math.MaxInt64 {
			v = float64(x)
		} else {
			v = int64(x)
		}
	case *big.Int:
		if x.IsInt64() {
			v = x.Int64()
		} else {
			f, _ := new(big.Float).SetInt(x).Float64()
			v = f
		}
	case *big.Float:
		f, _ := x.Float64()
		v = f
	case nil:
		return nil, &EvalError{Op: "bind", Reason: "nil argument"}
	default:
		if want == Undefined {
			want = String
		}
	}
	k := kindOf(v)
	if want == Undefined || want == k {
		return v, nil
	}
	switch want {
	case Numeric:
		if s, ok := v.(string); ok {
			if n, ok := parseNumber(strings.TrimSpace(s)); ok {
				return n, nil
			}
		}
		if b, ok := v.(bool); ok {
			if b {
				return int64(1), nil
			}
			return int64(0), nil
		}
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, err
		}
		return f, nil
	case Boolean:
		return cast.ToBoolE(v)
	case String:
		if k != Undefined {
			return formatValue(v), nil
		}
		return cast.ToStringE(v)
	case ByteArray:
		if s, ok := v.(string); ok {
			if b, ok := parseBinary(strings.TrimSpace(s)); ok {
				return b, nil
			}
		}
		if i, ok := v.(int64); ok && i >= 0 {
			return big.NewInt(i).Bytes(), nil
		}
	}
	return nil, &EvalError{Op: "bind", Reason: "cannot use " + k.String() + " value as " + want.String()}
}

var (
	numberLiteral = regexp.MustCompile(`^(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][-+]?[0-9]+)?$`)
	intLiteral    = regexp.MustCompile(`^[0-9]+$`)
	binLiteral    = regexp.MustCompile(`^0b[01]+$`)
	identifier    = regexp.MustCompile(`^[\p{L}_][\p{L}\p{N}_.]*$`)
)

// parseNumber parses an unsigned decimal literal.
func parseNumber(s string) (any, bool) {
	if !numberLiteral.MatchString(s) {
		return nil, false
	}
	if intLiteral.MatchString(s) {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !isRangeErr(err) {
		return nil, false
	}
	return f, true
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

// parseBinary parses a 0b literal into big-endian bytes. The result has
// enough bytes to hold every written digit, leading zeros included.
func parseBinary(s string) ([]byte, bool) {
	if !binLiteral.MatchString(s) {
		return nil, false
	}
	bits := s[2:]
	var n big.Int
	n.SetString(bits, 2)
	return n.FillBytes(make([]byte, (len(bits)+7)/8)), true
}

// parseLiteral parses any non-string literal.
func parseLiteral(s string) (any, bool) {
	if v, ok := parseNumber(s); ok {
		return v, true
	}
	if b, ok := parseBinary(s); ok {
		return b, true
	}
	switch {
	case strings.EqualFold(s, "true"):
		return true, true
	case strings.EqualFold(s, "false"):
		return false, true
	}
	return nil, false
}

// formatValue renders a value the way string concatenation sees it.
func formatValue(v any) string {
	switch x := v.(type) {
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return x
	case []byte:
		var b strings.Builder
		b.WriteString("0b")
		for _, c := range x {
			s := strconv.FormatUint(uint64(c), 2)
			b.WriteString(strings.Repeat("0", 8-len(s)))
			b.WriteString(s)
		}
		return b.String()
	default:
		return cast.ToString(v)
	}
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	}
	panic("mathexpr: toFloat on non-numeric value")
}

// toInt converts a numeric value to an integer if it is one exactly.
func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case float64:
		if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
			return int64(x), true
		}
	}
	return 0, false
}

// bigPrec is the precision used for bigfloat computations before rounding
// to float64.
const bigPrec = 64

// bigUnary computes f(x) with bigfloat, for finite positive x.
func bigUnary(f func(z, x *big.Float) *big.Float, x float64) float64 {
	in := new(big.Float).SetPrec(bigPrec).SetFloat64(x)
	out := new(big.Float).SetPrec(bigPrec)
	r, _ := f(out, in).Float64()
	return r
}

func expf(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) || math.Abs(x) > 700 {
		return math.Exp(x)
	}
	return bigUnary(bigfloat.Exp, x)
}

func lnf(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) || x <= 0 {
		return math.Log(x)
	}
	return bigUnary(bigfloat.Log, x)
}

func logf(x, base float64) float64 {
	if math.IsNaN(x) || math.IsNaN(base) || math.IsInf(x, 0) || math.IsInf(base, 0) || x <= 0 || base <= 0 || base == 1 {
		return math.Log(x) / math.Log(base)
	}
	n := new(big.Float).SetPrec(bigPrec).SetFloat64(x)
	d := new(big.Float).SetPrec(bigPrec).SetFloat64(base)
	bigfloat.Log(n, n)
	bigfloat.Log(d, d)
	r, _ := n.Quo(n, d).Float64()
	return r
}

func powf(x, y float64) float64 {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) || x <= 0 || math.Abs(y) > 1e4 {
		return math.Pow(x, y)
	}
	l := new(big.Float).SetPrec(bigPrec).SetFloat64(x)
	r := new(big.Float).SetPrec(bigPrec).SetFloat64(y)
	z, _ := bigfloat.Pow(l, l, r).Float64()
	return z
}

// powi raises an integer to a non-negative integer power, reporting
// overflow.
func powi(b, e int64) (int64, bool) {
	r := int64(1)
	for e > 0 {
		if e&1 != 0 {
			var ok bool
			if r, ok = muli(r, b); !ok {
				return 0, false
			}
		}
		e >>= 1
		if e > 0 {
			var ok bool
			if b, ok = muli(b, b); !ok {
				return 0, false
			}
		}
	}
	return r, true
}

func addi(a, b int64) (int64, bool) {
	r := a + b
	// Overflow iff both operands have the same sign and the result differs.
	return r, (a >= 0) != (b >= 0) || (r >= 0) == (a >= 0)
}

func subi(a, b int64) (int64, bool) {
	r := a - b
	return r, (a >= 0) == (b >= 0) || (r >= 0) == (a >= 0)
}

func muli(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	r := a * b
	if r/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return r, true
}

// binaryKind gives the result kind of applying a binary operator to operands
// of the given kinds. Undefined operands are accepted wherever some kind
// would be.
func binaryKind(op operator, l, r Kind) (Kind, bool) {
	any2 := l == Undefined || r == Undefined
	switch op {
	case opAdd:
		switch {
		case l == ByteArray || r == ByteArray:
			return Undefined, false
		case l == String || r == String:
			return String, true
		case l == Numeric && r == Numeric:
			return Numeric, true
		case l == Boolean && r == Undefined, l == Undefined && r == Boolean:
			// Adding a boolean is a concatenation, so the other side must
			// be a string.
			return String, true
		case any2 && l != Boolean && r != Boolean:
			return Undefined, true
		}
	case opSubtract, opMultiply, opDivide, opPower:
		if (l == Numeric || l == Undefined) && (r == Numeric || r == Undefined) {
			return Numeric, true
		}
	case opAnd, opOr, opXor:
		switch {
		case l == r && l != String:
			return l, true
		case l == Undefined && r != String:
			return r, true
		case r == Undefined && l != String:
			return l, true
		}
	case opLeftShift, opRightShift:
		if r != Numeric && r != Undefined {
			return Undefined, false
		}
		switch l {
		case Numeric, ByteArray, Undefined:
			return l, true
		}
	case opEquals, opNotEquals:
		if l == r || any2 {
			return Boolean, true
		}
	case opLessThan, opLessThanOrEqual, opGreaterThan, opGreaterThanOrEqual:
		if l == Boolean || r == Boolean {
			return Undefined, false
		}
		if l == r || any2 {
			return Boolean, true
		}
	}
	return Undefined, false
}

// unaryKind gives the result kind of a prefix operator.
func unaryKind(op operator, k Kind) (Kind, bool) {
	switch op {
	case opSubtract, opAdd:
		if k == Numeric || k == Undefined {
			return Numeric, true
		}
	case opNot:
		switch k {
		case Boolean, Numeric, ByteArray, Undefined:
			return k, true
		}
	}
	return Undefined, false
}

func opError(op operator, reason string) error {
	return &EvalError{Op: canonicalSymbols.opSymbol(op), Reason: reason}
}

func (d *MathDefinition) opSymbol(op operator) string {
	return *d.symbol(op)
}

// applyUnary evaluates a prefix operator.
func applyUnary(op operator, v any) (any, error) {
	switch op {
	case opAdd:
		switch v.(type) {
		case int64, float64:
			return v, nil
		}
	case opSubtract:
		switch x := v.(type) {
		case int64:
			if x == math.MinInt64 {
				return -float64(x), nil
			}
			return -x, nil
		case float64:
			return -x, nil
		}
	case opNot:
		switch x := v.(type) {
		case bool:
			return !x, nil
		case int64:
			return ^x, nil
		case float64:
			if i, ok := toInt(x); ok {
				return ^i, nil
			}
			return nil, opError(op, "complement of non-integer")
		case []byte:
			r := make([]byte, len(x))
			for i, c := range x {
				r[i] = ^c
			}
			return r, nil
		}
	}
	return nil, opError(op, "unsupported operand "+kindOf(v).String())
}

// applyBinary evaluates a binary operator on values whose kinds are only
// known at run time.
func applyBinary(op operator, l, r any) (any, error) {
	lk, rk := kindOf(l), kindOf(r)
	if lk == Undefined || rk == Undefined {
		return nil, opError(op, "operand of unknown kind")
	}
	if _, ok := binaryKind(op, lk, rk); !ok {
		return nil, opError(op, "unsupported operands "+lk.String()+" and "+rk.String())
	}
	return binaryImpl(op, lk, rk)(l, r)
}

// binaryImpl selects the implementation of op for operands of the given
// kinds. The kinds must already have passed binaryKind.
func binaryImpl(op operator, lk, rk Kind) func(l, r any) (any, error) {
	if lk == Undefined || rk == Undefined {
		return func(l, r any) (any, error) { return applyBinary(op, l, r) }
	}
	switch op {
	case opAdd:
		if lk == String || rk == String {
			return concat
		}
		return func(l, r any) (any, error) { return arith(op, l, r) }
	case opSubtract, opMultiply, opDivide, opPower:
		return func(l, r any) (any, error) { return arith(op, l, r) }
	case opAnd, opOr, opXor:
		return func(l, r any) (any, error) { return bitwise(op, l, r) }
	case opLeftShift, opRightShift:
		return func(l, r any) (any, error) { return shift(op, l, r) }
	}
	var test func(int) bool
	switch op {
	case opEquals:
		test = func(c int) bool { return c == 0 }
	case opNotEquals:
		return func(l, r any) (any, error) {
			c, ok := compare(l, r)
			return !ok || c != 0, nil
		}
	case opLessThan:
		test = func(c int) bool { return c < 0 }
	case opLessThanOrEqual:
		test = func(c int) bool { return c <= 0 }
	case opGreaterThan:
		test = func(c int) bool { return c > 0 }
	case opGreaterThanOrEqual:
		test = func(c int) bool { return c >= 0 }
	default:
		return func(any, any) (any, error) { return nil, opError(op, "not a binary operator") }
	}
	return func(l, r any) (any, error) {
		c, ok := compare(l, r)
		return ok && test(c), nil
	}
}

func concat(l, r any) (any, error) {
	return formatValue(l) + formatValue(r), nil
}

func arith(op operator, l, r any) (any, error) {
	a, aok := l.(int64)
	b, bok := r.(int64)
	if aok && bok {
		switch op {
		case opAdd:
			if x, ok := addi(a, b); ok {
				return x, nil
			}
		case opSubtract:
			if x, ok := subi(a, b); ok {
				return x, nil
			}
		case opMultiply:
			if x, ok := muli(a, b); ok {
				return x, nil
			}
		case opDivide:
			if b != 0 && a%b == 0 && !(a == math.MinInt64 && b == -1) {
				return a / b, nil
			}
		case opPower:
			if b >= 0 {
				if x, ok := powi(a, b); ok {
					return x, nil
				}
			}
		}
	}
	x, y := toFloat(l), toFloat(r)
	switch op {
	case opAdd:
		return x + y, nil
	case opSubtract:
		return x - y, nil
	case opMultiply:
		return x * y, nil
	case opDivide:
		return x / y, nil
	case opPower:
		return powf(x, y), nil
	}
	return nil, opError(op, "not arithmetic")
}

func bitwise(op operator, l, r any) (any, error) {
	switch a := l.(type) {
	case bool:
		b := r.(bool)
		switch op {
		case opAnd:
			return a && b, nil
		case opOr:
			return a || b, nil
		default:
			return a != b, nil
		}
	case []byte:
		b := r.([]byte)
		n := max(len(a), len(b))
		x, y := padLeft(a, n), padLeft(b, n)
		z := make([]byte, n)
		for i := range z {
			switch op {
			case opAnd:
				z[i] = x[i] & y[i]
			case opOr:
				z[i] = x[i] | y[i]
			default:
				z[i] = x[i] ^ y[i]
			}
		}
		return z, nil
	}
	a, aok := toInt(l)
	b, bok := toInt(r)
	if !aok || !bok {
		return nil, opError(op, "bitwise operation on non-integer")
	}
	switch op {
	case opAnd:
		return a & b, nil
	case opOr:
		return a | b, nil
	default:
		return a ^ b, nil
	}
}

func padLeft(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	r := make([]byte, n)
	copy(r[n-len(b):], b)
	return r
}

// maxByteShift bounds shifts of byte arrays.
const maxByteShift = 1 << 16

func shift(op operator, l, r any) (any, error) {
	n, ok := toInt(r)
	if !ok || n < 0 {
		return nil, opError(op, "shift count must be a non-negative integer")
	}
	if b, ok := l.([]byte); ok {
		if n > maxByteShift {
			return nil, opError(op, "shift count too large")
		}
		var x big.Int
		x.SetBytes(b)
		if op == opLeftShift {
			x.Lsh(&x, uint(n))
			sz := max(len(b), (x.BitLen()+7)/8)
			return x.FillBytes(make([]byte, sz)), nil
		}
		x.Rsh(&x, uint(n))
		return x.FillBytes(make([]byte, len(b))), nil
	}
	a, ok := toInt(l)
	if !ok {
		return nil, opError(op, "shift of non-integer")
	}
	if n >= 64 {
		if op == opRightShift && a < 0 {
			return int64(-1), nil
		}
		return int64(0), nil
	}
	if op == opLeftShift {
		return a << uint(n), nil
	}
	return a >> uint(n), nil
}

// compare orders two values of compatible kinds. Numbers compare by value
// across int64 and float64. Byte arrays compare as unsigned big-endian
// magnitudes, then by length, so 0b00000001 is less than 0b000000001.
// ok is false when either value is NaN.
func compare(l, r any) (c int, ok bool) {
	switch a := l.(type) {
	case bool:
		b := r.(bool)
		switch {
		case a == b:
			return 0, true
		case b:
			return -1, true
		default:
			return 1, true
		}
	case string:
		return strings.Compare(a, r.(string)), true
	case []byte:
		b := r.([]byte)
		x, y := trimZeros(a), trimZeros(b)
		if c := cmp.Compare(len(x), len(y)); c != 0 {
			return c, true
		}
		if c := bytes.Compare(x, y); c != 0 {
			return c, true
		}
		return cmp.Compare(len(a), len(b)), true
	}
	a, aok := l.(int64)
	b, bok := r.(int64)
	if aok && bok {
		return cmp.Compare(a, b), true
	}
	x, y := toFloat(l), toFloat(r)
	if math.IsNaN(x) || math.IsNaN(y) {
		return 0, false
	}
	return cmp.Compare(x, y), true
}

func trimZeros(b []byte) []byte {
	for len(b) > 0 && b[0] == 0 {
		b = b[1:]
	}
	return b
}
