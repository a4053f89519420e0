package mathexpr

import (
	"strconv"
	"strings"
	"unicode"

	"go.uber.org/multierr"
)

// PrecedenceStyle selects one of the fixed operator precedence orderings.
type PrecedenceStyle int

const (
	// Mathematical treats the logical operators as a single, loosest-binding
	// level evaluated left to right, and all comparisons as one level.
	Mathematical PrecedenceStyle = iota
	// CStyle follows C: | binds loosest, then #, then &, then equality,
	// then relational comparisons.
	CStyle
)

func (s PrecedenceStyle) String() string {
	switch s {
	case Mathematical:
		return "mathematical"
	case CStyle:
		return "cstyle"
	default:
		return "PrecedenceStyle(" + strconv.Itoa(int(s)) + ")"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s PrecedenceStyle) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It accepts the names
// produced by String, case-insensitively, and "c" or "c-style" for CStyle.
func (s *PrecedenceStyle) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "mathematical", "math", "":
		*s = Mathematical
	case "cstyle", "c-style", "c":
		*s = CStyle
	default:
		return &DefinitionError{Field: "OperatorPrecedenceStyle", Reason: "unknown style " + strconv.Quote(string(text))}
	}
	return nil
}

// Pair is an opening and closing symbol.
type Pair struct {
	Open  string `mapstructure:"open" json:"open" yaml:"open"`
	Close string `mapstructure:"close" json:"close" yaml:"close"`
}

// MathDefinition is the set of symbols the parser recognizes. A
// MathDefinition holds only strings, so copying the value copies everything.
type MathDefinition struct {
	Parentheses             Pair   `mapstructure:"parentheses" json:"parentheses" yaml:"parentheses"`
	SpecialSymbolIndicators Pair   `mapstructure:"special" json:"special" yaml:"special"`
	StringIndicator         string `mapstructure:"string" json:"string" yaml:"string"`
	ParameterSeparator      string `mapstructure:"separator" json:"separator" yaml:"separator"`

	AddSymbol      string `mapstructure:"add" json:"add" yaml:"add"`
	SubtractSymbol string `mapstructure:"subtract" json:"subtract" yaml:"subtract"`
	MultiplySymbol string `mapstructure:"multiply" json:"multiply" yaml:"multiply"`
	DivideSymbol   string `mapstructure:"divide" json:"divide" yaml:"divide"`
	PowerSymbol    string `mapstructure:"power" json:"power" yaml:"power"`

	AndSymbol string `mapstructure:"and" json:"and" yaml:"and"`
	OrSymbol  string `mapstructure:"or" json:"or" yaml:"or"`
	XorSymbol string `mapstructure:"xor" json:"xor" yaml:"xor"`
	NotSymbol string `mapstructure:"not" json:"not" yaml:"not"`

	EqualsSymbol             string `mapstructure:"equals" json:"equals" yaml:"equals"`
	NotEqualsSymbol          string `mapstructure:"notequals" json:"notequals" yaml:"notequals"`
	GreaterThanSymbol        string `mapstructure:"greater" json:"greater" yaml:"greater"`
	GreaterThanOrEqualSymbol string `mapstructure:"greaterorequal" json:"greaterorequal" yaml:"greaterorequal"`
	LessThanSymbol           string `mapstructure:"less" json:"less" yaml:"less"`
	LessThanOrEqualSymbol    string `mapstructure:"lessorequal" json:"lessorequal" yaml:"lessorequal"`

	LeftShiftSymbol  string `mapstructure:"leftshift" json:"leftshift" yaml:"leftshift"`
	RightShiftSymbol string `mapstructure:"rightshift" json:"rightshift" yaml:"rightshift"`

	OperatorPrecedenceStyle PrecedenceStyle `mapstructure:"style" json:"style" yaml:"style"`
}

// DefaultDefinition returns the standard symbol set with Mathematical
// precedence.
func DefaultDefinition() MathDefinition {
	return MathDefinition{
		Parentheses:             Pair{"(", ")"},
		SpecialSymbolIndicators: Pair{"[", "]"},
		StringIndicator:         `"`,
		ParameterSeparator:      ",",

		AddSymbol:      "+",
		SubtractSymbol: "-",
		MultiplySymbol: "*",
		DivideSymbol:   "/",
		PowerSymbol:    "^",

		AndSymbol: "&",
		OrSymbol:  "|",
		XorSymbol: "#",
		NotSymbol: "!",

		EqualsSymbol:             "=",
		NotEqualsSymbol:          "!=",
		GreaterThanSymbol:        ">",
		GreaterThanOrEqualSymbol: ">=",
		LessThanSymbol:           "<",
		LessThanOrEqualSymbol:    "<=",

		LeftShiftSymbol:  "<<",
		RightShiftSymbol: ">>",

		OperatorPrecedenceStyle: Mathematical,
	}
}

// placeholderMark is reserved for the synthetic tokens the extractor writes
// into expression text.
const placeholderMark = "@"

// Validate checks that every symbol is set, that no two symbols are equal,
// and that no symbol uses the reserved placeholder character. All problems
// are reported together.
func (d MathDefinition) Validate() error {
	var err error
	type field struct {
		name string
		val  string
	}
	fields := []field{
		{"Parentheses.Open", d.Parentheses.Open},
		{"Parentheses.Close", d.Parentheses.Close},
		{"SpecialSymbolIndicators.Open", d.SpecialSymbolIndicators.Open},
		{"SpecialSymbolIndicators.Close", d.SpecialSymbolIndicators.Close},
		{"StringIndicator", d.StringIndicator},
		{"ParameterSeparator", d.ParameterSeparator},
	}
	for _, k := range allOperators {
		fields = append(fields, field{k.fieldName(), *d.symbol(k)})
	}
	seen := make(map[string]string, len(fields))
	for _, f := range fields {
		switch {
		case strings.TrimSpace(f.val) == "":
			err = multierr.Append(err, &DefinitionError{Field: f.name, Reason: "blank symbol"})
			continue
		case strings.Contains(f.val, placeholderMark):
			err = multierr.Append(err, &DefinitionError{Field: f.name, Reason: "symbol " + strconv.Quote(f.val) + " contains reserved " + strconv.Quote(placeholderMark)})
		case strings.IndexFunc(f.val, wordRune) >= 0:
			// Such symbols would be read as parts of names and numbers.
			err = multierr.Append(err, &DefinitionError{Field: f.name, Reason: "symbol " + strconv.Quote(f.val) + " contains a name, number, or space character"})
		}
		if other, ok := seen[f.val]; ok {
			err = multierr.Append(err, &DefinitionError{Field: f.name, Reason: "symbol " + strconv.Quote(f.val) + " duplicates " + other})
			continue
		}
		seen[f.val] = f.name
	}
	switch d.OperatorPrecedenceStyle {
	case Mathematical, CStyle:
	default:
		err = multierr.Append(err, &DefinitionError{Field: "OperatorPrecedenceStyle", Reason: "unknown style " + d.OperatorPrecedenceStyle.String()})
	}
	return err
}

func wordRune(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r)
}

// operator identifies an operator independently of its symbol.
type operator uint8

const (
	opNone operator = iota
	opAdd
	opSubtract
	opMultiply
	opDivide
	opPower
	opAnd
	opOr
	opXor
	opNot
	opEquals
	opNotEquals
	opGreaterThan
	opGreaterThanOrEqual
	opLessThan
	opLessThanOrEqual
	opLeftShift
	opRightShift
)

// allOperators lists every operator in definition order.
var allOperators = []operator{
	opAdd, opSubtract, opMultiply, opDivide, opPower,
	opAnd, opOr, opXor, opNot,
	opEquals, opNotEquals, opGreaterThan, opGreaterThanOrEqual, opLessThan, opLessThanOrEqual,
	opLeftShift, opRightShift,
}

// unaryOperators are the operators that may prefix an operand.
var unaryOperators = []operator{opSubtract, opAdd, opNot}

// symbol returns a pointer to the field holding the operator's symbol.
func (d *MathDefinition) symbol(k operator) *string {
	switch k {
	case opAdd:
		return &d.AddSymbol
	case opSubtract:
		return &d.SubtractSymbol
	case opMultiply:
		return &d.MultiplySymbol
	case opDivide:
		return &d.DivideSymbol
	case opPower:
		return &d.PowerSymbol
	case opAnd:
		return &d.AndSymbol
	case opOr:
		return &d.OrSymbol
	case opXor:
		return &d.XorSymbol
	case opNot:
		return &d.NotSymbol
	case opEquals:
		return &d.EqualsSymbol
	case opNotEquals:
		return &d.NotEqualsSymbol
	case opGreaterThan:
		return &d.GreaterThanSymbol
	case opGreaterThanOrEqual:
		return &d.GreaterThanOrEqualSymbol
	case opLessThan:
		return &d.LessThanSymbol
	case opLessThanOrEqual:
		return &d.LessThanOrEqualSymbol
	case opLeftShift:
		return &d.LeftShiftSymbol
	case opRightShift:
		return &d.RightShiftSymbol
	default:
		panic("mathexpr: no symbol for operator " + strconv.Itoa(int(k)))
	}
}

func (k operator) fieldName() string {
	return k.String() + "Symbol"
}

func (k operator) String() string {
	switch k {
	case opAdd:
		return "Add"
	case opSubtract:
		return "Subtract"
	case opMultiply:
		return "Multiply"
	case opDivide:
		return "Divide"
	case opPower:
		return "Power"
	case opAnd:
		return "And"
	case opOr:
		return "Or"
	case opXor:
		return "Xor"
	case opNot:
		return "Not"
	case opEquals:
		return "Equals"
	case opNotEquals:
		return "NotEquals"
	case opGreaterThan:
		return "GreaterThan"
	case opGreaterThanOrEqual:
		return "GreaterThanOrEqual"
	case opLessThan:
		return "LessThan"
	case opLessThanOrEqual:
		return "LessThanOrEqual"
	case opLeftShift:
		return "LeftShift"
	case opRightShift:
		return "RightShift"
	default:
		return "None"
	}
}

// precedence is one binding level of binary operators.
type precedence struct {
	ops []operator
	// right indicates right-associativity.
	right bool
}

// precedenceLevels holds the binary operator levels for each style, loosest
// binding first. The generator splits on the loosest level it can, so this
// table is the whole of operator precedence.
var precedenceLevels = map[PrecedenceStyle][]precedence{
	Mathematical: {
		{ops: []operator{opAnd, opOr, opXor}},
		{ops: []operator{opEquals, opNotEquals, opLessThan, opLessThanOrEqual, opGreaterThan, opGreaterThanOrEqual}},
		{ops: []operator{opLeftShift, opRightShift}},
		{ops: []operator{opAdd, opSubtract}},
		{ops: []operator{opMultiply, opDivide}},
		{ops: []operator{opPower}, right: true},
	},
	CStyle: {
		{ops: []operator{opOr}},
		{ops: []operator{opXor}},
		{ops: []operator{opAnd}},
		{ops: []operator{opEquals, opNotEquals}},
		{ops: []operator{opLessThan, opLessThanOrEqual, opGreaterThan, opGreaterThanOrEqual}},
		{ops: []operator{opLeftShift, opRightShift}},
		{ops: []operator{opAdd, opSubtract}},
		{ops: []operator{opMultiply, opDivide}},
		{ops: []operator{opPower}, right: true},
	},
}

// canonicalSymbols is used to print trees independently of the definition
// that parsed them.
var canonicalSymbols = DefaultDefinition()
