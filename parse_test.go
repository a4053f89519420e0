package mathexpr

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quietService creates a service that logs nowhere.
func quietService(t testing.TB, opts ...Option) *Service {
	t.Helper()
	log, _ := test.NewNullLogger()
	s, err := NewService(append([]Option{WithLogger(log)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCandidates(t *testing.T) {
	w := testWorkingSet(Mathematical)
	require.NoError(t, w.extract("1+2*3>=x"))
	got := w.candidates(w.syms.root())
	want := []candidate{
		{pos: 1, len: 1, op: opAdd},
		{pos: 3, len: 1, op: opMultiply},
		{pos: 5, len: 5, op: opGreaterThanOrEqual},
	}
	assert.Equal(t, want, got)
}

func TestCandidatesSkipNot(t *testing.T) {
	w := testWorkingSet(Mathematical)
	require.NoError(t, w.extract("!a!=b"))
	got := w.candidates(w.syms.root())
	assert.Equal(t, []candidate{{pos: 2, len: 5, op: opNotEquals}}, got)
}

func TestTrees(t *testing.T) {
	cases := []struct {
		name  string
		src   string
		style PrecedenceStyle
		tree  string
	}{
		{"left", "a-b-c", Mathematical, "((a - b) - c)"},
		{"right", "a^b^c", Mathematical, "(a ^ (b ^ c))"},
		{"mul-add", "a+b*c", Mathematical, "(a + (b * c))"},
		{"group", "(a+b)*c", Mathematical, "((a + b) * c)"},
		{"neg-pow", "-a^b", Mathematical, "((-a) ^ b)"},
		{"logic-math", "a|b&c", Mathematical, "((a | b) & c)"},
		{"logic-c", "a|b&c", CStyle, "(a | (b & c))"},
		{"cmp", "a<b=c", Mathematical, "((a < b) = c)"},
		{"cmp-kinds", "a=b<c", Mathematical, "(a = (b < c))"},
		{"xor-c", "a&b#c", CStyle, "((a & b) # c)"},
		{"xor-math", "a#b&c", Mathematical, "((a # b) & c)"},
		{"shift", "a<<b+c", Mathematical, "(a << (b + c))"},
		{"noteq", "a!=b", Mathematical, "(a != b)"},
		{"not", "!a", Mathematical, "(!a)"},
		{"not-cmp", "!a=b", Mathematical, "((!a) = b)"},
		{"call", "sqrt(a)", Mathematical, "sqrt(a)"},
		{"call-args", "max(a, b*2)", Mathematical, "max(a, (b * 2))"},
		{"call-nested", "max(sqrt(a), min(b, c))", Mathematical, "max(sqrt(a), min(b, c))"},
		{"fold", "2+3*4", Mathematical, "14"},
		{"fold-partial", "x*(2+3)", Mathematical, "(x * 5)"},
		{"special", "[pi]*r^2", Mathematical, "(π * (r ^ 2))"},
		{"special-bare", "2*π", Mathematical, "6.283185307179586"},
		{"binary", "0b1010 & a", Mathematical, "(0b00001010 & a)"},
		{"string", `"x""y"+a`, Mathematical, `("x""y" + a)`},
		{"spaces", "  a  *  b  ", Mathematical, "(a * b)"},
		{"redundant", "((a))", Mathematical, "a"},
		{"unary-chain", "--a", Mathematical, "(-(-a))"},
		{"impure", "random()+1", Mathematical, "(random() + 1)"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := quietService(t, WithPrecedenceStyle(c.style))
			e, err := s.Interpret(context.Background(), c.src)
			require.NoError(t, err)
			require.True(t, e.RecognizedCorrectly(), "%v", e.Err())
			assert.Equal(t, c.tree, e.String())
		})
	}
}

func TestUnrecognized(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{"open", "(1+2"},
		{"close", "1+2)"},
		{"literal", `"abc`},
		{"unknown-function", "foo(1)"},
		{"arity", "random(1,2,3)"},
		{"too-many", "max(1,2,3,4)"},
		{"trailing", "1+"},
		{"leading", "*2"},
		{"juxtaposed", "1 2"},
		{"kinds", "true+1"},
		{"string-arg", `sqrt("x")`},
		{"bytes-add", "0b1+0b1"},
		{"string-and", `"a"&"b"`},
		{"bool-order", "true<false"},
		{"empty-group", "()"},
		{"number-word", "2x"},
		{"placeholder", "(@s0@)"},
		{"placeholder-op", "1@op0@2"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			s := quietService(t)
			e, err := s.Interpret(context.Background(), c.src)
			require.NoError(t, err)
			assert.False(t, e.RecognizedCorrectly())
			assert.Error(t, e.Err())
			assert.Equal(t, c.src, e.String())
			v, err := e.Compute()
			assert.NoError(t, err)
			assert.Equal(t, c.src, v)
		})
	}
}

func TestUnrecognizedPositions(t *testing.T) {
	s := quietService(t)
	e, err := s.Interpret(context.Background(), "1+(2*3")
	require.NoError(t, err)
	var in InputError
	require.ErrorAs(t, e.Err(), &in)
	assert.Equal(t, 2, in.Pos())
	var be *BracketError
	require.ErrorAs(t, e.Err(), &be)
	assert.Equal(t, "(", be.Left)
}

func TestCustomDefinition(t *testing.T) {
	def := DefaultDefinition()
	def.PowerSymbol = "**"
	def.Parentheses = Pair{"{", "}"}
	def.StringIndicator = "'"
	def.ParameterSeparator = ";"
	cases := []struct {
		src  string
		want any
	}{
		{"2**3", int64(8)},
		{"2*3**2", int64(18)},
		{"{1+2}*3", int64(9)},
		{"max{1; 4}", int64(4)},
		{"'it''s'+1", "it's1"},
	}
	s := quietService(t, WithDefinition(def))
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			e, err := s.Interpret(context.Background(), c.src)
			require.NoError(t, err)
			require.True(t, e.RecognizedCorrectly(), "%v", e.Err())
			v, err := e.Compute()
			require.NoError(t, err)
			assert.Equal(t, c.want, v)
		})
	}
}

func TestHints(t *testing.T) {
	cases := []struct {
		src   string
		hints []Kind
	}{
		{"x*2", []Kind{Numeric}},
		{"x+y", []Kind{Undefined, Undefined}},
		{"-x", []Kind{Numeric}},
		{"!x", []Kind{Undefined}},
		{"x=true", []Kind{Boolean}},
		{`x<"a"`, []Kind{String}},
		{"x+true", []Kind{String}},
		{"strlen(s)+n", []Kind{String, Undefined}},
		{"b<<n", []Kind{Undefined, Numeric}},
		{"x&0b1", []Kind{ByteArray}},
	}
	for _, c := range cases {
		t.Run(c.src, func(t *testing.T) {
			w := testWorkingSet(Mathematical)
			_, err := w.interpret(c.src)
			require.NoError(t, err)
			var got []Kind
			for _, p := range w.params.order {
				got = append(got, p.hint)
			}
			assert.Equal(t, c.hints, got)
		})
	}
}

func TestLongChains(t *testing.T) {
	s := quietService(t)
	cases := []struct {
		name string
		src  string
		ok   bool
	}{
		{"valid", strings.Repeat("1+", 40) + "2", true},
		{"trailing-typo", strings.Repeat("1+", 40) + "2 3", false},
		{"leading-typo", "2 3" + strings.Repeat("+1", 40), false},
		{"mixed-typo", strings.Repeat("x*2-", 30) + "y z", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			e, err := s.Interpret(ctx, c.src)
			require.NoError(t, err)
			assert.Equal(t, c.ok, e.RecognizedCorrectly(), "%v", e.Err())
		})
	}
}
