package mathexpr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWorkingSet(style PrecedenceStyle) *workingSet {
	def := DefaultDefinition()
	def.OperatorPrecedenceStyle = style
	return newWorkingSet(context.Background(), def, buildCatalog([]Library{StandardLibrary()}, nil))
}

func TestExtractLiterals(t *testing.T) {
	cases := []struct {
		name string
		src  string
		text string
		lits []string
	}{
		{"none", "1+2", "1+2", nil},
		{"one", `"a"+1`, "@c0@+1", []string{"a"}},
		{"two", `"a"+"b"`, "@c0@+@c1@", []string{"a", "b"}},
		{"escaped", `"a""b"`, "@c0@", []string{`a"b`}},
		{"empty", `""`, "@c0@", []string{""}},
		{"operators", `"(1+2"`, "@c0@", []string{"(1+2"}},
		{"same", `"a"+"a"`, "@c0@+@c1@", []string{"a", "a"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := testWorkingSet(Mathematical)
			text, err := w.extractLiterals(c.src)
			require.NoError(t, err)
			assert.Equal(t, c.text, text)
			for i, lit := range c.lits {
				n := w.consts.lookup(placeholder("c", i))
				require.NotNil(t, n, "literal %d", i)
				assert.Equal(t, lit, n.val)
			}
		})
	}
}

func TestExtractErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		pos  int
		err  any
	}{
		{"unterminated", `1+"abc`, 2, new(*LiteralError)},
		{"unterminated-escape", `"a""`, 0, new(*LiteralError)},
		{"open", "(1+2", 0, new(*BracketError)},
		{"inner-open", "1+((2)", 2, new(*BracketError)},
		{"close", "1+2)", 3, new(*BracketError)},
		{"close-first", ")(", 0, new(*BracketError)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := testWorkingSet(Mathematical)
			err := w.extract(c.src)
			require.Error(t, err)
			assert.ErrorAs(t, err, c.err)
			var in InputError
			require.True(t, errors.As(err, &in))
			assert.Equal(t, c.pos, in.Pos())
		})
	}
}

func TestEscapeOperators(t *testing.T) {
	w := testWorkingSet(Mathematical)
	text := w.escapeOperators("a!=b>=c<=d<<e>>f<g>h=i!j")
	assert.Equal(t, "a@op0@b@op1@c@op2@d@op3@e@op4@f<g>h=i!j", text)
	assert.Equal(t, "@op0@", w.def.NotEqualsSymbol)
	assert.Equal(t, "@op1@", w.def.GreaterThanOrEqualSymbol)
	assert.Equal(t, "@op2@", w.def.LessThanOrEqualSymbol)
	assert.Equal(t, "@op3@", w.def.LeftShiftSymbol)
	assert.Equal(t, "@op4@", w.def.RightShiftSymbol)
	assert.Equal(t, "<", w.def.LessThanSymbol)
	assert.Equal(t, "!", w.def.NotSymbol)
	// The shared definition is untouched.
	assert.Equal(t, "!=", DefaultDefinition().NotEqualsSymbol)
}

func TestFlattenGroups(t *testing.T) {
	type sym struct {
		name string
		text string
		call bool
	}
	cases := []struct {
		name string
		src  string
		root string
		syms []sym
	}{
		{"none", "1+2", "1+2", nil},
		{"group", "3+(6-2)*2", "3+@s0@*2", []sym{{"@s0@", "6-2", false}}},
		{"nested", "((1))", "@s1@", []sym{{"@s0@", "1", false}, {"@s1@", "@s0@", false}}},
		{"call", "sqrt(4)+1", "@s0@+1", []sym{{"@s0@", "sqrt(4)", true}}},
		{"call-space", "sqrt (4)", "@s0@", []sym{{"@s0@", "sqrt(4)", true}}},
		{"nested-call", "f(g(x), 2)", "@s1@", []sym{{"@s0@", "g(x)", true}, {"@s1@", "f(@s0@, 2)", true}}},
		{"shared", "(a+b)*(a+b)", "@s0@*@s0@", []sym{{"@s0@", "a+b", false}}},
		{"niladic", "random()", "@s0@", []sym{{"@s0@", "random()", true}}},
		{"constant", "e(2)", "e@s0@", []sym{{"@s0@", "2", false}}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := testWorkingSet(Mathematical)
			require.NoError(t, w.extract(c.src))
			assert.Equal(t, c.root, w.syms.root())
			for _, s := range c.syms {
				got := w.syms.lookup(s.name)
				require.NotNil(t, got, "symbol %s", s.name)
				assert.Equal(t, s.text, got.text)
				assert.Equal(t, s.call, got.call)
			}
		})
	}
}

func TestPopulate(t *testing.T) {
	cases := []struct {
		name   string
		src    string
		params []string
		consts []string
	}{
		{"order", "b+a*b", []string{"b", "a"}, nil},
		{"groups", "(y+x)*z", []string{"y", "x", "z"}, nil},
		{"call-args", "max(x, 2)+y", []string{"x", "y"}, []string{"2"}},
		{"call-name", "sqrt(x)", []string{"x"}, nil},
		{"constants", "x+e+[pi]+π+true+FALSE+0b1+1.5e3", []string{"x"}, []string{"true", "FALSE", "0b1", "1.5e3"}},
		{"unicode", "größe*2", []string{"größe"}, []string{"2"}},
		{"dotted", "a.b+_c1", []string{"a.b", "_c1"}, nil},
		{"strings", `x+"y"`, []string{"x"}, nil},
		{"comparison", "a<=b", []string{"a", "b"}, nil},
		{"garbage", "2x", nil, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := testWorkingSet(Mathematical)
			require.NoError(t, w.extract(c.src))
			assert.Equal(t, c.params, nilIfEmpty(w.params.names()))
			for _, k := range c.consts {
				assert.NotNil(t, w.consts.lookup(k), "constant %q", k)
			}
		})
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

func TestConstantsTable(t *testing.T) {
	c := newConstantsTable()
	a := c.tryAdd("1", constant(int64(1)))
	assert.Same(t, a, c.tryAdd("1", constant(int64(1))))
	assert.Same(t, a, c.tryAdd("01", constant(int64(1))))
	assert.Same(t, a, c.lookup("01"))
	b := c.tryAdd("1.0", constant(1.0))
	assert.NotSame(t, a, b)
	assert.Nil(t, c.lookup("2"))

	k := c.literal("s")
	assert.Equal(t, "@c0@", k)
	assert.Equal(t, "s", c.lookup(k).val)
	// Equal string literals share a node under distinct keys.
	j := c.literal("s")
	assert.Equal(t, "@c1@", j)
	assert.Same(t, c.lookup(k), c.lookup(j))
}

func TestSpecialConstants(t *testing.T) {
	c := newConstantsTable()
	def := DefaultDefinition()
	c.addSpecialConstants(&def)
	for _, s := range []string{"e", "[e]", "π", "[pi]", "[π]", "φ", "[phi]", "β", "[beta]", "γ", "[gamma]", "λ", "[lambda]"} {
		assert.NotNil(t, c.lookup(s), s)
	}
	assert.Same(t, c.lookup("π"), c.lookup("[pi]"))
	assert.Nil(t, c.lookup("pi"))
}

func TestSymbolTable(t *testing.T) {
	s := newSymbolTable()
	s.setRoot("@s0@+@s1@")
	a := s.add("x+1", false)
	assert.Equal(t, "@s0@", a)
	assert.Equal(t, a, s.add(" x+1 ", false))
	b := s.add("f(x)", true)
	assert.Equal(t, "@s1@", b)
	assert.Nil(t, s.lookup(""))
	assert.Equal(t, "@s0@+@s1@", s.root())
	s.setRoot("@s1@")
	assert.Equal(t, "@s1@", s.root())
}

func TestParameterRegistry(t *testing.T) {
	r := newParameterRegistry()
	x := r.advertise("x")
	y := r.advertise("y")
	assert.Same(t, x, r.advertise("x"))
	assert.Equal(t, 0, x.index)
	assert.Equal(t, 1, y.index)
	x.hint = Numeric
	c := r.clone()
	assert.Equal(t, []string{"x", "y"}, c.names())
	assert.NotSame(t, x, c.lookup("x"))
	assert.Equal(t, Numeric, c.lookup("x").hint)
	c.lookup("y").hint = String
	assert.Equal(t, Undefined, y.hint)
}

func TestPlaceholderLen(t *testing.T) {
	cases := []struct {
		s string
		n int
	}{
		{"@s0@", 4},
		{"@op12@+1", 6},
		{"@c3@@s1@", 4},
		{"@@", 0},
		{"@s@", 0},
		{"@0@", 0},
		{"@s0", 0},
		{"s0@", 0},
		{"", 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.n, placeholderLen(c.s), c.s)
	}
}
