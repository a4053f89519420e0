package mathexpr

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func TestInterpretErrors(t *testing.T) {
	s := quietService(t)
	for _, text := range []string{"", "   ", "\t\n"} {
		_, err := s.Interpret(context.Background(), text)
		assert.ErrorIs(t, err, ErrEmptyExpression, "%q", text)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Interpret(ctx, "1+2")
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, s.Close())
	_, err = s.Interpret(context.Background(), "1+2")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.RegisterFunctions(StandardLibrary()), ErrClosed)
	assert.Empty(t, s.RegisteredFunctions())
}

// expiringContext reports a deadline once Err has been called n times.
type expiringContext struct {
	context.Context
	n atomic.Int32
}

func (c *expiringContext) Err() error {
	if c.n.Add(-1) < 0 {
		return context.DeadlineExceeded
	}
	return nil
}

func TestInterpretDeadlineMidway(t *testing.T) {
	s := quietService(t)
	src := strings.Repeat("1+", 40) + "2 3"
	ctx := &expiringContext{Context: context.Background()}
	ctx.n.Store(20)
	_, err := s.Interpret(ctx, src)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Negative(t, ctx.n.Load())

	// The same text is merely unrecognized when there is time.
	e, err := s.Interpret(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, e.RecognizedCorrectly())
}

func TestInterpretLogs(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	s, err := NewService(WithLogger(log))
	require.NoError(t, err)
	_, err = s.Interpret(context.Background(), "x+1")
	require.NoError(t, err)
	e := hook.LastEntry()
	require.NotNil(t, e)
	assert.Equal(t, "interpreted", e.Message)
	assert.Equal(t, "x+1", e.Data["expression"])
	assert.Equal(t, []string{"x"}, e.Data["parameters"])

	_, err = s.Interpret(context.Background(), "1+")
	require.NoError(t, err)
	assert.Equal(t, "unrecognized", hook.LastEntry().Message)
}

func TestDefinitionValidation(t *testing.T) {
	cases := []struct {
		name   string
		modify func(*MathDefinition)
		n      int
	}{
		{"default", func(*MathDefinition) {}, 0},
		{"duplicate", func(d *MathDefinition) { d.AddSymbol = "-" }, 1},
		{"blank", func(d *MathDefinition) { d.AddSymbol = " " }, 1},
		{"reserved", func(d *MathDefinition) { d.MultiplySymbol = "@" }, 1},
		{"word", func(d *MathDefinition) { d.AndSymbol = "and" }, 1},
		{"digit", func(d *MathDefinition) { d.OrSymbol = "|1" }, 1},
		{"style", func(d *MathDefinition) { d.OperatorPrecedenceStyle = 7 }, 1},
		{"several", func(d *MathDefinition) {
			d.AddSymbol = ""
			d.MultiplySymbol = "@"
			d.Parentheses.Close = "("
		}, 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			def := DefaultDefinition()
			c.modify(&def)
			err := def.Validate()
			assert.Len(t, multierr.Errors(err), c.n)
			_, serr := NewService(WithDefinition(def))
			if c.n == 0 {
				assert.NoError(t, serr)
				return
			}
			var de *DefinitionError
			assert.ErrorAs(t, serr, &de)
		})
	}
}

func TestPrecedenceStyleText(t *testing.T) {
	cases := []struct {
		in   string
		want PrecedenceStyle
		err  bool
	}{
		{"mathematical", Mathematical, false},
		{"Math", Mathematical, false},
		{"", Mathematical, false},
		{"cstyle", CStyle, false},
		{"C-Style", CStyle, false},
		{" c ", CStyle, false},
		{"pascal", 0, true},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			var s PrecedenceStyle
			err := s.UnmarshalText([]byte(c.in))
			if c.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, c.want, s)
			b, err := s.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, c.want.String(), string(b))
		})
	}
	assert.Equal(t, "PrecedenceStyle(9)", PrecedenceStyle(9).String())
}

func TestPrecedenceStyleOption(t *testing.T) {
	def := DefaultDefinition()
	s := quietService(t, WithPrecedenceStyle(CStyle), WithDefinition(def))
	assert.Equal(t, CStyle, s.Definition().OperatorPrecedenceStyle)
	assert.Equal(t, Mathematical, def.OperatorPrecedenceStyle)
}

func TestRegisterFunctions(t *testing.T) {
	s := quietService(t)
	ctx := context.Background()
	e, err := s.Interpret(ctx, "double(4)")
	require.NoError(t, err)
	assert.False(t, e.RecognizedCorrectly())

	lib := Library{Name: "test", Functions: []Function{
		Monadic("double", func(x float64) float64 { return 2 * x }),
		{Name: "bad name"},
	}}
	err = s.RegisterFunctions(lib)
	assert.Len(t, multierr.Errors(err), 1)
	// Changes to the library after registration are not seen.
	lib.Functions[0] = Monadic("double", func(x float64) float64 { return 3 * x })

	e, err = s.Interpret(ctx, "double(4)")
	require.NoError(t, err)
	require.True(t, e.RecognizedCorrectly(), "%v", e.Err())
	v, err := e.Compute()
	require.NoError(t, err)
	assert.Equal(t, 8.0, v)
	assert.Contains(t, s.RegisteredFunctions(), "double(numeric)")
}

func TestOverrideFunction(t *testing.T) {
	s := quietService(t, WithFunctions(Library{Name: "neg", Functions: []Function{
		Monadic("sqrt", func(x float64) float64 { return -x }),
	}}))
	v, err := Eval(context.Background(), "sqrt(4)")
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)
	e, err := s.Interpret(context.Background(), "sqrt(4)")
	require.NoError(t, err)
	v, err = e.Compute()
	require.NoError(t, err)
	assert.Equal(t, -4.0, v)
}

func TestWithoutStandardFunctions(t *testing.T) {
	s := quietService(t, WithoutStandardFunctions())
	assert.Empty(t, s.RegisteredFunctions())
	e, err := s.Interpret(context.Background(), "sqrt(4)")
	require.NoError(t, err)
	assert.False(t, e.RecognizedCorrectly())
	e, err = s.Interpret(context.Background(), "2+2")
	require.NoError(t, err)
	v, err := e.Compute()
	require.NoError(t, err)
	assert.Equal(t, int64(4), v)
}

func TestImpureFunction(t *testing.T) {
	n := 0.0
	s := quietService(t, WithFunctions(Library{Functions: []Function{{
		Name:    "next",
		Returns: Numeric,
		Impure:  true,
		Call: func([]any) (any, error) {
			n++
			return n, nil
		},
	}}}))
	e, err := s.Interpret(context.Background(), "next()*10")
	require.NoError(t, err)
	assert.False(t, e.IsConstant())
	for _, want := range []float64{10, 20, 30} {
		v, err := e.Compute()
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
}

func TestUndefinedParamFunction(t *testing.T) {
	s := quietService(t, WithFunctions(Library{Functions: []Function{{
		Name:    "kind",
		Params:  []Kind{Undefined},
		Returns: String,
		Call: func(args []any) (any, error) {
			return kindOf(args[0]).String(), nil
		},
	}}}))
	e, err := s.Interpret(context.Background(), "kind(x)")
	require.NoError(t, err)
	for _, c := range []struct {
		arg  any
		want string
	}{
		{1, "numeric"},
		{"a", "string"},
		{true, "boolean"},
		{[]byte{1}, "binary"},
	} {
		v, err := e.Compute(c.arg)
		require.NoError(t, err)
		assert.Equal(t, c.want, v)
	}
}
