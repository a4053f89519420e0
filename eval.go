package mathexpr

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
)

// ComputedExpression is the result of interpreting an expression. It may be
// evaluated any number of times with different arguments, including
// concurrently.
//
// An expression that could not be interpreted is still a ComputedExpression.
// RecognizedCorrectly reports false for it, Err reports why, and Compute
// returns the source text.
type ComputedExpression struct {
	src        string
	recognized bool
	constant   bool
	undefined  bool
	err        error

	mu     sync.Mutex
	tree   *node
	params *parameterRegistry
	// compiled caches evaluators by argument kind signature.
	compiled map[string]evaluator
	closed   bool
}

func newComputedExpression(src string, tree *node, params *parameterRegistry) *ComputedExpression {
	e := &ComputedExpression{
		src:        src,
		recognized: true,
		constant:   tree.kind == nodeConst,
		tree:       tree,
		params:     params,
		compiled:   make(map[string]evaluator),
	}
	for _, p := range params.order {
		if p.hint == Undefined {
			e.undefined = true
		}
	}
	return e
}

func unrecognizedExpression(src string, err error) *ComputedExpression {
	return &ComputedExpression{src: src, err: err, params: newParameterRegistry()}
}

// Source returns the text the expression was interpreted from.
func (e *ComputedExpression) Source() string {
	return e.src
}

// RecognizedCorrectly reports whether the source was interpreted into an
// evaluable tree.
func (e *ComputedExpression) RecognizedCorrectly() bool {
	return e.recognized
}

// IsConstant reports whether the expression was folded into a single value.
// Constant expressions ignore any arguments passed to Compute.
func (e *ComputedExpression) IsConstant() bool {
	return e.constant
}

// HasUndefinedParameters reports whether any parameter has a kind that could
// not be inferred from its uses. Such parameters take the kind of whatever
// argument is bound to them.
func (e *ComputedExpression) HasUndefinedParameters() bool {
	return e.undefined
}

// ParameterNames returns the names of the parameters in the order Compute
// binds arguments to them, which is the order of first appearance.
func (e *ComputedExpression) ParameterNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.params == nil {
		return nil
	}
	return e.params.names()
}

// Err returns the reason the expression was not recognized, or nil.
func (e *ComputedExpression) Err() error {
	return e.err
}

// String formats the interpreted tree with every operation parenthesized.
// Unrecognized and closed expressions format as their source.
func (e *ComputedExpression) String() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tree == nil {
		return e.src
	}
	return e.tree.String()
}

// Compute evaluates the expression with arguments bound to parameters in
// order. If the expression is unrecognized, the arguments do not match the
// parameters, or evaluation fails, the result is the source text and a nil
// error. The only error is ErrClosed.
func (e *ComputedExpression) Compute(args ...any) (any, error) {
	v, err := e.Evaluate(args...)
	return e.fallback(v, err)
}

// ComputeWith evaluates the expression with each parameter's argument looked
// up by name. If any parameter is missing, the result is the source text.
func (e *ComputedExpression) ComputeWith(f DataFinder) (any, error) {
	v, err := e.EvaluateWith(f)
	return e.fallback(v, err)
}

func (e *ComputedExpression) fallback(v any, err error) (any, error) {
	switch {
	case err == nil:
		return v, nil
	case errors.Is(err, ErrClosed):
		return nil, err
	default:
		return e.src, nil
	}
}

// Evaluate is like Compute, but it returns the reason for any failure
// instead of the source text.
func (e *ComputedExpression) Evaluate(args ...any) (any, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrClosed
	}
	tree, params := e.tree, e.params
	e.mu.Unlock()
	if !e.recognized {
		return nil, e.err
	}
	if e.constant {
		return detach(tree.val), nil
	}
	if len(args) != len(params.order) {
		return nil, &EvalError{Op: "bind", Reason: "have " + strconv.Itoa(len(args)) + " arguments, want " + strconv.Itoa(len(params.order))}
	}
	env := make([]any, len(args))
	sig := make([]Kind, len(args))
	for i, p := range params.order {
		v, err := normalize(args[i], p.hint)
		if err != nil {
			return nil, &EvalError{Op: p.name, Reason: err.Error()}
		}
		env[i] = v
		sig[i] = kindOf(v)
	}
	ev, err := e.evaluator(tree, sig)
	if err != nil {
		return nil, err
	}
	v, err := ev(env)
	if err != nil {
		return nil, err
	}
	return detach(v), nil
}

// EvaluateWith is like ComputeWith, but it returns the reason for any
// failure instead of the source text.
func (e *ComputedExpression) EvaluateWith(f DataFinder) (any, error) {
	if e.constant || !e.recognized {
		return e.Evaluate()
	}
	names := e.ParameterNames()
	args := make([]any, len(names))
	for i, name := range names {
		v, ok := f.TryGet(name)
		if !ok {
			return nil, &EvalError{Op: name, Reason: "no value found"}
		}
		args[i] = v
	}
	return e.Evaluate(args...)
}

// evaluator gets or compiles the evaluator for a signature.
func (e *ComputedExpression) evaluator(tree *node, sig []Kind) (evaluator, error) {
	var b strings.Builder
	for _, k := range sig {
		b.WriteByte('0' + byte(k))
	}
	key := b.String()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if ev := e.compiled[key]; ev != nil {
		return ev, nil
	}
	ev, _, err := tree.compile(sig)
	if err != nil {
		return nil, err
	}
	e.compiled[key] = ev
	return ev, nil
}

// Clone creates an independent copy of the expression with its own
// parameters and compiled evaluators.
func (e *ComputedExpression) Clone() (*ComputedExpression, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, ErrClosed
	}
	if !e.recognized {
		return unrecognizedExpression(e.src, e.err), nil
	}
	reg := e.params.clone()
	return &ComputedExpression{
		src:        e.src,
		recognized: true,
		constant:   e.constant,
		undefined:  e.undefined,
		tree:       e.tree.clone(reg),
		params:     reg,
		compiled:   make(map[string]evaluator),
	}, nil
}

// Close releases the expression's tree and compiled evaluators. Any later
// Compute returns ErrClosed. Close is idempotent and always returns nil.
func (e *ComputedExpression) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.tree = nil
	e.params = nil
	e.compiled = nil
	return nil
}

// detach copies byte slices so callers cannot modify values the expression
// holds.
func detach(v any) any {
	if b, ok := v.([]byte); ok {
		return append([]byte{}, b...)
	}
	return v
}

// DataFinder looks up argument values by parameter name.
type DataFinder interface {
	TryGet(name string) (any, bool)
}

// MapFinder is a DataFinder backed by a map.
type MapFinder map[string]any

// TryGet implements DataFinder.
func (m MapFinder) TryGet(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

// DataFinderFunc adapts a function to a DataFinder.
type DataFinderFunc func(name string) (any, bool)

// TryGet implements DataFinder.
func (f DataFinderFunc) TryGet(name string) (any, bool) {
	return f(name)
}

// Eval is a shortcut to interpret an expression with the default service and
// compute it with args.
func Eval(ctx context.Context, text string, args ...any) (any, error) {
	s, err := defaultService()
	if err != nil {
		return nil, err
	}
	e, err := s.Interpret(ctx, text)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	return e.Compute(args...)
}
