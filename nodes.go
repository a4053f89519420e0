package mathexpr

import (
	"strconv"
	"strings"
)

// node is a node in the expression tree.
type node struct {
	kind nodeKind

	// op is the operator of unary and binary nodes.
	op operator
	// val is the value of a constant and typ is its kind. For other nodes,
	// typ is the kind known at parse time, which may be Undefined.
	val any
	typ Kind
	// name is the display name of a named constant.
	name string

	param *parameter
	fn    *Function

	left  *node
	right *node
	args  []*node
}

type nodeKind int8

const (
	nodeNone nodeKind = iota

	nodeConst  // val
	nodeParam  // lookup(param)
	nodeUnary  // op left
	nodeBinary // left op right
	nodeCall   // fn(args...)
)

func (k nodeKind) String() string {
	switch k {
	case nodeConst:
		return "Const"
	case nodeParam:
		return "Param"
	case nodeUnary:
		return "Unary"
	case nodeBinary:
		return "Binary"
	case nodeCall:
		return "Call"
	default:
		return "None"
	}
}

// constant creates a constant node holding a normalized value.
func constant(v any) *node {
	return &node{kind: nodeConst, val: v, typ: kindOf(v)}
}

// paramNode creates a node reading a parameter.
func paramNode(p *parameter) *node {
	return &node{kind: nodeParam, param: p, typ: p.hint}
}

// newUnary type-checks and creates a unary operation.
func newUnary(op operator, x *node) (*node, error) {
	k, ok := unaryKind(op, x.typ)
	if !ok {
		return nil, unrecognized(canonicalSymbols.opSymbol(op)+x.String(), "operand kind "+x.typ.String()+" does not fit the operator")
	}
	return &node{kind: nodeUnary, op: op, typ: k, left: x}, nil
}

// newBinary type-checks and creates a binary operation.
func newBinary(op operator, l, r *node) (*node, error) {
	k, ok := binaryKind(op, l.typ, r.typ)
	if !ok {
		return nil, unrecognized(l.String()+" "+canonicalSymbols.opSymbol(op)+" "+r.String(), "operand kinds "+l.typ.String()+" and "+r.typ.String()+" do not fit the operator")
	}
	return &node{kind: nodeBinary, op: op, typ: k, left: l, right: r}, nil
}

// newCall type-checks and creates a function call.
func newCall(fn *Function, args []*node) (*node, error) {
	for i, a := range args {
		if !accepts(fn.Params[i], a.typ) {
			return nil, unrecognized(fn.Name, "argument "+strconv.Itoa(i+1)+" is "+a.typ.String()+", want "+fn.Params[i].String())
		}
	}
	return &node{kind: nodeCall, fn: fn, typ: fn.Returns, args: args}, nil
}

// accepts reports whether a value of kind have may be passed where want is
// expected. Undefined on either side matches anything.
func accepts(want, have Kind) bool {
	return want == Undefined || have == Undefined || want == have
}

// isConstant reports whether the node can be evaluated without arguments.
func (n *node) isConstant() bool {
	switch n.kind {
	case nodeConst:
		return true
	case nodeUnary:
		return n.left.isConstant()
	case nodeBinary:
		return n.left.isConstant() && n.right.isConstant()
	case nodeCall:
		if n.fn.Impure {
			return false
		}
		for _, a := range n.args {
			if !a.isConstant() {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// simplify folds a constant subtree into a constant node. If folding fails,
// e.g. on a shift by a negative count, n is returned unchanged and the
// failure happens at evaluation instead.
func (n *node) simplify() *node {
	if n.kind == nodeConst || !n.isConstant() {
		return n
	}
	ev, _, err := n.compile(nil)
	if err != nil {
		return n
	}
	v, err := ev(nil)
	if err != nil {
		return n
	}
	return constant(v)
}

// evaluator computes the value of a compiled node given the argument values.
type evaluator func(env []any) (any, error)

// compile creates an evaluator for the node given the kinds of the
// arguments. The returned kind is the kind of the node's result.
func (n *node) compile(sig []Kind) (evaluator, Kind, error) {
	switch n.kind {
	case nodeConst:
		v := n.val
		return func([]any) (any, error) { return v, nil }, n.typ, nil
	case nodeParam:
		i := n.param.index
		if i >= len(sig) {
			return nil, Undefined, &EvalError{Op: n.param.name, Reason: "no argument bound"}
		}
		return func(env []any) (any, error) { return env[i], nil }, sig[i], nil
	case nodeUnary:
		x, xk, err := n.left.compile(sig)
		if err != nil {
			return nil, Undefined, err
		}
		k, ok := unaryKind(n.op, xk)
		if !ok {
			return nil, Undefined, opError(n.op, "unsupported operand "+xk.String())
		}
		op := n.op
		return func(env []any) (any, error) {
			v, err := x(env)
			if err != nil {
				return nil, err
			}
			return applyUnary(op, v)
		}, k, nil
	case nodeBinary:
		l, lk, err := n.left.compile(sig)
		if err != nil {
			return nil, Undefined, err
		}
		r, rk, err := n.right.compile(sig)
		if err != nil {
			return nil, Undefined, err
		}
		k, ok := binaryKind(n.op, lk, rk)
		if !ok {
			return nil, Undefined, opError(n.op, "unsupported operands "+lk.String()+" and "+rk.String())
		}
		f := binaryImpl(n.op, lk, rk)
		return func(env []any) (any, error) {
			a, err := l(env)
			if err != nil {
				return nil, err
			}
			b, err := r(env)
			if err != nil {
				return nil, err
			}
			return f(a, b)
		}, k, nil
	case nodeCall:
		args := make([]evaluator, len(n.args))
		for i, a := range n.args {
			ev, k, err := a.compile(sig)
			if err != nil {
				return nil, Undefined, err
			}
			if !accepts(n.fn.Params[i], k) {
				return nil, Undefined, &EvalError{Op: n.fn.Name, Reason: "argument " + strconv.Itoa(i+1) + " is " + k.String()}
			}
			args[i] = ev
		}
		fn := n.fn
		return func(env []any) (any, error) {
			vals := make([]any, len(args))
			for i, a := range args {
				v, err := a(env)
				if err != nil {
					return nil, err
				}
				if vals[i], err = normalize(v, fn.Params[i]); err != nil {
					return nil, err
				}
			}
			r, err := fn.Call(vals)
			if err != nil {
				return nil, err
			}
			return normalize(r, fn.Returns)
		}, fn.Returns, nil
	default:
		panic("mathexpr: compile on invalid node kind " + n.kind.String())
	}
}

// clone deep-copies the tree, binding parameter nodes to reg.
func (n *node) clone(reg *parameterRegistry) *node {
	if n == nil {
		return nil
	}
	c := *n
	if n.param != nil {
		c.param = reg.lookup(n.param.name)
	}
	c.left = n.left.clone(reg)
	c.right = n.right.clone(reg)
	if n.args != nil {
		c.args = make([]*node, len(n.args))
		for i, a := range n.args {
			c.args[i] = a.clone(reg)
		}
	}
	if b, ok := n.val.([]byte); ok {
		c.val = append([]byte(nil), b...)
	}
	return &c
}

// inferHints records on each parameter the kind its uses imply. The first
// implied kind wins.
func (n *node) inferHints() {
	hint := func(x *node, k Kind) {
		if x.kind == nodeParam && x.param.hint == Undefined && k != Undefined {
			x.param.hint = k
		}
	}
	switch n.kind {
	case nodeUnary:
		if n.op != opNot {
			hint(n.left, Numeric)
		}
		n.left.inferHints()
	case nodeBinary:
		switch n.op {
		case opSubtract, opMultiply, opDivide, opPower:
			hint(n.left, Numeric)
			hint(n.right, Numeric)
		case opLeftShift, opRightShift:
			hint(n.right, Numeric)
		case opAdd:
			if n.left.typ == Boolean {
				hint(n.right, String)
			}
			if n.right.typ == Boolean {
				hint(n.left, String)
			}
		default:
			hint(n.left, n.right.typ)
			hint(n.right, n.left.typ)
		}
		n.left.inferHints()
		n.right.inferHints()
	case nodeCall:
		for i, a := range n.args {
			hint(a, n.fn.Params[i])
			a.inferHints()
		}
	}
}

func (n *node) String() string {
	var b strings.Builder
	n.fmt(&b)
	return b.String()
}

func (n *node) fmt(b *strings.Builder) {
	switch n.kind {
	case nodeConst:
		switch {
		case n.name != "":
			b.WriteString(n.name)
		case n.typ == String:
			q := canonicalSymbols.StringIndicator
			b.WriteString(q)
			b.WriteString(strings.ReplaceAll(n.val.(string), q, q+q))
			b.WriteString(q)
		default:
			b.WriteString(formatValue(n.val))
		}
	case nodeParam:
		b.WriteString(n.param.name)
	case nodeUnary:
		b.WriteByte('(')
		b.WriteString(canonicalSymbols.opSymbol(n.op))
		n.left.fmt(b)
		b.WriteByte(')')
	case nodeBinary:
		b.WriteByte('(')
		n.left.fmt(b)
		b.WriteByte(' ')
		b.WriteString(canonicalSymbols.opSymbol(n.op))
		b.WriteByte(' ')
		n.right.fmt(b)
		b.WriteByte(')')
	case nodeCall:
		b.WriteString(n.fn.Name)
		b.WriteByte('(')
		for i, a := range n.args {
			if i > 0 {
				b.WriteString(", ")
			}
			a.fmt(b)
		}
		b.WriteByte(')')
	default:
		panic("mathexpr: invalid node kind " + n.kind.String() + " after writing " + b.String())
	}
}
