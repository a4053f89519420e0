package mathexpr

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// workingSet holds the state of one interpretation. It is discarded when the
// interpretation finishes.
type workingSet struct {
	ctx context.Context
	// def is a private copy of the definition. Its symbols are rewritten as
	// operators are escaped.
	def    MathDefinition
	consts *constantsTable
	syms   *symbolTable
	params *parameterRegistry
	funcs  *catalog
	levels []precedence
	// unary lists the prefix operators, longest symbol first.
	unary []operator
	// fnre matches name(args).
	fnre *regexp.Regexp
	// failed holds the soft failure of each text that did not resolve.
	failed map[string]error
}

func newWorkingSet(ctx context.Context, def MathDefinition, funcs *catalog) *workingSet {
	w := &workingSet{
		ctx:    ctx,
		def:    def,
		consts: newConstantsTable(),
		syms:   newSymbolTable(),
		params: newParameterRegistry(),
		funcs:  funcs,
		levels: precedenceLevels[def.OperatorPrecedenceStyle],
		failed: make(map[string]error),
	}
	w.consts.addSpecialConstants(&w.def)
	open, close := regexp.QuoteMeta(def.Parentheses.Open), regexp.QuoteMeta(def.Parentheses.Close)
	w.fnre = regexp.MustCompile(`(?s)^\s*([\p{L}_][\p{L}\p{N}_.]*)\s*` + open + `(.*)` + close + `\s*$`)
	return w
}

// interpret extracts and resolves src into a tree.
func (w *workingSet) interpret(src string) (*node, error) {
	if err := w.extract(src); err != nil {
		return nil, err
	}
	w.unary = append([]operator(nil), unaryOperators...)
	sort.SliceStable(w.unary, func(i, j int) bool {
		return len(*w.def.symbol(w.unary[i])) > len(*w.def.symbol(w.unary[j]))
	})
	n, err := w.resolve(w.syms.root())
	if err != nil {
		return nil, err
	}
	n.inferHints()
	return n, nil
}

// soft reports whether err means only that some text could not be resolved,
// as opposed to an error that must abort the interpretation.
func soft(err error) bool {
	var u *UnrecognizedError
	var in InputError
	return errors.As(err, &u) || errors.As(err, &in)
}

// resolve builds the tree for text. Resolution of a text is the same
// wherever it occurs in one interpretation, so soft failures are recorded
// and not repeated.
func (w *workingSet) resolve(text string) (*node, error) {
	if err := w.ctx.Err(); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, unrecognized(text, "missing operand")
	}
	if err, ok := w.failed[text]; ok {
		return nil, err
	}
	n, err := w.resolveText(text)
	if err != nil && soft(err) {
		w.failed[text] = err
	}
	return n, err
}

func (w *workingSet) resolveText(text string) (*node, error) {
	if n := w.consts.lookup(text); n != nil {
		return n, nil
	}
	if v, ok := parseLiteral(text); ok {
		return w.consts.tryAdd(text, constant(v)), nil
	}
	if p := w.params.lookup(text); p != nil {
		return paramNode(p), nil
	}
	if s := w.syms.lookup(text); s != nil {
		if s.call {
			return w.call(s.text)
		}
		return w.resolve(s.text)
	}
	if n, err := w.binary(text); err == nil || !soft(err) {
		return n, err
	}
	if n, err := w.prefix(text); err == nil || !soft(err) {
		return n, err
	}
	return nil, unrecognized(text, "no operand or operator matches")
}

// call resolves name(args) to a function call.
func (w *workingSet) call(text string) (*node, error) {
	m := w.fnre.FindStringSubmatch(text)
	if m == nil {
		return nil, unrecognized(text, "malformed function call")
	}
	name, list := m[1], m[2]
	var args []string
	if strings.TrimSpace(list) != "" {
		args = strings.Split(list, w.def.ParameterSeparator)
	}
	if len(args) > maxArity {
		return nil, unrecognized(text, "too many arguments")
	}
	fn := w.funcs.lookup(name, len(args))
	if fn == nil {
		return nil, unrecognized(text, "no function "+name+" of "+strconv.Itoa(len(args))+" arguments")
	}
	nodes := make([]*node, len(args))
	for i, a := range args {
		n, err := w.resolve(a)
		if err != nil {
			return nil, err
		}
		nodes[i] = n
	}
	n, err := newCall(fn, nodes)
	if err != nil {
		return nil, err
	}
	return n.simplify(), nil
}

// candidate is an occurrence of a binary operator.
type candidate struct {
	pos int
	len int
	op  operator
}

// candidates finds every binary operator occurrence in text, ordered by
// position, then by descending symbol length.
func (w *workingSet) candidates(text string) []candidate {
	var r []candidate
	for i := 0; i < len(text); {
		if n := placeholderLen(text[i:]); n > 0 {
			tok := text[i : i+n]
			for _, k := range allOperators {
				if *w.def.symbol(k) == tok && k != opNot {
					r = append(r, candidate{pos: i, len: n, op: k})
				}
			}
			i += n
			continue
		}
		for _, k := range allOperators {
			if k == opNot {
				continue
			}
			sym := *w.def.symbol(k)
			if strings.HasPrefix(text[i:], sym) {
				r = append(r, candidate{pos: i, len: len(sym), op: k})
			}
		}
		i++
	}
	sort.SliceStable(r, func(i, j int) bool {
		if r[i].pos != r[j].pos {
			return r[i].pos < r[j].pos
		}
		return r[i].len > r[j].len
	})
	return r
}

// binary resolves text as a binary operation. Precedence levels are tried
// from the loosest binding. Within a level, the split nearest the end is
// tried first for left-associative operators and the split nearest the start
// for right-associative ones.
func (w *workingSet) binary(text string) (*node, error) {
	all := w.candidates(text)
	if len(all) == 0 {
		return nil, unrecognized(text, "no binary operator")
	}
	var last error
	for _, lvl := range w.levels {
		var cs []candidate
		for _, c := range all {
			for _, op := range lvl.ops {
				if c.op == op {
					cs = append(cs, c)
					break
				}
			}
		}
		for i := range cs {
			c := cs[len(cs)-1-i]
			if lvl.right {
				c = cs[i]
			}
			n, err := w.split(text, c)
			if err == nil {
				return n, nil
			}
			if !soft(err) {
				return nil, err
			}
			last = err
		}
	}
	return nil, last
}

// split resolves a binary operation at c.
func (w *workingSet) split(text string, c candidate) (*node, error) {
	l, err := w.resolve(text[:c.pos])
	if err != nil {
		return nil, err
	}
	r, err := w.resolve(text[c.pos+c.len:])
	if err != nil {
		return nil, err
	}
	n, err := newBinary(c.op, l, r)
	if err != nil {
		return nil, err
	}
	return n.simplify(), nil
}

// prefix resolves text as a unary operation.
func (w *workingSet) prefix(text string) (*node, error) {
	err := unrecognized(text, "no prefix operator")
	for _, op := range w.unary {
		sym := *w.def.symbol(op)
		if !strings.HasPrefix(text, sym) {
			continue
		}
		x, err := w.resolve(text[len(sym):])
		if err != nil {
			if !soft(err) {
				return nil, err
			}
			continue
		}
		n, err := newUnary(op, x)
		if err != nil {
			continue
		}
		return n.simplify(), nil
	}
	return nil, err
}
