package mathexpr

import (
	"strconv"
	"strings"
)

// constantsTable maps literal text to constant nodes. Several texts may name
// the same value; the reverse index maps each text to the key under which its
// node was first stored.
type constantsTable struct {
	byKey   map[string]*node
	reverse map[string]string
	// canon maps a canonical typed form of a value to its key.
	canon map[string]string
	n     int
}

func newConstantsTable() *constantsTable {
	return &constantsTable{
		byKey:   make(map[string]*node),
		reverse: make(map[string]string),
		canon:   make(map[string]string),
	}
}

// canonical produces a form of v that is equal for equal literals.
func canonical(v any) string {
	switch x := v.(type) {
	case int64:
		return "n:" + strconv.FormatInt(x, 10)
	case float64:
		return "f:" + strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return "b:" + strconv.FormatBool(x)
	case string:
		return "s:" + x
	case []byte:
		return "x:" + formatValue(x)
	default:
		return ""
	}
}

// tryAdd stores n under key. If key or an equal literal is already present,
// the existing node is returned and key becomes an alias for it.
func (t *constantsTable) tryAdd(key string, n *node) *node {
	if e := t.lookup(key); e != nil {
		return e
	}
	c := canonical(n.val)
	if k, ok := t.canon[c]; ok {
		t.reverse[key] = k
		return t.byKey[k]
	}
	t.byKey[key] = n
	t.canon[c] = key
	return n
}

// literal stores a string literal under a fresh key and returns the key.
func (t *constantsTable) literal(s string) string {
	key := placeholder("c", t.n)
	t.n++
	t.tryAdd(key, constant(s))
	return key
}

// lookup finds a constant by key, then through the reverse index.
func (t *constantsTable) lookup(key string) *node {
	if n := t.byKey[key]; n != nil {
		return n
	}
	if k, ok := t.reverse[key]; ok {
		return t.byKey[k]
	}
	return nil
}

// expressionSymbol is a named sub-expression.
type expressionSymbol struct {
	name string
	text string
	// call marks the text as a function call, name(args).
	call bool
}

// symbolTable holds the sub-expressions the extractor pulls out of the text.
// The root expression is the symbol with the empty name.
type symbolTable struct {
	byName  map[string]*expressionSymbol
	reverse map[string]string
	order   []*expressionSymbol
	n       int
}

func newSymbolTable() *symbolTable {
	return &symbolTable{
		byName:  make(map[string]*expressionSymbol),
		reverse: make(map[string]string),
	}
}

// setRoot sets the text of the root symbol.
func (t *symbolTable) setRoot(text string) {
	if r := t.byName[""]; r != nil {
		r.text = text
		return
	}
	r := &expressionSymbol{text: text}
	t.byName[""] = r
	t.order = append(t.order, r)
}

// root returns the text of the root symbol.
func (t *symbolTable) root() string {
	if r := t.byName[""]; r != nil {
		return r.text
	}
	return ""
}

// add registers a sub-expression and returns its name. Identical text yields
// the same name.
func (t *symbolTable) add(text string, call bool) string {
	text = strings.TrimSpace(text)
	if name, ok := t.reverse[text]; ok && t.byName[name].call == call {
		return name
	}
	name := placeholder("s", t.n)
	t.n++
	s := &expressionSymbol{name: name, text: text, call: call}
	t.byName[name] = s
	t.order = append(t.order, s)
	if _, ok := t.reverse[text]; !ok {
		t.reverse[text] = name
	}
	return name
}

// lookup finds a symbol by name.
func (t *symbolTable) lookup(name string) *expressionSymbol {
	if name == "" {
		return nil
	}
	return t.byName[name]
}

// parameter is a named argument slot.
type parameter struct {
	name string
	// index is the position of the parameter in the argument list.
	index int
	// hint is the kind implied by the parameter's uses, or Undefined.
	hint Kind
}

// parameterRegistry holds the parameters of one expression in order of first
// appearance.
type parameterRegistry struct {
	byName map[string]*parameter
	order  []*parameter
}

func newParameterRegistry() *parameterRegistry {
	return &parameterRegistry{byName: make(map[string]*parameter)}
}

// advertise returns the parameter with the given name, creating it if needed.
func (r *parameterRegistry) advertise(name string) *parameter {
	if p := r.byName[name]; p != nil {
		return p
	}
	p := &parameter{name: name, index: len(r.order)}
	r.byName[name] = p
	r.order = append(r.order, p)
	return p
}

func (r *parameterRegistry) lookup(name string) *parameter {
	return r.byName[name]
}

// clone creates an independent copy of the registry.
func (r *parameterRegistry) clone() *parameterRegistry {
	n := &parameterRegistry{
		byName: make(map[string]*parameter, len(r.order)),
		order:  make([]*parameter, len(r.order)),
	}
	for i, p := range r.order {
		q := *p
		n.order[i] = &q
		n.byName[q.name] = &q
	}
	return n
}

// names lists parameter names in argument order.
func (r *parameterRegistry) names() []string {
	s := make([]string, len(r.order))
	for i, p := range r.order {
		s[i] = p.name
	}
	return s
}

// placeholder creates a synthetic token such as @s0@.
func placeholder(prefix string, n int) string {
	return placeholderMark + prefix + strconv.Itoa(n) + placeholderMark
}

// placeholderLen returns the length of the synthetic token at the start of s,
// or 0 if there is none.
func placeholderLen(s string) int {
	if !strings.HasPrefix(s, placeholderMark) {
		return 0
	}
	i := len(placeholderMark)
	j := i
	for j < len(s) && 'a' <= s[j] && s[j] <= 'z' {
		j++
	}
	if j == i {
		return 0
	}
	k := j
	for k < len(s) && '0' <= s[k] && s[k] <= '9' {
		k++
	}
	if k == j || !strings.HasPrefix(s[k:], placeholderMark) {
		return 0
	}
	return k + len(placeholderMark)
}

// isOperatorPlaceholder reports whether tok is an escaped operator.
func isOperatorPlaceholder(tok string) bool {
	return strings.HasPrefix(tok, placeholderMark+"op")
}

// specialConstants are the named constants available in every expression.
// Each is reachable by its bare name and by its ASCII name inside the special
// symbol indicators.
var specialConstants = []struct {
	symbol string
	name   string
	value  float64
}{
	{"e", "e", 2.718281828459045},
	{"π", "pi", 3.141592653589793},
	{"φ", "phi", 1.618033988749895},
	{"β", "beta", 0.2801694990238691},
	{"γ", "gamma", 0.5772156649015329},
	{"λ", "lambda", 0.3036630028987326},
}

// addSpecialConstants registers the special constants using the indicators of
// def.
func (t *constantsTable) addSpecialConstants(def *MathDefinition) {
	for _, c := range specialConstants {
		n := &node{kind: nodeConst, val: c.value, typ: Numeric, name: c.symbol}
		t.byKey[c.symbol] = n
		if c.name != c.symbol {
			t.reverse[def.SpecialSymbolIndicators.Open+c.name+def.SpecialSymbolIndicators.Close] = c.symbol
		}
		t.reverse[def.SpecialSymbolIndicators.Open+c.symbol+def.SpecialSymbolIndicators.Close] = c.symbol
	}
}
