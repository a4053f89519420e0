package mathexpr

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// identifierSuffix matches an identifier at the end of a string.
var identifierSuffix = regexp.MustCompile(`[\p{L}_][\p{L}\p{N}_.]*$`)

// extract runs the extraction pipeline over src, leaving the root expression
// text in the symbol table and every literal and parameter registered.
func (w *workingSet) extract(src string) error {
	text, err := w.extractLiterals(src)
	if err != nil {
		return err
	}
	w.syms.setRoot(text)
	text = w.escapeOperators(text)
	w.syms.setRoot(text)
	text = w.flattenGroups(text)
	w.syms.setRoot(text)
	w.populate(text, make(map[string]bool))
	return nil
}

// extractLiterals replaces each string literal in src with a constant key.
// A doubled indicator inside a literal stands for one indicator. It also
// checks that parentheses outside literals are balanced, so that errors carry
// positions in the original text, and that the text does not use the
// placeholder mark.
func (w *workingSet) extractLiterals(src string) (string, error) {
	q := w.def.StringIndicator
	open, close := w.def.Parentheses.Open, w.def.Parentheses.Close
	var b strings.Builder
	var depth []int
	for i := 0; i < len(src); {
		switch {
		case strings.HasPrefix(src[i:], q):
			start := i
			i += len(q)
			var lit strings.Builder
			for {
				k := strings.Index(src[i:], q)
				if k < 0 {
					return "", &LiteralError{Col: start, Text: src[start:]}
				}
				lit.WriteString(src[i : i+k])
				i += k + len(q)
				if !strings.HasPrefix(src[i:], q) {
					break
				}
				// Escaped indicator.
				lit.WriteString(q)
				i += len(q)
			}
			b.WriteString(w.consts.literal(lit.String()))
			continue
		case strings.HasPrefix(src[i:], placeholderMark):
			return "", unrecognized(src, errpos(i, "reserved character "+placeholderMark))
		case strings.HasPrefix(src[i:], open):
			depth = append(depth, i)
			b.WriteString(open)
			i += len(open)
			continue
		case strings.HasPrefix(src[i:], close):
			if len(depth) == 0 {
				return "", &BracketError{Col: i, Right: close}
			}
			depth = depth[:len(depth)-1]
			b.WriteString(close)
			i += len(close)
			continue
		}
		_, sz := utf8.DecodeRuneInString(src[i:])
		b.WriteString(src[i : i+sz])
		i += sz
	}
	if len(depth) != 0 {
		return "", &BracketError{Col: depth[len(depth)-1], Left: open, Right: close}
	}
	return b.String(), nil
}

// escapeOperators replaces every operator symbol that contains another
// operator symbol with a placeholder, longest symbols first, both in text and
// in the working definition.
func (w *workingSet) escapeOperators(text string) string {
	type sym struct {
		op  operator
		str string
	}
	var long []sym
	for _, k := range allOperators {
		s := *w.def.symbol(k)
		for _, j := range allOperators {
			if j != k && strings.Contains(s, *w.def.symbol(j)) {
				long = append(long, sym{k, s})
				break
			}
		}
	}
	sort.SliceStable(long, func(i, j int) bool { return len(long[i].str) > len(long[j].str) })
	for i, s := range long {
		p := placeholder("op", i)
		text = strings.ReplaceAll(text, s.str, p)
		*w.def.symbol(s.op) = p
	}
	return text
}

// flattenGroups repeatedly replaces the innermost parenthesized group with a
// symbol until no parentheses remain. A group preceded by an identifier is a
// function call and is stored with its name.
func (w *workingSet) flattenGroups(text string) string {
	open, close := w.def.Parentheses.Open, w.def.Parentheses.Close
	for {
		r := strings.Index(text, close)
		if r < 0 {
			return text
		}
		l := strings.LastIndex(text[:r], open)
		if l < 0 {
			// Unreachable after extractLiterals checked the brackets.
			return text
		}
		inner := text[l+len(open) : r]
		end := r + len(close)
		before := strings.TrimRightFunc(text[:l], unicode.IsSpace)
		if m := identifierSuffix.FindStringIndex(before); m != nil && w.callable(before[m[0]:]) {
			name := before[m[0]:]
			sym := w.syms.add(name+open+inner+close, true)
			text = text[:m[0]] + sym + text[end:]
			continue
		}
		sym := w.syms.add(inner, false)
		text = text[:l] + sym + text[end:]
	}
}

// callable reports whether an identifier before a group names a function
// call rather than an operand, e.g. the special constant e.
func (w *workingSet) callable(name string) bool {
	if w.consts.lookup(name) != nil {
		return false
	}
	_, ok := parseLiteral(name)
	return !ok
}

// populate registers the literals and parameters in text, descending into
// referenced symbols in the order they appear.
func (w *workingSet) populate(text string, seen map[string]bool) {
	for _, tok := range w.operands(text) {
		if s := w.syms.lookup(tok); s != nil {
			if seen[tok] {
				continue
			}
			seen[tok] = true
			if s.call {
				if m := w.fnre.FindStringSubmatch(s.text); m != nil {
					w.populate(m[2], seen)
				}
				continue
			}
			w.populate(s.text, seen)
			continue
		}
		if placeholderLen(tok) == len(tok) || w.consts.lookup(tok) != nil {
			continue
		}
		if v, ok := parseLiteral(tok); ok {
			w.consts.tryAdd(tok, constant(v))
			continue
		}
		if identifier.MatchString(tok) {
			w.params.advertise(tok)
		}
	}
}

// operands splits text on operators, separators, and whitespace. Synthetic
// tokens stay whole; escaped operators separate operands like any other.
func (w *workingSet) operands(text string) []string {
	var r []string
	start := 0
	flush := func(end int) {
		if s := strings.TrimSpace(text[start:end]); s != "" {
			r = append(r, s)
		}
	}
	for i := 0; i < len(text); {
		if n := placeholderLen(text[i:]); n > 0 {
			if isOperatorPlaceholder(text[i : i+n]) {
				flush(i)
				start = i + n
			}
			i += n
			continue
		}
		if n := w.delimiterAt(text[i:]); n > 0 {
			flush(i)
			i += n
			start = i
			continue
		}
		c, sz := utf8.DecodeRuneInString(text[i:])
		if unicode.IsSpace(c) {
			flush(i)
			start = i + sz
		}
		i += sz
	}
	flush(len(text))
	return r
}

// delimiterAt returns the length of the operator or separator symbol at the
// start of s, or 0 if there is none.
func (w *workingSet) delimiterAt(s string) int {
	if strings.HasPrefix(s, w.def.ParameterSeparator) {
		return len(w.def.ParameterSeparator)
	}
	n := 0
	for _, k := range allOperators {
		sym := *w.def.symbol(k)
		if len(sym) > n && strings.HasPrefix(s, sym) {
			n = len(sym)
		}
	}
	return n
}
