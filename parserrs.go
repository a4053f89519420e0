package mathexpr

import (
	"errors"
	"strconv"
)

var (
	// ErrEmptyExpression is returned when interpreting blank text.
	ErrEmptyExpression = errors.New("mathexpr: empty expression")
	// ErrClosed is returned by operations on a closed service, cache, or
	// computed expression.
	ErrClosed = errors.New("mathexpr: use of closed object")
)

// DefinitionError describes an invalid MathDefinition field.
type DefinitionError struct {
	// Field is the name of the offending field.
	Field string
	// Reason describes the problem.
	Reason string
}

func (err *DefinitionError) Error() string {
	return "invalid definition: " + err.Field + ": " + err.Reason
}

// UnrecognizedError explains why an expression or one of its parts could not
// be resolved into a tree. It is the value of ComputedExpression.Err for
// unrecognized expressions.
type UnrecognizedError struct {
	// Expression is the text, possibly containing extractor tokens, that
	// could not be resolved.
	Expression string
	// Reason describes the failure.
	Reason string
	// Err is an underlying error, if any.
	Err error
}

func (err *UnrecognizedError) Error() string {
	s := "unrecognized expression " + strconv.Quote(err.Expression) + ": " + err.Reason
	if err.Err != nil {
		s += ": " + err.Err.Error()
	}
	return s
}

func (err *UnrecognizedError) Unwrap() error {
	return err.Err
}

// unrecognized is a shortcut to create an UnrecognizedError.
func unrecognized(text, reason string) error {
	return &UnrecognizedError{Expression: text, Reason: reason}
}

// BracketError is an error indicating mismatched parentheses in the
// input. It implements InputError.
type BracketError struct {
	// Col is the byte position of the offending bracket.
	Col int
	// Left is the opening bracket.
	Left string
	// Right is the closing bracket.
	Right string
}

func (err *BracketError) Error() string {
	if err.Left == "" {
		return errpos(err.Col, "close bracket "+err.Right+" with no open bracket")
	}
	return errpos(err.Col, "open bracket "+err.Left+" with no close bracket")
}

func (err *BracketError) Pos() int {
	return err.Col
}

// LiteralError is an error indicating a string literal with no closing
// indicator. It implements InputError.
type LiteralError struct {
	// Col is the byte position of the opening indicator.
	Col int
	// Text is the unterminated literal.
	Text string
}

func (err *LiteralError) Error() string {
	return errpos(err.Col, "unterminated string literal "+strconv.Quote(err.Text))
}

func (err *LiteralError) Pos() int {
	return err.Col
}

// EvalError is an error from applying an operator or function to values it
// does not accept. Compute absorbs these; they are visible through
// ComputedExpression.Evaluate.
type EvalError struct {
	// Op is the operator or function name.
	Op string
	// Reason describes the failure.
	Reason string
}

func (err *EvalError) Error() string {
	return "cannot evaluate " + err.Op + ": " + err.Reason
}

// errpos is a shortcut to create an error message with a position.
func errpos(pos int, msg string) string {
	return strconv.Itoa(pos) + ": " + msg
}

// InputError is an error with position information. Every error resulting
// from malformed input text implements InputError.
type InputError interface {
	error
	// Pos returns the byte offset in the source text of the token that caused
	// the error.
	Pos() int
}

var (
	_ InputError = (*BracketError)(nil)
	_ InputError = (*LiteralError)(nil)
)
