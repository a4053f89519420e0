// Package mathexpr interprets textual mathematical and logical expressions
// into reusable computed expressions.
//
// An expression is interpreted once and evaluated any number of times:
//
//	svc, _ := mathexpr.NewService()
//	e, _ := svc.Interpret(ctx, "x^2 + 2*x*y + y^2")
//	v, _ := e.Compute(3, 4) // int64(49)
//
// Values are numbers (int64 or float64), booleans, strings, and binary
// literals such as 0b1010, which evaluate to big-endian byte slices of any
// length. String literals are quoted, with a doubled quote standing for one
// quote. Parameters are bound in order of first appearance.
//
// Binary operators bind in one of two fixed orders. With Mathematical
// precedence, loosest first:
//
//	& | #
//	= != < <= > >=
//	<< >>
//	+ -
//	* /
//	^
//
// With CStyle precedence, | binds loosest, then #, then &, then equality
// before the relational comparisons. In both, ^ groups right to left and
// everything else left to right. Prefix - + and ! apply to a whole operand,
// so "-2^2" is 4.
//
// Interpretation never fails because of malformed text. An expression that
// cannot be interpreted evaluates to its own source text; check
// RecognizedCorrectly, or use Evaluate to get the reason as an error.
package mathexpr
