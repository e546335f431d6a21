// Package heuristic implements the Heuristic Registry of spec.md 4.4: a
// fixed-priority-order dispatch over one Scheduler per heuristic kind, each
// gated by compile-time and run-time checks, producing the Params a
// schedule.Scheduler consumes to transform a Fusion's TensorViews.
package heuristic

// Kind identifies a registered scheduler. Dispatch always tries these in
// the fixed order declared by Registry.order (spec.md 4.4).
type Kind int

const (
	ExprEval Kind = iota
	NoOp
	Matmul
	Transpose
	InnerPersistent
	OuterPersistent
	InnerOuterPersistent
	Reduction
	PointWise
)

func (k Kind) String() string {
	switch k {
	case ExprEval:
		return "expr_eval"
	case NoOp:
		return "no_op"
	case Matmul:
		return "matmul"
	case Transpose:
		return "transpose"
	case InnerPersistent:
		return "inner_persistent"
	case OuterPersistent:
		return "outer_persistent"
	case InnerOuterPersistent:
		return "inner_outer_persistent"
	case Reduction:
		return "reduction"
	case PointWise:
		return "pointwise"
	default:
		return "unknown"
	}
}
