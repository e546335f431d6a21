package heuristic

import (
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/runtimeinfo"
	"github.com/zerfoo/fusegen/schedule"
)

// ExprEvalParams carries nothing: the expression evaluator runs the
// fusion by interpreting it against bindings rather than scheduling a
// kernel loop nest.
type ExprEvalParams struct{}

func (ExprEvalParams) isHeuristicParams() {}

// exprEvalScheduler handles fusions with no tensor-valued output at all
// (every output is a scalar Value derived by constant folding or scalar
// arithmetic) plus any fusion containing an SDPA op, which this compiler
// defers entirely to the expression-evaluator collaborator rather than
// generating a fused attention kernel.
type exprEvalScheduler struct{}

func newExprEvalScheduler() *exprEvalScheduler { return &exprEvalScheduler{} }

func (*exprEvalScheduler) Kind() Kind { return ExprEval }

func (*exprEvalScheduler) CanScheduleCompileTime(f *ir.Fusion) bool {
	if hasOp(f, ir.OpSdpa) {
		return true
	}
	if len(f.Outputs()) == 0 {
		return false
	}
	for _, out := range f.Outputs() {
		if out.Tensor != nil {
			return false
		}
	}
	return true
}

func (*exprEvalScheduler) CanScheduleRunTime(*ir.Fusion, *runtimeinfo.RuntimeInfo, *Summary) bool {
	return true
}

func (*exprEvalScheduler) ComputeHeuristics(*ir.Fusion, *runtimeinfo.RuntimeInfo, *Summary) (Params, error) {
	return ExprEvalParams{}, nil
}

func (*exprEvalScheduler) Schedule(*ir.Fusion, *schedule.Scheduler, Params) error {
	return nil
}

// NoOpParams carries nothing: the fusion has no expressions to schedule.
type NoOpParams struct{}

func (NoOpParams) isHeuristicParams() {}

// noOpScheduler handles a fusion whose outputs are fusion inputs passed
// straight through (an empty expression list): nothing to lower.
type noOpScheduler struct{}

func newNoOpScheduler() *noOpScheduler { return &noOpScheduler{} }

func (*noOpScheduler) Kind() Kind { return NoOp }

func (*noOpScheduler) CanScheduleCompileTime(f *ir.Fusion) bool {
	return len(f.Expressions()) == 0
}

func (*noOpScheduler) CanScheduleRunTime(*ir.Fusion, *runtimeinfo.RuntimeInfo, *Summary) bool {
	return true
}

func (*noOpScheduler) ComputeHeuristics(*ir.Fusion, *runtimeinfo.RuntimeInfo, *Summary) (Params, error) {
	return NoOpParams{}, nil
}

func (*noOpScheduler) Schedule(*ir.Fusion, *schedule.Scheduler, Params) error {
	return nil
}
