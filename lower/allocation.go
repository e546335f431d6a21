package lower

import (
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kir"
)

// AllocationPlacement implements spec.md 4.9 pass 2: every TensorView
// produced by an expression in exprs that is not a fusion output gets one
// kir.Allocate, in order of first production, returned as a flat statement
// list. No loop position is derived from compute-at depth, and unswitched
// shared-memory tensors (unswitchedSharedMemory) are not placed any
// differently from other tensors. Circular-buffered tensors have each
// constant extent multiplied by their buffering depth so every pipeline
// stage has a distinct physical slot.
func AllocationPlacement(exprs []*ir.Expression) []kir.Stmt {
	var stmts []kir.Stmt
	seen := map[*ir.TensorView]bool{}

	for _, e := range exprs {
		for _, out := range e.Outputs() {
			tv := out.Tensor
			if tv == nil || tv.IsFusionOutput() || seen[tv] {
				continue
			}
			seen[tv] = true
			stmts = append(stmts, allocateStmt(tv))
		}
	}
	return stmts
}

func allocateStmt(tv *ir.TensorView) kir.Stmt {
	shape := make([]*ir.Value, 0, len(tv.Domain().Allocation()))
	for _, d := range tv.Domain().Allocation() {
		shape = append(shape, d.Extent())
	}

	depth := tv.CircularBufferDepth()
	if depth > 1 {
		for i, d := range tv.Domain().Allocation() {
			if d.Extent().IsConst() {
				shape[i] = ir.NewIntConst(tv.Fusion(), d.Extent().Int()*int64(depth))
			}
		}
	}

	return kir.Allocate(tv, tv.MemoryType(), shape)
}

// unswitchedSharedMemory reports whether tv's loop nest both has an
// Unswitch axis and lives in shared memory: such a buffer must be placed
// at the outermost allocation slot since both unswitch branches alias the
// same memory (issue-1133 invariant), never a per-branch slot.
func unswitchedSharedMemory(tv *ir.TensorView) bool {
	if tv.MemoryType() != ir.Shared {
		return false
	}
	for _, d := range tv.Domain().Loop() {
		if d.ParallelType() == ir.Unswitch {
			return true
		}
	}
	return false
}
