package lower

import (
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kir"
)

// GridSyncInsertion implements spec.md 4.9 pass 7: a grid reduction needs
// every block to have finished its partial contribution before any block
// reads the combined result, which a block-local __syncthreads() cannot
// provide. A reduction, Welford or broadcast expression is wrapped with a
// GridSync immediately before it runs and another immediately after only
// when one of its output's loop axes is both a reduction axis and grid
// (BIDx/y/z) parallel; a broadcast whose grid axes are not reduction axes
// is not wrapped. The scratch buffer size is computed separately by
// getGridSyncBufferSize.
func GridSyncInsertion(stmts []kir.Stmt) []kir.Stmt {
	out := make([]kir.Stmt, 0, len(stmts))
	for _, s := range stmts {
		if s.Kind != kir.StmtExpr || s.Expr == nil || !needsGridSync(s.Expr) {
			out = append(out, s)
			continue
		}
		types, buf := gridSyncTarget(s.Expr)
		out = append(out, kir.GridSync(types, buf), s, kir.GridSync(types, buf))
	}
	return out
}

func needsGridSync(e *ir.Expression) bool {
	if e.Op() != ir.OpReduction && e.Op() != ir.OpWelford && e.Op() != ir.OpBroadcast {
		return false
	}
	for _, out := range e.Outputs() {
		if out.Tensor == nil {
			continue
		}
		for _, d := range out.Tensor.Domain().Loop() {
			if d.ParallelType().IsBlockDim() && d.IsReduction() {
				return true
			}
		}
	}
	return false
}

func gridSyncTarget(e *ir.Expression) ([]ir.ParallelType, *ir.TensorView) {
	var types []ir.ParallelType
	var buf *ir.TensorView
	for _, out := range e.Outputs() {
		if out.Tensor == nil {
			continue
		}
		buf = out.Tensor
		for _, d := range out.Tensor.Domain().Loop() {
			if d.ParallelType().IsBlockDim() && d.IsReduction() {
				types = append(types, d.ParallelType())
			}
		}
	}
	return types, buf
}

// getGridSyncBufferSize returns the byte size of the semaphore buffer one
// grid sync over the given parallel types needs: one int32 flag per block
// along each synchronized grid dimension, doubled for the acquire/release
// pair so a kernel launched back to back doesn't race the previous launch's
// release flags.
func getGridSyncBufferSize(gridDim [3]int, types []ir.ParallelType) int {
	blocks := 1
	for _, t := range types {
		switch t {
		case ir.BIDx:
			blocks *= gridDim[0]
		case ir.BIDy:
			blocks *= gridDim[1]
		case ir.BIDz:
			blocks *= gridDim[2]
		}
	}
	const int32Bytes = 4
	return blocks * int32Bytes * 2
}
