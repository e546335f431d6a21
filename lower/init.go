package lower

import (
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kir"
)

// InitializationInsertion implements spec.md 4.9 pass 3: reduction and
// Welford outputs need a zero/default fill before the loop that
// accumulates into them runs. A cp.async-backed cache load initializes its
// own destination as a side effect of the instruction, so giving it an
// explicit init would double-initialize memory the hardware instruction
// already owns.
func InitializationInsertion(allocs []kir.Stmt, exprs []*ir.Expression) []kir.Stmt {
	needsInit := map[*ir.TensorView]bool{}
	for _, e := range exprs {
		if e.Op() != ir.OpReduction && e.Op() != ir.OpWelford {
			continue
		}
		for _, out := range e.Outputs() {
			if out.Tensor != nil {
				needsInit[out.Tensor] = true
			}
		}
	}

	out := make([]kir.Stmt, 0, len(allocs))
	for _, stmt := range allocs {
		if stmt.Kind != kir.StmtAllocate {
			out = append(out, stmt)
			continue
		}
		if needsInit[stmt.Buffer] && !isCpAsyncBacked(stmt.Buffer) {
			stmt.ZeroInit = true
		}
		out = append(out, stmt)
	}
	return out
}

func isCpAsyncBacked(tv *ir.TensorView) bool {
	return tv.CacheOp() == ir.CacheCpAsync || tv.CacheOp() == ir.CacheCpAsyncBulkTensorTile
}
