package lower

import (
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kir"
)

// MemoryAliasing implements spec.md 4.9 pass 9: two non-overlapping
// allocations of the same memory type and byte size can share one physical
// buffer instead of two. A later allocation is rewritten to alias an
// earlier one when the earlier allocation's last reader comes no later
// than the statement that first writes the later buffer, so the earlier
// buffer is provably dead (or, for the common single-op producer/consumer
// case, being read for the last time in the very statement that first
// writes the later buffer -- safe under read-before-write) by the time the
// later one needs its memory. Once an allocation's memory has been handed
// to a later one it is not offered again, so a third buffer aliases the
// most recent holder of that memory instead. Welford outputs are never aliased to one
// another or to anything else: the three outputs (count, mean, M2) are read
// and written interleaved throughout the reduction loop, so no pair of them
// ever has a quiet life-range gap to alias through.
func MemoryAliasing(stmts []kir.Stmt) []kir.Stmt {
	var allocs []*kir.Stmt
	for i := range stmts {
		if stmts[i].Kind == kir.StmtAllocate {
			allocs = append(allocs, &stmts[i])
		}
	}

	lastUse := map[*kir.Stmt]int{}
	firstWrite := map[*kir.Stmt]int{}
	for i := range stmts {
		s := &stmts[i]
		if s.Kind != kir.StmtExpr || s.Expr == nil {
			continue
		}
		for _, alloc := range allocs {
			if touchesBuffer(s.Expr, alloc.Buffer) {
				lastUse[alloc] = i
			}
			if _, ok := firstWrite[alloc]; !ok && writesBuffer(s.Expr, alloc.Buffer) {
				firstWrite[alloc] = i
			}
		}
	}

	reused := map[*kir.Stmt]bool{}
	for i, later := range allocs {
		if isWelfordOutput(later.Buffer) {
			continue
		}
		laterWrite, ok := firstWrite[later]
		if !ok {
			continue
		}
		for j := 0; j < i; j++ {
			earlier := allocs[j]
			if reused[earlier] || isWelfordOutput(earlier.Buffer) {
				continue
			}
			if earlier.AllocMemoryType != later.AllocMemoryType || !sameByteSize(earlier, later) {
				continue
			}
			if use, ok := lastUse[earlier]; ok && use <= laterWrite {
				later.AliasOf = earlier
				reused[earlier] = true
				break
			}
		}
	}
	return stmts
}

func writesBuffer(e *ir.Expression, tv *ir.TensorView) bool {
	for _, out := range e.Outputs() {
		if out.Tensor == tv {
			return true
		}
	}
	return false
}

func touchesBuffer(e *ir.Expression, tv *ir.TensorView) bool {
	for _, in := range e.Inputs() {
		if in.Tensor == tv {
			return true
		}
	}
	for _, out := range e.Outputs() {
		if out.Tensor == tv {
			return true
		}
	}
	return false
}

func sameByteSize(a, b *kir.Stmt) bool {
	if len(a.Shape) != len(b.Shape) {
		return false
	}
	for k := range a.Shape {
		ax, ay := a.Shape[k], b.Shape[k]
		if ax.IsConst() != ay.IsConst() {
			return false
		}
		if ax.IsConst() && ax.Int() != ay.Int() {
			return false
		}
	}
	return a.Buffer.DType() == b.Buffer.DType()
}

func isWelfordOutput(tv *ir.TensorView) bool {
	def := tv.Definition()
	return def != nil && def.Op() == ir.OpWelford
}
