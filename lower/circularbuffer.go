package lower

import (
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kir"
)

// CircularBufferExpansion implements spec.md 4.9 pass 8: a tensor with a
// circular-buffer depth requests that its producer loop run `depth - 1`
// iterations ahead of its consumer. For depth > 2 the allocation is
// followed by one barrier init per stage, depth-1 prologue staged loads
// (each an async copy followed by its arrive), a single wait on stage
// depth-1, and one barrier invalidate per stage. The last stage's load is
// not replicated, and no per-iteration wait or buffer-pointer rotation is
// emitted. Depth 2 is handled by expandDoubleBuffer.
func CircularBufferExpansion(stmts []kir.Stmt) []kir.Stmt {
	out := make([]kir.Stmt, 0, len(stmts))
	for _, s := range stmts {
		if s.Kind != kir.StmtAllocate || s.Buffer == nil || s.Buffer.CircularBufferDepth() <= 1 {
			out = append(out, s)
			continue
		}
		out = append(out, expandCircularBuffer(s)...)
	}
	return out
}

func expandCircularBuffer(alloc kir.Stmt) []kir.Stmt {
	tv := alloc.Buffer
	depth := tv.CircularBufferDepth()

	if depth == 2 {
		return expandDoubleBuffer(alloc, tv)
	}

	stmts := []kir.Stmt{alloc}
	for stage := 0; stage < depth; stage++ {
		stmts = append(stmts, kir.Stmt{Kind: kir.StmtBarrierInit, BarrierStage: stage})
	}

	prologueStages := depth - 1
	for stage := 0; stage < prologueStages; stage++ {
		stmts = append(stmts, stagedLoad(tv, stage)...)
	}

	stmts = append(stmts, kir.Stmt{Kind: kir.StmtBarrierWait, BarrierStage: prologueStages % depth})
	for stage := 0; stage < depth; stage++ {
		stmts = append(stmts, kir.Stmt{Kind: kir.StmtBarrierInvalidate, BarrierStage: stage})
	}
	return stmts
}

// expandDoubleBuffer handles circular-buffer depth 2 as NVFuser's
// DoubleBufferPass historically did, before it was unified with
// CircularBufferPass: a single prologue load followed by one aligned
// __syncthreads instead of the full mbarrier init/arrive/wait/
// invalidate sequence a deeper pipeline needs.
func expandDoubleBuffer(alloc kir.Stmt, tv *ir.TensorView) []kir.Stmt {
	stmts := []kir.Stmt{alloc}
	stmts = append(stmts, kir.Stmt{Kind: kir.StmtTensorIndex, View: tv})
	stmts = append(stmts, kir.BlockSync(true, false))
	return stmts
}

// stagedLoad issues stage's async copy and its matching arrive. The main
// loop body this feeds is constructed by the scheduler's loop-nest
// traversal, not here; this pass only owns the prologue staging and the
// barrier bookkeeping bracketing it, per spec.md 4.9's description of
// circular buffer expansion as a mechanical replication of the load
// statement rather than a rewrite of the surrounding loop structure.
func stagedLoad(tv *ir.TensorView, stage int) []kir.Stmt {
	return []kir.Stmt{
		{Kind: kir.StmtTensorIndex, View: tv},
		{Kind: kir.StmtBarrierArrive, BarrierStage: stage},
	}
}
