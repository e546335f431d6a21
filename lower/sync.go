package lower

import (
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kir"
)

// SynchronizationInsertion implements spec.md 4.9 pass 6: a block
// synchronization barrier is inserted between a writer of a shared-memory
// tensor and its reader whenever the two don't share an identical
// thread-parallel-axis set, since otherwise some threads could read a
// shared buffer slot before the thread responsible for writing it has
// caught up. The barrier is marked Aligned when every thread in the block
// reaches it (no thread-predicated divergence on the path between writer
// and reader), which lets the emitter choose the cheaper `__syncthreads()`
// form over a named-barrier variant.
func SynchronizationInsertion(stmts []kir.Stmt) []kir.Stmt {
	writerThreads := map[*ir.TensorView]threadSet{}
	kir.WalkStmts(stmts, func(s kir.Stmt) {
		if s.Kind != kir.StmtExpr || s.Expr == nil {
			return
		}
		for _, out := range s.Expr.Outputs() {
			if out.Tensor != nil && out.Tensor.MemoryType() == ir.Shared {
				writerThreads[out.Tensor] = threadsOf(out.Tensor)
			}
		}
	})

	out := make([]kir.Stmt, 0, len(stmts))
	for _, s := range stmts {
		if s.Kind == kir.StmtExpr && s.Expr != nil {
			readers := consumerThreads(s.Expr)
			for _, in := range s.Expr.Inputs() {
				tv := in.Tensor
				if tv == nil || tv.MemoryType() != ir.Shared {
					continue
				}
				writers, ok := writerThreads[tv]
				if !ok {
					continue
				}
				if !writers.equal(readers) {
					out = append(out, kir.BlockSync(writers.alignedWith(readers), false))
					break
				}
			}
		}
		out = append(out, s)
	}
	return out
}

// consumerThreads returns the thread-parallel axes of e's own output loop
// nest: the thread set that actually performs the read, as opposed to the
// thread set that produced the shared-memory input (which threadsOf(input)
// would just report back unchanged, since a TensorView's loop domain
// doesn't mutate between its write and a later read of it).
func consumerThreads(e *ir.Expression) threadSet {
	for _, out := range e.Outputs() {
		if out.Tensor != nil {
			return threadsOf(out.Tensor)
		}
	}
	return threadSet{}
}

// threadSet is the set of thread-parallel axes (TIDx/y/z) that index a
// tensor's loop nest, used to decide whether a shared-memory producer and
// consumer run on the same threads (no barrier needed) or different ones
// (barrier needed).
type threadSet map[ir.ParallelType]bool

func threadsOf(tv *ir.TensorView) threadSet {
	s := threadSet{}
	for _, d := range tv.Domain().Loop() {
		if d.ParallelType().IsThreadDim() {
			s[d.ParallelType()] = true
		}
	}
	return s
}

func (a threadSet) equal(b threadSet) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// alignedWith reports whether every thread reaches the barrier uniformly:
// true when the writer and reader thread sets are identical in size, since
// no subset of threads is predicated out on one side only.
func (a threadSet) alignedWith(b threadSet) bool {
	return len(a) == len(b)
}
