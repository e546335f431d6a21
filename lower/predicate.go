package lower

import (
	"fmt"

	"github.com/zerfoo/fusegen/domaingraph"
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kerr"
	"github.com/zerfoo/fusegen/kir"
	"github.com/zerfoo/fusegen/runtimeinfo"
)

// concretization records which IterType a broadcast IterDomain was resolved
// to by the first expression that consumed it, so a later expression
// resolving the same axis a different way can be caught rather than
// silently producing divergent index math for the two consumers.
type concretization struct {
	iterType ir.IterType
	source   *ir.Expression
}

// PredicateInsertion implements spec.md 4.9 pass 4. It wraps every
// expression in an IfThenElse guard when its output's loop nest contains an
// axis whose defining split does not evenly divide the parent extent
// (determined at schedule time by IdExpr.Divisible, re-checked here as a
// runtime predicate since the extent itself may only be known at bind
// time). A divisible split needs no guard: every thread's index is
// in-bounds by construction. A vectorized axis cannot be partially
// predicated -- the load/store instruction always touches its full width --
// so a non-divisible vectorized split instead produces a StmtRuntimeAssert
// hoisted once to the front of the statement list: idm/ri let this check
// resolve the split's pre-split extent to whatever is actually bound for
// this invocation, so the same schedule can pass for one bound extent and
// fail for another rather than being rejected identically for every input
// the moment the extent is merely symbolic at schedule time.
func PredicateInsertion(exprs []*ir.Expression, idm *domaingraph.IdModel, ri *runtimeinfo.RuntimeInfo) ([]kir.Stmt, error) {
	concretized := map[*ir.IterDomain]concretization{}
	stmts := make([]kir.Stmt, 0, len(exprs))
	var guards []kir.Stmt

	for _, e := range exprs {
		for _, out := range e.Outputs() {
			if out.Tensor == nil {
				continue
			}
			if err := checkBroadcastConcretization(out.Tensor, e, concretized); err != nil {
				return nil, err
			}
		}

		pred, guard, err := loopPredicate(e, idm, ri)
		if err != nil {
			return nil, err
		}
		if guard != nil {
			guards = append(guards, *guard)
		}

		body := kir.Stmt{Kind: kir.StmtExpr, Expr: e}
		if pred != nil {
			stmts = append(stmts, kir.IfThenElse(pred, []kir.Stmt{body}, nil))
		} else {
			stmts = append(stmts, body)
		}
	}
	return append(guards, stmts...), nil
}

// checkBroadcastConcretization records, the first time a broadcast axis is
// consumed by a non-broadcast expression, which IterType it was resolved
// to. A second expression resolving the same axis to a different IterType
// means the fusion asked for two incompatible concrete shapes for one
// broadcast dimension, which has no single valid index computation.
func checkBroadcastConcretization(tv *ir.TensorView, e *ir.Expression, seen map[*ir.IterDomain]concretization) error {
	for _, d := range tv.Domain().Root() {
		if !d.IsBroadcast() || d.IterType() == ir.Broadcast {
			continue
		}
		if prior, ok := seen[d]; ok {
			if prior.iterType != d.IterType() {
				return fmt.Errorf("axis concretized as %v by %s and %v by %s: %w",
					prior.iterType, prior.source.Name(), d.IterType(), e.Name(), kerr.NonUniquelyConcretizedBroadcast)
			}
			continue
		}
		seen[d] = concretization{iterType: d.IterType(), source: e}
	}
	return nil
}

// loopPredicate builds the bounds-check guard for e's first output tensor
// (nil if every axis in its loop domain is either a divisible split or
// unsplit), plus a hoisted StmtRuntimeAssert (nil if none is needed) for
// any vectorized axis whose split cannot be proven divisible at schedule
// time.
func loopPredicate(e *ir.Expression, idm *domaingraph.IdModel, ri *runtimeinfo.RuntimeInfo) (*ir.Value, *kir.Stmt, error) {
	outs := e.Outputs()
	if len(outs) == 0 || outs[0].Tensor == nil {
		return nil, nil, nil
	}
	tv := outs[0].Tensor
	f := tv.Fusion()

	var clauses []string
	var guard *kir.Stmt
	needsMagicZero := false
	vectorizedSplits := map[*ir.IdExpr]bool{}
	for _, d := range tv.Domain().Loop() {
		if d.ParallelType() == ir.Vectorize || d.ParallelType() == ir.MisalignedVectorize {
			vectorizedSplits[d.Definition()] = true
		}
	}
	for _, d := range tv.Domain().Loop() {
		if d.ParallelType() == ir.Unroll {
			needsMagicZero = true
		}

		def := d.Definition()
		if def == nil || def.Kind() != ir.SplitExpr || def.Divisible() {
			continue
		}
		if d.ParallelType() == ir.Vectorize || d.ParallelType() == ir.MisalignedVectorize {
			g, err := vectorizationGuard(def, tv, idm, ri)
			if err != nil {
				return nil, nil, err
			}
			guard = g
			continue
		}
		if vectorizedSplits[def] {
			// The other output of a vectorized split is covered by that
			// split's hoisted runtime assert.
			continue
		}
		clauses = append(clauses, fmt.Sprintf("idx(id%d) < %s", d.ID(), def.Inputs()[0].Extent()))
	}
	if len(clauses) == 0 {
		return nil, guard, nil
	}

	name := clauses[0]
	for _, c := range clauses[1:] {
		name = name + " && " + c
	}
	// A thread's unrolled last iteration computes an index expression that
	// is mathematically in-bounds but whose constant-folded form can look
	// out-of-bounds to naive range analysis once the unroll offset is baked
	// in; adding a symbolic, provably-zero term keeps this comparison from
	// being folded away for that iteration.
	if needsMagicZero {
		name += " + magic_zero"
	}

	pred := ir.NewSymbolicValue(f, ir.Bool)
	pred.SetName(name)
	return pred, guard, nil
}

// vectorizationGuard handles a vectorized axis whose defining split is not
// provably divisible. A vectorized load/store can't be partially
// predicated, so there is no per-iteration guard to build; instead this
// resolves def's pre-split extent against ri (via idm's Exact map to a
// bound input root) to decide now, for this invocation, whether the split
// is actually safe. A concretely non-divisible extent is a genuine
// run-time validation failure (VectorizationStrideViolation). An extent
// that resolves concretely-divisible, or that can't be resolved at all
// (still purely symbolic for this fusion), gets a StmtRuntimeAssert
// hoisted to kernel entry instead of being rejected outright: the same
// compiled schedule must be free to succeed for one bound extent and fail
// only at bind time for another.
func vectorizationGuard(def *ir.IdExpr, tv *ir.TensorView, idm *domaingraph.IdModel, ri *runtimeinfo.RuntimeInfo) (*kir.Stmt, error) {
	preSplit := def.Inputs()[0]
	factor := def.Factor()

	if factor.IsConst() {
		if extent, ok := concreteExtent(preSplit, idm, ri); ok {
			if extent%factor.Int() != 0 {
				return nil, fmt.Errorf("vectorized axis split by non-divisible factor %s on %s (bound extent %d): %w",
					factor, tv.Name(), extent, kerr.VectorizationStrideViolation)
			}
		}
	}

	f := tv.Fusion()
	name := fmt.Sprintf("ceilDiv(%s, %s) * %s == %s", preSplit.Extent(), factor, factor, preSplit.Extent())
	pred := ir.NewSymbolicValue(f, ir.Bool)
	pred.SetName(name)
	msg := fmt.Sprintf("vectorized axis on %s requires extent divisible by %s", tv.Name(), factor)
	g := kir.RuntimeAssert(pred, msg)
	return &g, nil
}

// concreteExtent resolves id's extent to a concrete value bound by ri, via
// idm's Exact map to a bound input's root domain. Returns ok=false when id
// is not (yet) exact-mapped to any bound input -- still purely symbolic
// for this invocation, deferred to the hoisted runtime guard.
func concreteExtent(id *ir.IterDomain, idm *domaingraph.IdModel, ri *runtimeinfo.RuntimeInfo) (int64, bool) {
	if id.Extent().IsConst() {
		return id.Extent().Int(), true
	}
	if idm == nil || ri == nil {
		return 0, false
	}
	for _, in := range id.Fusion().Inputs() {
		if in.Tensor == nil {
			continue
		}
		meta, ok := ri.Metadata(in.Tensor)
		if !ok {
			continue
		}
		for i, root := range in.Tensor.Domain().Root() {
			if i >= len(meta.Shape) {
				break
			}
			mapped, err := idm.AreMapped(id, root, domaingraph.Exact)
			if err == nil && mapped {
				return meta.Shape[i], true
			}
		}
	}
	return 0, false
}
