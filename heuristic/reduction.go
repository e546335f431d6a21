package heuristic

import (
	"fmt"

	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kerr"
	"github.com/zerfoo/fusegen/runtimeinfo"
	"github.com/zerfoo/fusegen/schedule"
)

// ReductionParams covers the shared shape of the inner-reduction and
// plain (non-persistent) reduction schedule (spec.md 4.6).
type ReductionParams struct {
	Persistent               bool
	SharedMemoryPersistent   bool
	SplitGridDimInnerReduction bool
	SplitGridDimIterDomOuter   bool
}

func (ReductionParams) isHeuristicParams() {}

func reductionAxisIsInner(tv *ir.TensorView) bool {
	logical := tv.Domain().Root()
	for i := len(logical) - 1; i >= 0; i-- {
		if logical[i].IsReduction() {
			return i == len(logical)-1
		}
	}
	return false
}

func findReductionOutput(f *ir.Fusion) *ir.TensorView {
	for _, e := range f.Expressions() {
		if e.Op() == ir.OpReduction || e.Op() == ir.OpWelford {
			for _, out := range e.Outputs() {
				if out.Tensor != nil {
					return out.Tensor
				}
			}
		}
	}
	return nil
}

func hasInnerAndOuterReduction(f *ir.Fusion) bool {
	sawInner, sawOuter := false, false
	for _, e := range f.Expressions() {
		if e.Op() != ir.OpReduction && e.Op() != ir.OpWelford {
			continue
		}
		for _, out := range e.Outputs() {
			if out.Tensor == nil {
				continue
			}
			if reductionAxisIsInner(out.Tensor) {
				sawInner = true
			} else {
				sawOuter = true
			}
		}
	}
	return sawInner && sawOuter
}

// reductionScheduler is the plain (non-persistent) inner-reduction
// scheduler: parallelize the reduction axis across TIDx (and BIDx for a
// grid reduction), the iteration axis across the remaining grid dims.
type reductionScheduler struct{}

func newReductionScheduler() *reductionScheduler { return &reductionScheduler{} }

func (*reductionScheduler) Kind() Kind { return Reduction }

func (*reductionScheduler) CanScheduleCompileTime(f *ir.Fusion) bool {
	return hasOp(f, ir.OpReduction, ir.OpWelford) && !hasInnerAndOuterReduction(f)
}

func (*reductionScheduler) CanScheduleRunTime(f *ir.Fusion, _ *runtimeinfo.RuntimeInfo, summary *Summary) bool {
	out := findReductionOutput(f)
	// Falls back to the plain scheduler when the persistent-buffer budget
	// would force a grid-synchronized, non-persistent reduction: this
	// happens when the reduction is too large to keep resident, which the
	// persistent schedulers below reject via their own gates.
	return out != nil && reductionAxisIsInner(out)
}

func (s *reductionScheduler) ComputeHeuristics(f *ir.Fusion, ri *runtimeinfo.RuntimeInfo, summary *Summary) (Params, error) {
	out := findReductionOutput(f)
	if out == nil {
		return nil, fmt.Errorf("reduction scheduler found no reduction output")
	}
	root := out.Domain().Root()
	var reductionExtent, iterExtent int64 = 1, 1
	for _, d := range root {
		if d.Extent().IsConst() {
			if d.IsReduction() {
				reductionExtent *= d.Extent().Int()
			} else {
				iterExtent *= d.Extent().Int()
			}
		}
	}
	return ReductionParams{
		SplitGridDimInnerReduction: reductionExtent > maxGridDim,
		SplitGridDimIterDomOuter:   iterExtent > maxGridDim,
	}, nil
}

func (s *reductionScheduler) Schedule(f *ir.Fusion, sch *schedule.Scheduler, params Params) error {
	p := params.(ReductionParams)
	out := findReductionOutput(f)
	if out == nil {
		return fmt.Errorf("reduction scheduler found no reduction output")
	}
	loop := out.Domain().Loop()
	for i, d := range loop {
		if d.IsReduction() {
			if err := sch.Parallelize(out, i, ir.TIDx); err != nil {
				return err
			}
			if p.SplitGridDimInnerReduction {
				if err := sch.Split(out, i, ir.NewIntConst(f, maxGridDim), true); err != nil {
					return err
				}
			}
		} else {
			if err := sch.Parallelize(out, i, ir.BIDx); err != nil {
				return err
			}
		}
	}
	return nil
}

// innerPersistentScheduler keeps the reduced value resident (registers or
// shared memory) to avoid a second kernel launch, used when the
// persistent-buffer size fits the device's per-block budget.
type innerPersistentScheduler struct{}

func newInnerPersistentScheduler() *innerPersistentScheduler { return &innerPersistentScheduler{} }

func (*innerPersistentScheduler) Kind() Kind { return InnerPersistent }

func (*innerPersistentScheduler) CanScheduleCompileTime(f *ir.Fusion) bool {
	out := findReductionOutput(f)
	return hasOp(f, ir.OpReduction, ir.OpWelford) && !hasInnerAndOuterReduction(f) && out != nil && reductionAxisIsInner(out)
}

func (*innerPersistentScheduler) CanScheduleRunTime(f *ir.Fusion, ri *runtimeinfo.RuntimeInfo, summary *Summary) bool {
	return summary.PersistentBufferBytes > 0 && summary.PersistentBufferBytes <= int64(ri.Capability().MaxShmemPerBlock)
}

func (*innerPersistentScheduler) ComputeHeuristics(f *ir.Fusion, ri *runtimeinfo.RuntimeInfo, summary *Summary) (Params, error) {
	shared := summary.PersistentBufferBytes > int64(ri.Capability().MaxRegsPerThread)*4*int64(ri.Capability().WarpSize)
	if shared && summary.PersistentBufferBytes > int64(ri.Capability().MaxShmemPerBlock) {
		return nil, fmt.Errorf("persistent buffer %d bytes exceeds device shared-memory limit %d: %w", summary.PersistentBufferBytes, ri.Capability().MaxShmemPerBlock, kerr.SharedMemoryOverflow)
	}
	return ReductionParams{Persistent: true, SharedMemoryPersistent: shared}, nil
}

func (s *innerPersistentScheduler) Schedule(f *ir.Fusion, sch *schedule.Scheduler, params Params) error {
	p := params.(ReductionParams)
	out := findReductionOutput(f)
	if out == nil {
		return fmt.Errorf("inner-persistent scheduler found no reduction output")
	}
	for i, d := range out.Domain().Loop() {
		if d.IsReduction() {
			if err := sch.Parallelize(out, i, ir.TIDx); err != nil {
				return err
			}
		}
	}
	if p.SharedMemoryPersistent {
		sch.SetMemoryType(out, ir.Shared)
	}
	return nil
}

// outerPersistentScheduler tiles the iteration axis and keeps partial sums
// persistent per thread across iterations, for reductions whose reduced
// axis is outer.
type outerPersistentScheduler struct{}

func newOuterPersistentScheduler() *outerPersistentScheduler { return &outerPersistentScheduler{} }

func (*outerPersistentScheduler) Kind() Kind { return OuterPersistent }

func (*outerPersistentScheduler) CanScheduleCompileTime(f *ir.Fusion) bool {
	out := findReductionOutput(f)
	return hasOp(f, ir.OpReduction, ir.OpWelford) && !hasInnerAndOuterReduction(f) && out != nil && !reductionAxisIsInner(out)
}

func (*outerPersistentScheduler) CanScheduleRunTime(f *ir.Fusion, ri *runtimeinfo.RuntimeInfo, summary *Summary) bool {
	return summary.PersistentBufferBytes > 0 && summary.PersistentBufferBytes <= int64(ri.Capability().MaxShmemPerBlock)
}

func (*outerPersistentScheduler) ComputeHeuristics(f *ir.Fusion, ri *runtimeinfo.RuntimeInfo, summary *Summary) (Params, error) {
	if summary.PersistentBufferBytes > int64(ri.Capability().MaxShmemPerBlock) {
		return nil, fmt.Errorf("persistent buffer %d bytes exceeds device shared-memory limit %d: %w", summary.PersistentBufferBytes, ri.Capability().MaxShmemPerBlock, kerr.SharedMemoryOverflow)
	}
	return ReductionParams{Persistent: true}, nil
}

func (s *outerPersistentScheduler) Schedule(f *ir.Fusion, sch *schedule.Scheduler, params Params) error {
	out := findReductionOutput(f)
	if out == nil {
		return fmt.Errorf("outer-persistent scheduler found no reduction output")
	}
	for i, d := range out.Domain().Loop() {
		if d.IsReduction() {
			if err := sch.Parallelize(out, i, ir.BIDy); err != nil {
				return err
			}
		} else {
			if err := sch.Parallelize(out, i, ir.TIDx); err != nil {
				return err
			}
		}
	}
	return nil
}

// innerOuterPersistentScheduler handles layer-norm-style fusions with both
// an inner reduction and an outer reduction feeding the same output.
type innerOuterPersistentScheduler struct{}

func newInnerOuterPersistentScheduler() *innerOuterPersistentScheduler {
	return &innerOuterPersistentScheduler{}
}

func (*innerOuterPersistentScheduler) Kind() Kind { return InnerOuterPersistent }

func (*innerOuterPersistentScheduler) CanScheduleCompileTime(f *ir.Fusion) bool {
	return hasInnerAndOuterReduction(f)
}

func (*innerOuterPersistentScheduler) CanScheduleRunTime(f *ir.Fusion, ri *runtimeinfo.RuntimeInfo, summary *Summary) bool {
	return summary.PersistentBufferBytes > 0 && summary.PersistentBufferBytes <= int64(ri.Capability().MaxShmemPerBlock)
}

func (*innerOuterPersistentScheduler) ComputeHeuristics(f *ir.Fusion, ri *runtimeinfo.RuntimeInfo, summary *Summary) (Params, error) {
	if summary.PersistentBufferBytes > int64(ri.Capability().MaxShmemPerBlock) {
		return nil, fmt.Errorf("persistent buffer %d bytes exceeds device shared-memory limit %d: %w", summary.PersistentBufferBytes, ri.Capability().MaxShmemPerBlock, kerr.SharedMemoryOverflow)
	}
	return ReductionParams{Persistent: true, SharedMemoryPersistent: true}, nil
}

func (s *innerOuterPersistentScheduler) Schedule(f *ir.Fusion, sch *schedule.Scheduler, params Params) error {
	for _, e := range f.Expressions() {
		if e.Op() != ir.OpReduction && e.Op() != ir.OpWelford {
			continue
		}
		for _, out := range e.Outputs() {
			if out.Tensor == nil {
				continue
			}
			for i, d := range out.Tensor.Domain().Loop() {
				if d.IsReduction() {
					if reductionAxisIsInner(out.Tensor) {
						if err := sch.Parallelize(out.Tensor, i, ir.TIDx); err != nil {
							return err
						}
					} else if err := sch.Parallelize(out.Tensor, i, ir.BIDy); err != nil {
						return err
					}
				}
			}
			sch.SetMemoryType(out.Tensor, ir.Shared)
		}
	}
	return nil
}
