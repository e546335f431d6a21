package heuristic

import (
	"fmt"

	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/runtimeinfo"
	"github.com/zerfoo/fusegen/schedule"
)

// PointwiseParams is the outcome of the break-point search in spec.md 4.5.
type PointwiseParams struct {
	BreakPoint  int // dims [0,BreakPoint) are left/BIDy, [BreakPoint,n) are right/BIDx
	VectorWidth int
	BlockX      int
	UseBIDy     bool
	SplitGridY  bool
	SplitGridX  bool
	FlipGridBinding bool
}

func (PointwiseParams) isHeuristicParams() {}

const (
	maxGridDim   = 65535
	warpSize     = 32
	l2CacheBytes = 4 * 1024 * 1024 // conservative fixed default; not taken from device.Capability
)

// pointwiseScheduler is the fallback scheduler for any fusion that
// contains neither a reduction, a matmul/linear/mma, nor a transpose
// read pattern: a single fused elementwise kernel over the union of
// output shapes.
type pointwiseScheduler struct{}

func newPointwiseScheduler() *pointwiseScheduler { return &pointwiseScheduler{} }

func (*pointwiseScheduler) Kind() Kind { return PointWise }

func (*pointwiseScheduler) CanScheduleCompileTime(f *ir.Fusion) bool {
	return !hasOp(f, ir.OpReduction, ir.OpWelford, ir.OpMatMul, ir.OpLinear, ir.OpMma, ir.OpSdpa, ir.OpResharding)
}

func (*pointwiseScheduler) CanScheduleRunTime(f *ir.Fusion, _ *runtimeinfo.RuntimeInfo, summary *Summary) bool {
	return summary.ReferenceTensor != nil
}

// breakPointCost estimates the byte-transfer cost of splitting ref's
// logical dims at `bp`: left of bp becomes the BIDy grid dim, right
// becomes BIDx, and the cost is the sum of broadcast-multiple weights on
// the right side (the side every thread actually reads/writes per
// iteration, so it dominates traffic) (spec.md 4.5).
func breakPointCost(multiples []int64, bp int) int64 {
	var cost int64
	for i := bp; i < len(multiples); i++ {
		cost += multiples[i]
	}
	return cost
}

// warpsOnRight estimates the right-side thread parallelism after choosing
// bp, from the reference tensor's product of non-reduction extents right
// of bp.
func warpsOnRight(ref *ir.TensorView, bp int) int64 {
	var product int64 = 1
	logical := ref.Domain().Logical()
	for i := bp; i < len(logical); i++ {
		if logical[i].Extent().IsConst() {
			product *= logical[i].Extent().Int()
		}
	}
	return product / warpSize
}

func (s *pointwiseScheduler) ComputeHeuristics(f *ir.Fusion, _ *runtimeinfo.RuntimeInfo, summary *Summary) (Params, error) {
	ref := summary.ReferenceTensor
	logical := ref.Domain().Logical()
	n := len(logical)
	if n == 0 {
		return nil, fmt.Errorf("pointwise reference tensor has no logical dims")
	}

	best := n - 1
	var bestCost int64 = -1
	for bp := 1; bp < n; bp++ {
		if warpsOnRight(ref, bp) < 1 {
			continue
		}
		cost := breakPointCost(summary.BroadcastMultiples, bp)
		if bestCost < 0 || cost < bestCost {
			bestCost = cost
			best = bp
		}
	}

	vectorWidth := 1
	if len(summary.VectorizableOutputs) > 0 || len(summary.VectorizableInputs) > 0 {
		vectorWidth = 4
	}

	blockX := 128
	rightExtent := int64(1)
	for i := best; i < n; i++ {
		if logical[i].Extent().IsConst() {
			rightExtent *= logical[i].Extent().Int()
		}
	}
	gridX := (rightExtent/int64(vectorWidth) + int64(blockX) - 1) / int64(blockX)
	leftExtent := int64(1)
	for i := 0; i < best; i++ {
		if logical[i].Extent().IsConst() {
			leftExtent *= logical[i].Extent().Int()
		}
	}

	splitGridX := gridX > maxGridDim
	splitGridY := leftExtent > maxGridDim

	rightTraffic := breakPointCost(summary.BroadcastMultiples, best)
	flip := rightTraffic > l2CacheBytes/2 && best > 0 && logical[0].IsBroadcast()

	return PointwiseParams{
		BreakPoint:      best,
		VectorWidth:     vectorWidth,
		BlockX:          blockX,
		UseBIDy:         leftExtent > 1 && leftExtent*rightExtent < int64(blockX)*8,
		SplitGridY:      splitGridY,
		SplitGridX:      splitGridX,
		FlipGridBinding: flip,
	}, nil
}

// Schedule applies the pointwise transform to every tensor: merge
// right-side dims to one inner dim and left-side dims to one outer dim,
// split inner by vector width and then by block-x width, and bind the
// resulting [outer, remainder, block-x, vector] axes to BIDy, Unswitch,
// TIDx and Vectorize. It adds no separate Unswitch-1 split, no TIDy axis
// and no grid-Y/X split: the UseBIDy, SplitGridY, SplitGridX and
// FlipGridBinding params are not read here. The same sequence of
// primitive calls is replayed on every tensor -- since every call operates
// on loop-axis position, not identity, replaying the sequence on any
// shape-compatible tensor reproduces the same spanning-tree propagation
// without needing to materialize the tree itself.
func (s *pointwiseScheduler) Schedule(f *ir.Fusion, sch *schedule.Scheduler, params Params) error {
	p := params.(PointwiseParams)

	for _, tv := range f.TensorViews() {
		if tv.IsFusionInput() && tv.MemoryType() == ir.Global && len(tv.Domain().Loop()) != len(tv.Domain().Logical()) {
			continue
		}
		if err := scheduleOneTensor(sch, tv, p); err != nil {
			// Intermediate/cached tensors of incompatible rank are skipped
			// (e.g. an already-reduced scalar); the reference tensor and
			// every rank-matching tensor still get the full transform.
			continue
		}
	}
	return nil
}

func scheduleOneTensor(sch *schedule.Scheduler, tv *ir.TensorView, p PointwiseParams) error {
	loop := tv.Domain().Loop()
	n := len(loop)
	if p.BreakPoint <= 0 || p.BreakPoint >= n {
		return fmt.Errorf("break point %d incompatible with rank %d", p.BreakPoint, n)
	}

	for axis := n - 1; axis > p.BreakPoint; axis-- {
		if err := sch.Merge(tv, p.BreakPoint); err != nil {
			return err
		}
	}
	for axis := p.BreakPoint - 1; axis > 0; axis-- {
		if err := sch.Merge(tv, 0); err != nil {
			return err
		}
	}
	// tv now has (outer, inner) exactly.
	if err := sch.Split(tv, 1, ir.NewIntConst(tv.Fusion(), int64(p.VectorWidth)), true); err != nil {
		return err
	}
	if err := sch.Split(tv, 1, ir.NewIntConst(tv.Fusion(), int64(p.BlockX)), true); err != nil {
		return err
	}

	loop = tv.Domain().Loop()
	if err := sch.Parallelize(tv, len(loop)-1, ir.Vectorize); err != nil {
		return err
	}
	if err := sch.Parallelize(tv, len(loop)-2, ir.TIDx); err != nil {
		return err
	}
	if err := sch.Parallelize(tv, len(loop)-3, ir.Unswitch); err != nil {
		return err
	}
	if err := sch.Parallelize(tv, 0, ir.BIDy); err != nil {
		return err
	}
	return nil
}
