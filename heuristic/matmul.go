package heuristic

import (
	"fmt"

	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kerr"
	"github.com/zerfoo/fusegen/runtimeinfo"
	"github.com/zerfoo/fusegen/schedule"
)

// MatmulParams is the CTA/warp/instruction tile shape and pipelining depth
// chosen for a single matmul/linear/mma expression (spec.md 4.8). The tile
// shape is one fixed configuration; the scheduler does not check that its
// splits divide the M and N extents, and it does not split K (the matmul
// output carries no K axis).
type MatmulParams struct {
	CtaM, CtaN, CtaK int
	WarpM, WarpN     int
	InstM, InstN, InstK int
	CircularBufferDepth int
	UseCpAsyncBulk      bool // Hopper+ TMA path
}

func (MatmulParams) isHeuristicParams() {}

const (
	minAmpereSM = 80
	minHopperSM = 90
)

func findMatmulExpr(f *ir.Fusion) *ir.Expression {
	for _, e := range f.Expressions() {
		if e.Op() == ir.OpMatMul || e.Op() == ir.OpLinear || e.Op() == ir.OpMma {
			return e
		}
	}
	return nil
}

// matmulScheduler builds the CTA-tile / warp-tile / instruction-tile
// hierarchy used for every dense matmul/linear/mma fusion (spec.md 4.8):
// it never competes with another scheduler, since the registry's hard
// rejections (registry.go) exclude every other candidate once a matmul op
// is present.
type matmulScheduler struct{}

func newMatmulScheduler() *matmulScheduler { return &matmulScheduler{} }

func (*matmulScheduler) Kind() Kind { return Matmul }

func (*matmulScheduler) CanScheduleCompileTime(f *ir.Fusion) bool {
	return findMatmulExpr(f) != nil
}

func (*matmulScheduler) CanScheduleRunTime(f *ir.Fusion, ri *runtimeinfo.RuntimeInfo, _ *Summary) bool {
	return ri.Capability().SM() >= 70
}

func (*matmulScheduler) ComputeHeuristics(f *ir.Fusion, ri *runtimeinfo.RuntimeInfo, _ *Summary) (Params, error) {
	e := findMatmulExpr(f)
	if e == nil {
		return nil, fmt.Errorf("matmul scheduler found no matmul/linear/mma expression")
	}
	if len(e.Outputs()) == 0 || e.Outputs()[0].Tensor == nil {
		return nil, fmt.Errorf("matmul expression has no tensor output")
	}
	out := e.Outputs()[0].Tensor
	root := out.Domain().Root()
	if len(root) < 2 {
		return nil, fmt.Errorf("matmul output has fewer than 2 dims")
	}

	sm := ri.Capability().SM()
	ctaM, ctaN, ctaK := 128, 128, 32
	warpM, warpN := 64, 64
	instM, instN, instK := 16, 8, 16

	elemBytes := elementBytes(out.DType())
	shmemNeeded := int64(ctaM*ctaK+ctaK*ctaN) * elemBytes
	depth := 3
	if sm < minAmpereSM {
		// No cp.async pipeline before Ampere: fall back to a synchronous,
		// single-buffered shared-memory stage.
		depth = 1
		shmemNeeded = int64(ctaM*ctaK+ctaK*ctaN) * elemBytes
	}
	for shmemNeeded*int64(depth) > int64(ri.Capability().MaxShmemPerBlock) && depth > 1 {
		depth--
	}
	if shmemNeeded*int64(depth) > int64(ri.Capability().MaxShmemPerBlock) {
		return nil, fmt.Errorf("matmul CTA tile %dx%dx%d needs %d bytes shared memory, exceeds device limit %d: %w",
			ctaM, ctaN, ctaK, shmemNeeded, ri.Capability().MaxShmemPerBlock, kerr.SharedMemoryOverflow)
	}

	return MatmulParams{
		CtaM: ctaM, CtaN: ctaN, CtaK: ctaK,
		WarpM: warpM, WarpN: warpN,
		InstM: instM, InstN: instN, InstK: instK,
		CircularBufferDepth: depth,
		UseCpAsyncBulk:      sm >= minHopperSM,
	}, nil
}

func (s *matmulScheduler) Schedule(f *ir.Fusion, sch *schedule.Scheduler, params Params) error {
	p := params.(MatmulParams)
	e := findMatmulExpr(f)
	if e == nil {
		return fmt.Errorf("matmul scheduler found no matmul/linear/mma expression")
	}
	out := e.Outputs()[0].Tensor

	// Split the M and N iteration axes into (CTA tile, warp tile,
	// instruction tile). The output has no K axis, so K is not split here.
	if err := sch.Split(out, 0, ir.NewIntConst(f, int64(p.CtaM)), true); err != nil {
		return err
	}
	if err := sch.Split(out, 1, ir.NewIntConst(f, int64(p.WarpM)), true); err != nil {
		return err
	}
	// The two M splits above each inserted one axis ahead of N, so N now
	// sits at index 3 of [Mcta, Mwarp, Minst, N].
	nAxis := 3
	if err := sch.Split(out, nAxis, ir.NewIntConst(f, int64(p.CtaN)), true); err != nil {
		return err
	}
	if err := sch.Split(out, nAxis+1, ir.NewIntConst(f, int64(p.WarpN)), true); err != nil {
		return err
	}

	// Loop is now [Mcta, Mwarp, Minst, Ncta, Nwarp, Ninst]. Minst and Ninst
	// stay serial: they become the mma instruction's implicit tile.
	parallelAxis := map[int]ir.ParallelType{
		0: ir.BIDy, // Mcta
		1: ir.TIDy, // Mwarp
		3: ir.BIDx, // Ncta
		4: ir.TIDx, // Nwarp
	}
	for axis, pt := range parallelAxis {
		if err := sch.Parallelize(out, axis, pt); err != nil {
			return err
		}
	}

	for _, in := range e.Inputs() {
		if in.Tensor == nil {
			continue
		}
		op := ir.CacheCpAsync
		if p.UseCpAsyncBulk {
			op = ir.CacheCpAsyncBulkTensorTile
		}
		cached, err := sch.CacheBefore(in.Tensor, op)
		if err != nil {
			// Below SM 80: no cp.async, fall back to a plain synchronous
			// shared-memory stage.
			cached, err = sch.CacheBefore(in.Tensor, ir.CachePlain)
			if err != nil {
				return err
			}
		}
		cached.SetMemoryType(ir.Shared)
		if p.CircularBufferDepth > 1 {
			if err := sch.CircularBuffer(cached, p.CircularBufferDepth); err != nil {
				return err
			}
		}
	}

	return nil
}
