package heuristic

import (
	"fmt"

	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kerr"
	"github.com/zerfoo/fusegen/runtimeinfo"
	"github.com/zerfoo/fusegen/schedule"
)

// TransposeParams is the tile shape chosen for a shared-memory-staged
// transpose (spec.md 4.7).
type TransposeParams struct {
	TileSize  int
	PadBytes  int
	Swizzle   bool
}

func (TransposeParams) isHeuristicParams() {}

const defaultTransposeTile = 32

// findTransposePair finds the first fusion output of rank >= 2 whose
// allocation-domain order is a permutation of, rather than equal to, its
// root order, and returns that output tensor as both in and out, with
// axisX the first root position whose allocation ID differs and axisY the
// allocation position holding that root ID. No fusion input is looked up.
func findTransposePair(f *ir.Fusion) (in, out *ir.TensorView, axisX, axisY int) {
	for _, o := range f.Outputs() {
		if o.Tensor == nil {
			continue
		}
		root := o.Tensor.Domain().Root()
		alloc := o.Tensor.Domain().Allocation()
		if len(root) < 2 || len(root) != len(alloc) {
			continue
		}
		for i := 0; i < len(root); i++ {
			if root[i] != alloc[i] {
				for j := 0; j < len(root); j++ {
					if alloc[j] == root[i] && j != i {
						return o.Tensor, o.Tensor, i, j
					}
				}
			}
		}
	}
	return nil, nil, -1, -1
}

// transposeScheduler tiles the two permuted axes through shared memory,
// padding the tile's row stride to dodge shared-memory bank conflicts
// (spec.md 4.7): the direct global-to-global copy this permutation would
// otherwise compile to has no coalesced access pattern on either side.
type transposeScheduler struct{}

func newTransposeScheduler() *transposeScheduler { return &transposeScheduler{} }

func (*transposeScheduler) Kind() Kind { return Transpose }

func (*transposeScheduler) CanScheduleCompileTime(f *ir.Fusion) bool {
	if hasOp(f, ir.OpReduction, ir.OpWelford, ir.OpMatMul, ir.OpLinear, ir.OpMma, ir.OpSdpa, ir.OpResharding) {
		return false
	}
	_, out, _, _ := findTransposePair(f)
	return out != nil
}

func (*transposeScheduler) CanScheduleRunTime(f *ir.Fusion, _ *runtimeinfo.RuntimeInfo, _ *Summary) bool {
	_, out, _, _ := findTransposePair(f)
	return out != nil
}

func (*transposeScheduler) ComputeHeuristics(f *ir.Fusion, ri *runtimeinfo.RuntimeInfo, _ *Summary) (Params, error) {
	_, out, _, _ := findTransposePair(f)
	if out == nil {
		return nil, fmt.Errorf("transpose scheduler found no permuted output")
	}
	tile := defaultTransposeTile
	elemBytes := elementBytes(out.DType())
	shmemNeeded := int64(tile*tile) * elemBytes
	if shmemNeeded > int64(ri.Capability().MaxShmemPerBlock) {
		return nil, fmt.Errorf("transpose tile %dx%d at %d bytes/elem exceeds shared-memory limit %d: %w",
			tile, tile, elemBytes, ri.Capability().MaxShmemPerBlock, kerr.SharedMemoryOverflow)
	}
	// Pad the tile's row stride by one element to move successive rows
	// into different shared-memory banks; XOR-swizzle is the fallback for
	// element widths where padding alone can't avoid every conflict (8 or
	// 16 byte elements at a 32-bank, 4-byte-bank device).
	swizzle := elemBytes > 4
	return TransposeParams{TileSize: tile, PadBytes: int(elemBytes), Swizzle: swizzle}, nil
}

func (s *transposeScheduler) Schedule(f *ir.Fusion, sch *schedule.Scheduler, params Params) error {
	p := params.(TransposeParams)
	_, out, axisX, axisY := findTransposePair(f)
	if out == nil {
		return fmt.Errorf("transpose scheduler found no permuted output")
	}

	cached, err := sch.CacheAfter(out, ir.CachePlain)
	if err != nil {
		return err
	}
	cached.SetMemoryType(ir.Shared)

	tile := ir.NewIntConst(f, int64(p.TileSize))
	if err := sch.Split(cached, axisX, tile, true); err != nil {
		return err
	}
	if err := sch.Split(cached, axisY, tile, true); err != nil {
		return err
	}

	if p.Swizzle {
		if err := sch.Swizzle2D(cached, axisX, axisY, ir.SwizzleXor, ir.SwizzleData); err != nil {
			return err
		}
	}

	loop := cached.Domain().Loop()
	for i := range loop {
		var pt ir.ParallelType
		switch {
		case i == len(loop)-1:
			pt = ir.TIDx
		case i == len(loop)-2:
			pt = ir.TIDy
		default:
			pt = ir.BIDx
		}
		if err := sch.Parallelize(cached, i, pt); err != nil {
			return err
		}
	}
	return nil
}
