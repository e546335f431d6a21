package heuristic

import (
	"github.com/zerfoo/fusegen/domaingraph"
	"github.com/zerfoo/fusegen/ir"
)

// Summary memoizes the expensive compile-time analyses spec.md 4.4 asks to
// be computed once and reused across run-time dispatch attempts: the
// domain map, the chosen reference tensor, which inputs/outputs are
// vectorizable, per-axis broadcast multiples, and persistent-buffer sizing.
// Re-binding input metadata for a new invocation of an already-scheduled
// fusion never recomputes any of this.
type Summary struct {
	IdModel *domaingraph.IdModel

	ReferenceTensor *ir.TensorView

	VectorizableInputs  []*ir.TensorView
	VectorizableOutputs []*ir.TensorView

	// BroadcastMultiples[axis] is how many bytes of the non-broadcast side's
	// tensors participate in that logical dim, keyed by the reference
	// tensor's logical-domain index -- the per-dim cost signal the pointwise
	// scheduler's break-point search (spec.md 4.5) ranks candidates with.
	BroadcastMultiples []int64

	PersistentBufferBytes int64
}

// Build computes a Summary for f. selfMappingPermitted may be nil; it is
// passed through unchanged to domaingraph.Build.
func Build(f *ir.Fusion, selfMappingPermitted map[*ir.IterDomain]bool) (*Summary, error) {
	idm, err := domaingraph.Build(f, selfMappingPermitted)
	if err != nil {
		return nil, err
	}

	s := &Summary{IdModel: idm}
	s.ReferenceTensor = selectReferenceTensor(f)
	if s.ReferenceTensor != nil {
		s.BroadcastMultiples = computeBroadcastMultiples(f, s.ReferenceTensor)
	}
	s.VectorizableInputs, s.VectorizableOutputs = vectorizableTensors(f)
	s.PersistentBufferBytes = persistentBufferBytes(f)
	return s, nil
}

// selectReferenceTensor picks the fusion output with the most
// non-reduction logical dims, ties broken by output index (spec.md 4.5).
func selectReferenceTensor(f *ir.Fusion) *ir.TensorView {
	var best *ir.TensorView
	bestDims := -1
	for _, out := range f.Outputs() {
		if out.Tensor == nil {
			continue
		}
		dims := 0
		for _, d := range out.Tensor.Domain().Logical() {
			if !d.IsReduction() {
				dims++
			}
		}
		if dims > bestDims {
			bestDims = dims
			best = out.Tensor
		}
	}
	return best
}

func elementBytes(dt ir.DataType) int64 {
	switch dt {
	case ir.Half, ir.BFloat16:
		return 2
	case ir.Double, ir.ComplexFloat:
		return 8
	case ir.ComplexDouble:
		return 16
	case ir.Bool:
		return 1
	default:
		return 4
	}
}

// computeBroadcastMultiples sums, per logical dim of ref, the element byte
// width of every fusion tensor whose corresponding axis (by Permissive
// mapping) is not itself a broadcast -- the per-dim participation weight
// the pointwise scheduler's byte-transfer cost model (spec.md 4.5) needs.
func computeBroadcastMultiples(f *ir.Fusion, ref *ir.TensorView) []int64 {
	logical := ref.Domain().Logical()
	multiples := make([]int64, len(logical))
	idm, err := domaingraph.Build(f, nil)
	if err != nil {
		return multiples
	}
	for i, axis := range logical {
		var bytes int64
		for _, tv := range f.TensorViews() {
			for _, d := range tv.Domain().Logical() {
				if d.IsBroadcast() {
					continue
				}
				mapped, err := idm.AreMapped(axis, d, domaingraph.Permissive)
				if err == nil && mapped {
					bytes += elementBytes(tv.DType())
					break
				}
			}
		}
		multiples[i] = bytes
	}
	return multiples
}

// vectorizableTensors returns the fusion inputs/outputs whose innermost
// allocation ID is contiguous, a precondition for Vectorize parallelization.
func vectorizableTensors(f *ir.Fusion) (inputs, outputs []*ir.TensorView) {
	isVectorizable := func(tv *ir.TensorView) bool {
		alloc := tv.Domain().Allocation()
		if len(alloc) == 0 {
			return false
		}
		return tv.Domain().Contiguity(len(alloc)-1) == ir.ContiguityTrue
	}
	for _, in := range f.Inputs() {
		if in.Tensor != nil && isVectorizable(in.Tensor) {
			inputs = append(inputs, in.Tensor)
		}
	}
	for _, out := range f.Outputs() {
		if out.Tensor != nil && isVectorizable(out.Tensor) {
			outputs = append(outputs, out.Tensor)
		}
	}
	return inputs, outputs
}

// persistentBufferBytes is the maximum sum of per-tensor persistent buffers
// live across any single reduction expression (spec.md 4.6): the byte size
// of every non-reduced logical dim of every reduction's input, for the
// largest such reduction.
func persistentBufferBytes(f *ir.Fusion) int64 {
	var maxBytes int64
	for _, e := range f.Expressions() {
		if e.Op() != ir.OpReduction && e.Op() != ir.OpWelford {
			continue
		}
		for _, in := range e.Inputs() {
			if in.Tensor == nil {
				continue
			}
			var elems int64 = 1
			for _, d := range in.Tensor.Domain().Logical() {
				if d.IsReduction() || !d.Extent().IsConst() {
					continue
				}
				elems *= d.Extent().Int()
			}
			bytes := elems * elementBytes(in.Tensor.DType())
			if bytes > maxBytes {
				maxBytes = bytes
			}
		}
	}
	return maxBytes
}
