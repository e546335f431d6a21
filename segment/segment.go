// Package segment describes the interface the core calls into when a
// single heuristic cannot schedule an entire fusion in one pass: the
// segmenter partitions it into a sequence of schedulable subgraphs and
// reports the intermediate buffers that cross a boundary between two of
// them. Per spec.md 1, the segmenter's own partitioning algorithm is
// deliberately out of scope -- this package fixes the shape of the
// collaborator the rest of the pipeline (heuristic dispatch, scheduling,
// lowering) calls through, plus a pass-through implementation for fusions
// that need no segmentation, the same builder/consumer split as
// graph/builder.go: a builder-style accumulator hands off a finished,
// topologically-ordered artifact to a thin consumer type.
package segment

import "github.com/zerfoo/fusegen/ir"

// Segment is one schedulable subgraph produced by a Segmenter: an ordered
// slice of the original fusion's expressions, plus the TensorViews that
// cross its boundary with a neighboring segment. A boundary tensor is
// materialized to a real buffer between segments even if the original
// fusion would otherwise have kept it transient.
type Segment struct {
	Expressions []*ir.Expression

	// BoundaryInputs are TensorViews produced by an earlier segment (or
	// the original fusion's own inputs) that this segment reads.
	BoundaryInputs []*ir.TensorView

	// BoundaryOutputs are TensorViews this segment produces that either a
	// later segment reads or the original fusion declares as an output.
	BoundaryOutputs []*ir.TensorView
}

// Segmenter partitions a fusion the heuristic registry could not schedule
// whole into an ordered list of Segments, each of which must independently
// pass SchedulerRejection-free dispatch. Segments are returned in the
// dependency order the executor must run them: segment i's BoundaryInputs
// are satisfied only by segment j<i's BoundaryOutputs or the original
// fusion's own inputs.
type Segmenter interface {
	Segment(f *ir.Fusion) ([]*Segment, error)
}

// Identity is the trivial Segmenter: it returns f as a single Segment
// covering every expression, with the fusion's own declared inputs and
// outputs as the (only) boundary. Useful as the default collaborator for a
// fusion small enough, or already uniform enough, that the heuristic
// registry schedules it in one pass and no partitioning was ever
// triggered.
type Identity struct{}

// Segment implements Segmenter by returning f whole.
func (Identity) Segment(f *ir.Fusion) ([]*Segment, error) {
	var inputs, outputs []*ir.TensorView
	for _, in := range f.Inputs() {
		if in.Tensor != nil {
			inputs = append(inputs, in.Tensor)
		}
	}
	for _, out := range f.Outputs() {
		if out.Tensor != nil {
			outputs = append(outputs, out.Tensor)
		}
	}
	return []*Segment{{
		Expressions:     f.Expressions(),
		BoundaryInputs:  inputs,
		BoundaryOutputs: outputs,
	}}, nil
}
