// Package executor implements spec.md 4.11, the glue between a scheduled
// and lowered fusion and concrete memory: given bound runtime info, infer
// each output's allocation-domain shape and stride, then realize its
// storage according to the alias classification recorded on the output
// TensorView (ir.AliasType). This is the one piece of the pipeline that
// actually touches bytes rather than symbols, so it defers to the
// host-side allocator (device.Allocator) rather than any scheduling file.
package executor

import (
	"fmt"

	"github.com/zerfoo/fusegen/device"
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kerr"
	"github.com/zerfoo/fusegen/runtimeinfo"
)

// OutputPlan is the result of InferOutputShapes for one fusion output.
type OutputPlan struct {
	Tensor  *ir.TensorView
	Shape   []int64
	Strides []int64
	Alias   ir.AliasType
	Input   *ir.TensorView // set when Alias != ir.AliasNew
}

// InferOutputShapes evaluates, for every fusion output, the extent of each
// allocation-domain dim and derives its stride: 0 if the dim is an
// expanded broadcast, 1 if its extent is 0, a running contiguous product
// otherwise. Expanded and zero-extent dims don't participate in the
// product, since no other dim's offset actually steps past them.
func InferOutputShapes(f *ir.Fusion, ri *runtimeinfo.RuntimeInfo) ([]OutputPlan, error) {
	var plans []OutputPlan
	for _, out := range f.Outputs() {
		if out.Tensor == nil {
			continue
		}
		plan, err := inferOne(out.Tensor, ri)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, nil
}

func inferOne(tv *ir.TensorView, ri *runtimeinfo.RuntimeInfo) (OutputPlan, error) {
	alloc := tv.Domain().Allocation()
	shape := make([]int64, len(alloc))
	expanded := make([]bool, len(alloc))

	for i, d := range alloc {
		if d.IsBroadcast() && d.ExpandedExtent() != nil {
			ext, err := evalExtent(d.ExpandedExtent(), ri)
			if err != nil {
				return OutputPlan{}, err
			}
			shape[i] = ext
			expanded[i] = true
			continue
		}
		ext, err := evalExtent(d.Extent(), ri)
		if err != nil {
			return OutputPlan{}, err
		}
		shape[i] = ext
	}

	strides := make([]int64, len(alloc))
	running := int64(1)
	for i := len(alloc) - 1; i >= 0; i-- {
		switch {
		case expanded[i]:
			strides[i] = 0
		case shape[i] == 0:
			strides[i] = 1
		default:
			strides[i] = running
			running *= shape[i]
		}
	}

	return OutputPlan{
		Tensor:  tv,
		Shape:   shape,
		Strides: strides,
		Alias:   tv.AliasType(),
		Input:   tv.AliasInput(),
	}, nil
}

// evalExtent resolves a (possibly symbolic) extent to a concrete value: a
// compile-time literal evaluates directly, otherwise it must already be in
// the runtime info's precomputed-values cache (spec.md 4.10). No lowering
// pass fills that cache: a symbolic extent resolves only if the caller has
// stored its value with RuntimeInfo.Precompute.
func evalExtent(v *ir.Value, ri *runtimeinfo.RuntimeInfo) (int64, error) {
	if v.IsConst() {
		return v.Int(), nil
	}
	if val, ok := ri.Precomputed(v); ok {
		return val, nil
	}
	return 0, fmt.Errorf("extent %q has no bound or precomputed value: %w", v.Name(), kerr.InvalidInput)
}

// AllocateOutputs realizes storage for each plan per its alias
// classification: AliasReuseBuffer hands back the aliased input's own
// buffer untouched; AliasEvaluate also hands back the aliased input's
// buffer, after checking it actually has room for the output (the
// expression evaluator that fills it in-place is an external collaborator,
// not this package's job); AliasNew allocates fresh storage through alloc.
func AllocateOutputs(plans []OutputPlan, ri *runtimeinfo.RuntimeInfo, alloc device.Allocator, fillNaN bool) ([]any, error) {
	buffers := make([]any, len(plans))
	for i, p := range plans {
		switch p.Alias {
		case ir.AliasReuseBuffer:
			ptr, err := aliasedPtr(p, ri)
			if err != nil {
				return nil, err
			}
			buffers[i] = ptr
		case ir.AliasEvaluate:
			if err := validateAliasView(p, ri); err != nil {
				return nil, err
			}
			ptr, err := aliasedPtr(p, ri)
			if err != nil {
				return nil, err
			}
			buffers[i] = ptr
		default:
			buf, err := alloc.Allocate(byteSize(p), fillNaN)
			if err != nil {
				return nil, err
			}
			buffers[i] = buf
		}
	}
	return buffers, nil
}

func aliasedPtr(p OutputPlan, ri *runtimeinfo.RuntimeInfo) (uintptr, error) {
	if p.Input == nil {
		return 0, fmt.Errorf("output %s declared %s with no aliased input: %w", p.Tensor.Name(), p.Alias, kerr.InvalidInput)
	}
	meta, ok := ri.Metadata(p.Input)
	if !ok {
		return 0, fmt.Errorf("aliased input %s is not a bound fusion input: %w", p.Input.Name(), kerr.InvalidInput)
	}
	return meta.Ptr, nil
}

// validateAliasView checks that an Evaluate output's element count does not
// exceed the aliased input's: the evaluator writes through the input's
// buffer as a view, so the output can reshape it but never grow past it.
func validateAliasView(p OutputPlan, ri *runtimeinfo.RuntimeInfo) error {
	meta, ok := ri.Metadata(p.Input)
	if !ok {
		return fmt.Errorf("aliased input %s is not a bound fusion input: %w", p.Input.Name(), kerr.InvalidInput)
	}
	if elementCount(p.Shape) > elementCount(meta.Shape) {
		return fmt.Errorf("evaluate output %s (%d elements) does not fit in aliased input %s (%d elements): %w",
			p.Tensor.Name(), elementCount(p.Shape), p.Input.Name(), elementCount(meta.Shape), kerr.InvalidInput)
	}
	return nil
}

func elementCount(shape []int64) int64 {
	n := int64(1)
	for _, s := range shape {
		n *= s
	}
	return n
}

func byteSize(p OutputPlan) int {
	return int(elementCount(p.Shape)) * int(elementBytes(p.Tensor.DType()))
}

// elementBytes mirrors the same small switch already duplicated between
// runtimeinfo.InputMetadata.elementSize and heuristic.elementBytes: neither
// is exported, and a DataType-to-byte-width table is small enough that a
// shared exported helper isn't worth a new cross-package dependency for.
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
