// Package runtimeinfo implements spec.md 4.10: the per-invocation binding
// of concrete input metadata (shapes, strides, pointers) to a Fusion's
// symbolic extents, plus the derived quantities (index type, alignment,
// contiguity) the schedulers and lowering passes query during a single
// kernel build.
package runtimeinfo

import (
	"fmt"

	"github.com/zerfoo/fusegen/device"
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kerr"
)

// InputMetadata binds one fusion input tensor to a concrete shape, stride
// and device pointer for this invocation.
type InputMetadata struct {
	Tensor  *ir.TensorView
	Shape   []int64
	Strides []int64 // in elements, matching tv.Domain().Allocation() order
	Ptr     uintptr
}

func (m InputMetadata) elementSize() int64 {
	switch m.Tensor.DType() {
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

func (m InputMetadata) maxByteOffset() int64 {
	var maxElem int64
	for i, extent := range m.Shape {
		if i >= len(m.Strides) {
			break
		}
		off := (extent - 1) * m.Strides[i]
		if off > maxElem {
			maxElem = off
		}
	}
	return maxElem * m.elementSize()
}

// gcd of absolute values; 0 if both inputs are 0.
func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// alignmentOf returns the largest power-of-two byte alignment consistent
// with a tensor's base pointer and the GCD of its discontiguous strides
// (those that differ from the product of the inner extents, the same test
// Contiguity applies) (spec.md 4.10): a misaligned base pointer, or a stride pattern whose GCD
// isn't itself a multiple of a candidate width, caps the achievable
// alignment below what the pointer alone would allow.
func alignmentOf(m InputMetadata) int {
	elemSize := m.elementSize()
	strideGCD := int64(0)
	expected := int64(1)
	for i := len(m.Strides) - 1; i >= 0; i-- {
		if m.Strides[i] != expected {
			strideGCD = gcd(strideGCD, m.Strides[i]*elemSize)
		}
		if i < len(m.Shape) {
			expected *= m.Shape[i]
		}
	}
	ptrAlign := int64(1)
	for ptrAlign < 16 && m.Ptr%uintptr(ptrAlign*2) == 0 {
		ptrAlign *= 2
	}
	align := ptrAlign
	if strideGCD > 0 {
		for align > 1 && strideGCD%align != 0 {
			align /= 2
		}
	}
	if align < 1 {
		align = 1
	}
	return int(align)
}

// RuntimeInfo is built once per kernel invocation and threaded through
// every scheduler/lowering-pass query that needs concrete input metadata.
type RuntimeInfo struct {
	fusion     *ir.Fusion
	capability device.Capability
	bindings   map[*ir.TensorView]InputMetadata

	precomputed map[*ir.Value]int64

	forcedIndexType ir.DataType
	forceIndexType  bool
}

// Bind builds a RuntimeInfo for fusion, given concrete metadata for every
// fusion input tensor, executing against the device identified by
// capability.
func Bind(fusion *ir.Fusion, capability device.Capability, inputs []InputMetadata) (*RuntimeInfo, error) {
	bindings := make(map[*ir.TensorView]InputMetadata, len(inputs))
	for _, m := range inputs {
		if m.Tensor == nil {
			return nil, fmt.Errorf("runtime info binding has a nil tensor: %w", kerr.InvalidInput)
		}
		bindings[m.Tensor] = m
	}
	return &RuntimeInfo{
		fusion:      fusion,
		capability:  capability,
		bindings:    bindings,
		precomputed: map[*ir.Value]int64{},
	}, nil
}

// Capability returns the bound device's capability profile.
func (r *RuntimeInfo) Capability() device.Capability { return r.capability }

// Metadata returns the bound metadata for tv, or ok=false if tv is not a
// bound fusion input.
func (r *RuntimeInfo) Metadata(tv *ir.TensorView) (InputMetadata, bool) {
	m, ok := r.bindings[tv]
	return m, ok
}

// ForceIndexType overrides automatic index-type selection (Options.index_type).
func (r *RuntimeInfo) ForceIndexType(t ir.DataType) { r.forcedIndexType = t; r.forceIndexType = true }

// IndexType selects the kernel index type per spec.md 4.4: compute the
// maximum byte offset any bound tensor might require; choose int32 if all
// fit, else int64. If int32 is forced but an input overflows, return
// IndexTypeOverflow.
func (r *RuntimeInfo) IndexType() (ir.DataType, error) {
	var maxOffset int64
	for _, m := range r.bindings {
		if off := m.maxByteOffset(); off > maxOffset {
			maxOffset = off
		}
	}
	const int32Max = (1 << 31) - 1

	if r.forceIndexType {
		if r.forcedIndexType == ir.Int32 && maxOffset > int32Max {
			return ir.Int32, fmt.Errorf("forced int32 index type but max byte offset %d overflows: %w", maxOffset, kerr.IndexTypeOverflow)
		}
		return r.forcedIndexType, nil
	}
	if maxOffset <= int32Max {
		return ir.Int32, nil
	}
	return ir.Int, nil
}

// GetAlignmentSize returns the largest power-of-two byte alignment provable
// for tv's bound buffer, or 0 if tv is not a bound input (no alignment
// guarantee for an intermediate/output tensor until it is allocated).
func (r *RuntimeInfo) GetAlignmentSize(tv *ir.TensorView) int {
	m, ok := r.bindings[tv]
	if !ok {
		return 0
	}
	return alignmentOf(m)
}

// PtrOf returns the bound device pointer for tv, or 0 if unbound.
func (r *RuntimeInfo) PtrOf(tv *ir.TensorView) uintptr {
	return r.bindings[tv].Ptr
}

// Contiguity returns the bound tensor's allocation-domain contiguity
// vector, derived from strides rather than from the IR's static
// contiguity flags (those describe the schedule, this describes what was
// actually bound).
func (r *RuntimeInfo) Contiguity(tv *ir.TensorView) []ir.Contiguity {
	m, ok := r.bindings[tv]
	if !ok {
		return nil
	}
	out := make([]ir.Contiguity, len(m.Strides))
	expected := int64(1)
	for i := len(m.Strides) - 1; i >= 0; i-- {
		if m.Strides[i] == expected {
			out[i] = ir.ContiguityTrue
		} else {
			out[i] = ir.ContiguityFalse
		}
		if i < len(m.Shape) {
			expected *= m.Shape[i]
		}
	}
	return out
}

// Precompute memoizes an evaluated symbolic Value for the lifetime of this
// invocation (the "precomputed-values cache" of spec.md 4.10).
func (r *RuntimeInfo) Precompute(v *ir.Value, val int64) { r.precomputed[v] = val }

// Precomputed returns a previously memoized evaluation of v, if any.
func (r *RuntimeInfo) Precomputed(v *ir.Value) (int64, bool) {
	val, ok := r.precomputed[v]
	return val, ok
}
