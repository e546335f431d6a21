package compiler

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/runtimeinfo"
)

// Fingerprint summarizes the shapes, strides and dtypes a set of inputs
// concretizes f's symbolic extents to, into the short stable string
// spec.md 6 calls the "concretization-fingerprint": the heuristic cache
// key alongside device. Two invocations with the same fingerprint are
// scheduled identically, so the second reuses the cached decision.
func Fingerprint(f *ir.Fusion, inputs []runtimeinfo.InputMetadata) string {
	byTensor := make(map[*ir.TensorView]runtimeinfo.InputMetadata, len(inputs))
	for _, m := range inputs {
		byTensor[m.Tensor] = m
	}

	h := sha256.New()
	for _, in := range f.Inputs() {
		if in.Tensor == nil {
			fmt.Fprint(h, "scalar;")
			continue
		}
		m := byTensor[in.Tensor]
		fmt.Fprintf(h, "dtype=%s;shape=%v;strides=%v;", in.Tensor.DType(), m.Shape, m.Strides)
	}
	return hex.EncodeToString(h.Sum(nil))
}
