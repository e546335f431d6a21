package executor

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// gemmGolden computes C = A*B for row-major contiguous float32 matrices. It
// exists for this package's matmul-shaped tests to check an inferred
// output plan's element count against an independently computed
// reference result.
func gemmGolden(m, n, k int, a, b []float32) []float32 {
	c := make([]float32, m*n)
	A := blas32.General{Rows: m, Cols: k, Data: a, Stride: k}
	B := blas32.General{Rows: k, Cols: n, Data: b, Stride: n}
	C := blas32.General{Rows: m, Cols: n, Data: c, Stride: n}
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, A, B, 0, C)
	return c
}

// pointwiseEvaluateGolden stands in for the expression evaluator collaborator
// AllocateOutputs' AliasEvaluate case defers to (see its doc comment):
// given the flat contents already sitting in an aliased input's buffer, it
// applies op in place and returns the same slice, the way a real evaluator
// would overwrite the aliased view rather than allocate a second buffer.
// This package's AliasEvaluate test applies it to a local slice, next to a
// separate check of the pointer AllocateOutputs hands back; the two checks
// do not share a buffer.
func pointwiseEvaluateGolden(buf []float32, op func(float32) float32) []float32 {
	for i, v := range buf {
		buf[i] = op(v)
	}
	return buf
}
