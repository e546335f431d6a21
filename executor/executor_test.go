package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerfoo/fusegen/device"
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/runtimeinfo"
)

func bindSimple(t *testing.T, f *ir.Fusion, inputs ...runtimeinfo.InputMetadata) *runtimeinfo.RuntimeInfo {
	t.Helper()
	cap, err := device.Get("cuda:sm80")
	require.NoError(t, err)
	ri, err := runtimeinfo.Bind(f, cap, inputs)
	require.NoError(t, err)
	return ri
}

func TestInferOutputShapesContiguousPointwise(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 4), ir.NewIntConst(f, 8)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	out, err := ir.NewUnaryExpr(f, "neg", a)
	require.NoError(t, err)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))

	ri := bindSimple(t, f, runtimeinfo.InputMetadata{Tensor: a, Shape: []int64{4, 8}, Strides: []int64{8, 1}})

	plans, err := InferOutputShapes(f, ri)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, []int64{4, 8}, plans[0].Shape)
	assert.Equal(t, []int64{8, 1}, plans[0].Strides)
	assert.Equal(t, ir.AliasNew, plans[0].Alias)
}

func TestInferOutputShapesExpandedBroadcastGetsZeroStride(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 8)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))

	out, err := ir.NewBroadcastExpr(f, a, []bool{true, false})
	require.NoError(t, err)
	bcastID := out.Domain().Root()[0]
	bcastID.SetExpandedExtent(ir.NewIntConst(f, 5))
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))

	ri := bindSimple(t, f, runtimeinfo.InputMetadata{Tensor: a, Shape: []int64{8}, Strides: []int64{1}})

	plans, err := InferOutputShapes(f, ri)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, []int64{5, 8}, plans[0].Shape)
	assert.Equal(t, []int64{0, 1}, plans[0].Strides)
}

func TestInferOutputShapesResolvesSymbolicExtentFromPrecomputed(t *testing.T) {
	f := ir.New()
	sizeVal := ir.NewSymbolicValue(f, ir.Int)
	sizeVal.SetName("n")
	a := ir.NewTensorView(f, []*ir.Value{sizeVal}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	out, err := ir.NewUnaryExpr(f, "neg", a)
	require.NoError(t, err)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))

	ri := bindSimple(t, f, runtimeinfo.InputMetadata{Tensor: a, Shape: []int64{32}, Strides: []int64{1}})
	ri.Precompute(sizeVal, 32)

	plans, err := InferOutputShapes(f, ri)
	require.NoError(t, err)
	assert.Equal(t, []int64{32}, plans[0].Shape)
}

func TestInferOutputShapesUnresolvedExtentErrors(t *testing.T) {
	f := ir.New()
	sizeVal := ir.NewSymbolicValue(f, ir.Int)
	sizeVal.SetName("n")
	a := ir.NewTensorView(f, []*ir.Value{sizeVal}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	out, err := ir.NewUnaryExpr(f, "neg", a)
	require.NoError(t, err)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))

	ri := bindSimple(t, f, runtimeinfo.InputMetadata{Tensor: a, Shape: []int64{32}, Strides: []int64{1}})

	_, err = InferOutputShapes(f, ri)
	assert.Error(t, err)
}

func TestAllocateOutputsNewAllocatesFreshBuffer(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 4)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	out, err := ir.NewUnaryExpr(f, "neg", a)
	require.NoError(t, err)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))

	ri := bindSimple(t, f, runtimeinfo.InputMetadata{Tensor: a, Shape: []int64{4}, Strides: []int64{1}})
	plans, err := InferOutputShapes(f, ri)
	require.NoError(t, err)

	bufs, err := AllocateOutputs(plans, ri, device.NewHostAllocator(), false)
	require.NoError(t, err)
	require.Len(t, bufs, 1)
	buf, ok := bufs[0].([]byte)
	require.True(t, ok)
	assert.Len(t, buf, 4*4)
}

func TestAllocateOutputsReuseBufferReturnsInputPointer(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 4)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	out, err := ir.NewUnaryExpr(f, "relu_", a)
	require.NoError(t, err)
	out.MarkAlias(ir.AliasReuseBuffer, a)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))

	ri := bindSimple(t, f, runtimeinfo.InputMetadata{Tensor: a, Shape: []int64{4}, Strides: []int64{1}, Ptr: 0xBEEF})
	plans, err := InferOutputShapes(f, ri)
	require.NoError(t, err)

	bufs, err := AllocateOutputs(plans, ri, device.NewHostAllocator(), false)
	require.NoError(t, err)
	assert.Equal(t, uintptr(0xBEEF), bufs[0])
}

func TestAllocateOutputsEvaluateRejectsOversizedView(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 4)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	out, err := ir.NewUnaryExpr(f, "neg", a)
	require.NoError(t, err)
	out.MarkAlias(ir.AliasEvaluate, a)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))

	ri := bindSimple(t, f, runtimeinfo.InputMetadata{Tensor: a, Shape: []int64{4}, Strides: []int64{1}})
	plans, err := InferOutputShapes(f, ri)
	require.NoError(t, err)
	plans[0].Shape = []int64{8}

	_, err = AllocateOutputs(plans, ri, device.NewHostAllocator(), false)
	assert.Error(t, err)
}

func TestAllocateOutputsEvaluateWritesThroughGoldenInPlace(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 4)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	out, err := ir.NewUnaryExpr(f, "neg", a)
	require.NoError(t, err)
	out.MarkAlias(ir.AliasEvaluate, a)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))

	ri := bindSimple(t, f, runtimeinfo.InputMetadata{Tensor: a, Shape: []int64{4}, Strides: []int64{1}, Ptr: 0xBEEF})
	plans, err := InferOutputShapes(f, ri)
	require.NoError(t, err)

	bufs, err := AllocateOutputs(plans, ri, device.NewHostAllocator(), false)
	require.NoError(t, err)
	require.Len(t, bufs, 1)
	assert.Equal(t, uintptr(0xBEEF), bufs[0])

	view := []float32{1, -2, 3, -4}
	got := pointwiseEvaluateGolden(view, func(x float32) float32 { return -x })
	assert.Equal(t, []float32{-1, 2, -3, 4}, got)
	assert.Same(t, &view[0], &got[0])
}

func TestInferOutputShapesMatmulMatchesGoldenElementCount(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 2), ir.NewIntConst(f, 3)}, nil, ir.Float)
	b := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 3), ir.NewIntConst(f, 5)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	require.NoError(t, f.AddInput(ir.TensorOperand(b)))
	out, err := ir.NewMatMulExpr(f, a, b)
	require.NoError(t, err)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))

	ri := bindSimple(t, f,
		runtimeinfo.InputMetadata{Tensor: a, Shape: []int64{2, 3}, Strides: []int64{3, 1}},
		runtimeinfo.InputMetadata{Tensor: b, Shape: []int64{3, 5}, Strides: []int64{5, 1}},
	)

	plans, err := InferOutputShapes(f, ri)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, []int64{2, 5}, plans[0].Shape)
	assert.Equal(t, []int64{5, 1}, plans[0].Strides)

	av := []float32{1, 2, 3, 4, 5, 6}
	bv := []float32{1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 0, 0, 1}
	golden := gemmGolden(2, 5, 3, av, bv)
	assert.Len(t, golden, int(elementCount(plans[0].Shape)))
}
