package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerfoo/fusegen/cache"
	"github.com/zerfoo/fusegen/device"
	"github.com/zerfoo/fusegen/heuristic"
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/runtimeinfo"
)

func pointwiseFusion(t *testing.T) (*ir.Fusion, *ir.TensorView) {
	t.Helper()
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 256)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	out, err := ir.NewUnaryExpr(f, "neg", a)
	require.NoError(t, err)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))
	return f, a
}

func bindPointwise(t *testing.T, f *ir.Fusion, a *ir.TensorView) (device.Capability, *runtimeinfo.RuntimeInfo) {
	t.Helper()
	cap, err := device.Get("cuda:sm80")
	require.NoError(t, err)
	ri, err := runtimeinfo.Bind(f, cap, []runtimeinfo.InputMetadata{
		{Tensor: a, Shape: []int64{256}, Strides: []int64{1}},
	})
	require.NoError(t, err)
	return cap, ri
}

func TestChooseHeuristicPicksPointwise(t *testing.T) {
	f, a := pointwiseFusion(t)
	_, ri := bindPointwise(t, f, a)

	kind, err := New().ChooseHeuristic(f, ri)
	require.NoError(t, err)
	assert.Equal(t, heuristic.PointWise, kind)
}

func TestScheduleAndLowerProducesKernel(t *testing.T) {
	f, a := pointwiseFusion(t)
	cap, _ := bindPointwise(t, f, a)

	result, err := New().ScheduleAndLower(f, cap, []runtimeinfo.InputMetadata{
		{Tensor: a, Shape: []int64{256}, Strides: []int64{1}},
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, heuristic.PointWise, result.Kind)
	assert.NotEmpty(t, result.Kernel.Stmts)
}

func TestScheduleAndLowerHonorsForcedIndexType(t *testing.T) {
	f, a := pointwiseFusion(t)
	cap, _ := bindPointwise(t, f, a)

	result, err := New().ScheduleAndLower(f, cap, []runtimeinfo.InputMetadata{
		{Tensor: a, Shape: []int64{256}, Strides: []int64{1}},
	}, Options{IndexType: IndexTypeInt64})
	require.NoError(t, err)
	assert.Equal(t, ir.Int, result.Kernel.IndexType)
}

func TestScheduleAndLowerPopulatesCache(t *testing.T) {
	f, a := pointwiseFusion(t)
	cap, _ := bindPointwise(t, f, a)
	inputs := []runtimeinfo.InputMetadata{{Tensor: a, Shape: []int64{256}, Strides: []int64{1}}}

	c := New()
	c.Cache = cache.New()

	_, err := c.ScheduleAndLower(f, cap, inputs, Options{})
	require.NoError(t, err)

	fp := Fingerprint(f, inputs)
	entry, ok := c.Cache.Get(cap.ID, fp)
	require.True(t, ok)
	assert.Equal(t, heuristic.PointWise, entry.Kind)
}

func TestScheduleAndLowerDisableKernelReuseInvalidatesCache(t *testing.T) {
	f, a := pointwiseFusion(t)
	cap, _ := bindPointwise(t, f, a)
	inputs := []runtimeinfo.InputMetadata{{Tensor: a, Shape: []int64{256}, Strides: []int64{1}}}

	c := New()
	c.Cache = cache.New()
	fp := Fingerprint(f, inputs)
	c.Cache.Put(cache.Entry{Device: cap.ID, Fingerprint: fp, Kind: heuristic.Reduction})

	_, err := c.ScheduleAndLower(f, cap, inputs, Options{DisableKernelReuse: true})
	require.NoError(t, err)

	entry, ok := c.Cache.Get(cap.ID, fp)
	require.True(t, ok)
	assert.Equal(t, heuristic.PointWise, entry.Kind, "disable_kernel_reuse should force re-dispatch, overwriting the stale entry")
}

func TestInferOutputShapesMatchesBoundExtent(t *testing.T) {
	f, a := pointwiseFusion(t)
	_, ri := bindPointwise(t, f, a)

	plans, err := New().InferOutputShapes(f, ri)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, []int64{256}, plans[0].Shape)
}

func TestAllocateOutputsAllocatesNewBuffer(t *testing.T) {
	f, a := pointwiseFusion(t)
	_, ri := bindPointwise(t, f, a)

	c := New()
	plans, err := c.InferOutputShapes(f, ri)
	require.NoError(t, err)

	buffers, err := c.AllocateOutputs(plans, ri, device.NewHostAllocator(), false)
	require.NoError(t, err)
	require.Len(t, buffers, 1)
	buf, ok := buffers[0].([]byte)
	require.True(t, ok)
	assert.Len(t, buf, 256*4)
}

func TestFingerprintStableAcrossRepeatedCalls(t *testing.T) {
	f, a := pointwiseFusion(t)
	inputs := []runtimeinfo.InputMetadata{{Tensor: a, Shape: []int64{256}, Strides: []int64{1}}}

	assert.Equal(t, Fingerprint(f, inputs), Fingerprint(f, inputs))
}

func TestFingerprintDiffersOnShapeChange(t *testing.T) {
	f, a := pointwiseFusion(t)
	small := []runtimeinfo.InputMetadata{{Tensor: a, Shape: []int64{256}, Strides: []int64{1}}}
	large := []runtimeinfo.InputMetadata{{Tensor: a, Shape: []int64{512}, Strides: []int64{1}}}

	assert.NotEqual(t, Fingerprint(f, small), Fingerprint(f, large))
}
