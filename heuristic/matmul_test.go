package heuristic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerfoo/fusegen/ir"
)

func buildMatmulFusion(t *testing.T) (*ir.Fusion, *ir.TensorView) {
	t.Helper()
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 256), ir.NewIntConst(f, 128)}, nil, ir.Float)
	b := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 128), ir.NewIntConst(f, 256)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	require.NoError(t, f.AddInput(ir.TensorOperand(b)))
	out, err := ir.NewMatMulExpr(f, a, b)
	require.NoError(t, err)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))
	return f, out
}

func TestMatmulSchedulerUsesCpAsyncOnAmpere(t *testing.T) {
	f, _ := buildMatmulFusion(t)
	ri := bindRuntime(t, f, "cuda:sm80")
	s := newMatmulScheduler()

	require.True(t, s.CanScheduleCompileTime(f))
	params, err := s.ComputeHeuristics(f, ri, nil)
	require.NoError(t, err)
	mp := params.(MatmulParams)
	assert.Greater(t, mp.CircularBufferDepth, 1)
	assert.False(t, mp.UseCpAsyncBulk)
}

func TestMatmulSchedulerFallsBackBeforeAmpere(t *testing.T) {
	f, _ := buildMatmulFusion(t)
	ri := bindRuntime(t, f, "cuda:sm70")
	s := newMatmulScheduler()

	params, err := s.ComputeHeuristics(f, ri, nil)
	require.NoError(t, err)
	mp := params.(MatmulParams)
	assert.Equal(t, 1, mp.CircularBufferDepth)
}

func TestMatmulSchedulerUsesTMAOnHopper(t *testing.T) {
	f, _ := buildMatmulFusion(t)
	ri := bindRuntime(t, f, "cuda:sm90")
	s := newMatmulScheduler()

	params, err := s.ComputeHeuristics(f, ri, nil)
	require.NoError(t, err)
	mp := params.(MatmulParams)
	assert.True(t, mp.UseCpAsyncBulk)
}

func TestMatmulSchedulerSchedulesWithoutError(t *testing.T) {
	f, out := buildMatmulFusion(t)
	ri := bindRuntime(t, f, "cuda:sm80")
	s := newMatmulScheduler()

	params, err := s.ComputeHeuristics(f, ri, nil)
	require.NoError(t, err)

	sch := newFusionSchedule(t, f)
	require.NoError(t, s.Schedule(f, sch, params))
	assert.NotEmpty(t, out.Domain().Loop())
}
