package heuristic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerfoo/fusegen/domaingraph"
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/schedule"
)

func newFusionSchedule(t *testing.T, f *ir.Fusion) *schedule.Scheduler {
	t.Helper()
	idm, err := domaingraph.Build(f, nil)
	require.NoError(t, err)
	return schedule.New(f, idm, 8, 0)
}

func TestReductionSchedulerHandlesInnerReduction(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 64), ir.NewIntConst(f, 256)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	out, err := ir.NewReductionExpr(f, ir.ReduceAdd, a, []int{1}, false)
	require.NoError(t, err)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))

	ri := bindRuntime(t, f, "cuda:sm80")
	summary, err := Build(f, nil)
	require.NoError(t, err)

	s := newReductionScheduler()
	assert.True(t, s.CanScheduleCompileTime(f))

	params, err := s.ComputeHeuristics(f, ri, summary)
	require.NoError(t, err)

	sch := newFusionSchedule(t, f)
	require.NoError(t, s.Schedule(f, sch, params))

	sawReductionParallel := false
	for _, d := range out.Domain().Loop() {
		if d.IsReduction() && d.ParallelType() == ir.TIDx {
			sawReductionParallel = true
		}
	}
	assert.True(t, sawReductionParallel)
}

func TestInnerPersistentRejectsOversizedBuffer(t *testing.T) {
	f := ir.New()
	// 1M elements x 4 bytes vastly exceeds any registered device's shared
	// memory budget.
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 1), ir.NewIntConst(f, 1 << 20)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	out, err := ir.NewReductionExpr(f, ir.ReduceAdd, a, []int{1}, false)
	require.NoError(t, err)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))

	ri := bindRuntime(t, f, "cuda:sm80")
	summary, err := Build(f, nil)
	require.NoError(t, err)

	s := newInnerPersistentScheduler()
	_, err = s.ComputeHeuristics(f, ri, summary)
	require.Error(t, err)
}

func TestInnerOuterPersistentDetectsBothAxes(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 32), ir.NewIntConst(f, 64)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	inner, err := ir.NewReductionExpr(f, ir.ReduceAdd, a, []int{1}, false)
	require.NoError(t, err)
	outerIn := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 32), ir.NewIntConst(f, 64)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(outerIn)))
	outer, err := ir.NewReductionExpr(f, ir.ReduceAdd, outerIn, []int{0}, false)
	require.NoError(t, err)
	require.NoError(t, f.AddOutput(ir.TensorOperand(inner)))
	require.NoError(t, f.AddOutput(ir.TensorOperand(outer)))

	assert.True(t, hasInnerAndOuterReduction(f))
}
