package schedule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerfoo/fusegen/domaingraph"
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kerr"
)

func newSched(t *testing.T, f *ir.Fusion) *Scheduler {
	t.Helper()
	idm, err := domaingraph.Build(f, nil)
	require.NoError(t, err)
	return New(f, idm, 8, 0)
}

func TestSplitReplacesLoopAxis(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 32)}, nil, ir.Float)
	s := newSched(t, f)

	require.NoError(t, s.Split(a, 0, ir.NewIntConst(f, 8), true))
	assert.Len(t, a.Domain().Loop(), 2)
	assert.Equal(t, int64(4), a.Domain().Loop()[0].Extent().Int())
	assert.Equal(t, int64(8), a.Domain().Loop()[1].Extent().Int())
}

func TestReorderRejectsNonBijection(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 4), ir.NewIntConst(f, 8)}, nil, ir.Float)
	s := newSched(t, f)

	err := s.Reorder(a, []int{0, 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, kerr.InvalidSchedule))
}

func TestCacheBeforeCpAsyncRequiresSM80(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 4)}, nil, ir.Float)
	idm, err := domaingraph.Build(f, nil)
	require.NoError(t, err)
	s := New(f, idm, 7, 5)

	_, err = s.CacheBefore(a, ir.CacheCpAsync)
	require.Error(t, err)
	assert.True(t, errors.Is(err, kerr.UnsupportedHardware))
}

func TestCacheBeforePlainAlwaysAllowed(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 4)}, nil, ir.Float)
	idm, err := domaingraph.Build(f, nil)
	require.NoError(t, err)
	s := New(f, idm, 7, 5)

	cached, err := s.CacheBefore(a, ir.CachePlain)
	require.NoError(t, err)
	assert.Equal(t, ir.Local, cached.MemoryType())
}

func TestComputeAtStandardRejectsIncompatibleDepth(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 8)}, nil, ir.Float)
	out, err := ir.NewUnaryExpr(f, "Neg", a)
	require.NoError(t, err)
	s := newSched(t, f)

	require.NoError(t, s.Split(out, 0, ir.NewIntConst(f, 4), true))

	err = s.ComputeAt(a, out, 2, Standard)
	require.Error(t, err)
	assert.True(t, errors.Is(err, kerr.InvalidSchedule))
}

func TestInlineAtAmbiguousConsumerRejected(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 8)}, nil, ir.Float)
	_, err := ir.NewUnaryExpr(f, "Neg", a)
	require.NoError(t, err)
	_, err = ir.NewUnaryExpr(f, "Exp", a)
	require.NoError(t, err)
	s := newSched(t, f)

	err = s.InlineAt(a, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, kerr.InvalidSchedule))
}

func TestParallelizePropagatesToWelfordSiblings(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 4), ir.NewIntConst(f, 8)}, nil, ir.Float)
	avg, varN, n, err := ir.NewWelfordExpr(f, a, []int{1})
	require.NoError(t, err)
	s := newSched(t, f)

	require.NoError(t, s.Parallelize(avg, 0, ir.TIDx))
	assert.Equal(t, ir.TIDx, varN.Domain().Loop()[0].ParallelType())
	assert.Equal(t, ir.TIDx, n.Domain().Loop()[0].ParallelType())
}

func TestCircularBufferRejectsDepthBelowTwo(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 4)}, nil, ir.Float)
	s := newSched(t, f)

	err := s.CircularBuffer(a, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, kerr.InvalidSchedule))
}
