package ir

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFusionRejectsLiteralInput(t *testing.T) {
	f := New()
	lit := NewIntConst(f, 5)
	err := f.AddInput(ScalarOperand(lit))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errInvalidInput))
}

func TestFusionAcceptsSymbolicInput(t *testing.T) {
	f := New()
	sym := NewSymbolicValue(f, Int)
	require.NoError(t, f.AddInput(ScalarOperand(sym)))
	assert.Len(t, f.Inputs(), 1)
}

func TestPromoteCommutative(t *testing.T) {
	cases := []struct{ a, b, want DataType }{
		{Bool, Int32, Int32},
		{Int32, Float, Float},
		{Half, BFloat16, BFloat16},
		{Float, Double, Double},
	}
	for _, c := range cases {
		got, _ := Promote(c.a, c.b)
		assert.Equal(t, c.want, got)
		got2, _ := Promote(c.b, c.a)
		assert.Equal(t, c.want, got2, "promotion must be commutative")
	}
}

func TestPromoteUnsignedRequiresBitcast(t *testing.T) {
	_, bc := Promote(Int32, UInt32)
	assert.True(t, bc)
}

func TestSplitNonDivisibleRecorded(t *testing.T) {
	f := New()
	extent := NewIntConst(f, 24)
	id := NewRootIterDomain(f, extent, Iteration)

	factor := NewIntConst(f, 5)
	outer, inner, err := Split(f, id, factor, true)
	require.NoError(t, err)
	assert.False(t, outer.definition.Divisible())
	assert.Equal(t, int64(5), inner.extent.Int())
}

func TestSplitDivisible(t *testing.T) {
	f := New()
	id := NewRootIterDomain(f, NewIntConst(f, 24), Iteration)
	outer, _, err := Split(f, id, NewIntConst(f, 8), true)
	require.NoError(t, err)
	assert.True(t, outer.definition.Divisible())
	assert.Equal(t, int64(3), outer.extent.Int())
}

func TestMergeBroadcastYieldsBroadcast(t *testing.T) {
	f := New()
	a := NewBroadcastIterDomain(f)
	b := NewBroadcastIterDomain(f)
	merged, err := Merge(f, a, b)
	require.NoError(t, err)
	assert.True(t, merged.isBroadcast)
	assert.Equal(t, int64(1), merged.extent.Int())
}

func TestTensorDomainValidateRootLogicalAfterSplit(t *testing.T) {
	f := New()
	tv := NewTensorView(f, []*Value{NewIntConst(f, 24)}, nil, Float)
	td := tv.Domain()
	outer, inner, err := Split(f, td.root[0], NewIntConst(f, 8), true)
	require.NoError(t, err)
	td.SetLoop([]*IterDomain{outer, inner})
	require.NoError(t, td.Validate())
}

func TestCrossFusionInputRejected(t *testing.T) {
	f1, f2 := New(), New()
	v := NewSymbolicValue(f1, Int)
	err := f2.AddInput(ScalarOperand(v))
	require.Error(t, err)
}

func TestBinaryExprPromotesType(t *testing.T) {
	f := New()
	a := NewTensorView(f, []*Value{NewIntConst(f, 4)}, nil, Int32)
	b := NewTensorView(f, []*Value{NewIntConst(f, 4)}, nil, Float)
	out, err := NewBinaryExpr(f, "Add", a, b)
	require.NoError(t, err)
	assert.Equal(t, Float, out.DType())
}

func TestReductionDropsAxisFromLogical(t *testing.T) {
	f := New()
	a := NewTensorView(f, []*Value{NewIntConst(f, 4), NewIntConst(f, 8)}, nil, Float)
	out, err := NewReductionExpr(f, ReduceAdd, a, []int{1}, false)
	require.NoError(t, err)
	assert.Len(t, out.Domain().Logical(), 1)
	assert.True(t, out.Domain().Root()[1].IsReduction())
}

func TestReplaceInputPreservesPredicates(t *testing.T) {
	f := New()
	a := NewTensorView(f, []*Value{NewIntConst(f, 4)}, nil, Float)
	b := NewTensorView(f, []*Value{NewIntConst(f, 4)}, nil, Float)
	out, err := NewUnaryExpr(f, "Neg", a)
	require.NoError(t, err)
	e := out.Definition()
	pred := NewBoolConst(f, true)
	e.SetWritePredicate(pred)
	e.ReplaceInput(TensorOperand(a), TensorOperand(b))
	assert.Same(t, pred, e.WritePredicate())
	assert.Same(t, b, e.Inputs()[0].Tensor)
}
