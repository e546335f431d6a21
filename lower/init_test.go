package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kir"
)

func TestInitializationInsertionZeroFillsReductionOutput(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 8), ir.NewIntConst(f, 16)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	out, err := ir.NewReductionExpr(f, ir.ReduceAdd, a, []int{1}, false)
	require.NoError(t, err)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))

	allocs := []kir.Stmt{kir.Allocate(out, ir.Global, nil)}
	result := InitializationInsertion(allocs, []*ir.Expression{out.Definition()})
	require.Len(t, result, 1)
	assert.True(t, result[0].ZeroInit)
}

func TestInitializationInsertionSkipsCpAsyncBackedLoad(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 8), ir.NewIntConst(f, 16)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	out, err := ir.NewReductionExpr(f, ir.ReduceAdd, a, []int{1}, false)
	require.NoError(t, err)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))
	out.SetCacheOp(ir.CacheCpAsync)

	allocs := []kir.Stmt{kir.Allocate(out, ir.Global, nil)}
	result := InitializationInsertion(allocs, []*ir.Expression{out.Definition()})
	require.Len(t, result, 1)
	assert.False(t, result[0].ZeroInit)
}

func TestInitializationInsertionLeavesNonReductionAlone(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 8)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	out, err := ir.NewUnaryExpr(f, "neg", a)
	require.NoError(t, err)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))

	allocs := []kir.Stmt{kir.Allocate(out, ir.Global, nil)}
	result := InitializationInsertion(allocs, []*ir.Expression{out.Definition()})
	require.Len(t, result, 1)
	assert.False(t, result[0].ZeroInit)
}
