package lower

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kir"
)

func TestGridSyncInsertionWrapsGridParallelReduction(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 1024)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	out, err := ir.NewReductionExpr(f, ir.ReduceAdd, a, []int{0}, false)
	require.NoError(t, err)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))
	out.Domain().Loop()[0].SetParallelType(ir.BIDx)

	stmts := []kir.Stmt{{Kind: kir.StmtExpr, Expr: out.Definition()}}
	result := GridSyncInsertion(stmts)
	require.Len(t, result, 3)
	assert.Equal(t, kir.StmtGridSync, result[0].Kind)
	assert.Equal(t, kir.StmtExpr, result[1].Kind)
	assert.Equal(t, kir.StmtGridSync, result[2].Kind)
}

func TestGridSyncInsertionLeavesBlockLocalReductionAlone(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 1024)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	out, err := ir.NewReductionExpr(f, ir.ReduceAdd, a, []int{0}, false)
	require.NoError(t, err)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))
	out.Domain().Loop()[0].SetParallelType(ir.TIDx)

	stmts := []kir.Stmt{{Kind: kir.StmtExpr, Expr: out.Definition()}}
	result := GridSyncInsertion(stmts)
	assert.Len(t, result, 1)
}

func TestGetGridSyncBufferSize(t *testing.T) {
	size := getGridSyncBufferSize([3]int{128, 64, 1}, []ir.ParallelType{ir.BIDx})
	assert.Equal(t, 128*4*2, size)
}
