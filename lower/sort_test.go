package lower

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kerr"
)

func indexOf(t *testing.T, exprs []*ir.Expression, e *ir.Expression) int {
	t.Helper()
	for i, x := range exprs {
		if x == e {
			return i
		}
	}
	t.Fatalf("expression not found in sorted list")
	return -1
}

func TestSortExpressionsOrdersProducerBeforeConsumer(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 4), ir.NewIntConst(f, 4)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))

	mid, err := ir.NewUnaryExpr(f, "neg", a)
	require.NoError(t, err)
	out, err := ir.NewUnaryExpr(f, "abs", mid)
	require.NoError(t, err)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))

	sorted, err := SortExpressions(f)
	require.NoError(t, err)
	require.Len(t, sorted, 2)

	producer := mid.Definition()
	consumer := out.Definition()
	assert.Less(t, indexOf(t, sorted, producer), indexOf(t, sorted, consumer))
}

func TestSortExpressionsDetectsCycle(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 4)}, nil, ir.Float)
	b, err := ir.NewUnaryExpr(f, "neg", a)
	require.NoError(t, err)

	// Manufacture a cycle by making a's own definition consume b, which is
	// structurally invalid but exercises the cycle-detection path directly
	// since NewExpression does not itself forbid it.
	_, err = ir.NewExpression(f, ir.OpUnary, "neg2", []ir.Operand{ir.TensorOperand(b)}, []ir.Operand{ir.TensorOperand(a)})
	require.NoError(t, err)

	_, err = SortExpressions(f)
	require.Error(t, err)
	assert.True(t, errors.Is(err, kerr.InvalidInput))
}
