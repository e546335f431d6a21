package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerfoo/fusegen/ir"
)

func TestIdentitySegmentReturnsWholeFusion(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 8)}, nil, ir.Float)
	require.NoError(t, f.AddInput(ir.TensorOperand(a)))
	out, err := ir.NewUnaryExpr(f, "neg", a)
	require.NoError(t, err)
	require.NoError(t, f.AddOutput(ir.TensorOperand(out)))

	segs, err := Identity{}.Segment(f)
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, f.Expressions(), segs[0].Expressions)
	assert.ElementsMatch(t, []*ir.TensorView{a}, segs[0].BoundaryInputs)
	assert.ElementsMatch(t, []*ir.TensorView{out}, segs[0].BoundaryOutputs)
}
