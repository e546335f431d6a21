package domaingraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerfoo/fusegen/ir"
)

func TestExactMapsIdenticalUnaryShape(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 8)}, nil, ir.Float)
	out, err := ir.NewUnaryExpr(f, "Neg", a)
	require.NoError(t, err)

	m, err := Build(f, nil)
	require.NoError(t, err)

	mapped, err := m.AreMapped(a.Domain().Root()[0], out.Domain().Root()[0], Exact)
	require.NoError(t, err)
	assert.True(t, mapped)
}

func TestBroadcastPairIsPermissiveNotExact(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 8)}, nil, ir.Float)
	bc, err := ir.NewBroadcastExpr(f, a, []bool{true, false})
	require.NoError(t, err)
	b := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 4), ir.NewIntConst(f, 8)}, nil, ir.Float)
	_, err = ir.NewBinaryExpr(f, "Add", bc, b)
	require.NoError(t, err)

	m, err := Build(f, nil)
	require.NoError(t, err)

	bcAxis := bc.Domain().Root()[0]
	concreteAxis := b.Domain().Root()[0]

	permissive, err := m.AreMapped(bcAxis, concreteAxis, Permissive)
	require.NoError(t, err)
	assert.True(t, permissive)

	exact, err := m.AreMapped(bcAxis, concreteAxis, Exact)
	require.NoError(t, err)
	assert.False(t, exact)
}

func TestMatMulContractedAxisExactMapped(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 4), ir.NewIntConst(f, 8)}, nil, ir.Float)
	b := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 8), ir.NewIntConst(f, 16)}, nil, ir.Float)
	_, err := ir.NewMatMulExpr(f, a, b)
	require.NoError(t, err)

	m, err := Build(f, nil)
	require.NoError(t, err)

	mapped, err := m.AreMapped(a.Domain().Logical()[1], b.Domain().Logical()[0], Exact)
	require.NoError(t, err)
	assert.True(t, mapped)
}

func TestSelfMappingPermittedEscapeHatch(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 8)}, nil, ir.Float)
	out, err := ir.NewUnaryExpr(f, "Neg", a)
	require.NoError(t, err)

	root := out.Domain().Root()[0]
	outer, inner, err := ir.Split(f, root, ir.NewIntConst(f, 4), true)
	require.NoError(t, err)
	out.Domain().SetLoop([]*ir.IterDomain{outer, inner})

	// Split itself creates no mapping between outer and inner, so Build
	// accepts the fusion both without and with them listed in
	// selfMappingPermitted; the permitted model then has an exact
	// self-mapping between the two forced on it through MapExact.
	_, err = Build(f, nil)
	require.NoError(t, err)

	m, err := Build(f, map[*ir.IterDomain]bool{outer: true, inner: true})
	require.NoError(t, err)
	m.MapExact(outer, inner)
}

func TestWeaklyConnectedSingleChain(t *testing.T) {
	f := ir.New()
	a := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 8)}, nil, ir.Float)
	_, err := ir.NewUnaryExpr(f, "Neg", a)
	require.NoError(t, err)

	ok, err := WeaklyConnected(f)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWeaklyConnectedDisjointTensorsFails(t *testing.T) {
	f := ir.New()
	ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 8)}, nil, ir.Float)
	ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 4)}, nil, ir.Float)

	ok, err := WeaklyConnected(f)
	require.NoError(t, err)
	assert.False(t, ok)
}
