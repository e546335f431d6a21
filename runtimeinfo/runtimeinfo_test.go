package runtimeinfo

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zerfoo/fusegen/device"
	"github.com/zerfoo/fusegen/ir"
	"github.com/zerfoo/fusegen/kerr"
)

func TestIndexTypeChoosesInt32ForSmallTensor(t *testing.T) {
	f := ir.New()
	tv := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 1024)}, nil, ir.Float)
	cap, err := device.Get("cuda:sm80")
	require.NoError(t, err)
	ri, err := Bind(f, cap, []InputMetadata{{Tensor: tv, Shape: []int64{1024}, Strides: []int64{1}}})
	require.NoError(t, err)

	it, err := ri.IndexType()
	require.NoError(t, err)
	assert.Equal(t, ir.Int32, it)
}

func TestIndexTypeChoosesInt64ForHugeTensor(t *testing.T) {
	f := ir.New()
	tv := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 1)}, nil, ir.Float)
	cap, _ := device.Get("cuda:sm80")
	ri, err := Bind(f, cap, []InputMetadata{{Tensor: tv, Shape: []int64{1 << 33}, Strides: []int64{1}}})
	require.NoError(t, err)

	it, err := ri.IndexType()
	require.NoError(t, err)
	assert.Equal(t, ir.Int, it)
}

func TestForcedInt32OverflowFails(t *testing.T) {
	f := ir.New()
	tv := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 1)}, nil, ir.Float)
	cap, _ := device.Get("cuda:sm80")
	ri, err := Bind(f, cap, []InputMetadata{{Tensor: tv, Shape: []int64{1 << 33}, Strides: []int64{1}}})
	require.NoError(t, err)
	ri.ForceIndexType(ir.Int32)

	_, err = ri.IndexType()
	require.Error(t, err)
	assert.True(t, errors.Is(err, kerr.IndexTypeOverflow))
}

func TestContiguityDetectsRowMajor(t *testing.T) {
	f := ir.New()
	tv := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 4), ir.NewIntConst(f, 8)}, nil, ir.Float)
	cap, _ := device.Get("cuda:sm80")
	ri, err := Bind(f, cap, []InputMetadata{{Tensor: tv, Shape: []int64{4, 8}, Strides: []int64{8, 1}}})
	require.NoError(t, err)

	c := ri.Contiguity(tv)
	assert.Equal(t, []ir.Contiguity{ir.ContiguityTrue, ir.ContiguityTrue}, c)
}

func TestContiguityDetectsTransposed(t *testing.T) {
	f := ir.New()
	tv := ir.NewTensorView(f, []*ir.Value{ir.NewIntConst(f, 4), ir.NewIntConst(f, 8)}, nil, ir.Float)
	cap, _ := device.Get("cuda:sm80")
	ri, err := Bind(f, cap, []InputMetadata{{Tensor: tv, Shape: []int64{4, 8}, Strides: []int64{1, 4}}})
	require.NoError(t, err)

	c := ri.Contiguity(tv)
	assert.Equal(t, ir.ContiguityFalse, c[1])
}
