package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerosLike_KeepsTags(t *testing.T) {
	ref := ZerosAs(Float64, CPU, 4)
	z := ZerosLike(ref, 1, 4, 32)

	assert.Equal(t, []int{1, 4, 32}, z.Shape)
	assert.Equal(t, Float64, z.DType)
	assert.Equal(t, CPU, z.Device)
	assert.Len(t, z.Data, 128)
	assert.True(t, z.SameKind(ref))
}

func TestAtSetVec(t *testing.T) {
	x := Zeros(2, 3, 4)
	x.Set(7, 1, 2, 3)
	assert.Equal(t, 7.0, x.At(1, 2, 3))
	assert.Equal(t, []float64{0, 0, 0, 7}, x.Vec(1, 2))

	x.Vec(0, 0)[1] = 5
	assert.Equal(t, 5.0, x.At(0, 0, 1))
}

func TestTranspose12(t *testing.T) {
	x, err := FromData([]float64{1, 2, 3, 4, 5, 6}, 1, 2, 3)
	require.NoError(t, err)

	y, err := x.Transpose12()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 2}, y.Shape)
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, y.Data)

	back, err := y.Transpose12()
	require.NoError(t, err)
	assert.Equal(t, x.Data, back.Data)

	_, err = Zeros(2, 2).Transpose12()
	assert.Error(t, err)
}

func TestFromData_ShapeCheck(t *testing.T) {
	_, err := FromData([]float64{1, 2, 3}, 2, 2)
	assert.Error(t, err)
}

func TestFromRows(t *testing.T) {
	x, err := FromRows([][]float64{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2}, x.Shape)

	_, err = FromRows([][]float64{{1, 2}, {3}})
	assert.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	x := Zeros(2, 2)
	y := x.Clone()
	y.Data[0] = 1
	assert.Equal(t, 0.0, x.Data[0])
	assert.True(t, x.SameShape(y))
}

func TestSliceBatch(t *testing.T) {
	x, _ := FromData([]float64{1, 2, 3, 4, 5, 6}, 3, 1, 2)
	b := x.SliceBatch(1)
	assert.Equal(t, []int{1, 1, 2}, b.Shape)
	assert.Equal(t, []float64{3, 4}, b.Data)
}

func TestDistance(t *testing.T) {
	a, _ := FromData([]float64{0, 0}, 2)
	b, _ := FromData([]float64{3, -4}, 2)
	assert.InDelta(t, 5.0, Distance(a, b), 1e-12)
	assert.InDelta(t, 7.0, AbsDiffSum(a, b), 1e-12)
}
