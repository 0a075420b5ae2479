// Package tensor is the small dense CPU backend the transducer modules run
// on. Values are always computed in float64; DType and Device are carried as
// tags so that state bundles and outputs can be checked against the tensors
// they were derived from.
package tensor

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// DType tags the nominal element type of a tensor.
type DType string

const (
	Float32 DType = "float32"
	Float64 DType = "float64"
)

// Device tags where a tensor nominally lives.
type Device string

// CPU is the only device the in-tree backend computes on.
const CPU Device = "cpu"

// Tensor is a dense row-major n-dimensional array.
type Tensor struct {
	Data   []float64
	Shape  []int
	DType  DType
	Device Device
}

// Zeros allocates a zero-valued float32/cpu tensor.
func Zeros(shape ...int) *Tensor {
	return ZerosAs(Float32, CPU, shape...)
}

// ZerosAs allocates a zero-valued tensor with the given tags.
func ZerosAs(dtype DType, device Device, shape ...int) *Tensor {
	return &Tensor{
		Data:   make([]float64, numel(shape)),
		Shape:  slices.Clone(shape),
		DType:  dtype,
		Device: device,
	}
}

// ZerosLike allocates a zero tensor with ref's dtype and device and the given shape.
func ZerosLike(ref *Tensor, shape ...int) *Tensor {
	return ZerosAs(ref.DType, ref.Device, shape...)
}

// FromData wraps data with the given shape. len(data) must match the shape.
func FromData(data []float64, shape ...int) (*Tensor, error) {
	if n := numel(shape); n != len(data) {
		return nil, fmt.Errorf("tensor: %d values do not fill shape %v (%d)", len(data), shape, n)
	}
	return &Tensor{Data: data, Shape: slices.Clone(shape), DType: Float32, Device: CPU}, nil
}

// FromRows builds a [len(rows), len(rows[0])] tensor.
func FromRows(rows [][]float64) (*Tensor, error) {
	if len(rows) == 0 {
		return Zeros(0, 0), nil
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("tensor: row %d has %d values, want %d", i, len(r), cols)
		}
		data = append(data, r...)
	}
	return FromData(data, len(rows), cols)
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.Shape) }

// Dim returns the size of dimension i.
func (t *Tensor) Dim(i int) int { return t.Shape[i] }

// Len returns the number of elements.
func (t *Tensor) Len() int { return len(t.Data) }

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		Data:   slices.Clone(t.Data),
		Shape:  slices.Clone(t.Shape),
		DType:  t.DType,
		Device: t.Device,
	}
}

// SameShape reports whether t and o have identical shapes.
func (t *Tensor) SameShape(o *Tensor) bool {
	return slices.Equal(t.Shape, o.Shape)
}

// SameKind reports whether t and o share dtype and device.
func (t *Tensor) SameKind(o *Tensor) bool {
	return t.DType == o.DType && t.Device == o.Device
}

// HasShape reports whether t has exactly the given shape.
func (t *Tensor) HasShape(shape ...int) bool {
	return slices.Equal(t.Shape, shape)
}

// offset returns the flat index of idx.
func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.Shape) {
		panic(fmt.Sprintf("tensor: %d indices for rank %d", len(idx), len(t.Shape)))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= t.Shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", idx, t.Shape))
		}
		off = off*t.Shape[i] + x
	}
	return off
}

// At returns the element at idx.
func (t *Tensor) At(idx ...int) float64 { return t.Data[t.offset(idx)] }

// Set stores v at idx.
func (t *Tensor) Set(v float64, idx ...int) { t.Data[t.offset(idx)] = v }

// Vec returns the innermost vector addressed by the leading indices,
// sharing storage with t.
func (t *Tensor) Vec(lead ...int) []float64 {
	if len(lead) != len(t.Shape)-1 {
		panic(fmt.Sprintf("tensor: %d leading indices for rank %d", len(lead), len(t.Shape)))
	}
	last := t.Shape[len(t.Shape)-1]
	off := 0
	for i, x := range lead {
		off = off*t.Shape[i] + x
	}
	off *= last
	return t.Data[off : off+last]
}

// Transpose12 swaps the last two axes of a rank-3 tensor ([B,X,Y] -> [B,Y,X]).
func (t *Tensor) Transpose12() (*Tensor, error) {
	if t.Rank() != 3 {
		return nil, fmt.Errorf("tensor: transpose of rank %d, want 3", t.Rank())
	}
	b, x, y := t.Shape[0], t.Shape[1], t.Shape[2]
	out := ZerosLike(t, b, y, x)
	for i := 0; i < b; i++ {
		src := t.Data[i*x*y : (i+1)*x*y]
		dst := out.Data[i*x*y : (i+1)*x*y]
		for r := 0; r < x; r++ {
			for c := 0; c < y; c++ {
				dst[c*x+r] = src[r*y+c]
			}
		}
	}
	return out, nil
}

// SliceBatch returns a copy of batch element i of a tensor, keeping a
// leading batch axis of size 1.
func (t *Tensor) SliceBatch(i int) *Tensor {
	inner := t.Len() / t.Shape[0]
	shape := slices.Clone(t.Shape)
	shape[0] = 1
	out := ZerosLike(t, shape...)
	copy(out.Data, t.Data[i*inner:(i+1)*inner])
	return out
}

// Distance returns the L2 distance between the elements of a and b.
func Distance(a, b *Tensor) float64 {
	return floats.Distance(a.Data, b.Data, 2)
}

// AbsDiffSum returns sum(|a - b|).
func AbsDiffSum(a, b *Tensor) float64 {
	return floats.Distance(a.Data, b.Data, 1)
}

// String summarises t without dumping its values.
func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s, device=%s)", t.Shape, t.DType, t.Device)
}
