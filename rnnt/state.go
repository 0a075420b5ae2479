package rnnt

import (
	"fmt"

	"github.com/ieee0824/transducer-go/tensor"
)

// State is the recurrent state bundle of the prediction network: hidden and
// cell tensors, each [layers, batch, hidden]. A State belongs to exactly one
// hypothesis or caller at a time; use Clone before handing it to another.
type State struct {
	H *tensor.Tensor
	C *tensor.Tensor
}

// Len returns the number of tensors in the bundle.
func (s *State) Len() int { return 2 }

// Tensors returns the bundle in order (H, C).
func (s *State) Tensors() []*tensor.Tensor {
	return []*tensor.Tensor{s.H, s.C}
}

// Batch returns the batch dimension.
func (s *State) Batch() int { return s.H.Dim(1) }

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	return &State{H: s.H.Clone(), C: s.C.Clone()}
}

// layerBlock returns the [batch × hidden] block of layer l in t.
func layerBlock(t *tensor.Tensor, l int) []float64 {
	n := t.Dim(1) * t.Dim(2)
	return t.Data[l*n : (l+1)*n]
}

// check verifies the bundle is [layers, batch, hidden] with matching tags.
func (s *State) check(layers, hidden int) error {
	if s.H == nil || s.C == nil {
		return fmt.Errorf("%w: incomplete state bundle", ErrShapeMismatch)
	}
	for i, t := range s.Tensors() {
		if t.Rank() != 3 || t.Dim(0) != layers || t.Dim(2) != hidden {
			return fmt.Errorf("%w: state[%d] shape %v, want [%d, B, %d]", ErrShapeMismatch, i, t.Shape, layers, hidden)
		}
	}
	if !s.H.SameShape(s.C) {
		return fmt.Errorf("%w: state shapes %v and %v differ", ErrShapeMismatch, s.H.Shape, s.C.Shape)
	}
	if !s.H.SameKind(s.C) {
		return fmt.Errorf("%w: state tensors differ in dtype/device (%s/%s vs %s/%s)",
			ErrShapeMismatch, s.H.DType, s.H.Device, s.C.DType, s.C.Device)
	}
	return nil
}
