package rnnt

import (
	"math"
	"math/rand"

	"github.com/ieee0824/transducer-go/internal/blas"
)

// Linear holds weights and biases for a single fully-connected layer.
// W is [Out × In] row-major, B is [Out].
type Linear struct {
	W   []float64
	B   []float64
	In  int
	Out int
}

// newLinear draws W and B from U(-1/sqrt(in), 1/sqrt(in)).
func newLinear(in, out int, rng *rand.Rand) Linear {
	l := Linear{
		W:   make([]float64, out*in),
		B:   make([]float64, out),
		In:  in,
		Out: out,
	}
	bound := 1.0 / math.Sqrt(float64(in))
	uniformInit(l.W, bound, rng)
	uniformInit(l.B, bound, rng)
	return l
}

func uniformInit(w []float64, bound float64, rng *rand.Rand) {
	for i := range w {
		w[i] = (2*rng.Float64() - 1) * bound
	}
}

// forward computes dst[rows × Out] = x[rows × In] · W^T + B.
func (l *Linear) forward(x []float64, rows int, dst []float64) {
	blas.Dgemm(false, true, rows, l.Out, l.In,
		1.0, x, l.In, l.W, l.In, 0.0, dst, l.Out)
	addBias(dst, l.B, rows, l.Out)
}

func (l *Linear) numWeights() int { return len(l.W) + len(l.B) }

// addBias adds bias to every row of z in place.
func addBias(z []float64, bias []float64, rows, cols int) {
	for i := 0; i < rows; i++ {
		row := z[i*cols : (i+1)*cols]
		for j := range row {
			row[j] += bias[j]
		}
	}
}
