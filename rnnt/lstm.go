package rnnt

import (
	"math"
	"math/rand"

	"github.com/ieee0824/transducer-go/internal/blas"
)

// numGates is the LSTM gate count (input, forget, cell, output).
const numGates = 4

// LSTMLayer holds one LSTM layer in i, f, g, o gate order.
// WIH is [4H × In], WHH is [4H × H], BIH and BHH are [4H].
type LSTMLayer struct {
	WIH    []float64
	WHH    []float64
	BIH    []float64
	BHH    []float64
	In     int
	Hidden int
}

func newLSTMLayer(in, hidden int, forgetBias *float64, rng *rand.Rand) LSTMLayer {
	g := numGates * hidden
	l := LSTMLayer{
		WIH:    make([]float64, g*in),
		WHH:    make([]float64, g*hidden),
		BIH:    make([]float64, g),
		BHH:    make([]float64, g),
		In:     in,
		Hidden: hidden,
	}
	bound := 1.0 / math.Sqrt(float64(hidden))
	uniformInit(l.WIH, bound, rng)
	uniformInit(l.WHH, bound, rng)
	uniformInit(l.BIH, bound, rng)
	uniformInit(l.BHH, bound, rng)
	if forgetBias != nil {
		for j := hidden; j < 2*hidden; j++ {
			l.BIH[j] = *forgetBias
			l.BHH[j] = 0
		}
	}
	return l
}

func (l *LSTMLayer) numWeights() int {
	return len(l.WIH) + len(l.WHH) + len(l.BIH) + len(l.BHH)
}

// step advances the layer by one time step for a batch.
// x is [batch × In]; h, c are [batch × H] and are only read; the new state
// goes to hOut, cOut. gates is scratch of [batch × 4H].
func (l *LSTMLayer) step(x []float64, batch int, h, c, hOut, cOut, gates []float64) {
	H := l.Hidden
	G := numGates * H
	blas.Dgemm(false, true, batch, G, l.In, 1.0, x, l.In, l.WIH, l.In, 0.0, gates, G)
	blas.Dgemm(false, true, batch, G, H, 1.0, h, H, l.WHH, H, 1.0, gates, G)

	for b := 0; b < batch; b++ {
		z := gates[b*G : (b+1)*G]
		for j := 0; j < H; j++ {
			ig := sigmoid(z[j] + l.BIH[j] + l.BHH[j])
			fg := sigmoid(z[H+j] + l.BIH[H+j] + l.BHH[H+j])
			gg := math.Tanh(z[2*H+j] + l.BIH[2*H+j] + l.BHH[2*H+j])
			og := sigmoid(z[3*H+j] + l.BIH[3*H+j] + l.BHH[3*H+j])
			cn := fg*c[b*H+j] + ig*gg
			cOut[b*H+j] = cn
			hOut[b*H+j] = og * math.Tanh(cn)
		}
	}
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}
