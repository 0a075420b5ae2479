package preprocessor

import (
	"math"
	"math/cmplx"

	"github.com/ieee0824/transducer-go/internal/simd"
)

// fftWorkspace holds reusable buffers for a radix-2 FFT over split
// real/imaginary arrays.
type fftWorkspace struct {
	bufRe []float64
	bufIm []float64
	spec  []float64 // [nfft/2+1]
	perm  []int
	twRe  [][]float64 // twiddle factors per stage
	twIm  [][]float64
}

func newFFTWorkspace(nfft int) *fftWorkspace {
	bits := 0
	for v := nfft; v > 1; v >>= 1 {
		bits++
	}
	perm := make([]int, nfft)
	for i := range perm {
		perm[i] = bitReverse(i, bits)
	}

	var twRe, twIm [][]float64
	for size := 2; size <= nfft; size *= 2 {
		half := size / 2
		re := make([]float64, half)
		im := make([]float64, half)
		w := cmplx.Exp(complex(0, -2*math.Pi/float64(size)))
		wn := complex(1, 0)
		for k := 0; k < half; k++ {
			re[k] = real(wn)
			im[k] = imag(wn)
			wn *= w
		}
		twRe = append(twRe, re)
		twIm = append(twIm, im)
	}

	return &fftWorkspace{
		bufRe: make([]float64, nfft),
		bufIm: make([]float64, nfft),
		spec:  make([]float64, nfft/2+1),
		perm:  perm,
		twRe:  twRe,
		twIm:  twIm,
	}
}

func bitReverse(x, bits int) int {
	var r int
	for i := 0; i < bits; i++ {
		r = (r << 1) | (x & 1)
		x >>= 1
	}
	return r
}

// magnitudeSpectrum windows frame (len nfft), transforms it in place and
// writes |X|^power for the non-negative frequency bins into ws.spec.
func (ws *fftWorkspace) magnitudeSpectrum(frame, window []float64, power float64) {
	n := len(ws.bufRe)
	for i := 0; i < n; i++ {
		ws.bufRe[i] = frame[i] * window[i]
	}
	clear(ws.bufIm)

	for i := 0; i < n; i++ {
		if j := ws.perm[i]; i < j {
			ws.bufRe[i], ws.bufRe[j] = ws.bufRe[j], ws.bufRe[i]
		}
	}
	for stage, size := 0, 2; size <= n; stage, size = stage+1, size*2 {
		half := size / 2
		for start := 0; start < n; start += size {
			simd.ButterflyBlock(
				ws.bufRe[start:start+half],
				ws.bufIm[start:start+half],
				ws.bufRe[start+half:start+size],
				ws.bufIm[start+half:start+size],
				ws.twRe[stage],
				ws.twIm[stage])
		}
	}

	simd.PowerInto(ws.spec, ws.bufRe, ws.bufIm, 1)
	if power != 2 {
		for i, p := range ws.spec {
			ws.spec[i] = math.Pow(math.Sqrt(p), power)
		}
	}
}
