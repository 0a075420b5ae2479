package preprocessor

import "math"

// sparseFilter stores only the non-zero range of a triangular filter.
type sparseFilter struct {
	start  int
	coeffs []float64
}

// melFilterbank is a Slaney-style triangular filterbank with area
// normalization.
type melFilterbank struct {
	filters []sparseFilter
}

func newMelFilterbank(numFilters, nfft, sampleRate int, lowFreq, highFreq float64) *melFilterbank {
	nBins := nfft/2 + 1
	fftFreqs := make([]float64, nBins)
	for i := range fftFreqs {
		fftFreqs[i] = float64(i) * float64(sampleRate) / float64(nfft)
	}

	lowMel, highMel := hzToMel(lowFreq), hzToMel(highFreq)
	melF := make([]float64, numFilters+2)
	step := (highMel - lowMel) / float64(numFilters+1)
	for i := range melF {
		melF[i] = melToHz(lowMel + float64(i)*step)
	}

	fb := &melFilterbank{filters: make([]sparseFilter, numFilters)}
	dense := make([]float64, nBins)
	for i := 0; i < numFilters; i++ {
		lowerW := melF[i+1] - melF[i]
		upperW := melF[i+2] - melF[i+1]
		enorm := 2.0 / (melF[i+2] - melF[i])
		start, end := -1, 0
		for j, f := range fftFreqs {
			lower := (f - melF[i]) / lowerW
			upper := (melF[i+2] - f) / upperW
			v := math.Max(0, math.Min(lower, upper)) * enorm
			dense[j] = v
			if v > 0 {
				if start < 0 {
					start = j
				}
				end = j + 1
			}
		}
		if start >= 0 {
			fb.filters[i] = sparseFilter{start: start, coeffs: append([]float64(nil), dense[start:end]...)}
		}
	}
	return fb
}

// applyInto writes filter energies of spec into dst.
func (fb *melFilterbank) applyInto(spec, dst []float64) {
	for i, sf := range fb.filters {
		sum := 0.0
		for j, c := range sf.coeffs {
			sum += spec[sf.start+j] * c
		}
		dst[i] = sum
	}
}

const (
	melFSP      = 200.0 / 3
	melMinLogHz = 1000.0
	melMinLog   = melMinLogHz / melFSP
)

var melLogStep = math.Log(6.4) / 27.0

// hzToMel is the Slaney mel scale: linear below 1 kHz, logarithmic above.
func hzToMel(hz float64) float64 {
	if hz < melMinLogHz {
		return hz / melFSP
	}
	return melMinLog + math.Log(hz/melMinLogHz)/melLogStep
}

func melToHz(mel float64) float64 {
	if mel < melMinLog {
		return mel * melFSP
	}
	return melMinLogHz * math.Exp(melLogStep*(mel-melMinLog))
}
