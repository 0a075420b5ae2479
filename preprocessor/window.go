package preprocessor

import (
	"fmt"
	"math"
)

// windowFunc returns the symmetric window generator for name.
func windowFunc(name string) (func(i, n int) float64, error) {
	switch name {
	case "hann", "":
		return func(i, n int) float64 {
			return 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		}, nil
	case "hamming":
		return func(i, n int) float64 {
			return 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		}, nil
	case "blackman":
		return func(i, n int) float64 {
			x := 2 * math.Pi * float64(i) / float64(n-1)
			return 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
		}, nil
	case "bartlett":
		return func(i, n int) float64 {
			return 1 - math.Abs(2*float64(i)/float64(n-1)-1)
		}, nil
	case "ones", "none":
		return func(int, int) float64 { return 1 }, nil
	default:
		return nil, fmt.Errorf("unknown window %q", name)
	}
}

// paddedWindow builds a winLength window centred in an nfft-long buffer.
func paddedWindow(name string, winLength, nfft int) ([]float64, error) {
	fn, err := windowFunc(name)
	if err != nil {
		return nil, err
	}
	w := make([]float64, nfft)
	off := (nfft - winLength) / 2
	if winLength == 1 {
		w[off] = 1
		return w, nil
	}
	for i := 0; i < winLength; i++ {
		w[off+i] = fn(i, winLength)
	}
	return w, nil
}
