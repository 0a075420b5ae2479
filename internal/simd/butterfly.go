// Package simd holds the inner kernels of the spectrogram front-end,
// written over split real/imaginary slices so the compiler can vectorize
// them.
package simd

// ButterflyBlock performs FFT butterfly operations on split real/imaginary arrays.
// For k in 0..len(uRe)-1:
//
//	t_re = twRe[k]*vRe[k] - twIm[k]*vIm[k]
//	t_im = twRe[k]*vIm[k] + twIm[k]*vRe[k]
//	uRe[k], vRe[k] = uRe[k]+t_re, uRe[k]-t_re
//	uIm[k], vIm[k] = uIm[k]+t_im, uIm[k]-t_im
func ButterflyBlock(uRe, uIm, vRe, vIm, twRe, twIm []float64) {
	n := len(uRe)
	if n == 0 {
		return
	}
	_, _, _, _, _ = uIm[n-1], vRe[n-1], vIm[n-1], twRe[n-1], twIm[n-1]
	for k := 0; k < n; k++ {
		tre := twRe[k]*vRe[k] - twIm[k]*vIm[k]
		tim := twRe[k]*vIm[k] + twIm[k]*vRe[k]
		ur, ui := uRe[k], uIm[k]
		uRe[k] = ur + tre
		uIm[k] = ui + tim
		vRe[k] = ur - tre
		vIm[k] = ui - tim
	}
}

// PowerInto writes (re^2 + im^2) / scale into dst for the first len(dst) bins.
func PowerInto(dst, re, im []float64, scale float64) {
	n := len(dst)
	if n == 0 {
		return
	}
	_, _ = re[n-1], im[n-1]
	for i := 0; i < n; i++ {
		dst[i] = (re[i]*re[i] + im[i]*im[i]) / scale
	}
}
