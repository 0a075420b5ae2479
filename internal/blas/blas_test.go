package blas

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func naiveGemm(transA, transB bool, m, n, k int, alpha float64, a []float64, lda int, b []float64, ldb int, beta float64, c []float64, ldc int) {
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			sum := 0.0
			for p := 0; p < k; p++ {
				av := a[i*lda+p]
				if transA {
					av = a[p*lda+i]
				}
				bv := b[p*ldb+j]
				if transB {
					bv = b[j*ldb+p]
				}
				sum += av * bv
			}
			c[i*ldc+j] = alpha*sum + beta*c[i*ldc+j]
		}
	}
}

func TestDgemm_Small(t *testing.T) {
	// A(2x3) * B(3x2) = C(2x2)
	a := []float64{1, 2, 3, 4, 5, 6}
	b := []float64{7, 8, 9, 10, 11, 12}
	c := make([]float64, 4)

	Dgemm(false, false, 2, 2, 3, 1.0, a, 3, b, 2, 0.0, c, 2)

	assert.InDeltaSlice(t, []float64{58, 64, 139, 154}, c, 1e-10)
}

func TestDgemm_TransB(t *testing.T) {
	// B(2x3) stored row-major, B^T = [[7,8],[9,10],[11,12]]
	a := []float64{1, 2, 3, 4, 5, 6}
	b := []float64{7, 9, 11, 8, 10, 12}
	c := make([]float64, 4)

	Dgemm(false, true, 2, 2, 3, 1.0, a, 3, b, 3, 0.0, c, 2)

	assert.InDeltaSlice(t, []float64{58, 64, 139, 154}, c, 1e-10)
}

func TestDgemm_AlphaBeta(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	b := []float64{5, 6, 7, 8}
	c := []float64{1, 1, 1, 1}

	Dgemm(false, false, 2, 2, 2, 2.0, a, 2, b, 2, 3.0, c, 2)

	assert.InDeltaSlice(t, []float64{41, 47, 89, 103}, c, 1e-10)
}

func TestDgemm_EmptyInner(t *testing.T) {
	c := []float64{1, 2, 3, 4}
	Dgemm(false, true, 2, 2, 0, 1.0, nil, 0, nil, 0, 0.5, c, 2)
	assert.Equal(t, []float64{0.5, 1, 1.5, 2}, c)

	Dgemm(false, true, 2, 2, 0, 1.0, nil, 0, nil, 0, 0, c, 2)
	assert.Equal(t, []float64{0, 0, 0, 0}, c)
}

func TestDgemm_LSTMGateSized(t *testing.T) {
	// gates[B x 4H] = x[B x H] * W_ih^T with W_ih stored [4H x H]
	rng := rand.New(rand.NewSource(42))
	B, H := 4, 32
	x := make([]float64, B*H)
	w := make([]float64, 4*H*H)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	for i := range w {
		w[i] = rng.NormFloat64()
	}

	got := make([]float64, B*4*H)
	want := make([]float64, B*4*H)
	Dgemm(false, true, B, 4*H, H, 1.0, x, H, w, H, 0.0, got, 4*H)
	naiveGemm(false, true, B, 4*H, H, 1.0, x, H, w, H, 0.0, want, 4*H)

	require.Len(t, got, len(want))
	assert.InDeltaSlice(t, want, got, 1e-9)
}

func TestDgemm_TransA(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m, n, k := 3, 5, 4
	a := make([]float64, k*m) // stored (k x m)
	b := make([]float64, k*n)
	for i := range a {
		a[i] = rng.Float64()
	}
	for i := range b {
		b[i] = rng.Float64()
	}
	got := make([]float64, m*n)
	want := make([]float64, m*n)
	Dgemm(true, false, m, n, k, 1.5, a, m, b, n, 0, got, n)
	naiveGemm(true, false, m, n, k, 1.5, a, m, b, n, 0, want, n)
	assert.InDeltaSlice(t, want, got, 1e-12)
}

func BenchmarkDgemm_JointSized(b *testing.B) {
	// joint output projection: (T*U x J) * (V+1 x J)^T
	rng := rand.New(rand.NewSource(42))
	rows, J, V := 48*24, 16, 11
	a := make([]float64, rows*J)
	w := make([]float64, V*J)
	for i := range a {
		a[i] = rng.Float64()
	}
	for i := range w {
		w[i] = rng.Float64()
	}
	c := make([]float64, rows*V)

	b.ResetTimer()
	for b.Loop() {
		Dgemm(false, true, rows, V, J, 1.0, a, J, w, J, 0.0, c, V)
	}
}
