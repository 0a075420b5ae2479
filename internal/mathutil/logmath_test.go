package mathutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogAdd(t *testing.T) {
	// log(exp(log(2)) + exp(log(3))) = log(5)
	assert.InDelta(t, math.Log(5), LogAdd(math.Log(2), math.Log(3)), 1e-10)
	assert.InDelta(t, math.Log(5), LogAdd(math.Log(3), math.Log(2)), 1e-10)
}

func TestLogAddWithLogZero(t *testing.T) {
	a := math.Log(5)
	assert.InDelta(t, a, LogAdd(LogZero, a), 1e-10)
	assert.InDelta(t, a, LogAdd(a, LogZero), 1e-10)
	assert.InDelta(t, a, LogAdd(a, math.Inf(-1)), 1e-10)
}

func TestLogSub(t *testing.T) {
	assert.InDelta(t, math.Log(2), LogSub(math.Log(5), math.Log(3)), 1e-10)
	assert.Equal(t, LogZero, LogSub(1, 2))
}

func TestLogSoftmax_SumsToOne(t *testing.T) {
	v := []float64{1, 2, 3, -4, 0.5}
	LogSoftmax(v)
	sum := 0.0
	for _, lp := range v {
		assert.LessOrEqual(t, lp, 0.0)
		sum += math.Exp(lp)
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, -1, Argmax(nil))
	assert.Equal(t, 2, Argmax([]float64{0, 1, 5, 5}))
}

func TestTopK(t *testing.T) {
	v := []float64{0.1, 0.7, 0.3, 0.9, 0.3}
	assert.Equal(t, []int{3, 1}, TopK(v, 2, -1))
	assert.Equal(t, []int{1, 2, 4}, TopK(v, 3, 3))
	assert.Equal(t, []int{3, 1, 2, 4, 0}, TopK(v, 10, -1))
}
