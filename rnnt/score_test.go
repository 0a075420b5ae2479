package rnnt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ieee0824/transducer-go/tensor"
)

func TestScoreHypothesis_BlankStart(t *testing.T) {
	d := newTestDecoder(t, testDecoderConfig(32, 10))
	cache := NewCache(zaptest.NewLogger(t))
	h := NewHypothesis(0, []int{d.BlankIndex()}, nil)

	got, err := d.ScoreHypothesis(h, cache)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 1, 32}, got.Output.Shape)
	assert.Equal(t, 2, got.State.Len())
	assert.Equal(t, d.BlankIndex(), got.LastToken)
	assert.Equal(t, 1, cache.Len())
}

func TestScoreHypothesis_CacheHitIsIdentical(t *testing.T) {
	d := newTestDecoder(t, testDecoderConfig(16, 10))
	cache := NewCache(nil)
	h := NewHypothesis(0, []int{d.BlankIndex()}, nil)

	first, err := d.ScoreHypothesis(h, cache)
	require.NoError(t, err)
	snapshot := first.Output.Clone()

	second, err := d.ScoreHypothesis(h, cache)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Same(t, first.State, second.State)
	assert.Equal(t, snapshot.Data, second.Output.Data)
	assert.Equal(t, 1, cache.Len())
	hits, misses := cache.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestScoreHypothesis_EmptyAndBlankAreDistinctKeys(t *testing.T) {
	d := newTestDecoder(t, testDecoderConfig(16, 10))
	cache := NewCache(nil)

	empty, err := d.ScoreHypothesis(NewHypothesis(0, nil, nil), cache)
	require.NoError(t, err)
	blank, err := d.ScoreHypothesis(NewHypothesis(0, []int{d.BlankIndex()}, nil), cache)
	require.NoError(t, err)

	assert.NotSame(t, empty, blank)
	assert.Equal(t, 2, cache.Len())
	assert.Equal(t, empty.Output.Data, blank.Output.Data)
}

func TestScoreHypothesis_FeedsLastTokenWithCarriedState(t *testing.T) {
	d := newTestDecoder(t, testDecoderConfig(16, 10))
	cache := NewCache(nil)

	root, err := d.ScoreHypothesis(NewHypothesis(0, []int{d.BlankIndex()}, nil), cache)
	require.NoError(t, err)

	child := NewHypothesis(-0.5, []int{d.BlankIndex(), 3}, root.State.Clone())
	got, err := d.ScoreHypothesis(child, cache)
	require.NoError(t, err)

	want, wantState, err := d.Predict([][]int{{3}}, root.State, false, 1)
	require.NoError(t, err)
	assert.Equal(t, want.Data, got.Output.Data)
	assert.Equal(t, wantState.H.Data, got.State.H.Data)
	assert.Equal(t, 3, got.LastToken)
	assert.Equal(t, 2, cache.Len())
}

func TestScoreHypothesis_NilCache(t *testing.T) {
	d := newTestDecoder(t, testDecoderConfig(8, 4))
	h := NewHypothesis(0, []int{d.BlankIndex()}, nil)

	a, err := d.ScoreHypothesis(h, nil)
	require.NoError(t, err)
	b, err := d.ScoreHypothesis(h, nil)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, a.Output.Data, b.Output.Data)
}

func TestScoreHypothesis_Errors(t *testing.T) {
	d := newTestDecoder(t, testDecoderConfig(8, 4))

	_, err := d.ScoreHypothesis(nil, NewCache(nil))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	batched := d.InitializeState(tensor.Zeros(2))
	_, err = d.ScoreHypothesis(NewHypothesis(0, []int{1}, batched), NewCache(nil))
	assert.ErrorIs(t, err, ErrShapeMismatch)

	cache := NewCache(nil)
	cache.Put([]int{4}, &Scored{
		Output: tensor.Zeros(1, 2, 8),
		State:  d.InitializeState(tensor.Zeros(1)),
	})
	_, err = d.ScoreHypothesis(NewHypothesis(0, []int{4}, nil), cache)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	cache.Put([]int{1}, &Scored{
		Output: tensor.ZerosAs(tensor.Float64, tensor.CPU, 1, 1, 8),
		State:  d.InitializeState(tensor.Zeros(1)),
	})
	_, err = d.ScoreHypothesis(NewHypothesis(0, []int{1}, nil), cache)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestCache_PutKeepsFirstValue(t *testing.T) {
	cache := NewCache(nil)
	first := &Scored{LastToken: 1}
	second := &Scored{LastToken: 2}

	assert.Same(t, first, cache.Put([]int{1, 2}, first))
	assert.Same(t, first, cache.Put([]int{1, 2}, second))
	assert.Equal(t, 1, cache.Len())

	got, ok := cache.Get([]int{1, 2})
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestCache_KeyCopiesSequence(t *testing.T) {
	cache := NewCache(nil)
	seq := []int{1, 2}
	cache.Put(seq, &Scored{})
	seq[1] = 3

	_, ok := cache.Get([]int{1, 2})
	assert.True(t, ok)
	_, ok = cache.Get([]int{1, 3})
	assert.False(t, ok)
}

func TestSequenceKey(t *testing.T) {
	assert.Equal(t, sequenceKey([]int{1, 2, 3}), sequenceKey([]int{1, 2, 3}))
	assert.NotEqual(t, sequenceKey(nil), sequenceKey([]int{0}))
	assert.NotEqual(t, sequenceKey([]int{1, 2}), sequenceKey([]int{2, 1}))
	assert.Equal(t, sequenceKey(nil), sequenceKey([]int{}))
}

func TestScoreHypothesis_CachedKindMustMatchCarriedState(t *testing.T) {
	d := newTestDecoder(t, testDecoderConfig(8, 10))
	cache := NewCache(nil)
	seq := []int{3}

	wide := &Scored{
		Output:    tensor.ZerosAs(tensor.Float64, tensor.CPU, 1, 1, 8),
		State:     &State{H: tensor.ZerosAs(tensor.Float64, tensor.CPU, 1, 1, 8), C: tensor.ZerosAs(tensor.Float64, tensor.CPU, 1, 1, 8)},
		LastToken: 3,
	}
	cache.Put(seq, wide)

	carried := d.InitializeState(tensor.Zeros(1, 4, 8))
	require.Equal(t, tensor.Float32, carried.H.DType)
	_, err := d.ScoreHypothesis(NewHypothesis(0, seq, carried), cache)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	same := d.InitializeState(tensor.ZerosAs(tensor.Float64, tensor.CPU, 1, 4, 8))
	got, err := d.ScoreHypothesis(NewHypothesis(0, seq, same), cache)
	require.NoError(t, err)
	assert.Same(t, wide, got)
}
