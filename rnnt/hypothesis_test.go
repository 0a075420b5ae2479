package rnnt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHypothesis_Extend(t *testing.T) {
	root := NewHypothesis(0, []int{10}, nil)

	child, err := root.Extend(3, -0.25, nil, 4)
	require.NoError(t, err)

	assert.Equal(t, []int{10, 3}, child.YSequence)
	assert.Equal(t, []int{4}, child.Timestep)
	assert.InDelta(t, -0.25, child.Score, 1e-12)
	assert.Equal(t, []int{10}, root.YSequence)

	sibling, err := root.Extend(5, -1, nil, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{10, 3}, child.YSequence, "siblings must not share storage")
	assert.Equal(t, []int{10, 5}, sibling.YSequence)
}

func TestHypothesis_FinalizedCannotExtend(t *testing.T) {
	h := NewHypothesis(0, nil, nil)
	h.Finalize()

	assert.True(t, h.Finalized())
	_, err := h.Extend(1, 0, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.False(t, h.Clone().Finalized())
}

func TestHypothesis_TokensAndLastToken(t *testing.T) {
	h := NewHypothesis(0, []int{10, 1, 10, 2}, nil)

	assert.Equal(t, []int{1, 2}, h.Tokens(10))
	assert.Equal(t, 2, h.LastToken(10))
	assert.Equal(t, 10, EmptyHypothesis().LastToken(10))
	assert.True(t, math.IsInf(EmptyHypothesis().Score, -1))
}
