package rnnt

import (
	"fmt"
	"math"
	"slices"
)

// Hypothesis is a candidate decoded sequence together with its score and
// the prediction-network state after its last emitted token.
//
// YSequence may start with the blank id, which search drivers use as the
// start marker. DecState is owned by the hypothesis once attached.
type Hypothesis struct {
	Score     float64
	YSequence []int
	DecState  *State
	Timestep  []int
	Length    int
	Text      string

	finalized bool
}

// NewHypothesis creates a hypothesis with the given initial sequence and
// score. The sequence is copied.
func NewHypothesis(score float64, seq []int, state *State) *Hypothesis {
	return &Hypothesis{
		Score:     score,
		YSequence: slices.Clone(seq),
		DecState:  state,
	}
}

// EmptyHypothesis creates a hypothesis with an empty sequence and score -Inf.
func EmptyHypothesis() *Hypothesis {
	return &Hypothesis{Score: math.Inf(-1)}
}

// Extend returns a new hypothesis with token appended, logp added to the
// score and state attached. The receiver is unchanged.
func (h *Hypothesis) Extend(token int, logp float64, state *State, t int) (*Hypothesis, error) {
	if h.finalized {
		return nil, fmt.Errorf("%w: extend of a finalized hypothesis", ErrInvalidArgument)
	}
	seq := make([]int, len(h.YSequence), len(h.YSequence)+1)
	copy(seq, h.YSequence)
	ts := make([]int, len(h.Timestep), len(h.Timestep)+1)
	copy(ts, h.Timestep)
	return &Hypothesis{
		Score:     h.Score + logp,
		YSequence: append(seq, token),
		DecState:  state,
		Timestep:  append(ts, t),
		Length:    h.Length,
	}, nil
}

// Finalize marks the hypothesis immutable.
func (h *Hypothesis) Finalize() { h.finalized = true }

// Finalized reports whether Finalize was called.
func (h *Hypothesis) Finalized() bool { return h.finalized }

// LastToken returns the last emitted id, or blank for an empty sequence.
func (h *Hypothesis) LastToken(blank int) int {
	if len(h.YSequence) == 0 {
		return blank
	}
	return h.YSequence[len(h.YSequence)-1]
}

// Tokens returns the sequence with every blank removed.
func (h *Hypothesis) Tokens(blank int) []int {
	out := make([]int, 0, len(h.YSequence))
	for _, id := range h.YSequence {
		if id != blank {
			out = append(out, id)
		}
	}
	return out
}

// Clone returns a deep copy that is not finalized.
func (h *Hypothesis) Clone() *Hypothesis {
	return &Hypothesis{
		Score:     h.Score,
		YSequence: slices.Clone(h.YSequence),
		DecState:  h.DecState.Clone(),
		Timestep:  slices.Clone(h.Timestep),
		Length:    h.Length,
		Text:      h.Text,
	}
}
