package search

import "github.com/ieee0824/transducer-go/rnnt"

// Result holds the best decoded sequence of an utterance.
type Result struct {
	Tokens    []int   // emitted ids, blank removed
	Timesteps []int   // encoder frame of each token
	Score     float64 // total log probability
}

func resultOf(h *rnnt.Hypothesis, blank int) *Result {
	if h == nil {
		return &Result{}
	}
	tokens := h.Tokens(blank)
	ts := h.Timestep
	if len(ts) > len(tokens) {
		ts = ts[len(ts)-len(tokens):]
	}
	return &Result{
		Tokens:    tokens,
		Timesteps: append([]int(nil), ts...),
		Score:     h.Score,
	}
}
