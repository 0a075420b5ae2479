package rnnt

import (
	"fmt"

	"go.uber.org/zap"
)

// ScoreHypothesis returns the prediction-network output and state for h's
// token prefix, computing it at most once per prefix within cache.
//
// On a miss the decoder is fed h's last token (or a zero input when the
// sequence is empty or ends in blank) with h's carried state. Hits return
// the stored value without a network call. A nil cache disables memoizing.
func (d *Decoder) ScoreHypothesis(h *Hypothesis, cache *Cache) (*Scored, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: nil hypothesis", ErrInvalidArgument)
	}
	if cache != nil {
		if v, ok := cache.Get(h.YSequence); ok {
			if err := d.checkScored(v); err != nil {
				return nil, fmt.Errorf("cached value for %v: %w", h.YSequence, err)
			}
			if h.DecState != nil && h.DecState.H != nil && !v.State.H.SameKind(h.DecState.H) {
				return nil, fmt.Errorf("%w: cached value for %v is %s/%s, hypothesis state is %s/%s",
					ErrShapeMismatch, h.YSequence, v.State.H.DType, v.State.H.Device,
					h.DecState.H.DType, h.DecState.H.Device)
			}
			return v, nil
		}
	}
	if h.DecState != nil {
		if err := h.DecState.check(len(d.layers), d.hidden); err != nil {
			return nil, err
		}
		if b := h.DecState.Batch(); b != 1 {
			return nil, fmt.Errorf("%w: hypothesis state batch %d, want 1", ErrShapeMismatch, b)
		}
	}

	last := h.LastToken(d.blank)
	var tokens [][]int
	if last != d.blank {
		tokens = [][]int{{last}}
	}
	out, state, err := d.Predict(tokens, h.DecState, false, 1)
	if err != nil {
		return nil, fmt.Errorf("score hypothesis: %w", err)
	}
	v := &Scored{Output: out, State: state, LastToken: last}
	if err := d.checkScored(v); err != nil {
		return nil, err
	}
	if cache != nil {
		v = cache.Put(h.YSequence, v)
		d.logger.Debug("Scored hypothesis prefix",
			zap.Int("prefix_len", len(h.YSequence)),
			zap.Int("last_token", last),
			zap.Int("cache_size", cache.Len()))
	}
	return v, nil
}

// checkScored verifies a single-hypothesis result: output [1,1,H], state
// [L,1,H], and matching dtype/device between them.
func (d *Decoder) checkScored(v *Scored) error {
	if v == nil || v.Output == nil || v.State == nil {
		return fmt.Errorf("%w: incomplete scored value", ErrShapeMismatch)
	}
	if !v.Output.HasShape(1, 1, d.hidden) {
		return fmt.Errorf("%w: scored output shape %v, want [1 1 %d]", ErrShapeMismatch, v.Output.Shape, d.hidden)
	}
	if err := v.State.check(len(d.layers), d.hidden); err != nil {
		return err
	}
	if b := v.State.Batch(); b != 1 {
		return fmt.Errorf("%w: scored state batch %d, want 1", ErrShapeMismatch, b)
	}
	if !v.Output.SameKind(v.State.H) {
		return fmt.Errorf("%w: scored output %s/%s, state %s/%s", ErrShapeMismatch,
			v.Output.DType, v.Output.Device, v.State.H.DType, v.State.H.Device)
	}
	return nil
}
