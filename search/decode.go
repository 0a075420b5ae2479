package search

import (
	"context"

	"github.com/ieee0824/transducer-go/rnnt"
	"github.com/ieee0824/transducer-go/tensor"
)

// Decode decodes one utterance enc [1, T, D] with the strategy in cfg and
// returns the hypotheses (best first) together with the best Result.
// Greedy decoding yields a single hypothesis.
func Decode(ctx context.Context, pred rnnt.Predictor, joint rnnt.Joiner, enc *tensor.Tensor, length int, cfg Config, opts ...Option) ([]*rnnt.Hypothesis, *Result, error) {
	var hyps []*rnnt.Hypothesis
	switch cfg.Strategy {
	case StrategyBeam:
		nbest, err := BeamSearch(ctx, pred, joint, enc, length, cfg, opts...)
		if err != nil {
			return nil, nil, err
		}
		hyps = nbest
	default:
		hyp, err := GreedyDecode(ctx, pred, joint, enc, length, cfg, opts...)
		if err != nil {
			return nil, nil, err
		}
		hyps = []*rnnt.Hypothesis{hyp}
	}
	if len(hyps) == 0 {
		return nil, &Result{}, nil
	}
	return hyps, resultOf(hyps[0], pred.BlankIndex()), nil
}
