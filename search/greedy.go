package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/ieee0824/transducer-go/internal/mathutil"
	"github.com/ieee0824/transducer-go/rnnt"
	"github.com/ieee0824/transducer-go/tensor"
)

// GreedyDecode emits, for every frame of enc [1, T, D] up to length, the
// most likely symbol until blank wins or cfg.MaxSymbolsPerStep symbols were
// emitted. The prediction-network state only advances on non-blank symbols.
func GreedyDecode(ctx context.Context, pred rnnt.Predictor, joint rnnt.Joiner, enc *tensor.Tensor, length int, cfg Config, opts ...Option) (*rnnt.Hypothesis, error) {
	o := buildOptions(opts)
	cache := rnnt.NewCache(o.logger)
	s, err := newScorer(ctx, pred, joint, enc, length, cfg, cache)
	if err != nil {
		return nil, err
	}

	hyp := rnnt.NewHypothesis(0, nil, nil)
	for t := 0; t < length; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for n := 0; n < cfg.MaxSymbolsPerStep; n++ {
			scored, logp, err := s.logProbs(hyp, t)
			if err != nil {
				return nil, err
			}
			k := mathutil.Argmax(logp)
			if k == s.blank {
				break
			}
			if hyp, err = hyp.Extend(k, logp[k], scored.State.Clone(), t); err != nil {
				return nil, err
			}
		}
	}
	hyp.Length = length
	hyp.Finalize()

	utterancesDecoded.WithLabelValues(string(StrategyGreedy)).Inc()
	hits, misses := cache.Stats()
	o.logger.Debug("Greedy decode finished",
		zap.Int("frames", length),
		zap.Int("tokens", len(hyp.YSequence)),
		zap.Float64("score", hyp.Score),
		zap.Int("cache_hits", hits),
		zap.Int("cache_misses", misses))
	return hyp, nil
}
