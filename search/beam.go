package search

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/ieee0824/transducer-go/internal/mathutil"
	"github.com/ieee0824/transducer-go/rnnt"
	"github.com/ieee0824/transducer-go/tensor"
)

// BeamSearch runs RNNT beam search over enc [1, T, D] up to length and
// returns the n-best hypotheses, best first.
//
// Within a frame the best expandable hypothesis is popped and scored; its
// blank extension is kept for the next frame with the same state, and its
// top non-blank extensions go back into the expandable set. The frame ends
// once BeamSize kept hypotheses beat every expandable one; all of those carry
// over, which may be more than BeamSize. A frame cut short by
// MaxExpansionsPerFrame carries over the BeamSize best kept hypotheses.
func BeamSearch(ctx context.Context, pred rnnt.Predictor, joint rnnt.Joiner, enc *tensor.Tensor, length int, cfg Config, opts ...Option) ([]*rnnt.Hypothesis, error) {
	o := buildOptions(opts)
	cache := rnnt.NewCache(o.logger)
	s, err := newScorer(ctx, pred, joint, enc, length, cfg, cache)
	if err != nil {
		return nil, err
	}

	beam := min(cfg.BeamSize, s.vocab)
	beamK := min(beam, s.vocab-1)

	kept := []*rnnt.Hypothesis{
		rnnt.NewHypothesis(0, []int{s.blank}, pred.InitializeState(enc)),
	}
	expanded := 0
	for t := 0; t < length; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hyps := kept
		kept = nil

		settled := false
		for pops := 0; len(hyps) > 0 && pops < cfg.MaxExpansionsPerFrame; pops++ {
			var best *rnnt.Hypothesis
			best, hyps = popBest(hyps)

			scored, logp, err := s.logProbs(best, t)
			if err != nil {
				return nil, err
			}
			expanded++

			kept = keep(kept, stay(best, logp[s.blank]), cfg.Recombine)
			for _, k := range mathutil.TopK(logp, beamK, s.blank) {
				child, err := best.Extend(k, logp[k], scored.State.Clone(), t)
				if err != nil {
					return nil, err
				}
				hyps = append(hyps, child)
			}

			if above := scoredAbove(kept, maxScore(hyps)); len(above) >= beam {
				kept, settled = above, true
				break
			}
		}
		if !settled {
			kept = topN(kept, beam)
		}
	}

	nbest := sortNBest(kept, cfg.ScoreNorm)
	for _, h := range nbest {
		h.Length = length
		h.Finalize()
	}

	beamExpansions.Add(float64(expanded))
	utterancesDecoded.WithLabelValues(string(StrategyBeam)).Inc()
	hits, misses := cache.Stats()
	o.logger.Debug("Beam search finished",
		zap.Int("frames", length),
		zap.Int("beam", beam),
		zap.Int("expansions", expanded),
		zap.Int("cache_size", cache.Len()),
		zap.Int("cache_hits", hits),
		zap.Int("cache_misses", misses))
	return nbest, nil
}

// stay returns h extended by blank: same sequence and state, score + logp.
// The sequence is shared read-only; Extend always copies before appending.
func stay(h *rnnt.Hypothesis, logp float64) *rnnt.Hypothesis {
	return &rnnt.Hypothesis{
		Score:     h.Score + logp,
		YSequence: h.YSequence,
		DecState:  h.DecState,
		Timestep:  h.Timestep,
		Length:    h.Length,
	}
}

// keep appends h to kept, merging it into an existing hypothesis with the
// same sequence when recombine is set.
func keep(kept []*rnnt.Hypothesis, h *rnnt.Hypothesis, recombine bool) []*rnnt.Hypothesis {
	if recombine {
		for _, k := range kept {
			if equalSeq(k.YSequence, h.YSequence) {
				k.Score = mathutil.LogAdd(k.Score, h.Score)
				return kept
			}
		}
	}
	return append(kept, h)
}

func equalSeq(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// popBest removes and returns the highest scoring hypothesis (first on ties).
func popBest(hyps []*rnnt.Hypothesis) (*rnnt.Hypothesis, []*rnnt.Hypothesis) {
	bi := 0
	for i, h := range hyps[1:] {
		if h.Score > hyps[bi].Score {
			bi = i + 1
		}
	}
	best := hyps[bi]
	rest := make([]*rnnt.Hypothesis, 0, len(hyps)-1)
	rest = append(rest, hyps[:bi]...)
	rest = append(rest, hyps[bi+1:]...)
	return best, rest
}

func maxScore(hyps []*rnnt.Hypothesis) float64 {
	m := math.Inf(-1)
	for _, h := range hyps {
		if h.Score > m {
			m = h.Score
		}
	}
	return m
}

// scoredAbove returns the hypotheses scoring strictly above threshold, best
// first.
func scoredAbove(hyps []*rnnt.Hypothesis, threshold float64) []*rnnt.Hypothesis {
	var out []*rnnt.Hypothesis
	for _, h := range hyps {
		if h.Score > threshold {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// topN keeps the n best hypotheses by raw score.
func topN(hyps []*rnnt.Hypothesis, n int) []*rnnt.Hypothesis {
	if len(hyps) <= n {
		return hyps
	}
	sort.SliceStable(hyps, func(i, j int) bool { return hyps[i].Score > hyps[j].Score })
	return hyps[:n]
}

// sortNBest orders hypotheses best first, by score per emitted position
// when scoreNorm is set.
func sortNBest(hyps []*rnnt.Hypothesis, scoreNorm bool) []*rnnt.Hypothesis {
	rank := func(h *rnnt.Hypothesis) float64 {
		if scoreNorm && len(h.YSequence) > 0 {
			return h.Score / float64(len(h.YSequence))
		}
		return h.Score
	}
	out := append([]*rnnt.Hypothesis(nil), hyps...)
	sort.SliceStable(out, func(i, j int) bool { return rank(out[i]) > rank(out[j]) })
	return out
}
