package search

import (
	"context"
	"fmt"

	"github.com/ieee0824/transducer-go/internal/mathutil"
	"github.com/ieee0824/transducer-go/rnnt"
	"github.com/ieee0824/transducer-go/tensor"
)

// scorer evaluates hypotheses against the projected frames of one utterance.
type scorer struct {
	pred        rnnt.Predictor
	joint       rnnt.Joiner
	f           *tensor.Tensor // [1, T, J]
	cache       *rnnt.Cache
	temperature float64
	blank       int
	vocab       int // V+1
}

func newScorer(ctx context.Context, pred rnnt.Predictor, joint rnnt.Joiner, enc *tensor.Tensor, length int, cfg Config, cache *rnnt.Cache) (*scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if enc.Rank() != 3 || enc.Dim(0) != 1 {
		return nil, fmt.Errorf("%w: encoder output shape %v, want [1, T, D]", rnnt.ErrShapeMismatch, enc.Shape)
	}
	if length < 0 || length > enc.Dim(1) {
		return nil, fmt.Errorf("%w: length %d outside [0, %d]", rnnt.ErrInvalidArgument, length, enc.Dim(1))
	}
	f, err := joint.ProjectEncoder(enc)
	if err != nil {
		return nil, err
	}
	return &scorer{
		pred:        pred,
		joint:       joint,
		f:           f,
		cache:       cache,
		temperature: cfg.SoftmaxTemperature,
		blank:       pred.BlankIndex(),
		vocab:       joint.NumClassesWithBlank(),
	}, nil
}

// logProbs scores h at frame t and returns the prediction-network result and
// the log-probabilities over the V+1 classes.
func (s *scorer) logProbs(h *rnnt.Hypothesis, t int) (*rnnt.Scored, []float64, error) {
	scored, err := s.pred.ScoreHypothesis(h, s.cache)
	if err != nil {
		return nil, nil, err
	}
	g, err := s.joint.ProjectPrednet(scored.Output)
	if err != nil {
		return nil, nil, err
	}
	ft, err := tensor.FromData(s.f.Vec(0, t), 1, 1, s.f.Dim(2))
	if err != nil {
		return nil, nil, err
	}
	out, err := s.joint.JointAfterProjection(ft, g)
	if err != nil {
		return nil, nil, err
	}
	logp := out.Data[:s.vocab:s.vocab]
	if s.temperature != 1 {
		for i := range logp {
			logp[i] /= s.temperature
		}
	}
	mathutil.LogSoftmax(logp)
	return scored, logp, nil
}
