package search

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ieee0824/transducer-go/internal/mathutil"
	"github.com/ieee0824/transducer-go/rnnt"
	"github.com/ieee0824/transducer-go/tensor"
)

// scriptedJoint returns the same logits for every (t, u) pair. The encoder
// frames are passed through so tests can see which frame was scored.
type scriptedJoint struct {
	logits []float64
	frames []int
}

func (s *scriptedJoint) InputTypes() map[string]rnnt.NeuralType  { return nil }
func (s *scriptedJoint) OutputTypes() map[string]rnnt.NeuralType { return nil }
func (s *scriptedJoint) NumClassesWithBlank() int                { return len(s.logits) }

func (s *scriptedJoint) Joint(enc, dec *tensor.Tensor) (*tensor.Tensor, error) {
	return s.JointAfterProjection(enc, dec)
}

func (s *scriptedJoint) ProjectEncoder(enc *tensor.Tensor) (*tensor.Tensor, error) { return enc, nil }
func (s *scriptedJoint) ProjectPrednet(dec *tensor.Tensor) (*tensor.Tensor, error) { return dec, nil }

func (s *scriptedJoint) JointAfterProjection(f, g *tensor.Tensor) (*tensor.Tensor, error) {
	s.frames = append(s.frames, int(f.Data[0]))
	out := tensor.Zeros(1, 1, 1, len(s.logits))
	copy(out.Data, s.logits)
	return out, nil
}

func newDecoder(t *testing.T, vocabSize, hidden int) *rnnt.Decoder {
	t.Helper()
	cfg := rnnt.DefaultDecoderConfig()
	cfg.VocabSize = vocabSize
	cfg.PredNet.PredHidden = hidden
	d, err := rnnt.NewDecoder(cfg, rnnt.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return d
}

func newJoint(t *testing.T, vocabSize, encHidden, predHidden int) *rnnt.Joint {
	t.Helper()
	cfg := rnnt.DefaultJointConfig()
	cfg.NumClasses = vocabSize
	cfg.JointNet.EncoderHidden = encHidden
	cfg.JointNet.PredHidden = predHidden
	cfg.JointNet.JointHidden = 16
	j, err := rnnt.NewJoint(cfg)
	require.NoError(t, err)
	return j
}

// frameIndexed returns [1, T, D] frames whose first channel is the frame index.
func frameIndexed(T, D int) *tensor.Tensor {
	enc := tensor.Zeros(1, T, D)
	for t := 0; t < T; t++ {
		enc.Set(float64(t), 0, t, 0)
	}
	return enc
}

func randomFrames(seed int64, T, D int) *tensor.Tensor {
	rng := rand.New(rand.NewSource(seed))
	enc := tensor.Zeros(1, T, D)
	for i := range enc.Data {
		enc.Data[i] = rng.NormFloat64()
	}
	return enc
}

func TestGreedyDecode_EmitsUpToMaxSymbols(t *testing.T) {
	pred := newDecoder(t, 3, 8)
	joint := &scriptedJoint{logits: []float64{0, 5, 0, 1}}
	cfg := DefaultConfig()
	cfg.MaxSymbolsPerStep = 3

	hyp, err := GreedyDecode(context.Background(), pred, joint, frameIndexed(4, 8), 4, cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	assert.Len(t, hyp.YSequence, 12)
	for _, id := range hyp.YSequence {
		assert.Equal(t, 1, id)
	}
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1, 2, 2, 2, 3, 3, 3}, hyp.Timestep)
	logp := []float64{0, 5, 0, 1}
	mathutil.LogSoftmax(logp)
	assert.InDelta(t, 12*logp[1], hyp.Score, 1e-9)
	assert.True(t, hyp.Finalized())
	assert.Equal(t, 4, hyp.Length)
}

func TestGreedyDecode_BlankOnly(t *testing.T) {
	pred := newDecoder(t, 3, 8)
	joint := &scriptedJoint{logits: []float64{0, 0, 0, 9}}

	hyp, err := GreedyDecode(context.Background(), pred, joint, frameIndexed(5, 8), 3, DefaultConfig())
	require.NoError(t, err)

	assert.Empty(t, hyp.YSequence)
	assert.Zero(t, hyp.Score)
	assert.Equal(t, []int{0, 1, 2}, joint.frames, "only frames below length are scored")
}

func TestGreedyDecode_RealNetworks(t *testing.T) {
	pred := newDecoder(t, 10, 16)
	joint := newJoint(t, 10, 8, 16)
	enc := randomFrames(1, 20, 8)
	cfg := DefaultConfig()
	cfg.MaxSymbolsPerStep = 2

	a, err := GreedyDecode(context.Background(), pred, joint, enc, 20, cfg)
	require.NoError(t, err)
	b, err := GreedyDecode(context.Background(), pred, joint, enc, 20, cfg)
	require.NoError(t, err)

	assert.Equal(t, a.YSequence, b.YSequence)
	assert.Equal(t, a.Score, b.Score)
	assert.LessOrEqual(t, len(a.YSequence), 40)
	assert.NotContains(t, a.YSequence, pred.BlankIndex())
	assert.True(t, sort.IntsAreSorted(a.Timestep))
}

func TestBeamSearch_NBest(t *testing.T) {
	pred := newDecoder(t, 10, 16)
	joint := newJoint(t, 10, 8, 16)
	enc := randomFrames(2, 12, 8)
	cfg := DefaultConfig()
	cfg.Strategy = StrategyBeam
	cfg.BeamSize = 4

	nbest, err := BeamSearch(context.Background(), pred, joint, enc, 12, cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.NotEmpty(t, nbest)

	norm := func(h *rnnt.Hypothesis) float64 { return h.Score / float64(len(h.YSequence)) }
	for i, h := range nbest {
		assert.True(t, h.Finalized())
		assert.Equal(t, pred.BlankIndex(), h.YSequence[0], "sequences start with the blank marker")
		assert.NotContains(t, h.Tokens(pred.BlankIndex()), pred.BlankIndex())
		assert.False(t, math.IsNaN(h.Score))
		if i > 0 {
			assert.GreaterOrEqual(t, norm(nbest[i-1]), norm(h))
		}
	}
}

func TestBeamSearch_ScoreNormFavoursLongerSequences(t *testing.T) {
	pred := newDecoder(t, 3, 8)
	// every frame pays the same blank cost, so only length normalisation can
	// rank a hypothesis with emitted tokens above the bare start hypothesis.
	joint := &scriptedJoint{logits: []float64{-5, -5, 3, 0}}
	cfg := DefaultConfig()
	cfg.Strategy = StrategyBeam
	cfg.BeamSize = 2
	cfg.MaxExpansionsPerFrame = 3

	nbest, err := BeamSearch(context.Background(), pred, joint, frameIndexed(2, 8), 2, cfg)
	require.NoError(t, err)
	require.Len(t, nbest, 2)

	best := nbest[0].Tokens(pred.BlankIndex())
	require.NotEmpty(t, best)
	for _, id := range best {
		assert.Equal(t, 2, id)
	}
	assert.Equal(t, []int{pred.BlankIndex()}, nbest[1].YSequence)
	assert.Greater(t, nbest[1].Score, nbest[0].Score, "raw score still prefers the start hypothesis")
}

func TestBeamSearch_SettledFrameKeepsEveryHypothesisAboveThreshold(t *testing.T) {
	pred := newDecoder(t, 3, 8)
	// tokens 0 and 1 tie below blank, so the third pop lifts three kept
	// hypotheses over the expandable set at once.
	joint := &scriptedJoint{logits: []float64{1, 1, -5, 2}}
	cfg := DefaultConfig()
	cfg.Strategy = StrategyBeam
	cfg.BeamSize = 2
	cfg.ScoreNorm = false

	nbest, err := BeamSearch(context.Background(), pred, joint, frameIndexed(1, 8), 1, cfg)
	require.NoError(t, err)
	require.Len(t, nbest, 3)

	blank := pred.BlankIndex()
	assert.Equal(t, []int{blank}, nbest[0].YSequence)
	assert.ElementsMatch(t, [][]int{{blank, 0}, {blank, 1}}, [][]int{nbest[1].YSequence, nbest[2].YSequence})
	assert.InDelta(t, nbest[1].Score, nbest[2].Score, 1e-12)
}

func TestBeamSearch_ExpansionCapKeepsBeamBest(t *testing.T) {
	pred := newDecoder(t, 3, 8)
	joint := &scriptedJoint{logits: []float64{1, 1, -5, 2}}
	cfg := DefaultConfig()
	cfg.Strategy = StrategyBeam
	cfg.BeamSize = 2
	cfg.MaxExpansionsPerFrame = 2

	nbest, err := BeamSearch(context.Background(), pred, joint, frameIndexed(1, 8), 1, cfg)
	require.NoError(t, err)
	assert.Len(t, nbest, 2)
}

func TestBeamSearch_BlankDominantKeepsStartHypothesis(t *testing.T) {
	pred := newDecoder(t, 3, 8)
	joint := &scriptedJoint{logits: []float64{0, 0, 0, 20}}
	cfg := DefaultConfig()
	cfg.Strategy = StrategyBeam
	cfg.BeamSize = 1

	nbest, err := BeamSearch(context.Background(), pred, joint, frameIndexed(3, 8), 3, cfg)
	require.NoError(t, err)
	require.Len(t, nbest, 1)
	assert.Equal(t, []int{pred.BlankIndex()}, nbest[0].YSequence)
	assert.Equal(t, []int{0, 1, 2}, joint.frames)
}

func TestDecode_Dispatch(t *testing.T) {
	pred := newDecoder(t, 3, 8)
	joint := &scriptedJoint{logits: []float64{0, 5, 0, 1}}
	cfg := DefaultConfig()
	cfg.MaxSymbolsPerStep = 1

	hyps, res, err := Decode(context.Background(), pred, joint, frameIndexed(3, 8), 3, cfg)
	require.NoError(t, err)
	require.Len(t, hyps, 1)
	assert.Equal(t, []int{1, 1, 1}, res.Tokens)
	assert.Equal(t, []int{0, 1, 2}, res.Timesteps)

	cfg.Strategy = StrategyBeam
	hyps, res, err = Decode(context.Background(), pred, joint, frameIndexed(3, 8), 3, cfg)
	require.NoError(t, err)
	require.NotEmpty(t, hyps)
	assert.Equal(t, hyps[0].Tokens(pred.BlankIndex()), res.Tokens)
	assert.Len(t, res.Timesteps, len(res.Tokens))
}

func TestDecode_Errors(t *testing.T) {
	pred := newDecoder(t, 3, 8)
	joint := &scriptedJoint{logits: []float64{0, 0, 0, 1}}
	ctx := context.Background()

	_, _, err := Decode(ctx, pred, joint, tensor.Zeros(2, 3, 8), 3, DefaultConfig())
	assert.ErrorIs(t, err, rnnt.ErrShapeMismatch)

	_, _, err = Decode(ctx, pred, joint, tensor.Zeros(1, 3, 8), 4, DefaultConfig())
	assert.ErrorIs(t, err, rnnt.ErrInvalidArgument)

	cfg := DefaultConfig()
	cfg.Strategy = "viterbi"
	_, _, err = Decode(ctx, pred, joint, tensor.Zeros(1, 3, 8), 3, cfg)
	assert.ErrorIs(t, err, rnnt.ErrInvalidArgument)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, _, err = Decode(cancelled, pred, joint, tensor.Zeros(1, 3, 8), 3, DefaultConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKeep_Recombine(t *testing.T) {
	a := rnnt.NewHypothesis(math.Log(0.25), []int{3, 1}, nil)
	b := rnnt.NewHypothesis(math.Log(0.5), []int{3, 1}, nil)

	kept := keep([]*rnnt.Hypothesis{a}, b, false)
	assert.Len(t, kept, 2)

	kept = keep([]*rnnt.Hypothesis{a}, b, true)
	require.Len(t, kept, 1)
	assert.InDelta(t, math.Log(0.75), kept[0].Score, 1e-12)
}

func TestPopBest(t *testing.T) {
	hyps := []*rnnt.Hypothesis{
		rnnt.NewHypothesis(-3, []int{1}, nil),
		rnnt.NewHypothesis(-1, []int{2}, nil),
		rnnt.NewHypothesis(-1, []int{3}, nil),
	}
	best, rest := popBest(hyps)

	assert.Equal(t, []int{2}, best.YSequence)
	require.Len(t, rest, 2)
	assert.Equal(t, []int{1}, rest[0].YSequence)
	assert.Equal(t, []int{3}, rest[1].YSequence)
	assert.Len(t, hyps, 3)
}

func TestSortNBest(t *testing.T) {
	short := rnnt.NewHypothesis(-2, []int{3}, nil)
	long := rnnt.NewHypothesis(-3, []int{3, 1, 2}, nil)

	assert.Same(t, short, sortNBest([]*rnnt.Hypothesis{long, short}, false)[0])
	assert.Same(t, long, sortNBest([]*rnnt.Hypothesis{short, long}, true)[0])
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.BeamSize = 0
	cfg.SoftmaxTemperature = 0
	err := cfg.Validate()
	assert.ErrorIs(t, err, rnnt.ErrInvalidArgument)
	assert.ErrorContains(t, err, "beam_size")
	assert.ErrorContains(t, err, "softmax_temperature")
}
