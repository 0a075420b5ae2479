package rnnt

import (
	"fmt"
	"math"
	"math/rand"
	"slices"

	"go.uber.org/zap"

	"github.com/ieee0824/transducer-go/internal/blas"
	"github.com/ieee0824/transducer-go/internal/mathutil"
	"github.com/ieee0824/transducer-go/tensor"
)

// Joint is the RNNT joint network. It projects encoder frames and
// prediction-network outputs into a shared space, sums every (t, u) pair,
// applies a non-linearity and maps the result to V+1 class scores.
//
// A Joint is read-only after construction.
type Joint struct {
	cfg        JointConfig
	enc        Linear // D1 -> J
	pred       Linear // D2 -> J
	out        Linear // J -> V+1
	act        Activation
	numClasses int
	vocabulary []string
	logSoftmax bool
	blank      int
	logger     *zap.Logger
}

// NewJoint builds a joint network with freshly initialized weights.
func NewJoint(cfg JointConfig, opts ...Option) (*Joint, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	j := newJointShell(cfg, buildOptions(opts))
	rng := rand.New(rand.NewSource(cfg.Seed))
	jn := cfg.JointNet
	j.pred = newLinear(jn.PredHidden, jn.JointHidden, rng)
	j.enc = newLinear(jn.EncoderHidden, jn.JointHidden, rng)
	j.out = newLinear(jn.JointHidden, j.numClasses+1, rng)

	j.logger.Debug("Joint network initialized",
		zap.Int("num_classes_with_blank", j.NumClassesWithBlank()),
		zap.Int("encoder_hidden", jn.EncoderHidden),
		zap.Int("pred_hidden", jn.PredHidden),
		zap.Int("joint_hidden", jn.JointHidden),
		zap.Stringer("activation", j.act),
		zap.Bool("log_softmax", j.logSoftmax))
	return j, nil
}

func newJointShell(cfg JointConfig, o moduleOptions) *Joint {
	act, _ := ParseActivation(cfg.JointNet.Activation)
	logSoftmax := true
	if cfg.LogSoftmax != nil {
		logSoftmax = *cfg.LogSoftmax
	}
	return &Joint{
		cfg:        cfg,
		act:        act,
		numClasses: cfg.NumClasses,
		vocabulary: slices.Clone(cfg.Vocabulary),
		logSoftmax: logSoftmax,
		blank:      cfg.blank(),
		logger:     o.logger,
	}
}

// Config returns the configuration the joint was built from.
func (j *Joint) Config() JointConfig { return j.cfg }

// NumClassesWithBlank returns V+1.
func (j *Joint) NumClassesWithBlank() int { return j.numClasses + 1 }

// Vocabulary returns the configured symbols (may be empty).
func (j *Joint) Vocabulary() []string { return j.vocabulary }

// BlankIndex returns the output index of the blank class.
func (j *Joint) BlankIndex() int { return j.blank }

// LogSoftmax reports whether outputs are log-probabilities.
func (j *Joint) LogSoftmax() bool { return j.logSoftmax }

// NumWeights returns the number of trainable parameters.
func (j *Joint) NumWeights() int {
	return j.enc.numWeights() + j.pred.numWeights() + j.out.numWeights()
}

// InputTypes describes the ports of Forward.
func (j *Joint) InputTypes() map[string]NeuralType {
	return map[string]NeuralType{
		"encoder_outputs": {Axes: []string{"B", "D", "T"}, Kind: "AcousticEncoded"},
		"decoder_outputs": {Axes: []string{"B", "D", "T"}, Kind: "Embedded"},
	}
}

// OutputTypes describes the result of Forward.
func (j *Joint) OutputTypes() map[string]NeuralType {
	return map[string]NeuralType{
		"outputs": {Axes: []string{"B", "T", "T", "D"}, Kind: "LogprobsType"},
	}
}

// Forward takes channel-major inputs enc [B, D1, T] and dec [B, D2, U] and
// returns [B, T, U, V+1].
func (j *Joint) Forward(enc, dec *tensor.Tensor) (*tensor.Tensor, error) {
	encT, err := enc.Transpose12()
	if err != nil {
		return nil, fmt.Errorf("%w: encoder outputs: %w", ErrShapeMismatch, err)
	}
	decT, err := dec.Transpose12()
	if err != nil {
		return nil, fmt.Errorf("%w: decoder outputs: %w", ErrShapeMismatch, err)
	}
	return j.Joint(encT, decT)
}

// Joint combines enc [B, T, D1] and dec [B, U, D2] into [B, T, U, V+1].
func (j *Joint) Joint(enc, dec *tensor.Tensor) (*tensor.Tensor, error) {
	if enc.Rank() == 3 && dec.Rank() == 3 && enc.Dim(0) != dec.Dim(0) {
		return nil, fmt.Errorf("%w: encoder batch %d, decoder batch %d", ErrShapeMismatch, enc.Dim(0), dec.Dim(0))
	}
	f, err := j.ProjectEncoder(enc)
	if err != nil {
		return nil, err
	}
	g, err := j.ProjectPrednet(dec)
	if err != nil {
		return nil, err
	}
	return j.JointAfterProjection(f, g)
}

// ProjectEncoder maps enc [B, T, D1] to [B, T, J].
func (j *Joint) ProjectEncoder(enc *tensor.Tensor) (*tensor.Tensor, error) {
	return project(&j.enc, enc, "encoder")
}

// ProjectPrednet maps dec [B, U, D2] to [B, U, J].
func (j *Joint) ProjectPrednet(dec *tensor.Tensor) (*tensor.Tensor, error) {
	return project(&j.pred, dec, "prediction network")
}

func project(l *Linear, x *tensor.Tensor, what string) (*tensor.Tensor, error) {
	if x.Rank() != 3 || x.Dim(2) != l.In {
		return nil, fmt.Errorf("%w: %s input shape %v, want [B, T, %d]", ErrShapeMismatch, what, x.Shape, l.In)
	}
	rows := x.Dim(0) * x.Dim(1)
	out := tensor.ZerosLike(x, x.Dim(0), x.Dim(1), l.Out)
	l.forward(x.Data, rows, out.Data)
	return out, nil
}

// JointAfterProjection combines already projected f [B, T, J] and
// g [B, U, J] into [B, T, U, V+1].
func (j *Joint) JointAfterProjection(f, g *tensor.Tensor) (*tensor.Tensor, error) {
	J := j.out.In
	if f.Rank() != 3 || g.Rank() != 3 || f.Dim(2) != J || g.Dim(2) != J {
		return nil, fmt.Errorf("%w: projections %v and %v, want [B, T, %d] and [B, U, %d]", ErrShapeMismatch, f.Shape, g.Shape, J, J)
	}
	if f.Dim(0) != g.Dim(0) {
		return nil, fmt.Errorf("%w: projection batch %d vs %d", ErrShapeMismatch, f.Dim(0), g.Dim(0))
	}
	B, T, U, K := f.Dim(0), f.Dim(1), g.Dim(1), j.out.Out
	out := tensor.ZerosLike(f, B, T, U, K)
	hidden := make([]float64, U*J)

	for b := 0; b < B; b++ {
		for t := 0; t < T; t++ {
			ft := f.Vec(b, t)
			for u := 0; u < U; u++ {
				gu := g.Vec(b, u)
				row := hidden[u*J : (u+1)*J]
				for k := range row {
					row[k] = j.activate(ft[k] + gu[k])
				}
			}
			dst := out.Data[(b*T+t)*U*K : (b*T+t+1)*U*K]
			blas.Dgemm(false, true, U, K, J, 1.0, hidden, J, j.out.W, J, 0.0, dst, K)
			addBias(dst, j.out.B, U, K)
			if j.logSoftmax {
				for u := 0; u < U; u++ {
					mathutil.LogSoftmax(dst[u*K : (u+1)*K])
				}
			}
		}
	}
	jointCalls.Inc()
	return out, nil
}

func (j *Joint) activate(x float64) float64 {
	switch j.act {
	case ActivationTanh:
		return math.Tanh(x)
	case ActivationSigmoid:
		return sigmoid(x)
	default:
		return math.Max(x, 0)
	}
}
