package rnnt

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ieee0824/transducer-go/tensor"
)

var digits = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}

func testDecoderConfig(hidden, vocabSize int) DecoderConfig {
	cfg := DefaultDecoderConfig()
	cfg.PredNet.PredHidden = hidden
	cfg.VocabSize = vocabSize
	return cfg
}

func newTestDecoder(t *testing.T, cfg DecoderConfig) *Decoder {
	t.Helper()
	d, err := NewDecoder(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return d
}

func testJointConfig(encHidden, predHidden, jointHidden int) JointConfig {
	cfg := DefaultJointConfig()
	cfg.NumClasses = len(digits)
	cfg.Vocabulary = digits
	cfg.JointNet.EncoderHidden = encHidden
	cfg.JointNet.PredHidden = predHidden
	cfg.JointNet.JointHidden = jointHidden
	return cfg
}

func newTestJoint(t *testing.T, cfg JointConfig) *Joint {
	t.Helper()
	j, err := NewJoint(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return j
}

func randTensor(rng *rand.Rand, shape ...int) *tensor.Tensor {
	x := tensor.Zeros(shape...)
	for i := range x.Data {
		x.Data[i] = rng.NormFloat64()
	}
	return x
}
