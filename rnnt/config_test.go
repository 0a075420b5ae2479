package rnnt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const decoderYAML = `
_target_: nemo.collections.asr.modules.RNNTDecoder
prednet:
  pred_hidden: 32
  pred_rnn_layers: 1
vocab_size: 10
blank_as_pad: true
`

const jointYAML = `
_target_: nemo.collections.asr.modules.RNNTJoint
num_classes: 10
vocabulary: ["0", "1", "2", "3", "4", "5", "6", "7", "8", "9"]
jointnet:
  encoder_hidden: 64
  pred_hidden: 32
  joint_hidden: 16
  activation: relu
`

func TestLoadDecoderConfig(t *testing.T) {
	cfg, err := LoadDecoderConfig(strings.NewReader(decoderYAML))
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.PredNet.PredHidden)
	assert.Equal(t, 10, cfg.VocabSize)
	require.NotNil(t, cfg.PredNet.ForgetGateBias, "default forget gate bias is kept")
	assert.Equal(t, 1.0, *cfg.PredNet.ForgetGateBias)
	assert.Nil(t, cfg.BlankIndex)
	assert.NoError(t, cfg.Validate())
}

func TestLoadJointConfig(t *testing.T) {
	cfg, err := LoadJointConfig(strings.NewReader(jointYAML))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.NumClasses)
	assert.Len(t, cfg.Vocabulary, 10)
	assert.Equal(t, 64, cfg.JointNet.EncoderHidden)
	assert.Nil(t, cfg.LogSoftmax)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_RejectsUnknownFields(t *testing.T) {
	_, err := LoadDecoderConfig(strings.NewReader("vocab_size: 3\npred_hiden: 4\n"))
	assert.Error(t, err)
}

func TestLoadConfig_EmptyInputKeepsDefaults(t *testing.T) {
	cfg, err := LoadJointConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultJointConfig().JointNet, cfg.JointNet)
}

func TestParseActivation(t *testing.T) {
	a, err := ParseActivation("Tanh")
	require.NoError(t, err)
	assert.Equal(t, ActivationTanh, a)
	assert.Equal(t, "tanh", a.String())

	_, err = ParseActivation("swish")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
