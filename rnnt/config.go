package rnnt

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ieee0824/transducer-go/tensor"
)

// PredNetConfig sizes the prediction network.
type PredNetConfig struct {
	PredHidden     int      `yaml:"pred_hidden"`
	PredRNNLayers  int      `yaml:"pred_rnn_layers"`
	ForgetGateBias *float64 `yaml:"forget_gate_bias,omitempty"`
}

// DecoderConfig configures a Decoder.
type DecoderConfig struct {
	Target     string        `yaml:"_target_,omitempty"`
	PredNet    PredNetConfig `yaml:"prednet"`
	VocabSize  int           `yaml:"vocab_size"`
	BlankAsPad bool          `yaml:"blank_as_pad"`
	BlankIndex *int          `yaml:"blank_index,omitempty"`
	Seed       int64         `yaml:"seed"`
	DType      tensor.DType  `yaml:"dtype,omitempty"`
}

// DefaultDecoderConfig returns a single-layer, 320-unit prediction network
// configuration; VocabSize must still be set.
func DefaultDecoderConfig() DecoderConfig {
	fgb := 1.0
	return DecoderConfig{
		PredNet: PredNetConfig{
			PredHidden:     320,
			PredRNNLayers:  1,
			ForgetGateBias: &fgb,
		},
		BlankAsPad: true,
		DType:      tensor.Float32,
	}
}

// blank returns the configured blank index or the default V.
func (c DecoderConfig) blank() int {
	if c.BlankIndex != nil {
		return *c.BlankIndex
	}
	return c.VocabSize
}

// Validate checks the configuration.
func (c DecoderConfig) Validate() error {
	var errs []error
	if c.VocabSize <= 0 {
		errs = append(errs, fmt.Errorf("vocab_size must be positive, got %d", c.VocabSize))
	}
	if c.PredNet.PredHidden <= 0 {
		errs = append(errs, fmt.Errorf("prednet.pred_hidden must be positive, got %d", c.PredNet.PredHidden))
	}
	if c.PredNet.PredRNNLayers <= 0 {
		errs = append(errs, fmt.Errorf("prednet.pred_rnn_layers must be positive, got %d", c.PredNet.PredRNNLayers))
	}
	if b := c.blank(); b < 0 || b > c.VocabSize {
		errs = append(errs, fmt.Errorf("blank_index %d outside [0, %d]", b, c.VocabSize))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: decoder config: %w", ErrInvalidArgument, err)
	}
	return nil
}

// JointNetConfig sizes the joint network.
type JointNetConfig struct {
	EncoderHidden int    `yaml:"encoder_hidden"`
	PredHidden    int    `yaml:"pred_hidden"`
	JointHidden   int    `yaml:"joint_hidden"`
	Activation    string `yaml:"activation"`
}

// JointConfig configures a Joint.
type JointConfig struct {
	Target     string         `yaml:"_target_,omitempty"`
	NumClasses int            `yaml:"num_classes"`
	Vocabulary []string       `yaml:"vocabulary,omitempty"`
	JointNet   JointNetConfig `yaml:"jointnet"`
	LogSoftmax *bool          `yaml:"log_softmax,omitempty"`
	BlankIndex *int           `yaml:"blank_index,omitempty"`
	Seed       int64          `yaml:"seed"`
	DType      tensor.DType   `yaml:"dtype,omitempty"`
}

// DefaultJointConfig returns the usual 640-unit ReLU joint sizing;
// NumClasses and the input sizes must still be set.
func DefaultJointConfig() JointConfig {
	return JointConfig{
		JointNet: JointNetConfig{
			JointHidden: 640,
			Activation:  "relu",
		},
		DType: tensor.Float32,
	}
}

func (c JointConfig) blank() int {
	if c.BlankIndex != nil {
		return *c.BlankIndex
	}
	return c.NumClasses
}

// Validate checks the configuration.
func (c JointConfig) Validate() error {
	var errs []error
	if c.NumClasses <= 0 {
		errs = append(errs, fmt.Errorf("num_classes must be positive, got %d", c.NumClasses))
	}
	if len(c.Vocabulary) > 0 && len(c.Vocabulary) != c.NumClasses {
		errs = append(errs, fmt.Errorf("vocabulary has %d entries, num_classes is %d", len(c.Vocabulary), c.NumClasses))
	}
	jn := c.JointNet
	if jn.EncoderHidden <= 0 || jn.PredHidden <= 0 || jn.JointHidden <= 0 {
		errs = append(errs, fmt.Errorf("jointnet sizes must be positive, got encoder=%d pred=%d joint=%d",
			jn.EncoderHidden, jn.PredHidden, jn.JointHidden))
	}
	if _, err := ParseActivation(jn.Activation); err != nil {
		errs = append(errs, err)
	}
	if b := c.blank(); b < 0 || b > c.NumClasses {
		errs = append(errs, fmt.Errorf("blank_index %d outside [0, %d]", b, c.NumClasses))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: joint config: %w", ErrInvalidArgument, err)
	}
	return nil
}

// LoadDecoderConfig decodes a YAML decoder config over DefaultDecoderConfig.
func LoadDecoderConfig(r io.Reader) (DecoderConfig, error) {
	cfg := DefaultDecoderConfig()
	if err := decodeYAML(r, &cfg); err != nil {
		return DecoderConfig{}, fmt.Errorf("decode decoder config: %w", err)
	}
	return cfg, nil
}

// LoadJointConfig decodes a YAML joint config over DefaultJointConfig.
func LoadJointConfig(r io.Reader) (JointConfig, error) {
	cfg := DefaultJointConfig()
	if err := decodeYAML(r, &cfg); err != nil {
		return JointConfig{}, fmt.Errorf("decode joint config: %w", err)
	}
	return cfg, nil
}

// LoadDecoderConfigFile reads a decoder config from path.
func LoadDecoderConfigFile(path string) (DecoderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DecoderConfig{}, err
	}
	return LoadDecoderConfig(bytes.NewReader(data))
}

// LoadJointConfigFile reads a joint config from path.
func LoadJointConfigFile(path string) (JointConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return JointConfig{}, err
	}
	return LoadJointConfig(bytes.NewReader(data))
}

func decodeYAML(r io.Reader, v any) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Activation is the non-linearity applied inside the joint network.
type Activation int

const (
	ActivationReLU Activation = iota
	ActivationTanh
	ActivationSigmoid
)

// ParseActivation maps a config name to an Activation.
func ParseActivation(name string) (Activation, error) {
	switch strings.ToLower(name) {
	case "relu":
		return ActivationReLU, nil
	case "tanh":
		return ActivationTanh, nil
	case "sigmoid":
		return ActivationSigmoid, nil
	default:
		return 0, fmt.Errorf("%w: unsupported activation %q", ErrInvalidArgument, name)
	}
}

func (a Activation) String() string {
	switch a {
	case ActivationTanh:
		return "tanh"
	case ActivationSigmoid:
		return "sigmoid"
	default:
		return "relu"
	}
}
