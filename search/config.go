// Package search implements RNNT decoding drivers on top of the prediction
// and joint networks: frame-synchronous greedy decoding and beam search.
package search

import (
	"errors"
	"fmt"

	"github.com/ieee0824/transducer-go/rnnt"
)

// Strategy selects a decoding algorithm.
type Strategy string

const (
	StrategyGreedy Strategy = "greedy"
	StrategyBeam   Strategy = "beam"
)

// Config holds decoding parameters.
type Config struct {
	Strategy              Strategy `mapstructure:"strategy" yaml:"strategy"`
	BeamSize              int      `mapstructure:"beam_size" yaml:"beam_size"`                               // hypotheses kept per frame
	MaxSymbolsPerStep     int      `mapstructure:"max_symbols_per_step" yaml:"max_symbols_per_step"`         // greedy emissions per frame
	MaxExpansionsPerFrame int      `mapstructure:"max_expansions_per_frame" yaml:"max_expansions_per_frame"` // beam pops per frame
	ScoreNorm             bool     `mapstructure:"score_norm" yaml:"score_norm"`                             // rank n-best by score / length
	SoftmaxTemperature    float64  `mapstructure:"softmax_temperature" yaml:"softmax_temperature"`           // divides joint outputs before log-softmax
	Recombine             bool     `mapstructure:"recombine" yaml:"recombine"`                               // merge kept hypotheses with equal sequences
}

// DefaultConfig returns greedy decoding with the usual beam settings filled
// in for when the strategy is switched to beam.
func DefaultConfig() Config {
	return Config{
		Strategy:              StrategyGreedy,
		BeamSize:              4,
		MaxSymbolsPerStep:     10,
		MaxExpansionsPerFrame: 100,
		ScoreNorm:             true,
		SoftmaxTemperature:    1.0,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	switch c.Strategy {
	case StrategyGreedy, StrategyBeam:
	default:
		errs = append(errs, fmt.Errorf("unknown strategy %q", c.Strategy))
	}
	if c.BeamSize < 1 {
		errs = append(errs, fmt.Errorf("beam_size must be at least 1, got %d", c.BeamSize))
	}
	if c.MaxSymbolsPerStep < 1 {
		errs = append(errs, fmt.Errorf("max_symbols_per_step must be at least 1, got %d", c.MaxSymbolsPerStep))
	}
	if c.MaxExpansionsPerFrame < 1 {
		errs = append(errs, fmt.Errorf("max_expansions_per_frame must be at least 1, got %d", c.MaxExpansionsPerFrame))
	}
	if c.SoftmaxTemperature <= 0 {
		errs = append(errs, fmt.Errorf("softmax_temperature must be positive, got %g", c.SoftmaxTemperature))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: search config: %w", rnnt.ErrInvalidArgument, err)
	}
	return nil
}
