// Package preprocessor turns raw audio into the log-mel spectrograms an
// acoustic encoder consumes, and augments spectrograms for training.
package preprocessor

import (
	"errors"
	"fmt"
)

// Normalization modes.
const (
	NormalizePerFeature  = "per_feature"
	NormalizeAllFeatures = "all_features"
	NormalizeNone        = ""
)

// Config holds the mel spectrogram parameters.
type Config struct {
	SampleRate   int     `yaml:"sample_rate"`
	WindowSize   float64 `yaml:"window_size"`   // seconds
	WindowStride float64 `yaml:"window_stride"` // seconds
	Window       string  `yaml:"window"`        // hann, hamming, blackman, bartlett, ones
	NFFT         int     `yaml:"n_fft"`         // 0 = next power of two >= window
	Features     int     `yaml:"features"`
	LowFreq      float64 `yaml:"lowfreq"`
	HighFreq     float64 `yaml:"highfreq"` // 0 = SampleRate/2
	Preemph      float64 `yaml:"preemph"`
	Dither       float64 `yaml:"dither"`
	Log          bool    `yaml:"log"`
	LogZeroGuard float64 `yaml:"log_zero_guard_value"`
	MagPower     float64 `yaml:"mag_power"`
	Normalize    string  `yaml:"normalize"`
	PadTo        int     `yaml:"pad_to"`
	PadValue     float64 `yaml:"pad_value"`
	Seed         int64   `yaml:"seed"`
}

// DefaultConfig returns the 16 kHz, 64-band log-mel configuration used by
// the reference ASR models.
func DefaultConfig() Config {
	return Config{
		SampleRate:   16000,
		WindowSize:   0.02,
		WindowStride: 0.01,
		Window:       "hann",
		NFFT:         512,
		Features:     64,
		Preemph:      0.97,
		Dither:       1e-5,
		Log:          true,
		LogZeroGuard: 1.0 / (1 << 24),
		MagPower:     2.0,
		Normalize:    NormalizePerFeature,
		PadTo:        16,
	}
}

func (c Config) winLength() int { return int(c.WindowSize * float64(c.SampleRate)) }
func (c Config) hopLength() int { return int(c.WindowStride * float64(c.SampleRate)) }

func (c Config) nfft() int {
	if c.NFFT > 0 {
		return c.NFFT
	}
	n := 1
	for n < c.winLength() {
		n <<= 1
	}
	return n
}

func (c Config) highFreq() float64 {
	if c.HighFreq > 0 {
		return c.HighFreq
	}
	return float64(c.SampleRate) / 2
}

// Validate checks the configuration.
func (c Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate))
	}
	if c.winLength() <= 0 || c.hopLength() <= 0 {
		errs = append(errs, fmt.Errorf("window_size and window_stride must cover at least one sample"))
	}
	if n := c.nfft(); n&(n-1) != 0 || n < c.winLength() {
		errs = append(errs, fmt.Errorf("n_fft %d must be a power of two >= the window length %d", n, c.winLength()))
	}
	if c.Features <= 0 {
		errs = append(errs, fmt.Errorf("features must be positive, got %d", c.Features))
	}
	if c.LowFreq < 0 || c.LowFreq >= c.highFreq() {
		errs = append(errs, fmt.Errorf("lowfreq %g must be in [0, highfreq %g)", c.LowFreq, c.highFreq()))
	}
	if _, err := windowFunc(c.Window); err != nil {
		errs = append(errs, err)
	}
	switch c.Normalize {
	case NormalizePerFeature, NormalizeAllFeatures, NormalizeNone:
	default:
		errs = append(errs, fmt.Errorf("unknown normalize mode %q", c.Normalize))
	}
	if c.MagPower <= 0 {
		errs = append(errs, fmt.Errorf("mag_power must be positive, got %g", c.MagPower))
	}
	if c.PadTo < 0 {
		errs = append(errs, fmt.Errorf("pad_to must not be negative, got %d", c.PadTo))
	}
	return errors.Join(errs...)
}
