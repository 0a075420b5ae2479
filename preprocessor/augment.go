package preprocessor

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/ieee0824/transducer-go/tensor"
)

// SpecAugmentConfig configures SpecAugment masking and rectangular cutout.
// Widths are upper bounds; each mask draws its own width below them.
type SpecAugmentConfig struct {
	FreqMasks int     `yaml:"freq_masks"`
	TimeMasks int     `yaml:"time_masks"`
	FreqWidth int     `yaml:"freq_width"`
	TimeWidth float64 `yaml:"time_width"` // frames, or a fraction of the valid length when < 1
	RectMasks int     `yaml:"rect_masks"`
	RectTime  int     `yaml:"rect_time"`
	RectFreq  int     `yaml:"rect_freq"`
	MaskValue float64 `yaml:"mask_value"`
	Seed      int64   `yaml:"seed"`
}

// DefaultSpecAugmentConfig returns widths 10/10 and 5x20 cutouts with no
// masks enabled.
func DefaultSpecAugmentConfig() SpecAugmentConfig {
	return SpecAugmentConfig{
		FreqWidth: 10,
		TimeWidth: 10,
		RectTime:  5,
		RectFreq:  20,
	}
}

// SpecAugment masks random frequency bands, time spans and rectangles of
// spectrograms [B, F, T]. It is safe for concurrent use.
type SpecAugment struct {
	cfg SpecAugmentConfig
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSpecAugment creates a SpecAugment seeded from cfg.Seed.
func NewSpecAugment(cfg SpecAugmentConfig) (*SpecAugment, error) {
	if cfg.FreqMasks < 0 || cfg.TimeMasks < 0 || cfg.RectMasks < 0 {
		return nil, fmt.Errorf("%w: negative mask count", ErrInvalidInput)
	}
	if cfg.FreqWidth < 0 || cfg.TimeWidth < 0 || cfg.RectTime < 0 || cfg.RectFreq < 0 {
		return nil, fmt.Errorf("%w: negative mask width", ErrInvalidInput)
	}
	return &SpecAugment{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}, nil
}

// Apply returns a masked copy of spec. lengths bounds the time masks of each
// row; nil means the full time axis.
func (a *SpecAugment) Apply(spec *tensor.Tensor, lengths []int) (*tensor.Tensor, error) {
	if spec.Rank() != 3 {
		return nil, fmt.Errorf("%w: spectrogram shape %v, want [B, F, T]", ErrInvalidInput, spec.Shape)
	}
	B, F, T := spec.Dim(0), spec.Dim(1), spec.Dim(2)
	if lengths != nil && len(lengths) != B {
		return nil, fmt.Errorf("%w: %d lengths for batch %d", ErrInvalidInput, len(lengths), B)
	}
	out := spec.Clone()

	a.mu.Lock()
	defer a.mu.Unlock()
	c := a.cfg
	for b := 0; b < B; b++ {
		valid := T
		if lengths != nil {
			valid = min(max(lengths[b], 0), T)
		}
		for i := 0; i < c.RectMasks; i++ {
			f0, w := a.span(F, c.RectFreq)
			t0, h := a.span(valid, c.RectTime)
			maskRect(out, b, f0, f0+w, t0, t0+h, c.MaskValue)
		}
		for i := 0; i < c.FreqMasks; i++ {
			f0, w := a.span(F, c.FreqWidth)
			maskRect(out, b, f0, f0+w, 0, T, c.MaskValue)
		}
		tw := int(c.TimeWidth)
		if c.TimeWidth > 0 && c.TimeWidth < 1 {
			tw = max(1, int(float64(valid)*c.TimeWidth))
		}
		for i := 0; i < c.TimeMasks; i++ {
			t0, w := a.span(valid, tw)
			maskRect(out, b, 0, F, t0, t0+w, c.MaskValue)
		}
	}
	return out, nil
}

// span draws a start in [0, size-width) and a width in [0, width).
func (a *SpecAugment) span(size, width int) (start, w int) {
	if size <= 0 || width <= 0 {
		return 0, 0
	}
	start = a.rng.Intn(max(1, size-width))
	w = a.rng.Intn(width)
	return start, w
}

func maskRect(x *tensor.Tensor, b, f0, f1, t0, t1 int, v float64) {
	F, T := x.Dim(1), x.Dim(2)
	f1, t1 = min(f1, F), min(t1, T)
	for f := f0; f < f1; f++ {
		row := x.Vec(b, f)
		for t := t0; t < t1; t++ {
			row[t] = v
		}
	}
}

// CropOrPad forces the time axis of spectrograms to AudioLength frames:
// longer inputs are cropped at a random offset, shorter ones are padded
// evenly on both sides.
type CropOrPad struct {
	AudioLength int
	PadValue    float64

	mu  sync.Mutex
	rng *rand.Rand
}

// NewCropOrPad creates a CropOrPad with a seeded crop offset generator.
func NewCropOrPad(audioLength int, seed int64) (*CropOrPad, error) {
	if audioLength <= 0 {
		return nil, fmt.Errorf("%w: audio_length must be positive, got %d", ErrInvalidInput, audioLength)
	}
	return &CropOrPad{AudioLength: audioLength, rng: rand.New(rand.NewSource(seed))}, nil
}

// Apply returns [B, F, AudioLength] and lengths all equal to AudioLength.
func (c *CropOrPad) Apply(spec *tensor.Tensor, lengths []int) (*tensor.Tensor, []int, error) {
	if spec.Rank() != 3 {
		return nil, nil, fmt.Errorf("%w: spectrogram shape %v, want [B, F, T]", ErrInvalidInput, spec.Shape)
	}
	B, F, T := spec.Dim(0), spec.Dim(1), spec.Dim(2)
	if lengths != nil && len(lengths) != B {
		return nil, nil, fmt.Errorf("%w: %d lengths for batch %d", ErrInvalidInput, len(lengths), B)
	}
	L := c.AudioLength
	out := tensor.ZerosLike(spec, B, F, L)
	newLens := make([]int, B)

	c.mu.Lock()
	defer c.mu.Unlock()
	for b := 0; b < B; b++ {
		newLens[b] = L
		if T > L {
			off := c.rng.Intn(T - L + 1)
			for f := 0; f < F; f++ {
				copy(out.Vec(b, f), spec.Vec(b, f)[off:off+L])
			}
			continue
		}
		left := (L - T) / 2
		for f := 0; f < F; f++ {
			row := out.Vec(b, f)
			for i := range row {
				row[i] = c.PadValue
			}
			copy(row[left:left+T], spec.Vec(b, f))
		}
	}
	return out, newLens, nil
}

// SpeedPerturb resamples every row of signals [B, N] by factor using linear
// interpolation. factor > 1 speeds the audio up. The result is
// [B, int(N/factor)] with lengths scaled the same way.
func SpeedPerturb(signals *tensor.Tensor, lengths []int, factor float64) (*tensor.Tensor, []int, error) {
	if signals.Rank() != 2 {
		return nil, nil, fmt.Errorf("%w: signal shape %v, want [B, N]", ErrInvalidInput, signals.Shape)
	}
	if factor <= 0 {
		return nil, nil, fmt.Errorf("%w: speed factor %g", ErrInvalidInput, factor)
	}
	B, N := signals.Dim(0), signals.Dim(1)
	if len(lengths) != B {
		return nil, nil, fmt.Errorf("%w: %d lengths for batch %d", ErrInvalidInput, len(lengths), B)
	}
	newN := int(float64(N) / factor)
	out := tensor.ZerosLike(signals, B, newN)
	newLens := make([]int, B)
	for b := 0; b < B; b++ {
		src := signals.Data[b*N : (b+1)*N]
		dst := out.Data[b*newN : (b+1)*newN]
		for i := range dst {
			pos := float64(i) * factor
			i0 := int(pos)
			frac := pos - float64(i0)
			switch {
			case i0+1 < N:
				dst[i] = src[i0]*(1-frac) + src[i0+1]*frac
			case i0 < N:
				dst[i] = src[i0]
			}
		}
		newLens[b] = min(int(float64(lengths[b])/factor), newN)
	}
	return out, newLens, nil
}
