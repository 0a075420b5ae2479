package preprocessor

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/ieee0824/transducer-go/tensor"
)

// normEps is added to the standard deviation during normalization.
const normEps = 1e-5

// MelSpectrogram converts batches of audio into log-mel features [B, F, T].
// It is safe for concurrent use.
type MelSpectrogram struct {
	cfg    Config
	window []float64
	fb     *melFilterbank
	hop    int
	nfft   int
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMelSpectrogram validates cfg and precomputes the window and filterbank.
func NewMelSpectrogram(cfg Config, logger *zap.Logger) (*MelSpectrogram, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("mel spectrogram config: %w", err)
	}
	nfft := cfg.nfft()
	window, err := paddedWindow(cfg.Window, cfg.winLength(), nfft)
	if err != nil {
		return nil, err
	}
	m := &MelSpectrogram{
		cfg:    cfg,
		window: window,
		fb:     newMelFilterbank(cfg.Features, nfft, cfg.SampleRate, cfg.LowFreq, cfg.highFreq()),
		hop:    cfg.hopLength(),
		nfft:   nfft,
		logger: logger,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}
	logger.Debug("Mel spectrogram initialized",
		zap.Int("sample_rate", cfg.SampleRate),
		zap.Int("win_length", cfg.winLength()),
		zap.Int("hop_length", m.hop),
		zap.Int("n_fft", nfft),
		zap.Int("features", cfg.Features),
		zap.String("normalize", cfg.Normalize))
	return m, nil
}

// Config returns the configuration.
func (m *MelSpectrogram) Config() Config { return m.cfg }

// Features returns the number of mel bands F.
func (m *MelSpectrogram) Features() int { return m.cfg.Features }

// FrameLength returns the number of valid frames for a signal of n samples.
func (m *MelSpectrogram) FrameLength(n int) int { return 1 + n/m.hop }

// Forward computes features for signals [B, N] whose valid prefixes are
// lengths. Frames past each valid length are set to PadValue, and the time
// axis is padded up to a multiple of PadTo. It returns the features and the
// valid frame count of each row.
func (m *MelSpectrogram) Forward(signals *tensor.Tensor, lengths []int) (*tensor.Tensor, []int, error) {
	if signals.Rank() != 2 {
		return nil, nil, fmt.Errorf("%w: signal shape %v, want [B, N]", ErrInvalidInput, signals.Shape)
	}
	B, N := signals.Dim(0), signals.Dim(1)
	if len(lengths) != B {
		return nil, nil, fmt.Errorf("%w: %d lengths for batch %d", ErrInvalidInput, len(lengths), B)
	}
	for b, n := range lengths {
		if n < 0 || n > N {
			return nil, nil, fmt.Errorf("%w: length[%d] = %d outside [0, %d]", ErrInvalidInput, b, n, N)
		}
	}

	F, T := m.cfg.Features, m.FrameLength(N)
	Tp := T
	if p := m.cfg.PadTo; p > 0 && T%p != 0 {
		Tp = (T/p + 1) * p
	}
	out := tensor.ZerosLike(signals, B, F, Tp)
	if m.cfg.PadValue != 0 {
		for i := range out.Data {
			out.Data[i] = m.cfg.PadValue
		}
	}
	frameLens := make([]int, B)

	ws := newFFTWorkspace(m.nfft)
	x := make([]float64, N)
	padded := make([]float64, N+m.nfft)
	mel := make([]float64, F)
	feats := make([]float64, F*T)
	for b := 0; b < B; b++ {
		copy(x, signals.Data[b*N:(b+1)*N])
		m.dither(x)
		preEmphasize(x, m.cfg.Preemph)
		reflectPad(padded, x, m.nfft/2)

		for t := 0; t < T; t++ {
			ws.magnitudeSpectrum(padded[t*m.hop:t*m.hop+m.nfft], m.window, m.cfg.MagPower)
			m.fb.applyInto(ws.spec, mel)
			for f, v := range mel {
				if m.cfg.Log {
					v = math.Log(v + m.cfg.LogZeroGuard)
				}
				feats[f*T+t] = v
			}
		}

		valid := min(m.FrameLength(lengths[b]), T)
		frameLens[b] = valid
		normalize(feats, F, T, valid, m.cfg.Normalize)
		for f := 0; f < F; f++ {
			copy(out.Data[(b*F+f)*Tp:(b*F+f)*Tp+valid], feats[f*T:f*T+valid])
		}
	}
	return out, frameLens, nil
}

func (m *MelSpectrogram) dither(x []float64) {
	if m.cfg.Dither <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range x {
		x[i] += m.cfg.Dither * m.rng.NormFloat64()
	}
}

// preEmphasize applies y[n] = x[n] - alpha*x[n-1] in place.
func preEmphasize(x []float64, alpha float64) {
	if alpha == 0 {
		return
	}
	for i := len(x) - 1; i > 0; i-- {
		x[i] -= alpha * x[i-1]
	}
}

// reflectPad writes x with pad mirrored samples on each side into dst.
func reflectPad(dst, x []float64, pad int) {
	n := len(x)
	if n == 0 {
		clear(dst)
		return
	}
	for i := range dst {
		dst[i] = x[reflectIndex(i-pad, n)]
	}
}

func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	p := 2 * (n - 1)
	i = ((i % p) + p) % p
	if i >= n {
		i = p - i
	}
	return i
}

// normalize standardizes the first valid frames of feats [F × T].
func normalize(feats []float64, F, T, valid int, mode string) {
	if valid == 0 {
		return
	}
	switch mode {
	case NormalizePerFeature:
		for f := 0; f < F; f++ {
			row := feats[f*T : f*T+valid]
			standardize(row, row)
		}
	case NormalizeAllFeatures:
		all := make([]float64, 0, F*valid)
		for f := 0; f < F; f++ {
			all = append(all, feats[f*T:f*T+valid]...)
		}
		mean, std := meanStd(all)
		for f := 0; f < F; f++ {
			row := feats[f*T : f*T+valid]
			for i := range row {
				row[i] = (row[i] - mean) / (std + normEps)
			}
		}
	}
}

func standardize(dst, src []float64) {
	mean, std := meanStd(src)
	for i, v := range src {
		dst[i] = (v - mean) / (std + normEps)
	}
}

// meanStd returns the mean and unbiased standard deviation (0 for fewer
// than two values).
func meanStd(x []float64) (float64, float64) {
	if len(x) < 2 {
		return stat.Mean(x, nil), 0
	}
	return stat.Mean(x, nil), stat.StdDev(x, nil)
}
