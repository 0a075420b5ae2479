// Package transducer wires a vocabulary, an RNNT prediction network, a joint
// network and a search strategy into a speech-to-text model. The acoustic
// encoder is supplied by the caller.
package transducer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ieee0824/transducer-go/preprocessor"
	"github.com/ieee0824/transducer-go/registry"
	"github.com/ieee0824/transducer-go/rnnt"
	"github.com/ieee0824/transducer-go/search"
	"github.com/ieee0824/transducer-go/tensor"
	"github.com/ieee0824/transducer-go/vocab"
)

// Encoder maps features [B, F, T] with valid frame counts to encoder outputs
// [B, T', D] and their valid lengths.
type Encoder interface {
	Encode(ctx context.Context, feats *tensor.Tensor, lengths []int) (*tensor.Tensor, []int, error)
}

// Model is the top-level transducer.
type Model struct {
	Vocab        *vocab.Vocabulary
	Decoder      *rnnt.Decoder
	Joint        *rnnt.Joint
	Search       search.Config
	Encoder      Encoder
	Preprocessor *preprocessor.MelSpectrogram
	Concurrency  int // max utterances decoded at once (0 = GOMAXPROCS)

	logger *zap.Logger
}

// Option configures a Model.
type Option func(*Model)

// WithSearchConfig sets the decoding strategy and its bounds.
func WithSearchConfig(cfg search.Config) Option {
	return func(m *Model) {
		m.Search = cfg
	}
}

// WithEncoder sets the acoustic encoder used by Transcribe.
func WithEncoder(enc Encoder) Option {
	return func(m *Model) {
		m.Encoder = enc
	}
}

// WithPreprocessor replaces the default mel spectrogram front end.
func WithPreprocessor(p *preprocessor.MelSpectrogram) Option {
	return func(m *Model) {
		m.Preprocessor = p
	}
}

// WithConcurrency bounds how many utterances are decoded in parallel.
func WithConcurrency(n int) Option {
	return func(m *Model) {
		m.Concurrency = n
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewModel builds a freshly initialized model from decoder and joint YAML
// configs. The vocabulary comes from the joint config; without one the
// symbols are the decimal ids.
func NewModel(decoderCfgPath, jointCfgPath string, opts ...Option) (*Model, error) {
	decCfg, err := rnnt.LoadDecoderConfigFile(decoderCfgPath)
	if err != nil {
		return nil, fmt.Errorf("load decoder config: %w", err)
	}
	jointCfg, err := rnnt.LoadJointConfigFile(jointCfgPath)
	if err != nil {
		return nil, fmt.Errorf("load joint config: %w", err)
	}

	m := newModel(opts)
	dec, err := rnnt.NewDecoder(decCfg, rnnt.WithLogger(m.logger))
	if err != nil {
		return nil, fmt.Errorf("build decoder: %w", err)
	}
	joint, err := rnnt.NewJoint(jointCfg, rnnt.WithLogger(m.logger))
	if err != nil {
		return nil, fmt.Errorf("build joint: %w", err)
	}
	voc, err := vocabFor(joint)
	if err != nil {
		return nil, err
	}
	return m.attach(voc, dec, joint)
}

// NewModelFromModules creates a Model from pre-built modules. The vocabulary,
// decoder and joint must agree on the vocabulary size and blank id.
func NewModelFromModules(voc *vocab.Vocabulary, dec *rnnt.Decoder, joint *rnnt.Joint, opts ...Option) (*Model, error) {
	return newModel(opts).attach(voc, dec, joint)
}

// FromPretrained resolves a named model from reg.
func FromPretrained(ctx context.Context, reg *registry.Registry[*Model], name string) (*Model, error) {
	m, err := reg.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("pretrained model %q: %w", name, err)
	}
	return m, nil
}

func newModel(opts []Option) *Model {
	m := &Model{
		Search: search.DefaultConfig(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Model) attach(voc *vocab.Vocabulary, dec *rnnt.Decoder, joint *rnnt.Joint) (*Model, error) {
	if voc == nil || dec == nil || joint == nil {
		return nil, fmt.Errorf("%w: vocabulary, decoder and joint are required", rnnt.ErrInvalidArgument)
	}
	if dec.VocabSize() != voc.Size() || joint.NumClassesWithBlank() != voc.SizeWithBlank() {
		return nil, fmt.Errorf("%w: vocabulary size %d, decoder %d, joint %d classes",
			rnnt.ErrShapeMismatch, voc.Size(), dec.VocabSize(), joint.NumClassesWithBlank())
	}
	if jn := joint.Config().JointNet; jn.PredHidden != dec.Hidden() {
		return nil, fmt.Errorf("%w: joint expects prediction width %d, decoder has %d",
			rnnt.ErrShapeMismatch, jn.PredHidden, dec.Hidden())
	}
	if dec.BlankIndex() != voc.BlankIndex() || joint.BlankIndex() != voc.BlankIndex() {
		return nil, fmt.Errorf("%w: blank index vocabulary=%d decoder=%d joint=%d",
			rnnt.ErrInvalidArgument, voc.BlankIndex(), dec.BlankIndex(), joint.BlankIndex())
	}
	if err := m.Search.Validate(); err != nil {
		return nil, err
	}
	if m.Preprocessor == nil {
		p, err := preprocessor.NewMelSpectrogram(preprocessor.DefaultConfig(), m.logger)
		if err != nil {
			return nil, err
		}
		m.Preprocessor = p
	}
	m.Vocab, m.Decoder, m.Joint = voc, dec, joint
	m.logger.Info("Transducer model ready",
		zap.Int("vocab_size", voc.Size()),
		zap.Int("blank_index", voc.BlankIndex()),
		zap.Int("decoder_weights", dec.NumWeights()),
		zap.Int("joint_weights", joint.NumWeights()),
		zap.String("strategy", string(m.Search.Strategy)))
	return m, nil
}

func vocabFor(joint *rnnt.Joint) (*vocab.Vocabulary, error) {
	symbols := joint.Vocabulary()
	if len(symbols) == 0 {
		symbols = make([]string, joint.NumClassesWithBlank()-1)
		for i := range symbols {
			symbols[i] = strconv.Itoa(i)
		}
	}
	voc, err := vocab.New(symbols, vocab.WithBlankIndex(joint.BlankIndex()))
	if err != nil {
		return nil, fmt.Errorf("build vocabulary: %w", err)
	}
	return voc, nil
}

// Transcription is the decoded output of one utterance.
type Transcription struct {
	Text string
	*search.Result
}

// TranscribeEncoded decodes encoder outputs enc [B, T, D] whose valid frame
// counts are lengths and returns one text per utterance.
func (m *Model) TranscribeEncoded(ctx context.Context, enc *tensor.Tensor, lengths []int) ([]string, error) {
	if enc == nil || enc.Rank() != 3 {
		return nil, fmt.Errorf("%w: encoder output must be [B, T, D]", rnnt.ErrShapeMismatch)
	}
	if len(lengths) != enc.Dim(0) {
		return nil, fmt.Errorf("%w: %d lengths for batch %d", rnnt.ErrShapeMismatch, len(lengths), enc.Dim(0))
	}
	utts := make([]*tensor.Tensor, enc.Dim(0))
	for b := range utts {
		utts[b] = enc.SliceBatch(b)
	}
	out, err := m.TranscribeBatch(ctx, utts, lengths)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(out))
	for i, tr := range out {
		texts[i] = tr.Text
	}
	return texts, nil
}

// TranscribeBatch decodes independent utterances, each [1, T_i, D],
// concurrently. Every utterance gets its own hypothesis cache.
func (m *Model) TranscribeBatch(ctx context.Context, encs []*tensor.Tensor, lengths []int) ([]Transcription, error) {
	if len(lengths) != len(encs) {
		return nil, fmt.Errorf("%w: %d lengths for %d utterances", rnnt.ErrShapeMismatch, len(lengths), len(encs))
	}
	limit := m.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	out := make([]Transcription, len(encs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range encs {
		g.Go(func() error {
			_, res, err := search.Decode(gctx, m.Decoder, m.Joint, encs[i], lengths[i], m.Search,
				search.WithLogger(m.logger))
			if err != nil {
				return fmt.Errorf("utterance %d: %w", i, err)
			}
			out[i] = Transcription{Text: m.Vocab.Decode(res.Tokens), Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	m.logger.Debug("Decoded batch", zap.Int("utterances", len(encs)))
	return out, nil
}

// Transcribe runs audio signals [B, N] with valid sample counts lengths
// through the preprocessor, the encoder and the search.
func (m *Model) Transcribe(ctx context.Context, signals *tensor.Tensor, lengths []int) ([]string, error) {
	if m.Encoder == nil {
		return nil, fmt.Errorf("%w: no encoder configured", rnnt.ErrInvalidArgument)
	}
	feats, featLens, err := m.Preprocessor.Forward(signals, lengths)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	enc, encLens, err := m.Encoder.Encode(ctx, feats, featLens)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return m.TranscribeEncoded(ctx, enc, encLens)
}

// Save writes the decoder and joint checkpoints to w, one after the other.
// The vocabulary travels inside the joint config.
func (m *Model) Save(w io.Writer) error {
	if err := m.Decoder.Save(w); err != nil {
		return fmt.Errorf("save decoder: %w", err)
	}
	if err := m.Joint.Save(w); err != nil {
		return fmt.Errorf("save joint: %w", err)
	}
	return nil
}

// SaveFile writes the model checkpoint to path.
func (m *Model) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads a checkpoint written by Save.
func Load(r io.Reader, opts ...Option) (*Model, error) {
	// gob reads exactly one message at a time from an io.ByteReader, so both
	// checkpoints can share the stream.
	br := bufio.NewReader(r)
	m := newModel(opts)
	dec, err := rnnt.LoadDecoder(br, rnnt.WithLogger(m.logger))
	if err != nil {
		return nil, fmt.Errorf("load decoder: %w", err)
	}
	joint, err := rnnt.LoadJoint(br, rnnt.WithLogger(m.logger))
	if err != nil {
		return nil, fmt.Errorf("load joint: %w", err)
	}
	voc, err := vocabFor(joint)
	if err != nil {
		return nil, err
	}
	return m.attach(voc, dec, joint)
}

// LoadFile is a convenience wrapper that opens a file path.
func LoadFile(path string, opts ...Option) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, opts...)
}
