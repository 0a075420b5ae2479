package rnnt

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"github.com/ieee0824/transducer-go/tensor"
)

// Decoder is the RNNT prediction network: a token embedding followed by a
// stack of LSTM layers. It conditions each output on every non-blank token
// emitted so far through its recurrent state.
//
// A Decoder is read-only after construction and may be shared by concurrent
// decode passes.
type Decoder struct {
	cfg        DecoderConfig
	embed      []float64 // [embedRows × hidden]
	embedRows  int
	layers     []LSTMLayer
	hidden     int
	vocabSize  int
	blank      int
	blankAsPad bool
	dtype      tensor.DType
	logger     *zap.Logger
}

// NewDecoder builds a prediction network with freshly initialized weights.
// Initialization is deterministic for a given cfg.Seed.
func NewDecoder(cfg DecoderConfig, opts ...Option) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := newDecoderShell(cfg, buildOptions(opts))
	rng := rand.New(rand.NewSource(cfg.Seed))

	d.embed = make([]float64, d.embedRows*d.hidden)
	for i := range d.embed {
		d.embed[i] = rng.NormFloat64()
	}
	if d.blankAsPad {
		// padding row
		clear(d.embed[d.blank*d.hidden : (d.blank+1)*d.hidden])
	}
	d.layers = make([]LSTMLayer, cfg.PredNet.PredRNNLayers)
	for l := range d.layers {
		d.layers[l] = newLSTMLayer(d.hidden, d.hidden, cfg.PredNet.ForgetGateBias, rng)
	}

	d.logger.Debug("Prediction network initialized",
		zap.Int("vocab_size", d.vocabSize),
		zap.Int("pred_hidden", d.hidden),
		zap.Int("pred_rnn_layers", len(d.layers)),
		zap.Bool("blank_as_pad", d.blankAsPad),
		zap.Int("blank_index", d.blank),
		zap.Int("num_weights", d.NumWeights()))
	return d, nil
}

func newDecoderShell(cfg DecoderConfig, o moduleOptions) *Decoder {
	rows := cfg.VocabSize
	if cfg.BlankAsPad {
		rows++
	}
	dtype := cfg.DType
	if dtype == "" {
		dtype = tensor.Float32
	}
	return &Decoder{
		cfg:        cfg,
		embedRows:  rows,
		hidden:     cfg.PredNet.PredHidden,
		vocabSize:  cfg.VocabSize,
		blank:      cfg.blank(),
		blankAsPad: cfg.BlankAsPad,
		dtype:      dtype,
		logger:     o.logger,
	}
}

// Config returns the configuration the decoder was built from.
func (d *Decoder) Config() DecoderConfig { return d.cfg }

// BlankIndex returns the id of the blank symbol.
func (d *Decoder) BlankIndex() int { return d.blank }

// VocabSize returns V, the number of real symbols.
func (d *Decoder) VocabSize() int { return d.vocabSize }

// Hidden returns the prediction network width.
func (d *Decoder) Hidden() int { return d.hidden }

// Layers returns the number of LSTM layers.
func (d *Decoder) Layers() int { return len(d.layers) }

// BlankAsPad reports whether the blank has its own (always zero) embedding row.
func (d *Decoder) BlankAsPad() bool { return d.blankAsPad }

// NumWeights returns the number of trainable parameters:
// embedRows·H plus 4H·in + 4H·H + 4H + 4H per LSTM layer. With blank_as_pad
// and a single layer this is (V+1)·H + 2·4·(H²+H).
func (d *Decoder) NumWeights() int {
	n := len(d.embed)
	for i := range d.layers {
		n += d.layers[i].numWeights()
	}
	return n
}

// InputTypes describes the ports of Forward.
func (d *Decoder) InputTypes() map[string]NeuralType {
	return map[string]NeuralType{
		"targets":       {Axes: []string{"B", "T"}, Kind: "Labels"},
		"target_length": {Axes: []string{"B"}, Kind: "Length"},
		"states":        {Axes: []string{"D", "B", "D"}, Kind: "ElementType", Optional: true},
	}
}

// OutputTypes describes the results of Forward.
func (d *Decoder) OutputTypes() map[string]NeuralType {
	return map[string]NeuralType{
		"outputs":         {Axes: []string{"B", "D", "T"}, Kind: "Embedded"},
		"prednet_lengths": {Axes: []string{"B"}, Kind: "Length"},
		"states":          {Axes: []string{"D", "B", "D"}, Kind: "ElementType", Optional: true},
	}
}

// InitializeState returns a zero state bundle whose batch dimension is
// ref's first dimension and whose dtype and device match ref.
func (d *Decoder) InitializeState(ref *tensor.Tensor) *State {
	batch := 1
	if ref.Rank() > 0 {
		batch = ref.Dim(0)
	}
	return &State{
		H: tensor.ZerosLike(ref, len(d.layers), batch, d.hidden),
		C: tensor.ZerosLike(ref, len(d.layers), batch, d.hidden),
	}
}

// Predict runs the prediction network.
//
// tokens is a [B][U] batch of token ids, or nil to feed a single zero input
// step (the state before any symbol was produced). addSOS prepends a zero
// start-of-sequence step. state is the prior state or nil for a fresh zero
// state; batchSize (0 = absent) sizes that fresh state when tokens do not.
//
// The output is [B, steps, H]; the returned state is a new bundle and the
// input state is never modified.
func (d *Decoder) Predict(tokens [][]int, state *State, addSOS bool, batchSize int) (*tensor.Tensor, *State, error) {
	if state != nil {
		if err := state.check(len(d.layers), d.hidden); err != nil {
			return nil, nil, err
		}
	}
	batch, err := d.resolveBatch(tokens, state, batchSize)
	if err != nil {
		return nil, nil, err
	}

	steps := 1
	if tokens != nil {
		steps = len(tokens[0])
		for b, row := range tokens {
			if len(row) != steps {
				return nil, nil, fmt.Errorf("%w: token row %d has %d steps, row 0 has %d", ErrShapeMismatch, b, len(row), steps)
			}
		}
	}
	first := 0
	if addSOS {
		steps++
		first = 1
	}

	H := d.hidden
	inputs := make([]float64, steps*batch*H) // time-major
	for b, row := range tokens {
		for u, id := range row {
			r, zero, err := d.embedRow(id)
			if err != nil {
				return nil, nil, err
			}
			if zero {
				continue
			}
			off := ((u+first)*batch + b) * H
			copy(inputs[off:off+H], d.embed[r*H:(r+1)*H])
		}
	}

	dtype, device := d.dtype, tensor.CPU
	if state != nil {
		dtype, device = state.H.DType, state.H.Device
	}
	L := len(d.layers)
	next := &State{
		H: tensor.ZerosAs(dtype, device, L, batch, H),
		C: tensor.ZerosAs(dtype, device, L, batch, H),
	}
	if state != nil {
		copy(next.H.Data, state.H.Data)
		copy(next.C.Data, state.C.Data)
	}
	out := tensor.ZerosAs(dtype, device, batch, steps, H)

	gates := make([]float64, batch*numGates*H)
	hBuf := make([]float64, batch*H)
	cBuf := make([]float64, batch*H)
	for u := 0; u < steps; u++ {
		x := inputs[u*batch*H : (u+1)*batch*H]
		for l := range d.layers {
			hl, cl := layerBlock(next.H, l), layerBlock(next.C, l)
			d.layers[l].step(x, batch, hl, cl, hBuf, cBuf, gates)
			copy(hl, hBuf)
			copy(cl, cBuf)
			x = hl
		}
		for b := 0; b < batch; b++ {
			copy(out.Data[(b*steps+u)*H:(b*steps+u+1)*H], x[b*H:(b+1)*H])
		}
	}

	predictCalls.Inc()
	return out, next, nil
}

// Forward runs the prediction network over whole target sequences with a
// start step prepended and returns channel-major outputs [B, H, U+1].
func (d *Decoder) Forward(targets [][]int, targetLengths []int, state *State) (*tensor.Tensor, []int, *State, error) {
	if targets == nil {
		return nil, nil, nil, fmt.Errorf("%w: forward needs targets", ErrInvalidArgument)
	}
	if len(targetLengths) != len(targets) {
		return nil, nil, nil, fmt.Errorf("%w: %d target lengths for batch %d", ErrShapeMismatch, len(targetLengths), len(targets))
	}
	g, next, err := d.Predict(targets, state, true, 0)
	if err != nil {
		return nil, nil, nil, err
	}
	gT, err := g.Transpose12()
	if err != nil {
		return nil, nil, nil, err
	}
	return gT, targetLengths, next, nil
}

// resolveBatch determines the batch size from tokens, state and batchSize,
// all of which must agree when present.
func (d *Decoder) resolveBatch(tokens [][]int, state *State, batchSize int) (int, error) {
	if batchSize < 0 {
		return 0, fmt.Errorf("%w: negative batch size %d", ErrInvalidArgument, batchSize)
	}
	batch := 0
	agree := func(n int, what string) error {
		if batch == 0 {
			batch = n
			return nil
		}
		if n != batch {
			return fmt.Errorf("%w: %s batch %d, expected %d", ErrShapeMismatch, what, n, batch)
		}
		return nil
	}
	if tokens != nil {
		if len(tokens) == 0 {
			return 0, fmt.Errorf("%w: empty token batch", ErrInvalidArgument)
		}
		if err := agree(len(tokens), "token"); err != nil {
			return 0, err
		}
	}
	if state != nil {
		if err := agree(state.Batch(), "state"); err != nil {
			return 0, err
		}
	}
	if batchSize > 0 {
		if err := agree(batchSize, "requested"); err != nil {
			return 0, err
		}
	}
	if batch == 0 {
		return 0, fmt.Errorf("%w: predict needs tokens, a state or a batch size", ErrInvalidArgument)
	}
	return batch, nil
}

// embedRow maps a token id to its embedding row. The blank always embeds to
// the zero vector (zero=true).
func (d *Decoder) embedRow(id int) (row int, zero bool, err error) {
	switch {
	case id < 0 || id > d.vocabSize:
		return 0, false, fmt.Errorf("%w: token id %d outside [0, %d]", ErrInvalidArgument, id, d.vocabSize)
	case id == d.blank:
		return 0, true, nil
	case !d.blankAsPad && id > d.blank:
		return id - 1, false, nil
	default:
		return id, false, nil
	}
}
