package rnnt

import (
	"encoding/gob"
	"fmt"
	"io"

	"go.uber.org/zap"
)

const checkpointVersion = 1

type serializedLinear struct {
	W   []float64
	B   []float64
	In  int
	Out int
}

type serializedLSTM struct {
	WIH, WHH []float64
	BIH, BHH []float64
	In       int
	Hidden   int
}

type serializedDecoder struct {
	Version int // = 1
	Config  DecoderConfig
	Embed   []float64
	Layers  []serializedLSTM
}

type serializedJoint struct {
	Version int // = 1
	Config  JointConfig
	Enc     serializedLinear
	Pred    serializedLinear
	Out     serializedLinear
}

// Save serializes the decoder weights and config using gob encoding.
func (d *Decoder) Save(w io.Writer) error {
	sd := serializedDecoder{
		Version: checkpointVersion,
		Config:  d.cfg,
		Embed:   d.embed,
		Layers:  make([]serializedLSTM, len(d.layers)),
	}
	for i, l := range d.layers {
		sd.Layers[i] = serializedLSTM{WIH: l.WIH, WHH: l.WHH, BIH: l.BIH, BHH: l.BHH, In: l.In, Hidden: l.Hidden}
	}
	return gob.NewEncoder(w).Encode(sd)
}

// LoadDecoder deserializes a decoder written by Decoder.Save.
func LoadDecoder(r io.Reader, opts ...Option) (*Decoder, error) {
	var sd serializedDecoder
	if err := gob.NewDecoder(r).Decode(&sd); err != nil {
		return nil, fmt.Errorf("decode decoder checkpoint: %w", err)
	}
	if sd.Version != checkpointVersion {
		return nil, fmt.Errorf("%w: decoder checkpoint version %d", ErrInvalidArgument, sd.Version)
	}
	if err := sd.Config.Validate(); err != nil {
		return nil, err
	}
	d := newDecoderShell(sd.Config, buildOptions(opts))
	if len(sd.Embed) != d.embedRows*d.hidden {
		return nil, fmt.Errorf("%w: embedding has %d weights, want %d", ErrShapeMismatch, len(sd.Embed), d.embedRows*d.hidden)
	}
	if len(sd.Layers) != sd.Config.PredNet.PredRNNLayers {
		return nil, fmt.Errorf("%w: %d LSTM layers, config says %d", ErrShapeMismatch, len(sd.Layers), sd.Config.PredNet.PredRNNLayers)
	}
	d.embed = sd.Embed
	d.layers = make([]LSTMLayer, len(sd.Layers))
	G := numGates * d.hidden
	for i, sl := range sd.Layers {
		if sl.In != d.hidden || sl.Hidden != d.hidden ||
			len(sl.WIH) != G*sl.In || len(sl.WHH) != G*sl.Hidden || len(sl.BIH) != G || len(sl.BHH) != G {
			return nil, fmt.Errorf("%w: LSTM layer %d does not match hidden size %d", ErrShapeMismatch, i, d.hidden)
		}
		d.layers[i] = LSTMLayer{WIH: sl.WIH, WHH: sl.WHH, BIH: sl.BIH, BHH: sl.BHH, In: sl.In, Hidden: sl.Hidden}
	}
	d.logger.Debug("Prediction network loaded", zap.Int("num_weights", d.NumWeights()))
	return d, nil
}

// Save serializes the joint weights and config using gob encoding.
func (j *Joint) Save(w io.Writer) error {
	sj := serializedJoint{
		Version: checkpointVersion,
		Config:  j.cfg,
		Enc:     toSerializedLinear(j.enc),
		Pred:    toSerializedLinear(j.pred),
		Out:     toSerializedLinear(j.out),
	}
	return gob.NewEncoder(w).Encode(sj)
}

// LoadJoint deserializes a joint network written by Joint.Save.
func LoadJoint(r io.Reader, opts ...Option) (*Joint, error) {
	var sj serializedJoint
	if err := gob.NewDecoder(r).Decode(&sj); err != nil {
		return nil, fmt.Errorf("decode joint checkpoint: %w", err)
	}
	if sj.Version != checkpointVersion {
		return nil, fmt.Errorf("%w: joint checkpoint version %d", ErrInvalidArgument, sj.Version)
	}
	if err := sj.Config.Validate(); err != nil {
		return nil, err
	}
	j := newJointShell(sj.Config, buildOptions(opts))
	jn := sj.Config.JointNet
	var err error
	if j.enc, err = fromSerializedLinear(sj.Enc, jn.EncoderHidden, jn.JointHidden, "encoder projection"); err != nil {
		return nil, err
	}
	if j.pred, err = fromSerializedLinear(sj.Pred, jn.PredHidden, jn.JointHidden, "prediction projection"); err != nil {
		return nil, err
	}
	if j.out, err = fromSerializedLinear(sj.Out, jn.JointHidden, j.NumClassesWithBlank(), "output layer"); err != nil {
		return nil, err
	}
	j.logger.Debug("Joint network loaded", zap.Int("num_weights", j.NumWeights()))
	return j, nil
}

func toSerializedLinear(l Linear) serializedLinear {
	return serializedLinear{W: l.W, B: l.B, In: l.In, Out: l.Out}
}

func fromSerializedLinear(s serializedLinear, in, out int, what string) (Linear, error) {
	if s.In != in || s.Out != out || len(s.W) != in*out || len(s.B) != out {
		return Linear{}, fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrShapeMismatch, what, s.Out, s.In, out, in)
	}
	return Linear{W: s.W, B: s.B, In: s.In, Out: s.Out}, nil
}
