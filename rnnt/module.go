package rnnt

import "github.com/ieee0824/transducer-go/tensor"

// NeuralType describes one port of a module: its axis layout and the kind of
// values it carries.
type NeuralType struct {
	Axes     []string
	Kind     string
	Optional bool
}

// Module is implemented by every network in this package.
type Module interface {
	InputTypes() map[string]NeuralType
	OutputTypes() map[string]NeuralType
}

// Predictor is the prediction-network capability set used by search drivers.
type Predictor interface {
	Module
	Predict(tokens [][]int, state *State, addSOS bool, batchSize int) (*tensor.Tensor, *State, error)
	InitializeState(ref *tensor.Tensor) *State
	ScoreHypothesis(h *Hypothesis, cache *Cache) (*Scored, error)
	BlankIndex() int
	NumWeights() int
}

// Joiner is the joint-network capability set used by search drivers.
type Joiner interface {
	Module
	Joint(enc, dec *tensor.Tensor) (*tensor.Tensor, error)
	ProjectEncoder(enc *tensor.Tensor) (*tensor.Tensor, error)
	ProjectPrednet(dec *tensor.Tensor) (*tensor.Tensor, error)
	JointAfterProjection(f, g *tensor.Tensor) (*tensor.Tensor, error)
	NumClassesWithBlank() int
}

var (
	_ Predictor = (*Decoder)(nil)
	_ Joiner    = (*Joint)(nil)
)
