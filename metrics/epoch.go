package metrics

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// ErrNoOutputs is returned when an epoch has no step outputs to aggregate.
var ErrNoOutputs = errors.New("no step outputs")

// StepOutput is what one validation or test step reports.
type StepOutput struct {
	Loss     float64
	WERNum   int
	WERDenom int
}

// EpochResult is the aggregate of an epoch.
type EpochResult struct {
	Loss float64
	WER  float64
	Log  map[string]float64
}

// AggregateEpoch averages the step losses and pools the WER counts of an
// epoch. prefix names the logged keys ("val" gives val_loss and val_wer).
func AggregateEpoch(prefix string, outputs []StepOutput) (EpochResult, error) {
	if len(outputs) == 0 {
		return EpochResult{}, fmt.Errorf("%s epoch: %w", prefix, ErrNoOutputs)
	}
	losses := make([]float64, len(outputs))
	num, denom := 0, 0
	for i, o := range outputs {
		losses[i] = o.Loss
		num += o.WERNum
		denom += o.WERDenom
	}
	if denom == 0 {
		return EpochResult{}, fmt.Errorf("%s epoch: no reference words", prefix)
	}
	res := EpochResult{
		Loss: stat.Mean(losses, nil),
		WER:  float64(num) / float64(denom),
	}
	res.Log = map[string]float64{
		prefix + "_loss": res.Loss,
		prefix + "_wer":  res.WER,
	}
	return res, nil
}
