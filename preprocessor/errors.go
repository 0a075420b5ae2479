package preprocessor

import "errors"

// ErrInvalidInput reports a signal or spectrogram batch whose shape or
// lengths cannot be processed.
var ErrInvalidInput = errors.New("invalid input")
