package rnnt

import "errors"

var (
	// ErrInvalidArgument reports a call whose arguments cannot be acted on,
	// e.g. a prediction with no token, no state and no batch size.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrShapeMismatch reports tensors whose shape, dtype or device disagree
	// with what the call expects.
	ErrShapeMismatch = errors.New("shape mismatch")
)
