package search

import "go.uber.org/zap"

// Option configures a decode call.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for per-utterance debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
