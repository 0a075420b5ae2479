package rnnt

import "go.uber.org/zap"

// Option configures a Decoder or Joint.
type Option func(*moduleOptions)

type moduleOptions struct {
	logger *zap.Logger
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *moduleOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) moduleOptions {
	o := moduleOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
