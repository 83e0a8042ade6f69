package extract

import "log/slog"

type options struct {
	validate bool
	logger   *slog.Logger
}

// Option configures a Source.
type Option func(*options)

// WithValidation enables structural validation of PDF files before
// extraction. It has no effect on text sources.
func WithValidation(enabled bool) Option {
	return func(o *options) {
		o.validate = enabled
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
