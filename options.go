package framehook

import "go.uber.org/zap"

// Option configures Install.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger sets the logger used for hook lifecycle events. Patched code
// is disassembled at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
