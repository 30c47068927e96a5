package sparsedex

import (
	"log/slog"

	"github.com/hupe1980/sparsedex/resource"
	"github.com/hupe1980/sparsedex/weight"
)

type options struct {
	elementType      weight.Type
	mergeThreshold   int
	resourceConfig   resource.Config
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures Open/Create behavior.
//
// Breaking changes are expected while sparsedex is pre-release.
type Option func(*options)

// WithElementType pins the on-disk weight encoding for a newly created
// index. Ignored by Open against an existing index, whose element type is
// read from its segments. Defaults to f32.
func WithElementType(t weight.Type) Option {
	return func(o *options) {
		o.elementType = t
	}
}

// WithMergeThreshold sets the number of same-tier segments that triggers a
// background merge (spec §5: tiered merge policy). Defaults to 4.
func WithMergeThreshold(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.mergeThreshold = n
		}
	}
}

// WithResourceLimits bounds the memory, background-worker concurrency, and
// IO throughput available to the builder and merger (see package
// resource). Defaults to a single background worker and no hard limits.
func WithResourceLimits(cfg resource.Config) Option {
	return func(o *options) {
		o.resourceConfig = cfg
	}
}

// WithMetricsCollector configures a metrics collector for monitoring
// operations. Pass nil to disable metrics collection.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations. Pass nil to
// disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		elementType:    weight.TypeF32,
		mergeThreshold: 4,
		resourceConfig: resource.Config{MaxBackgroundWorkers: 1},
		metricsCollector: NoopMetricsCollector{},
		logger:         NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.metricsCollector == nil {
		o.metricsCollector = NoopMetricsCollector{}
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	return o
}
