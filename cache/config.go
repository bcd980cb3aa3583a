package cache

// config.go defines the cache's functional options, following the same
// pattern as the teacher's pkg/config.go: a private config struct mutated
// only through exported Option values, validated once in New.

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option configures a Cache at construction time.
type Option func(*config)

type config struct {
	capacity int
	logger   *zap.Logger
	registry *prometheus.Registry
}

func defaultConfig() *config {
	return &config{
		capacity: 1024,
		logger:   zap.NewNop(),
	}
}

// WithCapacity sets the maximum number of entries the cache holds before
// evicting the least-recently-used one.
func WithCapacity(n int) Option {
	return func(c *config) {
		c.capacity = n
	}
}

// WithLogger plugs an external zap.Logger. Get never logs; Put logs only
// admission refusals, and LoadFrom only dropped persisted entries, both at
// debug level. Evictions are counted in metrics but not logged.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection. Passing nil disables
// metrics (the default); a nil registry keeps the hot path on the no-op
// sink so metric bookkeeping costs nothing when unused.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) {
		c.registry = reg
	}
}

func applyOptions(opts []Option) (*config, error) {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}
	if c.capacity <= 0 {
		return nil, errInvalidCapacity
	}
	return c, nil
}

var errInvalidCapacity = errors.New("cache: capacity must be > 0")
