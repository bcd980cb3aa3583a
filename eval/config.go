package eval

// config.go mirrors the cache package's functional-option style (itself
// following the teacher's pkg/config.go), scaled down to the knobs an
// Evaluator needs: a logger, sealed/unsealed mode, and the recursion
// depth guard (spec 4.3.3 step 7).

import (
	"go.uber.org/zap"
)

// DefaultMaxCallDepth bounds recursion absent an explicit override.
const DefaultMaxCallDepth = 4096

// Option configures an Evaluator at construction time.
type Option func(*config)

type config struct {
	logger       *zap.Logger
	sealed       bool
	maxCallDepth int
	parser       Parser
}

func defaultConfig() *config {
	return &config{
		logger:       zap.NewNop(),
		sealed:       true,
		maxCallDepth: DefaultMaxCallDepth,
	}
}

// WithLogger plugs an external zap.Logger; evaluation itself stays off
// the hot path, matching the cache package's logging discipline.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSealedMode controls whether `internal._escape_run` is permitted.
// Sealed (the default) rejects it with an Unrecoverable EscapeDenied
// error; unsealed allows it and taints the calling frame with Escape and
// Uncacheable (spec 4.3.4, scenario 6).
func WithSealedMode(sealed bool) Option {
	return func(c *config) {
		c.sealed = sealed
	}
}

// WithParser plugs the module loader internal._import needs. The real
// lexer/parser stays out of scope for this module; leaving this unset
// makes internal._import fail with an Unrecoverable ImportResolve error
// instead of a crash.
func WithParser(p Parser) Option {
	return func(c *config) {
		c.parser = p
	}
}

// WithMaxCallDepth overrides the recursion guard (spec 4.3.3 step 7).
func WithMaxCallDepth(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxCallDepth = n
		}
	}
}

func applyOptions(opts []Option) *config {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}
	return c
}
