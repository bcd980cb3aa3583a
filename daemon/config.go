// Package daemon wires the evaluator core, the result cache, and a
// persistence store into one long-lived process, without implementing any
// IPC transport (spec 1 leaves the daemon/IPC layer out of scope). Where
// original_source/core/src/config.rs's Config holds a base cache directory,
// a base generated-file directory, and a persistence path, daemon.Config
// holds none of these: persistence is an injected persistence.Store, and
// file areas belong to the injected Driver.
package daemon

import (
	"go.uber.org/zap"

	"github.com/RuairidhWilliamson/rain-sub000/cache"
	"github.com/RuairidhWilliamson/rain-sub000/cache/persistence"
	"github.com/RuairidhWilliamson/rain-sub000/driver"
	"github.com/RuairidhWilliamson/rain-sub000/eval"
)

// Config collects the knobs a Runner needs at construction. It deliberately
// holds no transport settings (host/port, socket path, ...): wiring those up
// is the embedding daemon's job, not this package's.
type Config struct {
	// CacheCapacity bounds the number of entries the LRU result cache
	// holds (spec 4.4.3).
	CacheCapacity int

	// Store persists Download-keyed entries across restarts (spec 4.5).
	// Nil means the cache starts empty and Flush writes only to
	// MirrorStores (a no-op if there are none). It is also the only store
	// LoadFrom reads at startup; MirrorStores are write-only backups.
	Store persistence.Store

	// MirrorStores, if non-empty, each receive the same SaveTo call Store
	// does on every Flush, run concurrently alongside it (e.g. a
	// Badger-backed store mirrored next to the spec-normative JSON file).
	// Nothing reads them back; they exist purely for redundancy.
	MirrorStores []persistence.Store

	// Driver is the host collaborator the evaluator calls into for every
	// side-effecting internal function.
	Driver driver.Driver

	// Parser lets internal._import resolve imported source; nil makes
	// _import fail with an Unrecoverable ImportResolve error instead of
	// panicking (spec 1 keeps the real lexer/parser out of scope).
	Parser eval.Parser

	Logger *zap.Logger

	// Sealed gates internal._escape_run (spec 4.3.4, scenario 6). The zero
	// value is false (unsealed); callers that want the evaluator's own
	// sealed-by-default posture must set this explicitly.
	Sealed       bool
	MaxCallDepth int
}

func (c Config) cacheOptions() []cache.Option {
	opts := []cache.Option{}
	if c.CacheCapacity > 0 {
		opts = append(opts, cache.WithCapacity(c.CacheCapacity))
	}
	if c.Logger != nil {
		opts = append(opts, cache.WithLogger(c.Logger))
	}
	return opts
}
