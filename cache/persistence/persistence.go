// Package persistence implements the cache's disk format (spec 4.5, 6.2):
// only Download-keyed entries round-trip, because Declaration/Internal
// keys depend on run-local ModuleId/LocalDeclarationId assignments and are
// inherently non-portable across runs.
package persistence

import (
	"errors"
	"time"
)

// ErrFormatVersionMismatch is returned by Load when the file's
// format_version does not match FormatVersion; the cache must remain
// empty (spec 8 "Format version gate").
var ErrFormatVersionMismatch = errors.New("persistence: format_version mismatch")

// FormatVersion is the only version this package writes and accepts.
const FormatVersion = 0

// PersistedEntry is one (Download url, entry) pair (spec 4.5: "only
// Download keys are persisted").
type PersistedEntry struct {
	URL           string
	ExecutionTime time.Duration
	Expires       *time.Time
	ETag          *string
	Deps          []uint8
	Value         PersistentValue
}

// PersistentValueKind discriminates the closed set of payloads a Download
// result can produce (spec 9: "only values reachable through Download
// results need round-trip").
type PersistentValueKind uint8

const (
	PVUnit PersistentValueKind = iota
	PVBoolean
	PVInteger
	PVString
	PVRecord
	PVGeneratedFile
)

// PersistentValue is the tagged union written to disk in place of a full
// value.Value: only the scalar shapes reachable from a Download result,
// plus a Generated file reference whose area id is reassigned at load
// time by the daemon (spec 4.5).
type PersistentValue struct {
	Kind PersistentValueKind

	Boolean bool
	// Integer is string-encoded: JSON numbers are not arbitrary precision
	// and the value universe's Integer wraps math/big.Int.
	Integer string
	String  string

	RecordKeys   []string
	RecordValues []PersistentValue

	// GeneratedAreaID is rewritten by the loader to a fresh process-local
	// id (spec 4.5); the id stored here is whatever it was at save time
	// and is never trusted directly.
	GeneratedAreaID uint64
	GeneratedPath   string
}

// Store can save and load a set of persisted entries.
type Store interface {
	Save(entries []PersistedEntry) error
	Load() ([]PersistedEntry, error)
}
