package cache

// key.go implements the call fingerprint (spec 3.4, 4.3.3 step 1). A Key
// is one of Declaration{id,args}, InternalFunction{id,args} or
// Download{url}; Go has no closed-sum syntax, so the three shapes live in
// one struct with a discriminant, matching the closed-variant style used
// throughout the value package.

import (
	"hash/maphash"

	"github.com/RuairidhWilliamson/rain-sub000/ir"
	"github.com/RuairidhWilliamson/rain-sub000/value"
)

type keyKind uint8

const (
	keyDeclaration keyKind = iota
	keyInternal
	keyDownload
)

// Key is the cache fingerprint: callable identity plus argument values, or
// a download URL.
type Key struct {
	kind keyKind

	declID   ir.DeclarationID
	capture  *value.ClosureEnv
	internal value.InternalFunctionID
	url      string

	Args []value.Value
}

// DeclarationKey builds the fingerprint for a call to a top-level or
// closure function. capture is nil for a plain top-level reference.
func DeclarationKey(id ir.DeclarationID, capture *value.ClosureEnv, args []value.Value) Key {
	return Key{kind: keyDeclaration, declID: id, capture: capture, Args: args}
}

// InternalKey builds the fingerprint for a call to a built-in.
func InternalKey(id value.InternalFunctionID, args []value.Value) Key {
	return Key{kind: keyInternal, internal: id, Args: args}
}

// DownloadKey builds the fingerprint for `_download(url)`: identity is the
// URL alone (spec 4.3.3 step 2).
func DownloadKey(url string) Key {
	return Key{kind: keyDownload, url: url}
}

// IsDownload reports whether this is a Download key.
func (k Key) IsDownload() bool { return k.kind == keyDownload }

// URL returns the download URL; only meaningful when IsDownload is true.
func (k Key) URL() string { return k.url }

// Pure reports whether this call is eligible for caching at all (spec
// 4.3.3 step 2): Download keys always are; otherwise every argument must
// be storeable.
func (k Key) Pure() bool {
	if k.kind == keyDownload {
		return true
	}
	for _, a := range k.Args {
		if !a.Storeable() {
			return false
		}
	}
	return true
}

// Equal implements the structural equality spec 3.4 requires of cache
// lookups: two keys built from equivalent but distinct value instances
// must collide.
func (k Key) Equal(o Key) bool {
	if k.kind != o.kind {
		return false
	}
	switch k.kind {
	case keyDownload:
		if k.url != o.url {
			return false
		}
	case keyInternal:
		if k.internal != o.internal {
			return false
		}
	case keyDeclaration:
		if k.declID != o.declID {
			return false
		}
		if !k.capture.Equal(o.capture) {
			return false
		}
	}
	if len(k.Args) != len(o.Args) {
		return false
	}
	for i := range k.Args {
		if !k.Args[i].Equal(o.Args[i]) {
			return false
		}
	}
	return true
}

var seed = maphash.MakeSeed()

// Hash computes a bucket hash; the same seed is reused process-wide so
// that equal keys always hash equal within a run (spec 4.1's "run-local
// hasher is acceptable" for non-Download keys).
func (k Key) Hash() uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	h.WriteByte(byte(k.kind))
	switch k.kind {
	case keyDownload:
		h.WriteString(k.url)
	case keyInternal:
		h.WriteByte(byte(k.internal))
	case keyDeclaration:
		h.WriteString(k.declID.String())
		k.capture.WriteHash(&h)
	}
	for _, a := range k.Args {
		a.Hash(&h)
	}
	return h.Sum64()
}

func (k Key) String() string {
	switch k.kind {
	case keyDownload:
		return "download(" + k.url + ")"
	case keyInternal:
		return k.internal.String() + "(...)"
	default:
		return k.declID.String() + "(...)"
	}
}
