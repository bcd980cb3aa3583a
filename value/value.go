// Package value implements the tagged sum of immutable values the evaluator
// operates over. Every variant supports structural equality and a hash
// consistent with that equality; the cache layer is the only place mutable
// state hides, and it never mutates a Value once constructed.
package value

import (
	"fmt"
	"hash/maphash"
	"math/big"
	"strings"
)

// Type is the closed enumeration of value variants, used for diagnostics and
// for reporting ExpectedType errors.
type Type uint8

const (
	TypeUnit Type = iota
	TypeBoolean
	TypeInteger
	TypeString
	TypeFunction
	TypeModule
	TypeFileArea
	TypeFile
	TypeDirectory
	TypeInternalFunction
	TypeList
	TypeRecord
	TypeError
)

func (t Type) String() string {
	switch t {
	case TypeUnit:
		return "Unit"
	case TypeBoolean:
		return "Boolean"
	case TypeInteger:
		return "Integer"
	case TypeString:
		return "String"
	case TypeFunction:
		return "Function"
	case TypeModule:
		return "Module"
	case TypeFileArea:
		return "FileArea"
	case TypeFile:
		return "File"
	case TypeDirectory:
		return "Directory"
	case TypeInternalFunction:
		return "InternalFunction"
	case TypeList:
		return "List"
	case TypeRecord:
		return "Record"
	case TypeError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Value is the interface implemented by every member of the value universe.
// Implementations are immutable after construction.
type Value interface {
	// Type returns the closed variant tag.
	Type() Type
	// Equal implements structural equality. It is reflexive, symmetric and
	// transitive across equal variants, and always false across distinct
	// concrete types.
	Equal(other Value) bool
	// Hash writes a content-derived digest into h, consistent with Equal:
	// a.Equal(b) implies identical bytes written for a and b.
	Hash(h *maphash.Hash)
	// Storeable reports whether this value may be safely admitted into the
	// cache (spec 3.1): it must not transitively reference a Local file or
	// directory area, whose contents may change out-of-band.
	Storeable() bool
	// String renders the value for diagnostics, matching the rendering the
	// language's internal `_print` function observes.
	String() string
}

// HashOf computes the maphash digest of a value using a fixed process-local
// seed. It is intended for in-memory cache buckets only; it is not stable
// across process restarts. No cross-restart hash exists: persisted Download
// entries are re-hashed when the cache re-admits them on load.
func HashOf(seed maphash.Seed, v Value) uint64 {
	var h maphash.Hash
	h.SetSeed(seed)
	v.Hash(&h)
	return h.Sum64()
}

func writeTagged(h *maphash.Hash, tag byte, parts ...[]byte) {
	h.WriteByte(tag)
	for _, p := range parts {
		h.Write(p)
	}
}

// Unit is the trivially-equal nullary value.
type Unit struct{}

func (Unit) Type() Type { return TypeUnit }
func (Unit) Equal(other Value) bool {
	_, ok := other.(Unit)
	return ok
}
func (Unit) Hash(h *maphash.Hash)  { h.WriteByte(byte(TypeUnit)) }
func (Unit) Storeable() bool       { return true }
func (Unit) String() string        { return "unit" }

// Boolean wraps a bit.
type Boolean bool

func (b Boolean) Type() Type { return TypeBoolean }
func (b Boolean) Equal(other Value) bool {
	o, ok := other.(Boolean)
	return ok && b == o
}
func (b Boolean) Hash(h *maphash.Hash) {
	h.WriteByte(byte(TypeBoolean))
	if b {
		h.WriteByte(1)
	} else {
		h.WriteByte(0)
	}
}
func (b Boolean) Storeable() bool { return true }
func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Integer is an arbitrary-precision signed integer (spec 9: "the spec
// mandates arbitrary precision").
type Integer struct {
	V *big.Int
}

// NewInteger wraps an int64 as an Integer value.
func NewInteger(n int64) Integer {
	return Integer{V: big.NewInt(n)}
}

// ParseInteger parses a base-10 literal, returning false on failure (the
// evaluator turns that into InvalidIntegerLiteral).
func ParseInteger(s string) (Integer, bool) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Integer{}, false
	}
	return Integer{V: n}, true
}

func (i Integer) Type() Type { return TypeInteger }
func (i Integer) Equal(other Value) bool {
	o, ok := other.(Integer)
	return ok && i.V.Cmp(o.V) == 0
}
func (i Integer) Hash(h *maphash.Hash) {
	writeTagged(h, byte(TypeInteger), i.V.Bytes())
	// sign is not captured by Bytes(), so fold it in explicitly.
	h.WriteByte(byte(i.V.Sign() + 1))
}
func (i Integer) Storeable() bool  { return true }
func (i Integer) String() string   { return i.V.String() }

// String is UTF-8 text compared byte-exact.
type String string

func (s String) Type() Type { return TypeString }
func (s String) Equal(other Value) bool {
	o, ok := other.(String)
	return ok && s == o
}
func (s String) Hash(h *maphash.Hash) {
	writeTagged(h, byte(TypeString), []byte(string(s)))
}
func (s String) Storeable() bool { return true }
func (s String) String() string  { return string(s) }

// List is an ordered sequence; equality/hash/storeability are element-wise.
type List struct {
	Elems []Value
}

func (l List) Type() Type { return TypeList }
func (l List) Equal(other Value) bool {
	o, ok := other.(List)
	if !ok || len(l.Elems) != len(o.Elems) {
		return false
	}
	for i := range l.Elems {
		if !l.Elems[i].Equal(o.Elems[i]) {
			return false
		}
	}
	return true
}
func (l List) Hash(h *maphash.Hash) {
	h.WriteByte(byte(TypeList))
	for _, e := range l.Elems {
		e.Hash(h)
	}
}
func (l List) Storeable() bool {
	for _, e := range l.Elems {
		if !e.Storeable() {
			return false
		}
	}
	return true
}
func (l List) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range l.Elems {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.String())
	}
	b.WriteByte(']')
	return b.String()
}

// Record is an ordered string-keyed mapping; key order is part of identity
// (spec 3.1: "key-and-value-wise in the insertion order").
type Record struct {
	Keys   []string
	Values []Value
}

// NewRecord builds a Record from keys/values already deduplicated with
// "last wins" (spec 4.3.2's documented choice for duplicate keys).
func NewRecord(keys []string, values []Value) Record {
	return Record{Keys: keys, Values: values}
}

// Get returns the value for key and whether it was present.
func (r Record) Get(key string) (Value, bool) {
	for i, k := range r.Keys {
		if k == key {
			return r.Values[i], true
		}
	}
	return nil, false
}

func (r Record) Type() Type { return TypeRecord }
func (r Record) Equal(other Value) bool {
	o, ok := other.(Record)
	if !ok || len(r.Keys) != len(o.Keys) {
		return false
	}
	for i := range r.Keys {
		if r.Keys[i] != o.Keys[i] || !r.Values[i].Equal(o.Values[i]) {
			return false
		}
	}
	return true
}
func (r Record) Hash(h *maphash.Hash) {
	h.WriteByte(byte(TypeRecord))
	for i, k := range r.Keys {
		h.WriteString(k)
		r.Values[i].Hash(h)
	}
}
func (r Record) Storeable() bool {
	for _, v := range r.Values {
		if !v.Storeable() {
			return false
		}
	}
	return true
}
func (r Record) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range r.Keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(r.Values[i].String())
	}
	b.WriteByte('}')
	return b.String()
}

// Error wraps a user-visible error value produced by Recoverable propagation.
type Error struct {
	Inner Value
}

func (e Error) Type() Type { return TypeError }
func (e Error) Equal(other Value) bool {
	o, ok := other.(Error)
	return ok && e.Inner.Equal(o.Inner)
}
func (e Error) Hash(h *maphash.Hash) {
	h.WriteByte(byte(TypeError))
	e.Inner.Hash(h)
}
func (e Error) Storeable() bool { return e.Inner.Storeable() }
func (e Error) String() string  { return fmt.Sprintf("error: %s", e.Inner) }
