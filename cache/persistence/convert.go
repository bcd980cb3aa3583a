package persistence

import (
	"github.com/RuairidhWilliamson/rain-sub000/dep"
	"github.com/RuairidhWilliamson/rain-sub000/value"
)

// ToPersistentValue converts a value.Value reachable from a Download
// result into its persisted form. ok is false for any variant that
// cannot legally appear there (Function, Module, Internal, Local-area
// File, any Directory, List) — those are excluded by construction per spec 9,
// since only Download produces scalars/records/Generated files.
func ToPersistentValue(v value.Value) (PersistentValue, bool) {
	switch val := v.(type) {
	case value.Unit:
		return PersistentValue{Kind: PVUnit}, true
	case value.Boolean:
		return PersistentValue{Kind: PVBoolean, Boolean: bool(val)}, true
	case value.Integer:
		return PersistentValue{Kind: PVInteger, Integer: val.V.String()}, true
	case value.String:
		return PersistentValue{Kind: PVString, String: string(val)}, true
	case value.Record:
		keys := make([]string, len(val.Keys))
		copy(keys, val.Keys)
		values := make([]PersistentValue, len(val.Values))
		for i, fv := range val.Values {
			pv, ok := ToPersistentValue(fv)
			if !ok {
				return PersistentValue{}, false
			}
			values[i] = pv
		}
		return PersistentValue{Kind: PVRecord, RecordKeys: keys, RecordValues: values}, true
	case value.File:
		if val.Area.Kind != value.AreaGenerated {
			return PersistentValue{}, false
		}
		return PersistentValue{
			Kind:            PVGeneratedFile,
			GeneratedAreaID: val.Area.GeneratedID,
			GeneratedPath:   val.Path,
		}, true
	default:
		return PersistentValue{}, false
	}
}

// FromPersistentValue reconstructs a value.Value. allocAreaID mints a
// fresh process-local generated-area id for PVGeneratedFile entries,
// since a loaded area id must never alias one already in use this run
// (spec 4.5: "area id must be rewritten at load time"). ok is false for
// an unknown Kind, in which case the caller must silently drop the entry
// (spec 6.2).
func FromPersistentValue(pv PersistentValue, allocAreaID func() uint64) (value.Value, bool) {
	switch pv.Kind {
	case PVUnit:
		return value.Unit{}, true
	case PVBoolean:
		return value.Boolean(pv.Boolean), true
	case PVInteger:
		i, ok := value.ParseInteger(pv.Integer)
		if !ok {
			return nil, false
		}
		return i, true
	case PVString:
		return value.String(pv.String), true
	case PVRecord:
		if len(pv.RecordKeys) != len(pv.RecordValues) {
			return nil, false
		}
		values := make([]value.Value, len(pv.RecordValues))
		for i, rv := range pv.RecordValues {
			v, ok := FromPersistentValue(rv, allocAreaID)
			if !ok {
				return nil, false
			}
			values[i] = v
		}
		return value.NewRecord(pv.RecordKeys, values), true
	case PVGeneratedFile:
		area := value.FileArea{Kind: value.AreaGenerated, GeneratedID: allocAreaID()}
		return value.File{Area: area, Path: pv.GeneratedPath}, true
	default:
		return nil, false
	}
}

// ToPersistedDeps flattens a dep.Vector into a plain byte slice for
// encoding.
func ToPersistedDeps(v dep.Vector) []uint8 {
	out := make([]uint8, v.Len())
	for i, d := range v.Slice() {
		out[i] = uint8(d)
	}
	return out
}

// FromPersistedDeps rebuilds a dep.Vector from its persisted form.
func FromPersistedDeps(raw []uint8) dep.Vector {
	var v dep.Vector
	for _, b := range raw {
		v.Push(dep.Dep(b))
	}
	return v
}
