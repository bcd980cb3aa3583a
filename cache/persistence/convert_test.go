package persistence

import (
	"testing"

	"github.com/RuairidhWilliamson/rain-sub000/dep"
	"github.com/RuairidhWilliamson/rain-sub000/value"
)

func TestPersistentValueRoundTrip(t *testing.T) {
	cases := []value.Value{
		value.Unit{},
		value.Boolean(true),
		value.NewInteger(-42),
		value.String("payload"),
		value.NewRecord([]string{"a", "b"}, []value.Value{value.NewInteger(1), value.String("x")}),
		value.File{Area: value.FileArea{Kind: value.AreaGenerated, GeneratedID: 7}, Path: "out.bin"},
	}
	nextID := uint64(100)
	alloc := func() uint64 { nextID++; return nextID }

	for _, v := range cases {
		pv, ok := ToPersistentValue(v)
		if !ok {
			t.Fatalf("ToPersistentValue(%v) = false, want true", v)
		}
		got, ok := FromPersistentValue(pv, alloc)
		if !ok {
			t.Fatalf("FromPersistentValue for %v = false, want true", v)
		}
		if _, isFile := v.(value.File); isFile {
			// a reload always mints a fresh generated-area id (spec 4.5);
			// only the path is expected to survive unchanged.
			gotFile, ok := got.(value.File)
			if !ok {
				t.Fatalf("expected a reloaded File, got %T", got)
			}
			if gotFile.Path != v.(value.File).Path {
				t.Fatalf("reloaded path = %q, want %q", gotFile.Path, v.(value.File).Path)
			}
			continue
		}
		if !got.Equal(v) {
			t.Fatalf("round trip mismatch: got %v, want %v", got, v)
		}
	}
}

func TestPersistentValueRejectsNonPortableVariants(t *testing.T) {
	local := value.File{Area: value.FileArea{Kind: value.AreaLocal, Path: "/src"}, Path: "a.rain"}
	if _, ok := ToPersistentValue(local); ok {
		t.Fatal("a Local-area file must not be representable as a PersistentValue")
	}
	if _, ok := ToPersistentValue(value.List{Elems: []value.Value{value.NewInteger(1)}}); ok {
		t.Fatal("a List has no persisted representation and must be rejected")
	}
}

func TestFromPersistentValueRejectsUnknownKind(t *testing.T) {
	if _, ok := FromPersistentValue(PersistentValue{Kind: PersistentValueKind(99)}, func() uint64 { return 1 }); ok {
		t.Fatal("an unrecognised persisted value kind must be rejected, not silently accepted")
	}
}

func TestDepsRoundTrip(t *testing.T) {
	var v dep.Vector
	v.Push(dep.LocalArea)
	v.Push(dep.Escape)

	raw := ToPersistedDeps(v)
	if len(raw) != 2 {
		t.Fatalf("expected 2 persisted taints, got %d", len(raw))
	}
	back := FromPersistedDeps(raw)
	if !back.Has(dep.LocalArea) || !back.Has(dep.Escape) {
		t.Fatal("round-tripped vector lost a recorded taint")
	}
}
