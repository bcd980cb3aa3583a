package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/RuairidhWilliamson/rain-sub000/cache/persistence"
	"github.com/RuairidhWilliamson/rain-sub000/dep"
	"github.com/RuairidhWilliamson/rain-sub000/value"
)

// localFile is not Storeable: it stands in for anything the evaluator
// would refuse to admit.
func localFile() value.Value {
	return value.File{Area: value.FileArea{Kind: value.AreaLocal, Path: "/src"}, Path: "a.rain"}
}

func TestPutRejectsNonStoreableValue(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatal(err)
	}
	key := InternalKey(value.InternalPrint, nil)
	c.Put(key, Entry{Value: localFile()})
	if !c.IsEmpty() {
		t.Fatal("a non-storeable result must never be admitted")
	}
}

func TestPutRejectsUncacheableDeps(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatal(err)
	}
	var d dep.Vector
	d.Push(dep.Uncacheable)
	key := InternalKey(value.InternalPrint, nil)
	c.Put(key, Entry{Value: value.Unit{}, Deps: d})
	if !c.IsEmpty() {
		t.Fatal("a result tainted Uncacheable must never be admitted")
	}
}

func TestPutRejectsNonPureKey(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatal(err)
	}
	key := InternalKey(value.InternalPrint, []value.Value{localFile()})
	c.Put(key, Entry{Value: value.Unit{}})
	if !c.IsEmpty() {
		t.Fatal("a key built over non-storeable arguments must never be admitted")
	}
}

func TestGetHitMovesToFront(t *testing.T) {
	c, err := New(WithCapacity(2))
	if err != nil {
		t.Fatal(err)
	}
	k1 := InternalKey(value.InternalPrint, []value.Value{value.NewInteger(1)})
	k2 := InternalKey(value.InternalPrint, []value.Value{value.NewInteger(2)})
	k3 := InternalKey(value.InternalPrint, []value.Value{value.NewInteger(3)})

	c.Put(k1, Entry{Value: value.String("one")})
	c.Put(k2, Entry{Value: value.String("two")})

	// touch k1 so it is MRU; k2 becomes the eviction candidate.
	if _, ok, _ := c.Get(k1); !ok {
		t.Fatal("expected hit on k1")
	}
	c.Put(k3, Entry{Value: value.String("three")})

	if _, ok, _ := c.Get(k2); ok {
		t.Fatal("k2 should have been evicted as least-recently-used")
	}
	if _, ok, _ := c.Get(k1); !ok {
		t.Fatal("k1 should still be present: it was touched before the eviction")
	}
	if _, ok, _ := c.Get(k3); !ok {
		t.Fatal("k3 should be present: it was just inserted")
	}
}

func TestCapacityEvictsOldestOnInsertionOrder(t *testing.T) {
	c, err := New(WithCapacity(1))
	if err != nil {
		t.Fatal(err)
	}
	k1 := InternalKey(value.InternalPrint, []value.Value{value.NewInteger(1)})
	k2 := InternalKey(value.InternalPrint, []value.Value{value.NewInteger(2)})

	c.Put(k1, Entry{Value: value.String("one")})
	c.Put(k2, Entry{Value: value.String("two")})

	if c.Len() != 1 {
		t.Fatalf("expected capacity-bounded length 1, got %d", c.Len())
	}
	if _, ok, _ := c.Get(k1); ok {
		t.Fatal("k1 should have been evicted to respect capacity")
	}
	if _, ok, _ := c.Get(k2); !ok {
		t.Fatal("k2 should be the surviving, most-recently-inserted entry")
	}
}

func TestInvalidCapacityRejected(t *testing.T) {
	if _, err := New(WithCapacity(0)); err == nil {
		t.Fatal("expected an error constructing a cache with capacity 0")
	}
}

func TestPersistenceRoundTripOnlyPersistsDownloadKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.json")
	store := persistence.JSONFile{Path: path}

	c, err := New()
	if err != nil {
		t.Fatal(err)
	}
	c.Put(DownloadKey("https://example.com/a"), Entry{Value: value.String("payload-a")})
	c.Put(InternalKey(value.InternalPrint, []value.Value{value.NewInteger(1)}), Entry{Value: value.Unit{}})

	if err := c.SaveTo(store); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	reloaded, err := New()
	if err != nil {
		t.Fatal(err)
	}
	nextID := uint64(0)
	alloc := func() uint64 { nextID++; return nextID }
	if err := reloaded.LoadFrom(store, alloc); err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	entry, ok, _ := reloaded.Get(DownloadKey("https://example.com/a"))
	if !ok {
		t.Fatal("expected the persisted Download entry to reload")
	}
	if !entry.Value.Equal(value.String("payload-a")) {
		t.Fatalf("reloaded value = %v, want payload-a", entry.Value)
	}
	if reloaded.Len() != 1 {
		t.Fatalf("expected only the Download entry to survive reload, got %d entries", reloaded.Len())
	}
}

func TestPersistenceMissingFileIsNotAnError(t *testing.T) {
	store := persistence.JSONFile{Path: filepath.Join(t.TempDir(), "does-not-exist.json")}
	entries, err := store.Load()
	if err != nil {
		t.Fatalf("Load on a missing file must not error, got %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no entries from a missing file, got %d", len(entries))
	}
}

func TestPersistenceFormatVersionMismatchRejectsWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte(`{"format_version": 999, "inner": {"downloads": []}}`), 0o600); err != nil {
		t.Fatal(err)
	}
	store := persistence.JSONFile{Path: path}
	if _, err := store.Load(); err != persistence.ErrFormatVersionMismatch {
		t.Fatalf("expected ErrFormatVersionMismatch, got %v", err)
	}
}

func TestDedupRunsSequentialCallsSeparately(t *testing.T) {
	c, err := New()
	if err != nil {
		t.Fatal(err)
	}
	key := InternalKey(value.InternalPrint, []value.Value{value.NewInteger(1)})

	calls := 0
	fn := func() (string, error) {
		calls++
		return "result", nil
	}

	v1, _, err := Dedup(c, key, fn)
	if err != nil {
		t.Fatal(err)
	}
	v2, _, err := Dedup(c, key, fn)
	if err != nil {
		t.Fatal(err)
	}
	if v1 != "result" || v2 != "result" {
		t.Fatalf("unexpected dedup results: %q, %q", v1, v2)
	}
	if calls != 2 {
		t.Fatalf("sequential Dedup calls for the same key each run once when not concurrent, got %d calls", calls)
	}
}
