package cache

// persist.go bridges the in-memory cache and the persistence package
// (spec 4.5): only Download-keyed, storeable entries are ever written,
// and loaded entries are admitted through the normal Put path so the
// capacity invariant still holds after a reload.

import (
	"github.com/RuairidhWilliamson/rain-sub000/cache/persistence"
	"github.com/RuairidhWilliamson/rain-sub000/dep"
)

// SaveTo serialises every Download-keyed entry currently held through
// store. Non-Download entries, entries tainted LocalArea or Escape, and
// entries whose value cannot be represented by the persisted value
// grammar are skipped (spec 3.3: those taints disqualify persistence even
// though they don't block in-memory admission). No internal function
// that produces a Download-keyed result pushes either taint today, so
// this is a defensive filter, not a reachable one.
func (c *Cache) SaveTo(store persistence.Store) error {
	c.mu.Lock()
	entries := make([]persistence.PersistedEntry, 0, c.ll.Len())
	for el := c.ll.Front(); el != nil; el = el.Next() {
		rec := el.Value.(*record)
		if !rec.key.IsDownload() {
			continue
		}
		if rec.entry.Deps.Has(dep.LocalArea) || rec.entry.Deps.Has(dep.Escape) {
			continue
		}
		pv, ok := persistence.ToPersistentValue(rec.entry.Value)
		if !ok {
			continue
		}
		entries = append(entries, persistence.PersistedEntry{
			URL:           rec.key.URL(),
			ExecutionTime: rec.entry.ExecutionTime,
			Expires:       rec.entry.Expires,
			ETag:          rec.entry.ETag,
			Deps:          persistence.ToPersistedDeps(rec.entry.Deps),
			Value:         pv,
		})
	}
	c.mu.Unlock()
	return store.Save(entries)
}

// LoadFrom reloads Download entries from store, admitting each through
// Put. allocAreaID mints fresh process-local ids for any Generated file
// references among the loaded values (spec 4.5). Entries whose persisted
// value variant is unrecognised are silently dropped (spec 6.2).
func (c *Cache) LoadFrom(store persistence.Store, allocAreaID func() uint64) error {
	entries, err := store.Load()
	if err != nil {
		return err
	}
	for _, pe := range entries {
		v, ok := persistence.FromPersistentValue(pe.Value, allocAreaID)
		if !ok {
			c.logger.Debug("cache: dropping persisted entry with unknown value variant")
			continue
		}
		c.Put(DownloadKey(pe.URL), Entry{
			Value:         v,
			ExecutionTime: pe.ExecutionTime,
			Expires:       pe.Expires,
			ETag:          pe.ETag,
			Deps:          persistence.FromPersistedDeps(pe.Deps),
		})
	}
	return nil
}
