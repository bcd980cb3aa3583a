package eval

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RuairidhWilliamson/rain-sub000/ast"
	"github.com/RuairidhWilliamson/rain-sub000/cache"
	"github.com/RuairidhWilliamson/rain-sub000/driver"
	"github.com/RuairidhWilliamson/rain-sub000/value"
)

// fetchModule builds: fn fetch(url) { internal._download(url) }
func fetchModule() *ast.Module {
	call := ast.NewCall(ast.Span{}, ast.NewInternalRef(ast.Span{}, "download"),
		[]ast.Expr{ast.NewIdent(ast.Span{}, "url")})
	body := ast.NewBlock(ast.ExprStatement(call))
	decl := &ast.FnDeclare{Name: "fetch", Params: []string{"url"}, Body: body}
	return &ast.Module{Declarations: []ast.Declaration{decl}}
}

// TestDownloadIsMemoizedByURL covers spec 8 scenario 5: a second call with
// the same URL is served entirely from cache, never reaching the driver a
// second time, and its execution_time matches the first call's recorded
// value.
func TestDownloadIsMemoizedByURL(t *testing.T) {
	store, c, fake, e := newHarness(t)
	url := "https://example.invalid/artifact.tar.gz"
	fake.Downloads[url] = driver.DownloadResult{
		OK:         true,
		StatusCode: 200,
		File:       &value.File{Area: value.FileArea{Kind: value.AreaGenerated, GeneratedID: 1}, Path: "artifact.tar.gz"},
	}

	modID := store.InsertModule(&ast.SourceRef{Path: "fetch.rain"}, "", fetchModule(), nil)
	declID, ok := store.ResolveGlobalDeclaration(modID, "fetch")
	if !ok {
		t.Fatal("fetch not declared")
	}

	first, err := e.EvaluateAndCall(declID, []value.Value{value.String(url)})
	if err != nil {
		t.Fatal(err)
	}
	rec, ok := first.(value.Record)
	if !ok {
		t.Fatalf("expected a record result, got %T", first)
	}
	ok1, found := rec.Get("ok")
	if !found || !ok1.Equal(value.Boolean(true)) {
		t.Fatalf("expected ok=true in the first result, got %v (found=%v)", ok1, found)
	}

	if calls := fake.DownloadCalls[url]; calls != 1 {
		t.Fatalf("expected exactly 1 host download call after the first fetch, got %d", calls)
	}

	entry, found, expired := c.Get(cache.DownloadKey(url))
	if !found {
		t.Fatal("expected the download result to be admitted to the cache")
	}
	if expired {
		t.Fatal("a freshly-fetched entry must not already be expired")
	}
	firstExecTime := entry.ExecutionTime

	second, err := e.EvaluateAndCall(declID, []value.Value{value.String(url)})
	if err != nil {
		t.Fatal(err)
	}
	if !second.Equal(first) {
		t.Fatalf("second fetch = %v, want the identical cached value %v", second, first)
	}
	if calls := fake.DownloadCalls[url]; calls != 1 {
		t.Fatalf("expected the host download call count to stay at 1 after a cache hit, got %d", calls)
	}

	entryAfter, found, _ := c.Get(cache.DownloadKey(url))
	if !found {
		t.Fatal("expected the download entry to still be present")
	}
	if entryAfter.ExecutionTime != firstExecTime {
		t.Fatalf("a cache hit must not change the recorded execution_time: got %v, want %v", entryAfter.ExecutionTime, firstExecTime)
	}
}

// TestDownloadRevalidatesExpiredEntryOnETagMatch covers spec 7's
// revalidation path: an entry past its Expires is not served as a hit, but
// its ETag and value are threaded into the next driver.Download call so a
// 304 response can reuse the stale value and push its expiry forward,
// mirroring runner/internal/download.rs's cache_entry reuse on revalidation.
func TestDownloadRevalidatesExpiredEntryOnETagMatch(t *testing.T) {
	store, c, fake, e := newHarness(t)
	url := "https://example.invalid/artifact.tar.gz"
	etag := "etag-v1"
	staleFile := value.File{Area: value.FileArea{Kind: value.AreaGenerated, GeneratedID: 1}, Path: "artifact.tar.gz"}
	staleValue := value.NewRecord(
		[]string{"ok", "status", "file"},
		[]value.Value{value.Boolean(true), value.NewInteger(200), staleFile},
	)

	// Seed the cache directly with an already-expired Download entry, as
	// if a prior fetch had happened and its TTL had since lapsed.
	past := time.Now().Add(-time.Minute)
	c.Put(cache.DownloadKey(url), cache.Entry{
		Value:   staleValue,
		ETag:    &etag,
		Expires: &past,
	})

	// Program the fake driver to answer the revalidation with a 304 (not
	// modified): no file/ok/status are returned, just the signal.
	fake.Downloads[url] = driver.DownloadResult{OK: false, StatusCode: 304}

	modID := store.InsertModule(&ast.SourceRef{Path: "fetch.rain"}, "", fetchModule(), nil)
	declID, ok := store.ResolveGlobalDeclaration(modID, "fetch")
	require.True(t, ok, "fetch not declared")

	got, err := e.EvaluateAndCall(declID, []value.Value{value.String(url)})
	require.NoError(t, err)
	assert.True(t, got.Equal(staleValue), "revalidated fetch = %v, want the reused stale value %v", got, staleValue)
	assert.Equalf(t, 1, fake.DownloadCalls[url], "expected exactly 1 driver round trip to revalidate")

	entry, found, expired := c.Get(cache.DownloadKey(url))
	require.True(t, found, "expected the revalidated entry to still be present")
	assert.False(t, expired, "revalidation must push the expiry forward, not leave it in the past")
	if assert.NotNil(t, entry.ETag, "revalidation must preserve the prior ETag") {
		assert.Equal(t, etag, *entry.ETag)
	}
	require.NotNil(t, entry.Expires)
	assert.True(t, entry.Expires.After(past), "expected the new expiry %v to be later than the stale one %v", entry.Expires, past)
}

// TestConcurrentDownloadsOnSameURLAreDeduped exercises cache.Dedup through
// eval.call's choke point (spec 5): two concurrent misses on the identical
// Download fingerprint must share one driver round trip, not each run it.
// One goroutine is held inside the fake driver's Download by
// DownloadRelease; a second is started only once DownloadStarted confirms
// the first is already in flight and has therefore registered its
// singleflight key, so the second is guaranteed to join rather than race it.
func TestConcurrentDownloadsOnSameURLAreDeduped(t *testing.T) {
	store, c, fake, e := newHarness(t)
	url := "https://example.invalid/shared.tar.gz"
	fake.Downloads[url] = driver.DownloadResult{OK: true, StatusCode: 200}
	fake.DownloadStarted = make(chan struct{})
	fake.DownloadRelease = make(chan struct{})

	modID := store.InsertModule(&ast.SourceRef{Path: "fetch.rain"}, "", fetchModule(), nil)
	declID, ok := store.ResolveGlobalDeclaration(modID, "fetch")
	require.True(t, ok, "fetch not declared")

	results := make([]value.Value, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = e.EvaluateAndCall(declID, []value.Value{value.String(url)})
	}()

	<-fake.DownloadStarted // the first call now holds the singleflight key

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = e.EvaluateAndCall(declID, []value.Value{value.String(url)})
	}()
	// Give the second goroutine a chance to reach cache.Dedup's group.Do
	// and join the in-flight call before it is released.
	time.Sleep(20 * time.Millisecond)
	close(fake.DownloadRelease)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.True(t, results[0].Equal(results[1]), "deduped calls returned different values: %v vs %v", results[0], results[1])
	assert.Equal(t, 1, fake.DownloadCalls[url], "expected exactly 1 driver round trip across both concurrent callers")
	assert.Equal(t, 2, c.Len(), "expected exactly two cache entries: the Download{url} entry and the fetch(url) declaration entry")
}
