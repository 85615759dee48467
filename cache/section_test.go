package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestSections(t *testing.T, maxSize int, opts ...SectionOption) (*SectionStore, *UnifiedCache) {
	t.Helper()
	c := newTestCache(t, maxSize, NoExpiryPolicy())
	s, err := NewSectionStore(c, opts...)
	if err != nil {
		t.Fatalf("NewSectionStore() error = %v", err)
	}
	return s, c
}

// countingLoader returns a Loader that yields "data:{path}" and counts calls.
func countingLoader(calls *atomic.Int64) Loader {
	return func(_ context.Context, path string) (any, error) {
		calls.Add(1)
		return "data:" + path, nil
	}
}

func noopWriter(context.Context, string, any) error { return nil }

func TestNewSectionStore_NilCache(t *testing.T) {
	if _, err := NewSectionStore(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NewSectionStore(nil) error = %v, want ErrInvalidArgument", err)
	}
}

func TestSectionStore_LazyLoadsOnce(t *testing.T) {
	s, c := newTestSections(t, 10)
	ctx := context.Background()
	var calls atomic.Int64

	for i := 0; i < 3; i++ {
		got, err := s.Get(ctx, "database", countingLoader(&calls), GetOptions{})
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got != "data:database" {
			t.Errorf("Get() = %v, want data:database", got)
		}
	}

	if calls.Load() != 1 {
		t.Errorf("loader calls = %d, want 1", calls.Load())
	}
	st := c.Stats()
	if st.Hits != 2 || st.Misses != 1 {
		t.Errorf("hits=%d misses=%d, want 2/1", st.Hits, st.Misses)
	}
}

func TestSectionStore_EagerAlwaysLoads(t *testing.T) {
	s, c := newTestSections(t, 10)
	ctx := context.Background()
	var calls atomic.Int64

	for i := 0; i < 3; i++ {
		if _, err := s.Get(ctx, "database", countingLoader(&calls), GetOptions{Eager: true}); err != nil {
			t.Fatalf("Get() error = %v", err)
		}
	}

	if calls.Load() != 3 {
		t.Errorf("loader calls = %d, want 3", calls.Load())
	}
	st := c.Stats()
	if st.Hits != 0 || st.Misses != 0 {
		t.Errorf("hits=%d misses=%d, want 0/0", st.Hits, st.Misses)
	}
	if !c.Contains(SectionKey("database")) {
		t.Error("eager load should populate the cache")
	}
	if s.State("database") != Requested {
		t.Errorf("State() = %v, want requested", s.State("database"))
	}
}

func TestSectionStore_NotFoundCachesDefault(t *testing.T) {
	s, c := newTestSections(t, 10)
	ctx := context.Background()
	var calls atomic.Int64
	loader := func(context.Context, string) (any, error) {
		calls.Add(1)
		return nil, fmt.Errorf("section missing: %w", ErrNotFound)
	}

	def := map[string]any{"enabled": false}
	for i := 0; i < 2; i++ {
		got, err := s.Get(ctx, "feature", loader, GetOptions{Default: def})
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if fmt.Sprint(got) != fmt.Sprint(def) {
			t.Errorf("Get() = %v, want %v", got, def)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("loader calls = %d, want 1", calls.Load())
	}
	if !c.Contains(SectionKey("feature")) {
		t.Error("default should be cached")
	}
}

func TestSectionStore_NotFoundTTL(t *testing.T) {
	c := newTestCache(t, 10, Policy{NotFoundTTL: 10 * time.Millisecond})
	s, err := NewSectionStore(c)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	missing := func(context.Context, string) (any, error) { return nil, ErrNotFound }

	if _, err := s.Get(ctx, "gone", missing, GetOptions{}); err != nil {
		t.Fatal(err)
	}
	_, _ = s.Get(ctx, "present", func(context.Context, string) (any, error) { return 1, nil }, GetOptions{})
	time.Sleep(20 * time.Millisecond)

	if c.Contains(SectionKey("gone")) {
		t.Error("not-found default outlived NotFoundTTL")
	}
	if !c.Contains(SectionKey("present")) {
		t.Error("found section should not expire")
	}
}

func TestSectionStore_LoaderErrorPropagates(t *testing.T) {
	s, c := newTestSections(t, 10)
	ctx := context.Background()
	boom := errors.New("disk on fire")

	_, err := s.Get(ctx, "database", func(context.Context, string) (any, error) {
		return nil, boom
	}, GetOptions{})
	if !errors.Is(err, boom) {
		t.Fatalf("Get() error = %v, want %v", err, boom)
	}

	if c.Contains(SectionKey("database")) {
		t.Error("failed load should not be cached")
	}
	st := c.Stats()
	if st.Hits != 0 || st.Misses != 0 {
		t.Errorf("hits=%d misses=%d, want 0/0", st.Hits, st.Misses)
	}
	if s.State("database") != Requested {
		t.Error("path should be recorded as requested even when the load fails")
	}
}

func TestSectionStore_InvalidArguments(t *testing.T) {
	s, _ := newTestSections(t, 10)
	ctx := context.Background()
	var calls atomic.Int64

	if _, err := s.Get(ctx, "", countingLoader(&calls), GetOptions{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Get(empty path) error = %v", err)
	}
	if _, err := s.Get(ctx, "a", nil, GetOptions{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Get(nil loader) error = %v", err)
	}
	if err := s.Set(ctx, "a", 1, nil, true); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Set(nil writer) error = %v", err)
	}
	if _, err := s.Delete(ctx, "a", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Delete(nil deleter) error = %v", err)
	}
}

func TestSectionStore_SetUpdatesCache(t *testing.T) {
	s, c := newTestSections(t, 10)
	ctx := context.Background()
	var calls atomic.Int64

	if _, err := s.Get(ctx, "database", countingLoader(&calls), GetOptions{}); err != nil {
		t.Fatal(err)
	}

	var written any
	writer := func(_ context.Context, _ string, data any) error {
		written = data
		return nil
	}
	if err := s.Set(ctx, "database", "new", writer, true); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if written != "new" {
		t.Errorf("writer got %v, want new", written)
	}

	got, err := s.Get(ctx, "database", countingLoader(&calls), GetOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "new" {
		t.Errorf("Get() after Set = %v, want new", got)
	}
	if calls.Load() != 1 {
		t.Errorf("loader calls = %d, want 1", calls.Load())
	}
	if c.Stats().Size != 1 {
		t.Errorf("Size = %d, want 1", c.Stats().Size)
	}
}

func TestSectionStore_SetWithoutCacheUpdate(t *testing.T) {
	s, c := newTestSections(t, 10)
	ctx := context.Background()
	var calls atomic.Int64

	_, _ = s.Get(ctx, "database", countingLoader(&calls), GetOptions{})
	if err := s.Set(ctx, "database", "new", noopWriter, false); err != nil {
		t.Fatal(err)
	}
	if c.Contains(SectionKey("database")) {
		t.Error("stale section should be dropped when the cache is not updated")
	}
}

func TestSectionStore_SetWriterError(t *testing.T) {
	s, c := newTestSections(t, 10)
	ctx := context.Background()
	boom := errors.New("read-only")

	err := s.Set(ctx, "database", "new", func(context.Context, string, any) error { return boom }, true)
	if !errors.Is(err, boom) {
		t.Fatalf("Set() error = %v, want %v", err, boom)
	}
	if c.Contains(SectionKey("database")) {
		t.Error("failed write should not populate the cache")
	}
}

func TestSectionStore_Delete(t *testing.T) {
	s, c := newTestSections(t, 10)
	ctx := context.Background()
	var calls atomic.Int64

	_, _ = s.Get(ctx, "database", countingLoader(&calls), GetOptions{})

	removed, err := s.Delete(ctx, "database", func(context.Context, string) (bool, error) { return true, nil })
	if err != nil || !removed {
		t.Fatalf("Delete() = (%v, %v), want (true, nil)", removed, err)
	}
	if c.Contains(SectionKey("database")) {
		t.Error("cache entry survived Delete")
	}
	if s.State("database") != NotYetRequested {
		t.Errorf("State() = %v, want not_yet_requested", s.State("database"))
	}

	boom := errors.New("locked")
	_, _ = s.Get(ctx, "server", countingLoader(&calls), GetOptions{})
	if _, err := s.Delete(ctx, "server", func(context.Context, string) (bool, error) { return false, boom }); !errors.Is(err, boom) {
		t.Errorf("Delete() error = %v, want %v", err, boom)
	}
	if !c.Contains(SectionKey("server")) {
		t.Error("failed delete should keep the cache entry")
	}
}

func TestSectionStore_InvalidateKeepsHistory(t *testing.T) {
	s, _ := newTestSections(t, 10)
	ctx := context.Background()
	var calls atomic.Int64

	_, _ = s.Get(ctx, "database", countingLoader(&calls), GetOptions{})
	if !s.Invalidate("database") {
		t.Error("Invalidate() = false, want true")
	}

	st := s.Stats()
	if st.TotalSections != 1 || st.LoadedSections != 0 {
		t.Errorf("Stats() = %+v, want total 1 loaded 0", st)
	}

	_, _ = s.Get(ctx, "database", countingLoader(&calls), GetOptions{})
	if calls.Load() != 2 {
		t.Errorf("loader calls = %d, want 2", calls.Load())
	}
}

func TestSectionStore_InvalidateSubtree(t *testing.T) {
	s, c := newTestSections(t, 10)
	ctx := context.Background()
	var calls atomic.Int64

	for _, p := range []string{"db", "db.primary", "db.replica", "dbx"} {
		_, _ = s.Get(ctx, p, countingLoader(&calls), GetOptions{})
	}
	if n := s.InvalidateSubtree("db"); n != 3 {
		t.Errorf("InvalidateSubtree() = %d, want 3", n)
	}
	if !c.Contains(SectionKey("dbx")) {
		t.Error("sibling with shared prefix should survive")
	}
}

func TestSectionStore_Clear(t *testing.T) {
	s, c := newTestSections(t, 10)
	ctx := context.Background()
	var calls atomic.Int64

	_ = c.Set(ctx, "key:database.host", "localhost")
	_, _ = s.Get(ctx, "database", countingLoader(&calls), GetOptions{})
	_, _ = s.Get(ctx, "server", countingLoader(&calls), GetOptions{})

	if n := s.Clear(); n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	if st := s.Stats(); st.TotalSections != 0 {
		t.Errorf("TotalSections = %d, want 0", st.TotalSections)
	}
	if !c.Contains("key:database.host") {
		t.Error("Clear() removed a value entry")
	}
}

func TestSectionStore_StatsUnderEviction(t *testing.T) {
	s, _ := newTestSections(t, 2)
	ctx := context.Background()
	var calls atomic.Int64

	for _, p := range []string{"a", "b", "c"} {
		if _, err := s.Get(ctx, p, countingLoader(&calls), GetOptions{}); err != nil {
			t.Fatal(err)
		}
	}

	st := s.Stats()
	if st.TotalSections != 3 {
		t.Errorf("TotalSections = %d, want 3", st.TotalSections)
	}
	if st.LoadedSections != 2 {
		t.Errorf("LoadedSections = %d, want 2", st.LoadedSections)
	}
	if st.LoadedSections > st.TotalSections {
		t.Error("loaded exceeds total")
	}
	if got, want := st.LoadedRatio(), 2.0/3.0; got != want {
		t.Errorf("LoadedRatio() = %v, want %v", got, want)
	}
}

func TestSectionStore_RedundantLoad(t *testing.T) {
	s, _ := newTestSections(t, 10)
	ctx := context.Background()

	// The loader races with a writer that fills the same section.
	loader := func(ctx context.Context, path string) (any, error) {
		if err := s.Set(ctx, path, "from writer", noopWriter, true); err != nil {
			return nil, err
		}
		return "from loader", nil
	}

	got, err := s.Get(ctx, "database", loader, GetOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "from loader" {
		t.Errorf("Get() = %v, want from loader", got)
	}
	if n := s.Stats().RedundantLoads; n != 1 {
		t.Errorf("RedundantLoads = %d, want 1", n)
	}
}

func TestSectionStore_ConcurrentGetAgrees(t *testing.T) {
	s, c := newTestSections(t, 10)
	ctx := context.Background()
	loader := func(context.Context, string) (any, error) {
		return "payload", nil
	}

	const workers = 32
	results := make([]any, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := s.Get(ctx, "database", loader, GetOptions{})
			if err != nil {
				t.Errorf("Get() error = %v", err)
				return
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	for i, v := range results {
		if v != "payload" {
			t.Errorf("worker %d got %v", i, v)
		}
	}
	st := c.Stats()
	if st.Hits+st.Misses != workers {
		t.Errorf("hits+misses = %d, want %d", st.Hits+st.Misses, workers)
	}
	if ss := s.Stats(); ss.TotalSections != 1 || ss.LoadedSections != 1 {
		t.Errorf("Stats() = %+v, want 1/1", ss)
	}
	if err := c.Verify(); err != nil {
		t.Errorf("Verify() = %v", err)
	}
}

func TestSectionStore_CoalescedLoads(t *testing.T) {
	s, _ := newTestSections(t, 10, WithCoalescedLoads())
	ctx := context.Background()

	var calls atomic.Int64
	release := make(chan struct{})
	loader := func(context.Context, string) (any, error) {
		calls.Add(1)
		<-release
		return "payload", nil
	}

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.Get(ctx, "database", loader, GetOptions{})
			if err != nil || v != "payload" {
				t.Errorf("Get() = (%v, %v)", v, err)
			}
		}()
	}

	for calls.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls.Load() != 1 {
		t.Errorf("loader calls = %d, want 1", calls.Load())
	}
	if n := s.Stats().RedundantLoads; n != 0 {
		t.Errorf("RedundantLoads = %d, want 0", n)
	}
}

func TestSectionState_String(t *testing.T) {
	if NotYetRequested.String() != "not_yet_requested" || Requested.String() != "requested" {
		t.Errorf("String() = %q, %q", NotYetRequested, Requested)
	}
}

func TestSectionStore_SetDoesNotRecordRequest(t *testing.T) {
	s, _ := newTestSections(t, 10)
	ctx := context.Background()

	if err := s.Set(ctx, "database", map[string]any{"host": "db"}, noopWriter, true); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "server", "x", noopWriter, false); err != nil {
		t.Fatal(err)
	}

	if st := s.Stats(); st.TotalSections != 0 || st.LoadedSections != 0 {
		t.Errorf("Stats() = %+v, want 0 total and 0 loaded", st)
	}
	if got := s.State("database"); got != NotYetRequested {
		t.Errorf("State() = %v, want not_yet_requested", got)
	}

	var calls atomic.Int64
	if _, err := s.Get(ctx, "database", countingLoader(&calls), GetOptions{}); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 0 {
		t.Errorf("loader calls = %d, want 0 (served from Set)", calls.Load())
	}
	if st := s.Stats(); st.TotalSections != 1 || st.LoadedSections != 1 {
		t.Errorf("Stats() after Get = %+v, want 1 total and 1 loaded", st)
	}
}

func TestSectionStore_PathThroughKeyer(t *testing.T) {
	keys := NewKeyCache()
	s, _ := newTestSections(t, 10, WithKeyer(keys))

	for _, loc := range []Location{Dot("database"), Dot("database"), At(nil, "database")} {
		path, err := s.Path(loc)
		if err != nil {
			t.Fatalf("Path(%v) error = %v", loc, err)
		}
		if path != "database" {
			t.Errorf("Path(%v) = %q, want database", loc, path)
		}
	}
	if keys.Len() != 2 {
		t.Errorf("key memo Len() = %d, want 2", keys.Len())
	}

	key, err := s.Key(At([]string{"database"}, "pool"))
	if err != nil {
		t.Fatal(err)
	}
	if key != SectionKey("database.pool") {
		t.Errorf("Key() = %q, want %q", key, SectionKey("database.pool"))
	}

	if _, err := s.Path(Location{Dot: "a", Name: "a"}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Path(both forms) error = %v, want ErrInvalidArgument", err)
	}
}
