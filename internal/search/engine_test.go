package search

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lemmatic/sitesearch/internal/lemma"
	"github.com/lemmatic/sitesearch/internal/storage"
)

func newTestEngine(t *testing.T, opts Options) (*Engine, *storage.SQLiteStorage) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	analyzer, err := lemma.New("english")
	if err != nil {
		t.Fatalf("Failed to create analyzer: %v", err)
	}

	return NewEngine(store, analyzer, nil, opts), store
}

func defaultOptions() Options {
	return Options{
		FrequencyThreshold: 0.8,
		ShortQueryLemmas:   4,
		SnippetRadius:      200,
	}
}

func seedSite(t *testing.T, store *storage.SQLiteStorage, url string, pages []storage.PageIndex) *storage.Site {
	t.Helper()

	site := &storage.Site{
		URL:        url,
		Name:       "Test",
		Status:     storage.StatusIndexed,
		StatusTime: time.Now(),
	}
	if err := store.CreateSite(site); err != nil {
		t.Fatalf("Failed to create site: %v", err)
	}
	if err := store.SaveSiteIndex(site.ID, pages); err != nil {
		t.Fatalf("Failed to save index: %v", err)
	}
	return site
}

func TestSearchEmptyQuery(t *testing.T) {
	engine, _ := newTestEngine(t, defaultOptions())

	if _, err := engine.Search("   ", "", 0, 10); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("Expected ErrEmptyQuery, got %v", err)
	}
}

func TestSearchIntersection(t *testing.T) {
	engine, store := newTestEngine(t, defaultOptions())

	seedSite(t, store, "https://example.com", []storage.PageIndex{
		{
			Page:   storage.Page{Path: "/cats", Code: 200, Content: "<html><head><title>Cats</title></head><body>cat cat cat</body></html>"},
			Lemmas: map[string]float64{"cat": 3},
		},
		{
			Page:   storage.Page{Path: "/pets", Code: 200, Content: "<html><head><title>Pets</title></head><body>cat dog dog</body></html>"},
			Lemmas: map[string]float64{"cat": 1, "dog": 2},
		},
	})

	result, err := engine.Search("cat dog", "", 0, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	// Only the page containing both lemmas matches.
	if result.Count != 1 {
		t.Fatalf("Expected 1 result, got %d", result.Count)
	}

	item := result.Items[0]
	if item.URI != "/pets" {
		t.Errorf("Expected /pets, got %s", item.URI)
	}
	if item.Title != "Pets" {
		t.Errorf("Expected title 'Pets', got %q", item.Title)
	}
	// The only match carries the maximum relevance.
	if item.Relevance != 1.0 {
		t.Errorf("Expected relevance 1.0, got %v", item.Relevance)
	}
}

func TestSearchRanking(t *testing.T) {
	engine, store := newTestEngine(t, defaultOptions())

	seedSite(t, store, "https://example.com", []storage.PageIndex{
		{
			Page:   storage.Page{Path: "/light", Code: 200, Content: "<html><body>cat</body></html>"},
			Lemmas: map[string]float64{"cat": 1},
		},
		{
			Page:   storage.Page{Path: "/heavy", Code: 200, Content: "<html><body>cat cat cat cat cat</body></html>"},
			Lemmas: map[string]float64{"cat": 5},
		},
	})

	result, err := engine.Search("cat", "", 0, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Count != 2 {
		t.Fatalf("Expected 2 results, got %d", result.Count)
	}

	if result.Items[0].URI != "/heavy" {
		t.Errorf("Expected the higher-frequency page first, got %s", result.Items[0].URI)
	}
	if result.Items[0].Relevance != 1.0 {
		t.Errorf("Expected top relevance 1.0, got %v", result.Items[0].Relevance)
	}
	for _, item := range result.Items {
		if item.Relevance <= 0 || item.Relevance > 1 {
			t.Errorf("Relevance out of (0, 1]: %v for %s", item.Relevance, item.URI)
		}
	}
}

func TestSearchNoMatch(t *testing.T) {
	engine, store := newTestEngine(t, defaultOptions())

	seedSite(t, store, "https://example.com", []storage.PageIndex{
		{
			Page:   storage.Page{Path: "/", Code: 200, Content: "<html><body>cat</body></html>"},
			Lemmas: map[string]float64{"cat": 1},
		},
	})

	result, err := engine.Search("elephant", "", 0, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Count != 0 || len(result.Items) != 0 {
		t.Errorf("Expected empty result, got %+v", result)
	}
}

func TestSearchSiteFilter(t *testing.T) {
	engine, store := newTestEngine(t, defaultOptions())

	seedSite(t, store, "https://a.example", []storage.PageIndex{
		{
			Page:   storage.Page{Path: "/a", Code: 200, Content: "<html><body>cat</body></html>"},
			Lemmas: map[string]float64{"cat": 1},
		},
	})
	seedSite(t, store, "https://b.example", []storage.PageIndex{
		{
			Page:   storage.Page{Path: "/b", Code: 200, Content: "<html><body>cat</body></html>"},
			Lemmas: map[string]float64{"cat": 1},
		},
	})

	all, err := engine.Search("cat", "", 0, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if all.Count != 2 {
		t.Errorf("Expected 2 results across sites, got %d", all.Count)
	}

	one, err := engine.Search("cat", "https://a.example", 0, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if one.Count != 1 || one.Items[0].URI != "/a" {
		t.Errorf("Expected only site A's page, got %+v", one)
	}

	// An unknown site yields an empty result rather than an error.
	unknown, err := engine.Search("cat", "https://missing.example", 0, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if unknown.Count != 0 {
		t.Errorf("Expected empty result for unknown site, got %d", unknown.Count)
	}
}

func TestSearchFrequencyFilter(t *testing.T) {
	opts := defaultOptions()
	opts.FrequencyThreshold = 0.5
	opts.ShortQueryLemmas = 0 // filter applies to every query
	engine, store := newTestEngine(t, opts)

	// "cat" occurs on every page, ratio 1.0 exceeds the threshold.
	seedSite(t, store, "https://example.com", []storage.PageIndex{
		{
			Page:   storage.Page{Path: "/a", Code: 200, Content: "<html><body>cat</body></html>"},
			Lemmas: map[string]float64{"cat": 1},
		},
		{
			Page:   storage.Page{Path: "/b", Code: 200, Content: "<html><body>cat</body></html>"},
			Lemmas: map[string]float64{"cat": 1},
		},
	})

	result, err := engine.Search("cat", "", 0, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Count != 0 {
		t.Errorf("Expected the ubiquitous lemma to be filtered out, got %d results", result.Count)
	}
}

func TestSearchShortQuerySkipsFilter(t *testing.T) {
	opts := defaultOptions()
	opts.FrequencyThreshold = 0.5
	opts.ShortQueryLemmas = 4 // single-lemma queries skip the filter
	engine, store := newTestEngine(t, opts)

	seedSite(t, store, "https://example.com", []storage.PageIndex{
		{
			Page:   storage.Page{Path: "/a", Code: 200, Content: "<html><body>cat</body></html>"},
			Lemmas: map[string]float64{"cat": 1},
		},
		{
			Page:   storage.Page{Path: "/b", Code: 200, Content: "<html><body>cat</body></html>"},
			Lemmas: map[string]float64{"cat": 1},
		},
	})

	result, err := engine.Search("cat", "", 0, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Count != 2 {
		t.Errorf("Expected short query to bypass the frequency filter, got %d results", result.Count)
	}
}

func TestSearchPagination(t *testing.T) {
	engine, store := newTestEngine(t, defaultOptions())

	pages := make([]storage.PageIndex, 5)
	for i := range pages {
		pages[i] = storage.PageIndex{
			Page:   storage.Page{Path: "/p" + string(rune('0'+i)), Code: 200, Content: "<html><body>cat</body></html>"},
			Lemmas: map[string]float64{"cat": float64(5 - i)},
		}
	}
	seedSite(t, store, "https://example.com", pages)

	first, err := engine.Search("cat", "", 0, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if first.Count != 5 {
		t.Errorf("Expected pre-pagination count 5, got %d", first.Count)
	}
	if len(first.Items) != 2 {
		t.Errorf("Expected 2 items on the first window, got %d", len(first.Items))
	}

	second, err := engine.Search("cat", "", 2, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(second.Items) != 2 {
		t.Errorf("Expected 2 items on the second window, got %d", len(second.Items))
	}

	// Relevance never increases across consecutive windows.
	if len(first.Items) > 0 && len(second.Items) > 0 {
		if second.Items[0].Relevance > first.Items[len(first.Items)-1].Relevance {
			t.Error("Expected relevance to be non-increasing across pages")
		}
	}

	// An offset past the end yields an empty window with the same count.
	tail, err := engine.Search("cat", "", 100, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if tail.Count != 5 || len(tail.Items) != 0 {
		t.Errorf("Expected count 5 with no items, got %+v", tail)
	}
}

func TestSearchCrossSiteIntersection(t *testing.T) {
	engine, store := newTestEngine(t, defaultOptions())

	// The same lemma text has a separate row per site; a page only needs
	// its own site's rows to match.
	seedSite(t, store, "https://a.example", []storage.PageIndex{
		{
			Page:   storage.Page{Path: "/both", Code: 200, Content: "<html><body>cat dog</body></html>"},
			Lemmas: map[string]float64{"cat": 1, "dog": 1},
		},
	})
	seedSite(t, store, "https://b.example", []storage.PageIndex{
		{
			Page:   storage.Page{Path: "/both", Code: 200, Content: "<html><body>cat dog</body></html>"},
			Lemmas: map[string]float64{"cat": 2, "dog": 2},
		},
	})

	result, err := engine.Search("cat dog", "", 0, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if result.Count != 2 {
		t.Errorf("Expected both sites' pages to match, got %d", result.Count)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	cache, err := NewCache(time.Minute)
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	defer cache.Close()

	want := &Result{Count: 1, Items: []Item{{URI: "/x"}}}
	cache.Put("cat", "", 0, 10, want)
	cache.Wait()

	got, ok := cache.Get("cat", "", 0, 10)
	if !ok {
		t.Fatal("Expected cached result")
	}
	if got.Count != 1 || got.Items[0].URI != "/x" {
		t.Errorf("Cached result mismatch: %+v", got)
	}

	// A different pagination window is a different key.
	if _, ok := cache.Get("cat", "", 10, 10); ok {
		t.Error("Expected distinct cache entries per window")
	}

	cache.Invalidate()
	cache.Wait()
	if _, ok := cache.Get("cat", "", 0, 10); ok {
		t.Error("Expected Invalidate to drop all entries")
	}
}
