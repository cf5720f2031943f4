// Package indexer orchestrates the crawl -> lemmatize -> persist pipeline.
// It owns the Idle -> Indexing -> {Indexed, Failed} state machine, the
// single-run guarantee and cooperative cancellation.
package indexer

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/lemmatic/sitesearch/internal/config"
	"github.com/lemmatic/sitesearch/internal/crawler"
	"github.com/lemmatic/sitesearch/internal/lemma"
	"github.com/lemmatic/sitesearch/internal/parser"
	"github.com/lemmatic/sitesearch/internal/storage"
)

// Store is the slice of the persistence gateway the orchestrator writes
// through.
type Store interface {
	SiteExists(url string) (bool, error)
	CreateSite(site *storage.Site) error
	UpdateSiteStatus(id int, status storage.SiteStatus, lastError string) error
	SiteByURL(url string) (*storage.Site, error)
	DeleteSite(id int) error
	SaveSiteIndex(siteID int, pages []storage.PageIndex) error
	SavePageIndex(siteID int, page storage.PageIndex) error
	PageByPath(siteID int, path string) (*storage.Page, error)
	PageLemmaRanks(pageID int) (map[string]float64, error)
	DecrementLemmas(siteID int, counts map[string]float64) error
	DeletePage(id int) error
}

// ResultCache is the search-side cache the orchestrator must invalidate
// whenever it mutates the index.
type ResultCache interface {
	Invalidate()
}

// Service drives indexing runs. One run is a global singleton: Start
// rejects overlapping runs atomically.
type Service struct {
	cfg      *config.Config
	store    Store
	crawler  *crawler.Crawler
	analyzer *lemma.Analyzer
	cache    ResultCache // optional

	// Lemmatization of a site's pages is embarrassingly parallel; this
	// pool bounds it independently of the crawl pool.
	analysisPool *ants.Pool

	running atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewService creates the orchestrator. cache may be nil when search
// caching is disabled.
func NewService(cfg *config.Config, store Store, cr *crawler.Crawler, analyzer *lemma.Analyzer, cache ResultCache) (*Service, error) {
	size := cfg.Concurrency
	if size <= 0 {
		size = runtime.NumCPU()
	}

	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:          cfg,
		store:        store,
		crawler:      cr,
		analyzer:     analyzer,
		cache:        cache,
		analysisPool: pool,
	}, nil
}

// Close releases the analysis pool.
func (s *Service) Close() {
	s.analysisPool.Release()
}

// IsRunning reports whether an indexing run is active.
func (s *Service) IsRunning() bool {
	return s.running.Load()
}

// Start launches an indexing run over all configured sites not yet known
// to the index. It returns ErrAlreadyRunning, without side effects, when a
// run is active; otherwise the run proceeds in the background.
func (s *Service) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			cancel()
			s.running.Store(false)
			close(done)
		}()
		s.run(runCtx)
	}()

	return nil
}

// Wait blocks until the current run finishes. It returns immediately
// when no run has been started.
func (s *Service) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Stop signals cancellation to the active run and waits up to the
// configured grace period for in-flight tasks to observe it. A second
// Stop after the run has completed fails with ErrNotRunning.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running.Load() || s.cancel == nil {
		s.mu.Unlock()
		return ErrNotRunning
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-time.After(s.cfg.StopGrace):
		// Remaining tasks are abandoned; they notice the cancelled
		// context on their next check and return partial results.
		slog.Warn("Indexing did not drain within the grace period", "grace", s.cfg.StopGrace)
	}

	return nil
}

// run indexes every configured site in order. A failure on one site is
// recorded on that site and never aborts the others.
func (s *Service) run(ctx context.Context) {
	// Cleared even when the run is cancelled part-way: sites indexed
	// before the stop have already been persisted.
	if s.cache != nil {
		defer s.cache.Invalidate()
	}

	for _, siteCfg := range s.cfg.Sites {
		if ctx.Err() != nil {
			slog.Info("Indexing run cancelled", "remaining_site", siteCfg.URL)
			return
		}

		exists, err := s.store.SiteExists(strings.TrimSuffix(siteCfg.URL, "/"))
		if err != nil {
			slog.Error("Failed to check site existence", "site", siteCfg.URL, "error", err)
			continue
		}
		if exists {
			slog.Info("Site already indexed, skipping", "site", siteCfg.URL)
			continue
		}

		s.indexSite(ctx, siteCfg)
	}
}

// indexSite runs the full pipeline for one site: crawl, parallel
// lemmatization, batched persistence, final status.
func (s *Service) indexSite(ctx context.Context, siteCfg config.SiteConfig) {
	slog.Info("Indexing site", "site", siteCfg.URL)

	// Site rows always hold the canonical root, no trailing slash.
	root := strings.TrimSuffix(siteCfg.URL, "/")
	site := &storage.Site{
		URL:        root,
		Name:       siteCfg.Name,
		Status:     storage.StatusIndexing,
		StatusTime: time.Now(),
	}
	if err := s.store.CreateSite(site); err != nil {
		slog.Error("Failed to create site", "site", siteCfg.URL, "error", err)
		return
	}

	pages := s.crawler.Crawl(ctx, root)

	indexed := s.analyzePages(pages)

	if err := s.store.SaveSiteIndex(site.ID, indexed); err != nil {
		slog.Error("Failed to persist site index", "site", siteCfg.URL, "error", err)
		s.finalize(site.ID, storage.StatusFailed, err.Error())
		return
	}

	if ctx.Err() != nil {
		s.finalize(site.ID, storage.StatusFailed, "indexing stopped by user")
		return
	}

	s.finalize(site.ID, storage.StatusIndexed, "")
	slog.Info("Site indexed", "site", siteCfg.URL, "pages", len(indexed))
}

func (s *Service) finalize(siteID int, status storage.SiteStatus, lastError string) {
	if err := s.store.UpdateSiteStatus(siteID, status, lastError); err != nil {
		slog.Error("Failed to finalize site status", "site_id", siteID, "error", err)
	}
}

// analyzePages lemmatizes every crawled page on the analysis pool and
// merges the per-page term maps into persistable page indexes. Pages are
// independent; only the result slice is a shared write, guarded by a
// mutex.
func (s *Service) analyzePages(pages []crawler.PageData) []storage.PageIndex {
	var (
		mu      sync.Mutex
		indexed = make([]storage.PageIndex, 0, len(pages))
		wg      sync.WaitGroup
	)

	for _, page := range pages {
		page := page
		wg.Add(1)
		task := func() {
			defer wg.Done()
			pi := s.analyzePage(page)

			mu.Lock()
			indexed = append(indexed, pi)
			mu.Unlock()
		}
		if err := s.analysisPool.Submit(task); err != nil {
			task()
		}
	}

	wg.Wait()
	return indexed
}

// analyzePage turns one crawled page into its page index: the stored page
// row plus its lemma -> rank map. Only the visible text of successful
// fetches is lemmatized; failure placeholders contribute no lemmas.
func (s *Service) analyzePage(page crawler.PageData) storage.PageIndex {
	pi := storage.PageIndex{
		Page: storage.Page{
			Path:    page.Path,
			Code:    page.Code,
			Content: page.Content,
		},
		Lemmas: make(map[string]float64),
	}

	if page.Code >= 400 {
		return pi
	}

	text := page.Content
	if htmlParser, err := parser.NewHTMLParser(page.URL); err == nil {
		if parsed, err := htmlParser.Parse([]byte(page.Content)); err == nil {
			text = parsed.Title + " " + parsed.Text
		}
	}

	for lemmaText, count := range s.analyzer.Analyze(text) {
		pi.Lemmas[lemmaText] = float64(count)
	}

	return pi
}

// IndexPage re-indexes a single URL. The URL must fall under a configured
// site; an existing page at that path is replaced, not accumulated.
func (s *Service) IndexPage(ctx context.Context, pageURL string) error {
	siteCfg, ok := s.cfg.SiteFor(pageURL)
	if !ok {
		return ErrOutOfScope
	}

	root := strings.TrimSuffix(siteCfg.URL, "/")
	site, err := s.store.SiteByURL(root)
	if errors.Is(err, storage.ErrNotFound) {
		site = &storage.Site{
			URL:        root,
			Name:       siteCfg.Name,
			Status:     storage.StatusIndexing,
			StatusTime: time.Now(),
		}
		if err := s.store.CreateSite(site); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	path := strings.TrimPrefix(strings.TrimSuffix(pageURL, "/"), root)
	if path == "" {
		path = "/"
	}

	// Delete-and-replace: roll the old page's lemma contributions out of
	// the site aggregates, then drop the page and its postings.
	if existing, err := s.store.PageByPath(site.ID, path); err == nil {
		ranks, err := s.store.PageLemmaRanks(existing.ID)
		if err != nil {
			return err
		}
		if err := s.store.DeletePage(existing.ID); err != nil {
			return err
		}
		if err := s.store.DecrementLemmas(site.ID, ranks); err != nil {
			return err
		}
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	page := s.crawler.CrawlOne(ctx, pageURL, siteCfg.URL)
	pi := s.analyzePage(page)

	if err := s.store.SavePageIndex(site.ID, pi); err != nil {
		s.finalize(site.ID, storage.StatusFailed, err.Error())
		return err
	}

	s.finalize(site.ID, storage.StatusIndexed, "")

	if s.cache != nil {
		s.cache.Invalidate()
	}

	slog.Info("Page indexed", "url", pageURL, "lemmas", len(pi.Lemmas))
	return nil
}

// DeleteSite removes a site and everything indexed under it. Returns
// storage.ErrNotFound for an unknown id.
func (s *Service) DeleteSite(id int) error {
	if err := s.store.DeleteSite(id); err != nil {
		return err
	}

	if s.cache != nil {
		s.cache.Invalidate()
	}

	slog.Info("Site deleted", "site_id", id)
	return nil
}
