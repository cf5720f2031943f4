// Package crawler implements the concurrent site crawler. Starting from a
// root URL it fetches pages, extracts same-site links and follows them as
// a task tree executed on a bounded worker pool, deduplicating URLs so
// each one is fetched at most once per crawl.
package crawler

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/lemmatic/sitesearch/internal/config"
	"github.com/lemmatic/sitesearch/internal/parser"
)

// stoppedByUser is recorded as page content when a fetch was aborted by
// cancellation rather than a genuine network failure.
const stoppedByUser = "indexing stopped by user"

// binaryExtRe matches URL paths pointing at non-HTML binary or media
// content that is never worth recursing into.
var binaryExtRe = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|bmp|pdf|doc|docx|xls|xlsx|ppt|pptx|zip|rar|tar|gz|7z|mp3|wav|mp4|mkv|avi|mov|sql)$`)

// Crawler fetches whole sites concurrently. One Crawler is shared by all
// crawls; per-crawl state (visited set, collected pages) lives in the
// crawl run, so unrelated crawls never share a visited set.
type Crawler struct {
	client  *HTTPClient
	limiter *RateLimiter
	pool    *ants.Pool
}

// New creates a crawler with a worker pool of the configured size
// (defaulting to the number of CPUs) and a per-host rate limiter.
func New(cfg *config.Config, profiles *config.Profiles) (*Crawler, error) {
	size := cfg.Concurrency
	if size <= 0 {
		size = runtime.NumCPU()
	}

	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}

	return &Crawler{
		client:  NewHTTPClient(profiles, cfg.RequestTimeout),
		limiter: NewRateLimiter(cfg.RequestDelay),
		pool:    pool,
	}, nil
}

// Close releases the worker pool.
func (c *Crawler) Close() {
	c.pool.Release()
}

// Crawl fetches the site rooted at rootURL and returns every visited URL
// as a PageData record. Cancelling the context stops new fetches; pages
// collected so far are still returned.
func (c *Crawler) Crawl(ctx context.Context, rootURL string) []PageData {
	run := &crawlRun{
		crawler: c,
		ctx:     ctx,
		root:    strings.TrimSuffix(rootURL, "/"),
		visited: make(map[string]struct{}),
	}

	run.enqueue(run.root)
	run.wg.Wait()

	slog.Info("Crawl finished", "root", run.root, "pages", len(run.pages), "cancelled", ctx.Err() != nil)
	return run.pages
}

// CrawlOne fetches a single URL without following its links, for
// re-indexing one page of an already configured site.
func (c *Crawler) CrawlOne(ctx context.Context, pageURL, rootURL string) PageData {
	page, _ := c.fetch(ctx, strings.TrimSuffix(pageURL, "/"), strings.TrimSuffix(rootURL, "/"))
	return page
}

// crawlRun is the state of one site crawl: the shared visited set, the
// collected pages and the join point for the task tree.
type crawlRun struct {
	crawler *Crawler
	ctx     context.Context
	root    string

	mu      sync.Mutex
	visited map[string]struct{}
	pages   []PageData

	wg sync.WaitGroup
}

// enqueue marks the URL visited and schedules its fetch. The
// check-and-mark step is atomic, so a URL discovered through several
// parent pages concurrently is still fetched at most once.
func (r *crawlRun) enqueue(pageURL string) {
	// "http://site" and "http://site/" are the same page; without
	// collapsing them a home link ("/") gets the root fetched twice and
	// both records map to path "/", breaking the per-site path uniqueness.
	pageURL = strings.TrimSuffix(pageURL, "/")

	r.mu.Lock()
	if _, seen := r.visited[pageURL]; seen {
		r.mu.Unlock()
		return
	}
	r.visited[pageURL] = struct{}{}
	r.mu.Unlock()

	// No new fetches once cancellation is signalled.
	if r.ctx.Err() != nil {
		return
	}

	r.wg.Add(1)
	go func() {
		// Submit blocks while the pool is saturated; the goroutine holds
		// the queued task so a worker never blocks submitting its children.
		if err := r.crawler.pool.Submit(func() { r.visit(pageURL) }); err != nil {
			r.wg.Done()
		}
	}()
}

// visit fetches one URL, records its page and enqueues eligible links.
func (r *crawlRun) visit(pageURL string) {
	defer r.wg.Done()

	if r.ctx.Err() != nil {
		return
	}

	slog.Debug("Crawling URL", "url", pageURL)

	page, links := r.crawler.fetch(r.ctx, pageURL, r.root)

	r.mu.Lock()
	r.pages = append(r.pages, page)
	r.mu.Unlock()

	for _, link := range links {
		if r.ctx.Err() != nil {
			return
		}
		if r.eligible(link) {
			r.enqueue(link)
		}
	}
}

// eligible applies the link admission filter: same-site scope, no fragment
// marker, no binary/media extension. The visited check happens atomically
// in enqueue.
func (r *crawlRun) eligible(link string) bool {
	if !strings.HasPrefix(link, r.root) {
		return false
	}
	if strings.Contains(link, "#") {
		return false
	}
	if u, err := url.Parse(link); err != nil || binaryExtRe.MatchString(u.Path) {
		return false
	}
	return true
}

// fetch retrieves one URL and parses its links. Every failure still yields
// a page record, with code 500 and the error description as content.
func (c *Crawler) fetch(ctx context.Context, pageURL, root string) (PageData, []string) {
	page := PageData{
		URL:  pageURL,
		Path: relPath(pageURL, root),
	}

	if err := c.limiter.Wait(ctx, pageURL); err != nil {
		page.Code = 500
		page.Content = stoppedByUser
		return page, nil
	}

	resp, err := c.client.Get(ctx, pageURL)
	if err != nil {
		page.Code = 500
		if ctx.Err() != nil {
			page.Content = stoppedByUser
		} else {
			page.Content = err.Error()
		}
		slog.Info("Fetch failed", "url", pageURL, "error", page.Content)
		return page, nil
	}

	page.Code = resp.StatusCode
	page.Content = string(resp.Body)

	if resp.StatusCode >= 400 || !isHTML(resp.ContentType) {
		return page, nil
	}

	htmlParser, err := parser.NewHTMLParser(pageURL)
	if err != nil {
		return page, nil
	}
	parsed, err := htmlParser.Parse(resp.Body)
	if err != nil {
		return page, nil
	}

	return page, parsed.Links
}

func isHTML(contentType string) bool {
	return contentType == "" ||
		strings.HasPrefix(contentType, "text/html") ||
		strings.HasPrefix(contentType, "application/xhtml+xml")
}

// relPath turns an absolute URL into its site-relative path.
func relPath(pageURL, root string) string {
	path := strings.TrimPrefix(pageURL, root)
	if path == "" {
		return "/"
	}
	return path
}
