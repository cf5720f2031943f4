package crawler

// PageData is one visited URL of a crawl. Failed fetches are recorded with
// code 500 and the error text as content so the URL is not silently lost.
type PageData struct {
	URL     string // Absolute URL that was fetched
	Path    string // URL suffix relative to the crawl root, "/" for the root itself
	Code    int    // HTTP status code, 500 for fetch failures
	Content string // Raw response body, or the error description
}
