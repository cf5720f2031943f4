package storage

import "time"

// SiteStatus is the lifecycle state of an indexed site.
type SiteStatus string

const (
	StatusIndexing SiteStatus = "indexing"
	StatusIndexed  SiteStatus = "indexed"
	StatusFailed   SiteStatus = "failed"
)

// Site is one configured site known to the index.
type Site struct {
	ID         int
	URL        string // Root URL, no trailing slash
	Name       string // Display name from configuration
	Status     SiteStatus
	StatusTime time.Time
	LastError  string
}

// Page is one crawled URL of a site. Failed fetches are recorded too, with
// code 500 and the error text as content, so the URL is not silently lost.
type Page struct {
	ID      int
	SiteID  int
	Path    string // URL suffix relative to the site root, e.g. /about
	Code    int    // HTTP status code of the fetch
	Content string // Raw response body, or the error description
}

// Lemma is a normalized index term of one site. Frequency aggregates the
// term's occurrence count across all pages of the site.
type Lemma struct {
	ID        int
	SiteID    int
	Text      string
	Frequency int
}

// Posting is the inverted-index edge: lemma L occurs in page P with weight
// Rank (the term frequency of L within P).
type Posting struct {
	ID      int
	PageID  int
	LemmaID int
	Rank    float64
}

// PageIndex bundles a crawled page with its per-page term frequencies,
// ready for batched persistence.
type PageIndex struct {
	Page   Page
	Lemmas map[string]float64 // lemma text -> rank within this page
}
