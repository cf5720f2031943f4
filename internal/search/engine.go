// Package search implements the relevance engine: it lemmatizes queries,
// filters overly common lemmas, intersects postings, scores pages by term
// frequency and renders paginated, snippeted results.
package search

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/lemmatic/sitesearch/internal/lemma"
	"github.com/lemmatic/sitesearch/internal/parser"
	"github.com/lemmatic/sitesearch/internal/storage"
)

// Store is the slice of the persistence gateway the engine reads from.
// Search never mutates index state.
type Store interface {
	SiteByURL(url string) (*storage.Site, error)
	SiteByID(id int) (*storage.Site, error)
	LemmasByTexts(siteID int, texts []string) ([]storage.Lemma, error)
	CountPages(siteID int) (int, error)
	DocumentFrequency(lemmaID int) (int, error)
	PostingsByLemma(lemmaID int) ([]storage.Posting, error)
	PageByID(id int) (*storage.Page, error)
}

// Options tunes the relevance engine. Both knobs are deliberately
// configurable; deployments disagree on the right values.
type Options struct {
	// FrequencyThreshold drops a lemma whose document-frequency ratio
	// exceeds it: a term on most pages carries little discriminating power.
	FrequencyThreshold float64
	// ShortQueryLemmas skips the frequency filter entirely for queries
	// with fewer distinct lemmas, so a short query is never filtered to
	// nothing.
	ShortQueryLemmas int
	// SnippetRadius is the snippet context window in runes.
	SnippetRadius int
}

// Item is one rendered search result.
type Item struct {
	Site      string  `json:"site"`     // Site root URL
	SiteName  string  `json:"siteName"` // Configured display name
	URI       string  `json:"uri"`      // Page path relative to the site root
	Title     string  `json:"title"`    // Page <title>
	Snippet   string  `json:"snippet"`  // Highlighted excerpt
	Relevance float64 `json:"relevance"`
}

// Result is a paginated search response. Count is the pre-pagination
// total.
type Result struct {
	Count int    `json:"count"`
	Items []Item `json:"data"`
}

// Engine answers ranked full-text queries over the persisted index.
type Engine struct {
	store    Store
	analyzer *lemma.Analyzer
	cache    *Cache // optional
	opts     Options
}

// NewEngine creates a search engine. cache may be nil to disable result
// caching.
func NewEngine(store Store, analyzer *lemma.Analyzer, cache *Cache, opts Options) *Engine {
	return &Engine{
		store:    store,
		analyzer: analyzer,
		cache:    cache,
		opts:     opts,
	}
}

// Search runs a ranked query. siteURL narrows the search to one site when
// non-empty. A blank query returns ErrEmptyQuery; a query that matches
// nothing returns an empty Result, which is a valid outcome, not an error.
func (e *Engine) Search(query, siteURL string, offset, limit int) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	if e.cache != nil {
		if cached, ok := e.cache.Get(query, siteURL, offset, limit); ok {
			return cached, nil
		}
	}

	result, err := e.search(query, siteURL, offset, limit)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.Put(query, siteURL, offset, limit, result)
	}
	return result, nil
}

func (e *Engine) search(query, siteURL string, offset, limit int) (*Result, error) {
	siteID := 0
	if siteURL != "" {
		site, err := e.store.SiteByURL(strings.TrimSuffix(siteURL, "/"))
		if errors.Is(err, storage.ErrNotFound) {
			return &Result{}, nil
		}
		if err != nil {
			return nil, err
		}
		siteID = site.ID
	}

	texts := e.analyzer.Tokenize(query)
	if len(texts) == 0 {
		return &Result{}, nil
	}

	candidates, err := e.store.LemmasByTexts(siteID, texts)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return &Result{}, nil
	}

	survivors, err := e.filterByFrequency(candidates, len(texts), siteID)
	if err != nil {
		return nil, err
	}
	if len(survivors) == 0 {
		return &Result{}, nil
	}

	scores, err := e.intersect(survivors)
	if err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return &Result{}, nil
	}

	items, err := e.render(query, scores)
	if err != nil {
		return nil, err
	}

	return paginate(items, offset, limit), nil
}

// scoredLemma carries a candidate lemma with its document frequency.
type scoredLemma struct {
	lemma    storage.Lemma
	docCount int
}

// filterByFrequency drops lemmas whose document-frequency ratio exceeds
// the threshold. Queries with few distinct lemmas skip the filter so a
// short query never loses every term. The survivors come back sorted
// rarest first, which seeds the intersection with the smallest set.
func (e *Engine) filterByFrequency(candidates []storage.Lemma, queryLemmas, siteID int) ([]scoredLemma, error) {
	totalPages, err := e.store.CountPages(siteID)
	if err != nil {
		return nil, err
	}
	if totalPages == 0 {
		return nil, nil
	}

	skipFilter := queryLemmas < e.opts.ShortQueryLemmas

	var survivors []scoredLemma
	for _, l := range candidates {
		docCount, err := e.store.DocumentFrequency(l.ID)
		if err != nil {
			return nil, err
		}

		ratio := float64(docCount) / float64(totalPages)
		if !skipFilter && ratio > e.opts.FrequencyThreshold {
			slog.Debug("Dropping overly common lemma", "lemma", l.Text, "ratio", ratio)
			continue
		}

		survivors = append(survivors, scoredLemma{lemma: l, docCount: docCount})
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		return survivors[i].docCount < survivors[j].docCount
	})

	return survivors, nil
}

// intersect computes the pages containing every surviving lemma text and
// their absolute relevance (the sum of posting ranks). Lemma rows are
// per-site, so the same text can appear once per site; a page must match
// all distinct texts, each through its own site's row.
func (e *Engine) intersect(survivors []scoredLemma) (map[int]float64, error) {
	// Group rows by text, preserving the rarest-first seeding order.
	var order []string
	byText := make(map[string][]storage.Lemma)
	for _, s := range survivors {
		if _, ok := byText[s.lemma.Text]; !ok {
			order = append(order, s.lemma.Text)
		}
		byText[s.lemma.Text] = append(byText[s.lemma.Text], s.lemma)
	}

	scores := make(map[int]float64)

	for i, text := range order {
		// Pages containing this text, through any of its per-site rows.
		pages := make(map[int]float64)
		for _, l := range byText[text] {
			postings, err := e.store.PostingsByLemma(l.ID)
			if err != nil {
				return nil, err
			}
			for _, p := range postings {
				pages[p.PageID] += p.Rank
			}
		}

		if i == 0 {
			for pageID, rank := range pages {
				scores[pageID] = rank
			}
			continue
		}

		for pageID := range scores {
			rank, ok := pages[pageID]
			if !ok {
				delete(scores, pageID)
				continue
			}
			scores[pageID] += rank
		}
		if len(scores) == 0 {
			return scores, nil
		}
	}

	return scores, nil
}

// render turns scored pages into display items sorted by absolute
// relevance descending, with relative relevance normalized into (0, 1].
func (e *Engine) render(query string, scores map[int]float64) ([]Item, error) {
	type scored struct {
		pageID int
		abs    float64
	}

	ranked := make([]scored, 0, len(scores))
	maxAbs := 0.0
	for pageID, abs := range scores {
		ranked = append(ranked, scored{pageID: pageID, abs: abs})
		if abs > maxAbs {
			maxAbs = abs
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].abs != ranked[j].abs {
			return ranked[i].abs > ranked[j].abs
		}
		return ranked[i].pageID < ranked[j].pageID
	})

	sites := make(map[int]*storage.Site)

	items := make([]Item, 0, len(ranked))
	for _, r := range ranked {
		page, err := e.store.PageByID(r.pageID)
		if err != nil {
			return nil, fmt.Errorf("failed to load result page: %w", err)
		}

		site, ok := sites[page.SiteID]
		if !ok {
			site, err = e.store.SiteByID(page.SiteID)
			if err != nil {
				return nil, fmt.Errorf("failed to load result site: %w", err)
			}
			sites[page.SiteID] = site
		}

		items = append(items, Item{
			Site:      site.URL,
			SiteName:  site.Name,
			URI:       page.Path,
			Title:     parser.Title(page.Content),
			Snippet:   Snippet(query, page.Content, e.opts.SnippetRadius),
			Relevance: r.abs / maxAbs,
		})
	}

	return items, nil
}

// paginate slices the fully sorted items, keeping the pre-pagination total.
func paginate(items []Item, offset, limit int) *Result {
	total := len(items)

	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	return &Result{Count: total, Items: items[offset:end]}
}
