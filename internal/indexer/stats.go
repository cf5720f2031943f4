package indexer

import "github.com/lemmatic/sitesearch/internal/storage"

// StatsStore is the read side used for the statistics report.
type StatsStore interface {
	Sites() ([]storage.Site, error)
	CountPages(siteID int) (int, error)
	CountLemmas(siteID int) (int, error)
}

// SiteStatistics aggregates one site's index size.
type SiteStatistics struct {
	Site   storage.Site
	Pages  int
	Lemmas int
}

// Statistics reports per-site page and lemma counts for every known site.
func Statistics(store StatsStore) ([]SiteStatistics, error) {
	sites, err := store.Sites()
	if err != nil {
		return nil, err
	}

	stats := make([]SiteStatistics, 0, len(sites))
	for _, site := range sites {
		pages, err := store.CountPages(site.ID)
		if err != nil {
			return nil, err
		}
		lemmas, err := store.CountLemmas(site.ID)
		if err != nil {
			return nil, err
		}
		stats = append(stats, SiteStatistics{Site: site, Pages: pages, Lemmas: lemmas})
	}

	return stats, nil
}
