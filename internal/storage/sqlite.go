// Package storage provides data persistence for the search engine. It
// implements SQLite-based storage for sites, pages, lemmas and postings
// with cascade deletes keeping the inverted index consistent.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// SQLiteStorage implements the persistence gateway using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at dbPath and ensures
// the schema exists.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection prevents lock conflicts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	storage := &SQLiteStorage{db: db}

	if err := storage.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// InitSchema creates the database schema.
func (s *SQLiteStorage) InitSchema() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON", // cascades depend on this
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 30000",
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// CreateSite inserts a new site row and fills in its ID.
func (s *SQLiteStorage) CreateSite(site *Site) error {
	err := s.db.QueryRow(`
		INSERT INTO sites (url, name, status, status_time, last_error)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`, site.URL, site.Name, string(site.Status), site.StatusTime, site.LastError).Scan(&site.ID)

	if err != nil {
		return fmt.Errorf("failed to create site %s: %w", site.URL, err)
	}
	return nil
}

// UpdateSiteStatus finalizes a site's status and error message.
func (s *SQLiteStorage) UpdateSiteStatus(id int, status SiteStatus, lastError string) error {
	_, err := s.db.Exec(`
		UPDATE sites SET status = ?, status_time = ?, last_error = ? WHERE id = ?
	`, string(status), time.Now(), lastError, id)

	if err != nil {
		return fmt.Errorf("failed to update site status: %w", err)
	}
	return nil
}

// SiteExists reports whether a site with the given URL is already known.
func (s *SQLiteStorage) SiteExists(url string) (bool, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sites WHERE url = ?", url).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check site existence: %w", err)
	}
	return count > 0, nil
}

// SiteByURL returns the site with the given root URL, or ErrNotFound.
func (s *SQLiteStorage) SiteByURL(url string) (*Site, error) {
	return s.siteBy("url = ?", url)
}

// SiteByID returns the site with the given id, or ErrNotFound.
func (s *SQLiteStorage) SiteByID(id int) (*Site, error) {
	return s.siteBy("id = ?", id)
}

func (s *SQLiteStorage) siteBy(where string, arg any) (*Site, error) {
	var site Site
	var status string
	err := s.db.QueryRow(`
		SELECT id, url, name, status, status_time, last_error
		FROM sites WHERE `+where, arg,
	).Scan(&site.ID, &site.URL, &site.Name, &status, &site.StatusTime, &site.LastError)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query site: %w", err)
	}

	site.Status = SiteStatus(status)
	return &site, nil
}

// Sites returns all known sites ordered by id.
func (s *SQLiteStorage) Sites() ([]Site, error) {
	rows, err := s.db.Query(`
		SELECT id, url, name, status, status_time, last_error
		FROM sites ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sites []Site
	for rows.Next() {
		var site Site
		var status string
		if err := rows.Scan(&site.ID, &site.URL, &site.Name, &status, &site.StatusTime, &site.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		site.Status = SiteStatus(status)
		sites = append(sites, site)
	}

	return sites, rows.Err()
}

// DeleteSite removes a site and, via cascades, all its pages, lemmas and
// postings. Returns ErrNotFound when no site with that id exists.
func (s *SQLiteStorage) DeleteSite(id int) error {
	result, err := s.db.Exec("DELETE FROM sites WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveSiteIndex persists the whole index of one site in a single
// transaction: pages first, then lemmas merged by text, then postings.
// The write order guarantees postings never reference uncommitted rows.
func (s *SQLiteStorage) SaveSiteIndex(siteID int, pages []PageIndex) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := saveIndexTx(tx, siteID, pages); err != nil {
		return err
	}

	return tx.Commit()
}

// SavePageIndex persists a single re-indexed page with its lemma
// contributions and postings, in one transaction.
func (s *SQLiteStorage) SavePageIndex(siteID int, page PageIndex) error {
	return s.SaveSiteIndex(siteID, []PageIndex{page})
}

func saveIndexTx(tx *sql.Tx, siteID int, pages []PageIndex) error {
	pageStmt, err := tx.Prepare(`
		INSERT INTO pages (site_id, path, code, content)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer func() { _ = pageStmt.Close() }()

	// First occurrence of a lemma for the site creates the row; later
	// occurrences add to the aggregate frequency.
	lemmaStmt, err := tx.Prepare(`
		INSERT INTO lemmas (site_id, lemma, frequency)
		VALUES (?, ?, ?)
		ON CONFLICT(site_id, lemma) DO UPDATE SET frequency = frequency + excluded.frequency
		RETURNING id
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare lemma upsert: %w", err)
	}
	defer func() { _ = lemmaStmt.Close() }()

	postingStmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO postings (page_id, lemma_id, rank)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare posting insert: %w", err)
	}
	defer func() { _ = postingStmt.Close() }()

	lemmaIDs := make(map[string]int)

	for _, pi := range pages {
		var pageID int
		if err := pageStmt.QueryRow(siteID, pi.Page.Path, pi.Page.Code, pi.Page.Content).Scan(&pageID); err != nil {
			return fmt.Errorf("failed to insert page %s: %w", pi.Page.Path, err)
		}

		// Deterministic order keeps the transaction replayable in tests.
		texts := make([]string, 0, len(pi.Lemmas))
		for text := range pi.Lemmas {
			texts = append(texts, text)
		}
		sort.Strings(texts)

		for _, text := range texts {
			rank := pi.Lemmas[text]

			lemmaID, ok := lemmaIDs[text]
			if !ok {
				if err := lemmaStmt.QueryRow(siteID, text, int(rank)).Scan(&lemmaID); err != nil {
					return fmt.Errorf("failed to upsert lemma %s: %w", text, err)
				}
				lemmaIDs[text] = lemmaID
			} else {
				if _, err := tx.Exec(
					"UPDATE lemmas SET frequency = frequency + ? WHERE id = ?",
					int(rank), lemmaID,
				); err != nil {
					return fmt.Errorf("failed to increment lemma %s: %w", text, err)
				}
			}

			if _, err := postingStmt.Exec(pageID, lemmaID, rank); err != nil {
				return fmt.Errorf("failed to insert posting: %w", err)
			}
		}
	}

	return nil
}

// PageByPath returns the live page at the given site-relative path, or
// ErrNotFound.
func (s *SQLiteStorage) PageByPath(siteID int, path string) (*Page, error) {
	var page Page
	err := s.db.QueryRow(`
		SELECT id, site_id, path, code, content
		FROM pages WHERE site_id = ? AND path = ?
	`, siteID, path).Scan(&page.ID, &page.SiteID, &page.Path, &page.Code, &page.Content)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query page: %w", err)
	}
	return &page, nil
}

// PageByID returns the page with the given id, or ErrNotFound.
func (s *SQLiteStorage) PageByID(id int) (*Page, error) {
	var page Page
	err := s.db.QueryRow(`
		SELECT id, site_id, path, code, content FROM pages WHERE id = ?
	`, id).Scan(&page.ID, &page.SiteID, &page.Path, &page.Code, &page.Content)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query page: %w", err)
	}
	return &page, nil
}

// DeletePage removes a page; its postings go with it via the cascade.
func (s *SQLiteStorage) DeletePage(id int) error {
	if _, err := s.db.Exec("DELETE FROM pages WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete page: %w", err)
	}
	return nil
}

// PageLemmaRanks returns the lemma text -> rank contributions of one page,
// used to roll back its share of site-level frequencies on re-index.
func (s *SQLiteStorage) PageLemmaRanks(pageID int) (map[string]float64, error) {
	rows, err := s.db.Query(`
		SELECT l.lemma, p.rank
		FROM postings p JOIN lemmas l ON l.id = p.lemma_id
		WHERE p.page_id = ?
	`, pageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query page lemmas: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ranks := make(map[string]float64)
	for rows.Next() {
		var text string
		var rank float64
		if err := rows.Scan(&text, &rank); err != nil {
			return nil, fmt.Errorf("failed to scan page lemma: %w", err)
		}
		ranks[text] = rank
	}

	return ranks, rows.Err()
}

// DecrementLemmas subtracts per-lemma counts from the site's aggregate
// frequencies and drops lemma rows that reach zero (their postings cascade).
func (s *SQLiteStorage) DecrementLemmas(siteID int, counts map[string]float64) error {
	if len(counts) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for text, count := range counts {
		if _, err := tx.Exec(`
			UPDATE lemmas SET frequency = frequency - ?
			WHERE site_id = ? AND lemma = ?
		`, int(count), siteID, text); err != nil {
			return fmt.Errorf("failed to decrement lemma %s: %w", text, err)
		}
	}

	if _, err := tx.Exec(
		"DELETE FROM lemmas WHERE site_id = ? AND frequency <= 0", siteID,
	); err != nil {
		return fmt.Errorf("failed to drop empty lemmas: %w", err)
	}

	return tx.Commit()
}

// LemmasByTexts resolves lemma rows matching any of the given texts.
// siteID 0 searches across all sites.
func (s *SQLiteStorage) LemmasByTexts(siteID int, texts []string) ([]Lemma, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(texts))
	placeholders = placeholders[:len(placeholders)-1]

	query := "SELECT id, site_id, lemma, frequency FROM lemmas WHERE lemma IN (" + placeholders + ")"
	args := make([]any, 0, len(texts)+1)
	for _, t := range texts {
		args = append(args, t)
	}
	if siteID != 0 {
		query += " AND site_id = ?"
		args = append(args, siteID)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lemmas: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var lemmas []Lemma
	for rows.Next() {
		var l Lemma
		if err := rows.Scan(&l.ID, &l.SiteID, &l.Text, &l.Frequency); err != nil {
			return nil, fmt.Errorf("failed to scan lemma: %w", err)
		}
		lemmas = append(lemmas, l)
	}

	return lemmas, rows.Err()
}

// CountPages returns the number of live pages, for one site or for all
// sites when siteID is 0.
func (s *SQLiteStorage) CountPages(siteID int) (int, error) {
	query := "SELECT COUNT(*) FROM pages"
	var args []any
	if siteID != 0 {
		query += " WHERE site_id = ?"
		args = append(args, siteID)
	}

	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return count, nil
}

// CountLemmas returns the number of distinct lemmas, for one site or for
// all sites when siteID is 0.
func (s *SQLiteStorage) CountLemmas(siteID int) (int, error) {
	query := "SELECT COUNT(*) FROM lemmas"
	var args []any
	if siteID != 0 {
		query += " WHERE site_id = ?"
		args = append(args, siteID)
	}

	var count int
	if err := s.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count lemmas: %w", err)
	}
	return count, nil
}

// DocumentFrequency returns the number of distinct pages containing the
// lemma.
func (s *SQLiteStorage) DocumentFrequency(lemmaID int) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(DISTINCT page_id) FROM postings WHERE lemma_id = ?", lemmaID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// PostingsByLemma returns all postings of one lemma.
func (s *SQLiteStorage) PostingsByLemma(lemmaID int) ([]Posting, error) {
	rows, err := s.db.Query(`
		SELECT id, page_id, lemma_id, rank FROM postings WHERE lemma_id = ?
	`, lemmaID)
	if err != nil {
		return nil, fmt.Errorf("failed to query postings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var postings []Posting
	for rows.Next() {
		var p Posting
		if err := rows.Scan(&p.ID, &p.PageID, &p.LemmaID, &p.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan posting: %w", err)
		}
		postings = append(postings, p)
	}

	return postings, rows.Err()
}
