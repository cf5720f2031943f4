package storage

const schemaSQL = `
CREATE TABLE IF NOT EXISTS sites (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    url TEXT UNIQUE NOT NULL,
    name TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('indexing', 'indexed', 'failed')),
    status_time DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_error TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS pages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    site_id INTEGER NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
    path TEXT NOT NULL,
    code INTEGER NOT NULL,
    content TEXT NOT NULL,
    UNIQUE(site_id, path)
);

CREATE INDEX IF NOT EXISTS idx_pages_site ON pages(site_id);

CREATE TABLE IF NOT EXISTS lemmas (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    site_id INTEGER NOT NULL REFERENCES sites(id) ON DELETE CASCADE,
    lemma TEXT NOT NULL,
    frequency INTEGER NOT NULL DEFAULT 0,
    UNIQUE(site_id, lemma)
);

CREATE INDEX IF NOT EXISTS idx_lemmas_text ON lemmas(lemma);

-- Postings reference pages and lemmas of the same site; cascades keep the
-- inverted index consistent when either side is deleted.
CREATE TABLE IF NOT EXISTS postings (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    page_id INTEGER NOT NULL REFERENCES pages(id) ON DELETE CASCADE,
    lemma_id INTEGER NOT NULL REFERENCES lemmas(id) ON DELETE CASCADE,
    rank REAL NOT NULL,
    UNIQUE(page_id, lemma_id)
);

CREATE INDEX IF NOT EXISTS idx_postings_lemma ON postings(lemma_id);
CREATE INDEX IF NOT EXISTS idx_postings_page ON postings(page_id);
`
