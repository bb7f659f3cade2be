package db

// migrationsSQL is applied statement by statement by InitDB. Every
// statement must be idempotent.
const migrationsSQL = `
CREATE TABLE IF NOT EXISTS overrides (
	word       TEXT PRIMARY KEY,
	syllables  INTEGER NOT NULL CHECK (syllables >= 0),
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS words (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	word      TEXT NOT NULL UNIQUE,
	syllables INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sources (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	source_type         TEXT NOT NULL,
	title               TEXT,
	author              TEXT,
	website             TEXT,
	url                 TEXT,
	meta                TEXT,
	added_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_processed_line INTEGER NOT NULL DEFAULT -1,
	UNIQUE (url, title, author)
);

CREATE TABLE IF NOT EXISTS lines (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id  INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	line_index INTEGER NOT NULL,
	text       TEXT NOT NULL,
	syllables  INTEGER NOT NULL,
	UNIQUE (source_id, line_index)
);

CREATE TABLE IF NOT EXISTS word_sources (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	word_id          INTEGER NOT NULL REFERENCES words(id) ON DELETE CASCADE,
	source_id        INTEGER NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
	occurrence_count INTEGER NOT NULL DEFAULT 0,
	first_seen_at    DATETIME NOT NULL,
	UNIQUE (word_id, source_id)
);

CREATE INDEX IF NOT EXISTS idx_lines_source ON lines(source_id);
CREATE INDEX IF NOT EXISTS idx_word_sources_source ON word_sources(source_id)
`
