package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

// UpsertOverride inserts or replaces the syllable count for word.
func UpsertOverride(db DBExecutor, word string, syllables int) error {
	w := strings.ToLower(strings.TrimSpace(word))
	if w == "" {
		return fmt.Errorf("word must be non-empty")
	}
	if syllables < 0 {
		return fmt.Errorf("syllables must be non-negative, got %d", syllables)
	}
	_, err := db.Exec(`INSERT INTO overrides (word, syllables, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(word) DO UPDATE SET syllables = excluded.syllables, updated_at = excluded.updated_at`,
		w, syllables, time.Now())
	if err != nil {
		return fmt.Errorf("upsert override %q: %w", w, err)
	}
	return nil
}

// DeleteOverride removes word from the override table. Missing words are not an error.
func DeleteOverride(db DBExecutor, word string) error {
	_, err := db.Exec(`DELETE FROM overrides WHERE word = ?`, strings.ToLower(strings.TrimSpace(word)))
	return err
}

// ListOverrides returns every override sorted by word.
func ListOverrides(db DBExecutor) ([]Override, error) {
	rows, err := db.Query(`SELECT word, syllables, updated_at FROM overrides ORDER BY word`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Override
	for rows.Next() {
		var o Override
		if err := rows.Scan(&o.Word, &o.Syllables, &o.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateOrGetWord returns existing word id or inserts a new word and returns its id.
// The stored syllable count is refreshed on every call.
func CreateOrGetWord(db DBExecutor, word string, syllables int) (int64, error) {
	trimmedWord := strings.TrimSpace(word)
	if trimmedWord == "" {
		return 0, fmt.Errorf("word must be non-empty")
	}

	var id int64
	query := `INSERT INTO words (word, syllables)
			  VALUES (?, ?)
			  ON CONFLICT(word)
			  DO UPDATE SET syllables = excluded.syllables
			  RETURNING id`

	err := db.QueryRow(query, trimmedWord, syllables).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert word: %w", err)
	}
	return id, nil
}

// CreateOrGetSource returns existing source id or inserts a new source and returns its id.
func CreateOrGetSource(db DBExecutor, sourceType, title, author, website, url, meta string) (int64, error) {
	trimmedSourceType := strings.TrimSpace(sourceType)
	if trimmedSourceType == "" {
		return 0, fmt.Errorf("sourceType must be non-empty")
	}

	const maxRetries = 3

	var id int64
	for attempt := 0; attempt < maxRetries; attempt++ {
		// First, try to find an existing source.
		err := db.QueryRow(
			`SELECT id FROM sources WHERE IFNULL(url, '') = ? AND IFNULL(title, '') = ? AND IFNULL(author, '') = ?`,
			url, title, author,
		).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, err
		}

		res, err := db.Exec(
			`INSERT INTO sources (source_type, title, author, website, url, meta) VALUES (?, ?, ?, ?, ?, ?)`,
			trimmedSourceType, title, author, website, url, meta,
		)
		if err != nil {
			// Another writer inserted the same source; select again.
			if isUniqueConstraintErr(err) {
				continue
			}
			return 0, err
		}
		return res.LastInsertId()
	}

	return 0, fmt.Errorf("could not create or get source after %d retries", maxRetries)
}

// SaveLine stores the scored line at index for a source, replacing any
// previous score for the same position.
func SaveLine(db DBExecutor, sourceID int64, index int, text string, syllables int) error {
	if sourceID <= 0 {
		return fmt.Errorf("sourceID must be positive")
	}
	if index < 0 {
		return fmt.Errorf("line index must be non-negative, got %d", index)
	}
	_, err := db.Exec(`INSERT INTO lines (source_id, line_index, text, syllables) VALUES (?, ?, ?, ?)
		ON CONFLICT(source_id, line_index) DO UPDATE SET text = excluded.text, syllables = excluded.syllables`,
		sourceID, index, text, syllables)
	return err
}

// LinkWordToSource links the word and source, creating or updating an entry in word_sources.
func LinkWordToSource(db DBExecutor, wordID, sourceID int64, incrementAmount int) error {
	if wordID <= 0 {
		return fmt.Errorf("wordID must be positive")
	}
	if sourceID <= 0 {
		return fmt.Errorf("sourceID must be positive")
	}
	if incrementAmount < 1 {
		return fmt.Errorf("incrementAmount must be positive, got %d", incrementAmount)
	}

	_, err := db.Exec(`INSERT INTO word_sources (word_id, source_id, occurrence_count, first_seen_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(word_id, source_id) DO UPDATE SET
	  occurrence_count = word_sources.occurrence_count + excluded.occurrence_count`,
		wordID, sourceID, incrementAmount, time.Now())
	return err
}

// GetWordsBySource returns words associated with a given source id.
func GetWordsBySource(db DBExecutor, sourceID int64) ([]Word, error) {
	rows, err := db.Query(`SELECT w.id, w.word, w.syllables FROM words w JOIN word_sources ws ON ws.word_id = w.id WHERE ws.source_id = ? ORDER BY w.word`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Word
	for rows.Next() {
		var w Word
		if err := rows.Scan(&w.ID, &w.Word, &w.Syllables); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetLinesBySource returns the scored lines of a source in order.
func GetLinesBySource(db DBExecutor, sourceID int64) ([]Line, error) {
	rows, err := db.Query(`SELECT id, source_id, line_index, text, syllables FROM lines WHERE source_id = ? ORDER BY line_index`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.SourceID, &l.Index, &l.Text, &l.Syllables); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetSourceProgress returns the last processed line index for a source.
func GetSourceProgress(db DBExecutor, sourceID int64) (int, error) {
	var index int
	err := db.QueryRow("SELECT last_processed_line FROM sources WHERE id = ?", sourceID).Scan(&index)
	if err != nil {
		return 0, err
	}
	return index, nil
}

// UpdateSourceProgress updates the last processed line index.
func UpdateSourceProgress(db DBExecutor, sourceID int64, index int) error {
	_, err := db.Exec("UPDATE sources SET last_processed_line = ? WHERE id = ?", index, sourceID)
	return err
}
