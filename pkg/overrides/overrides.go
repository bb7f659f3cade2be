// Package overrides manages the word to syllable-count table that takes
// precedence over the rule cascade in package syllable.
package overrides

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Table maps a lower-cased word to its syllable count.
type Table map[string]int

// Lookup implements syllable.Overrides.
func (t Table) Lookup(word string) (int, bool) {
	n, ok := t[strings.ToLower(word)]
	return n, ok
}

// Words returns the keys of t in sorted order.
func (t Table) Words() []string {
	words := make([]string, 0, len(t))
	for w := range t {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// ErrInvalidInput is wrapped by every row validation failure.
var ErrInvalidInput = errors.New("invalid override row")

// InvalidInputError reports a malformed row in an override source.
type InvalidInputError struct {
	Row    int
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// Load reads a two-column CSV (word, count). A first row whose count column
// is not a number is treated as a header. Later rows with duplicate words
// replace earlier ones.
func Load(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	t := make(Table)
	row := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read overrides: %w", err)
		}
		row++

		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) != 2 {
			return nil, &InvalidInputError{Row: row, Reason: fmt.Sprintf("expected 2 columns, got %d", len(rec))}
		}

		word := strings.ToLower(strings.TrimSpace(rec[0]))
		count, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			if row == 1 {
				continue // header
			}
			return nil, &InvalidInputError{Row: row, Reason: fmt.Sprintf("count %q is not an integer", rec[1])}
		}
		if word == "" {
			return nil, &InvalidInputError{Row: row, Reason: "empty word"}
		}
		if count < 0 {
			return nil, &InvalidInputError{Row: row, Reason: fmt.Sprintf("negative count %d", count)}
		}
		t[word] = count
	}
	return t, nil
}

// LoadFile opens path and loads it with Load.
func LoadFile(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Write serializes t as CSV sorted by word.
func Write(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	for _, word := range t.Words() {
		if err := cw.Write([]string{word, strconv.Itoa(t[word])}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// NormalizeAndPersist rewrites the CSV at path with lower-cased, de-duplicated
// keys in sorted order. The file is replaced atomically.
func NormalizeAndPersist(path string) (Table, error) {
	t, err := LoadFile(path)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".overrides-*.csv")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, t); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write overrides: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("replace %s: %w", path, err)
	}
	return t, nil
}
