package db

import "time"

// Override is a persisted word to syllable-count exception.
type Override struct {
	Word      string
	Syllables int
	UpdatedAt time.Time
}

// Word is a distinct word seen in any scanned source.
type Word struct {
	ID        int64
	Word      string
	Syllables int
}

// Source is a provenance record for a scanned text.
type Source struct {
	ID                int64
	SourceType        string
	Title             string
	Author            string
	Website           string
	URL               string
	Meta              string
	AddedAt           time.Time
	LastProcessedLine int
}

// Line is one scored line of a source.
type Line struct {
	ID        int64
	SourceID  int64
	Index     int
	Text      string
	Syllables int
}

// WordSource links a Word with a Source.
type WordSource struct {
	ID              int64
	WordID          int64
	SourceID        int64
	OccurrenceCount int
	FirstSeenAt     time.Time
}
