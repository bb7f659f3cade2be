package ingest

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/japaniel/syllabler/pkg/db"
	"github.com/japaniel/syllabler/pkg/overrides"
	"github.com/japaniel/syllabler/pkg/syllable"
	"github.com/japaniel/syllabler/pkg/verse"
	_ "github.com/mattn/go-sqlite3"
)

func setupDB(t *testing.T) *sql.DB {
	conn, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	// One connection, otherwise every connection gets its own in-memory database.
	conn.SetMaxOpenConns(1)
	if err := db.InitDB(conn); err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	return conn
}

var oldPond = []string{
	"An old silent pond",
	"A frog jumps into the pond",
	"splash! Silence again.",
}

func TestIngestStoresLinesAndWords(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	sourceID, err := db.CreateOrGetSource(conn, "text", "The Old Pond", "Basho", "", "", "")
	if err != nil {
		t.Fatal(err)
	}

	ingester := NewIngester(conn, nil)
	ingester.Workers = 3
	ingester.BatchSize = 2

	count, err := ingester.Ingest(context.Background(), sourceID, oldPond)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if count != 13 {
		t.Errorf("expected 13 linked occurrences, got %d", count)
	}

	lines, err := db.GetLinesBySource(conn, sourceID)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 stored lines, got %d", len(lines))
	}
	want := []int{5, 7, 5}
	for i, l := range lines {
		if l.Index != i || l.Text != oldPond[i] {
			t.Errorf("line %d stored as %d %q", i, l.Index, l.Text)
		}
		if l.Syllables != want[i] {
			t.Errorf("line %d: expected %d syllables, got %d", i, want[i], l.Syllables)
		}
	}

	var pond int
	err = conn.QueryRow(`SELECT ws.occurrence_count FROM word_sources ws JOIN words w ON w.id = ws.word_id
		WHERE w.word = 'pond' AND ws.source_id = ?`, sourceID).Scan(&pond)
	if err != nil {
		t.Fatal(err)
	}
	if pond != 2 {
		t.Errorf("expected pond to occur twice, got %d", pond)
	}

	progress, err := db.GetSourceProgress(conn, sourceID)
	if err != nil {
		t.Fatal(err)
	}
	if progress != 2 {
		t.Errorf("expected progress 2, got %d", progress)
	}
}

func TestIngestUsesAnalyzerOverrides(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	sourceID, err := db.CreateOrGetSource(conn, "text", "Fire", "", "", "", "")
	if err != nil {
		t.Fatal(err)
	}

	analyzer := verse.NewAnalyzer(syllable.New(overrides.Table{"fire": 2}))
	ingester := NewIngester(conn, analyzer)
	if _, err := ingester.Ingest(context.Background(), sourceID, []string{"fire fire"}); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	words, err := db.GetWordsBySource(conn, sourceID)
	if err != nil {
		t.Fatal(err)
	}
	if len(words) != 1 || words[0].Word != "fire" || words[0].Syllables != 2 {
		t.Fatalf("unexpected words: %+v", words)
	}
	lines, err := db.GetLinesBySource(conn, sourceID)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0].Syllables != 4 {
		t.Fatalf("unexpected lines: %+v", lines)
	}
}

func TestIngestResume(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	sourceID, err := db.CreateOrGetSource(conn, "test", "Title", "Author", "Site", "http://test", "")
	if err != nil {
		t.Fatal(err)
	}

	lines := make([]string, 10)
	for i := range lines {
		lines[i] = "cat"
	}

	// Lines 0 through 4 count as already processed.
	if err := db.UpdateSourceProgress(conn, sourceID, 4); err != nil {
		t.Fatal(err)
	}

	ingester := NewIngester(conn, nil)
	ingester.BatchSize = 2

	var mu sync.Mutex
	var seen []int
	ingester.OnProgress = func(current, total int) {
		mu.Lock()
		seen = append(seen, current)
		mu.Unlock()
		if total != 10 {
			t.Errorf("expected total 10, got %d", total)
		}
	}

	count, err := ingester.Ingest(context.Background(), sourceID, lines)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if count != 5 {
		t.Errorf("Expected 5 linked items, got %d", count)
	}

	stored, err := db.GetLinesBySource(conn, sourceID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 5 || stored[0].Index != 5 || stored[4].Index != 9 {
		t.Fatalf("expected lines 5..9 to be stored, got %+v", stored)
	}
	if len(seen) != 5 || seen[len(seen)-1] != 10 {
		t.Errorf("unexpected progress callbacks: %v", seen)
	}

	// A second run has nothing left to do.
	count, err = ingester.Ingest(context.Background(), sourceID, lines)
	if err != nil || count != 0 {
		t.Fatalf("expected no-op rerun, got %d, %v", count, err)
	}
}

func TestIngestReportsLinesInOrderAfterCommit(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	sourceID, err := db.CreateOrGetSource(conn, "text", "The Old Pond", "Basho", "", "", "")
	if err != nil {
		t.Fatal(err)
	}

	ingester := NewIngester(conn, nil)
	ingester.Workers = 3
	ingester.BatchSize = 1

	var indexes []int
	var syllables []int
	ingester.OnLine = func(index int, line verse.Line) {
		indexes = append(indexes, index)
		syllables = append(syllables, line.Syllables)
	}
	if _, err := ingester.Ingest(context.Background(), sourceID, oldPond); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if len(indexes) != 3 || indexes[0] != 0 || indexes[1] != 1 || indexes[2] != 2 {
		t.Fatalf("expected lines 0,1,2 in order, got %v", indexes)
	}
	if syllables[0] != 5 || syllables[1] != 7 || syllables[2] != 5 {
		t.Fatalf("unexpected syllables: %v", syllables)
	}
}

func TestIngestCountsOnlyCommittedLinks(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	sourceID, err := db.CreateOrGetSource(conn, "text", "The Old Pond", "Basho", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	// The second line fails after the first has been written in the same batch.
	_, err = conn.Exec(`CREATE TRIGGER no_frogs BEFORE INSERT ON lines
		WHEN NEW.text LIKE '%frog%' BEGIN SELECT RAISE(ABORT, 'no frogs'); END`)
	if err != nil {
		t.Fatal(err)
	}

	ingester := NewIngester(conn, nil)
	ingester.BatchSize = 10
	ingester.FlushInterval = 0
	committed := 0
	ingester.OnLine = func(int, verse.Line) { committed++ }

	count, err := ingester.Ingest(context.Background(), sourceID, oldPond)
	if err == nil {
		t.Fatal("expected the rolled back batch to surface an error")
	}
	if count != 0 {
		t.Errorf("expected no links from a rolled back batch, got %d", count)
	}
	if committed != 0 {
		t.Errorf("expected no committed lines, got %d", committed)
	}

	lines, err := db.GetLinesBySource(conn, sourceID)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 0 {
		t.Errorf("expected nothing stored, got %+v", lines)
	}
}

func TestIngestUnknownSource(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()

	if _, err := NewIngester(conn, nil).Ingest(context.Background(), 42, oldPond); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestIngestContextCancel(t *testing.T) {
	conn := setupDB(t)
	defer conn.Close()
	sourceID, _ := db.CreateOrGetSource(conn, "test", "Title", "", "", "http://test2", "")

	lines := make([]string, 100)
	for i := range lines {
		lines[i] = "the quick brown fox"
	}

	ingester := NewIngester(conn, nil)
	ingester.BatchSize = 10

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count, err := ingester.Ingest(ctx, sourceID, lines)
	if count != 0 {
		t.Errorf("Expected 0 linked items with cancelled context, got %d", count)
	}
	if err != context.Canceled {
		t.Errorf("Expected context.Canceled error, got %v", err)
	}
}

func TestTally(t *testing.T) {
	line := verse.Line{Words: []verse.Word{
		{Surface: "Pond", Syllables: 1},
		{Surface: "frog", Syllables: 1},
		{Surface: "pond", Syllables: 1},
	}}
	got := tally(line)
	if len(got) != 2 {
		t.Fatalf("expected 2 distinct words, got %+v", got)
	}
	if got[0].Word != "pond" || got[0].Count != 2 || got[1].Word != "frog" || got[1].Count != 1 {
		t.Fatalf("unexpected tally: %+v", got)
	}
}
