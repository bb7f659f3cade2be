package db

import (
	"database/sql"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Ensure single connection to avoid separate in-memory DBs per connection.
	db.SetMaxOpenConns(1)
	if err := InitDB(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestUpsertAndListOverrides(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if err := UpsertOverride(db, "Fire", 2); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := UpsertOverride(db, "poem", 2); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := UpsertOverride(db, "fire", 1); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	got, err := ListOverrides(db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 overrides, got %d", len(got))
	}
	if got[0].Word != "fire" || got[0].Syllables != 1 {
		t.Fatalf("expected fire=1 first, got %+v", got[0])
	}
	if got[1].Word != "poem" || got[1].Syllables != 2 {
		t.Fatalf("expected poem=2 second, got %+v", got[1])
	}

	if err := DeleteOverride(db, "FIRE"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err = ListOverrides(db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 override after delete, got %d", len(got))
	}
}

func TestUpsertOverrideRejectsInvalid(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if err := UpsertOverride(db, "  ", 1); err == nil {
		t.Fatal("expected error for empty word")
	}
	if err := UpsertOverride(db, "word", -1); err == nil {
		t.Fatal("expected error for negative count")
	}
}

func TestCreateOrGetWord(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	id1, err := CreateOrGetWord(db, "happiness", 3)
	if err != nil {
		t.Fatalf("create word: %v", err)
	}
	id2, err := CreateOrGetWord(db, "happiness", 3)
	if err != nil {
		t.Fatalf("get word: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same id, got %d and %d", id1, id2)
	}
	if _, err := CreateOrGetWord(db, " ", 1); err == nil {
		t.Fatal("expected error for empty word")
	}
}

func TestCreateOrGetSource(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	id1, err := CreateOrGetSource(db, "website_article", "", "", "example.com", "https://example.com/a", "")
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	id2, err := CreateOrGetSource(db, "website_article", "", "", "example.com", "https://example.com/a", "")
	if err != nil {
		t.Fatalf("get source: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same source id, got %d and %d", id1, id2)
	}
}

func TestLinkAndQuery(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	wID, err := CreateOrGetWord(db, "wanted", 2)
	if err != nil {
		t.Fatalf("create word: %v", err)
	}
	sID, err := CreateOrGetSource(db, "website_article", "", "", "example.com", "https://example.com/b", "")
	if err != nil {
		t.Fatalf("create source: %v", err)
	}
	if err := LinkWordToSource(db, wID, sID, 1); err != nil {
		t.Fatalf("link: %v", err)
	}
	// Link again to test occurrence_count increment via upsert
	if err := LinkWordToSource(db, wID, sID, 2); err != nil {
		t.Fatalf("link 2: %v", err)
	}
	var cnt int
	err = db.QueryRow(`SELECT occurrence_count FROM word_sources WHERE word_id = ? AND source_id = ?`, wID, sID).Scan(&cnt)
	if err != nil {
		t.Fatalf("query count: %v", err)
	}
	if cnt != 3 {
		t.Fatalf("expected occurrence_count=3, got %d", cnt)
	}

	words, err := GetWordsBySource(db, sID)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(words) != 1 {
		t.Fatalf("expected 1 word, got %d", len(words))
	}
	if words[0].Word != "wanted" || words[0].Syllables != 2 {
		t.Fatalf("expected wanted/2, got %+v", words[0])
	}

	if err := LinkWordToSource(db, wID, sID, 0); err == nil {
		t.Fatal("expected error for zero increment")
	}
}

func TestSaveLineAndProgress(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	sID, err := CreateOrGetSource(db, "file", "Haiku", "", "", "file:///haiku.txt", "")
	if err != nil {
		t.Fatalf("create source: %v", err)
	}

	progress, err := GetSourceProgress(db, sID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress != -1 {
		t.Fatalf("expected fresh source progress -1, got %d", progress)
	}

	if err := SaveLine(db, sID, 1, "second line", 7); err != nil {
		t.Fatalf("save line: %v", err)
	}
	if err := SaveLine(db, sID, 0, "first line", 4); err != nil {
		t.Fatalf("save line: %v", err)
	}
	// Re-scoring a line replaces it.
	if err := SaveLine(db, sID, 0, "first line", 5); err != nil {
		t.Fatalf("save line again: %v", err)
	}
	if err := UpdateSourceProgress(db, sID, 1); err != nil {
		t.Fatalf("update progress: %v", err)
	}

	lines, err := GetLinesBySource(db, sID)
	if err != nil {
		t.Fatalf("lines: %v", err)
	}
	want := []Line{
		{SourceID: sID, Index: 0, Text: "first line", Syllables: 5},
		{SourceID: sID, Index: 1, Text: "second line", Syllables: 7},
	}
	if diff := cmp.Diff(want, lines, cmpopts.IgnoreFields(Line{}, "ID")); diff != "" {
		t.Fatalf("lines mismatch (-want +got):\n%s", diff)
	}

	progress, err = GetSourceProgress(db, sID)
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress != 1 {
		t.Fatalf("expected progress 1, got %d", progress)
	}
}

func TestCreateOrGetSourceConcurrency(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	const n = 8
	ids := make(chan int64, n)
	for i := 0; i < n; i++ {
		go func() {
			id, err := CreateOrGetSource(db, "website_article", "Title", "Author", "example.com", "https://example.com/c", "")
			if err != nil {
				t.Errorf("create or get source: %v", err)
				ids <- 0
				return
			}
			ids <- id
		}()
	}
	var first int64
	for i := 0; i < n; i++ {
		id := <-ids
		if id == 0 {
			t.Fatalf("error in goroutine")
		}
		if i == 0 {
			first = id
		}
		if id != first {
			t.Fatalf("expected same id, got %d and %d", first, id)
		}
	}
	var cnt int
	err := db.QueryRow(`SELECT COUNT(*) FROM sources WHERE url = ?`, "https://example.com/c").Scan(&cnt)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if cnt != 1 {
		t.Fatalf("expected 1 source row, got %d", cnt)
	}
}
