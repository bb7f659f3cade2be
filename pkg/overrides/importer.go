package overrides

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/japaniel/syllabler/pkg/db"
	"go.uber.org/zap"
)

// Importer copies override tables into the sqlite store and reads them back.
type Importer struct {
	conn   *sql.DB
	logger *zap.Logger
}

// NewImporter creates an importer on conn. A nil logger discards output.
func NewImporter(conn *sql.DB, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{conn: conn, logger: logger}
}

// Import upserts every entry of t in a single transaction and returns the
// number of rows written. When replace is set, stored words missing from t
// are deleted.
func (im *Importer) Import(ctx context.Context, t Table, replace bool) (int, error) {
	tx, err := im.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	if replace {
		existing, err := db.ListOverrides(tx)
		if err != nil {
			return 0, fmt.Errorf("list existing overrides: %w", err)
		}
		for _, o := range existing {
			if _, ok := t[o.Word]; ok {
				continue
			}
			if err := db.DeleteOverride(tx, o.Word); err != nil {
				return 0, fmt.Errorf("delete override %q: %w", o.Word, err)
			}
			im.logger.Debug("removed override", zap.String("word", o.Word))
		}
	}

	written := 0
	for _, word := range t.Words() {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := db.UpsertOverride(tx, word, t[word]); err != nil {
			return 0, err
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import (%d rows): %w", written, err)
	}
	im.logger.Info("imported overrides", zap.Int("rows", written), zap.Bool("replace", replace))
	return written, nil
}

// LoadFromDB reads the stored overrides into a Table.
func (im *Importer) LoadFromDB() (Table, error) {
	rows, err := db.ListOverrides(im.conn)
	if err != nil {
		return nil, err
	}
	t := make(Table, len(rows))
	for _, o := range rows {
		t[o.Word] = o.Syllables
	}
	return t, nil
}
