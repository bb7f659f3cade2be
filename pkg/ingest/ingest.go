// Package ingest scores the lines of a source concurrently and persists the
// results in line order, resuming from the last committed line.
package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/japaniel/syllabler/pkg/db"
	"github.com/japaniel/syllabler/pkg/syllable"
	"github.com/japaniel/syllabler/pkg/verse"
	"go.uber.org/zap"
)

// WorkerPoolInterface is the subset of WorkerPool the Ingester relies on.
type WorkerPoolInterface interface {
	Start(ctx context.Context)
	Submit(job Job) error
	SubmitCtx(ctx context.Context, job Job) error
	Close()
}

// Ingester scores lines with an Analyzer and stores lines, words and
// word/source links.
type Ingester struct {
	DB        *sql.DB
	Analyzer  *verse.Analyzer
	Logger    *zap.Logger
	BatchSize int
	Workers   int

	// FlushInterval bounds how long a partial batch waits before commit.
	FlushInterval time.Duration

	// OnProgress, when set, is called after each line is handed to the writer.
	OnProgress func(current, total int)

	// OnLine, when set, receives every scored line in index order once the
	// batch holding it has committed.
	OnLine func(index int, line verse.Line)

	// PoolFactory builds the worker pool. Tests swap it out.
	PoolFactory func(workers, queue int) WorkerPoolInterface
}

// NewIngester creates an Ingester. A nil analyzer counts without overrides.
func NewIngester(conn *sql.DB, analyzer *verse.Analyzer) *Ingester {
	if analyzer == nil {
		analyzer = verse.NewAnalyzer(syllable.New(nil))
	}
	return &Ingester{
		DB:            conn,
		Analyzer:      analyzer,
		Logger:        zap.NewNop(),
		BatchSize:     50,
		Workers:       runtime.NumCPU(),
		FlushInterval: 100 * time.Millisecond,
		PoolFactory: func(workers, queue int) WorkerPoolInterface {
			return NewWorkerPool(workers, queue)
		},
	}
}

// wordTally is one distinct word of a line with its occurrence count.
type wordTally struct {
	Word      string
	Syllables int
	Count     int
}

// scoredLine is produced by a worker and consumed in index order.
type scoredLine struct {
	Index int
	Line  verse.Line
	Words []wordTally
}

// tally groups the words of a line case-insensitively, keeping first-seen order.
func tally(line verse.Line) []wordTally {
	var out []wordTally
	seen := make(map[string]int, len(line.Words))
	for _, w := range line.Words {
		key := strings.ToLower(w.Surface)
		if i, ok := seen[key]; ok {
			out[i].Count++
			continue
		}
		seen[key] = len(out)
		out = append(out, wordTally{Word: key, Syllables: w.Syllables, Count: 1})
	}
	return out
}

// Ingest scores lines[i] for every i after the source's recorded progress
// and returns the number of word occurrences linked to the source.
func (ig *Ingester) Ingest(ctx context.Context, sourceID int64, lines []string) (int, error) {
	logger := ig.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.Int64("source_id", sourceID))

	lastProcessed, err := db.GetSourceProgress(ig.DB, sourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("source %d not found", sourceID)
		}
		logger.Warn("could not read source progress, starting from the top", zap.Error(err))
		lastProcessed = -1
	}

	total := len(lines)
	startIdx := lastProcessed + 1
	if startIdx >= total {
		logger.Info("source already fully processed", zap.Int("lines", total))
		return 0, nil
	}
	if startIdx > 0 {
		logger.Info("resuming ingestion", zap.Int("from", startIdx), zap.Int("lines", total))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	workers := ig.Workers
	if workers <= 0 {
		workers = 1
	}
	wp := ig.PoolFactory(workers, workers*2)
	resultCh := make(chan scoredLine, workers*2)
	doneCh := make(chan error, 1)
	var links atomic.Int64

	bw := NewBatchWriter(ig.DB, ig.BatchSize, ig.FlushInterval)
	bw.SetLogger(logger)
	bw.OnError = func(error) { cancel() }

	wp.Start(ctx)

	go func() {
		doneCh <- ig.consume(ctx, cancel, bw, resultCh, sourceID, startIdx, total, &links)
	}()

	var submitErr error
	for i := startIdx; i < total; i++ {
		if ctx.Err() != nil {
			break
		}
		idx, text := i, lines[i]
		job := func(ctx context.Context) error {
			line := ig.Analyzer.AnalyzeLine(text)
			res := scoredLine{Index: idx, Line: line, Words: tally(line)}
			select {
			case resultCh <- res:
			case <-ctx.Done():
			}
			return nil
		}
		if err := wp.SubmitCtx(ctx, job); err != nil {
			if ctx.Err() == nil && err != ErrPoolClosed {
				submitErr = fmt.Errorf("submit line %d: %w", idx, err)
				cancel()
			}
			break
		}
	}

	// Workers are done once Close returns, so nothing sends on resultCh after this.
	wp.Close()
	close(resultCh)

	consumerErr := <-doneCh
	closeErr := bw.Close()

	n := int(links.Load())
	switch {
	case submitErr != nil:
		return n, submitErr
	case closeErr != nil:
		return n, fmt.Errorf("write lines: %w", closeErr)
	case consumerErr != nil:
		return n, consumerErr
	}
	logger.Info("ingestion finished", zap.Int("lines", total-startIdx), zap.Int("links", n))
	return n, nil
}

// consume reorders worker results and hands them to the batch writer in
// line order so stored progress never skips a line.
func (ig *Ingester) consume(ctx context.Context, cancel context.CancelFunc, bw *BatchWriter, resultCh <-chan scoredLine, sourceID int64, startIdx, total int, links *atomic.Int64) error {
	pending := make(map[int]scoredLine)
	next := startIdx

	drain := func() error {
		for {
			item, ok := pending[next]
			if !ok {
				return nil
			}
			delete(pending, next)
			if err := bw.SubmitWithCommit(ig.writeLine(sourceID, item), ig.committed(item, links)); err != nil {
				return err
			}
			next++
			if ig.OnProgress != nil {
				ig.OnProgress(next, total)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res, ok := <-resultCh:
			if !ok {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := drain(); err != nil {
					cancel()
					return err
				}
				return nil
			}
			pending[res.Index] = res
			if err := drain(); err != nil {
				cancel()
				return err
			}
		}
	}
}

// committed runs after item is durable: only then does it count toward the
// returned links and reach OnLine.
func (ig *Ingester) committed(item scoredLine, links *atomic.Int64) func() {
	return func() {
		n := 0
		for _, w := range item.Words {
			n += w.Count
		}
		links.Add(int64(n))
		if ig.OnLine != nil {
			ig.OnLine(item.Index, item.Line)
		}
	}
}

func (ig *Ingester) writeLine(sourceID int64, item scoredLine) WriteFunc {
	return func(ctx context.Context, tx *sql.Tx) error {
		if err := db.SaveLine(tx, sourceID, item.Index, item.Line.Text, item.Line.Syllables); err != nil {
			return fmt.Errorf("save line %d: %w", item.Index, err)
		}
		for _, w := range item.Words {
			wordID, err := db.CreateOrGetWord(tx, w.Word, w.Syllables)
			if err != nil {
				return fmt.Errorf("word %q: %w", w.Word, err)
			}
			if err := db.LinkWordToSource(tx, wordID, sourceID, w.Count); err != nil {
				return fmt.Errorf("link word %q: %w", w.Word, err)
			}
		}
		return db.UpdateSourceProgress(tx, sourceID, item.Index)
	}
}
