package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// WriteFunc is a callback that performs database writes inside a transaction.
type WriteFunc func(ctx context.Context, tx *sql.Tx) error

// pendingWrite pairs a write with the hook to run once its batch commits.
type pendingWrite struct {
	write    WriteFunc
	onCommit func()
}

// BatchWriter buffers scored-line writes and commits them in batches inside
// a transaction. Batches are committed in submission order by a single
// committer goroutine.
type BatchWriter struct {
	mu          sync.Mutex
	buf         []pendingWrite
	cap         int
	flushTicker *time.Ticker
	closed      bool
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc

	commitCh chan []pendingWrite
	db       *sql.DB
	logger   *zap.Logger

	// OnError receives every asynchronous failure, including dropped batches.
	OnError func(error)

	committed atomic.Int64

	// lastErr stores the first asynchronous error seen by the writer. Protected by errMu.
	errMu   sync.Mutex
	lastErr error
}

// NewBatchWriter creates a new BatchWriter.
// db: the database connection to use for transactions.
// bufferSize: flush when buffer reaches this size.
// flushInterval: flush after this duration (0 to disable).
func NewBatchWriter(db *sql.DB, bufferSize int, flushInterval time.Duration) *BatchWriter {
	if bufferSize <= 0 {
		bufferSize = 10
	}
	ctx, cancel := context.WithCancel(context.Background())
	bw := &BatchWriter{
		buf:      make([]pendingWrite, 0, bufferSize),
		cap:      bufferSize,
		ctx:      ctx,
		cancel:   cancel,
		commitCh: make(chan []pendingWrite, 2),
		db:       db,
		logger:   zap.NewNop(),
	}

	bw.wg.Add(1)
	go bw.committer()

	if flushInterval > 0 {
		bw.flushTicker = time.NewTicker(flushInterval)
		bw.wg.Add(1)
		go bw.loop()
	}
	return bw
}

// SetLogger replaces the writer's logger. A nil logger discards output.
func (bw *BatchWriter) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	bw.logger = l
}

// Committed returns the number of write functions committed so far.
func (bw *BatchWriter) Committed() int64 {
	return bw.committed.Load()
}

// Submit enqueues a write function.
func (bw *BatchWriter) Submit(w WriteFunc) error {
	return bw.SubmitWithCommit(w, nil)
}

// SubmitWithCommit enqueues w and calls onCommit, if set, after the batch
// holding w has committed. onCommit never runs for a rolled back or dropped
// batch.
func (bw *BatchWriter) SubmitWithCommit(w WriteFunc, onCommit func()) error {
	bw.mu.Lock()
	defer bw.mu.Unlock()
	if bw.closed {
		return ErrBatchWriterClosed
	}
	bw.buf = append(bw.buf, pendingWrite{write: w, onCommit: onCommit})
	if len(bw.buf) >= bw.cap {
		bw.flushLocked()
	}
	return nil
}

// flushLocked assumes bw.mu is held. Blocking here while the committer is
// busy is what gives Submit its backpressure.
func (bw *BatchWriter) flushLocked() {
	if len(bw.buf) == 0 {
		return
	}
	batch := bw.buf
	bw.buf = make([]pendingWrite, 0, bw.cap)

	select {
	case bw.commitCh <- batch:
	case <-bw.ctx.Done():
		bw.fail(fmt.Errorf("batch writer: dropping batch of %d items due to context cancellation", len(batch)))
	}
}

// fail records the first asynchronous error and reports every one.
func (bw *BatchWriter) fail(err error) {
	bw.errMu.Lock()
	if bw.lastErr == nil {
		bw.lastErr = err
	}
	bw.errMu.Unlock()
	bw.logger.Warn("batch write failed", zap.Error(err))
	if bw.OnError != nil {
		bw.OnError(err)
	}
}

func (bw *BatchWriter) committer() {
	defer bw.wg.Done()
	for batch := range bw.commitCh {
		if err := bw.executeBatch(batch); err != nil {
			bw.fail(err)
			continue
		}
		for _, p := range batch {
			if p.onCommit != nil {
				p.onCommit()
			}
		}
		bw.committed.Add(int64(len(batch)))
		bw.logger.Debug("batch committed", zap.Int("items", len(batch)))
	}
}

func (bw *BatchWriter) executeBatch(batch []pendingWrite) error {
	// Without a database the callbacks run with a nil tx.
	if bw.db == nil {
		for _, p := range batch {
			if err := p.write(bw.ctx, nil); err != nil {
				return err
			}
		}
		return nil
	}

	// Background context so a closing writer still commits what it has.
	ctx := context.Background()

	tx, err := bw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin batch tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	for _, p := range batch {
		if err := p.write(ctx, tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch (%d items): %w", len(batch), err)
	}
	return nil
}

func (bw *BatchWriter) loop() {
	defer bw.wg.Done()
	for {
		select {
		case <-bw.ctx.Done():
			return
		case <-bw.flushTicker.C:
			bw.mu.Lock()
			bw.flushLocked()
			bw.mu.Unlock()
		}
	}
}

// Close stops accepting submissions, commits what is buffered and returns
// the first asynchronous error, if any.
func (bw *BatchWriter) Close() error {
	bw.mu.Lock()
	if bw.closed {
		bw.mu.Unlock()
		return ErrBatchWriterClosed
	}
	bw.closed = true
	if bw.flushTicker != nil {
		bw.flushTicker.Stop()
	}
	bw.flushLocked()
	bw.mu.Unlock()

	bw.cancel()
	close(bw.commitCh)
	bw.wg.Wait()

	bw.errMu.Lock()
	defer bw.errMu.Unlock()
	return bw.lastErr
}

var ErrBatchWriterClosed = &BatchWriterError{"batch writer closed"}

type BatchWriterError struct{ msg string }

func (e *BatchWriterError) Error() string { return e.msg }
