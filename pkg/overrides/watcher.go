package overrides

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads a Live table whenever its CSV file changes on disk.
// The parent directory is watched so editors that replace the file via
// rename are still picked up.
type Watcher struct {
	live     *Live
	path     string
	logger   *zap.Logger
	debounce time.Duration

	// OnReload, when set, is called after every reload attempt.
	OnReload func(Table, error)

	fw      *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewWatcher prepares a watcher for path. Call Start to begin watching.
func NewWatcher(live *Live, path string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		live:     live,
		path:     abs,
		logger:   logger,
		debounce: 50 * time.Millisecond,
		fw:       fw,
		done:     make(chan struct{}),
	}, nil
}

// Start adds the watch and runs the event loop in the background.
func (w *Watcher) Start() error {
	if err := w.fw.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	// Editors often write a file several times per save; coalesce those
	// into one reload.
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("override watcher error", zap.Error(err))

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) reload() {
	t, err := w.live.ReloadFile(w.path)
	if err != nil {
		w.logger.Warn("override reload failed, keeping previous table",
			zap.String("path", w.path), zap.Error(err))
	} else {
		w.logger.Info("overrides reloaded",
			zap.String("path", w.path), zap.Int("entries", len(t)))
	}
	if w.OnReload != nil {
		w.OnReload(t, err)
	}
}

// Stop ends monitoring and releases resources. Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	close(w.done)
	w.mu.Unlock()

	err := w.fw.Close()
	w.wg.Wait()
	return err
}
