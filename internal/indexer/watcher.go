package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"thinkr-chatbot/internal/contextutil"
	"thinkr-chatbot/internal/pdf"
)

// DefaultDebounce is how long the watcher waits for a burst of events to settle.
const DefaultDebounce = 2 * time.Second

// Watcher re-runs indexing when PDFs under a directory change.
type Watcher struct {
	dir      string
	debounce time.Duration
	onChange func(ctx context.Context) error

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	timer   *time.Timer
}

// NewWatcher creates a watcher for dir. onChange is called once per settled burst of PDF events.
func NewWatcher(dir string, debounce time.Duration, onChange func(ctx context.Context) error) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		onChange: onChange,
		watcher:  w,
	}, nil
}

// Run watches until ctx is cancelled. Subdirectories created later are added as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	logger := contextutil.LoggerFromContext(ctx)
	defer func() {
		_ = w.watcher.Close()
	}()

	if _, err := os.Stat(w.dir); err != nil {
		return fmt.Errorf("%w: %s", pdf.ErrDirNotFound, w.dir)
	}
	if err := w.addTree(w.dir); err != nil {
		return err
	}
	logger.InfoContext(ctx, "watching for pdf changes", "pdf_dir", w.dir, "debounce", w.debounce)

	trigger := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			w.stopTimer()
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addTree(event.Name); err != nil {
						logger.WarnContext(ctx, "failed to watch new directory", "path", event.Name, "error", err)
					}
					w.schedule(trigger)
					continue
				}
			}
			if !pdf.IsPDF(event.Name) || !relevant(event.Op) {
				continue
			}
			logger.DebugContext(ctx, "pdf change detected", "path", event.Name, "op", event.Op.String())
			w.schedule(trigger)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "watcher error", "error", err)
		case <-trigger:
			if err := w.onChange(ctx); err != nil {
				logger.ErrorContext(ctx, "re-index after change failed", "error", err)
			}
		}
	}
}

func relevant(op fsnotify.Op) bool {
	return op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

// schedule (re)starts the debounce timer.
func (w *Watcher) schedule(trigger chan<- struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case trigger <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
		}
		return nil
	})
}
