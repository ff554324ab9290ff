// Package watch re-runs a callback when a local roadmap file changes.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultDebounce = 300 * time.Millisecond

// Watcher follows a single file. The parent directory is watched so editors
// that save through rename are still seen.
type Watcher struct {
	Path     string
	Debounce time.Duration
	Logger   *zap.Logger

	fw *fsnotify.Watcher
}

// New starts watching path. Events that arrive before Run are queued.
func New(path string, log *zap.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Watcher{Path: abs, Debounce: defaultDebounce, Logger: log, fw: fw}, nil
}

// Run calls fn once per burst of writes to the file until ctx is canceled.
// Errors from fn are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context, fn func(context.Context) error) error {
	defer w.fw.Close()
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.Path || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case err, ok := <-w.fw.Errors:
			if !ok {
				return nil
			}
			w.Logger.Warn("watch error", zap.String("path", w.Path), zap.Error(err))
		case <-fire:
			fire = nil
			if err := fn(ctx); err != nil {
				w.Logger.Error("re-resolve failed", zap.String("path", w.Path), zap.Error(err))
			}
		}
	}
}
