package seed

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounce = 200 * time.Millisecond

// Watch re-applies the seed file whenever it changes until ctx is
// cancelled. The parent directory is watched so that editors which replace
// the file on save are noticed.
func Watch(ctx context.Context, l *Loader) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	target := filepath.Clean(l.path)
	if err := w.Add(filepath.Dir(target)); err != nil {
		return err
	}

	l.logger.Info("seed watcher: started", slog.String("path", target))

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			l.logger.Info("seed watcher: stopped")
			return nil

		case <-fire:
			fire = nil
			if _, err := l.Apply(ctx); err != nil {
				l.logger.Warn("seed watcher: apply failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.logger.Error("seed watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
