package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debouncer coalesces bursts of file events (SQLite touches the db, -wal and
// -shm files on every commit) into one poll.
type debouncer struct {
	window time.Duration
	mu     sync.Mutex
	timer  *time.Timer
	fire   func()
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

// WatchDir polls w whenever a file in dir is written, until ctx is cancelled.
// It primes the watcher first, so only commits after the call are reported.
func WatchDir(ctx context.Context, w *Watcher, dir string, debounce time.Duration, onChange func(Change), onError func(error)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if err := w.Prime(ctx); err != nil {
		return err
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	kick := make(chan struct{}, 1)
	d := &debouncer{window: debounce, fire: func() {
		select {
		case kick <- struct{}{}:
		default:
		}
	}}
	defer d.stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) {
				d.trigger()
			}
		case <-kick:
			w.emit(ctx, onChange, onError)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}
