package hotplug

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// InputDir is where the kernel creates evdev nodes.
const InputDir = "/dev/input"

// Settle is how long to wait after a node appears before trying it. udev
// fixes up permissions shortly after the node is created.
const Settle = 100 * time.Millisecond

// Watcher waits like Sleep but wakes early when a new event* node appears.
type Watcher struct {
	fs     *fsnotify.Watcher
	settle time.Duration
	log    *slog.Logger

	arrivals  chan string
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// NewWatcher starts watching dir for new input devices.
func NewWatcher(dir string, log *slog.Logger) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		fs:       fs,
		settle:   Settle,
		log:      log,
		arrivals: make(chan string, 1),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.eventLoop()
	return w, nil
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			if !strings.HasPrefix(filepath.Base(event.Name), "event") {
				continue
			}
			// One pending arrival is enough to wake a waiter.
			select {
			case w.arrivals <- event.Name:
			default:
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		}
	}
}

// Wait implements Waiter. Arrivals seen before Wait was called are ignored:
// the caller has just tried every device that existed then.
func (w *Watcher) Wait(ctx context.Context, d time.Duration) error {
	select {
	case <-w.arrivals:
	default:
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	case name := <-w.arrivals:
		w.log.Debug("input device appeared", "path", name)
	}

	return Sleep{}.Wait(ctx, w.settle)
}

// Close stops watching. Later calls return the first call's result.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)
		w.wg.Wait()
		w.closeErr = w.fs.Close()
	})
	return w.closeErr
}
