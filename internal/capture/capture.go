// Package capture runs the daemon's outer loop: find a keyboard, grab it,
// feed its events to the switcher, and start over when it goes away.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kbswitchd/internal/device"
	"kbswitchd/internal/hotplug"
	"kbswitchd/internal/logging"
	"kbswitchd/internal/metrics"
	"kbswitchd/internal/output"
	"kbswitchd/internal/switcher"
)

var (
	// ErrDeviceLost means the grabbed keyboard stopped delivering events.
	ErrDeviceLost = errors.New("capture: device lost")

	// ErrAcquire means the keyboard or the virtual device could not be set up.
	ErrAcquire = errors.New("capture: acquire failed")
)

// SinkFactory creates the virtual keyboard for one capture episode.
type SinkFactory func() (output.Sink, error)

// Loop supervises capture episodes.
type Loop struct {
	Source     device.Source
	NewSink    SinkFactory
	Switcher   *switcher.Switcher
	Waiter     hotplug.Waiter
	Select     device.SelectOptions
	RetryDelay time.Duration
	Logger     *slog.Logger
	Metrics    *metrics.Daemon
}

// Run captures until ctx is cancelled. Every failure is logged and retried
// after RetryDelay; Run only returns on cancellation, with a nil error.
func (l *Loop) Run(ctx context.Context) error {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}
	waiter := l.Waiter
	if waiter == nil {
		waiter = hotplug.Sleep{}
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		err := l.attempt(ctx, log)
		if ctx.Err() != nil {
			log.Info("capture stopped")
			return nil
		}
		l.record(err)

		switch {
		case errors.Is(err, device.ErrNotFound):
			log.Warn("no keyboard found, retrying", "retry_in", l.RetryDelay)
		case errors.Is(err, ErrDeviceLost):
			log.Warn("keyboard disconnected, retrying", "error", err, "retry_in", l.RetryDelay)
		default:
			log.Error("capture failed, retrying", "error", err, "retry_in", l.RetryDelay)
		}

		if err := waiter.Wait(ctx, l.RetryDelay); err != nil {
			log.Info("capture stopped")
			return nil
		}
	}
}

func (l *Loop) record(err error) {
	var pe *logging.PanicError
	switch {
	case err == nil:
	case errors.Is(err, ErrDeviceLost):
		l.Metrics.DeviceLost()
	case errors.Is(err, ErrAcquire):
		l.Metrics.AcquireFailed()
	case errors.As(err, &pe):
		l.Metrics.Panicked()
	}
}

func (l *Loop) attempt(ctx context.Context, log *slog.Logger) error {
	path, err := device.Select(l.Select, l.Source)
	if err != nil {
		return err
	}
	return l.episode(ctx, path, log)
}

// episode grabs one device and pumps its events until it fails or ctx ends.
// A panic while handling an event ends the episode like any other failure,
// after the device has been released.
func (l *Loop) episode(ctx context.Context, path string, log *slog.Logger) (err error) {
	defer logging.RecoverTo(log, &err)

	dev, err := l.Source.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAcquire, err)
	}
	defer dev.Close()

	if err := dev.Grab(); err != nil {
		return fmt.Errorf("%w: grab %s: %w", ErrAcquire, path, err)
	}
	defer func() {
		if err := dev.Ungrab(); err != nil {
			log.Debug("ungrab failed", "path", path, "error", err)
		}
	}()

	sink, err := l.NewSink()
	if err != nil {
		return fmt.Errorf("%w: virtual keyboard: %w", ErrAcquire, err)
	}
	defer sink.Close()

	// A blocked Next only returns when the device is closed.
	stop := context.AfterFunc(ctx, func() { dev.Close() })
	defer stop()

	l.Switcher.Reset()
	l.Metrics.Episode()
	log.Info("keyboard grabbed", "path", path)

	for {
		ev, err := dev.Next()
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrDeviceLost, path, err)
		}
		l.Switcher.HandleEvent(ev, sink)
	}
}
