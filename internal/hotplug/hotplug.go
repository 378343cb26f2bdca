// Package hotplug decides how long the capture loop waits before it looks
// for a keyboard again.
package hotplug

import (
	"context"
	"time"
)

// Waiter blocks between capture attempts.
type Waiter interface {
	// Wait returns after d, or earlier if the implementation has reason to
	// retry sooner. It returns ctx.Err() when ctx is cancelled first.
	Wait(ctx context.Context, d time.Duration) error
}

// Sleep waits for the full delay.
type Sleep struct{}

// Wait implements Waiter.
func (Sleep) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
