// Package output drives the virtual keyboard that receives mirrored and
// synthesized key events.
//
// Emission is best-effort. Every Sink method returns an error, and callers
// are allowed to drop it: a key that never reaches the virtual device looks
// the same to the user as a dropped physical keystroke, while stopping the
// capture loop would leave the physical keyboard grabbed and dead. Use
// Discard to make that choice visible at the call site.
package output

import (
	"errors"

	"kbswitchd/internal/keymap"
)

// DeviceName is the name the virtual keyboard registers with the kernel.
// Device selection skips any input device whose name contains it.
const DeviceName = "kbswitchd virtual keyboard"

// ErrClosed is returned by emission calls on a closed sink.
var ErrClosed = errors.New("output: sink closed")

// Sink is a virtual keyboard.
type Sink interface {
	// Press sends a key-down event.
	Press(k keymap.Synthetic) error

	// Release sends a key-up event.
	Release(k keymap.Synthetic) error

	// Click sends a key-down followed by a key-up, without a sync between them.
	Click(k keymap.Synthetic) error

	// Sync commits the pending events so consumers see them as one group.
	Sync() error

	// Close destroys the virtual device.
	Close() error
}

// Discard drops the result of a best-effort emission.
func Discard(error) {}

// click is the shared Press+Release used by the Sink implementations.
func click(s Sink, k keymap.Synthetic) error {
	if err := s.Press(k); err != nil {
		return err
	}
	return s.Release(k)
}
