//go:build linux

package output

import (
	"fmt"

	evdev "github.com/holoplot/go-evdev"

	"kbswitchd/internal/keymap"
)

const (
	keyUp   int32 = 0
	keyDown int32 = 1
)

// virtualID identifies the device on the virtual bus (BUS_VIRTUAL).
var virtualID = evdev.InputID{
	BusType: 0x06,
	Vendor:  0x4b53,
	Product: 0x0001,
	Version: 1,
}

// Uinput is a Sink backed by /dev/uinput. It is owned by a single capture
// episode and is not safe for concurrent use.
type Uinput struct {
	dev    *evdev.InputDevice
	closed bool
}

// NewUinput creates the virtual keyboard, advertising every key in the
// keymap table.
func NewUinput() (*Uinput, error) {
	keys := keymap.SyntheticKeys()
	codes := make([]evdev.EvCode, len(keys))
	for i, k := range keys {
		codes[i] = k.Code()
	}

	dev, err := evdev.CreateDevice(DeviceName, virtualID, map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: codes,
	})
	if err != nil {
		return nil, fmt.Errorf("create uinput device: %w", err)
	}
	return &Uinput{dev: dev}, nil
}

func (u *Uinput) write(t evdev.EvType, code evdev.EvCode, value int32) error {
	if u.closed {
		return ErrClosed
	}
	return u.dev.WriteOne(&evdev.InputEvent{
		Type:  t,
		Code:  code,
		Value: value,
	})
}

// Press sends a key-down event.
func (u *Uinput) Press(k keymap.Synthetic) error {
	return u.write(evdev.EV_KEY, k.Code(), keyDown)
}

// Release sends a key-up event.
func (u *Uinput) Release(k keymap.Synthetic) error {
	return u.write(evdev.EV_KEY, k.Code(), keyUp)
}

// Click sends a key-down then a key-up.
func (u *Uinput) Click(k keymap.Synthetic) error {
	return click(u, k)
}

// Sync writes SYN_REPORT.
func (u *Uinput) Sync() error {
	return u.write(evdev.EV_SYN, evdev.SYN_REPORT, 0)
}

// Close destroys the virtual device. It is safe to call more than once.
func (u *Uinput) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	return u.dev.Close()
}
