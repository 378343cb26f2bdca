//go:build linux

package device

import (
	"fmt"
	"time"

	evdev "github.com/holoplot/go-evdev"
)

// EvdevSource reads keyboards from /dev/input/event*.
type EvdevSource struct{}

// Enumerate opens every event device long enough to read its name and key
// capabilities. Devices that cannot be opened are skipped.
func (EvdevSource) Enumerate() ([]Candidate, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}

	cands := make([]Candidate, 0, len(paths))
	for _, p := range paths {
		dev, err := evdev.Open(p.Path)
		if err != nil {
			continue
		}
		name, err := dev.Name()
		if err != nil {
			name = p.Name
		}
		keys := dev.CapableEvents(evdev.EV_KEY)
		dev.Close()

		cands = append(cands, NewCandidate(p.Path, name, keys))
	}
	return cands, nil
}

// Open opens a device for reading. Call Grab to take it exclusively.
func (EvdevSource) Open(path string) (Capture, error) {
	dev, err := evdev.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &evdevCapture{dev: dev}, nil
}

type evdevCapture struct {
	dev *evdev.InputDevice
}

func (c *evdevCapture) Grab() error {
	return c.dev.Grab()
}

func (c *evdevCapture) Ungrab() error {
	return c.dev.Ungrab()
}

func (c *evdevCapture) Next() (Event, error) {
	ev, err := c.dev.ReadOne()
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:  ev.Type,
		Code:  ev.Code,
		Value: ev.Value,
		Time:  time.Unix(int64(ev.Time.Sec), int64(ev.Time.Usec)*int64(time.Microsecond)),
	}, nil
}

func (c *evdevCapture) Close() error {
	return c.dev.Close()
}
