// Package device finds and reads the physical keyboard.
//
// The capture loop talks to the kernel through two small interfaces: a
// Source that lists and opens input devices, and a Capture that reads one
// opened device. EvdevSource implements both over /dev/input; tests use
// in-memory fakes.
package device

import (
	"errors"
	"os"
	"strings"
	"time"

	evdev "github.com/holoplot/go-evdev"

	"kbswitchd/internal/keymap"
)

// ErrNotFound is returned when no input device qualifies as a keyboard.
var ErrNotFound = errors.New("device: no keyboard found")

// keyboardBonus is added to the score of devices named "...keyboard...".
const keyboardBonus = 100

// Event is one input event read from a physical device.
type Event struct {
	Type  evdev.EvType
	Code  evdev.EvCode
	Value int32
	Time  time.Time
}

// Key event values.
const (
	ValueRelease int32 = 0
	ValuePress   int32 = 1
	ValueRepeat  int32 = 2
)

// IsKey reports whether the event is a key event.
func (e Event) IsKey() bool {
	return e.Type == evdev.EV_KEY
}

// Candidate is an input device seen during enumeration.
type Candidate struct {
	Path string
	Name string
	keys map[keymap.Key]struct{}
}

// NewCandidate builds a Candidate from the key codes the device reports.
func NewCandidate(path, name string, keys []keymap.Key) Candidate {
	set := make(map[keymap.Key]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return Candidate{Path: path, Name: name, keys: set}
}

// Supports reports whether the device advertises key k.
func (c Candidate) Supports(k keymap.Key) bool {
	_, ok := c.keys[k]
	return ok
}

// Source enumerates and opens input devices.
type Source interface {
	Enumerate() ([]Candidate, error)
	Open(path string) (Capture, error)
}

// Capture is an opened input device.
type Capture interface {
	// Grab takes exclusive ownership: while grabbed, no other reader on the
	// system sees the device's events.
	Grab() error
	Ungrab() error

	// Next blocks until the next event arrives. Any error means the
	// device is gone or unusable.
	Next() (Event, error)

	Close() error
}

// SelectOptions controls keyboard selection.
type SelectOptions struct {
	// DevicePath, when set and present on disk, is used without scoring.
	DevicePath string

	// IgnoredKeywords exclude devices whose name contains any of them,
	// compared case-insensitively.
	IgnoredKeywords []string

	// SelfName is the virtual keyboard's own name, always excluded.
	SelfName string
}

// Ranked is a candidate that survived filtering, with its score.
type Ranked struct {
	Candidate
	Score int
}

// Score rates how keyboard-like a device looks.
func Score(c Candidate) int {
	if strings.Contains(strings.ToLower(c.Name), "keyboard") {
		return keyboardBonus
	}
	return 0
}

// Eligible reports whether a candidate passes the name and capability filters.
func Eligible(c Candidate, opts SelectOptions) bool {
	name := strings.ToLower(c.Name)
	if opts.SelfName != "" && strings.Contains(name, strings.ToLower(opts.SelfName)) {
		return false
	}
	for _, kw := range opts.IgnoredKeywords {
		if kw == "" {
			continue
		}
		if strings.Contains(name, strings.ToLower(kw)) {
			return false
		}
	}
	return c.Supports(evdev.KEY_A) && c.Supports(evdev.KEY_SPACE)
}

// Rank filters candidates and orders them best first. Equal scores keep
// enumeration order.
func Rank(cands []Candidate, opts SelectOptions) []Ranked {
	var out []Ranked
	for _, c := range cands {
		if !Eligible(c, opts) {
			continue
		}
		r := Ranked{Candidate: c, Score: Score(c)}
		// Stable insertion: place after every entry with a score >= r's.
		i := len(out)
		for i > 0 && out[i-1].Score < r.Score {
			i--
		}
		out = append(out, Ranked{})
		copy(out[i+1:], out[i:])
		out[i] = r
	}
	return out
}

// Select picks the physical keyboard to capture. An existing DevicePath is
// used without enumerating.
func Select(opts SelectOptions, src Source) (string, error) {
	if path, ok := override(opts); ok {
		return path, nil
	}

	cands, err := src.Enumerate()
	if err != nil {
		return "", err
	}
	return Choose(opts, Rank(cands, opts))
}

// Choose applies the selection rule to an already ranked list: the
// DevicePath override if it exists, else the best-ranked candidate.
func Choose(opts SelectOptions, ranked []Ranked) (string, error) {
	if path, ok := override(opts); ok {
		return path, nil
	}
	if len(ranked) == 0 {
		return "", ErrNotFound
	}
	return ranked[0].Path, nil
}

func override(opts SelectOptions) (string, bool) {
	if opts.DevicePath == "" {
		return "", false
	}
	if _, err := os.Stat(opts.DevicePath); err != nil {
		return "", false
	}
	return opts.DevicePath, true
}
