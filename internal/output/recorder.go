package output

import (
	"fmt"
	"strings"

	"kbswitchd/internal/keymap"
)

// Op is the kind of a recorded emission.
type Op int

const (
	OpPress Op = iota
	OpRelease
	OpSync
)

func (o Op) String() string {
	switch o {
	case OpPress:
		return "press"
	case OpRelease:
		return "release"
	case OpSync:
		return "sync"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Emission is one event written to a Recorder.
type Emission struct {
	Op  Op
	Key keymap.Synthetic
}

func (e Emission) String() string {
	if e.Op == OpSync {
		return "sync"
	}
	return e.Op.String() + ":" + keymap.Name(keymap.Key(e.Key))
}

// Recorder is an in-memory Sink. It keeps every emission in order and can be
// told to fail, which tests use to check that failures are tolerated.
type Recorder struct {
	Events []Emission
	Fail   error
	Closed bool
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(op Op, k keymap.Synthetic) error {
	if r.Closed {
		return ErrClosed
	}
	r.Events = append(r.Events, Emission{Op: op, Key: k})
	return r.Fail
}

// Press records a key-down.
func (r *Recorder) Press(k keymap.Synthetic) error { return r.record(OpPress, k) }

// Release records a key-up.
func (r *Recorder) Release(k keymap.Synthetic) error { return r.record(OpRelease, k) }

// Click records a key-down then a key-up.
func (r *Recorder) Click(k keymap.Synthetic) error {
	// Keep recording through failures so tests see the full sequence.
	err := r.Press(k)
	if rerr := r.Release(k); err == nil {
		err = rerr
	}
	return err
}

// Sync records a sync barrier.
func (r *Recorder) Sync() error { return r.record(OpSync, 0) }

// Close marks the recorder closed.
func (r *Recorder) Close() error {
	r.Closed = true
	return nil
}

// Reset forgets recorded events.
func (r *Recorder) Reset() {
	r.Events = nil
}

// Count returns how many emissions match op and key. For OpSync the key is
// ignored.
func (r *Recorder) Count(op Op, k keymap.Synthetic) int {
	n := 0
	for _, e := range r.Events {
		if e.Op == op && (op == OpSync || e.Key == k) {
			n++
		}
	}
	return n
}

// Typed returns the keys clicked by press/release pairs, skipping the
// given modifiers. It is a rough reading of "what text was typed".
func (r *Recorder) Typed(skip ...keymap.Synthetic) []keymap.Synthetic {
	var out []keymap.Synthetic
	for _, e := range r.Events {
		if e.Op != OpPress {
			continue
		}
		skipped := false
		for _, s := range skip {
			if e.Key == s {
				skipped = true
				break
			}
		}
		if !skipped {
			out = append(out, e.Key)
		}
	}
	return out
}

// String renders the stream as "press:KEY_A release:KEY_A sync ...".
func (r *Recorder) String() string {
	parts := make([]string, len(r.Events))
	for i, e := range r.Events {
		parts[i] = e.String()
	}
	return strings.Join(parts, " ")
}
