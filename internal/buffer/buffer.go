// Package buffer records recently typed printable keystrokes.
//
// A Buffer is a bounded FIFO: once full, every append evicts the oldest
// entry first. Entries are never reordered. The capture loop owns the buffer
// and is its only writer; there is no locking.
package buffer

import (
	evdev "github.com/holoplot/go-evdev"

	"kbswitchd/internal/keymap"
)

// DefaultCapacity is used when a non-positive capacity is requested.
const DefaultCapacity = 100

// Keystroke is one printable key press with the shift state latched at
// press time.
type Keystroke struct {
	Key   keymap.Key
	Shift bool
}

// Buffer holds the most recent keystrokes, oldest first.
type Buffer struct {
	entries  []Keystroke
	capacity int
}

// New creates an empty buffer holding at most capacity keystrokes.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		entries:  make([]Keystroke, 0, capacity),
		capacity: capacity,
	}
}

// Append records a keystroke, evicting the oldest one when full.
func (b *Buffer) Append(k Keystroke) {
	if len(b.entries) >= b.capacity {
		n := copy(b.entries, b.entries[1:])
		b.entries = b.entries[:n]
	}
	b.entries = append(b.entries, k)
}

// Clear drops every entry.
func (b *Buffer) Clear() {
	b.entries = b.entries[:0]
}

// Truncate keeps the first n entries. It is a no-op when n >= Len.
func (b *Buffer) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n < len(b.entries) {
		b.entries = b.entries[:n]
	}
}

// Len returns the number of buffered keystrokes.
func (b *Buffer) Len() int {
	return len(b.entries)
}

// Cap returns the configured capacity.
func (b *Buffer) Cap() int {
	return b.capacity
}

// Entries returns a copy of all buffered keystrokes.
func (b *Buffer) Entries() []Keystroke {
	return b.From(0)
}

// From returns a copy of the entries starting at index start.
func (b *Buffer) From(start int) []Keystroke {
	if start < 0 {
		start = 0
	}
	if start >= len(b.entries) {
		return nil
	}
	out := make([]Keystroke, len(b.entries)-start)
	copy(out, b.entries[start:])
	return out
}

// WordStart returns the index where the last word begins.
//
// Trailing spaces typed after the word are skipped: the word is the final
// run of non-space keys, and it starts one past the nearest space before it.
// A buffer with no such space, or made only of spaces, yields 0.
func (b *Buffer) WordStart() int {
	end := -1
	for i := len(b.entries) - 1; i >= 0; i-- {
		if b.entries[i].Key != evdev.KEY_SPACE {
			end = i
			break
		}
	}
	if end < 0 {
		return 0
	}
	for i := end - 1; i >= 0; i-- {
		if b.entries[i].Key == evdev.KEY_SPACE {
			return i + 1
		}
	}
	return 0
}

// String renders the buffered keys for debug output.
func (b *Buffer) String() string {
	return Render(b.entries)
}

// Render prints keystrokes for log lines. Shift is not reflected.
func Render(ks []Keystroke) string {
	keys := make([]keymap.Key, len(ks))
	for i, k := range ks {
		keys[i] = k.Key
	}
	return keymap.Render(keys)
}
