// Package keymap maps physical evdev key codes to the keys the virtual
// keyboard can emit, and classifies keys for the typed-text buffer.
//
// The tables are built once when the package is initialized and are never
// written afterwards, so they can be read from anywhere without locking.
package keymap

import (
	"fmt"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// Key identifies a physical key by its evdev scancode.
type Key = evdev.EvCode

// Synthetic identifies a key on the virtual keyboard.
type Synthetic evdev.EvCode

// Code returns the raw event code written to the virtual device.
func (s Synthetic) Code() evdev.EvCode {
	return evdev.EvCode(s)
}

// Keys the virtual device can emit. Physical and synthetic codes share the
// kernel's numbering, so each entry maps to itself.
var supported = []Key{
	// Letters
	evdev.KEY_A, evdev.KEY_B, evdev.KEY_C, evdev.KEY_D, evdev.KEY_E,
	evdev.KEY_F, evdev.KEY_G, evdev.KEY_H, evdev.KEY_I, evdev.KEY_J,
	evdev.KEY_K, evdev.KEY_L, evdev.KEY_M, evdev.KEY_N, evdev.KEY_O,
	evdev.KEY_P, evdev.KEY_Q, evdev.KEY_R, evdev.KEY_S, evdev.KEY_T,
	evdev.KEY_U, evdev.KEY_V, evdev.KEY_W, evdev.KEY_X, evdev.KEY_Y,
	evdev.KEY_Z,

	// Digits
	evdev.KEY_0, evdev.KEY_1, evdev.KEY_2, evdev.KEY_3, evdev.KEY_4,
	evdev.KEY_5, evdev.KEY_6, evdev.KEY_7, evdev.KEY_8, evdev.KEY_9,

	// Editing and punctuation
	evdev.KEY_ESC, evdev.KEY_ENTER, evdev.KEY_BACKSPACE, evdev.KEY_TAB,
	evdev.KEY_SPACE, evdev.KEY_MINUS, evdev.KEY_EQUAL, evdev.KEY_LEFTBRACE,
	evdev.KEY_RIGHTBRACE, evdev.KEY_BACKSLASH, evdev.KEY_SEMICOLON,
	evdev.KEY_APOSTROPHE, evdev.KEY_GRAVE, evdev.KEY_COMMA, evdev.KEY_DOT,
	evdev.KEY_SLASH,

	// Modifiers and locks
	evdev.KEY_LEFTSHIFT, evdev.KEY_RIGHTSHIFT, evdev.KEY_LEFTCTRL,
	evdev.KEY_RIGHTCTRL, evdev.KEY_LEFTALT, evdev.KEY_RIGHTALT,
	evdev.KEY_LEFTMETA, evdev.KEY_RIGHTMETA, evdev.KEY_CAPSLOCK,
	evdev.KEY_NUMLOCK, evdev.KEY_SCROLLLOCK,

	// Navigation
	evdev.KEY_UP, evdev.KEY_DOWN, evdev.KEY_LEFT, evdev.KEY_RIGHT,
	evdev.KEY_HOME, evdev.KEY_END, evdev.KEY_PAGEUP, evdev.KEY_PAGEDOWN,
	evdev.KEY_INSERT, evdev.KEY_DELETE,

	// Keypad
	evdev.KEY_KP0, evdev.KEY_KP1, evdev.KEY_KP2, evdev.KEY_KP3,
	evdev.KEY_KP4, evdev.KEY_KP5, evdev.KEY_KP6, evdev.KEY_KP7,
	evdev.KEY_KP8, evdev.KEY_KP9, evdev.KEY_KPASTERISK, evdev.KEY_KPPLUS,
	evdev.KEY_KPMINUS, evdev.KEY_KPDOT, evdev.KEY_KPENTER,
	evdev.KEY_KPSLASH, evdev.KEY_KPEQUAL, evdev.KEY_KPCOMMA,

	// System and media
	evdev.KEY_PAUSE, evdev.KEY_SYSRQ, evdev.KEY_MUTE, evdev.KEY_VOLUMEUP,
	evdev.KEY_VOLUMEDOWN, evdev.KEY_SLEEP, evdev.KEY_WAKEUP,
	evdev.KEY_COMPOSE,

	// Function keys
	evdev.KEY_F1, evdev.KEY_F2, evdev.KEY_F3, evdev.KEY_F4, evdev.KEY_F5,
	evdev.KEY_F6, evdev.KEY_F7, evdev.KEY_F8, evdev.KEY_F9, evdev.KEY_F10,
	evdev.KEY_F11, evdev.KEY_F12,
}

var (
	toSynthetic   = buildForward(supported)
	fromSynthetic = buildReverse(toSynthetic)
)

func buildForward(keys []Key) map[Key]Synthetic {
	m := make(map[Key]Synthetic, len(keys))
	for _, k := range keys {
		m[k] = Synthetic(k)
	}
	return m
}

func buildReverse(fwd map[Key]Synthetic) map[Synthetic]Key {
	m := make(map[Synthetic]Key, len(fwd))
	for k, s := range fwd {
		m[s] = k
	}
	return m
}

// Translate returns the virtual-keyboard counterpart of a physical key.
// The second result is false for keys the virtual device does not emit;
// callers skip mirroring those.
func Translate(k Key) (Synthetic, bool) {
	s, ok := toSynthetic[k]
	return s, ok
}

// Physical is the inverse of Translate.
func Physical(s Synthetic) (Key, bool) {
	k, ok := fromSynthetic[s]
	return k, ok
}

// SyntheticKeys returns every key the virtual device advertises, in table order.
func SyntheticKeys() []Synthetic {
	out := make([]Synthetic, 0, len(supported))
	for _, k := range supported {
		out = append(out, toSynthetic[k])
	}
	return out
}

// IsPrintable reports whether a key produces text: the digit row, the three
// letter rows with their punctuation, and space.
func IsPrintable(k Key) bool {
	switch {
	case k >= evdev.KEY_1 && k <= evdev.KEY_EQUAL:
		return true
	case k >= evdev.KEY_Q && k <= evdev.KEY_RIGHTBRACE:
		return true
	case k >= evdev.KEY_A && k <= evdev.KEY_GRAVE:
		return true
	case k >= evdev.KEY_BACKSLASH && k <= evdev.KEY_SLASH:
		return true
	}
	return k == evdev.KEY_SPACE
}

// IsReset reports whether a key ends the current line of input.
func IsReset(k Key) bool {
	switch k {
	case evdev.KEY_ENTER, evdev.KEY_KPENTER, evdev.KEY_ESC, evdev.KEY_TAB:
		return true
	}
	return false
}

// IsShift reports whether k is either shift key.
func IsShift(k Key) bool {
	return k == evdev.KEY_LEFTSHIFT || k == evdev.KEY_RIGHTSHIFT
}

// IsCtrl reports whether k is either control key.
func IsCtrl(k Key) bool {
	return k == evdev.KEY_LEFTCTRL || k == evdev.KEY_RIGHTCTRL
}

// Parse resolves a key name such as "KEY_PAUSE", "pause" or "KEY_leftmeta".
func Parse(name string) (Key, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if n == "" {
		return 0, fmt.Errorf("empty key name")
	}
	if !strings.HasPrefix(n, "KEY_") {
		n = "KEY_" + n
	}
	k, ok := evdev.KEYFromString[n]
	if !ok {
		return 0, fmt.Errorf("unknown key %q", name)
	}
	return k, nil
}

// ParseSynthetic resolves a key name and requires the virtual device to be
// able to emit it.
func ParseSynthetic(name string) (Synthetic, error) {
	k, err := Parse(name)
	if err != nil {
		return 0, err
	}
	s, ok := Translate(k)
	if !ok {
		return 0, fmt.Errorf("key %q cannot be emitted by the virtual keyboard", name)
	}
	return s, nil
}

// Name returns the kernel name of a key, or its numeric code.
func Name(k Key) string {
	if n, ok := evdev.KEYToString[k]; ok {
		return n
	}
	return fmt.Sprintf("KEY_%d", k)
}

// Render prints keys the way they read on a US layout for log lines:
// letters and digits as themselves, space as " ", others as <name>.
func Render(keys []Key) string {
	var b strings.Builder
	for _, k := range keys {
		if k == evdev.KEY_SPACE {
			b.WriteByte(' ')
			continue
		}
		n := strings.ToLower(strings.TrimPrefix(Name(k), "KEY_"))
		if len(n) == 1 {
			b.WriteString(n)
			continue
		}
		b.WriteString("<" + n + ">")
	}
	return b.String()
}
