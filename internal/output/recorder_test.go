package output

import (
	"errors"
	"testing"

	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"

	"kbswitchd/internal/keymap"
)

func TestRecorderClickOrder(t *testing.T) {
	r := NewRecorder()
	a := keymap.Synthetic(evdev.KEY_A)

	assert.NoError(t, r.Click(a))
	assert.NoError(t, r.Sync())

	assert.Equal(t, "press:KEY_A release:KEY_A sync", r.String())
	assert.Equal(t, 1, r.Count(OpPress, a))
	assert.Equal(t, 1, r.Count(OpSync, 0))
}

func TestRecorderFailureStillRecords(t *testing.T) {
	r := NewRecorder()
	r.Fail = errors.New("boom")

	err := r.Click(keymap.Synthetic(evdev.KEY_B))
	assert.Error(t, err)
	assert.Len(t, r.Events, 2)
}

func TestRecorderClosed(t *testing.T) {
	r := NewRecorder()
	assert.NoError(t, r.Close())
	assert.ErrorIs(t, r.Press(keymap.Synthetic(evdev.KEY_A)), ErrClosed)
	assert.Empty(t, r.Events)
}

func TestRecorderTyped(t *testing.T) {
	r := NewRecorder()
	shift := keymap.Synthetic(evdev.KEY_LEFTSHIFT)

	Discard(r.Press(shift))
	Discard(r.Click(keymap.Synthetic(evdev.KEY_H)))
	Discard(r.Release(shift))
	Discard(r.Click(keymap.Synthetic(evdev.KEY_I)))

	assert.Equal(t,
		[]keymap.Synthetic{keymap.Synthetic(evdev.KEY_H), keymap.Synthetic(evdev.KEY_I)},
		r.Typed(shift))
}
