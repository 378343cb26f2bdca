// Package switcher turns physical key events into mirrored output and, when
// the trigger key is pressed, retypes the last word under the next layout.
//
// A Switcher is driven by a single goroutine: the capture loop calls
// HandleEvent for every event read from the grabbed keyboard. Retyping sleeps
// in that goroutine, so physical input queues in the kernel until the retype
// is finished and cannot interleave with the synthesized keys.
package switcher

import (
	"errors"
	"log/slog"
	"time"

	evdev "github.com/holoplot/go-evdev"

	"kbswitchd/internal/buffer"
	"kbswitchd/internal/device"
	"kbswitchd/internal/keymap"
	"kbswitchd/internal/metrics"
	"kbswitchd/internal/output"
)

// Delays used while retyping. Applications and the compositor need time to
// apply the layout change before the first retyped key arrives.
const (
	ComboHold   = 100 * time.Millisecond
	ComboSettle = 250 * time.Millisecond
	KeyDelay    = 10 * time.Millisecond
)

var (
	backspace = keymap.Synthetic(evdev.KEY_BACKSPACE)
	leftShift = keymap.Synthetic(evdev.KEY_LEFTSHIFT)
)

// Sleeper pauses between synthesized events.
type Sleeper func(time.Duration)

// Options configures a Switcher.
type Options struct {
	Trigger    keymap.Key
	SelectAll  keymap.Key
	Combo      []keymap.Synthetic
	BufferSize int
	StaleAfter time.Duration
	Sleep      Sleeper
	Logger     *slog.Logger
	Metrics    *metrics.Daemon
}

// Modifiers is the held state of the modifiers the switcher tracks.
type Modifiers struct {
	Shift bool
	Ctrl  bool
}

// Snapshot is a read-only view of the switcher state.
type Snapshot struct {
	Text        string
	Len         int
	AllSelected bool
	Modifiers   Modifiers
}

// Switcher owns the typed-text buffer and the retype protocol.
type Switcher struct {
	trigger    keymap.Key
	selectAll  keymap.Key
	combo      []keymap.Synthetic
	staleAfter time.Duration
	sleep      Sleeper
	log        *slog.Logger
	metrics    *metrics.Daemon

	buf         *buffer.Buffer
	mods        Modifiers
	allSelected bool
	lastEvent   time.Time
}

// New builds a Switcher. The trigger key and combo must already be parsed.
func New(opts Options) (*Switcher, error) {
	if len(opts.Combo) == 0 {
		return nil, errors.New("switcher: empty layout switch combo")
	}
	if opts.StaleAfter <= 0 {
		return nil, errors.New("switcher: stale timeout must be positive")
	}
	if opts.SelectAll == 0 {
		opts.SelectAll = evdev.KEY_A
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	combo := make([]keymap.Synthetic, len(opts.Combo))
	copy(combo, opts.Combo)

	return &Switcher{
		trigger:    opts.Trigger,
		selectAll:  opts.SelectAll,
		combo:      combo,
		staleAfter: opts.StaleAfter,
		sleep:      opts.Sleep,
		log:        opts.Logger,
		metrics:    opts.Metrics,
		buf:        buffer.New(opts.BufferSize),
	}, nil
}

// Reset forgets held modifiers. The capture loop calls it when a new device
// is grabbed, since releases for the old device were never seen. The buffer
// is kept.
func (s *Switcher) Reset() {
	s.mods = Modifiers{}
}

// Snapshot returns the current state.
func (s *Switcher) Snapshot() Snapshot {
	return Snapshot{
		Text:        s.buf.String(),
		Len:         s.buf.Len(),
		AllSelected: s.allSelected,
		Modifiers:   s.mods,
	}
}

// HandleEvent updates state for one physical event and mirrors it to sink.
func (s *Switcher) HandleEvent(ev device.Event, sink output.Sink) {
	s.metrics.Event()
	s.checkStale(ev.Time)

	if !ev.IsKey() {
		return
	}
	key := keymap.Key(ev.Code)

	switch {
	case keymap.IsShift(key):
		s.mods.Shift = ev.Value != device.ValueRelease
	case keymap.IsCtrl(key):
		s.mods.Ctrl = ev.Value != device.ValueRelease
	}

	if key == s.trigger {
		if ev.Value == device.ValuePress {
			s.FixText(sink)
		}
		return
	}

	if ev.Value == device.ValuePress {
		s.classify(key)
		s.metrics.Buffer(s.buf.Len())
	}

	s.mirror(key, ev.Value, sink)
}

func (s *Switcher) checkStale(at time.Time) {
	if !s.lastEvent.IsZero() && at.Sub(s.lastEvent) > s.staleAfter {
		if s.buf.Len() > 0 || s.allSelected {
			s.log.Debug("buffer stale, clearing", "idle", at.Sub(s.lastEvent))
		}
		s.buf.Clear()
		s.allSelected = false
	}
	s.lastEvent = at
}

func (s *Switcher) classify(key keymap.Key) {
	switch {
	case s.mods.Ctrl && key == s.selectAll:
		s.allSelected = true
	case keymap.IsPrintable(key):
		if !s.mods.Ctrl {
			s.allSelected = false
		}
		s.buf.Append(buffer.Keystroke{Key: key, Shift: s.mods.Shift})
	case keymap.IsReset(key):
		s.buf.Clear()
		s.allSelected = false
	}
}

func (s *Switcher) mirror(key keymap.Key, value int32, sink output.Sink) {
	out, ok := keymap.Translate(key)
	if !ok {
		return
	}
	switch value {
	case device.ValuePress, device.ValueRepeat:
		output.Discard(sink.Press(out))
	case device.ValueRelease:
		output.Discard(sink.Release(out))
	default:
		return
	}
	output.Discard(sink.Sync())
	s.metrics.Mirrored()
}

// FixText erases the last word (or the whole selection), switches layout and
// retypes the same keys.
func (s *Switcher) FixText(sink output.Sink) {
	if s.buf.Len() == 0 {
		return
	}

	start := 0
	if !s.allSelected {
		start = s.buf.WordStart()
	}
	span := s.buf.From(start)
	if len(span) == 0 {
		return
	}

	s.log.Debug("retyping", "text", buffer.Render(span), "selected", s.allSelected)
	started := time.Now()
	defer func() {
		s.metrics.Retype(len(span), time.Since(started))
		s.metrics.Buffer(s.buf.Len())
	}()

	for range span {
		output.Discard(sink.Click(backspace))
	}
	output.Discard(sink.Sync())

	for _, k := range s.combo {
		output.Discard(sink.Press(k))
	}
	output.Discard(sink.Sync())
	s.sleep(ComboHold)
	for _, k := range s.combo {
		output.Discard(sink.Release(k))
	}
	output.Discard(sink.Sync())
	s.sleep(ComboSettle)

	for _, ks := range span {
		out, ok := keymap.Translate(ks.Key)
		if !ok {
			continue
		}
		if ks.Shift {
			output.Discard(sink.Press(leftShift))
			output.Discard(sink.Click(out))
			output.Discard(sink.Release(leftShift))
		} else {
			output.Discard(sink.Click(out))
		}
		s.sleep(KeyDelay)
	}
	output.Discard(sink.Sync())

	if s.allSelected {
		s.buf.Clear()
		s.allSelected = false
		return
	}
	s.buf.Truncate(start)
}
