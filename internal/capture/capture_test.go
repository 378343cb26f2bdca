package capture

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	evdev "github.com/holoplot/go-evdev"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbswitchd/internal/device"
	"kbswitchd/internal/keymap"
	"kbswitchd/internal/logging"
	"kbswitchd/internal/metrics"
	"kbswitchd/internal/output"
	"kbswitchd/internal/switcher"
)

var keys = []keymap.Key{evdev.KEY_A, evdev.KEY_SPACE}

type fakeCapture struct {
	mu      sync.Mutex
	events  chan device.Event
	closed  chan struct{}
	once    sync.Once
	grabbed bool
	ungrabs int
	grabErr error
}

func newFakeCapture() *fakeCapture {
	return &fakeCapture{
		events: make(chan device.Event, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeCapture) Grab() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.grabErr != nil {
		return c.grabErr
	}
	c.grabbed = true
	return nil
}

func (c *fakeCapture) Ungrab() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grabbed = false
	c.ungrabs++
	return nil
}

func (c *fakeCapture) Next() (device.Event, error) {
	select {
	case ev, ok := <-c.events:
		if !ok {
			return device.Event{}, errors.New("no such device")
		}
		return ev, nil
	case <-c.closed:
		return device.Event{}, errors.New("file already closed")
	}
}

func (c *fakeCapture) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeCapture) isGrabbed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.grabbed
}

type fakeSource struct {
	mu       sync.Mutex
	cands    []device.Candidate
	captures []*fakeCapture
	opened   int
	openErr  error
}

func (s *fakeSource) Enumerate() ([]device.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cands, nil
}

func (s *fakeSource) Open(string) (device.Capture, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	if s.opened >= len(s.captures) {
		return nil, errors.New("no more devices")
	}
	c := s.captures[s.opened]
	s.opened++
	return c, nil
}

func (s *fakeSource) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

// recordingWaiter counts waits and returns immediately, or cancels the run
// after a given number of waits.
type recordingWaiter struct {
	mu     sync.Mutex
	waits  []time.Duration
	cancel context.CancelFunc
	stopAt int
}

func (w *recordingWaiter) Wait(ctx context.Context, d time.Duration) error {
	w.mu.Lock()
	w.waits = append(w.waits, d)
	n := len(w.waits)
	w.mu.Unlock()
	if w.stopAt > 0 && n >= w.stopAt {
		w.cancel()
	}
	return ctx.Err()
}

func (w *recordingWaiter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.waits)
}

type sinkLog struct {
	mu    sync.Mutex
	sinks []*output.Recorder
}

func (l *sinkLog) factory() (output.Sink, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r := output.NewRecorder()
	l.sinks = append(l.sinks, r)
	return r, nil
}

func newSwitcher(t *testing.T) *switcher.Switcher {
	t.Helper()
	sw, err := switcher.New(switcher.Options{
		Trigger:    evdev.KEY_PAUSE,
		Combo:      []keymap.Synthetic{keymap.Synthetic(evdev.KEY_LEFTMETA), keymap.Synthetic(evdev.KEY_SPACE)},
		StaleAfter: time.Minute,
		Sleep:      func(time.Duration) {},
	})
	require.NoError(t, err)
	return sw
}

func runLoop(ctx context.Context, t *testing.T, l *Loop) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()
	return done
}

func waitDone(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRunRetriesWhenNoKeyboard(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := &recordingWaiter{cancel: cancel, stopAt: 3}
	l := &Loop{
		Source:     &fakeSource{},
		NewSink:    (&sinkLog{}).factory,
		Switcher:   newSwitcher(t),
		Waiter:     w,
		RetryDelay: 1500 * time.Millisecond,
	}

	waitDone(t, runLoop(ctx, t, l))
	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 1500 * time.Millisecond, 1500 * time.Millisecond}, w.waits)
}

func TestRunMirrorsAndRecoversFromDisconnect(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first, second := newFakeCapture(), newFakeCapture()
	src := &fakeSource{
		cands:    []device.Candidate{device.NewCandidate("/dev/input/event3", "Generic Keyboard", keys)},
		captures: []*fakeCapture{first, second},
	}
	sinks := &sinkLog{}
	w := &recordingWaiter{}
	m := metrics.NewDaemon(nil)
	l := &Loop{
		Source:   src,
		NewSink:  sinks.factory,
		Switcher: newSwitcher(t),
		Waiter:   w,
		Select:   device.SelectOptions{SelfName: output.DeviceName},
		Metrics:  m,
	}
	done := runLoop(ctx, t, l)

	first.events <- device.Event{Type: evdev.EV_KEY, Code: evdev.KEY_A, Value: device.ValuePress}
	first.events <- device.Event{Type: evdev.EV_KEY, Code: evdev.KEY_A, Value: device.ValueRelease}
	close(first.events)

	require.Eventually(t, func() bool { return src.openCount() == 2 && second.isGrabbed() },
		2*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, w.count())
	assert.False(t, first.isGrabbed())
	assert.Equal(t, 1, first.ungrabs)

	sinks.mu.Lock()
	require.Len(t, sinks.sinks, 2)
	assert.Equal(t, "press:KEY_A sync release:KEY_A sync", sinks.sinks[0].String())
	assert.True(t, sinks.sinks[0].Closed)
	sinks.mu.Unlock()

	cancel()
	waitDone(t, done)
	assert.False(t, second.isGrabbed(), "grab released on shutdown")
	assert.EqualValues(t, 2, m.EpisodesTotal.Value())
	assert.EqualValues(t, 1, m.DeviceLostTotal.Value())
}

func TestRunCancelUnblocksRead(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	c := newFakeCapture()
	src := &fakeSource{
		cands:    []device.Candidate{device.NewCandidate("/dev/input/event0", "kbd", keys)},
		captures: []*fakeCapture{c},
	}
	w := &recordingWaiter{}
	l := &Loop{Source: src, NewSink: (&sinkLog{}).factory, Switcher: newSwitcher(t), Waiter: w}
	done := runLoop(ctx, t, l)

	require.Eventually(t, c.isGrabbed, 2*time.Second, 5*time.Millisecond)
	cancel()
	waitDone(t, done)

	assert.False(t, c.isGrabbed())
	assert.Zero(t, w.count(), "no retry wait after cancellation")
}

func TestRunGrabFailureRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newFakeCapture()
	c.grabErr = errors.New("device or resource busy")
	src := &fakeSource{
		cands:    []device.Candidate{device.NewCandidate("/dev/input/event0", "kbd", keys)},
		captures: []*fakeCapture{c},
	}
	w := &recordingWaiter{cancel: cancel, stopAt: 1}
	m := metrics.NewDaemon(nil)
	l := &Loop{Source: src, NewSink: (&sinkLog{}).factory, Switcher: newSwitcher(t), Waiter: w, Metrics: m}

	waitDone(t, runLoop(ctx, t, l))
	assert.Equal(t, 1, w.count())
	assert.Zero(t, c.ungrabs)
	assert.EqualValues(t, 1, m.AcquireFailsTotal.Value())
	assert.Zero(t, m.EpisodesTotal.Value())
}

func TestEpisodeErrors(t *testing.T) {
	c := newFakeCapture()
	close(c.events)
	src := &fakeSource{captures: []*fakeCapture{c}}
	l := &Loop{Source: src, NewSink: (&sinkLog{}).factory, Switcher: newSwitcher(t)}

	err := l.episode(context.Background(), "/dev/input/event1", discardLogger())
	assert.ErrorIs(t, err, ErrDeviceLost)

	src.openErr = errors.New("permission denied")
	err = l.episode(context.Background(), "/dev/input/event1", discardLogger())
	assert.ErrorIs(t, err, ErrAcquire)

	c2 := newFakeCapture()
	src.openErr = nil
	src.captures = append(src.captures, c2)
	l.NewSink = func() (output.Sink, error) { return nil, errors.New("no /dev/uinput") }
	err = l.episode(context.Background(), "/dev/input/event1", discardLogger())
	assert.ErrorIs(t, err, ErrAcquire)
	assert.Equal(t, 1, c2.ungrabs)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type panickingSink struct{ output.Recorder }

func (p *panickingSink) Press(keymap.Synthetic) error { panic("sink exploded") }

func TestEpisodeRecoversPanic(t *testing.T) {
	c := newFakeCapture()
	c.events <- device.Event{Type: evdev.EV_KEY, Code: evdev.KEY_Q, Value: device.ValuePress}
	src := &fakeSource{captures: []*fakeCapture{c}}
	l := &Loop{
		Source:   src,
		NewSink:  func() (output.Sink, error) { return &panickingSink{}, nil },
		Switcher: newSwitcher(t),
	}

	err := l.episode(context.Background(), "/dev/input/event1", discardLogger())

	var pe *logging.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "sink exploded", pe.Value)
	assert.Equal(t, 1, c.ungrabs)
	assert.False(t, c.isGrabbed())
}
