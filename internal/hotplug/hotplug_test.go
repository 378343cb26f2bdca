package hotplug

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSleepFullDelay(t *testing.T) {
	start := time.Now()
	require.NoError(t, Sleep{}.Wait(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep{}.Wait(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSleepZeroDelay(t *testing.T) {
	assert.NoError(t, Sleep{}.Wait(context.Background(), 0))
}

func TestWatcherWakesOnNewDevice(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, nil)
	require.NoError(t, err)
	defer w.Close()
	w.settle = time.Millisecond

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "event7"), nil, 0o600)
	}()

	start := time.Now()
	require.NoError(t, w.Wait(context.Background(), 10*time.Second))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWatcherIgnoresOtherNodes(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir, nil)
	require.NoError(t, err)
	defer w.Close()

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = os.WriteFile(filepath.Join(dir, "mouse0"), nil, 0o600)
	}()

	start := time.Now()
	require.NoError(t, w.Wait(context.Background(), 200*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestWatcherCancelled(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil)
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.Wait(ctx, time.Minute), context.Canceled)
}

func TestWatcherMissingDir(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope"), nil)
	assert.Error(t, err)
}

func TestWatcherCloseTwice(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	assert.NotPanics(t, func() {
		assert.NoError(t, w.Close())
	})
}
