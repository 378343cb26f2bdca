//go:build linux

package daemon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireWritesPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run", "kbswitchd.pid")

	lock, err := Acquire(path)
	require.NoError(t, err)
	defer lock.Release()

	pid, err := ReadPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.Equal(t, path, lock.Path())
}

func TestAcquireTwiceFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kbswitchd.pid")

	first, err := Acquire(path)
	require.NoError(t, err)
	defer first.Release()

	_, err = Acquire(path)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestReleaseAllowsReacquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kbswitchd.pid")

	first, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, first.Release())
	assert.NoFileExists(t, path)
	assert.NoError(t, first.Release(), "release is idempotent")

	second, err := Acquire(path)
	require.NoError(t, err)
	assert.NoError(t, second.Release())
}

func TestAcquireStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kbswitchd.pid")
	require.NoError(t, os.WriteFile(path, []byte("999999\n"), 0o600))

	lock, err := Acquire(path)
	require.NoError(t, err)
	defer lock.Release()

	pid, err := ReadPID(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestReadPIDInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	require.NoError(t, os.WriteFile(path, []byte("not-a-pid"), 0o600))

	_, err := ReadPID(path)
	assert.Error(t, err)
}

func TestPreflight(t *testing.T) {
	dir := t.TempDir()
	writable := filepath.Join(dir, "uinput")
	require.NoError(t, os.WriteFile(writable, nil, 0o600))

	assert.NoError(t, Preflight(writable))
	assert.Error(t, Preflight(filepath.Join(dir, "missing")))
}
