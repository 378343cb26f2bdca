//go:build linux

// Package daemon holds process-level guards: the single-instance PID lock
// and startup checks for the kernel interfaces the daemon needs.
package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// UinputPath is the kernel's virtual input device factory.
const UinputPath = "/dev/uinput"

// ErrAlreadyRunning is returned when another process holds the PID lock.
var ErrAlreadyRunning = errors.New("daemon: another instance is running")

// Lock is an exclusively locked PID file. Two daemons grabbing the same
// keyboard would fight over it, so only one may run per lock path.
type Lock struct {
	path string
	file *os.File
}

// Acquire creates or opens path, takes a non-blocking exclusive flock and
// writes the current PID into it. The kernel drops the lock if the process
// dies, so a stale file left by a crash does not block the next start.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create pid dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("open pid file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			if pid, perr := ReadPID(path); perr == nil {
				return nil, fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
			}
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("lock pid file: %w", err)
	}

	if err := f.Truncate(0); err != nil {
		unlock(f)
		return nil, fmt.Errorf("truncate pid file: %w", err)
	}
	if _, err := f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0); err != nil {
		unlock(f)
		return nil, fmt.Errorf("write pid file: %w", err)
	}

	return &Lock{path: path, file: f}, nil
}

// Path returns the PID file path.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the PID file and drops the lock.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	// Remove while still locked so a new instance never sees our PID.
	rmErr := os.Remove(l.path)
	err := unlock(l.file)
	l.file = nil
	if rmErr != nil && !os.IsNotExist(rmErr) {
		return fmt.Errorf("remove pid file: %w", rmErr)
	}
	return err
}

func unlock(f *os.File) error {
	uerr := unix.Flock(int(f.Fd()), unix.LOCK_UN)
	cerr := f.Close()
	if uerr != nil {
		return fmt.Errorf("unlock pid file: %w", uerr)
	}
	return cerr
}

// ReadPID reads the PID recorded in a PID file.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID file: %w", err)
	}
	return pid, nil
}

// Preflight checks that the virtual keyboard can be created. It only tests
// permissions; device creation itself happens per capture episode.
func Preflight(uinput string) error {
	if err := unix.Access(uinput, unix.W_OK); err != nil {
		return fmt.Errorf("cannot write %s (need root or the uinput group): %w", uinput, err)
	}
	return nil
}
