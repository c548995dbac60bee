//go:build !windows

// Package singleton guards against more than one AiRan process running at
// once, per the process-wide singleton requirement: a second acquisition
// must fail cleanly rather than racing the first instance for signaling
// sockets, data channels, or the persisted peer UUID file.
package singleton

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Lock holds an acquired exclusion primitive open for the process's
// lifetime; Release drops it.
type Lock struct {
	f *os.File
}

// lockName is the file flock substitutes for Windows' named mutex.
const lockName = "AiRan.lock"

// Acquire tries to take the process-wide lock in the OS temp directory. It
// returns (nil, nil) — not an error — when another instance already holds
// it, since a second acquisition failing is the expected, successful
// outcome of the singleton check, not a fault.
func Acquire() (*Lock, error) {
	path := filepath.Join(os.TempDir(), lockName)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("singleton: open %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if err == unix.EWOULDBLOCK {
			return nil, nil
		}
		return nil, fmt.Errorf("singleton: flock %s: %w", path, err)
	}

	return &Lock{f: f}, nil
}

// Release drops the flock and closes the backing file.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}
