// Package lock implements the batch lock manager: an advisory
// exclusive lock on a per-batch file that prevents two concurrent
// invocations of the same batch.
package lock

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/koyomi-batch/koyomi/internal/exception"
)

const moduleName = "lock"

// BatchLock holds an acquired advisory lock on a batch's lock file for
// the engine's entire lifetime.
type BatchLock struct {
	path string
	file *os.File
}

// Acquire opens (creating if necessary) the lock file at path and takes
// a non-blocking exclusive flock on it. If the lock is already held, it
// returns an error without blocking — the caller should exit before any
// scheduling begins.
func Acquire(path string) (*BatchLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, exception.Fatal(moduleName, fmt.Sprintf("cannot open batch lock file %q", path), err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, exception.Fatal(moduleName, fmt.Sprintf("batch lock %q is already held", path), err)
	}

	return &BatchLock{path: path, file: f}, nil
}

// Release unlocks and removes the lock file on orderly exit. Kernel-level
// lock release on abnormal termination is relied upon otherwise.
func (l *BatchLock) Release() error {
	defer l.file.Close()
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		return exception.Fatal(moduleName, fmt.Sprintf("failed to release batch lock %q", l.path), err)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return exception.Fatal(moduleName, fmt.Sprintf("failed to remove batch lock file %q", l.path), err)
	}
	return nil
}
