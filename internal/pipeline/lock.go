package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFile is the name of the lock file placed in the destination directory.
const LockFile = ".azint.lock"

// ErrDestinationLocked is returned when another azint process owns the
// destination directory.
var ErrDestinationLocked = errors.New("destination directory is in use by another azint process")

// DestinationLock is an exclusive advisory lock on a destination directory.
type DestinationLock struct {
	lock *flock.Flock
}

// LockDestination creates dest if needed and locks it without blocking.
func LockDestination(dest string) (*DestinationLock, error) {
	if err := os.MkdirAll(dest, 0o750); err != nil {
		return nil, fmt.Errorf("creating destination directory: %w", err)
	}

	fl := flock.New(filepath.Join(dest, LockFile))

	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}

	if !ok {
		return nil, fmt.Errorf("%s: %w", dest, ErrDestinationLocked)
	}

	return &DestinationLock{lock: fl}, nil
}

// Path returns the lock file path.
func (l *DestinationLock) Path() string { return l.lock.Path() }

// Unlock releases the lock. It is safe to call more than once.
func (l *DestinationLock) Unlock() error {
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}

	return nil
}
