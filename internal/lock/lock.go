// pattern: Imperative Shell
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked means another labkit process holds the lock.
var ErrLocked = errors.New("another labkit process is working on this lab")

// Lock is a held exclusive lock.
type Lock struct {
	fl *flock.Flock
}

// Path returns the lock file's location for name inside dir.
func Path(dir, name string) string {
	return filepath.Join(dir, "."+name+".lock")
}

// Acquire takes an exclusive, non-blocking lock on dir/.<name>.lock.
// The lock lives beside the lab directory rather than inside it, because
// creating a lab moves the lab directory around.
func Acquire(dir, name string) (*Lock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	fl := flock.New(Path(dir, name))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", name, ErrLocked)
	}
	return &Lock{fl: fl}, nil
}

// Release unlocks the lock. The file stays behind: removing it would let a
// process still holding the old inode lock it alongside a new one. Safe on a
// nil Lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
