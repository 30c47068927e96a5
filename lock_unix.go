//go:build !windows

package sparsedex

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// dirLock is an advisory exclusive lock on an index directory, taken by
// Open/Create and held until Close, preventing a second process from
// opening the same directory concurrently. Contention is reported as
// ErrBusy.
type dirLock struct {
	f *os.File
}

func acquireDirLock(dir string) (*dirLock, error) {
	path := dir + "/LOCK"
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("sparsedex: open lock file: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrBusy, dir, err)
	}
	return &dirLock{f: f}, nil
}

func (l *dirLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	return l.f.Close()
}
