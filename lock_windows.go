//go:build windows

package sparsedex

import (
	"fmt"
	"os"
)

// dirLock holds an index directory's LOCK file open. On Windows no OS-level
// lock is taken: the file is created if missing and otherwise opened with
// the default sharing mode, so a second process opening the same directory
// is not refused.
type dirLock struct {
	f *os.File
}

func acquireDirLock(dir string) (*dirLock, error) {
	path := dir + "/LOCK"
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if os.IsExist(err) {
		f, err = os.OpenFile(path, os.O_RDWR, 0644)
	}
	if err != nil {
		return nil, fmt.Errorf("sparsedex: open lock file: %w", err)
	}
	return &dirLock{f: f}, nil
}

func (l *dirLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	return l.f.Close()
}
