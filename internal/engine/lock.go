package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	pkgerrors "github.com/phakpoomachalanan/WebIR/pkg/errors"
)

const lockFileName = "write.lock"

// writeLock is the single-writer guard for an index directory. Acquisition
// creates the lock file with O_EXCL and fails fast instead of blocking when
// another writer already holds it.
type writeLock struct {
	path string
}

func acquireLock(dir string) (*writeLock, error) {
	path := filepath.Join(dir, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", pkgerrors.ErrLockConflict, path)
		}
		return nil, fmt.Errorf("creating lock file: %w", err)
	}
	fmt.Fprintln(f, strconv.Itoa(os.Getpid()))
	f.Close()
	return &writeLock{path: path}, nil
}

func (l *writeLock) release() error {
	return os.Remove(l.path)
}
