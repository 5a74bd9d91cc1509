package state

import (
	"context"
	"errors"
	"os"
	"time"
)

const (
	lockRetryInterval = 20 * time.Millisecond
	lockTimeout       = 5 * time.Second
	staleLockAge      = 30 * time.Second
)

// FileLock is a cross-process mutex backed by an O_EXCL lock file.
// Locks older than staleLockAge are treated as leftovers from a crashed
// process and broken.
type FileLock struct {
	path string
}

func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Acquire waits up to lockTimeout for the lock, returning the release
// func. Contending goroutines in the same process go through the same
// retry loop as other processes.
func (l *FileLock) Acquire(ctx context.Context) (func(), error) {
	deadline := time.Now().Add(lockTimeout)
	for {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_ = f.Close()
			return func() { _ = os.Remove(l.path) }, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		if info, statErr := os.Stat(l.path); statErr == nil && time.Since(info.ModTime()) > staleLockAge {
			_ = os.Remove(l.path)
			continue
		}
		if time.Now().After(deadline) {
			return nil, errors.New("store is locked by another writer")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}
