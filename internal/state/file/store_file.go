package file

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"futures-sim-bot/internal/state"
)

// Store keeps every snapshot in its own file under a directory. Writes
// go to a temp file first and are renamed into place, so a crash
// mid-write never leaves a partial snapshot behind and a single Set is
// atomic on its own. Load-modify-save sequences take the directory's
// lock file through Lock so writers from different processes take
// turns instead of interleaving.
type Store struct {
	dir  string
	lock *state.FileLock
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{
		dir:  dir,
		lock: state.NewFileLock(filepath.Join(dir, ".lock")),
	}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "."+encodeKey(key)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		key := decodeKey(name)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Lock takes the directory's exclusive writer lock. Every writer to a
// shared snapshot dir must hold it across its load-modify-save
// sequence, in this process or any other.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	return s.lock.Acquire(ctx)
}

func (s *Store) Close() error { return nil }

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, encodeKey(key))
}

// Keys use ':' as a namespace separator; files use '#' so nothing in a
// key is ever taken for a path element on any platform.
func encodeKey(key string) string {
	return strings.ReplaceAll(key, ":", "#")
}

func decodeKey(name string) string {
	return strings.ReplaceAll(name, "#", ":")
}
