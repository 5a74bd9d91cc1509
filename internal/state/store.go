package state

import (
	"context"
	"errors"
)

// ErrCorruptSnapshot marks a persisted snapshot that fails schema
// validation on load. Callers must not fall back to a default value.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Store is a durable key-value snapshot store. Every value is a
// complete-overwrite snapshot, never an incremental delta, so a Set
// acknowledged by the backend fully supersedes the previous value.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// List returns all keys with the given prefix in ascending order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Lock takes the store's exclusive writer lock, blocking writers in
	// other processes until the returned release func runs. A single Set
	// is atomic on its own; any load-modify-save sequence must hold the
	// lock or a concurrent writer's update can be silently lost.
	Lock(ctx context.Context) (func(), error)
	Close() error
}
