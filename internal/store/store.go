// Package store persists the complete collection of entitlement orders as a
// single document. Every backend replaces the whole collection on SaveAll,
// which keeps the layer free of business logic but means concurrent writers
// in different processes resolve as last-writer-wins.
package store

import (
	"context"
	"fmt"

	"hq-entitlements/internal/model"

	"github.com/cockroachdb/errors"
)

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendS3       = "s3"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Op identifies the store operation that failed.
type Op string

const (
	OpLoad Op = "load"
	OpSave Op = "save"
)

// Store is the durable backing of the order cache.
type Store interface {
	// LoadAll returns every persisted order. A store with no document yet
	// returns an empty slice and no error.
	LoadAll(ctx context.Context) ([]model.Order, error)

	// SaveAll replaces the persisted document with orders. Readers never
	// observe a partially written document.
	SaveAll(ctx context.Context, orders []model.Order) error

	// Backend names the storage technology for logs and status output.
	Backend() string

	// Close releases resources held by the store.
	Close() error
}

// ErrPersistence marks every failure returned by a Store.
var ErrPersistence = errors.New("persistence failure")

// PersistenceError is the typed failure value returned by all backends.
// I/O faults, permission errors on read-only storage and serialisation
// faults are all reported this way and never as panics.
type PersistenceError struct {
	Op      Op
	Backend string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrPersistence) match any PersistenceError.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// fail wraps cause with a stack and message and tags it with op and backend.
func fail(op Op, backend string, cause error, msg string) error {
	return &PersistenceError{
		Op:      op,
		Backend: backend,
		Err:     errors.Wrap(cause, msg),
	}
}

// AsPersistenceError extracts the typed failure from err.
func AsPersistenceError(err error) (*PersistenceError, bool) {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
