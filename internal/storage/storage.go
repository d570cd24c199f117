// Package storage defines the key-value persistence port the store and
// backup components are built on, with in-memory, BadgerDB, and PostgreSQL
// implementations.
package storage

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get for keys that have never been set or
// have been removed.
var ErrKeyNotFound = errors.New("storage: key not found")

// Port is the persistence interface. Values are opaque byte slices; the
// callers of this package store JSON documents in them.
type Port interface {
	// Get retrieves the value for a key, or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value under a key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Remove deletes a key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// Keys lists every stored key.
	Keys(ctx context.Context) ([]string, error)

	// Clear removes every stored key.
	Clear(ctx context.Context) error
}
