// Package storage implements the durable key/value stores shared by notebook
// contexts, together with their cross-context change notifications.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrClosed indicates that the store was used after Close.
	ErrClosed = errors.New("storage: store closed")
	// ErrEmptyKey indicates that an operation was attempted without a key.
	ErrEmptyKey = errors.New("storage: empty key")
)

// Change describes a write performed by another context.
type Change struct {
	Key     string
	Value   string
	Removed bool
}

// Store is a key/value store scoped to one notebook profile. Writers never
// observe their own changes through Subscribe.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Subscribe delivers changes made by other contexts to the listed keys, or
	// to every key when none are listed. Delivery is best effort: a slow
	// subscriber drops changes rather than blocking writers.
	Subscribe(ctx context.Context, keys ...string) (<-chan Change, func())
}
