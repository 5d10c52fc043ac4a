// Package kv provides the synchronous key-value store the local persistence
// adapter writes to. Backends: in-memory, filesystem (go-billy) and SQLite.
package kv

import (
	"github.com/jmgilman/go/errors"
)

// CodeQuotaExceeded is returned when a write would exceed the store quota.
const CodeQuotaExceeded errors.ErrorCode = "QUOTA_EXCEEDED"

// ErrNotFound is returned by Get for keys that are not present.
var ErrNotFound = errors.New(errors.CodeNotFound, "key not found")

// ErrClosed is returned after Close.
var ErrClosed = errors.New(errors.CodeUnavailable, "store closed")

// Store is a flat string-keyed byte store. Implementations are safe for
// concurrent use; a successful Set is durable for persistent backends.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	// Keys returns all keys starting with prefix, sorted.
	Keys(prefix string) ([]string, error)
	Close() error
}
