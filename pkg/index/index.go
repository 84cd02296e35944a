// Package index defines the metadata index contract: a durable map from
// opaque token to the record describing one uploaded image. Records are
// immutable after insertion and are never deleted; expiry is enforced by the
// access arbiter, not by the index.
package index

import (
	"context"
	"errors"
)

var (
	// ErrIndexUnavailable indicates the backing store cannot be reached.
	ErrIndexUnavailable = errors.New("metadata index unavailable")

	// ErrIndexIO indicates the backing store failed to answer a query.
	ErrIndexIO = errors.New("metadata index I/O error")

	// ErrIndexClosed indicates an operation on a closed index.
	ErrIndexClosed = errors.New("metadata index is closed")
)

// Record is the durable tuple bound to one token. ExpiresAtMs is an absolute
// instant in epoch milliseconds, fixed at upload time.
type Record struct {
	Token       string
	BlobRef     string
	ExpiresAtMs int64
	ContentType string
}

// Index is the metadata index capability. Implementations must bootstrap
// their own schema before the first Put or Get returns success, persist
// records across restarts, and make a record visible to every replica
// sharing the backing store as soon as Put returns.
type Index interface {
	// Put inserts the record, keyed by token. Put is an atomic upsert:
	// the record is either fully visible or not at all. Tokens are never
	// reused by the coordinator, so overwrites only occur in test replay.
	Put(ctx context.Context, rec Record) error

	// Get returns the record for token, or (nil, nil) when no such token
	// exists. A non-nil error means the index could not answer; absence is
	// not an error.
	Get(ctx context.Context, token string) (*Record, error)

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases resources.
	Close() error
}
