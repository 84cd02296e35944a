// Package memory provides a map-backed metadata index for tests and
// single-process setups. Records do not survive a restart.
package memory

import (
	"context"
	"sync"

	"github.com/blinkhost/blink/pkg/index"
)

// Index is an in-memory implementation of index.Index.
type Index struct {
	mu      sync.RWMutex
	records map[string]index.Record
	closed  bool
}

// New creates an empty in-memory index.
func New() *Index {
	return &Index{
		records: make(map[string]index.Record),
	}
}

// Put stores the record, overwriting any previous record for the token.
func (i *Index) Put(ctx context.Context, rec index.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return index.ErrIndexClosed
	}

	i.records[rec.Token] = rec
	return nil
}

// Get returns a copy of the record, or (nil, nil) when absent.
func (i *Index) Get(ctx context.Context, token string) (*index.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return nil, index.ErrIndexClosed
	}

	rec, ok := i.records[token]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// HealthCheck reports whether the index is open.
func (i *Index) HealthCheck(ctx context.Context) error {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.closed {
		return index.ErrIndexClosed
	}
	return nil
}

// Close marks the index as closed.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.closed = true
	return nil
}

// Len returns the number of stored records (for testing).
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.records)
}

var _ index.Index = (*Index)(nil)
