// Package memory provides an in-memory blob adapter for tests and
// single-process setups. Contents do not survive a restart.
package memory

import (
	"context"
	"sync"

	"github.com/blinkhost/blink/pkg/blob"
)

// Scheme is the reference prefix for in-memory blobs.
const Scheme = "mem"

type entry struct {
	data []byte
	meta blob.Meta
}

// Adapter is a map-backed implementation of blob.Adapter.
type Adapter struct {
	mu     sync.RWMutex
	blobs  map[string]entry
	closed bool
}

// New creates an empty in-memory blob adapter.
func New() *Adapter {
	return &Adapter{
		blobs: make(map[string]entry),
	}
}

// Scheme implements blob.Adapter.
func (a *Adapter) Scheme() string { return Scheme }

// Write stores a copy of data under key.
func (a *Adapter) Write(ctx context.Context, key string, data []byte, meta blob.Meta) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return blob.ErrStoreClosed
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	a.blobs[key] = entry{data: buf, meta: meta}
	return nil
}

// Read returns a copy of the bytes stored under key.
func (a *Adapter) Read(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, blob.ErrStoreClosed
	}

	e, ok := a.blobs[key]
	if !ok {
		return nil, blob.ErrBlobNotFound
	}

	buf := make([]byte, len(e.data))
	copy(buf, e.data)
	return buf, nil
}

// ContentType returns the content type recorded at write time.
func (a *Adapter) ContentType(ctx context.Context, key string) (string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return "", blob.ErrStoreClosed
	}

	e, ok := a.blobs[key]
	if !ok {
		return "", blob.ErrBlobNotFound
	}
	return e.meta.ContentType, nil
}

// HealthCheck reports whether the adapter is open.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return blob.ErrStoreClosed
	}
	return nil
}

// Close marks the adapter as closed.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closed = true
	return nil
}

// Len returns the number of stored blobs (for testing).
func (a *Adapter) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.blobs)
}

var _ blob.Adapter = (*Adapter)(nil)
