// Package dual composes two blob adapters into one store. Writes go to the
// primary synchronously and to the secondary in the background; a secondary
// failure never fails an upload. Reads prefer the primary and fall back to
// the secondary, which covers the window where a replica sees a reference
// before a slow primary (or after primary data loss).
//
// Both adapters receive the same storage key, so a reference minted here is
// resolvable against either backend. The reference carries the primary's
// scheme; the composition is invisible to callers.
package dual

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blinkhost/blink/internal/logger"
	"github.com/blinkhost/blink/pkg/blob"
)

// Store composes a primary and a secondary blob adapter.
type Store struct {
	primary   blob.Adapter
	secondary blob.Adapter

	// replicaTimeout bounds each background secondary write.
	replicaTimeout time.Duration

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// Option configures a dual store.
type Option func(*Store)

// WithReplicaTimeout sets the per-write deadline for background secondary
// writes. Default: 30s.
func WithReplicaTimeout(d time.Duration) Option {
	return func(s *Store) { s.replicaTimeout = d }
}

// New creates a dual store writing to primary synchronously and secondary
// asynchronously.
func New(primary, secondary blob.Adapter, opts ...Option) *Store {
	s := &Store{
		primary:        primary,
		secondary:      secondary,
		replicaTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save writes to the primary and schedules a best-effort secondary write
// under the same key. The returned reference is the primary's.
func (s *Store) Save(ctx context.Context, data []byte, meta blob.Meta) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", blob.ErrStoreClosed
	}
	s.mu.Unlock()

	key := uuid.NewString()

	if err := s.primary.Write(ctx, key, data, meta); err != nil {
		return "", fmt.Errorf("blob save: %w", err)
	}

	// The request context ends with the request; the replica write must
	// outlive it.
	replicaCtx := context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		wctx, cancel := context.WithTimeout(replicaCtx, s.replicaTimeout)
		defer cancel()

		if err := s.secondary.Write(wctx, key, data, meta); err != nil {
			logger.Warn("secondary blob write failed",
				"scheme", s.secondary.Scheme(),
				"key", key,
				"error", err,
			)
		}
	}()

	return blob.FormatRef(s.primary.Scheme(), key), nil
}

// Get reads from the primary and falls back to the secondary when the
// primary does not have the key.
func (s *Store) Get(ctx context.Context, ref string) ([]byte, error) {
	_, key, err := blob.ParseRef(ref)
	if err != nil {
		return nil, err
	}

	data, err := s.primary.Read(ctx, key)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, blob.ErrBlobNotFound) {
		return nil, err
	}

	logger.Debug("primary blob miss, trying secondary",
		"scheme", s.secondary.Scheme(), "key", key)
	return s.secondary.Read(ctx, key)
}

// ContentTypeOf prefers the primary's record and falls back to the secondary.
func (s *Store) ContentTypeOf(ctx context.Context, ref string) (string, error) {
	_, key, err := blob.ParseRef(ref)
	if err != nil {
		return "", err
	}

	ct, err := s.primary.ContentType(ctx, key)
	if err == nil {
		return ct, nil
	}
	if !errors.Is(err, blob.ErrBlobNotFound) {
		return "", err
	}
	return s.secondary.ContentType(ctx, key)
}

// HealthCheck requires the primary to be healthy; a degraded secondary is
// logged but tolerated.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.primary.HealthCheck(ctx); err != nil {
		return fmt.Errorf("primary %s: %w", s.primary.Scheme(), err)
	}
	if err := s.secondary.HealthCheck(ctx); err != nil {
		logger.Warn("secondary blob store unhealthy",
			"scheme", s.secondary.Scheme(), "error", err)
	}
	return nil
}

// Close waits for in-flight secondary writes, then closes both adapters.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.wg.Wait()

	err1 := s.primary.Close()
	err2 := s.secondary.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

var _ blob.Store = (*Store)(nil)
