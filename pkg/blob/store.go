package blob

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// adapterStore adapts a single Adapter into a Store by minting one random
// key per Save and encoding the adapter's scheme into the reference.
type adapterStore struct {
	adapter Adapter
}

// NewStore wraps an adapter into a Store.
func NewStore(a Adapter) Store {
	return &adapterStore{adapter: a}
}

func (s *adapterStore) Save(ctx context.Context, data []byte, meta Meta) (string, error) {
	key := uuid.NewString()
	if err := s.adapter.Write(ctx, key, data, meta); err != nil {
		return "", fmt.Errorf("blob save: %w", err)
	}
	return FormatRef(s.adapter.Scheme(), key), nil
}

func (s *adapterStore) Get(ctx context.Context, ref string) ([]byte, error) {
	scheme, key, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	if scheme != s.adapter.Scheme() {
		return nil, fmt.Errorf("%w: scheme %q not served by %q store", ErrBlobNotFound, scheme, s.adapter.Scheme())
	}
	return s.adapter.Read(ctx, key)
}

func (s *adapterStore) ContentTypeOf(ctx context.Context, ref string) (string, error) {
	scheme, key, err := ParseRef(ref)
	if err != nil {
		return "", err
	}
	if scheme != s.adapter.Scheme() {
		return "", fmt.Errorf("%w: scheme %q not served by %q store", ErrBlobNotFound, scheme, s.adapter.Scheme())
	}
	return s.adapter.ContentType(ctx, key)
}

func (s *adapterStore) HealthCheck(ctx context.Context) error {
	return s.adapter.HealthCheck(ctx)
}

func (s *adapterStore) Close() error {
	return s.adapter.Close()
}
