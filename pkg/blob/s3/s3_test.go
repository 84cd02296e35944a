package s3

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinkhost/blink/pkg/blob"
)

func TestFullKeyAppliesPrefix(t *testing.T) {
	a := New(nil, Config{Bucket: "pics", KeyPrefix: "images/"})
	assert.Equal(t, "images/abc123", a.fullKey("abc123"))

	noPrefix := New(nil, Config{Bucket: "pics"})
	assert.Equal(t, "abc123", noPrefix.fullKey("abc123"))
}

func TestScheme(t *testing.T) {
	a := New(nil, Config{Bucket: "pics"})
	assert.Equal(t, "s3", a.Scheme())
}

func TestClosedAdapterRejectsOperations(t *testing.T) {
	ctx := context.Background()
	a := New(nil, Config{Bucket: "pics"})
	require.NoError(t, a.Close())

	err := a.Write(ctx, "k", []byte("data"), blob.Meta{ContentType: "image/png"})
	assert.ErrorIs(t, err, blob.ErrStoreClosed)

	_, err = a.Read(ctx, "k")
	assert.ErrorIs(t, err, blob.ErrStoreClosed)

	_, err = a.ContentType(ctx, "k")
	assert.ErrorIs(t, err, blob.ErrStoreClosed)

	assert.ErrorIs(t, a.HealthCheck(ctx), blob.ErrStoreClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	a := New(nil, Config{Bucket: "pics"})
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
}

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"no such key", errors.New("operation error S3: GetObject, NoSuchKey: The specified key does not exist"), true},
		{"head not found", errors.New("operation error S3: HeadObject, https response error StatusCode: 404, NotFound"), true},
		{"access denied", errors.New("operation error S3: GetObject, AccessDenied"), false},
		{"timeout", errors.New("context deadline exceeded"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isNotFoundError(tt.err))
		})
	}
}
