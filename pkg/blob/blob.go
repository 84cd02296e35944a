// Package blob defines the blob store contract: persist opaque bytes under a
// storage-chosen reference and retrieve them by that reference. The service
// never deletes blobs; a reference, once returned, stays readable for the
// lifetime of the backing store.
//
// A reference is a string of the form "<scheme>:<key>", e.g. "fs:4f1c..."
// or "s3:images/4f1c...". Only the adapter that produced a reference
// interprets it; everything above this package treats it as opaque.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBlobNotFound indicates the reference does not resolve to stored bytes.
	ErrBlobNotFound = errors.New("blob not found")

	// ErrBlobTooLarge indicates the adapter's own size limit was exceeded.
	ErrBlobTooLarge = errors.New("blob exceeds adapter size limit")

	// ErrStoreClosed indicates an operation on a closed store.
	ErrStoreClosed = errors.New("blob store is closed")

	// ErrMalformedRef indicates a reference that no adapter can interpret.
	ErrMalformedRef = errors.New("malformed blob reference")
)

// Meta carries the declared upload attributes persisted alongside the bytes.
type Meta struct {
	ContentType string
	Filename    string
}

// Store is the capability the upload and access paths depend on.
type Store interface {
	// Save persists data and returns an opaque reference. Each call may
	// allocate a new reference; identical bytes are not deduplicated.
	Save(ctx context.Context, data []byte, meta Meta) (string, error)

	// Get returns the complete bytes previously stored under ref, or
	// ErrBlobNotFound.
	Get(ctx context.Context, ref string) ([]byte, error)

	// ContentTypeOf returns the content type declared at Save time, or ""
	// if the adapter did not retain it.
	ContentTypeOf(ctx context.Context, ref string) (string, error)

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases adapter resources.
	Close() error
}

// Adapter persists bytes under caller-chosen keys. The generic Store wrapper
// mints keys and formats references; adapters only move bytes. Keeping keys
// at this level lets the dual store write the same key to two backends.
type Adapter interface {
	// Scheme is the reference prefix this adapter owns ("fs", "s3", "mem").
	Scheme() string

	Write(ctx context.Context, key string, data []byte, meta Meta) error
	Read(ctx context.Context, key string) ([]byte, error)
	ContentType(ctx context.Context, key string) (string, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// FormatRef builds a reference from an adapter scheme and key.
func FormatRef(scheme, key string) string {
	return scheme + ":" + key
}

// ParseRef splits a reference into scheme and key.
func ParseRef(ref string) (scheme, key string, err error) {
	i := strings.IndexByte(ref, ':')
	if i <= 0 || i == len(ref)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedRef, ref)
	}
	return ref[:i], ref[i+1:], nil
}
