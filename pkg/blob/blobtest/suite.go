// Package blobtest provides a conformance test suite for blob store
// implementations. Every adapter (memory, fs, s3, dual) should pass these
// tests; they pin the behavioral contract the upload and access paths
// depend on.
//
// Usage:
//
//	func TestConformance(t *testing.T) {
//	    blobtest.RunConformanceSuite(t, func(t *testing.T) blob.Store {
//	        return blob.NewStore(memory.New())
//	    })
//	}
//
// The factory receives *testing.T so it can call t.TempDir() for adapters
// that need filesystem paths and t.Cleanup for teardown.
package blobtest

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/blinkhost/blink/pkg/blob"
)

// StoreFactory creates a fresh Store instance for each test.
type StoreFactory func(t *testing.T) blob.Store

// RunConformanceSuite runs the full conformance test suite against the
// provided store factory.
func RunConformanceSuite(t *testing.T, factory StoreFactory) {
	t.Helper()

	t.Run("SaveGetRoundTrip", func(t *testing.T) { testSaveGetRoundTrip(t, factory) })
	t.Run("GetUnknownRef", func(t *testing.T) { testGetUnknownRef(t, factory) })
	t.Run("DistinctRefs", func(t *testing.T) { testDistinctRefs(t, factory) })
	t.Run("ContentType", func(t *testing.T) { testContentType(t, factory) })
	t.Run("RepeatedGet", func(t *testing.T) { testRepeatedGet(t, factory) })
	t.Run("MalformedRef", func(t *testing.T) { testMalformedRef(t, factory) })
}

func testSaveGetRoundTrip(t *testing.T, factory StoreFactory) {
	ctx := context.Background()
	s := factory(t)
	defer s.Close()

	data := bytes.Repeat([]byte{0x01}, 1024)
	ref, err := s.Save(ctx, data, blob.Meta{ContentType: "image/jpeg", Filename: "a.jpg"})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if ref == "" {
		t.Fatal("Save returned empty reference")
	}

	got, err := s.Get(ctx, ref)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("Get returned %d bytes, want %d identical bytes", len(got), len(data))
	}
}

func testGetUnknownRef(t *testing.T, factory StoreFactory) {
	ctx := context.Background()
	s := factory(t)
	defer s.Close()

	// A syntactically valid reference that was never saved.
	ref, err := s.Save(ctx, []byte("x"), blob.Meta{ContentType: "image/png"})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	scheme, _, err := blob.ParseRef(ref)
	if err != nil {
		t.Fatalf("ParseRef(%q): %v", ref, err)
	}

	_, err = s.Get(ctx, blob.FormatRef(scheme, "00000000-0000-0000-0000-000000000000"))
	if !errors.Is(err, blob.ErrBlobNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrBlobNotFound", err)
	}
}

func testDistinctRefs(t *testing.T, factory StoreFactory) {
	ctx := context.Background()
	s := factory(t)
	defer s.Close()

	data := []byte("same bytes")
	ref1, err := s.Save(ctx, data, blob.Meta{ContentType: "image/png"})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	ref2, err := s.Save(ctx, data, blob.Meta{ContentType: "image/png"})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// No deduplication obligation: each save allocates its own reference.
	if ref1 == ref2 {
		t.Errorf("two saves of identical bytes returned the same reference %q", ref1)
	}
}

func testContentType(t *testing.T, factory StoreFactory) {
	ctx := context.Background()
	s := factory(t)
	defer s.Close()

	ref, err := s.Save(ctx, []byte("webp bytes"), blob.Meta{ContentType: "image/webp"})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	ct, err := s.ContentTypeOf(ctx, ref)
	if err != nil {
		t.Fatalf("ContentTypeOf failed: %v", err)
	}
	if ct != "image/webp" {
		t.Errorf("ContentTypeOf = %q, want %q", ct, "image/webp")
	}
}

func testRepeatedGet(t *testing.T, factory StoreFactory) {
	ctx := context.Background()
	s := factory(t)
	defer s.Close()

	data := []byte{0xde, 0xad, 0xbe, 0xef}
	ref, err := s.Save(ctx, data, blob.Meta{ContentType: "image/gif"})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		got, err := s.Get(ctx, ref)
		if err != nil {
			t.Fatalf("Get #%d failed: %v", i, err)
		}
		if !bytes.Equal(got, data) {
			t.Fatalf("Get #%d returned different bytes", i)
		}
	}
}

func testMalformedRef(t *testing.T, factory StoreFactory) {
	ctx := context.Background()
	s := factory(t)
	defer s.Close()

	for _, ref := range []string{"", "noscheme", ":key", "fs:"} {
		if _, err := s.Get(ctx, ref); err == nil {
			t.Errorf("Get(%q) expected error", ref)
		}
	}
}
