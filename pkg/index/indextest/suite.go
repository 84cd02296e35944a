// Package indextest provides a conformance test suite for metadata index
// implementations. All backends (memory, badger, postgres) should pass
// these tests; they pin the contract the upload coordinator and access
// arbiter depend on.
//
// Usage:
//
//	func TestConformance(t *testing.T) {
//	    indextest.RunConformanceSuite(t, func(t *testing.T) index.Index {
//	        return memory.New()
//	    })
//	}
package indextest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/blinkhost/blink/pkg/index"
)

// IndexFactory creates a fresh Index instance for each test.
type IndexFactory func(t *testing.T) index.Index

// RunConformanceSuite runs the full conformance test suite against the
// provided index factory.
func RunConformanceSuite(t *testing.T, factory IndexFactory) {
	t.Helper()

	t.Run("PutGetRoundTrip", func(t *testing.T) { testPutGetRoundTrip(t, factory) })
	t.Run("AbsentTokenIsNilNil", func(t *testing.T) { testAbsentToken(t, factory) })
	t.Run("RecordsDoNotMutate", func(t *testing.T) { testRecordsDoNotMutate(t, factory) })
	t.Run("PutIsUpsert", func(t *testing.T) { testPutIsUpsert(t, factory) })
	t.Run("ConcurrentPuts", func(t *testing.T) { testConcurrentPuts(t, factory) })
}

func testPutGetRoundTrip(t *testing.T, factory IndexFactory) {
	ctx := context.Background()
	idx := factory(t)
	defer idx.Close()

	rec := index.Record{
		Token:       "tok-roundtrip",
		BlobRef:     "fs:4f1c",
		ExpiresAtMs: 1_060_000,
		ContentType: "image/jpeg",
	}
	if err := idx.Put(ctx, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := idx.Get(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("Get returned nil for stored token")
	}
	if *got != rec {
		t.Errorf("Get = %+v, want %+v", *got, rec)
	}
}

func testAbsentToken(t *testing.T, factory IndexFactory) {
	ctx := context.Background()
	idx := factory(t)
	defer idx.Close()

	// Absence is not an error: (nil, nil) is the contract.
	got, err := idx.Get(ctx, "never-stored")
	if err != nil {
		t.Fatalf("Get(absent) error = %v, want nil", err)
	}
	if got != nil {
		t.Errorf("Get(absent) = %+v, want nil", got)
	}
}

func testRecordsDoNotMutate(t *testing.T, factory IndexFactory) {
	ctx := context.Background()
	idx := factory(t)
	defer idx.Close()

	rec := index.Record{
		Token:       "tok-immutable",
		BlobRef:     "s3:images/a",
		ExpiresAtMs: 42_000,
		ContentType: "image/png",
	}
	if err := idx.Put(ctx, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	first, err := idx.Get(ctx, rec.Token)
	if err != nil || first == nil {
		t.Fatalf("first Get = (%v, %v)", first, err)
	}

	// Mutating the returned record must not affect the stored one.
	first.ExpiresAtMs = 0
	first.BlobRef = "tampered"

	second, err := idx.Get(ctx, rec.Token)
	if err != nil || second == nil {
		t.Fatalf("second Get = (%v, %v)", second, err)
	}
	if *second != rec {
		t.Errorf("record mutated between reads: %+v, want %+v", *second, rec)
	}
}

func testPutIsUpsert(t *testing.T, factory IndexFactory) {
	ctx := context.Background()
	idx := factory(t)
	defer idx.Close()

	first := index.Record{Token: "tok-upsert", BlobRef: "fs:a", ExpiresAtMs: 1}
	second := index.Record{Token: "tok-upsert", BlobRef: "fs:b", ExpiresAtMs: 2, ContentType: "image/gif"}

	if err := idx.Put(ctx, first); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if err := idx.Put(ctx, second); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}

	got, err := idx.Get(ctx, "tok-upsert")
	if err != nil || got == nil {
		t.Fatalf("Get = (%v, %v)", got, err)
	}
	if *got != second {
		t.Errorf("Get = %+v, want overwritten record %+v", *got, second)
	}
}

func testConcurrentPuts(t *testing.T, factory IndexFactory) {
	ctx := context.Background()
	idx := factory(t)
	defer idx.Close()

	const n = 32

	var wg sync.WaitGroup
	errs := make([]error, n)
	for g := 0; g < n; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			errs[g] = idx.Put(ctx, index.Record{
				Token:       fmt.Sprintf("tok-conc-%d", g),
				BlobRef:     fmt.Sprintf("mem:%d", g),
				ExpiresAtMs: int64(g),
			})
		}(g)
	}
	wg.Wait()

	for g, err := range errs {
		if err != nil {
			t.Fatalf("Put #%d failed: %v", g, err)
		}
	}

	for g := 0; g < n; g++ {
		got, err := idx.Get(ctx, fmt.Sprintf("tok-conc-%d", g))
		if err != nil || got == nil {
			t.Fatalf("Get #%d = (%v, %v)", g, got, err)
		}
		if got.ExpiresAtMs != int64(g) {
			t.Errorf("record %d holds expiry %d", g, got.ExpiresAtMs)
		}
	}
}

// RunDurabilitySuite verifies records survive a close-and-reopen cycle.
// open is called twice with the same directory; the second call must
// observe what the first instance stored. In-memory backends should not
// run this suite.
func RunDurabilitySuite(t *testing.T, open func(t *testing.T, dir string) index.Index) {
	t.Helper()

	ctx := context.Background()
	dir := t.TempDir()

	rec := index.Record{
		Token:       "tok-durable",
		BlobRef:     "fs:survivor",
		ExpiresAtMs: 9_999_999,
		ContentType: "image/webp",
	}

	first := open(t, dir)
	if err := first.Put(ctx, rec); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second := open(t, dir)
	defer second.Close()

	got, err := second.Get(ctx, rec.Token)
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if got == nil {
		t.Fatal("record lost across reopen")
	}
	if *got != rec {
		t.Errorf("Get after reopen = %+v, want %+v", *got, rec)
	}
}
