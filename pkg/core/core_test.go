package core

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blinkhost/blink/pkg/blob"
	blobmem "github.com/blinkhost/blink/pkg/blob/memory"
	"github.com/blinkhost/blink/pkg/index"
	indexmem "github.com/blinkhost/blink/pkg/index/memory"
	"github.com/blinkhost/blink/pkg/token"
)

// fakeClock is a settable clock pinned by tests.
type fakeClock struct {
	mu sync.Mutex
	ms int64
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.UnixMilli(c.ms)
}

func (c *fakeClock) set(ms int64) {
	c.mu.Lock()
	c.ms = ms
	c.mu.Unlock()
}

// callLog records the order of collaborator invocations.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	l.calls = append(l.calls, name)
	l.mu.Unlock()
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// recordingBlobStore wraps a real store, logging calls and optionally
// failing saves or hiding blobs.
type recordingBlobStore struct {
	blob.Store
	log      *callLog
	failSave bool
	vanish   bool // make Get report every ref missing
	getCalls int
}

func (r *recordingBlobStore) Save(ctx context.Context, data []byte, meta blob.Meta) (string, error) {
	r.log.add("blob.Save")
	if r.failSave {
		return "", errors.New("disk full")
	}
	return r.Store.Save(ctx, data, meta)
}

func (r *recordingBlobStore) Get(ctx context.Context, ref string) ([]byte, error) {
	r.log.add("blob.Get")
	r.getCalls++
	if r.vanish {
		return nil, blob.ErrBlobNotFound
	}
	return r.Store.Get(ctx, ref)
}

// recordingIndex wraps a real index, logging calls and optionally failing.
type recordingIndex struct {
	index.Index
	log      *callLog
	failPut  bool
	failGet  bool
	getCalls int
	putCalls int
}

func (r *recordingIndex) Put(ctx context.Context, rec index.Record) error {
	r.log.add("index.Put")
	r.putCalls++
	if r.failPut {
		return index.ErrIndexIO
	}
	return r.Index.Put(ctx, rec)
}

func (r *recordingIndex) Get(ctx context.Context, tok string) (*index.Record, error) {
	r.log.add("index.Get")
	r.getCalls++
	if r.failGet {
		return nil, index.ErrIndexUnavailable
	}
	return r.Index.Get(ctx, tok)
}

// recordingMinter wraps the real generator, logging calls and optionally
// failing.
type recordingMinter struct {
	gen   *token.Generator
	log   *callLog
	fail  bool
	mints int
}

func (r *recordingMinter) Mint() (string, error) {
	r.log.add("token.Mint")
	r.mints++
	if r.fail {
		return "", token.ErrEntropy
	}
	return r.gen.Mint()
}

type fixture struct {
	svc    *Service
	blobs  *recordingBlobStore
	idx    *recordingIndex
	minter *recordingMinter
	clock  *fakeClock
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	log := &callLog{}
	blobs := &recordingBlobStore{Store: blob.NewStore(blobmem.New()), log: log}
	idx := &recordingIndex{Index: indexmem.New(), log: log}
	minter := &recordingMinter{gen: token.NewGenerator(), log: log}
	clock := &fakeClock{ms: 1_000_000}

	svc := NewService(blobs, idx, cfg,
		WithClock(clock),
		WithMinter(minter),
	)

	return &fixture{svc: svc, blobs: blobs, idx: idx, minter: minter, clock: clock}
}

func (f *fixture) callOrder() []string {
	return f.blobs.log.snapshot()
}

var jpegUpload = UploadRequest{
	Data:        bytes.Repeat([]byte{0x01}, 1024),
	ContentType: "image/jpeg",
	Filename:    "photo.jpg",
}

func TestUploadHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.clock.set(1_000_000)

	res, err := f.svc.Upload(ctx, jpegUpload)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	if len(res.Token) != token.Length {
		t.Errorf("token length = %d, want %d", len(res.Token), token.Length)
	}
	if res.ExpiresAtMs != 1_060_000 {
		t.Errorf("ExpiresAtMs = %d, want 1060000", res.ExpiresAtMs)
	}

	f.clock.set(1_030_000)
	out, err := f.svc.Access(ctx, res.Token)
	if err != nil {
		t.Fatalf("Access failed: %v", err)
	}
	if !out.Allowed {
		t.Fatalf("Access denied: %s", out.Reason)
	}
	if !bytes.Equal(out.Data, jpegUpload.Data) {
		t.Error("bytes differ from upload")
	}
	if out.Record.ContentType != "image/jpeg" {
		t.Errorf("content type = %q", out.Record.ContentType)
	}
}

func TestUploadInvocationOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	if _, err := f.svc.Upload(ctx, jpegUpload); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	want := []string{"blob.Save", "token.Mint", "index.Put"}
	got := f.callOrder()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want %v", got, want)
		}
	}
}

func TestUploadExpiryArithmetic(t *testing.T) {
	ctx := context.Background()

	for _, nowMs := range []int64{0, 1, 1_000_000, 9_999_999_999} {
		f := newFixture(t, Config{})
		f.clock.set(nowMs)

		res, err := f.svc.Upload(ctx, jpegUpload)
		if err != nil {
			t.Fatalf("Upload at %d failed: %v", nowMs, err)
		}
		if res.ExpiresAtMs != nowMs+60_000 {
			t.Errorf("ExpiresAtMs at now=%d: got %d, want %d", nowMs, res.ExpiresAtMs, nowMs+60_000)
		}

		// The persisted record must carry the same instant.
		rec, err := f.idx.Get(ctx, res.Token)
		if err != nil || rec == nil {
			t.Fatalf("index Get = (%v, %v)", rec, err)
		}
		if rec.ExpiresAtMs != res.ExpiresAtMs {
			t.Errorf("record expiry %d != result expiry %d", rec.ExpiresAtMs, res.ExpiresAtMs)
		}
	}
}

func TestUploadValidationLeavesStoresUntouched(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		req     UploadRequest
		wantErr error
	}{
		{"empty payload", UploadRequest{ContentType: "image/png"}, ErrInvalidInput},
		{"missing content type", UploadRequest{Data: []byte{1}}, ErrInvalidInput},
		{"oversized", UploadRequest{Data: make([]byte, 6*1024*1024), ContentType: "image/png"}, ErrTooLarge},
		{"unsupported type", UploadRequest{Data: []byte{1}, ContentType: "application/octet-stream"}, ErrUnsupportedType},
		{"unsupported gif by default", UploadRequest{Data: []byte{1}, ContentType: "image/gif"}, ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})

			_, err := f.svc.Upload(ctx, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Upload error = %v, want %v", err, tt.wantErr)
			}
			if calls := f.callOrder(); len(calls) != 0 {
				t.Errorf("rejected upload touched collaborators: %v", calls)
			}
		})
	}
}

func TestUploadSizeCapBoundary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{MaxUploadBytes: 1024})

	ok := UploadRequest{Data: make([]byte, 1024), ContentType: "image/png"}
	if _, err := f.svc.Upload(ctx, ok); err != nil {
		t.Errorf("Upload at cap failed: %v", err)
	}

	over := UploadRequest{Data: make([]byte, 1025), ContentType: "image/png"}
	if _, err := f.svc.Upload(ctx, over); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Upload over cap error = %v, want ErrTooLarge", err)
	}
}

func TestUploadBlobFailureWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.blobs.failSave = true

	if _, err := f.svc.Upload(ctx, jpegUpload); err == nil {
		t.Fatal("Upload expected error")
	}

	if f.minter.mints != 0 {
		t.Error("token minted despite blob failure")
	}
	if f.idx.putCalls != 0 {
		t.Error("record put despite blob failure")
	}
}

func TestUploadMintFailureWritesNoRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.minter.fail = true

	_, err := f.svc.Upload(ctx, jpegUpload)
	if !errors.Is(err, token.ErrEntropy) {
		t.Fatalf("Upload error = %v, want ErrEntropy", err)
	}

	if f.idx.putCalls != 0 {
		t.Error("record put despite mint failure")
	}
}

func TestUploadIndexFailureAborts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.idx.failPut = true

	_, err := f.svc.Upload(ctx, jpegUpload)
	if !errors.Is(err, index.ErrIndexIO) {
		t.Fatalf("Upload error = %v, want ErrIndexIO", err)
	}
}

func TestAccessPolicyBoundary(t *testing.T) {
	ctx := context.Background()

	// Upload at t0=1,000,000 with default TTL 60s and skew 5s:
	// E = 1,060,000, grace closes at E+5,000.
	const e = 1_060_000
	const s = 5_000

	tests := []struct {
		nowMs   int64
		allowed bool
	}{
		{e - 1, true},
		{e, true},
		{e + 1, true}, // grace
		{e + s - 1, true},
		{e + s, true},
		{e + s + 1, false},
		{e + 10_000, false},
	}

	for _, tt := range tests {
		f := newFixture(t, Config{})
		f.clock.set(1_000_000)

		res, err := f.svc.Upload(ctx, jpegUpload)
		if err != nil {
			t.Fatalf("Upload failed: %v", err)
		}

		f.clock.set(tt.nowMs)
		out, err := f.svc.Access(ctx, res.Token)
		if err != nil {
			t.Fatalf("Access at %d failed: %v", tt.nowMs, err)
		}

		if out.Allowed != tt.allowed {
			t.Errorf("Access at now=%d: allowed=%v, want %v", tt.nowMs, out.Allowed, tt.allowed)
		}
		if !tt.allowed && out.Reason != DenyExpired {
			t.Errorf("Access at now=%d: reason=%s, want expired", tt.nowMs, out.Reason)
		}
	}
}

func TestAccessDeniedNeverReadsBlob(t *testing.T) {
	ctx := context.Background()

	t.Run("missing token", func(t *testing.T) {
		f := newFixture(t, Config{})

		out, err := f.svc.Access(ctx, "token-that-was-never-minted")
		if err != nil {
			t.Fatalf("Access failed: %v", err)
		}
		if out.Allowed || out.Reason != DenyMissing {
			t.Errorf("outcome = %+v, want denied(missing)", out)
		}
		if f.blobs.getCalls != 0 {
			t.Error("blob store read for a denied access")
		}
	})

	t.Run("expired token", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.clock.set(1_000_000)

		res, err := f.svc.Upload(ctx, jpegUpload)
		if err != nil {
			t.Fatalf("Upload failed: %v", err)
		}

		f.clock.set(1_070_000)
		out, err := f.svc.Access(ctx, res.Token)
		if err != nil {
			t.Fatalf("Access failed: %v", err)
		}
		if out.Allowed || out.Reason != DenyExpired {
			t.Errorf("outcome = %+v, want denied(expired)", out)
		}
		if f.blobs.getCalls != 0 {
			t.Error("blob store read for an expired token")
		}
	})
}

func TestAccessInvalidTokenTouchesNothing(t *testing.T) {
	ctx := context.Background()

	for _, tok := range []string{"", "   ", "\t\n"} {
		f := newFixture(t, Config{})

		out, err := f.svc.Access(ctx, tok)
		if err != nil {
			t.Fatalf("Access(%q) failed: %v", tok, err)
		}
		if out.Allowed || out.Reason != DenyInvalid {
			t.Errorf("Access(%q) = %+v, want denied(invalid)", tok, out)
		}
		if f.idx.getCalls != 0 || f.blobs.getCalls != 0 {
			t.Errorf("Access(%q) touched stores", tok)
		}
	}
}

func TestAccessIndexFaultPropagates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.idx.failGet = true

	_, err := f.svc.Access(ctx, "some-token")
	if !errors.Is(err, index.ErrIndexUnavailable) {
		t.Fatalf("Access error = %v, want ErrIndexUnavailable", err)
	}
}

func TestAccessMissingBlobIsInternal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.clock.set(1_000_000)

	res, err := f.svc.Upload(ctx, jpegUpload)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	// Valid record, vanished blob: an invariant violation, not a denial.
	f.blobs.vanish = true

	_, err = f.svc.Access(ctx, res.Token)
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("Access error = %v, want ErrInternal", err)
	}
}

func TestRepeatedAccessIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	f.clock.set(1_000_000)

	res, err := f.svc.Upload(ctx, jpegUpload)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	var prev []byte
	for i := 0; i < 3; i++ {
		out, err := f.svc.Access(ctx, res.Token)
		if err != nil {
			t.Fatalf("Access #%d failed: %v", i, err)
		}
		if !out.Allowed {
			t.Fatalf("Access #%d denied: %s", i, out.Reason)
		}
		if prev != nil && !bytes.Equal(prev, out.Data) {
			t.Fatalf("Access #%d returned different bytes", i)
		}
		prev = out.Data
	}
}

func TestCustomAcceptedTypes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{AcceptedTypes: []string{"image/gif"}})

	gif := UploadRequest{Data: []byte{1}, ContentType: "image/gif"}
	if _, err := f.svc.Upload(ctx, gif); err != nil {
		t.Errorf("Upload of configured type failed: %v", err)
	}

	jpeg := UploadRequest{Data: []byte{1}, ContentType: "image/jpeg"}
	if _, err := f.svc.Upload(ctx, jpeg); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("Upload outside configured set error = %v, want ErrUnsupportedType", err)
	}
}

func TestTokensAreUniqueAcrossUploads(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		res, err := f.svc.Upload(ctx, jpegUpload)
		if err != nil {
			t.Fatalf("Upload #%d failed: %v", i, err)
		}
		if _, dup := seen[res.Token]; dup {
			t.Fatalf("duplicate token at upload #%d", i)
		}
		seen[res.Token] = struct{}{}
	}
}
