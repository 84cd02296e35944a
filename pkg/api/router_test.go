package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/blinkhost/blink/pkg/blob"
	blobmem "github.com/blinkhost/blink/pkg/blob/memory"
	"github.com/blinkhost/blink/pkg/core"
	"github.com/blinkhost/blink/pkg/index"
	indexmem "github.com/blinkhost/blink/pkg/index/memory"
)

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

type routerFixture struct {
	handler http.Handler
	clock   *fakeClock
	blobs   blob.Store
	idx     index.Index
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	clk := &fakeClock{ms: 1_000_000}
	blobs := blob.NewStore(blobmem.New())
	idx := indexmem.New()
	svc := core.NewService(blobs, idx, core.Config{}, core.WithClock(clk))

	handler := NewRouter(svc, blobs, idx, Config{BaseURL: "http://img.test"})

	return &routerFixture{handler: handler, clock: clk, blobs: blobs, idx: idx}
}

func (f *routerFixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	return w
}

func (f *routerFixture) upload(t *testing.T, payload []byte, contentType string) (token, imageURL string) {
	t.Helper()

	req := httptest.NewRequest("POST", "/upload", bytes.NewReader(payload))
	req.Header.Set("Content-Type", contentType)
	w := f.do(req)

	if w.Code != http.StatusCreated {
		t.Fatalf("upload status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data struct {
			Token string `json:"token"`
			URL   string `json:"url"`
		} `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return resp.Data.Token, resp.Data.URL
}

func TestRouter_UploadThenFetch(t *testing.T) {
	f := newRouterFixture(t)
	payload := bytes.Repeat([]byte{0x42}, 1024)

	token, imageURL := f.upload(t, payload, "image/jpeg")

	if !strings.HasPrefix(imageURL, "http://img.test/image/") {
		t.Fatalf("unexpected image URL: %q", imageURL)
	}

	u, err := url.Parse(imageURL)
	if err != nil {
		t.Fatalf("parse image URL: %v", err)
	}

	f.clock.set(1_045_000)
	w := f.do(httptest.NewRequest("GET", u.Path, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("fetch status = %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), payload) {
		t.Error("fetched bytes differ from upload")
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	_ = token
}

func TestRouter_ExpiredTokenIs404(t *testing.T) {
	f := newRouterFixture(t)

	token, _ := f.upload(t, []byte{1, 2, 3}, "image/png")

	// One millisecond past expiry + grace
	f.clock.set(1_065_001)
	w := f.do(httptest.NewRequest("GET", "/image/"+token, nil))

	if w.Code != http.StatusNotFound {
		t.Errorf("expired fetch status = %d, want 404", w.Code)
	}
}

func TestRouter_UnknownTokenIs404(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(httptest.NewRequest("GET", "/image/some-unknown-token", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown fetch status = %d, want 404", w.Code)
	}
}

func TestRouter_HealthRoutes(t *testing.T) {
	f := newRouterFixture(t)

	for _, path := range []string{"/health", "/health/ready", "/health/stores"} {
		w := f.do(httptest.NewRequest("GET", path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, w.Code)
		}
	}
}

func TestRouter_RootRedirectsToHealth(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(httptest.NewRequest("GET", "/", nil))
	if w.Code != http.StatusTemporaryRedirect {
		t.Fatalf("root status = %d, want 307", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/health" {
		t.Errorf("redirect location = %q", loc)
	}
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	f := newRouterFixture(t)

	w := f.do(httptest.NewRequest("GET", "/upload", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /upload status = %d, want 405", w.Code)
	}
}
