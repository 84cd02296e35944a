package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/blinkhost/blink/pkg/blob"
	blobmem "github.com/blinkhost/blink/pkg/blob/memory"
	"github.com/blinkhost/blink/pkg/core"
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

func newTestService(t *testing.T, cfg core.Config) (*core.Service, *fakeClock) {
	t.Helper()
	clk := &fakeClock{ms: 1_000_000}
	svc := core.NewService(
		blob.NewStore(blobmem.New()),
		indexmem.New(),
		cfg,
		core.WithClock(clk),
	)
	return svc, clk
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) response {
	t.Helper()
	var resp response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

func uploadData(t *testing.T, resp response) UploadResponse {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	if err != nil {
		t.Fatalf("Failed to re-marshal data: %v", err)
	}
	var up UploadResponse
	if err := json.Unmarshal(raw, &up); err != nil {
		t.Fatalf("Failed to decode upload data: %v", err)
	}
	return up
}

func TestUpload_RawBody(t *testing.T) {
	svc, _ := newTestService(t, core.Config{})
	handler := NewUploadHandler(svc, "https://img.example.com/")

	body := bytes.Repeat([]byte{0x89}, 512)
	req := httptest.NewRequest("POST", "/upload", bytes.NewReader(body))
	req.Header.Set("Content-Type", "image/png")
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	resp := decodeResponse(t, w)
	if resp.Status != "ok" {
		t.Errorf("Expected status 'ok', got %q", resp.Status)
	}

	up := uploadData(t, resp)
	if len(up.Token) != 43 {
		t.Errorf("Expected 43-char token, got %d chars", len(up.Token))
	}
	if up.URL != "https://img.example.com/image/"+up.Token {
		t.Errorf("Unexpected URL: %q", up.URL)
	}
	if up.ExpiresAtEpochMs != 1_060_000 {
		t.Errorf("Expected expiry 1060000, got %d", up.ExpiresAtEpochMs)
	}
}

func TestUpload_Multipart(t *testing.T) {
	svc, _ := newTestService(t, core.Config{})
	handler := NewUploadHandler(svc, "http://localhost:8080")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", `form-data; name="image"; filename="cat.jpg"`)
	partHeader.Set("Content-Type", "image/jpeg")
	part, err := mw.CreatePart(partHeader)
	if err != nil {
		t.Fatalf("Failed to create part: %v", err)
	}
	if _, err := part.Write([]byte("jpeg-bytes")); err != nil {
		t.Fatalf("Failed to write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	req := httptest.NewRequest("POST", "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	up := uploadData(t, decodeResponse(t, w))
	if len(up.Token) != 43 {
		t.Errorf("Expected 43-char token, got %d chars", len(up.Token))
	}
}

func TestUpload_MissingContentType(t *testing.T) {
	svc, _ := newTestService(t, core.Config{})
	handler := NewUploadHandler(svc, "http://localhost:8080")

	req := httptest.NewRequest("POST", "/upload", bytes.NewReader([]byte("data")))
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestUpload_UnsupportedType(t *testing.T) {
	svc, _ := newTestService(t, core.Config{})
	handler := NewUploadHandler(svc, "http://localhost:8080")

	req := httptest.NewRequest("POST", "/upload", bytes.NewReader([]byte("<svg/>")))
	req.Header.Set("Content-Type", "application/pdf")
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("Expected status 415, got %d", w.Code)
	}
}

func TestUpload_TooLarge(t *testing.T) {
	svc, _ := newTestService(t, core.Config{MaxUploadBytes: 64})
	handler := NewUploadHandler(svc, "http://localhost:8080")

	req := httptest.NewRequest("POST", "/upload", bytes.NewReader(make([]byte, 65)))
	req.Header.Set("Content-Type", "image/png")
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", w.Code)
	}
}

func TestUpload_MultipartMissingFile(t *testing.T) {
	svc, _ := newTestService(t, core.Config{})
	handler := NewUploadHandler(svc, "http://localhost:8080")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("note", "no file here"); err != nil {
		t.Fatalf("Failed to write field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	req := httptest.NewRequest("POST", "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}
