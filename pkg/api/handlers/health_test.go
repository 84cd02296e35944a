package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/blinkhost/blink/pkg/blob"
	blobmem "github.com/blinkhost/blink/pkg/blob/memory"
	indexmem "github.com/blinkhost/blink/pkg/index/memory"
)

func TestLiveness_ReturnsOK(t *testing.T) {
	handler := NewHealthHandler(nil, nil)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	handler.Liveness(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Status != "healthy" {
		t.Errorf("Expected status 'healthy', got %q", resp.Status)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected Data to be a map, got %T", resp.Data)
	}
	if data["service"] != "blink" {
		t.Errorf("Expected service 'blink', got %v", data["service"])
	}
}

func TestReadiness_NoStores_Returns503(t *testing.T) {
	handler := NewHealthHandler(nil, nil)
	req := httptest.NewRequest("GET", "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestReadiness_HealthyStores_Returns200(t *testing.T) {
	handler := NewHealthHandler(blob.NewStore(blobmem.New()), indexmem.New())
	req := httptest.NewRequest("GET", "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status %d, got %d", http.StatusOK, w.Code)
	}
}

func TestReadiness_ClosedIndex_Returns503(t *testing.T) {
	idx := indexmem.New()
	if err := idx.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	handler := NewHealthHandler(blob.NewStore(blobmem.New()), idx)
	req := httptest.NewRequest("GET", "/health/ready", nil)
	w := httptest.NewRecorder()

	handler.Readiness(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
	}
}

func TestStores_ReportsPerStoreHealth(t *testing.T) {
	idx := indexmem.New()
	if err := idx.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	handler := NewHealthHandler(blob.NewStore(blobmem.New()), idx)
	req := httptest.NewRequest("GET", "/health/stores", nil)
	w := httptest.NewRecorder()

	handler.Stores(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected status 503, got %d", w.Code)
	}

	resp := decodeResponse(t, w)
	if resp.Status != "unhealthy" {
		t.Errorf("Expected status 'unhealthy', got %q", resp.Status)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("Expected Data to be a map, got %T", resp.Data)
	}
	stores, ok := data["stores"].([]interface{})
	if !ok || len(stores) != 2 {
		t.Fatalf("Expected two store entries, got %v", data["stores"])
	}
}
