package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/blinkhost/blink/pkg/blob"
	"github.com/blinkhost/blink/pkg/index"
)

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the server process running?
//   - Readiness probe: Are the backing stores reachable?
//   - Store health: Detailed health status with latency
type HealthHandler struct {
	blobs blob.Store
	idx   index.Index
}

// NewHealthHandler creates a new health handler.
//
// Either store may be nil, in which case readiness and store health report
// unhealthy.
func NewHealthHandler(blobs blob.Store, idx index.Index) *HealthHandler {
	return &HealthHandler{blobs: blobs, idx: idx}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK if the server process is running. Designed for Kubernetes
// liveness probes; succeeds as long as the HTTP server is responsive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "blink",
	}))
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 200 OK if both the blob store and the metadata index respond to
// a health check, 503 Service Unavailable otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil || h.idx == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("stores not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.blobs.HealthCheck(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("blob store unavailable"))
		return
	}
	if err := h.idx.HealthCheck(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("metadata index unavailable"))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"blob_store":     "healthy",
		"metadata_index": "healthy",
	}))
}

// StoreHealth represents the health status of a single store.
type StoreHealth struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// StoresResponse represents the detailed store health response.
type StoresResponse struct {
	Stores []StoreHealth `json:"stores"`
}

// Stores handles GET /health/stores - detailed store health.
//
// Returns 200 OK if all stores are healthy, 503 Service Unavailable if any
// store is unhealthy.
func (h *HealthHandler) Stores(w http.ResponseWriter, r *http.Request) {
	if h.blobs == nil || h.idx == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("stores not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := StoresResponse{Stores: make([]StoreHealth, 0, 2)}
	allHealthy := true

	checks := []struct {
		name  string
		check func(context.Context) error
	}{
		{"blob_store", h.blobs.HealthCheck},
		{"metadata_index", h.idx.HealthCheck},
	}

	for _, c := range checks {
		start := time.Now()
		err := c.check(ctx)
		latency := time.Since(start)

		health := StoreHealth{
			Name:    c.name,
			Latency: latency.String(),
		}
		if err != nil {
			health.Status = "unhealthy"
			health.Error = err.Error()
			allHealthy = false
		} else {
			health.Status = "healthy"
		}

		response.Stores = append(response.Stores, health)
	}

	if allHealthy {
		writeJSON(w, http.StatusOK, healthyResponse(response))
	} else {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(response))
	}
}
