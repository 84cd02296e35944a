package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/blinkhost/blink/internal/logger"
	"github.com/blinkhost/blink/pkg/core"
)

// ImageHandler handles GET /image/{token}.
type ImageHandler struct {
	svc *core.Service
}

// NewImageHandler creates an image handler.
func NewImageHandler(svc *core.Service) *ImageHandler {
	return &ImageHandler{svc: svc}
}

// Get handles GET /image/{token}.
//
// Every denial produces the same 404 body: a caller probing tokens cannot
// tell an expired URL from one that never existed.
func (h *ImageHandler) Get(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	out, err := h.svc.Access(r.Context(), token)
	if err != nil {
		logger.Error("access failed", "error", err)
		InternalServerError(w, "Internal error")
		return
	}

	if !out.Allowed {
		NotFound(w, "Not found")
		return
	}

	w.Header().Set("Content-Type", out.Record.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	// The URL dies within a minute; intermediaries must not outlive it.
	w.Header().Set("Cache-Control", "no-store, private")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Data); err != nil {
		logger.Debug("image write aborted", "error", err)
	}
}
