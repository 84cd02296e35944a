package handlers

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/blinkhost/blink/internal/logger"
	"github.com/blinkhost/blink/pkg/core"
)

// UploadHandler handles POST /upload.
//
// Two request shapes are accepted:
//   - multipart/form-data with the image in a part named "image" (or "file");
//     content type and filename come from the part headers.
//   - a raw body whose Content-Type header declares the image type.
type UploadHandler struct {
	svc     *core.Service
	baseURL string
}

// NewUploadHandler creates an upload handler. baseURL is the externally
// visible prefix used to build the returned URL.
func NewUploadHandler(svc *core.Service, baseURL string) *UploadHandler {
	return &UploadHandler{
		svc:     svc,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// UploadResponse is the payload returned for a successful upload.
type UploadResponse struct {
	Token           string `json:"token"`
	URL             string `json:"url"`
	ExpiresAtEpochMs int64 `json:"expires_at_epoch_ms"`
}

// Upload handles POST /upload.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// The same cap the service enforces, applied at the transport so an
	// oversize request fails while still streaming in.
	limit := h.svc.Config().MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	req, ok := h.readUpload(w, r)
	if !ok {
		return
	}

	res, err := h.svc.Upload(r.Context(), req)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, okResponse(UploadResponse{
		Token:           res.Token,
		URL:             h.baseURL + "/image/" + res.Token,
		ExpiresAtEpochMs: res.ExpiresAtMs,
	}))
}

// readUpload extracts the payload from either request shape. On failure it
// writes the error response and returns ok=false.
func (h *UploadHandler) readUpload(w http.ResponseWriter, r *http.Request) (core.UploadRequest, bool) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		BadRequest(w, "Missing or malformed Content-Type header")
		return core.UploadRequest{}, false
	}

	if mediaType == "multipart/form-data" {
		return h.readMultipart(w, r)
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		h.writeBodyError(w, err)
		return core.UploadRequest{}, false
	}

	return core.UploadRequest{
		Data:        data,
		ContentType: mediaType,
	}, true
}

func (h *UploadHandler) readMultipart(w http.ResponseWriter, r *http.Request) (core.UploadRequest, bool) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		file, header, err = r.FormFile("file")
	}
	if err != nil {
		if isBodyTooLarge(err) {
			h.writeBodyError(w, err)
		} else {
			BadRequest(w, `Missing form file "image"`)
		}
		return core.UploadRequest{}, false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeBodyError(w, err)
		return core.UploadRequest{}, false
	}

	return core.UploadRequest{
		Data:        data,
		ContentType: partContentType(header),
		Filename:    header.Filename,
	}, true
}

// partContentType returns the declared content type of a multipart file
// part, stripping any parameters.
func partContentType(header *multipart.FileHeader) string {
	ct := header.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return mediaType
}

func (h *UploadHandler) writeBodyError(w http.ResponseWriter, err error) {
	if isBodyTooLarge(err) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("Payload too large"))
		return
	}
	BadRequest(w, "Failed to read request body")
}

func isBodyTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func (h *UploadHandler) writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrInvalidInput):
		BadRequest(w, "Invalid upload: empty payload or missing content type")
	case errors.Is(err, core.ErrUnsupportedType):
		writeJSON(w, http.StatusUnsupportedMediaType, errorResponse("Unsupported image type"))
	case errors.Is(err, core.ErrTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse("Payload too large"))
	default:
		logger.Error("upload failed", "error", err)
		InternalServerError(w, "Upload failed")
	}
}
