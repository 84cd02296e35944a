package core

import (
	"context"
	"fmt"

	"github.com/blinkhost/blink/pkg/blob"
	"github.com/blinkhost/blink/pkg/index"
)

// UploadRequest carries one upload's payload and declared attributes.
type UploadRequest struct {
	Data        []byte
	ContentType string
	Filename    string
}

// UploadResult is the public outcome of a successful upload.
type UploadResult struct {
	Token       string
	ExpiresAtMs int64
}

// Upload validates the request, persists the bytes, mints a token and
// records the binding. The order is deliberate: blob before token before
// index, so that by the time a token is visible in the index the bytes are
// already retrievable from any replica.
//
// Failures abort without compensation. A blob written before a later
// failure stays orphaned; nothing ever deletes it, and no metadata record
// points at it, so it is unreachable.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (UploadResult, error) {
	if len(req.Data) == 0 {
		s.recordUpload("invalid", 0)
		return UploadResult{}, fmt.Errorf("%w: empty payload", ErrInvalidInput)
	}
	if req.ContentType == "" {
		s.recordUpload("invalid", len(req.Data))
		return UploadResult{}, fmt.Errorf("%w: missing content type", ErrInvalidInput)
	}
	if int64(len(req.Data)) > s.cfg.MaxUploadBytes {
		s.recordUpload("too_large", len(req.Data))
		return UploadResult{}, fmt.Errorf("%w: %d bytes exceeds cap of %d", ErrTooLarge, len(req.Data), s.cfg.MaxUploadBytes)
	}
	if _, ok := s.accepted[req.ContentType]; !ok {
		s.recordUpload("unsupported_type", len(req.Data))
		return UploadResult{}, fmt.Errorf("%w: %q", ErrUnsupportedType, req.ContentType)
	}

	ref, err := s.blobs.Save(ctx, req.Data, blob.Meta{
		ContentType: req.ContentType,
		Filename:    req.Filename,
	})
	if err != nil {
		s.recordUpload("blob_error", len(req.Data))
		return UploadResult{}, err
	}

	tok, err := s.minter.Mint()
	if err != nil {
		// The blob stays orphaned; no record will ever point at it.
		s.recordUpload("mint_error", len(req.Data))
		return UploadResult{}, err
	}

	now := s.clock.Now()
	expiresAtMs := epochMs(now) + s.cfg.URLTTL.Milliseconds()

	if err := s.idx.Put(ctx, index.Record{
		Token:       tok,
		BlobRef:     ref,
		ExpiresAtMs: expiresAtMs,
		ContentType: req.ContentType,
	}); err != nil {
		s.recordUpload("index_error", len(req.Data))
		return UploadResult{}, err
	}

	s.log.Debug("upload recorded",
		"blob_ref", ref,
		"content_type", req.ContentType,
		"bytes", len(req.Data),
		"expires_at_ms", expiresAtMs,
	)
	s.recordUpload("ok", len(req.Data))

	return UploadResult{Token: tok, ExpiresAtMs: expiresAtMs}, nil
}
