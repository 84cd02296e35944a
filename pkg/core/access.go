package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/blinkhost/blink/pkg/blob"
	"github.com/blinkhost/blink/pkg/index"
)

// DenyReason classifies a denied access. The distinction exists for logs,
// metrics and tests only; the HTTP adapter presents every denial
// identically so callers cannot probe which tokens exist.
type DenyReason string

const (
	DenyMissing DenyReason = "missing"
	DenyExpired DenyReason = "expired"
	DenyInvalid DenyReason = "invalid"
)

// AccessOutcome is the decision for one access request. Exactly one of the
// two shapes occurs: Allowed with Data and Record set, or denied with
// Reason set. Denials are decisions, not faults.
type AccessOutcome struct {
	Allowed bool
	Reason  DenyReason
	Data    []byte
	Record  *index.Record
}

func denied(reason DenyReason) AccessOutcome {
	return AccessOutcome{Reason: reason}
}

// Access resolves a token to its bytes, or denies. The policy is
// deny-by-default: a malformed token, an unknown token and a post-grace
// timestamp all converge on denial, and the blob store is only touched
// after the decision to allow has been made.
func (s *Service) Access(ctx context.Context, tok string) (AccessOutcome, error) {
	if strings.TrimSpace(tok) == "" {
		s.recordAccess("denied_invalid")
		return denied(DenyInvalid), nil
	}

	rec, err := s.idx.Get(ctx, tok)
	if err != nil {
		return AccessOutcome{}, err
	}
	if rec == nil {
		s.recordAccess("denied_missing")
		return denied(DenyMissing), nil
	}

	// The single place in the service where time is evaluated.
	nowMs := epochMs(s.clock.Now())
	if nowMs > rec.ExpiresAtMs+s.cfg.SkewTolerance.Milliseconds() {
		s.log.Debug("access to expired token",
			"expired_ms_ago", nowMs-rec.ExpiresAtMs)
		s.recordAccess("denied_expired")
		return denied(DenyExpired), nil
	}

	data, err := s.blobs.Get(ctx, rec.BlobRef)
	if err != nil {
		if errors.Is(err, blob.ErrBlobNotFound) {
			// A valid record pointing at a missing blob breaks the
			// write-ordering invariant. Never report it as missing:
			// that would misdescribe a store fault as a bad token.
			s.recordAccess("internal_error")
			return AccessOutcome{}, fmt.Errorf("%w: record %q references missing blob %q", ErrInternal, rec.Token, rec.BlobRef)
		}
		return AccessOutcome{}, err
	}

	s.recordAccess("allowed")
	return AccessOutcome{Allowed: true, Data: data, Record: rec}, nil
}
