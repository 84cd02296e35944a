// Package core implements the access-control heart of blink: the upload
// coordinator that binds freshly stored bytes to a one-minute token, and
// the access arbiter that decides, deny-by-default, whether a token still
// grants a read.
//
// The package is HTTP-agnostic. It composes three injected capabilities --
// a blob store, a metadata index and a token minter -- plus a clock, and
// holds no mutable state of its own: two replicas sharing the same index
// and blob store behave as one service.
package core

import (
	"errors"
	"time"
)

// Fault kinds surfaced by Upload. Denied access outcomes are not faults;
// see AccessOutcome.
var (
	// ErrInvalidInput indicates an empty payload or missing content type.
	ErrInvalidInput = errors.New("invalid upload input")

	// ErrUnsupportedType indicates a declared content type outside the
	// accepted set.
	ErrUnsupportedType = errors.New("unsupported content type")

	// ErrTooLarge indicates a payload above the configured size cap.
	ErrTooLarge = errors.New("payload too large")

	// ErrInternal indicates a broken invariant: the index produced a valid
	// record whose blob reference resolves to nothing.
	ErrInternal = errors.New("internal inconsistency")
)

// Defaults for the service configuration.
const (
	DefaultMaxUploadBytes = 5 * 1024 * 1024
	DefaultURLTTL         = 60 * time.Second
	DefaultSkewTolerance  = 5 * time.Second
)

// Clock supplies the current time. Injected so tests can pin it; in
// production it is the system clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// Minter mints opaque tokens. Implemented by pkg/token.
type Minter interface {
	Mint() (string, error)
}

// Config holds the read-only policy knobs, fixed at startup.
type Config struct {
	// AcceptedTypes is the closed set of MIME types uploads may declare.
	AcceptedTypes []string

	// MaxUploadBytes caps the decoded payload length. Default: 5 MiB.
	MaxUploadBytes int64

	// URLTTL is how long a token grants access. Default: 60s.
	URLTTL time.Duration

	// SkewTolerance is the grace window past expiry in which access is
	// still allowed, absorbing clock disagreement between the replica
	// that minted the expiry and the one serving the read. Default: 5s.
	SkewTolerance time.Duration
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if len(c.AcceptedTypes) == 0 {
		c.AcceptedTypes = []string{"image/jpeg", "image/png", "image/webp"}
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if c.URLTTL == 0 {
		c.URLTTL = DefaultURLTTL
	}
	if c.SkewTolerance == 0 {
		c.SkewTolerance = DefaultSkewTolerance
	}
}

// Metrics receives service events. A nil Metrics is valid and records
// nothing; the prometheus implementation lives in pkg/metrics/prometheus.
type Metrics interface {
	RecordUpload(result string, bytes int)
	RecordAccess(outcome string)
}

// epochMs converts a time to epoch milliseconds, the unit records store.
func epochMs(t time.Time) int64 {
	return t.UnixMilli()
}
