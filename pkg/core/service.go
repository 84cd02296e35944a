package core

import (
	"log/slog"

	"github.com/blinkhost/blink/internal/logger"
	"github.com/blinkhost/blink/pkg/blob"
	"github.com/blinkhost/blink/pkg/index"
	"github.com/blinkhost/blink/pkg/token"
)

// Service composes the blob store, metadata index and token minter into the
// two operations the HTTP adapter calls: Upload and Access.
type Service struct {
	blobs    blob.Store
	idx      index.Index
	minter   Minter
	clock    Clock
	cfg      Config
	accepted map[string]struct{}
	metrics  Metrics
	log      *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the system clock. Tests pin time with this.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMinter overrides the default crypto/rand token minter.
func WithMinter(m Minter) Option {
	return func(s *Service) { s.minter = m }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates the service. cfg is copied; the accepted-type set is
// parsed once here and never mutated afterwards.
func NewService(blobs blob.Store, idx index.Index, cfg Config, opts ...Option) *Service {
	cfg.ApplyDefaults()

	accepted := make(map[string]struct{}, len(cfg.AcceptedTypes))
	for _, t := range cfg.AcceptedTypes {
		accepted[t] = struct{}{}
	}

	s := &Service{
		blobs:    blobs,
		idx:      idx,
		minter:   token.NewGenerator(),
		clock:    SystemClock{},
		cfg:      cfg,
		accepted: accepted,
		log:      logger.With("component", "core"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration (defaults applied).
func (s *Service) Config() Config {
	return s.cfg
}

func (s *Service) recordUpload(result string, bytes int) {
	if s.metrics != nil {
		s.metrics.RecordUpload(result, bytes)
	}
}

func (s *Service) recordAccess(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAccess(outcome)
	}
}
