package annotation

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/internal/intelligence/lore_parser"
	apperrors "github.com/turtacn/LoreKit/pkg/errors"
)

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// EventSink delivers serialized annotation events, keyed for partitioning.
type EventSink interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// AnnotationEvent summarises one served parse.  The text itself is not
// included.
type AnnotationEvent struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"projectId,omitempty"`
	HitCount   int            `json:"hitCount"`
	LinkedHits int            `json:"linkedHits"`
	Kinds      map[string]int `json:"kinds"`
	TextBytes  int            `json:"textBytes"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// BaseBuilder builds the project-less parser.
type BaseBuilder interface {
	BuildBase(ctx context.Context) (*lore_parser.Parser, error)
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDirectory enables linking against dir using strategies in order.
func WithDirectory(dir Directory, strategies ...LinkStrategy) ServiceOption {
	return func(s *Service) {
		s.directory = dir
		s.strategies = strategies
	}
}

// WithLinkTimeout bounds the directory lookups of one request.
func WithLinkTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.linkTimeout = d }
}

// WithEventSink publishes an AnnotationEvent after every parse.
func WithEventSink(sink EventSink) ServiceOption {
	return func(s *Service) { s.sink = sink }
}

// WithDefaultFuzzy sets the fuzzy flag of requests that leave it unset.
func WithDefaultFuzzy(on bool) ServiceOption {
	return func(s *Service) { s.defaultFuzzy = on }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// Service serves annotation requests.  It owns the base parser and delegates
// project parsers to a ProjectCache.
type Service struct {
	builder BaseBuilder
	cache   *ProjectCache
	base    atomic.Pointer[lore_parser.Parser]

	directory    Directory
	strategies   []LinkStrategy
	linkTimeout  time.Duration
	defaultFuzzy bool
	sink         EventSink
	recorder     Recorder
	logger       logging.Logger
}

// NewService wires a Service.  Call ReloadBase before serving.
func NewService(builder BaseBuilder, cache *ProjectCache, logger logging.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := &Service{
		builder:      builder,
		cache:        cache,
		defaultFuzzy: true,
		recorder:     NopRecorder{},
		logger:       logger.Named("annotation"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReloadBase rebuilds the base parser.  On failure the previous parser stays
// in service.
func (s *Service) ReloadBase(ctx context.Context) error {
	start := time.Now()
	p, err := s.builder.BuildBase(ctx)
	s.recorder.ObserveBuild("", time.Since(start), err)
	if err != nil {
		s.logger.Error("base parser build failed", logging.Err(err))
		return err
	}
	s.base.Store(p)
	return nil
}

// Ready reports whether a base parser is loaded.
func (s *Service) Ready() bool {
	return s.base.Load() != nil
}

// Base returns the current base parser, or nil before ReloadBase succeeds.
func (s *Service) Base() *lore_parser.Parser {
	return s.base.Load()
}

// Parse annotates req with the base or project parser, links the hits when a
// directory is configured and emits an event when a sink is configured.
func (s *Service) Parse(ctx context.Context, req lore_parser.ParseRequest) (lore_parser.ParseResponse, error) {
	project := ""
	if req.ProjectID != nil {
		project = *req.ProjectID
	}

	parser, err := s.parserFor(ctx, project)
	if err != nil {
		return lore_parser.ParseResponse{}, err
	}
	if req.Fuzzy == nil {
		fuzzy := s.defaultFuzzy
		req.Fuzzy = &fuzzy
	}

	start := time.Now()
	resp := parser.ParseRequest(req)
	s.recorder.ObserveParse(project, len(resp.Hits), time.Since(start))
	for _, h := range resp.Hits {
		s.recorder.ObserveHit(h.Kind.String(), h.Source.String())
	}

	resp.Hits = s.link(ctx, resp.Hits)
	s.publish(ctx, project, req.Text, resp.Hits)
	return resp, nil
}

// ParseText parses text with the base parser.
func (s *Service) ParseText(ctx context.Context, text string, fuzzy bool) (lore_parser.ParseResponse, error) {
	return s.Parse(ctx, lore_parser.ParseRequest{Text: text, Fuzzy: &fuzzy})
}

func (s *Service) parserFor(ctx context.Context, project string) (*lore_parser.Parser, error) {
	if project != "" {
		if s.cache == nil {
			return nil, apperrors.New(apperrors.ErrCodeFeatureDisabled, "project parsers are not enabled")
		}
		return s.cache.Get(ctx, project)
	}
	p := s.base.Load()
	if p == nil {
		return nil, apperrors.New(apperrors.ErrCodeServiceUnavailable, "base rules not loaded")
	}
	return p, nil
}

func (s *Service) link(ctx context.Context, hits []lore_parser.EntityHit) []lore_parser.EntityHit {
	if s.directory == nil || len(s.strategies) == 0 || len(hits) == 0 {
		return hits
	}
	if s.linkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.linkTimeout)
		defer cancel()
	}

	// Each strategy only sees hits no earlier strategy resolved.
	lookups := Bind(ctx, s.directory, s.logger)
	for _, strategy := range s.strategies {
		var idx []int
		for i := range hits {
			if hits[i].Link == nil {
				idx = append(idx, i)
			}
		}
		if len(idx) == 0 {
			break
		}
		pending := make([]lore_parser.EntityHit, len(idx))
		for j, i := range idx {
			pending[j] = hits[i]
		}
		pending = lookups.Apply(strategy, pending)
		for j, i := range idx {
			hits[i] = pending[j]
			s.recorder.ObserveLink(string(strategy), hits[i].Link != nil)
		}
	}
	return hits
}

func (s *Service) publish(ctx context.Context, project, text string, hits []lore_parser.EntityHit) {
	if s.sink == nil {
		return
	}
	ev := AnnotationEvent{
		ID:         uuid.NewString(),
		ProjectID:  project,
		HitCount:   len(hits),
		Kinds:      make(map[string]int),
		TextBytes:  len(text),
		OccurredAt: time.Now().UTC(),
	}
	for _, h := range hits {
		ev.Kinds[h.Kind.String()]++
		if h.Link != nil {
			ev.LinkedHits++
		}
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("encode annotation event", logging.Err(err))
		return
	}
	key := project
	if key == "" {
		key = "base"
	}
	if err := s.sink.Publish(ctx, key, payload); err != nil {
		s.logger.Warn("annotation event not published",
			logging.String("event_id", ev.ID),
			logging.Err(apperrors.Wrap(err, apperrors.ErrCodeEventPublish, "publish annotation event")),
		)
	}
}

// ---------------------------------------------------------------------------
// Cache administration
// ---------------------------------------------------------------------------

// Projects lists the project ids with a cached parser.
func (s *Service) Projects() []string {
	if s.cache == nil {
		return []string{}
	}
	return s.cache.Projects()
}

// Invalidate drops the cached parser of project.
func (s *Service) Invalidate(project string) error {
	if err := ValidateProjectID(project); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(project)
	}
	return nil
}

// InvalidateAll drops every cached project parser.
func (s *Service) InvalidateAll() {
	if s.cache != nil {
		s.cache.InvalidateAll()
	}
}
