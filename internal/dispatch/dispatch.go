// Package dispatch runs one feature generation from request to response envelope.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/hh-artifacts/internal/feature"
	"github.com/spigell/hh-artifacts/internal/logger"
	"github.com/spigell/hh-artifacts/internal/metrics"
	"github.com/spigell/hh-artifacts/internal/model"
	"github.com/spigell/hh-artifacts/internal/session"
	"github.com/spigell/hh-artifacts/internal/utils"
)

const (
	// UnresolvedVersion is reported when neither the request nor the registry names a version.
	UnresolvedVersion = "default"

	maxDetailRunes = 300
)

var ErrMissingData = errors.New("either session_id or both resume and vacancy are required")

// GenerationError is any failure returned by a generator.
type GenerationError struct {
	Feature string
	Err     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("feature %q failed: %s", e.Feature, utils.TruncateForLog(e.Err.Error(), maxDetailRunes))
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Request is one generation call.
type Request struct {
	Feature   string
	Version   string
	SessionID string
	Identity  session.Identity
	Resume    *model.Resume
	Vacancy   *model.Vacancy
	Options   map[string]any
}

// Envelope is the uniform response of a generation.
type Envelope struct {
	FeatureName     string         `json:"feature_name"`
	Version         string         `json:"version"`
	Result          map[string]any `json:"result"`
	FormattedOutput string         `json:"formatted_output,omitempty"`
}

// Outcome carries the envelope and the typed result it was built from.
type Outcome struct {
	Envelope
	Raw feature.Result `json:"-"`
}

// Listing describes one feature with all its versions.
type Listing struct {
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	Versions       []string `json:"versions"`
	DefaultVersion string   `json:"default_version"`
}

// SessionLoader loads stored sessions.
type SessionLoader interface {
	Load(ctx context.Context, id session.Identity, sessionID string) (*session.Session, error)
}

type Service struct {
	registry *feature.Registry
	sessions SessionLoader
	metrics  metrics.Sink
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithSessions(l SessionLoader) Option {
	return func(s *Service) { s.sessions = l }
}

func WithMetrics(m metrics.Sink) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTimeout bounds every Generate call. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(reg *feature.Registry, opts ...Option) *Service {
	s := &Service{
		registry: reg,
		metrics:  metrics.Nop{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch parses the options, resolves the records and runs the generator.
func (s *Service) Dispatch(ctx context.Context, req Request) (*Outcome, error) {
	version, resolveErr := s.registry.Resolve(req.Feature, req.Version)
	if resolveErr != nil {
		version = req.Version
		if version == "" {
			version = UnresolvedVersion
		}
	}

	log := logger.WithFeatureFields(s.logger, req.Feature, version, req.Identity.String())

	opts, err := feature.ParseOptions(req.Options)
	if err != nil {
		s.metrics.RecordGeneration(req.Feature, version, metrics.OutcomeInvalid, 0)
		return nil, err
	}

	if resolveErr != nil {
		s.metrics.RecordGeneration(req.Feature, version, metrics.OutcomeNotFound, 0)
		log.Warn("feature not found", zap.Error(resolveErr))
		return nil, resolveErr
	}

	gen, err := s.registry.Generator(req.Feature, version, nil)
	if err != nil {
		var nf *feature.NotFoundError
		outcome := metrics.OutcomeConstruct
		if errors.As(err, &nf) {
			outcome = metrics.OutcomeNotFound
		}
		s.metrics.RecordGeneration(req.Feature, version, outcome, 0)
		log.Warn("generator unavailable", zap.Error(err))
		return nil, err
	}

	resume, vacancy, err := s.records(ctx, req)
	if err != nil {
		s.metrics.RecordGeneration(req.Feature, version, metrics.OutcomeInvalid, 0)
		return nil, err
	}

	genCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := s.now()
	result, err := gen.Generate(genCtx, resume, vacancy, opts)
	took := s.now().Sub(start)
	if err != nil {
		if inputError(err, opts) {
			s.metrics.RecordGeneration(req.Feature, version, metrics.OutcomeInvalid, took)
			log.Debug("generation rejected the request", zap.Error(err))
			return nil, err
		}
		s.metrics.RecordGeneration(req.Feature, version, metrics.OutcomeGeneration, took)
		log.Error("generation failed", zap.Duration("took", took), zap.Error(err))
		return nil, &GenerationError{Feature: req.Feature, Err: err}
	}

	normalised, err := feature.ToMap(result)
	if err != nil {
		s.metrics.RecordGeneration(req.Feature, version, metrics.OutcomeGeneration, took)
		return nil, &GenerationError{Feature: req.Feature, Err: err}
	}

	out := &Outcome{
		Envelope: Envelope{
			FeatureName: req.Feature,
			Version:     version,
			Result:      normalised,
		},
		Raw: result,
	}
	if f, ok := result.(feature.Formatter); ok {
		out.FormattedOutput = f.Format()
	}

	s.metrics.RecordGeneration(req.Feature, version, metrics.OutcomeSuccess, took)
	log.Info("artifact generated", zap.Duration("took", took))
	return out, nil
}

func (s *Service) records(ctx context.Context, req Request) (*model.Resume, *model.Vacancy, error) {
	if req.SessionID != "" {
		if s.sessions == nil {
			return nil, nil, session.ErrNotFound
		}
		sess, err := s.sessions.Load(ctx, req.Identity, req.SessionID)
		if err != nil {
			return nil, nil, err
		}
		return sess.Resume, sess.Vacancy, nil
	}

	if req.Resume == nil || req.Vacancy == nil {
		return nil, nil, ErrMissingData
	}
	if err := req.Resume.Validate(); err != nil {
		return nil, nil, err
	}
	if err := req.Vacancy.Validate(); err != nil {
		return nil, nil, err
	}
	return req.Resume, req.Vacancy, nil
}

// inputError reports whether a generator rejected the request itself (its
// records or option extensions) rather than the generated output.
func inputError(err error, opts feature.Options) bool {
	var ve *feature.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	switch ve.Field {
	case "options", "resume", "vacancy":
		return true
	}
	_, ok := opts.Extra[ve.Field]
	return ok
}

// Features lists the registered features grouped by name.
func (s *Service) Features() []Listing {
	var out []Listing
	for _, info := range s.registry.Features() {
		if n := len(out); n > 0 && out[n-1].Name == info.Name {
			out[n-1].Versions = append(out[n-1].Versions, info.Version)
			if out[n-1].Description == "" {
				out[n-1].Description = info.Description
			}
			continue
		}
		out = append(out, Listing{
			Name:        info.Name,
			Description: info.Description,
			Versions:    []string{info.Version},
		})
	}

	for i := range out {
		if def, err := s.registry.DefaultVersion(out[i].Name); err == nil {
			out[i].DefaultVersion = def
		}
	}
	return out
}
