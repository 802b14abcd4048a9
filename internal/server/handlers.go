package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/spigell/hh-artifacts/internal/dispatch"
	"github.com/spigell/hh-artifacts/internal/model"
	"github.com/spigell/hh-artifacts/internal/report"
	"github.com/spigell/hh-artifacts/internal/session"
)

const (
	defaultMaxBodyBytes   = 2 << 20
	defaultMaxUploadBytes = 10 << 20
	uploadField           = "file"
)

// Dispatcher runs generations and lists features.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Outcome, error)
	Features() []dispatch.Listing
}

type Sessions interface {
	Init(ctx context.Context, id session.Identity, resume *model.Resume, vacancy *model.Vacancy, ttl time.Duration) (*session.Session, error)
	Load(ctx context.Context, id session.Identity, sessionID string) (*session.Session, error)
}

type Renderer interface {
	Render(ctx context.Context, doc report.Document) ([]byte, error)
}

type Extractor interface {
	Extract(ctx context.Context, data []byte) (string, error)
}

// Deps are the collaborators of the HTTP API. Sessions, Renderer and
// Extractor are optional; their routes answer 503 when missing.
type Deps struct {
	Dispatcher Dispatcher
	Sessions   Sessions
	Renderer   Renderer
	Extractor  Extractor
	Gatherer   prometheus.Gatherer
	Logger     *zap.Logger

	MaxBodyBytes   int64
	MaxUploadBytes int64
}

type handlers struct {
	Deps
	logger *zap.Logger
}

var errUnavailable = errors.New("service is not configured")

// NewRouter builds the HTTP API.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.MaxBodyBytes <= 0 {
		deps.MaxBodyBytes = defaultMaxBodyBytes
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = defaultMaxUploadBytes
	}
	h := &handlers{Deps: deps, logger: deps.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogging(h.logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(withIdentity)

		api.Get("/features", h.listFeatures)
		api.Post("/features/{name}", h.generate)
		api.Post("/features/{name}/report", h.generateReport)

		api.Post("/sessions", h.createSession)
		api.Get("/sessions/{id}", h.getSession)

		api.Post("/resumes/extract", h.extractResume)
	})

	return r
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) listFeatures(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"features": h.Dispatcher.Features()})
}

type generateBody struct {
	Version   string         `json:"version"`
	SessionID string         `json:"session_id"`
	Resume    *model.Resume  `json:"resume"`
	Vacancy   *model.Vacancy `json:"vacancy"`
	Options   map[string]any `json:"options"`
}

func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	out, err := h.dispatch(r, name)
	if err != nil {
		h.writeError(w, r, err, name)
		return
	}
	writeJSON(w, http.StatusOK, out.Envelope)
}

func (h *handlers) generateReport(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if h.Renderer == nil {
		h.writeError(w, r, errUnavailable, name)
		return
	}

	out, err := h.dispatch(r, name)
	if err != nil {
		h.writeError(w, r, err, name)
		return
	}

	doc, err := report.DocumentFor(out.Raw, strings.ReplaceAll(name, "_", " "))
	if err != nil {
		h.writeError(w, r, err, name)
		return
	}
	pdf, err := h.Renderer.Render(r.Context(), doc)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", report.ErrNotRenderable, err), name)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%s.pdf"`, out.FeatureName, out.Version))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *handlers) dispatch(r *http.Request, name string) (*dispatch.Outcome, error) {
	var body generateBody
	if err := h.decode(r, &body); err != nil {
		return nil, err
	}

	version := body.Version
	if q := strings.TrimSpace(r.URL.Query().Get("version")); q != "" {
		version = q
	}

	return h.Dispatcher.Dispatch(r.Context(), dispatch.Request{
		Feature:   name,
		Version:   version,
		SessionID: body.SessionID,
		Identity:  IdentityFrom(r.Context()),
		Resume:    body.Resume,
		Vacancy:   body.Vacancy,
		Options:   body.Options,
	})
}

type sessionBody struct {
	Resume     *model.Resume  `json:"resume"`
	Vacancy    *model.Vacancy `json:"vacancy"`
	TTLSeconds int            `json:"ttl_seconds"`
}

type sessionResponse struct {
	SessionID string         `json:"session_id"`
	Resume    *model.Resume  `json:"resume,omitempty"`
	Vacancy   *model.Vacancy `json:"vacancy,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
}

func (h *handlers) createSession(w http.ResponseWriter, r *http.Request) {
	if h.Sessions == nil {
		h.writeError(w, r, errUnavailable, "")
		return
	}

	var body sessionBody
	if err := h.decode(r, &body); err != nil {
		h.writeError(w, r, err, "")
		return
	}
	if body.Resume == nil || body.Vacancy == nil {
		h.writeError(w, r, dispatch.ErrMissingData, "")
		return
	}
	if body.TTLSeconds < 0 {
		h.writeError(w, r, badRequest{msg: "ttl_seconds must not be negative"}, "")
		return
	}

	sess, err := h.Sessions.Init(r.Context(), IdentityFrom(r.Context()), body.Resume, body.Vacancy, time.Duration(body.TTLSeconds)*time.Second)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		SessionID: sess.ID,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
}

func (h *handlers) getSession(w http.ResponseWriter, r *http.Request) {
	if h.Sessions == nil {
		h.writeError(w, r, errUnavailable, "")
		return
	}

	sess, err := h.Sessions.Load(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		SessionID: sess.ID,
		Resume:    sess.Resume,
		Vacancy:   sess.Vacancy,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: sess.ExpiresAt,
	})
}

func (h *handlers) extractResume(w http.ResponseWriter, r *http.Request) {
	if h.Extractor == nil {
		h.writeError(w, r, errUnavailable, "")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.MaxUploadBytes); err != nil {
		h.writeError(w, r, badRequest{msg: "invalid multipart upload: " + err.Error()}, "")
		return
	}
	file, _, err := r.FormFile(uploadField)
	if err != nil {
		h.writeError(w, r, badRequest{msg: fmt.Sprintf("form field %q is required", uploadField)}, "")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, badRequest{msg: "read upload: " + err.Error()}, "")
		return
	}

	text, err := h.Extractor.Extract(r.Context(), data)
	if err != nil {
		h.writeError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

func (h *handlers) decode(r *http.Request, target any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, h.MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest{msg: "request body is empty"}
		}
		return badRequest{msg: "invalid request body: " + err.Error()}
	}
	return nil
}
