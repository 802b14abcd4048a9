package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/spigell/hh-artifacts/internal/dispatch"
	"github.com/spigell/hh-artifacts/internal/feature"
	"github.com/spigell/hh-artifacts/internal/model"
	"github.com/spigell/hh-artifacts/internal/pdftext"
	"github.com/spigell/hh-artifacts/internal/report"
	"github.com/spigell/hh-artifacts/internal/session"
)

// Error kinds reported to clients.
const (
	KindNotFound        = "not_found"
	KindRegistration    = "registration"
	KindBadRequest      = "bad_request"
	KindSessionNotFound = "session_not_found"
	KindGeneration      = "generation"
	KindRender          = "render"
	KindUnavailable     = "unavailable"
	KindInternal        = "internal"
)

// ErrorBody is the JSON body of every failed request.
type ErrorBody struct {
	Detail      string `json:"detail"`
	Kind        string `json:"kind"`
	FeatureName string `json:"feature_name"`
}

// badRequest marks request decoding failures.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func classify(err error) (int, string) {
	var (
		nf *feature.NotFoundError
		re *feature.RegistrationError
		ve *feature.ValidationError
		ge *dispatch.GenerationError
		br badRequest
	)

	switch {
	case errors.As(err, &ge):
		return http.StatusInternalServerError, KindGeneration
	case errors.As(err, &nf):
		return http.StatusNotFound, KindNotFound
	case errors.As(err, &re):
		return http.StatusInternalServerError, KindRegistration
	case errors.As(err, &ve), errors.As(err, &br),
		errors.Is(err, dispatch.ErrMissingData),
		errors.Is(err, model.ErrEmptyResume), errors.Is(err, model.ErrEmptyVacancy),
		errors.Is(err, pdftext.ErrNotPDF), errors.Is(err, pdftext.ErrEmptyText):
		return http.StatusBadRequest, KindBadRequest
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrExpired):
		return http.StatusNotFound, KindSessionNotFound
	case errors.Is(err, report.ErrNotRenderable):
		return http.StatusInternalServerError, KindRender
	case errors.Is(err, pdftext.ErrToolNotFound), errors.Is(err, errUnavailable):
		return http.StatusServiceUnavailable, KindUnavailable
	default:
		return http.StatusInternalServerError, KindInternal
	}
}

func (s *handlers) writeError(w http.ResponseWriter, r *http.Request, err error, featureName string) {
	status, kind := classify(err)

	detail := err.Error()
	if kind == KindInternal {
		detail = http.StatusText(status)
	}

	log := requestLogger(s.logger, r)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("kind", kind), zap.String("feature", featureName), zap.Error(err))
	} else {
		log.Debug("request rejected", zap.String("kind", kind), zap.String("feature", featureName), zap.Error(err))
	}

	writeJSON(w, status, ErrorBody{Detail: detail, Kind: kind, FeatureName: featureName})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
