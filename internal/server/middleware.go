package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spigell/hh-artifacts/internal/session"
)

const (
	HeaderUserID = "X-User-ID"
	HeaderOrgID  = "X-Org-ID"

	DefaultUserID = "anonymous"
	DefaultOrgID  = "default"
)

type identityKey struct{}

// withIdentity reads the caller identity from the request headers.
func withIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := session.Identity{
			UserID: headerOr(r, HeaderUserID, DefaultUserID),
			OrgID:  headerOr(r, HeaderOrgID, DefaultOrgID),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

// IdentityFrom returns the identity stored by the identity middleware.
func IdentityFrom(ctx context.Context) session.Identity {
	if id, ok := ctx.Value(identityKey{}).(session.Identity); ok {
		return id
	}
	return session.Identity{UserID: DefaultUserID, OrgID: DefaultOrgID}
}

func headerOr(r *http.Request, name, fallback string) string {
	if v := strings.TrimSpace(r.Header.Get(name)); v != "" {
		return v
	}
	return fallback
}

// requestLogging logs one line per request with its status and duration.
func requestLogging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			requestLogger(logger, r).Info("request served",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
			)
		})
	}
}

func requestLogger(logger *zap.Logger, r *http.Request) *zap.Logger {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return logger.With(zap.String("request_id", id))
	}
	return logger
}
