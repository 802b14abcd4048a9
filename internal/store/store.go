// Package store defines the persisted records shared by the storage backends.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an identical document is already stored for the identity.
	ErrConflict = errors.New("record already exists")
)

// Kind tells which domain record a document holds.
type Kind string

const (
	KindResume  Kind = "resume"
	KindVacancy Kind = "vacancy"
)

// Document is a stored resume or vacancy owned by one identity.
type Document struct {
	ID        string
	Identity  string
	Kind      Kind
	Hash      string
	Payload   []byte
	CreatedAt time.Time
}

// Session pins a resume and a vacancy for repeated generations.
type Session struct {
	ID        string
	Identity  string
	ResumeID  string
	VacancyID string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store is implemented by the storage backends.
type Store interface {
	SaveDocument(ctx context.Context, doc Document) error
	GetDocument(ctx context.Context, identity, id string) (Document, error)
	FindDocumentByHash(ctx context.Context, identity string, kind Kind, hash string) (Document, error)
	SaveSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, identity, id string) (Session, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
	Close() error
}
