// Package session stores resume and vacancy pairs for repeated generations.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/hh-artifacts/internal/model"
	"github.com/spigell/hh-artifacts/internal/store"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrExpired  = errors.New("session expired")
)

const DefaultTTL = 24 * time.Hour

// Identity scopes stored data to one user of one organisation.
type Identity struct {
	UserID string
	OrgID  string
}

func (i Identity) String() string {
	return i.UserID + ":" + i.OrgID
}

// Session is a loaded session with its records.
type Session struct {
	ID        string
	Resume    *model.Resume
	Vacancy   *model.Vacancy
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Manager creates and loads sessions on top of a store.
type Manager struct {
	store  store.Store
	ttl    time.Duration
	now    func() time.Time
	newID  func() string
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*identityLock
}

// identityLock is dropped from Manager.locks when its last holder unlocks.
type identityLock struct {
	sync.Mutex
	refs int
}

type Option func(*Manager)

// WithTTL sets the default session lifetime. Non-positive values keep DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func NewManager(s store.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  s,
		ttl:    DefaultTTL,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: zap.NewNop(),
		locks:  make(map[string]*identityLock),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init stores the records (reusing identical ones already stored for the
// identity) and opens a new session over them. ttl <= 0 uses the manager default.
func (m *Manager) Init(ctx context.Context, id Identity, resume *model.Resume, vacancy *model.Vacancy, ttl time.Duration) (*Session, error) {
	if err := resume.Validate(); err != nil {
		return nil, err
	}
	if err := vacancy.Validate(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = m.ttl
	}

	unlock := m.lock(id.String())
	defer unlock()

	resumeDoc, err := m.ensureDocument(ctx, id, store.KindResume, resume)
	if err != nil {
		return nil, err
	}
	vacancyDoc, err := m.ensureDocument(ctx, id, store.KindVacancy, vacancy)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	rec := store.Session{
		ID:        m.newID(),
		Identity:  id.String(),
		ResumeID:  resumeDoc.ID,
		VacancyID: vacancyDoc.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := m.store.SaveSession(ctx, rec); err != nil {
		return nil, err
	}

	m.logger.Debug("session created",
		zap.String("session_id", rec.ID),
		zap.String("identity", rec.Identity),
		zap.String("resume_doc", resumeDoc.ID),
		zap.String("vacancy_doc", vacancyDoc.ID),
	)

	return &Session{
		ID:        rec.ID,
		Resume:    resume,
		Vacancy:   vacancy,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// Load returns the session of identity with its records.
func (m *Manager) Load(ctx context.Context, id Identity, sessionID string) (*Session, error) {
	rec, err := m.store.GetSession(ctx, id.String(), sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.Expired(m.now()) {
		return nil, ErrExpired
	}

	var (
		resume  model.Resume
		vacancy model.Vacancy
	)
	if err := m.loadDocument(ctx, id, rec.ResumeID, &resume); err != nil {
		return nil, err
	}
	if err := m.loadDocument(ctx, id, rec.VacancyID, &vacancy); err != nil {
		return nil, err
	}

	return &Session{
		ID:        rec.ID,
		Resume:    &resume,
		Vacancy:   &vacancy,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

// Cleanup deletes expired sessions and returns how many were removed.
func (m *Manager) Cleanup(ctx context.Context) (int64, error) {
	n, err := m.store.DeleteExpiredSessions(ctx, m.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Info("expired sessions removed", zap.Int64("count", n))
	}
	return n, nil
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Cleanup(ctx); err != nil && ctx.Err() == nil {
				m.logger.Warn("session cleanup failed", zap.Error(err))
			}
		}
	}
}

type hasher interface {
	Hash() (string, error)
}

func (m *Manager) ensureDocument(ctx context.Context, id Identity, kind store.Kind, record hasher) (store.Document, error) {
	hash, err := record.Hash()
	if err != nil {
		return store.Document{}, err
	}

	doc, err := m.store.FindDocumentByHash(ctx, id.String(), kind, hash)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Document{}, err
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return store.Document{}, fmt.Errorf("marshal %s: %w", kind, err)
	}

	doc = store.Document{
		ID:        m.newID(),
		Identity:  id.String(),
		Kind:      kind,
		Hash:      hash,
		Payload:   payload,
		CreatedAt: m.now().UTC(),
	}
	err = m.store.SaveDocument(ctx, doc)
	if errors.Is(err, store.ErrConflict) {
		// Another process stored the same document first.
		return m.store.FindDocumentByHash(ctx, id.String(), kind, hash)
	}
	if err != nil {
		return store.Document{}, err
	}
	return doc, nil
}

func (m *Manager) loadDocument(ctx context.Context, id Identity, docID string, target any) error {
	doc, err := m.store.GetDocument(ctx, id.String(), docID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", docID, err)
	}
	if err := json.Unmarshal(doc.Payload, target); err != nil {
		return fmt.Errorf("decode document %s: %w", docID, err)
	}
	return nil
}

// lock serialises Init per identity within this process.
func (m *Manager) lock(key string) func() {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &identityLock{}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()

		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}
}
