// Package sqlite implements store.Store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/spigell/hh-artifacts/internal/store"
	"github.com/spigell/hh-artifacts/internal/store/sqlite/migrations"
)

const fileName = "hh-artifacts.db"

// Store is the SQLite storage of documents and sessions.
type Store struct {
	db   *sql.DB
	path string
}

var _ store.Store = (*Store)(nil)

// New opens (creating when needed) the database in dataDir and applies pending migrations.
func New(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, fileName)
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if err := s.apply(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) apply(version int, script string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveDocument inserts doc. A document with the same identity, kind and hash
// yields store.ErrConflict.
func (s *Store) SaveDocument(ctx context.Context, doc store.Document) error {
	if doc.ID == "" || doc.Identity == "" {
		return errors.New("document id and identity are required")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, identity, kind, hash, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (identity, kind, hash) DO NOTHING
	`, doc.ID, doc.Identity, string(doc.Kind), doc.Hash, doc.Payload, toUnix(doc.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}
	if n == 0 {
		return store.ErrConflict
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, identity, id string) (store.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, identity, kind, hash, payload, created_at
		FROM documents WHERE identity = ? AND id = ?
	`, identity, id)
	return scanDocument(row)
}

func (s *Store) FindDocumentByHash(ctx context.Context, identity string, kind store.Kind, hash string) (store.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, identity, kind, hash, payload, created_at
		FROM documents WHERE identity = ? AND kind = ? AND hash = ?
	`, identity, string(kind), hash)
	return scanDocument(row)
}

func (s *Store) SaveSession(ctx context.Context, sess store.Session) error {
	if sess.ID == "" || sess.Identity == "" {
		return errors.New("session id and identity are required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, identity, resume_id, vacancy_id, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			resume_id = excluded.resume_id,
			vacancy_id = excluded.vacancy_id,
			expires_at = excluded.expires_at
	`, sess.ID, sess.Identity, sess.ResumeID, sess.VacancyID, toUnix(sess.CreatedAt), toUnix(sess.ExpiresAt))
	if err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, identity, id string) (store.Session, error) {
	var (
		sess               store.Session
		created, expiresAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, identity, resume_id, vacancy_id, created_at, expires_at
		FROM sessions WHERE identity = ? AND id = ?
	`, identity, id).Scan(&sess.ID, &sess.Identity, &sess.ResumeID, &sess.VacancyID, &created, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Session{}, store.ErrNotFound
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("getting session: %w", err)
	}

	sess.CreatedAt = fromUnix(created)
	sess.ExpiresAt = fromUnix(expiresAt)
	return sess, nil
}

// DeleteExpiredSessions removes sessions that expired at or before now.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at > 0 AND expires_at <= ?", toUnix(now))
	if err != nil {
		return 0, fmt.Errorf("deleting expired sessions: %w", err)
	}
	return res.RowsAffected()
}

func scanDocument(row *sql.Row) (store.Document, error) {
	var (
		doc     store.Document
		kind    string
		created int64
	)
	err := row.Scan(&doc.ID, &doc.Identity, &kind, &doc.Hash, &doc.Payload, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("getting document: %w", err)
	}
	doc.Kind = store.Kind(kind)
	doc.CreatedAt = fromUnix(created)
	return doc, nil
}

// Times are stored as unix milliseconds; zero means unset.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnix(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
