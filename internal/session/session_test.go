package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/hh-artifacts/internal/model"
	"github.com/spigell/hh-artifacts/internal/store"
	"github.com/spigell/hh-artifacts/internal/store/sqlite"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func setup(t *testing.T) (*Manager, *sqlite.Store, *clock) {
	t.Helper()

	st, err := sqlite.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	c := &clock{now: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)}
	return NewManager(st, WithClock(c.Now), WithTTL(time.Hour)), st, c
}

var (
	alice   = Identity{UserID: "alice", OrgID: "acme"}
	bob     = Identity{UserID: "bob", OrgID: "acme"}
	resume  = &model.Resume{FullName: "Alice", Skills: []string{"Go"}}
	vacancy = &model.Vacancy{Title: "Backend Engineer"}
)

func TestInitAndLoad(t *testing.T) {
	m, _, _ := setup(t)
	ctx := context.Background()

	sess, err := m.Init(ctx, alice, resume, vacancy, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, time.Hour, sess.ExpiresAt.Sub(sess.CreatedAt))

	loaded, err := m.Load(ctx, alice, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, resume, loaded.Resume)
	assert.Equal(t, vacancy, loaded.Vacancy)
}

func TestLoadIsIdentityScoped(t *testing.T) {
	m, _, _ := setup(t)
	ctx := context.Background()

	sess, err := m.Init(ctx, alice, resume, vacancy, 0)
	require.NoError(t, err)

	_, err = m.Load(ctx, bob, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadExpired(t *testing.T) {
	m, _, c := setup(t)
	ctx := context.Background()

	sess, err := m.Init(ctx, alice, resume, vacancy, time.Minute)
	require.NoError(t, err)

	c.Advance(2 * time.Minute)
	_, err = m.Load(ctx, alice, sess.ID)
	assert.ErrorIs(t, err, ErrExpired)

	n, err := m.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = m.Load(ctx, alice, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInitRejectsEmptyRecords(t *testing.T) {
	m, _, _ := setup(t)

	_, err := m.Init(context.Background(), alice, &model.Resume{}, vacancy, 0)
	assert.ErrorIs(t, err, model.ErrEmptyResume)
}

func TestConcurrentInitReusesDocuments(t *testing.T) {
	m, st, _ := setup(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := m.Init(ctx, alice, resume, vacancy, 0)
			if assert.NoError(t, err) {
				ids[i] = sess.ID
			}
		}(i)
	}
	wg.Wait()

	hash, err := resume.Hash()
	require.NoError(t, err)
	doc, err := st.FindDocumentByHash(ctx, alice.String(), store.KindResume, hash)
	require.NoError(t, err)

	for _, id := range ids {
		rec, err := st.GetSession(ctx, alice.String(), id)
		require.NoError(t, err)
		assert.Equal(t, doc.ID, rec.ResumeID, fmt.Sprintf("session %s", id))
	}

	// A different identity gets its own copy.
	_, err = m.Init(ctx, bob, resume, vacancy, 0)
	require.NoError(t, err)
	bobDoc, err := st.FindDocumentByHash(ctx, bob.String(), store.KindResume, hash)
	require.NoError(t, err)
	assert.NotEqual(t, doc.ID, bobDoc.ID)
}

func TestIdentityLocksAreReleased(t *testing.T) {
	m, _, _ := setup(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := Identity{UserID: fmt.Sprintf("user-%d", i%5), OrgID: "acme"}
			_, err := m.Init(ctx, id, resume, vacancy, 0)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, m.lockCount())

	unlock := m.lock(alice.String())
	assert.Equal(t, 1, m.lockCount())
	unlock()
	assert.Zero(t, m.lockCount())
}

func (m *Manager) lockCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
