package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partnerdesk/partnerdesk/internal/apperr"
	"github.com/partnerdesk/partnerdesk/internal/db"
	"github.com/partnerdesk/partnerdesk/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	// A named in-memory database, shared across the pool's connections but
	// private to this test.
	name := strings.NewReplacer("/", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	database, err := sqlx.Connect("sqlite", dsn)
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database.DB, "sqlite"))
	return New(db.Ready(database), "sqlite")
}

func TestUpsertInsertsWhenAbsent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	res, err := s.Upsert(ctx, "leads", model.Document{"id": "l1", "customer": "acme"}, UpsertOptions{})
	require.NoError(t, err)
	assert.Nil(t, res.Prior)
	assert.Equal(t, "acme", res.Merged["customer"])

	doc, err := s.Get(ctx, "leads", "l1")
	require.NoError(t, err)
	assert.Equal(t, "acme", doc["customer"])
}

func TestUpsertMergesTopLevelKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "leads", model.Document{
		"id":       "l1",
		"customer": "acme",
		"amount":   float64(100),
		"nested":   map[string]any{"a": float64(1), "b": float64(2)},
	}, UpsertOptions{})
	require.NoError(t, err)

	res, err := s.Upsert(ctx, "leads", model.Document{
		"id":     "l1",
		"amount": float64(250),
		"nested": map[string]any{"c": float64(3)},
	}, UpsertOptions{})
	require.NoError(t, err)

	// Absent keys carry over, present keys replace wholesale (no deep merge).
	assert.Equal(t, "acme", res.Merged["customer"])
	assert.Equal(t, float64(250), res.Merged["amount"])
	assert.Equal(t, map[string]any{"c": float64(3)}, res.Merged["nested"])
	assert.Equal(t, float64(100), res.Prior["amount"])

	doc, err := s.Get(ctx, "leads", "l1")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"c": float64(3)}, doc["nested"])
}

func TestUpsertRequiresID(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Upsert(context.Background(), "leads", model.Document{"customer": "acme"}, UpsertOptions{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalidInput, apperr.KindOf(err))
}

func TestUnknownCollectionRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for name, op := range map[string]func() error{
		"list": func() error {
			_, err := s.List(ctx, "users; DROP TABLE users")
			return err
		},
		"get": func() error {
			_, err := s.Get(ctx, "secrets", "x")
			return err
		},
		"upsert": func() error {
			_, err := s.Upsert(ctx, "secrets", model.Document{"id": "x"}, UpsertOptions{})
			return err
		},
		"delete": func() error {
			_, err := s.Delete(ctx, "secrets", "x")
			return err
		},
	} {
		err := op()
		require.Error(t, err, name)
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err), name)
	}
}

func TestListOrdersByRecency(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "tickets", model.Document{"id": "t1", "subject": "first"}, UpsertOptions{})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "tickets", model.Document{"id": "t2", "subject": "second"}, UpsertOptions{})
	require.NoError(t, err)

	// Touching t1 again moves it to the front.
	_, err = s.Upsert(ctx, "tickets", model.Document{"id": "t1", "subject": "updated"}, UpsertOptions{})
	require.NoError(t, err)

	docs, err := s.List(ctx, "tickets")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "t1", docs[0]["id"])
	assert.Equal(t, "t2", docs[1]["id"])
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	prior, err := s.Delete(ctx, "leads", "nope")
	require.NoError(t, err)
	assert.Nil(t, prior)

	_, err = s.Upsert(ctx, "leads", model.Document{"id": "l1", "customer": "acme"}, UpsertOptions{})
	require.NoError(t, err)

	prior, err = s.Delete(ctx, "leads", "l1")
	require.NoError(t, err)
	assert.Equal(t, "acme", prior["customer"])

	_, err = s.Get(ctx, "leads", "l1")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDeleteCascadesPayoutRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "autofetch_records", model.Document{"id": "r1", "source": "bank"}, UpsertOptions{})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "admin_payout_records", model.Document{"id": "r1", "amount": float64(10)}, UpsertOptions{})
	require.NoError(t, err)

	_, err = s.Delete(ctx, "autofetch_records", "r1")
	require.NoError(t, err)

	_, err = s.Get(ctx, "autofetch_records", "r1")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = s.Get(ctx, "admin_payout_records", "r1")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDeletePayoutRecordDoesNotCascadeBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "autofetch_records", model.Document{"id": "r1", "source": "bank"}, UpsertOptions{})
	require.NoError(t, err)
	_, err = s.Upsert(ctx, "admin_payout_records", model.Document{"id": "r1", "amount": float64(10)}, UpsertOptions{})
	require.NoError(t, err)

	_, err = s.Delete(ctx, "admin_payout_records", "r1")
	require.NoError(t, err)

	_, err = s.Get(ctx, "autofetch_records", "r1")
	assert.NoError(t, err)
}

func TestAccountUpsertUsesColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	digest := "$2a$10$fakedigestfakedigestfake"
	_, err := s.Upsert(ctx, "users", model.Document{
		"id":    "u1",
		"email": "a@example.com",
		"name":  "Alice",
	}, UpsertOptions{PasswordHash: &digest})
	require.NoError(t, err)

	doc, err := s.Get(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", doc["email"])
	assert.Equal(t, "partner", doc["role"])
	assert.Equal(t, "pending", doc["status"])
	assert.NotContains(t, doc, "password")
	assert.NotContains(t, doc, "password_hash")

	// The digest landed in its column even though it never surfaces.
	database, err := s.handle.DB()
	require.NoError(t, err)
	var stored string
	require.NoError(t, database.Get(&stored, "SELECT password_hash FROM users WHERE id = $1", "u1"))
	assert.Equal(t, digest, stored)
}

func TestAccountMergePreservesCredential(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	digest := "$2a$10$originaldigest"
	_, err := s.Upsert(ctx, "users", model.Document{"id": "u1", "email": "a@example.com"}, UpsertOptions{PasswordHash: &digest})
	require.NoError(t, err)

	// A merge without a new password keeps the stored digest.
	res, err := s.Upsert(ctx, "users", model.Document{"id": "u1", "status": "approved"}, UpsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, "approved", res.Merged["status"])
	assert.Equal(t, "a@example.com", res.Merged["email"])

	database, err := s.handle.DB()
	require.NoError(t, err)
	var stored string
	require.NoError(t, database.Get(&stored, "SELECT password_hash FROM users WHERE id = $1", "u1"))
	assert.Equal(t, digest, stored)
}

func TestAccountUpsertCannotPlantSession(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// An insert carrying session fields stores none.
	_, err := s.Upsert(ctx, "users", model.Document{
		"id":             "u1",
		"email":          "a@example.com",
		"session_token":  "forged",
		"session_expiry": float64(9999999999),
	}, UpsertOptions{})
	require.NoError(t, err)

	database, err := s.handle.DB()
	require.NoError(t, err)
	var token *string
	require.NoError(t, database.Get(&token, "SELECT session_token FROM users WHERE id = $1", "u1"))
	assert.Nil(t, token)

	// A merge against a logged-in account keeps the live session.
	_, err = database.Exec("UPDATE users SET session_token = $1, session_expiry = $2 WHERE id = $3",
		"real-token", int64(1234567890), "u1")
	require.NoError(t, err)

	res, err := s.Upsert(ctx, "users", model.Document{
		"id":            "u1",
		"name":          "Alice",
		"session_token": "forged",
	}, UpsertOptions{})
	require.NoError(t, err)
	assert.Equal(t, "real-token", res.Merged["session_token"])

	var stored string
	require.NoError(t, database.Get(&stored, "SELECT session_token FROM users WHERE id = $1", "u1"))
	assert.Equal(t, "real-token", stored)
}

func TestAccountDuplicateEmailConflicts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, "users", model.Document{"id": "u1", "email": "a@example.com"}, UpsertOptions{})
	require.NoError(t, err)

	_, err = s.Upsert(ctx, "users", model.Document{"id": "u2", "email": "a@example.com"}, UpsertOptions{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestConcurrentUpsertsKeepEveryKey(t *testing.T) {
	// A file-backed database through the production pool: many connections,
	// so the writers genuinely contend for the row instead of queueing on a
	// single connection.
	dsn := filepath.Join(t.TempDir(), "store.db") + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)"
	database, err := db.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, db.RunMigrations(database.DB, "sqlite"))
	s := New(db.Ready(database), "sqlite")
	ctx := context.Background()

	_, err = s.Upsert(ctx, "leads", model.Document{"id": "l1"}, UpsertOptions{})
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("field_%d", i)
			_, errs[i] = s.Upsert(ctx, "leads", model.Document{"id": "l1", key: float64(i)}, UpsertOptions{})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}

	doc, err := s.Get(ctx, "leads", "l1")
	require.NoError(t, err)
	for i := 0; i < writers; i++ {
		assert.Equal(t, float64(i), doc[fmt.Sprintf("field_%d", i)])
	}
}
