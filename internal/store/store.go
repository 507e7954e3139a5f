// Package store implements the document store over a fixed set of
// collections. Each collection persists records with one of two strategies:
// an opaque JSON payload (the default) or normalized columns (accounts).
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/partnerdesk/partnerdesk/internal/apperr"
	"github.com/partnerdesk/partnerdesk/internal/db"
	"github.com/partnerdesk/partnerdesk/internal/model"
	"github.com/partnerdesk/partnerdesk/internal/registry"
)

type Store struct {
	handle *db.Handle
	// lock is the row lock clause appended to the read inside an upsert.
	// Postgres needs FOR UPDATE; on sqlite the connection layer opens every
	// explicit transaction as an immediate write transaction, so concurrent
	// upserts queue on busy_timeout instead of deadlocking mid-merge.
	lock    string
	json    jsonStrategy
	account accountStrategy
}

func New(handle *db.Handle, driver string) *Store {
	lock := ""
	if driver == "pgx" {
		lock = " FOR UPDATE"
	}
	return &Store{handle: handle, lock: lock}
}

// UpsertOptions carries fields that live outside the document. A new
// password digest is computed by the caller; the store only persists it.
type UpsertOptions struct {
	PasswordHash *string
}

// UpsertResult holds the merged document and the prior one (nil on insert),
// so callers can compute attachment reference deltas.
type UpsertResult struct {
	Merged model.Document
	Prior  model.Document
}

func (s *Store) strategyFor(c registry.Collection) strategy {
	if c.Strategy == registry.Normalized {
		return s.account
	}
	return s.json
}

// List returns every record in the collection, most recently modified first.
func (s *Store) List(ctx context.Context, collection string) ([]model.Document, error) {
	col, ok := registry.Lookup(collection)
	if !ok {
		return nil, apperr.NotFound("not found")
	}
	database, err := s.handle.DB()
	if err != nil {
		return nil, err
	}
	docs, err := s.strategyFor(col).list(ctx, database, col.Name)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return docs, nil
}

// Get returns the record with the given id.
func (s *Store) Get(ctx context.Context, collection, id string) (model.Document, error) {
	col, ok := registry.Lookup(collection)
	if !ok {
		return nil, apperr.NotFound("not found")
	}
	database, err := s.handle.DB()
	if err != nil {
		return nil, err
	}
	return s.strategyFor(col).get(ctx, database, col.Name, id)
}

// Upsert reconciles a partial document against the existing record in one
// transaction: the row is read under an exclusive lock, every top-level key
// of the partial replaces the stored key wholesale, absent keys are
// preserved, and the merged result is written with a fresh modification
// timestamp. A missing row becomes an insert. Any failure after the lock
// rolls the whole transaction back.
func (s *Store) Upsert(ctx context.Context, collection string, partial model.Document, opts UpsertOptions) (UpsertResult, error) {
	col, ok := registry.Lookup(collection)
	if !ok {
		return UpsertResult{}, apperr.NotFound("not found")
	}
	id, ok := partial.ID()
	if !ok {
		return UpsertResult{}, apperr.InvalidInput("missing record id")
	}
	database, err := s.handle.DB()
	if err != nil {
		return UpsertResult{}, err
	}

	tx, err := database.BeginTxx(ctx, nil)
	if err != nil {
		return UpsertResult{}, apperr.Storage(err)
	}

	merged, prior, err := s.strategyFor(col).upsert(ctx, tx, col.Name, id, partial, opts, s.lock)
	if err != nil {
		tx.Rollback()
		if isUniqueViolation(err) {
			return UpsertResult{}, apperr.Conflict("email already exists")
		}
		return UpsertResult{}, apperr.Storage(err)
	}

	err = tx.Commit()
	if err != nil {
		return UpsertResult{}, apperr.Storage(err)
	}
	return UpsertResult{Merged: merged, Prior: prior}, nil
}

// Delete removes the record, silently succeeding when it is absent, and
// applies the cascade rule inside the same transaction. The prior document
// is returned (nil if the record did not exist) for attachment cleanup.
func (s *Store) Delete(ctx context.Context, collection, id string) (model.Document, error) {
	col, ok := registry.Lookup(collection)
	if !ok {
		return nil, apperr.NotFound("not found")
	}
	database, err := s.handle.DB()
	if err != nil {
		return nil, err
	}

	tx, err := database.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperr.Storage(err)
	}

	// The snapshot handed to attachment cleanup is read inside the same
	// transaction, so it is exactly what the DELETE removes.
	prior, err := s.strategyFor(col).get(ctx, tx, col.Name, id)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindNotFound {
			tx.Rollback()
			return nil, err
		}
		prior = nil
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", col.Name), id)
	if err != nil {
		tx.Rollback()
		return nil, apperr.Storage(err)
	}
	if target, ok := registry.CascadeTarget(col.Name); ok {
		_, err = tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = $1", target), id)
		if err != nil {
			tx.Rollback()
			return nil, apperr.Storage(err)
		}
	}
	err = tx.Commit()
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return prior, nil
}

// isUniqueViolation matches unique constraint errors for both sqlite and
// postgres, mirroring the driver-portable check used for duplicate emails.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
