package store

import (
	"context"
	"maps"

	"github.com/jmoiron/sqlx"

	"github.com/partnerdesk/partnerdesk/internal/model"
)

// strategy is the per-collection persistence variant. Implementations share
// the store's transaction and never see collection names outside the
// registry allowlist.
type strategy interface {
	list(ctx context.Context, q sqlx.QueryerContext, table string) ([]model.Document, error)
	get(ctx context.Context, q sqlx.QueryerContext, table, id string) (model.Document, error)
	upsert(ctx context.Context, tx *sqlx.Tx, table, id string, partial model.Document, opts UpsertOptions, lock string) (merged, prior model.Document, err error)
}

// overlay merges a partial document onto the existing one: every top-level
// key in partial replaces the stored value wholesale, nothing is merged
// recursively. Callers must send the full value of any field they change.
func overlay(existing, partial model.Document) model.Document {
	merged := make(model.Document, len(existing)+len(partial))
	maps.Copy(merged, existing)
	maps.Copy(merged, partial)
	return merged
}
