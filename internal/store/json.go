package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/partnerdesk/partnerdesk/internal/apperr"
	"github.com/partnerdesk/partnerdesk/internal/model"
)

// jsonStrategy stores each record as one opaque JSON blob in a data column.
type jsonStrategy struct{}

func (jsonStrategy) list(ctx context.Context, q sqlx.QueryerContext, table string) ([]model.Document, error) {
	var raws []string
	err := sqlx.SelectContext(ctx, q, &raws, fmt.Sprintf("SELECT data FROM %s ORDER BY updated_at DESC", table))
	if err != nil {
		return nil, err
	}
	docs := make([]model.Document, 0, len(raws))
	for _, raw := range raws {
		docs = append(docs, parseDocument(table, raw))
	}
	return docs, nil
}

func (jsonStrategy) get(ctx context.Context, q sqlx.QueryerContext, table, id string) (model.Document, error) {
	var raw string
	err := sqlx.GetContext(ctx, q, &raw, fmt.Sprintf("SELECT data FROM %s WHERE id = $1", table), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("not found")
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return parseDocument(table, raw), nil
}

func (jsonStrategy) upsert(ctx context.Context, tx *sqlx.Tx, table, id string, partial model.Document, _ UpsertOptions, lock string) (model.Document, model.Document, error) {
	var raw string
	err := sqlx.GetContext(ctx, tx, &raw, fmt.Sprintf("SELECT data FROM %s WHERE id = $1%s", table, lock), id)
	if errors.Is(err, sql.ErrNoRows) {
		data, err := json.Marshal(partial)
		if err != nil {
			return nil, nil, err
		}
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (id, data, updated_at) VALUES ($1, $2, $3)", table),
			id, string(data), model.Timestamp(),
		)
		if err != nil {
			return nil, nil, err
		}
		return partial, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	prior := parseDocument(table, raw)
	merged := overlay(prior, partial)
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, nil, err
	}
	_, err = tx.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET data = $1, updated_at = $2 WHERE id = $3", table),
		string(data), model.Timestamp(), id,
	)
	if err != nil {
		return nil, nil, err
	}
	return merged, prior, nil
}

// parseDocument tolerates corrupt payloads: a row that no longer parses is
// returned as an empty document rather than failing the whole operation.
func parseDocument(table, raw string) model.Document {
	var doc model.Document
	err := json.Unmarshal([]byte(raw), &doc)
	if err != nil {
		slog.Warn("unparseable record payload", "table", table, "error", err)
		return model.Document{}
	}
	return doc
}
