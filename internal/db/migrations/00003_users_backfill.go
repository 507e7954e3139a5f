// Package migrations holds the Go migrations that cannot be expressed as
// plain SQL. They register themselves with goose on import.
package migrations

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"

	"github.com/partnerdesk/partnerdesk/internal/model"
)

func init() {
	goose.AddMigrationNoTxContext(upUsersBackfill, downUsersBackfill)
}

// addColumns are the statements that bring a legacy users table (id, data,
// password_hash) up to the normalized schema. Each is attempted and
// duplicate-column failures are ignored, so a partially migrated table from
// an interrupted prior run is completed rather than broken.
var addColumns = []string{
	"ALTER TABLE users ADD COLUMN email TEXT DEFAULT NULL",
	"ALTER TABLE users ADD COLUMN username TEXT DEFAULT NULL",
	"ALTER TABLE users ADD COLUMN mobile TEXT DEFAULT NULL",
	"ALTER TABLE users ADD COLUMN password_hash TEXT DEFAULT NULL",
	"ALTER TABLE users ADD COLUMN legacy_password TEXT DEFAULT NULL",
	"ALTER TABLE users ADD COLUMN role TEXT DEFAULT 'partner'",
	"ALTER TABLE users ADD COLUMN status TEXT DEFAULT 'pending'",
	"ALTER TABLE users ADD COLUMN name TEXT DEFAULT NULL",
	"ALTER TABLE users ADD COLUMN kyc_status TEXT DEFAULT 'not_submitted'",
	"ALTER TABLE users ADD COLUMN kyc_reason TEXT DEFAULT NULL",
	"ALTER TABLE users ADD COLUMN kyc_documents TEXT DEFAULT NULL",
	"ALTER TABLE users ADD COLUMN bank_name TEXT DEFAULT NULL",
	"ALTER TABLE users ADD COLUMN account_number TEXT DEFAULT NULL",
	"ALTER TABLE users ADD COLUMN ifsc_code TEXT DEFAULT NULL",
	"ALTER TABLE users ADD COLUMN account_holder TEXT DEFAULT NULL",
	"ALTER TABLE users ADD COLUMN lead_submission_enabled BOOLEAN DEFAULT FALSE",
	"ALTER TABLE users ADD COLUMN category TEXT DEFAULT NULL",
	"ALTER TABLE users ADD COLUMN session_token TEXT DEFAULT NULL",
	"ALTER TABLE users ADD COLUMN session_expiry BIGINT DEFAULT NULL",
}

// upUsersBackfill moves accounts stored as a legacy JSON blob into the
// normalized columns, then drops the blob column. Runs outside a transaction
// because the ignore-on-error ALTERs would poison one on postgres.
func upUsersBackfill(ctx context.Context, db *sql.DB) error {
	// Probe for the legacy blob column; fresh schemas skip the whole step.
	var probe sql.NullString
	err := db.QueryRowContext(ctx, "SELECT data FROM users LIMIT 1").Scan(&probe)
	if err != nil && err != sql.ErrNoRows {
		return nil
	}

	for _, stmt := range addColumns {
		_, err := db.ExecContext(ctx, stmt)
		if err != nil {
			slog.Debug("users backfill: column exists", "stmt", stmt, "error", err)
		}
	}

	type legacyRow struct {
		id   string
		data string
		hash sql.NullString
	}

	rows, err := db.QueryContext(ctx, "SELECT id, data, password_hash FROM users")
	if err != nil {
		return fmt.Errorf("failed to read legacy users: %w", err)
	}
	var legacy []legacyRow
	for rows.Next() {
		var r legacyRow
		err := rows.Scan(&r.id, &r.data, &r.hash)
		if err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan legacy user: %w", err)
		}
		legacy = append(legacy, r)
	}
	rows.Close()
	err = rows.Err()
	if err != nil {
		return fmt.Errorf("failed to read legacy users: %w", err)
	}

	for _, r := range legacy {
		var doc model.Document
		err := json.Unmarshal([]byte(r.data), &doc)
		if err != nil {
			slog.Error("users backfill: skipping unparseable row", "id", r.id, "error", err)
			continue
		}
		a := model.AccountFromDocument(r.id, doc)

		// Plaintext passwords stay verifiable: without a digest they move to
		// legacy_password and are hashed on the next successful login.
		var legacyPassword *string
		if pw, ok := doc["password"].(string); ok && pw != "" && !r.hash.Valid {
			legacyPassword = &pw
		}

		_, err = db.ExecContext(ctx, `
			UPDATE users SET
				email = $1, username = $2, mobile = $3, role = $4, status = $5, name = $6,
				kyc_status = $7, kyc_reason = $8, kyc_documents = $9,
				bank_name = $10, account_number = $11, ifsc_code = $12, account_holder = $13,
				lead_submission_enabled = $14, category = $15,
				session_token = $16, session_expiry = $17,
				legacy_password = $18
			WHERE id = $19`,
			a.Email, a.Username, a.Mobile, a.Role, a.Status, a.Name,
			a.KYCStatus, a.KYCReason, a.KYCDocuments,
			a.BankName, a.AccountNumber, a.IFSCCode, a.AccountHolder,
			a.LeadSubmissionEnabled, a.Category,
			a.SessionToken, a.SessionExpiry,
			legacyPassword,
			r.id,
		)
		if err != nil {
			return fmt.Errorf("failed to backfill user %s: %w", r.id, err)
		}
	}
	if len(legacy) > 0 {
		slog.Info("users backfill completed", "count", len(legacy))
	}

	_, err = db.ExecContext(ctx, "ALTER TABLE users DROP COLUMN data")
	if err != nil {
		slog.Warn("users backfill: failed to drop legacy data column", "error", err)
	}
	return nil
}

func downUsersBackfill(ctx context.Context, db *sql.DB) error {
	// The legacy blob cannot be reconstructed.
	return nil
}
