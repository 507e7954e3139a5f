package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/partnerdesk/partnerdesk/internal/apperr"
	"github.com/partnerdesk/partnerdesk/internal/model"
)

// accountColumns is listed explicitly so scans keep working on databases
// that still carry stray legacy columns.
const accountColumns = `id, email, username, mobile, password_hash, legacy_password, role, status, name,
	kyc_status, kyc_reason, kyc_documents, bank_name, account_number, ifsc_code, account_holder,
	lead_submission_enabled, category, session_token, session_expiry, updated_at`

// accountStrategy maps documents bidirectionally onto the normalized users
// columns. Credential columns never surface in documents.
type accountStrategy struct{}

func (accountStrategy) list(ctx context.Context, q sqlx.QueryerContext, table string) ([]model.Document, error) {
	var accounts []model.Account
	err := sqlx.SelectContext(ctx, q, &accounts, "SELECT "+accountColumns+" FROM users ORDER BY updated_at DESC")
	if err != nil {
		return nil, err
	}
	docs := make([]model.Document, 0, len(accounts))
	for i := range accounts {
		docs = append(docs, accounts[i].Document())
	}
	return docs, nil
}

func (accountStrategy) get(ctx context.Context, q sqlx.QueryerContext, table, id string) (model.Document, error) {
	var a model.Account
	err := sqlx.GetContext(ctx, q, &a, "SELECT "+accountColumns+" FROM users WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("not found")
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return a.Document(), nil
}

func (accountStrategy) upsert(ctx context.Context, tx *sqlx.Tx, table, id string, partial model.Document, opts UpsertOptions, lock string) (model.Document, model.Document, error) {
	// Session columns are owned by login and validate. A document cannot
	// plant a token: stripping the keys here means an insert stores NULLs
	// and an update keeps whatever the existing row carries.
	partial = partial.Clone()
	delete(partial, "session_token")
	delete(partial, "session_expiry")

	var existing model.Account
	err := sqlx.GetContext(ctx, tx, &existing, "SELECT "+accountColumns+" FROM users WHERE id = $1"+lock, id)
	if errors.Is(err, sql.ErrNoRows) {
		a := model.AccountFromDocument(id, partial)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO users (
				id, email, username, mobile, password_hash, role, status, name,
				kyc_status, kyc_reason, kyc_documents,
				bank_name, account_number, ifsc_code, account_holder,
				lead_submission_enabled, category, session_token, session_expiry, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
			a.ID, a.Email, a.Username, a.Mobile, opts.PasswordHash, a.Role, a.Status, a.Name,
			a.KYCStatus, a.KYCReason, a.KYCDocuments,
			a.BankName, a.AccountNumber, a.IFSCCode, a.AccountHolder,
			a.LeadSubmissionEnabled, a.Category, a.SessionToken, a.SessionExpiry, model.Timestamp(),
		)
		if err != nil {
			return nil, nil, err
		}
		return partial, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	prior := existing.Document()
	merged := overlay(prior, partial)
	a := model.AccountFromDocument(id, merged)

	// A new digest replaces the credential outright; otherwise both
	// credential columns carry over untouched.
	hash := existing.PasswordHash
	legacy := existing.LegacyPassword
	if opts.PasswordHash != nil {
		hash = opts.PasswordHash
		legacy = nil
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET
			email = $1, username = $2, mobile = $3, role = $4, status = $5, name = $6,
			kyc_status = $7, kyc_reason = $8, kyc_documents = $9,
			bank_name = $10, account_number = $11, ifsc_code = $12, account_holder = $13,
			lead_submission_enabled = $14, category = $15,
			session_token = $16, session_expiry = $17,
			password_hash = $18, legacy_password = $19, updated_at = $20
		WHERE id = $21`,
		a.Email, a.Username, a.Mobile, a.Role, a.Status, a.Name,
		a.KYCStatus, a.KYCReason, a.KYCDocuments,
		a.BankName, a.AccountNumber, a.IFSCCode, a.AccountHolder,
		a.LeadSubmissionEnabled, a.Category,
		a.SessionToken, a.SessionExpiry,
		hash, legacy, model.Timestamp(),
		id,
	)
	if err != nil {
		return nil, nil, err
	}
	return merged, prior, nil
}
