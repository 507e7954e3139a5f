package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/partnerdesk/partnerdesk/internal/db"
	"github.com/partnerdesk/partnerdesk/internal/model"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrDuplicateEmail  = errors.New("email already exists")
)

const accountColumns = `id, email, username, mobile, password_hash, legacy_password, role, status, name,
	kyc_status, kyc_reason, kyc_documents, bank_name, account_number, ifsc_code, account_holder,
	lead_submission_enabled, category, session_token, session_expiry, updated_at`

// AccountRepository covers the account lookups the session manager needs:
// by email at login, by token at validation, plus the credential and session
// writes that follow.
type AccountRepository interface {
	ByEmail(ctx context.Context, email string) (*model.Account, error)
	ByToken(ctx context.Context, token string) (*model.Account, error)
	Create(ctx context.Context, a *model.Account) error
	UpdateSession(ctx context.Context, id, token string, expiry int64) error
	UpdateSessionExpiry(ctx context.Context, id string, expiry int64) error
	SetDigest(ctx context.Context, id, digest string) error
}

type accountRepository struct {
	handle *db.Handle
}

func NewAccountRepository(handle *db.Handle) AccountRepository {
	return &accountRepository{handle: handle}
}

func (r *accountRepository) ByEmail(ctx context.Context, email string) (*model.Account, error) {
	database, err := r.handle.DB()
	if err != nil {
		return nil, err
	}
	a := &model.Account{}
	err = database.GetContext(ctx, a, "SELECT "+accountColumns+" FROM users WHERE email = $1", email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *accountRepository) ByToken(ctx context.Context, token string) (*model.Account, error) {
	database, err := r.handle.DB()
	if err != nil {
		return nil, err
	}
	a := &model.Account{}
	err = database.GetContext(ctx, a, "SELECT "+accountColumns+" FROM users WHERE session_token = $1", token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *accountRepository) Create(ctx context.Context, a *model.Account) error {
	database, err := r.handle.DB()
	if err != nil {
		return err
	}
	_, err = database.ExecContext(ctx, `
		INSERT INTO users (
			id, email, username, mobile, password_hash, role, status, name,
			kyc_status, kyc_reason, kyc_documents,
			bank_name, account_number, ifsc_code, account_holder,
			lead_submission_enabled, category, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		a.ID, a.Email, a.Username, a.Mobile, a.PasswordHash, a.Role, a.Status, a.Name,
		a.KYCStatus, a.KYCReason, a.KYCDocuments,
		a.BankName, a.AccountNumber, a.IFSCCode, a.AccountHolder,
		a.LeadSubmissionEnabled, a.Category, model.Timestamp(),
	)
	if err != nil {
		// Works for both SQLite and PostgreSQL
		msg := err.Error()
		if strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value") {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

func (r *accountRepository) UpdateSession(ctx context.Context, id, token string, expiry int64) error {
	database, err := r.handle.DB()
	if err != nil {
		return err
	}
	_, err = database.ExecContext(ctx,
		"UPDATE users SET session_token = $1, session_expiry = $2 WHERE id = $3",
		token, expiry, id,
	)
	return err
}

func (r *accountRepository) UpdateSessionExpiry(ctx context.Context, id string, expiry int64) error {
	database, err := r.handle.DB()
	if err != nil {
		return err
	}
	_, err = database.ExecContext(ctx,
		"UPDATE users SET session_expiry = $1 WHERE id = $2",
		expiry, id,
	)
	return err
}

// SetDigest persists a bcrypt digest and clears any legacy plaintext in the
// same statement, so the plaintext path is unreachable afterwards.
func (r *accountRepository) SetDigest(ctx context.Context, id, digest string) error {
	database, err := r.handle.DB()
	if err != nil {
		return err
	}
	_, err = database.ExecContext(ctx,
		"UPDATE users SET password_hash = $1, legacy_password = NULL WHERE id = $2",
		digest, id,
	)
	return err
}
