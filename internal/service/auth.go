package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/partnerdesk/partnerdesk/internal/apperr"
	"github.com/partnerdesk/partnerdesk/internal/model"
	"github.com/partnerdesk/partnerdesk/internal/repository"
)

// AuthService issues and validates session tokens. A token is an opaque
// random value stored on the account row; each account holds at most one
// live session, so a new login invalidates the previous token. Validation
// slides the expiry forward, giving sessions an inactivity timeout rather
// than a fixed lifetime.
type AuthService struct {
	accounts   repository.AccountRepository
	creds      *CredentialService
	ttlAdmin   time.Duration
	ttlDefault time.Duration
	now        func() time.Time
}

func NewAuthService(accounts repository.AccountRepository, creds *CredentialService, ttlAdmin, ttlDefault time.Duration) *AuthService {
	return &AuthService{
		accounts:   accounts,
		creds:      creds,
		ttlAdmin:   ttlAdmin,
		ttlDefault: ttlDefault,
		now:        time.Now,
	}
}

func (s *AuthService) ttl(role string) time.Duration {
	if strings.EqualFold(role, model.RoleAdmin) {
		return s.ttlAdmin
	}
	return s.ttlDefault
}

// Register creates an account from a self-registration document. Email and
// password are mandatory here, unlike admin-side record writes. The stored
// account gets the usual defaults (partner role, pending status) unless the
// document says otherwise.
func (s *AuthService) Register(ctx context.Context, doc model.Document) (model.Document, error) {
	email, _ := doc["email"].(string)
	password, _ := doc["password"].(string)
	if email == "" || password == "" {
		return nil, apperr.InvalidInput("email and password required")
	}

	doc = doc.Clone()
	id, ok := doc.ID()
	if !ok {
		id = uuid.New().String()
		doc["id"] = id
	}

	digest, err := s.creds.Hash(password)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	delete(doc, "password")

	a := model.AccountFromDocument(id, doc)
	a.PasswordHash = &digest

	err = s.accounts.Create(ctx, a)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, apperr.Conflict("email already exists")
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return doc, nil
}

// Login verifies credentials and opens a session. Lookup failure and a bad
// password produce the same error, so callers cannot probe which emails
// exist. A legacy plaintext credential that verifies is upgraded to a bcrypt
// digest before the session is issued.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, model.Document, error) {
	a, err := s.accounts.ByEmail(ctx, email)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return "", nil, apperr.Unauthorized("invalid credentials")
	}
	if err != nil {
		return "", nil, storageErr(err)
	}

	cred := a.Credential()
	if cred == nil || !s.creds.Verify(cred, password) {
		return "", nil, apperr.Unauthorized("invalid credentials")
	}

	if _, legacy := cred.(model.LegacyCredential); legacy {
		digest, err := s.creds.Hash(password)
		if err != nil {
			return "", nil, apperr.Storage(err)
		}
		err = s.accounts.SetDigest(ctx, a.ID, digest)
		if err != nil {
			return "", nil, storageErr(err)
		}
		slog.Info("upgraded legacy credential", "account", a.ID)
	}

	status := strings.ToLower(a.Status)
	if status == model.StatusSuspended || status == model.StatusFrozen {
		return "", nil, apperr.Forbidden("account suspended, contact support")
	}
	if !a.IsAdmin() && status == model.StatusPending {
		return "", nil, apperr.Forbidden("account is waiting for admin approval")
	}

	token, err := generateToken()
	if err != nil {
		return "", nil, apperr.Storage(err)
	}
	expiry := s.now().Add(s.ttl(a.Role)).Unix()

	err = s.accounts.UpdateSession(ctx, a.ID, token, expiry)
	if err != nil {
		return "", nil, storageErr(err)
	}

	a.SessionToken = &token
	a.SessionExpiry = &expiry
	return token, a.Document(), nil
}

// Validate resolves a token to its account and extends the session. The new
// expiry is persisted before the account is returned, so a crash cannot hand
// out an extension the store never saw.
func (s *AuthService) Validate(ctx context.Context, token string) (*model.Account, error) {
	if token == "" {
		return nil, apperr.Unauthorized("missing token")
	}

	a, err := s.accounts.ByToken(ctx, token)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, apperr.Unauthorized("invalid or expired token")
	}
	if err != nil {
		return nil, storageErr(err)
	}

	now := s.now().Unix()
	if a.SessionExpiry == nil || *a.SessionExpiry < now {
		return nil, apperr.Unauthorized("invalid or expired token")
	}

	expiry := now + int64(s.ttl(a.Role).Seconds())
	err = s.accounts.UpdateSessionExpiry(ctx, a.ID, expiry)
	if err != nil {
		return nil, storageErr(err)
	}
	a.SessionExpiry = &expiry
	return a, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// storageErr keeps already-classified errors (e.g. the store still
// initializing) intact and wraps everything else as a storage failure.
func storageErr(err error) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return err
	}
	return apperr.Storage(err)
}
