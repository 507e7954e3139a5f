package service

import (
	"crypto/subtle"

	"golang.org/x/crypto/bcrypt"

	"github.com/partnerdesk/partnerdesk/internal/model"
)

// CredentialService hashes and verifies account passwords. Verification
// accepts both bcrypt digests and legacy plaintext rows; the latter exist
// only until the owner's next successful login upgrades them.
type CredentialService struct{}

func NewCredentialService() *CredentialService {
	return &CredentialService{}
}

func (s *CredentialService) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

func (s *CredentialService) Verify(cred model.Credential, password string) bool {
	switch c := cred.(type) {
	case model.HashedCredential:
		return bcrypt.CompareHashAndPassword([]byte(c.Digest), []byte(password)) == nil
	case model.LegacyCredential:
		return subtle.ConstantTimeCompare([]byte(c.Plaintext), []byte(password)) == 1
	default:
		return false
	}
}
