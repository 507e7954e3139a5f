package model

// Credential is the two-variant credential attached to an account: either a
// bcrypt digest, or a plaintext password left over from before hashing was
// introduced. Legacy credentials are migrated to hashed ones on the first
// successful login and are unreachable once a digest exists.
type Credential interface {
	credential()
}

type HashedCredential struct {
	Digest string
}

type LegacyCredential struct {
	Plaintext string
}

func (HashedCredential) credential() {}
func (LegacyCredential) credential() {}

// Credential returns the account's credential, preferring the digest. An
// account with neither (e.g. seeded rows) returns nil and can never log in.
func (a *Account) Credential() Credential {
	if a.PasswordHash != nil && *a.PasswordHash != "" {
		return HashedCredential{Digest: *a.PasswordHash}
	}
	if a.LegacyPassword != nil && *a.LegacyPassword != "" {
		return LegacyCredential{Plaintext: *a.LegacyPassword}
	}
	return nil
}
