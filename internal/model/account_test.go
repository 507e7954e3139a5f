package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccountFromDocumentDefaults(t *testing.T) {
	a := AccountFromDocument("u1", Document{"email": "a@example.com"})

	assert.Equal(t, "u1", a.ID)
	assert.Equal(t, "a@example.com", *a.Email)
	assert.Equal(t, RolePartner, a.Role)
	assert.Equal(t, StatusPending, a.Status)
	assert.Equal(t, KYCNotSubmitted, a.KYCStatus)
	assert.Nil(t, a.PasswordHash)
	assert.Nil(t, a.LegacyPassword)
}

func TestAccountFromDocumentPhoneAlias(t *testing.T) {
	a := AccountFromDocument("u1", Document{"phone": "555-0100"})
	assert.Equal(t, "555-0100", *a.Mobile)

	// An explicit mobile wins over the alias.
	a = AccountFromDocument("u1", Document{"mobile": "555-0200", "phone": "555-0100"})
	assert.Equal(t, "555-0200", *a.Mobile)
}

func TestAccountFromDocumentIgnoresCredentialKeys(t *testing.T) {
	a := AccountFromDocument("u1", Document{
		"email":         "a@example.com",
		"password":      "hunter2",
		"password_hash": "$2a$10$x",
	})
	assert.Nil(t, a.PasswordHash)
	assert.Nil(t, a.LegacyPassword)
}

func TestAccountDocumentExcludesCredentials(t *testing.T) {
	hash := "$2a$10$x"
	legacy := "hunter2"
	a := AccountFromDocument("u1", Document{"email": "a@example.com"})
	a.PasswordHash = &hash
	a.LegacyPassword = &legacy

	doc := a.Document()
	assert.NotContains(t, doc, "password")
	assert.NotContains(t, doc, "password_hash")
	assert.NotContains(t, doc, "legacy_password")
	assert.Equal(t, "a@example.com", doc["email"])
}

func TestAccountDocumentKYCDocumentsRoundTrip(t *testing.T) {
	a := AccountFromDocument("u1", Document{
		"kycDocuments": map[string]any{"pan": "/api/uploads/img/doc_1_ab.png"},
	})
	doc := a.Document()
	assert.Equal(t, map[string]any{"pan": "/api/uploads/img/doc_1_ab.png"}, doc["kycDocuments"])
}

func TestDocumentID(t *testing.T) {
	for _, tc := range []struct {
		name string
		doc  Document
		id   string
		ok   bool
	}{
		{"string", Document{"id": "abc"}, "abc", true},
		{"float", Document{"id": float64(42)}, "42", true},
		{"int", Document{"id": int64(7)}, "7", true},
		{"missing", Document{}, "", false},
		{"empty", Document{"id": ""}, "", false},
	} {
		id, ok := tc.doc.ID()
		assert.Equal(t, tc.ok, ok, tc.name)
		assert.Equal(t, tc.id, id, tc.name)
	}
}

func TestDocumentCloneIsShallowCopy(t *testing.T) {
	doc := Document{"a": 1, "nested": map[string]any{"x": 1}}
	clone := doc.Clone()
	clone["a"] = 2
	assert.Equal(t, 1, doc["a"])
}

func TestCredentialPrefersDigest(t *testing.T) {
	hash := "$2a$10$x"
	legacy := "hunter2"

	a := &Account{ID: "u1", PasswordHash: &hash, LegacyPassword: &legacy}
	assert.Equal(t, HashedCredential{Digest: hash}, a.Credential())

	a = &Account{ID: "u1", LegacyPassword: &legacy}
	assert.Equal(t, LegacyCredential{Plaintext: legacy}, a.Credential())

	a = &Account{ID: "u1"}
	assert.Nil(t, a.Credential())
}
