package model

import (
	"encoding/json"
	"strings"
)

const (
	RoleAdmin   = "admin"
	RolePartner = "partner"

	StatusPending   = "pending"
	StatusApproved  = "approved"
	StatusSuspended = "suspended"
	StatusFrozen    = "frozen"

	KYCNotSubmitted = "not_submitted"
)

// Account is the normalized row behind the users collection. All other
// collections store an opaque JSON payload; accounts use typed columns so
// that email lookups, session lookups and credential storage stay indexable.
type Account struct {
	ID                    string  `db:"id"`
	Email                 *string `db:"email"`
	Username              *string `db:"username"`
	Mobile                *string `db:"mobile"`
	PasswordHash          *string `db:"password_hash"`
	LegacyPassword        *string `db:"legacy_password"`
	Role                  string  `db:"role"`
	Status                string  `db:"status"`
	Name                  *string `db:"name"`
	KYCStatus             string  `db:"kyc_status"`
	KYCReason             *string `db:"kyc_reason"`
	KYCDocuments          *string `db:"kyc_documents"` // JSON text
	BankName              *string `db:"bank_name"`
	AccountNumber         *string `db:"account_number"`
	IFSCCode              *string `db:"ifsc_code"`
	AccountHolder         *string `db:"account_holder"`
	LeadSubmissionEnabled bool    `db:"lead_submission_enabled"`
	Category              *string `db:"category"`
	SessionToken          *string `db:"session_token"`
	SessionExpiry         *int64  `db:"session_expiry"`
	UpdatedAt             string  `db:"updated_at"`
}

func (a *Account) IsAdmin() bool {
	return strings.EqualFold(a.Role, RoleAdmin)
}

// Document renders the account in its public document shape. The credential
// columns never appear here.
func (a *Account) Document() Document {
	var kycDocs any
	if a.KYCDocuments != nil && *a.KYCDocuments != "" {
		if err := json.Unmarshal([]byte(*a.KYCDocuments), &kycDocs); err != nil {
			kycDocs = nil
		}
	}

	doc := Document{
		"id":                    a.ID,
		"email":                 ptrVal(a.Email),
		"username":              ptrVal(a.Username),
		"mobile":                ptrVal(a.Mobile),
		"role":                  a.Role,
		"status":                a.Status,
		"name":                  ptrVal(a.Name),
		"kycStatus":             a.KYCStatus,
		"kycReason":             ptrVal(a.KYCReason),
		"kycDocuments":          kycDocs,
		"bankName":              ptrVal(a.BankName),
		"accountNumber":         ptrVal(a.AccountNumber),
		"ifscCode":              ptrVal(a.IFSCCode),
		"accountHolder":         ptrVal(a.AccountHolder),
		"leadSubmissionEnabled": a.LeadSubmissionEnabled,
		"category":              ptrVal(a.Category),
		"session_token":         ptrVal(a.SessionToken),
	}
	if a.SessionExpiry != nil {
		doc["session_expiry"] = *a.SessionExpiry
	} else {
		doc["session_expiry"] = nil
	}
	return doc
}

// AccountFromDocument maps a document onto the normalized columns, applying
// the same defaults the storage schema declares. The "phone" key is accepted
// as a legacy alias for mobile. Credential fields are never read from the
// document; the service layer carries the digest separately.
func AccountFromDocument(id string, doc Document) *Account {
	a := &Account{
		ID:                    id,
		Email:                 docString(doc, "email"),
		Username:              docString(doc, "username"),
		Mobile:                docString(doc, "mobile"),
		Role:                  docStringOr(doc, "role", RolePartner),
		Status:                docStringOr(doc, "status", StatusPending),
		Name:                  docString(doc, "name"),
		KYCStatus:             docStringOr(doc, "kycStatus", KYCNotSubmitted),
		KYCReason:             docString(doc, "kycReason"),
		BankName:              docString(doc, "bankName"),
		AccountNumber:         docString(doc, "accountNumber"),
		IFSCCode:              docString(doc, "ifscCode"),
		AccountHolder:         docString(doc, "accountHolder"),
		LeadSubmissionEnabled: docBool(doc, "leadSubmissionEnabled"),
		Category:              docString(doc, "category"),
		SessionToken:          docString(doc, "session_token"),
		SessionExpiry:         docInt64(doc, "session_expiry"),
	}
	if a.Mobile == nil {
		a.Mobile = docString(doc, "phone")
	}
	if v, ok := doc["kycDocuments"]; ok && v != nil {
		if s, ok := v.(string); ok {
			a.KYCDocuments = &s
		} else if b, err := json.Marshal(v); err == nil {
			s := string(b)
			a.KYCDocuments = &s
		}
	}
	return a
}

func ptrVal(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func docString(doc Document, key string) *string {
	if v, ok := doc[key].(string); ok && v != "" {
		return &v
	}
	return nil
}

func docStringOr(doc Document, key, def string) string {
	if v, ok := doc[key].(string); ok && v != "" {
		return v
	}
	return def
}

func docBool(doc Document, key string) bool {
	v, ok := doc[key].(bool)
	return ok && v
}

func docInt64(doc Document, key string) *int64 {
	switch v := doc[key].(type) {
	case float64:
		n := int64(v)
		return &n
	case int64:
		return &v
	case int:
		n := int64(v)
		return &n
	default:
		return nil
	}
}
