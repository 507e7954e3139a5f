// Package registry holds the fixed allowlist of collections and the storage
// strategy each one uses.
//
// The collection name is interpolated into table references, so the allowlist
// is a security boundary: names outside it are rejected up front, never
// sanitized and allowed through.
package registry

// Strategy selects how a collection's records are persisted.
type Strategy int

const (
	// JSONPayload stores each record as one opaque JSON blob.
	JSONPayload Strategy = iota
	// Normalized stores each record across typed columns.
	Normalized
)

type Collection struct {
	Name     string
	Strategy Strategy
}

// Accounts is the one collection on the normalized strategy.
const Accounts = "users"

// AutoFetch records cascade to their payout log on delete.
const (
	AutoFetchRecords   = "autofetch_records"
	AdminPayoutRecords = "admin_payout_records"
)

var collections = map[string]Strategy{
	Accounts:           Normalized,
	"leads":            JSONPayload,
	"transactions":     JSONPayload,
	"tickets":          JSONPayload,
	"banners":          JSONPayload,
	"notifications":    JSONPayload,
	AutoFetchRecords:   JSONPayload,
	AdminPayoutRecords: JSONPayload,
	"payout_reports":   JSONPayload,
	"profit_reports":   JSONPayload,
}

// Lookup resolves a collection name against the allowlist.
func Lookup(name string) (Collection, bool) {
	s, ok := collections[name]
	if !ok {
		return Collection{}, false
	}
	return Collection{Name: name, Strategy: s}, true
}

// CascadeTarget returns the collection whose record with the same id must be
// deleted alongside a delete from name, if any.
func CascadeTarget(name string) (string, bool) {
	if name == AutoFetchRecords {
		return AdminPayoutRecords, true
	}
	return "", false
}

// Names returns every allowed collection name.
func Names() []string {
	names := make([]string, 0, len(collections))
	for name := range collections {
		names = append(names, name)
	}
	return names
}
