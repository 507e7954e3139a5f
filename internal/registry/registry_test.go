package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookup(t *testing.T) {
	col, ok := Lookup("users")
	assert.True(t, ok)
	assert.Equal(t, Normalized, col.Strategy)

	col, ok = Lookup("leads")
	assert.True(t, ok)
	assert.Equal(t, JSONPayload, col.Strategy)

	// Anything outside the allowlist is rejected, including near-misses and
	// injection attempts.
	for _, name := range []string{"", "Users", "leads ", "leads; DROP TABLE leads", "sqlite_master"} {
		_, ok := Lookup(name)
		assert.False(t, ok, name)
	}
}

func TestCascadeTarget(t *testing.T) {
	target, ok := CascadeTarget(AutoFetchRecords)
	assert.True(t, ok)
	assert.Equal(t, AdminPayoutRecords, target)

	// The cascade is one-directional.
	_, ok = CascadeTarget(AdminPayoutRecords)
	assert.False(t, ok)
	_, ok = CascadeTarget("leads")
	assert.False(t, ok)
}

func TestNamesCoversEveryCollection(t *testing.T) {
	names := Names()
	assert.Len(t, names, 10)
	assert.Contains(t, names, "users")
	assert.Contains(t, names, "profit_reports")
}
