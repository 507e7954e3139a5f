package model

import (
	"maps"
	"strconv"
	"time"
)

// Document is one record body: a mapping of field name to arbitrary JSON
// value. Records in JSON-payload collections are stored exactly in this
// shape; the accounts collection maps documents to typed columns.
type Document map[string]any

// ID returns the caller-assigned record id. JSON numbers are accepted and
// rendered without a decimal point so numeric ids round-trip.
func (d Document) ID() (string, bool) {
	switch v := d["id"].(type) {
	case string:
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}

func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	c := make(Document, len(d))
	maps.Copy(c, d)
	return c
}

// Timestamp renders the current time in the fixed-width UTC form used for
// every updated_at write, so rows from any writer order lexicographically.
func Timestamp() string {
	return time.Now().UTC().Format("2006-01-02 15:04:05.000000000")
}
