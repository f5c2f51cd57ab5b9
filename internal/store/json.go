package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Helpers for the JSON-encoded columns. Empty values round-trip as NULL so
// rows stay readable in a plain sqlite shell.

func marshalJSON(v interface{}) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}
	}
	s := string(data)
	if s == "null" || s == "{}" || s == "[]" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func unmarshalStrings(s sql.NullString) []string {
	if !s.Valid {
		return nil
	}
	var out []string
	_ = json.Unmarshal([]byte(s.String), &out)
	return out
}

func unmarshalStringMap(s sql.NullString) map[string]string {
	if !s.Valid {
		return nil
	}
	var out map[string]string
	_ = json.Unmarshal([]byte(s.String), &out)
	return out
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func timeOf(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
