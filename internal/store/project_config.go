package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SetProjectConfig stores a key/value pair (schema version, config hash).
func (s *Store) SetProjectConfig(ctx context.Context, key, value string) error {
	_, err := s.conn(ctx).ExecContext(ctx, `
		INSERT INTO project_config (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set project config %s: %w", key, err)
	}
	return nil
}

// GetProjectConfig returns the value for a key, "" when unset.
func (s *Store) GetProjectConfig(ctx context.Context, key string) (string, error) {
	var v string
	err := s.conn(ctx).QueryRowContext(ctx,
		`SELECT value FROM project_config WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get project config %s: %w", key, err)
	}
	return v, nil
}
