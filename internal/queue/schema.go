package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion identifies the layout in schema.sql. There are no
// migrations: a database from another version must be cleared.
const schemaVersion = 1

// ErrSchemaMismatch reports a queue database written by another schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// initSchema creates the tables of an empty database or verifies the version
// of an existing one. Workers on several nodes may open a fresh database at
// once, so creation runs in an immediate transaction and re-checks inside it.
func (s *Store) initSchema(ctx context.Context) error {
	version, err := s.readSchemaVersion(ctx, s.db)
	if err != nil {
		return err
	}
	if version == 0 {
		return s.withTx(ctx, func(tx *sql.Tx) error {
			version, err := s.readSchemaVersion(ctx, tx)
			if err != nil || version != 0 {
				return err
			}
			if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, schemaVersion); err != nil {
				return fmt.Errorf("record schema version: %w", err)
			}
			return nil
		})
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: %s has version %d, expected %d",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// readSchemaVersion returns 0 for a database without the version table.
func (s *Store) readSchemaVersion(ctx context.Context, q queryRower) (int, error) {
	var tables int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'`,
	).Scan(&tables); err != nil {
		return 0, fmt.Errorf("check schema_version table: %w", err)
	}
	if tables == 0 {
		return 0, nil
	}
	var version sql.NullInt64
	if err := q.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return int(version.Int64), nil
}
