package sqlstate

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"apiconform/internal/model"
)

// pgxQuerier is the slice of *pgxpool.Pool (and pgxmock.PgxPoolIface in
// tests) that PGXSource needs.
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// PGXSource is a postgres-specific state.Source built on jackc/pgx/v5's
// native interface instead of database/sql, used when the service under
// test's store is specifically postgres and the caller wants pgx's richer
// type mapping (and, in tests, pgxmock's expectation-based mocking)
// rather than the generic multi-dialect Source.
type PGXSource struct {
	pool   pgxQuerier
	schema string
}

// NewPGXSource wraps any pgxQuerier (a *pgxpool.Pool in production, a
// pgxmock.PgxPoolIface in tests).
func NewPGXSource(pool pgxQuerier) *PGXSource {
	return &PGXSource{pool: pool, schema: "public"}
}

func (s *PGXSource) EntityKinds(ctx context.Context) ([]model.EntityKindDescriptor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE'`,
		s.schema)
	if err != nil {
		return nil, fmt.Errorf("apiconform/sqlstate: pgx list tables: %w", err)
	}
	defer rows.Close()

	var out []model.EntityKindDescriptor
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, model.EntityKindDescriptor{Name: name, KeyFieldName: "id", StoreTypeName: "table"})
	}
	return out, rows.Err()
}

func (s *PGXSource) Count(ctx context.Context, kind string) (int, error) {
	if !validIdentifier(kind) {
		return 0, fmt.Errorf("apiconform/sqlstate: invalid table name %q", kind)
	}
	var count int
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+quoteIdent(kind)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("apiconform/sqlstate: pgx count %s: %w", kind, err)
	}
	return count, nil
}

func (s *PGXSource) ListAll(ctx context.Context, kind string) ([]interface{}, error) {
	if !validIdentifier(kind) {
		return nil, fmt.Errorf("apiconform/sqlstate: invalid table name %q", kind)
	}
	rows, err := s.pool.Query(ctx, "SELECT * FROM "+quoteIdent(kind))
	if err != nil {
		return nil, fmt.Errorf("apiconform/sqlstate: pgx list %s: %w", kind, err)
	}
	defer rows.Close()

	var out []interface{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		fields := rows.FieldDescriptions()
		record := map[string]interface{}{}
		for i, f := range fields {
			record[string(f.Name)] = normalizeSQLValue(values[i])
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

func (s *PGXSource) RandomKey(ctx context.Context, kind string) (interface{}, bool, error) {
	if !validIdentifier(kind) {
		return nil, false, fmt.Errorf("apiconform/sqlstate: invalid table name %q", kind)
	}
	var key interface{}
	query := "SELECT id FROM " + quoteIdent(kind) + " ORDER BY RANDOM() LIMIT 1"
	err := s.pool.QueryRow(ctx, query).Scan(&key)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("apiconform/sqlstate: pgx random key %s: %w", kind, err)
	}
	return normalizeSQLValue(key), true, nil
}
