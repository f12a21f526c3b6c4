// Package sqlstate implements state.Source against a SQL-backed
// persistent store, generalized from the teacher's
// internal/testdata/generator.TableAnalyzer and DBGenerator: where the
// teacher inspects information_schema to build synthetic request bodies,
// this package inspects it to report entity kinds, counts, checksummed
// content and random live keys for the StateSampler and synthesizer.
package sqlstate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/denisenkom/go-mssqldb" // sqlserver driver
	_ "github.com/go-sql-driver/mysql"   // mysql driver
	_ "github.com/lib/pq"                // postgres driver

	"apiconform/internal/model"
)

// Driver identifies which SQL dialect Source is talking to, since
// identifier quoting and the "random row" idiom differ across them.
type Driver string

const (
	DriverPostgres  Driver = "postgres"
	DriverMySQL     Driver = "mysql"
	DriverSQLServer Driver = "sqlserver"
	DriverSQLite    Driver = "sqlite"
)

// Source implements state.Source over a database/sql connection.
type Source struct {
	db     *sql.DB
	driver Driver
	schema string // information_schema schema filter, e.g. "public"
}

// Open connects using the stdlib database/sql driver named by driver
// ("postgres", "mysql", "sqlserver") and dsn.
func Open(driver Driver, dsn string) (*Source, error) {
	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("apiconform/sqlstate: open %s: %w", driver, err)
	}
	schema := "public"
	if driver == DriverMySQL {
		schema = "" // mysql scopes information_schema by database name, resolved per-connection
	}
	return &Source{db: db, driver: driver, schema: schema}, nil
}

// NewFromDB wraps an already-open *sql.DB, letting callers share a pool
// or inject a mock driver in tests.
func NewFromDB(db *sql.DB, driver Driver) *Source {
	return &Source{db: db, driver: driver, schema: "public"}
}

// Close releases the underlying connection pool.
func (s *Source) Close() error { return s.db.Close() }

// EntityKinds lists base tables, treating each table as one entity kind
// (spec.md §4.3), adapted from TableAnalyzer.getTableNames.
func (s *Source) EntityKinds(ctx context.Context) ([]model.EntityKindDescriptor, error) {
	query, args := s.tableListQuery()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("apiconform/sqlstate: list tables: %w", err)
	}
	defer rows.Close()

	var out []model.EntityKindDescriptor
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		pk, err := s.primaryKeyColumn(ctx, name)
		if err != nil {
			return nil, err
		}
		out = append(out, model.EntityKindDescriptor{Name: name, KeyFieldName: pk, StoreTypeName: "table"})
	}
	return out, rows.Err()
}

func (s *Source) tableListQuery() (string, []interface{}) {
	switch s.driver {
	case DriverSQLServer:
		return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE'`, nil
	case DriverMySQL:
		return `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'`, nil
	case DriverSQLite:
		return `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`, nil
	default: // postgres
		return `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE'`, []interface{}{s.schema}
	}
}

func (s *Source) primaryKeyColumn(ctx context.Context, table string) (string, error) {
	if s.driver == DriverSQLite {
		return "rowid", nil
	}
	query := `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_name = ` + s.placeholder(1)
	var col string
	err := s.db.QueryRowContext(ctx, query, table).Scan(&col)
	if err == sql.ErrNoRows {
		return "id", nil
	}
	if err != nil {
		return "", err
	}
	return col, nil
}

func (s *Source) placeholder(n int) string {
	if s.driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Count returns the row count of kind (table).
func (s *Source) Count(ctx context.Context, kind string) (int, error) {
	if !validIdentifier(kind) {
		return 0, fmt.Errorf("apiconform/sqlstate: invalid table name %q", kind)
	}
	var count int
	query := "SELECT COUNT(*) FROM " + quoteIdent(kind)
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("apiconform/sqlstate: count %s: %w", kind, err)
	}
	return count, nil
}

// ListAll returns every row of kind as a map[string]interface{}, used for
// checksum computation. Callers should reserve this for small tables or
// test fixtures; it is not paginated.
func (s *Source) ListAll(ctx context.Context, kind string) ([]interface{}, error) {
	if !validIdentifier(kind) {
		return nil, fmt.Errorf("apiconform/sqlstate: invalid table name %q", kind)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(kind))
	if err != nil {
		return nil, fmt.Errorf("apiconform/sqlstate: list %s: %w", kind, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []interface{}
	for rows.Next() {
		values := make([]interface{}, len(cols))
		scanTargets := make([]interface{}, len(cols))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, err
		}
		record := map[string]interface{}{}
		for i, col := range cols {
			record[col] = normalizeSQLValue(values[i])
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// RandomKey returns the primary key value of a random row of kind, using
// each dialect's idiomatic "random order" clause.
func (s *Source) RandomKey(ctx context.Context, kind string) (interface{}, bool, error) {
	if !validIdentifier(kind) {
		return nil, false, fmt.Errorf("apiconform/sqlstate: invalid table name %q", kind)
	}
	pk, err := s.primaryKeyColumn(ctx, kind)
	if err != nil {
		return nil, false, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT 1", quoteIdent(pk), quoteIdent(kind), s.randomOrderExpr())

	var key interface{}
	err = s.db.QueryRowContext(ctx, query).Scan(&key)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("apiconform/sqlstate: random key %s: %w", kind, err)
	}
	return normalizeSQLValue(key), true, nil
}

func (s *Source) randomOrderExpr() string {
	switch s.driver {
	case DriverMySQL:
		return "RAND()"
	case DriverSQLServer:
		return "NEWID()"
	default: // postgres, sqlite
		return "RANDOM()"
	}
}

func normalizeSQLValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func validIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
