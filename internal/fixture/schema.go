package fixture

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL
);
CREATE TABLE posts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	deleted INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	action TEXT NOT NULL
);
`

const seed = `
INSERT INTO users (name) VALUES ('ada'), ('grace');
INSERT INTO posts (id, title) VALUES (1, 'first post'), (5, 'fifth post');
`

// newDB opens an in-memory sqlite database seeded with the tables the
// demo service's handlers and the StateSource it exposes both read from.
func newDB() (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("apiconform/fixture: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // shared in-memory sqlite requires a single connection

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apiconform/fixture: create schema: %w", err)
	}
	if _, err := db.Exec(seed); err != nil {
		db.Close()
		return nil, fmt.Errorf("apiconform/fixture: seed: %w", err)
	}
	return db, nil
}
