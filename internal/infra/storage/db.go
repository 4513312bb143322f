// Package storage persists save slots and the simulation journal behind
// database/sql, with SQLite for local play and PostgreSQL for hosted games.
// The simulation core never touches this package; it only produces the
// snapshot this package stores.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver
	_ "modernc.org/sqlite"             // Pure Go SQLite driver
)

// Dialect selects the SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DB wraps the sql handle with its dialect so repositories can adapt
// placeholders and DDL.
type DB struct {
	Dialect Dialect
	*sql.DB
}

// Open initializes the database for the given dialect and creates schemas.
// For SQLite, dsn is a file path whose directory is created if needed.
func Open(dialect Dialect, dsn string) (*DB, error) {
	var driverName string
	switch dialect {
	case DialectSQLite:
		driverName = "sqlite"
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	case DialectPostgres:
		driverName = "pgx"
		if dsn == "" {
			return nil, fmt.Errorf("postgres dialect requires a DSN")
		}
	default:
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping %s database: %w", dialect, err)
	}

	db := &DB{Dialect: dialect, DB: sqlDB}
	if err := db.createSchemas(); err != nil {
		return nil, fmt.Errorf("create schemas: %w", err)
	}
	return db, nil
}

// rebind converts ?-style placeholders to $n for Postgres. Queries in this
// package are written SQLite-first.
func (db *DB) rebind(query string) string {
	if db.Dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (db *DB) createSchemas() error {
	timestampType := "DATETIME"
	if db.Dialect == DialectPostgres {
		timestampType = "TIMESTAMPTZ"
	}

	schemas := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS saves (
			slot TEXT PRIMARY KEY,
			save_id TEXT NOT NULL,
			created_at %s NOT NULL,
			snapshot TEXT NOT NULL
		);`, timestampType),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS journal (
			id TEXT PRIMARY KEY,
			timestamp %s NOT NULL,
			event_type TEXT NOT NULL,
			actor TEXT NOT NULL,
			target TEXT NOT NULL,
			payload TEXT NOT NULL,
			game_day INTEGER NOT NULL
		);`, timestampType),
		`CREATE INDEX IF NOT EXISTS idx_journal_type ON journal(event_type);`,
		`CREATE INDEX IF NOT EXISTS idx_journal_day ON journal(game_day);`,
	}

	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}
