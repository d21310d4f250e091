package database

import (
	"errors"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DialectType identifies the database dialect.
type DialectType string

const (
	DialectSQLite   DialectType = "sqlite"
	DialectPostgres DialectType = "postgres"
)

// Dialect holds the SQL differences between SQLite and PostgreSQL. Queries
// in this package are written with ? placeholders and rebound per dialect.
type Dialect struct {
	Type DialectType

	// Driver is the database/sql driver name
	Driver string

	// PlayerIDColumn is the column type for case-insensitive player IDs
	PlayerIDColumn string

	// SerialKey is an auto-incrementing integer primary key definition
	SerialKey string

	// Init runs once per connection pool before migrations
	Init []string

	// numbered placeholders ($1, $2) instead of ?
	numbered bool
}

var dialects = map[DialectType]Dialect{
	DialectSQLite: {
		Type:           DialectSQLite,
		Driver:         "sqlite",
		PlayerIDColumn: "TEXT COLLATE NOCASE",
		SerialKey:      "INTEGER PRIMARY KEY AUTOINCREMENT",
		Init: []string{
			"PRAGMA foreign_keys = ON",
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
		},
	},
	DialectPostgres: {
		Type:           DialectPostgres,
		Driver:         "postgres",
		PlayerIDColumn: "CITEXT",
		SerialKey:      "BIGSERIAL PRIMARY KEY",
		Init:           []string{"CREATE EXTENSION IF NOT EXISTS citext"},
		numbered:       true,
	},
}

// NewDialect returns the dialect for t. Unknown types fall back to SQLite.
func NewDialect(t DialectType) Dialect {
	if d, ok := dialects[t]; ok {
		return d
	}
	return dialects[DialectSQLite]
}

// Rebind rewrites ? placeholders for the dialect. Question marks inside
// single-quoted literals are left alone.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	quoted := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
			b.WriteByte(c)
		case c == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// UsesReturning reports whether inserts must use RETURNING to get a new
// row ID, because the driver has no LastInsertId.
func (d Dialect) UsesReturning() bool {
	return d.numbered
}

// RebindInsert rebinds an INSERT and, where needed, appends RETURNING column.
func (d Dialect) RebindInsert(query, column string) string {
	q := d.Rebind(query)
	if d.UsesReturning() {
		q += " RETURNING " + column
	}
	return q
}

// IsDuplicateKey reports whether err is a unique constraint violation.
func (d Dialect) IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}

	// Wrapped errors that lost their type still carry the driver text
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
