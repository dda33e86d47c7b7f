package store

import (
	"context"
	"database/sql"
	"strings"

	"github.com/erazemk/zemljevid/internal/db"
)

// SQLite is the embedded storage backend.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// NewSQLite wraps an open database whose schema has been ensured.
func NewSQLite(database *sql.DB) *SQLite {
	return &SQLite{db: database}
}

// OpenSQLite opens the database file at path and ensures its schema.
func OpenSQLite(path string) (*SQLite, error) {
	database, err := db.OpenWithSchema(path)
	if err != nil {
		return nil, err
	}
	return NewSQLite(database), nil
}

// Ping checks the database connection.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type rowScanner interface {
	Scan(dest ...any) error
}
