package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Item owners are referenced by id
// only: in remote identity mode accounts live in another service.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id            TEXT PRIMARY KEY,
    user_name     TEXT NOT NULL,
    email         TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'user')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_accounts_user_name ON accounts(user_name);

CREATE TABLE IF NOT EXISTS items (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL UNIQUE,
    weight      REAL NOT NULL CHECK (weight > 0),
    image       TEXT NOT NULL DEFAULT '',
    birthdate   TEXT NOT NULL,
    lng         REAL NOT NULL CHECK (lng BETWEEN -180 AND 180),
    lat         REAL NOT NULL CHECK (lat BETWEEN -90 AND 90),
    owner_id    TEXT NOT NULL,
    owner_name  TEXT NOT NULL,
    owner_email TEXT NOT NULL,
    created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_items_owner ON items(owner_id);
CREATE INDEX IF NOT EXISTS idx_items_location ON items(lng, lat);

CREATE TABLE IF NOT EXISTS images (
    key  TEXT PRIMARY KEY,
    data BLOB NOT NULL,
    mime TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
