package db

import (
	"path/filepath"
	"testing"
)

func TestOpenWithSchemaIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 2; i++ {
		database, err := OpenWithSchema(path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		database.Close()
	}
}

func TestSchemaTables(t *testing.T) {
	database := NewTestDB(t)

	for _, table := range []string{"accounts", "items", "images", "settings"} {
		var name string
		err := database.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}
