package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PutImage stores image data under key, replacing any previous value.
func (s *SQLite) PutImage(ctx context.Context, key string, data []byte, mime string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO images (key, data, mime) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET data = excluded.data, mime = excluded.mime`,
		key, data, mime,
	)
	if err != nil {
		return fmt.Errorf("storing image: %w", err)
	}
	return nil
}

// GetImage returns image data and MIME type.
func (s *SQLite) GetImage(ctx context.Context, key string) ([]byte, string, error) {
	var data []byte
	var mime string
	err := s.db.QueryRowContext(ctx,
		`SELECT data, mime FROM images WHERE key = ?`, key,
	).Scan(&data, &mime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting image: %w", err)
	}
	return data, mime, nil
}

// DeleteImage removes image data. Missing keys are not an error.
func (s *SQLite) DeleteImage(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM images WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting image: %w", err)
	}
	return nil
}
