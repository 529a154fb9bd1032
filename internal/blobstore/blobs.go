package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/flipshelf/internal/apperr"
	"github.com/starford/flipshelf/internal/checksum"
)

// Put stores data under name, replacing any previous value. Writing bytes
// identical to the stored ones is skipped.
func (db *DB) Put(ctx context.Context, name string, data []byte) error {
	cs := checksum.Sum(data)
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO blobs (name, data, checksum, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			data       = excluded.data,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
		WHERE blobs.checksum <> excluded.checksum
	`, name, data, cs, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("blobstore: put %s: %w", name, err)
	}
	return nil
}

// Get returns the blob stored under name, or an error matching
// apperr.ErrNotFound.
func (db *DB) Get(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := db.conn.QueryRowContext(ctx, `SELECT data FROM blobs WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("blobstore: get %s: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("blobstore: get %s: %w", name, err)
	}
	return data, nil
}

// Delete removes a blob; deleting a missing blob is not an error.
func (db *DB) Delete(ctx context.Context, name string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM blobs WHERE name = ?`, name); err != nil {
		return fmt.Errorf("blobstore: delete %s: %w", name, err)
	}
	return nil
}

// BlobInfo describes a stored blob without its payload.
type BlobInfo struct {
	Name      string    `json:"name"`
	Size      int       `json:"size"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// List returns metadata for every stored blob ordered by name.
func (db *DB) List(ctx context.Context) ([]BlobInfo, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT name, length(data), checksum, updated_at FROM blobs ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("blobstore: list: %w", err)
	}
	defer rows.Close()

	var out []BlobInfo
	for rows.Next() {
		var b BlobInfo
		if err := rows.Scan(&b.Name, &b.Size, &b.Checksum, &b.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
