//go:build !sqlite_fts5

package blobstore

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; full-text search uses a LIKE fallback on book_pages.body.
	return nil
}

func ftsInsert(_ *sql.Tx, _ string, _ int, _, _ string) error {
	// Body is already stored in book_pages; nothing extra to do.
	return nil
}

func ftsDelete(_ *sql.Tx, _ string) error { return nil }

// SearchText performs a LIKE-based search over page text (fallback when FTS5
// is not compiled in).
func (db *DB) SearchText(ctx context.Context, query string, limit int) ([]TextHit, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT p.book_id, b.title, p.page, substr(p.body, 1, 200)
		FROM book_pages p
		JOIN indexed_books b ON b.book_id = p.book_id
		WHERE p.body LIKE ?
		ORDER BY b.title, p.page
		LIMIT ?
	`, like, limit)
	if err != nil {
		return nil, fmt.Errorf("blobstore: search: %w", err)
	}
	defer rows.Close()

	var out []TextHit
	for rows.Next() {
		var h TextHit
		if err := rows.Scan(&h.BookID, &h.Title, &h.Page, &h.Snippet); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
