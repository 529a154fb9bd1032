//go:build sqlite_fts5

package blobstore

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS pages_fts USING fts5(
			book_id UNINDEXED,
			page UNINDEXED,
			title,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsInsert(tx *sql.Tx, bookID string, page int, title, body string) error {
	_, err := tx.Exec(`INSERT INTO pages_fts (book_id, page, title, body) VALUES (?, ?, ?, ?)`,
		bookID, page, title, body)
	if err != nil {
		return fmt.Errorf("blobstore: insert fts: %w", err)
	}
	return nil
}

func ftsDelete(tx *sql.Tx, bookID string) error {
	if _, err := tx.Exec(`DELETE FROM pages_fts WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("blobstore: clear fts: %w", err)
	}
	return nil
}

// SearchText performs an FTS5 full-text search over page text and returns
// matching pages with snippets.
func (db *DB) SearchText(ctx context.Context, query string, limit int) ([]TextHit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT book_id,
		       title,
		       page,
		       snippet(pages_fts, 3, '<b>', '</b>', '...', 32)
		FROM pages_fts
		WHERE pages_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
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

