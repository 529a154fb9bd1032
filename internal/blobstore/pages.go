package blobstore

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/flipshelf/internal/models"
)

// TextHit is one page matching a full-text query.
type TextHit struct {
	BookID  string `json:"bookId"`
	Title   string `json:"title"`
	Page    int    `json:"page"`
	Snippet string `json:"snippet"`
}

// IndexBook replaces the indexed page text of one book.
func (db *DB) IndexBook(ctx context.Context, b models.Book) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("blobstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO indexed_books (book_id, file_hash, title, author, pages, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(book_id) DO UPDATE SET
			file_hash  = excluded.file_hash,
			title      = excluded.title,
			author     = excluded.author,
			pages      = excluded.pages,
			indexed_at = excluded.indexed_at
	`, b.ID, b.FileHash, b.Title, b.Author, len(b.Pages), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("blobstore: upsert book: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM book_pages WHERE book_id = ?`, b.ID); err != nil {
		return fmt.Errorf("blobstore: clear pages: %w", err)
	}
	if err := ftsDelete(tx, b.ID); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO book_pages (book_id, page, body) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("blobstore: prepare page insert: %w", err)
	}
	defer stmt.Close()
	for _, p := range b.Pages {
		if p.Text == "" {
			continue
		}
		if _, err := stmt.Exec(b.ID, p.PageNumber, p.Text); err != nil {
			return fmt.Errorf("blobstore: insert page: %w", err)
		}
		if err := ftsInsert(tx, b.ID, p.PageNumber, b.Title, p.Text); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RemoveBook drops a book from the page index.
func (db *DB) RemoveBook(ctx context.Context, bookID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("blobstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := ftsDelete(tx, bookID); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM book_pages WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("blobstore: remove pages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM indexed_books WHERE book_id = ?`, bookID); err != nil {
		return fmt.Errorf("blobstore: remove book: %w", err)
	}
	return tx.Commit()
}

// IndexedBooks maps every indexed book id to its file hash and title.
func (db *DB) IndexedBooks(ctx context.Context) (map[string]IndexedBook, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT book_id, file_hash, title FROM indexed_books`)
	if err != nil {
		return nil, fmt.Errorf("blobstore: indexed books: %w", err)
	}
	defer rows.Close()
	out := make(map[string]IndexedBook)
	for rows.Next() {
		var ib IndexedBook
		if err := rows.Scan(&ib.BookID, &ib.FileHash, &ib.Title); err != nil {
			return nil, err
		}
		out[ib.BookID] = ib
	}
	return out, rows.Err()
}

// IndexedBook is the index's record of a book.
type IndexedBook struct {
	BookID   string
	FileHash string
	Title    string
}
