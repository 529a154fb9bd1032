//go:build sqlite_fts5

package blobstore

import (
	"context"
	"strings"
	"testing"
)

func TestFTS5_TableExists(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM pages_fts`).Scan(&count); err != nil {
		t.Fatalf("pages_fts table missing: %v", err)
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	b := book("b1", "h1", "Walden", "I went to the woods because I wished to live deliberately.")
	if err := db.IndexBook(ctx, b); err != nil {
		t.Fatalf("IndexBook: %v", err)
	}

	results, err := db.SearchText(ctx, "deliberately", 10)
	if err != nil {
		t.Fatalf("SearchText: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if !strings.Contains(results[0].Snippet, "<b>deliberately</b>") {
		t.Errorf("snippet = %q", results[0].Snippet)
	}

	if err := db.RemoveBook(ctx, "b1"); err != nil {
		t.Fatalf("RemoveBook: %v", err)
	}
	results, _ = db.SearchText(ctx, "deliberately", 10)
	if len(results) != 0 {
		t.Errorf("expected no results after removal, got %d", len(results))
	}
}
