package blobstore

import (
	"context"
	"log/slog"

	"github.com/starford/flipshelf/internal/models"
)

// SyncBooks brings the page index up to date with books:
//   - new books, and books whose file hash or title changed, are reindexed
//   - indexed books no longer present are removed
//
// Books carrying no pages (the trimmed cache form) are left as indexed.
func (db *DB) SyncBooks(ctx context.Context, books []models.Book, logger *slog.Logger) error {
	indexed, err := db.IndexedBooks(ctx)
	if err != nil {
		return err
	}

	live := make(map[string]struct{}, len(books))
	for _, b := range books {
		live[b.ID] = struct{}{}
		if len(b.Pages) == 0 {
			continue
		}
		if ib, ok := indexed[b.ID]; ok && ib.FileHash == b.FileHash && ib.Title == b.Title {
			continue
		}
		if err := db.IndexBook(ctx, b); err != nil {
			logger.Warn("sync: index failed", slog.String("book", b.ID), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("book", b.ID), slog.Int("pages", len(b.Pages)))
		}
	}

	for id := range indexed {
		if _, ok := live[id]; ok {
			continue
		}
		if err := db.RemoveBook(ctx, id); err != nil {
			logger.Warn("sync: delete failed", slog.String("book", id), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: removed stale", slog.String("book", id))
		}
	}
	return ctx.Err()
}
