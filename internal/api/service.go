package api

import (
	"context"
	"fmt"

	"github.com/starford/flipshelf/internal/blobstore"
	"github.com/starford/flipshelf/internal/gesture"
	"github.com/starford/flipshelf/internal/library"
	"github.com/starford/flipshelf/internal/narration"
	"github.com/starford/flipshelf/internal/reading"
	"github.com/starford/flipshelf/internal/settings"
	"github.com/starford/flipshelf/internal/upload"
)

const defaultSearchLimit = 20

// TextSearcher finds page text across the library.
type TextSearcher interface {
	SearchText(ctx context.Context, query string, limit int) ([]blobstore.TextHit, error)
}

// Service bundles the components the HTTP layer drives.
type Service struct {
	Library  *library.Store
	Gestures *gesture.Resolver
	Uploads  *upload.Pipeline
	Sessions *reading.Manager
	Settings *settings.Store
	// Text and Voices are optional.
	Text   TextSearcher
	Voices *narration.Service
}

// Search matches book metadata in the store and, when a text index is
// configured, page content.
func (s *Service) Search(ctx context.Context, query string, limit int) (SearchResponse, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	books := s.Library.SearchBooks(query)
	if len(books) > limit {
		books = books[:limit]
	}
	resp := SearchResponse{Books: summarizeAll(books), Pages: []blobstore.TextHit{}}
	if s.Text == nil {
		return resp, nil
	}
	hits, err := s.Text.SearchText(ctx, query, limit)
	if err != nil {
		return resp, fmt.Errorf("api: search text: %w", err)
	}
	if hits != nil {
		resp.Pages = hits
	}
	return resp, nil
}

// Upload runs a batch through the pipeline and summarizes the added books.
func (s *Service) Upload(ctx context.Context, files []upload.File) (UploadResponse, error) {
	sum, err := s.Uploads.Process(ctx, files)
	if err != nil {
		return UploadResponse{}, err
	}
	return UploadResponse{
		Summary: sum,
		Message: sum.Message(),
		Books:   summarizeAll(sum.Added),
	}, nil
}

// Shelf returns the groups followed by the books no group contains.
func (s *Service) Shelf() ShelfResponse {
	return ShelfResponse{
		Groups:    s.Library.Groups(),
		Ungrouped: summarizeAll(s.Library.UngroupedBooks()),
		BinCount:  len(s.Library.RecycleBin()),
	}
}
