package library

import (
	"maps"
	"slices"

	"github.com/starford/flipshelf/internal/models"
)

// AddBook stores a freshly parsed book under a new id and returns it.
// Duplicate detection is the caller's job (see BookExists).
func (s *Store) AddBook(p models.ParsedBook) models.Book {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := models.Book{
		ID:         s.newID(),
		Title:      p.Title,
		Author:     p.Author,
		CoverImage: p.CoverImage,
		Format:     p.Format,
		Pages:      nonNil(p.Pages),
		TotalPages: p.TotalPages,
		Bookmarks:  []int{},
		FileHash:   p.FileHash,
		UploadDate: s.now().UTC(),
		Metadata:   p.Metadata,
	}
	if b.TotalPages == 0 {
		b.TotalPages = len(b.Pages)
	}
	normalizeBook(&b)

	s.books = append(s.books, b)
	s.commit(Change{Kind: BookAdded, ID: b.ID})
	return b
}

// BookExists reports whether fileHash belongs to an active or recycled book.
func (s *Store) BookExists(fileHash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.books {
		if b.FileHash == fileHash {
			return true
		}
	}
	for _, e := range s.bin {
		if e.FileHash == fileHash {
			return true
		}
	}
	return false
}

// UpdateBook shallow-merges patch into the book with the given id.
func (s *Store) UpdateBook(id string, patch models.BookPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.bookIndex(id)
	if i < 0 {
		return false
	}
	b := s.books[i]
	if patch.Title != nil {
		b.Title = *patch.Title
	}
	if patch.Author != nil {
		b.Author = *patch.Author
	}
	if patch.CoverImage != nil {
		cover := *patch.CoverImage
		b.CoverImage = &cover
	}
	if patch.Pages != nil {
		b.Pages = slices.Clone(patch.Pages)
	}
	if patch.CurrentPage != nil {
		b.CurrentPage = *patch.CurrentPage
	}
	if patch.Bookmarks != nil {
		marks := slices.Clone(patch.Bookmarks)
		slices.Sort(marks)
		b.Bookmarks = slices.Compact(marks)
	}
	if patch.LastRead != nil {
		t := *patch.LastRead
		b.LastRead = &t
	}
	if patch.Metadata != nil {
		b.Metadata = maps.Clone(patch.Metadata)
	}
	s.books[i] = b
	s.commit(Change{Kind: BookUpdated, ID: id})
	return true
}

// ReorderBooks moves the listed books to the front in the given order. Books
// not listed keep their relative order after them; unknown ids are ignored.
func (s *Store) ReorderBooks(orderedIDs []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books = partialReorder(s.books, orderedIDs, func(b models.Book) string { return b.ID })
	s.commit(Change{Kind: BooksReordered})
	return true
}

// ToggleBookmark removes pageNumber from the book's bookmarks if present,
// otherwise inserts it keeping the list sorted ascending.
func (s *Store) ToggleBookmark(bookID string, pageNumber int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.bookIndex(bookID)
	if i < 0 {
		return false
	}
	marks := s.books[i].Bookmarks
	if slices.Contains(marks, pageNumber) {
		marks = slices.DeleteFunc(slices.Clone(marks), func(p int) bool { return p == pageNumber })
	} else {
		marks = append(slices.Clone(marks), pageNumber)
		slices.Sort(marks)
	}
	s.books[i].Bookmarks = marks
	s.commit(Change{Kind: BookUpdated, ID: bookID})
	return true
}

// normalizeBook fills the defaults a persisted or parsed book may lack.
func normalizeBook(b *models.Book) {
	if b.Author == "" {
		b.Author = models.DefaultAuthor
	}
	if b.Bookmarks == nil {
		b.Bookmarks = []int{}
	}
	if b.Metadata == nil {
		b.Metadata = map[string]any{}
	}
}
