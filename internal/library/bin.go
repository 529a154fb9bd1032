package library

import (
	"slices"
	"time"

	"github.com/starford/flipshelf/internal/models"
)

// DeleteBook soft-deletes a book: it leaves the shelf, is stripped from every
// group (groups left empty are deleted), and lands in the recycle bin.
func (s *Store) DeleteBook(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.bookIndex(id)
	if i < 0 {
		return false
	}
	book := s.books[i]
	s.books = slices.Delete(slices.Clone(s.books), i, i+1)
	s.groups = stripMember(s.groups, id)
	s.bin = append(s.bin, models.RecycleBinEntry{Book: book, DeletedAt: s.now().UTC()})
	s.commit(Change{Kind: BookDeleted, ID: id})
	return true
}

// RestoreBook moves a recycled book back to the end of the shelf.
func (s *Store) RestoreBook(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.binIndex(id)
	if i < 0 {
		return false
	}
	book := s.bin[i].Book
	s.bin = slices.Delete(slices.Clone(s.bin), i, i+1)
	s.books = append(s.books, book)
	s.commit(Change{Kind: BookRestored, ID: id})
	return true
}

// RestoreAll restores every recycled book in bin order and returns how many moved.
func (s *Store) RestoreAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.bin)
	if n == 0 {
		return 0
	}
	for _, e := range s.bin {
		s.books = append(s.books, e.Book)
	}
	s.bin = nil
	s.commit(Change{Kind: BookRestored})
	return n
}

// PermanentlyDelete discards one recycle-bin entry.
func (s *Store) PermanentlyDelete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.binIndex(id)
	if i < 0 {
		return false
	}
	s.bin = slices.Delete(slices.Clone(s.bin), i, i+1)
	s.commit(Change{Kind: BinPurged, ID: id})
	return true
}

// EmptyRecycleBin discards every recycle-bin entry and returns how many were dropped.
func (s *Store) EmptyRecycleBin() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.bin)
	if n == 0 {
		return 0
	}
	s.bin = nil
	s.commit(Change{Kind: BinPurged})
	return n
}

// PurgeDeletedBefore discards recycle-bin entries deleted before cutoff.
func (s *Store) PurgeDeletedBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := make([]models.RecycleBinEntry, 0, len(s.bin))
	for _, e := range s.bin {
		if !e.DeletedAt.Before(cutoff) {
			kept = append(kept, e)
		}
	}
	n := len(s.bin) - len(kept)
	if n == 0 {
		return 0
	}
	s.bin = kept
	s.commit(Change{Kind: BinPurged})
	return n
}

// stripMember returns groups with bookID removed from every member list,
// dropping groups that end up empty.
func stripMember(groups []models.Group, bookID string) []models.Group {
	out := make([]models.Group, 0, len(groups))
	for _, g := range groups {
		if g.Contains(bookID) {
			g.BookIDs = slices.DeleteFunc(slices.Clone(g.BookIDs), func(id string) bool { return id == bookID })
		}
		if len(g.BookIDs) > 0 {
			out = append(out, g)
		}
	}
	return out
}
