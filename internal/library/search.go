package library

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/starford/flipshelf/internal/models"
)

// SearchBooks returns the active books whose title or author contains query,
// ignoring case, plus books that belong to a group whose name matches. An
// empty query matches every book; callers that want "no filter" semantics
// should special-case it.
func (s *Store) SearchBooks(query string) []models.Book {
	fold := cases.Fold()
	q := fold.String(query)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Book{}
	for _, b := range s.books {
		if strings.Contains(fold.String(b.Title), q) ||
			strings.Contains(fold.String(b.Author), q) ||
			s.groupNameMatches(b.ID, q, fold) {
			out = append(out, b)
		}
	}
	return out
}

func (s *Store) groupNameMatches(bookID, q string, fold cases.Caser) bool {
	for i := range s.groups {
		g := &s.groups[i]
		if g.Contains(bookID) && strings.Contains(fold.String(g.Name), q) {
			return true
		}
	}
	return false
}
