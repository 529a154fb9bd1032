package library

import (
	"slices"

	"github.com/starford/flipshelf/internal/models"
)

// QuoteInput is the caller-supplied part of a quote.
type QuoteInput struct {
	BookID string `json:"bookId"`
	Text   string `json:"text"`
	Page   int    `json:"page"`
	Note   string `json:"note"`
}

// AddQuote stores a quote with a fresh id and timestamp.
func (s *Store) AddQuote(in QuoteInput) models.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := models.Quote{
		ID:        s.newID(),
		BookID:    in.BookID,
		Text:      in.Text,
		Page:      in.Page,
		CreatedAt: s.now().UTC(),
		Note:      in.Note,
	}
	s.quotes = append(s.quotes, q)
	s.commit(Change{Kind: QuoteAdded, ID: q.ID})
	return q
}

// DeleteQuote removes a quote by id.
func (s *Store) DeleteQuote(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.quotes, func(q models.Quote) bool { return q.ID == id })
	if i < 0 {
		return false
	}
	s.quotes = slices.Delete(slices.Clone(s.quotes), i, i+1)
	s.commit(Change{Kind: QuoteDeleted, ID: id})
	return true
}

// Quotes returns every quote in creation order.
func (s *Store) Quotes() []models.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nonNil(slices.Clone(s.quotes))
}

// QuotesForBook returns the quotes saved from one book.
func (s *Store) QuotesForBook(bookID string) []models.Quote {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Quote{}
	for _, q := range s.quotes {
		if q.BookID == bookID {
			out = append(out, q)
		}
	}
	return out
}
