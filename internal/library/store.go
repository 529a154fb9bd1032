// Package library is the single owner of the book, group, recycle-bin and
// quote collections. Every mutation goes through a Store method, and every
// applied mutation is announced to the registered observers together with a
// full snapshot of the new state.
//
// Mutations referencing an unknown id are silent no-ops; they report
// changed=false and do not notify observers.
package library

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/flipshelf/internal/models"
)

// Change kinds announced to observers.
const (
	BookAdded       = "book.added"
	BookUpdated     = "book.updated"
	BookDeleted     = "book.deleted"
	BookRestored    = "book.restored"
	BooksReordered  = "books.reordered"
	BinPurged       = "bin.purged"
	GroupCreated    = "group.created"
	GroupUpdated    = "group.updated"
	GroupDeleted    = "group.deleted"
	GroupsReordered = "groups.reordered"
	QuoteAdded      = "quote.added"
	QuoteDeleted    = "quote.deleted"
)

// Change describes one applied mutation. ID is the primary entity touched,
// empty for bulk operations.
type Change struct {
	Kind string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// Observer is notified synchronously after every applied mutation, while the
// store is still locked. Implementations must return quickly and must not call
// back into the store; slow work belongs on the observer's own goroutine.
type Observer interface {
	LibraryChanged(ch Change, snap models.Snapshot)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ch Change, snap models.Snapshot)

// LibraryChanged calls f.
func (f ObserverFunc) LibraryChanged(ch Change, snap models.Snapshot) { f(ch, snap) }

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides the id source for books, groups and quotes.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// Store holds the library state.
type Store struct {
	mu        sync.Mutex
	books     []models.Book
	groups    []models.Group
	bin       []models.RecycleBinEntry
	quotes    []models.Quote
	observers []Observer

	now   func() time.Time
	newID func() string
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		now:   time.Now,
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers an observer for subsequent mutations.
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Hydrate replaces the whole state with snap, typically at startup. Observers
// are not notified: the state came from persistence in the first place.
func (s *Store) Hydrate(snap models.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books = slices.Clone(snap.Books)
	s.groups = slices.Clone(snap.Groups)
	s.bin = slices.Clone(snap.RecycleBin)
	s.quotes = slices.Clone(snap.Quotes)
	for i := range s.books {
		normalizeBook(&s.books[i])
	}
	for i := range s.bin {
		normalizeBook(&s.bin[i].Book)
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() models.Snapshot {
	return models.Snapshot{
		Books:      nonNil(slices.Clone(s.books)),
		Groups:     nonNil(slices.Clone(s.groups)),
		RecycleBin: nonNil(slices.Clone(s.bin)),
		Quotes:     nonNil(slices.Clone(s.quotes)),
	}
}

// commit announces ch to every observer. Caller holds s.mu.
func (s *Store) commit(ch Change) {
	if len(s.observers) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, o := range s.observers {
		o.LibraryChanged(ch, snap)
	}
}

// Books returns the active books in display order.
func (s *Store) Books() []models.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nonNil(slices.Clone(s.books))
}

// Book looks up an active book by id.
func (s *Store) Book(id string) (models.Book, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.bookIndex(id); i >= 0 {
		return s.books[i], true
	}
	return models.Book{}, false
}

// Groups returns the groups in display order.
func (s *Store) Groups() []models.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nonNil(slices.Clone(s.groups))
}

// Group looks up a group by id.
func (s *Store) Group(id string) (models.Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.groupIndex(id); i >= 0 {
		return s.groups[i], true
	}
	return models.Group{}, false
}

// RecycleBin returns the soft-deleted books, oldest deletion first.
func (s *Store) RecycleBin() []models.RecycleBinEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nonNil(slices.Clone(s.bin))
}

// UngroupedBooks returns the books no group references, in display order.
func (s *Store) UngroupedBooks() []models.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Book{}
	for _, b := range s.books {
		if !s.groupedLocked(b.ID) {
			out = append(out, b)
		}
	}
	return out
}

// GroupBooks returns the live member books of a group in bookIds order.
// Member ids without a live book are skipped.
func (s *Store) GroupBooks(groupID string) ([]models.Book, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gi := s.groupIndex(groupID)
	if gi < 0 {
		return nil, false
	}
	out := []models.Book{}
	for _, id := range s.groups[gi].BookIDs {
		if bi := s.bookIndex(id); bi >= 0 {
			out = append(out, s.books[bi])
		}
	}
	return out, true
}

func (s *Store) groupedLocked(bookID string) bool {
	for i := range s.groups {
		if s.groups[i].Contains(bookID) {
			return true
		}
	}
	return false
}

func (s *Store) bookIndex(id string) int {
	return slices.IndexFunc(s.books, func(b models.Book) bool { return b.ID == id })
}

func (s *Store) binIndex(id string) int {
	return slices.IndexFunc(s.bin, func(e models.RecycleBinEntry) bool { return e.ID == id })
}

func (s *Store) groupIndex(id string) int {
	return slices.IndexFunc(s.groups, func(g models.Group) bool { return g.ID == id })
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
