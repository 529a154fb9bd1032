// Package reading tracks the view state of open books and turns reader
// actions into library and narration calls.
package reading

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/starford/flipshelf/internal/apperr"
	"github.com/starford/flipshelf/internal/library"
	"github.com/starford/flipshelf/internal/models"
	"github.com/starford/flipshelf/internal/narration"
)

// Font size bounds and step.
const (
	MinFontSize  = 12
	MaxFontSize  = 28
	fontSizeStep = 2
)

// Library is the store surface a session uses.
type Library interface {
	Book(id string) (models.Book, bool)
	ToggleBookmark(bookID string, pageNumber int) bool
	AddQuote(in library.QuoteInput) models.Quote
	QuotesForBook(bookID string) []models.Quote
	UpdateBook(id string, patch models.BookPatch) bool
}

// Narrator speaks page text.
type Narrator interface {
	Speak(text string, opts narration.Options) (*narration.Handle, error)
	SpeakFromOffset(fullText, offsetText string, opts narration.Options) (*narration.Handle, error)
}

// View is the externally visible state of a session.
type View struct {
	ID         string  `json:"id"`
	BookID     string  `json:"bookId"`
	Page       int     `json:"page"`
	PageNumber int     `json:"pageNumber"`
	PageCount  int     `json:"pageCount"`
	Bookmarked bool    `json:"bookmarked"`
	Bookmarks  []int   `json:"bookmarks"`
	NightMode  bool    `json:"nightMode"`
	FontSize   int     `json:"fontSize"`
	Selection  string  `json:"selection,omitempty"`
	Speaking   bool    `json:"speaking"`
	Text       string  `json:"text,omitempty"`
	Image      string  `json:"image,omitempty"`
	Voice      *string `json:"voice,omitempty"`
}

// Session is one open book. Page is 0-based; bookmarks and quotes use the
// 1-based page number.
type Session struct {
	id     string
	bookID string
	lib    Library
	narr   Narrator
	prefs  func() models.Settings
	now    func() time.Time

	mu        sync.Mutex
	page      int
	nightMode bool
	fontSize  int
	selection string
	speaking  *narration.Handle
	closed    bool
}

// ErrClosed is returned by actions on a closed session.
var ErrClosed = errors.New("reading session closed")

func newSession(id string, b models.Book, lib Library, narr Narrator, prefs func() models.Settings, now func() time.Time) *Session {
	s := &Session{
		id:       id,
		bookID:   b.ID,
		lib:      lib,
		narr:     narr,
		prefs:    prefs,
		now:      now,
		fontSize: clamp(prefs().FontSize, MinFontSize, MaxFontSize),
	}
	s.page = clamp(b.CurrentPage, 0, max(b.PageCount()-1, 0))
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// BookID returns the id of the open book.
func (s *Session) BookID() string { return s.bookID }

// View reports the current state with the current page's content.
func (s *Session) View() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := s.bookLocked()
	if err != nil {
		return View{}, err
	}
	v := View{
		ID:         s.id,
		BookID:     s.bookID,
		Page:       s.page,
		PageNumber: s.page + 1,
		PageCount:  b.PageCount(),
		Bookmarked: slices.Contains(b.Bookmarks, s.page+1),
		Bookmarks:  b.Bookmarks,
		NightMode:  s.nightMode,
		FontSize:   s.fontSize,
		Selection:  s.selection,
		Speaking:   s.speakingLocked(),
		Voice:      s.prefs().TTSVoice,
	}
	if s.page < len(b.Pages) {
		v.Text = b.Pages[s.page].Text
		v.Image = b.Pages[s.page].Image
	}
	return v, nil
}

// Next moves one page forward; it does nothing on the last page.
func (s *Session) Next() (View, error) { return s.move(func(p int) int { return p + 1 }) }

// Prev moves one page back; it does nothing on the first page.
func (s *Session) Prev() (View, error) { return s.move(func(p int) int { return p - 1 }) }

// GoTo jumps to a 0-based page, clamped to the book.
func (s *Session) GoTo(page int) (View, error) { return s.move(func(int) int { return page }) }

// GoToBookmark jumps to a 1-based bookmarked page number.
func (s *Session) GoToBookmark(pageNumber int) (View, error) { return s.GoTo(pageNumber - 1) }

func (s *Session) move(fn func(int) int) (View, error) {
	s.mu.Lock()
	b, err := s.bookLocked()
	if err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	next := clamp(fn(s.page), 0, max(b.PageCount()-1, 0))
	if next != s.page {
		s.page = next
		s.selection = ""
		s.stopLocked()
	}
	s.mu.Unlock()
	return s.View()
}

// ToggleBookmark toggles the bookmark on the current page.
func (s *Session) ToggleBookmark() (View, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return View{}, ErrClosed
	}
	pageNumber := s.page + 1
	s.mu.Unlock()
	return s.TogglePageBookmark(pageNumber)
}

// TogglePageBookmark toggles the bookmark on a 1-based page number.
func (s *Session) TogglePageBookmark(pageNumber int) (View, error) {
	if s.isClosed() {
		return View{}, ErrClosed
	}
	if !s.lib.ToggleBookmark(s.bookID, pageNumber) {
		return View{}, apperr.ErrNotFound
	}
	return s.View()
}

// Select records the reader's text selection. While narration is running, a
// new selection restarts narration from the selected text.
func (s *Session) Select(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.selection = text
	if text != "" && s.speakingLocked() {
		return s.readFromLocked(text)
	}
	return nil
}

// AddQuote saves the current selection as a quote on the current page and
// clears the selection.
func (s *Session) AddQuote(note string) (models.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return models.Quote{}, ErrClosed
	}
	if s.selection == "" {
		return models.Quote{}, apperr.ErrNoText
	}
	q := s.lib.AddQuote(library.QuoteInput{BookID: s.bookID, Text: s.selection, Page: s.page + 1, Note: note})
	s.selection = ""
	return q, nil
}

// Quotes returns the quotes saved from this book.
func (s *Session) Quotes() []models.Quote { return s.lib.QuotesForBook(s.bookID) }

// IncreaseFont steps the font size up, capped at MaxFontSize.
func (s *Session) IncreaseFont() int { return s.adjustFont(fontSizeStep) }

// DecreaseFont steps the font size down, floored at MinFontSize.
func (s *Session) DecreaseFont() int { return s.adjustFont(-fontSizeStep) }

func (s *Session) adjustFont(delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fontSize = clamp(s.fontSize+delta, MinFontSize, MaxFontSize)
	return s.fontSize
}

// ToggleNightMode flips night mode and returns the new value.
func (s *Session) ToggleNightMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nightMode = !s.nightMode
	return s.nightMode
}

// ReadAloud toggles narration of the current page: a running narration is
// stopped, otherwise the page text is spoken. A page with an image and no
// text yields apperr.ErrNoText.
func (s *Session) ReadAloud() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	if s.speakingLocked() {
		s.stopLocked()
		return false, nil
	}
	text, err := s.pageTextLocked()
	if err != nil {
		return false, err
	}
	h, err := s.narr.Speak(text, s.narrationOptions())
	if err != nil {
		return false, err
	}
	s.speaking = h
	return true, nil
}

// ReadFromSelection restarts narration at the given text on the current page.
func (s *Session) ReadFromSelection(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.readFromLocked(text)
}

func (s *Session) readFromLocked(text string) error {
	s.stopLocked()
	page, err := s.pageTextLocked()
	if err != nil {
		return err
	}
	h, err := s.narr.SpeakFromOffset(page, text, s.narrationOptions())
	if err != nil {
		return err
	}
	s.speaking = h
	return nil
}

// StopReading stops narration; it is safe to call when nothing is playing.
func (s *Session) StopReading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Close stops narration and records the reading position on the book.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopLocked()
	page := s.page
	now := s.now().UTC()
	s.lib.UpdateBook(s.bookID, models.BookPatch{CurrentPage: &page, LastRead: &now})
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) bookLocked() (models.Book, error) {
	if s.closed {
		return models.Book{}, ErrClosed
	}
	b, ok := s.lib.Book(s.bookID)
	if !ok {
		return models.Book{}, apperr.ErrNotFound
	}
	return b, nil
}

func (s *Session) pageTextLocked() (string, error) {
	b, err := s.bookLocked()
	if err != nil {
		return "", err
	}
	if s.page >= len(b.Pages) || b.Pages[s.page].Text == "" {
		return "", apperr.ErrNoText
	}
	return b.Pages[s.page].Text, nil
}

func (s *Session) narrationOptions() narration.Options {
	p := s.prefs()
	o := narration.Options{Rate: p.TTSRate, Pitch: p.TTSPitch}
	if p.TTSVoice != nil {
		o.Voice = *p.TTSVoice
	}
	return o
}

func (s *Session) speakingLocked() bool {
	if s.speaking == nil {
		return false
	}
	select {
	case <-s.speaking.Done():
		s.speaking = nil
		return false
	default:
		return true
	}
}

func (s *Session) stopLocked() {
	if s.speaking != nil {
		s.speaking.Stop()
		s.speaking = nil
	}
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
