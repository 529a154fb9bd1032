// Package models defines the domain types for Flipshelf.
package models

import "time"

// Format is the source document format of a book.
type Format string

// Supported book formats.
const (
	FormatPDF  Format = "pdf"
	FormatEPUB Format = "epub"
	FormatTXT  Format = "txt"
)

// DefaultAuthor is used when the parser could not find an author.
const DefaultAuthor = "Unknown Author"

// Page is one rendered page of a book. PageNumber is 1-based.
type Page struct {
	Text       string `json:"text,omitempty"`
	Image      string `json:"image,omitempty"`
	PageNumber int    `json:"pageNumber"`
	Chapter    string `json:"chapter,omitempty"`
}

// Book is a parsed document plus its reading and organizational state.
//
// Pages, Bookmarks and Metadata are treated as immutable values: mutations
// always install a fresh slice or map, so snapshots may share them.
type Book struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Author      string         `json:"author"`
	CoverImage  *string        `json:"coverImage"`
	Format      Format         `json:"format"`
	Pages       []Page         `json:"pages,omitempty"`
	PagesLength int            `json:"pagesLength,omitempty"`
	TotalPages  int            `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Bookmarks   []int          `json:"bookmarks"`
	FileHash    string         `json:"fileHash"`
	UploadDate  time.Time      `json:"uploadDate"`
	LastRead    *time.Time     `json:"lastRead"`
	Metadata    map[string]any `json:"metadata"`
}

// PageCount returns the number of pages a reader can navigate. The live page
// slice wins; the trimmed cache form only carries PagesLength.
func (b *Book) PageCount() int {
	if len(b.Pages) > 0 {
		return len(b.Pages)
	}
	return b.PagesLength
}

// ParsedBook is what the document parser hands to the store.
type ParsedBook struct {
	Title      string         `json:"title"`
	Author     string         `json:"author"`
	CoverImage *string        `json:"coverImage"`
	Format     Format         `json:"format"`
	Pages      []Page         `json:"pages"`
	TotalPages int            `json:"totalPages"`
	FileHash   string         `json:"fileHash"`
	Metadata   map[string]any `json:"metadata"`
}

// BookPatch carries the fields updateBook may merge. Nil fields are left as-is.
// ID, Format and FileHash are not patchable.
type BookPatch struct {
	Title       *string        `json:"title,omitempty"`
	Author      *string        `json:"author,omitempty"`
	CoverImage  *string        `json:"coverImage,omitempty"`
	Pages       []Page         `json:"pages,omitempty"`
	CurrentPage *int           `json:"currentPage,omitempty"`
	Bookmarks   []int          `json:"bookmarks,omitempty"`
	LastRead    *time.Time     `json:"lastRead,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// RecycleBinEntry is a soft-deleted book.
type RecycleBinEntry struct {
	Book
	DeletedAt time.Time `json:"deletedAt"`
}
