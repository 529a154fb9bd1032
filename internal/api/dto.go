package api

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/flipshelf/internal/blobstore"
	"github.com/starford/flipshelf/internal/gesture"
	"github.com/starford/flipshelf/internal/models"
	"github.com/starford/flipshelf/internal/upload"
)

const maxNameLen = 200

// BookSummary is a book without its page content.
type BookSummary struct {
	ID          string         `json:"id" example:"0190f3c4-..." validate:"required"`
	Title       string         `json:"title" example:"Dune" validate:"required"`
	Author      string         `json:"author" example:"Frank Herbert" validate:"required"`
	CoverImage  *string        `json:"coverImage"`
	Format      models.Format  `json:"format" example:"epub" validate:"required"`
	PageCount   int            `json:"pageCount" example:"412"`
	TotalPages  int            `json:"totalPages" example:"412"`
	CurrentPage int            `json:"currentPage" example:"3"`
	Bookmarks   []int          `json:"bookmarks"`
	FileHash    string         `json:"fileHash"`
	UploadDate  time.Time      `json:"uploadDate"`
	LastRead    *time.Time     `json:"lastRead"`
	Metadata    map[string]any `json:"metadata"`
}

func summarize(b models.Book) BookSummary {
	return BookSummary{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		CoverImage:  b.CoverImage,
		Format:      b.Format,
		PageCount:   b.PageCount(),
		TotalPages:  b.TotalPages,
		CurrentPage: b.CurrentPage,
		Bookmarks:   b.Bookmarks,
		FileHash:    b.FileHash,
		UploadDate:  b.UploadDate,
		LastRead:    b.LastRead,
		Metadata:    b.Metadata,
	}
}

func summarizeAll(books []models.Book) []BookSummary {
	out := make([]BookSummary, len(books))
	for i, b := range books {
		out[i] = summarize(b)
	}
	return out
}

// BinEntry is a recycle-bin entry without page content.
type BinEntry struct {
	BookSummary
	DeletedAt time.Time `json:"deletedAt"`
}

// ShelfResponse is the shelf projection: groups first, then ungrouped books.
type ShelfResponse struct {
	Groups    []models.Group `json:"groups" validate:"required"`
	Ungrouped []BookSummary  `json:"ungrouped" validate:"required"`
	BinCount  int            `json:"binCount"`
}

// UpdateBookRequest is the request body for PATCH /books/{id}.
type UpdateBookRequest struct {
	Title      *string        `json:"title,omitempty" example:"Dune Messiah"`
	Author     *string        `json:"author,omitempty" example:"Frank Herbert"`
	CoverImage *string        `json:"coverImage,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Validate implements validation.Validatable.
func (r UpdateBookRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.NilOrNotEmpty, validation.Length(1, maxNameLen)),
		validation.Field(&r.Author, validation.NilOrNotEmpty, validation.Length(1, maxNameLen)),
	)
}

func (r UpdateBookRequest) patch() models.BookPatch {
	return models.BookPatch{
		Title:      r.Title,
		Author:     r.Author,
		CoverImage: r.CoverImage,
		Metadata:   r.Metadata,
	}
}

// ReorderRequest carries an ordered id list.
type ReorderRequest struct {
	IDs []string `json:"ids" validate:"required"`
}

// Validate implements validation.Validatable.
func (r ReorderRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.IDs, validation.Required, validation.Each(validation.Required)),
	)
}

// BookmarkRequest toggles a 1-based page bookmark.
type BookmarkRequest struct {
	Page int `json:"page" example:"12" validate:"required"`
}

// Validate implements validation.Validatable.
func (r BookmarkRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Page, validation.Required, validation.Min(1)),
	)
}

// CreateGroupRequest is the request body for POST /groups.
type CreateGroupRequest struct {
	Name    string   `json:"name" example:"Sci-Fi" validate:"required"`
	BookIDs []string `json:"bookIds"`
}

// Validate implements validation.Validatable.
func (r CreateGroupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, maxNameLen)),
		validation.Field(&r.BookIDs, validation.Each(validation.Required)),
	)
}

// UpdateGroupRequest is the request body for PATCH /groups/{id}. Color must
// come from the group palette.
type UpdateGroupRequest struct {
	Name  *string `json:"name,omitempty" example:"Classics"`
	Color *string `json:"color,omitempty" example:"#F38BA8"`
}

// Validate implements validation.Validatable.
func (r UpdateGroupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.NilOrNotEmpty, validation.Length(1, maxNameLen)),
		validation.Field(&r.Color, validation.NilOrNotEmpty, validation.In(paletteValues()...).Error("must be a palette color")),
	)
}

func paletteValues() []any {
	out := make([]any, len(models.GroupPalette))
	for i, c := range models.GroupPalette {
		out[i] = c
	}
	return out
}

// GroupMemberRequest names a book to add to a group.
type GroupMemberRequest struct {
	BookID string `json:"bookId" validate:"required"`
}

// Validate implements validation.Validatable.
func (r GroupMemberRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.BookID, validation.Required),
	)
}

// CreateQuoteRequest is the request body for POST /quotes.
type CreateQuoteRequest struct {
	BookID string `json:"bookId" validate:"required"`
	Text   string `json:"text" validate:"required"`
	Page   int    `json:"page" example:"12" validate:"required"`
	Note   string `json:"note"`
}

// Validate implements validation.Validatable.
func (r CreateQuoteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.BookID, validation.Required),
		validation.Field(&r.Text, validation.Required),
		validation.Field(&r.Page, validation.Required, validation.Min(1)),
	)
}

// ItemRefDTO is the wire form of a drag source or drop target.
type ItemRefDTO struct {
	Kind string `json:"kind" example:"book" validate:"required"`
	ID   string `json:"id,omitempty"`
}

// Validate implements validation.Validatable.
func (r ItemRefDTO) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.Required, validation.In("book", "group", "bin")),
		validation.Field(&r.ID, validation.When(r.Kind != "bin", validation.Required)),
	)
}

func (r ItemRefDTO) ref() gesture.ItemRef {
	k, _ := gesture.ParseKind(r.Kind)
	return gesture.ItemRef{Kind: k, ID: r.ID}
}

func refDTO(r gesture.ItemRef) ItemRefDTO {
	return ItemRefDTO{Kind: r.Kind.String(), ID: r.ID}
}

// DragStartRequest begins a drag. Group scopes the drag to an open group.
type DragStartRequest struct {
	Source   ItemRefDTO `json:"source"`
	Modifier bool       `json:"modifier"`
	Group    string     `json:"group,omitempty"`
}

// Validate implements validation.Validatable.
func (r DragStartRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Source),
	)
}

// DragOverRequest updates the hover target; a null target clears it.
type DragOverRequest struct {
	Target *ItemRefDTO `json:"target"`
}

// Validate implements validation.Validatable.
func (r DragOverRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Target),
	)
}

// ModifierRequest reports the modifier key going down or up.
type ModifierRequest struct {
	Down bool `json:"down"`
}

// DropRequest runs a whole gesture in one request.
type DropRequest struct {
	Source   ItemRefDTO  `json:"source"`
	Target   *ItemRefDTO `json:"target"`
	Modifier bool        `json:"modifier"`
	Group    string      `json:"group,omitempty"`
}

// Validate implements validation.Validatable.
func (r DropRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Source),
		validation.Field(&r.Target),
	)
}

// DragStateResponse is the current drag slot.
type DragStateResponse struct {
	Dragging bool        `json:"dragging"`
	Source   *ItemRefDTO `json:"source,omitempty"`
	Target   *ItemRefDTO `json:"target,omitempty"`
	Modifier bool        `json:"modifier"`
	Group    string      `json:"group,omitempty"`
}

func dragState(s gesture.State) DragStateResponse {
	out := DragStateResponse{Dragging: s.Dragging, Modifier: s.Modifier, Group: s.Scope}
	if s.Dragging {
		src := refDTO(s.Source)
		out.Source = &src
	}
	if s.Target != nil {
		t := refDTO(*s.Target)
		out.Target = &t
	}
	return out
}

// UploadResponse reports an upload batch.
type UploadResponse struct {
	upload.Summary
	Message string        `json:"message,omitempty" example:"2 uploaded, 1 already exist"`
	Books   []BookSummary `json:"books"`
}

// SearchResponse combines metadata matches and page-text hits.
type SearchResponse struct {
	Books []BookSummary       `json:"books" validate:"required"`
	Pages []blobstore.TextHit `json:"pages" validate:"required"`
}

// OpenSessionRequest opens a reading session on a book.
type OpenSessionRequest struct {
	BookID string `json:"bookId" validate:"required"`
}

// Validate implements validation.Validatable.
func (r OpenSessionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.BookID, validation.Required),
	)
}

// GoToRequest jumps to a 0-based page index.
type GoToRequest struct {
	Page int `json:"page" example:"0"`
}

// Validate implements validation.Validatable.
func (r GoToRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Page, validation.Min(0)),
	)
}

// TextRequest carries selected text.
type TextRequest struct {
	Text string `json:"text" validate:"required"`
}

// Validate implements validation.Validatable.
func (r TextRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Text, validation.Required),
	)
}

// NoteRequest carries an optional quote note.
type NoteRequest struct {
	Note string `json:"note"`
}

// FontRequest steps the session font size.
type FontRequest struct {
	Direction string `json:"direction" example:"up" validate:"required"`
}

// Validate implements validation.Validatable.
func (r FontRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Direction, validation.Required, validation.In("up", "down")),
	)
}

// SettingsPatchRequest wraps models.SettingsPatch with bounds checks.
type SettingsPatchRequest struct {
	models.SettingsPatch
}

// Validate implements validation.Validatable.
func (r SettingsPatchRequest) Validate() error {
	p := r.SettingsPatch
	return validation.ValidateStruct(&p,
		validation.Field(&p.FontSize, validation.NilOrNotEmpty, validation.Min(8), validation.Max(72)),
		validation.Field(&p.LineHeight, validation.NilOrNotEmpty, validation.Min(1.0), validation.Max(3.0)),
		validation.Field(&p.TTSRate, validation.NilOrNotEmpty, validation.Min(0.1), validation.Max(10.0)),
		validation.Field(&p.TTSPitch, validation.NilOrNotEmpty, validation.Min(0.1), validation.Max(2.0)),
		validation.Field(&p.AnimationSpeed, validation.NilOrNotEmpty, validation.In("slow", "medium", "fast")),
	)
}

// ReadingModeRequest switches the reading-mode preset.
type ReadingModeRequest struct {
	Mode string `json:"mode" example:"sepia" validate:"required"`
}

// Validate implements validation.Validatable.
func (r ReadingModeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Mode, validation.Required, validation.Length(1, 32)),
	)
}
