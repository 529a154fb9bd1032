package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/flipshelf/internal/library"
	"github.com/starford/flipshelf/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// notFoundUnless writes 404 when ok is false.
func notFoundUnless(w http.ResponseWriter, ok bool) bool {
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	}
	return ok
}

// Shelf handles GET /api/shelf.
//
//	@Summary		Shelf projection: groups, then ungrouped books
//	@Tags			library
//	@Produce		json
//	@Success		200	{object}	ShelfResponse
//	@Security		BearerAuth
//	@Router			/shelf [get]
func (h *Handler) Shelf(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Shelf())
}

// ListBooks handles GET /api/books.
//
//	@Summary		List books in shelf order
//	@Tags			books
//	@Produce		json
//	@Success		200	{array}		BookSummary
//	@Security		BearerAuth
//	@Router			/books [get]
func (h *Handler) ListBooks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, summarizeAll(h.svc.Library.Books()))
}

// GetBook handles GET /api/books/{id}. The response includes page content.
//
//	@Summary		Get a book with its pages
//	@Tags			books
//	@Produce		json
//	@Param			id	path		string	true	"Book id"
//	@Success		200	{object}	models.Book
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/books/{id} [get]
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	b, ok := h.svc.Library.Book(chi.URLParam(r, "id"))
	if !notFoundUnless(w, ok) {
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// UpdateBook handles PATCH /api/books/{id}.
//
//	@Summary		Update book metadata
//	@Tags			books
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Book id"
//	@Param			body	body		UpdateBookRequest	true	"Fields to change"
//	@Success		200		{object}	BookSummary
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/books/{id} [patch]
func (h *Handler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateBookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, ok := h.svc.Library.Book(id); !notFoundUnless(w, ok) {
		return
	}
	h.svc.Library.UpdateBook(id, req.patch())
	b, _ := h.svc.Library.Book(id)
	writeJSON(w, http.StatusOK, summarize(b))
}

// DeleteBook handles DELETE /api/books/{id}: the book moves to the recycle bin.
func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	if !notFoundUnless(w, h.svc.Library.DeleteBook(chi.URLParam(r, "id"))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReorderBooks handles POST /api/books/reorder.
func (h *Handler) ReorderBooks(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.svc.Library.ReorderBooks(req.IDs)
	writeJSON(w, http.StatusOK, summarizeAll(h.svc.Library.Books()))
}

// ToggleBookmark handles POST /api/books/{id}/bookmarks.
func (h *Handler) ToggleBookmark(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req BookmarkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !notFoundUnless(w, h.svc.Library.ToggleBookmark(id, req.Page)) {
		return
	}
	b, _ := h.svc.Library.Book(id)
	writeJSON(w, http.StatusOK, map[string]any{"bookmarks": b.Bookmarks})
}

// ListGroups handles GET /api/groups.
func (h *Handler) ListGroups(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Library.Groups())
}

// CreateGroup handles POST /api/groups.
//
//	@Summary		Create a group
//	@Tags			groups
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateGroupRequest	true	"Group to create"
//	@Success		201		{object}	models.Group
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/groups [post]
func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var req CreateGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusCreated, h.svc.Library.CreateGroup(req.Name, req.BookIDs))
}

// GetGroup handles GET /api/groups/{id}.
func (h *Handler) GetGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	g, ok := h.svc.Library.Group(id)
	if !notFoundUnless(w, ok) {
		return
	}
	books, _ := h.svc.Library.GroupBooks(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"group": g,
		"books": summarizeAll(books),
	})
}

// UpdateGroup handles PATCH /api/groups/{id}.
//
//	@Summary		Rename or recolor a group
//	@Tags			groups
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Group id"
//	@Param			body	body		UpdateGroupRequest	true	"Fields to change"
//	@Success		200		{object}	models.Group
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/groups/{id} [patch]
func (h *Handler) UpdateGroup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req UpdateGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, ok := h.svc.Library.Group(id); !notFoundUnless(w, ok) {
		return
	}
	h.svc.Library.UpdateGroup(id, models.GroupPatch{Name: req.Name, Color: req.Color})
	g, _ := h.svc.Library.Group(id)
	writeJSON(w, http.StatusOK, g)
}

// DeleteGroup handles DELETE /api/groups/{id}. Member books stay on the shelf.
func (h *Handler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	if !notFoundUnless(w, h.svc.Library.DeleteGroup(chi.URLParam(r, "id"))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddGroupMember handles POST /api/groups/{id}/books.
func (h *Handler) AddGroupMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req GroupMemberRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, ok := h.svc.Library.Group(id); !notFoundUnless(w, ok) {
		return
	}
	if _, ok := h.svc.Library.Book(req.BookID); !notFoundUnless(w, ok) {
		return
	}
	h.svc.Library.AddBookToGroup(id, req.BookID)
	g, _ := h.svc.Library.Group(id)
	writeJSON(w, http.StatusOK, g)
}

// RemoveGroupMember handles DELETE /api/groups/{id}/books/{bookID}. Removing
// the last member deletes the group.
func (h *Handler) RemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	id, bookID := chi.URLParam(r, "id"), chi.URLParam(r, "bookID")
	if !notFoundUnless(w, h.svc.Library.RemoveBookFromGroup(id, bookID)) {
		return
	}
	g, ok := h.svc.Library.Group(id)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// ReorderGroupBooks handles POST /api/groups/{id}/reorder.
func (h *Handler) ReorderGroupBooks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req ReorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !notFoundUnless(w, h.svc.Library.ReorderBooksInGroup(id, req.IDs)) {
		return
	}
	g, _ := h.svc.Library.Group(id)
	writeJSON(w, http.StatusOK, g)
}

// ReorderGroups handles POST /api/groups/reorder.
func (h *Handler) ReorderGroups(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.svc.Library.ReorderGroups(req.IDs)
	writeJSON(w, http.StatusOK, h.svc.Library.Groups())
}

// ListBin handles GET /api/bin.
func (h *Handler) ListBin(w http.ResponseWriter, _ *http.Request) {
	entries := h.svc.Library.RecycleBin()
	out := make([]BinEntry, len(entries))
	for i, e := range entries {
		out[i] = BinEntry{BookSummary: summarize(e.Book), DeletedAt: e.DeletedAt}
	}
	writeJSON(w, http.StatusOK, out)
}

// RestoreBook handles POST /api/bin/{id}/restore.
func (h *Handler) RestoreBook(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !notFoundUnless(w, h.svc.Library.RestoreBook(id)) {
		return
	}
	b, _ := h.svc.Library.Book(id)
	writeJSON(w, http.StatusOK, summarize(b))
}

// RestoreAll handles POST /api/bin/restore.
func (h *Handler) RestoreAll(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"restored": h.svc.Library.RestoreAll()})
}

// PurgeBook handles DELETE /api/bin/{id}.
func (h *Handler) PurgeBook(w http.ResponseWriter, r *http.Request) {
	if !notFoundUnless(w, h.svc.Library.PermanentlyDelete(chi.URLParam(r, "id"))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// EmptyBin handles DELETE /api/bin.
func (h *Handler) EmptyBin(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"purged": h.svc.Library.EmptyRecycleBin()})
}

// ListQuotes handles GET /api/quotes, optionally filtered by ?bookId=.
func (h *Handler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	if bookID := r.URL.Query().Get("bookId"); bookID != "" {
		writeJSON(w, http.StatusOK, h.svc.Library.QuotesForBook(bookID))
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Library.Quotes())
}

// CreateQuote handles POST /api/quotes.
func (h *Handler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req CreateQuoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	q := h.svc.Library.AddQuote(library.QuoteInput{BookID: req.BookID, Text: req.Text, Page: req.Page, Note: req.Note})
	writeJSON(w, http.StatusCreated, q)
}

// DeleteQuote handles DELETE /api/quotes/{id}.
func (h *Handler) DeleteQuote(w http.ResponseWriter, r *http.Request) {
	if !notFoundUnless(w, h.svc.Library.DeleteQuote(chi.URLParam(r, "id"))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles GET /api/search.
//
//	@Summary		Search titles, authors, group names and page text
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results per section"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	resp, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetSettings handles GET /api/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Settings.Get())
}

// UpdateSettings handles PATCH /api/settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Settings.Update(req.SettingsPatch))
}

// SetReadingMode handles PUT /api/settings/mode.
func (h *Handler) SetReadingMode(w http.ResponseWriter, r *http.Request) {
	var req ReadingModeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, h.svc.Settings.SetReadingMode(req.Mode))
}

// ResetSettings handles POST /api/settings/reset.
func (h *Handler) ResetSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Settings.Reset())
}

// Voices handles GET /api/voices.
func (h *Handler) Voices(w http.ResponseWriter, r *http.Request) {
	if h.svc.Voices == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	voices := h.svc.Voices.Voices(r.Context())
	if voices == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, voices)
}
