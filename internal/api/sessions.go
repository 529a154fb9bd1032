package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/flipshelf/internal/apperr"
	"github.com/starford/flipshelf/internal/reading"
)

// session resolves {sid} or writes 404.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*reading.Session, bool) {
	s, ok := h.svc.Sessions.Get(chi.URLParam(r, "sid"))
	return s, notFoundUnless(w, ok)
}

// writeSessionError maps session errors onto status codes.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, reading.ErrClosed):
		writeJSON(w, http.StatusGone, errorBody("session closed"))
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("book no longer exists"))
	case errors.Is(err, apperr.ErrNoText):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(apperr.ErrNoText.Error()))
	case errors.Is(err, apperr.ErrNarrationUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorBody("narration unavailable"))
	default:
		slog.Error("session operation failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

func (h *Handler) writeView(w http.ResponseWriter, s *reading.Session) {
	v, err := s.View()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) viewOrError(w http.ResponseWriter, v reading.View, err error) {
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// OpenSession handles POST /api/sessions.
//
//	@Summary		Open a book for reading
//	@Tags			reading
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenSessionRequest	true	"Book to open"
//	@Success		201		{object}	reading.View
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/sessions [post]
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req OpenSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.svc.Sessions.Open(req.BookID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	v, err := s.View()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

// GetSession handles GET /api/sessions/{sid}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		h.writeView(w, s)
	}
}

// CloseSession handles DELETE /api/sessions/{sid}. The reading position is
// saved on the book.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	if !notFoundUnless(w, h.svc.Sessions.Close(chi.URLParam(r, "sid"))) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NextPage handles POST /api/sessions/{sid}/next.
func (h *Handler) NextPage(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		v, err := s.Next()
		h.viewOrError(w, v, err)
	}
}

// PrevPage handles POST /api/sessions/{sid}/prev.
func (h *Handler) PrevPage(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		v, err := s.Prev()
		h.viewOrError(w, v, err)
	}
}

// GoToPage handles POST /api/sessions/{sid}/goto.
func (h *Handler) GoToPage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req GoToRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	v, err := s.GoTo(req.Page)
	h.viewOrError(w, v, err)
}

// ToggleSessionBookmark handles POST /api/sessions/{sid}/bookmark.
func (h *Handler) ToggleSessionBookmark(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		v, err := s.ToggleBookmark()
		h.viewOrError(w, v, err)
	}
}

// JumpToBookmark handles POST /api/sessions/{sid}/bookmarks/{page}.
func (h *Handler) JumpToBookmark(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil || page < 1 {
		writeJSON(w, http.StatusBadRequest, errorBody("page must be a positive integer"))
		return
	}
	v, err := s.GoToBookmark(page)
	h.viewOrError(w, v, err)
}

// Select handles POST /api/sessions/{sid}/select.
func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.Select(req.Text); err != nil {
		writeSessionError(w, err)
		return
	}
	h.writeView(w, s)
}

// SaveQuote handles POST /api/sessions/{sid}/quotes: the current selection
// becomes a quote.
func (h *Handler) SaveQuote(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	q, err := s.AddQuote(req.Note)
	if err != nil {
		if errors.Is(err, apperr.ErrNoText) {
			writeJSON(w, http.StatusBadRequest, errorBody("nothing selected"))
			return
		}
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

// SessionQuotes handles GET /api/sessions/{sid}/quotes.
func (h *Handler) SessionQuotes(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		writeJSON(w, http.StatusOK, s.Quotes())
	}
}

// Font handles POST /api/sessions/{sid}/font.
func (h *Handler) Font(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req FontRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	size := s.DecreaseFont
	if req.Direction == "up" {
		size = s.IncreaseFont
	}
	writeJSON(w, http.StatusOK, map[string]int{"fontSize": size()})
}

// NightMode handles POST /api/sessions/{sid}/night.
func (h *Handler) NightMode(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		writeJSON(w, http.StatusOK, map[string]bool{"nightMode": s.ToggleNightMode()})
	}
}

// ReadAloud handles POST /api/sessions/{sid}/read: toggles narration of the
// current page.
func (h *Handler) ReadAloud(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	speaking, err := s.ReadAloud()
	if err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"speaking": speaking})
}

// ReadFromSelection handles POST /api/sessions/{sid}/read-from.
func (h *Handler) ReadFromSelection(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req TextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := s.ReadFromSelection(req.Text); err != nil {
		writeSessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"speaking": true})
}

// StopReading handles POST /api/sessions/{sid}/stop.
func (h *Handler) StopReading(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		s.StopReading()
		writeJSON(w, http.StatusOK, map[string]bool{"speaking": false})
	}
}
