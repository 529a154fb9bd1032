package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// limiter, if non-nil, throttles every route except the event stream.
func NewRouter(svc *Service, authEnabled bool, token string, sseHandler http.Handler, limiter *RateLimiter) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// SSE endpoint (protected by same auth middleware, never rate limited).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter.Middleware)
		}

		r.Get("/shelf", h.Shelf)
		r.Get("/search", h.Search)
		r.Post("/uploads", h.Upload)

		// Books.
		r.Get("/books", h.ListBooks)
		r.Post("/books/reorder", h.ReorderBooks)
		r.Get("/books/{id}", h.GetBook)
		r.Patch("/books/{id}", h.UpdateBook)
		r.Delete("/books/{id}", h.DeleteBook)
		r.Post("/books/{id}/bookmarks", h.ToggleBookmark)

		// Groups.
		r.Get("/groups", h.ListGroups)
		r.Post("/groups", h.CreateGroup)
		r.Post("/groups/reorder", h.ReorderGroups)
		r.Get("/groups/{id}", h.GetGroup)
		r.Patch("/groups/{id}", h.UpdateGroup)
		r.Delete("/groups/{id}", h.DeleteGroup)
		r.Post("/groups/{id}/books", h.AddGroupMember)
		r.Delete("/groups/{id}/books/{bookID}", h.RemoveGroupMember)
		r.Post("/groups/{id}/reorder", h.ReorderGroupBooks)

		// Recycle bin.
		r.Get("/bin", h.ListBin)
		r.Delete("/bin", h.EmptyBin)
		r.Post("/bin/restore", h.RestoreAll)
		r.Post("/bin/{id}/restore", h.RestoreBook)
		r.Delete("/bin/{id}", h.PurgeBook)

		// Quotes.
		r.Get("/quotes", h.ListQuotes)
		r.Post("/quotes", h.CreateQuote)
		r.Delete("/quotes/{id}", h.DeleteQuote)

		// Drag and drop.
		r.Get("/drag", h.DragState)
		r.Post("/drag/start", h.DragStart)
		r.Post("/drag/over", h.DragOver)
		r.Post("/drag/modifier", h.Modifier)
		r.Post("/drag/cancel", h.DragCancel)
		r.Post("/drag/end", h.DragEnd)
		r.Post("/drop", h.Drop)

		// Reading sessions.
		r.Post("/sessions", h.OpenSession)
		r.Route("/sessions/{sid}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.CloseSession)
			r.Post("/next", h.NextPage)
			r.Post("/prev", h.PrevPage)
			r.Post("/goto", h.GoToPage)
			r.Post("/bookmark", h.ToggleSessionBookmark)
			r.Post("/bookmarks/{page}", h.JumpToBookmark)
			r.Post("/select", h.Select)
			r.Get("/quotes", h.SessionQuotes)
			r.Post("/quotes", h.SaveQuote)
			r.Post("/font", h.Font)
			r.Post("/night", h.NightMode)
			r.Post("/read", h.ReadAloud)
			r.Post("/read-from", h.ReadFromSelection)
			r.Post("/stop", h.StopReading)
		})

		// Settings.
		r.Get("/settings", h.GetSettings)
		r.Patch("/settings", h.UpdateSettings)
		r.Put("/settings/mode", h.SetReadingMode)
		r.Post("/settings/reset", h.ResetSettings)
		r.Get("/voices", h.Voices)
	})

	return r
}
