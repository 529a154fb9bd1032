package api

import (
	"net/http"

	"github.com/starford/flipshelf/internal/gesture"
)

// DragState handles GET /api/drag.
func (h *Handler) DragState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, dragState(h.svc.Gestures.State()))
}

// DragStart handles POST /api/drag/start.
//
//	@Summary		Begin dragging a book or group
//	@Tags			gestures
//	@Accept			json
//	@Produce		json
//	@Param			body	body		DragStartRequest	true	"Drag source"
//	@Success		200		{object}	DragStateResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/drag/start [post]
func (h *Handler) DragStart(w http.ResponseWriter, r *http.Request) {
	var req DragStartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Group != "" {
		h.svc.Gestures.DragStartInGroup(req.Group, req.Source.ref())
	} else {
		h.svc.Gestures.DragStart(req.Source.ref(), req.Modifier)
	}
	writeJSON(w, http.StatusOK, dragState(h.svc.Gestures.State()))
}

// DragOver handles POST /api/drag/over.
func (h *Handler) DragOver(w http.ResponseWriter, r *http.Request) {
	var req DragOverRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.svc.Gestures.DragOver(optionalRef(req.Target))
	writeJSON(w, http.StatusOK, dragState(h.svc.Gestures.State()))
}

// Modifier handles POST /api/drag/modifier.
func (h *Handler) Modifier(w http.ResponseWriter, r *http.Request) {
	var req ModifierRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Down {
		h.svc.Gestures.ModifierDown()
	} else {
		h.svc.Gestures.ModifierUp()
	}
	writeJSON(w, http.StatusOK, dragState(h.svc.Gestures.State()))
}

// DragCancel handles POST /api/drag/cancel.
func (h *Handler) DragCancel(w http.ResponseWriter, _ *http.Request) {
	h.svc.Gestures.Cancel()
	writeJSON(w, http.StatusOK, dragState(h.svc.Gestures.State()))
}

// DragEnd handles POST /api/drag/end: the pending drag is resolved and applied.
//
//	@Summary		Finish the drag and apply its intent
//	@Tags			gestures
//	@Produce		json
//	@Success		200	{object}	gesture.Outcome
//	@Security		BearerAuth
//	@Router			/drag/end [post]
func (h *Handler) DragEnd(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Gestures.DragEnd())
}

// Drop handles POST /api/drop, a complete gesture in one request.
func (h *Handler) Drop(w http.ResponseWriter, r *http.Request) {
	var req DropRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	out := h.svc.Gestures.Drop(req.Source.ref(), optionalRef(req.Target), req.Modifier, req.Group)
	writeJSON(w, http.StatusOK, out)
}

func optionalRef(d *ItemRefDTO) *gesture.ItemRef {
	if d == nil {
		return nil
	}
	ref := d.ref()
	return &ref
}
