package gesture

import (
	"log/slog"
	"sync"
)

// Resolver owns the drag slot for one shelf and applies finished drags to a
// library. Only one drag is tracked at a time; starting a new one discards
// the old.
type Resolver struct {
	mu     sync.Mutex
	state  State
	lib    Library
	logger *slog.Logger
}

// NewResolver creates an idle resolver over lib.
func NewResolver(lib Library, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{lib: lib, logger: logger}
}

// State returns the current drag slot.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// DragStart begins a drag on the main shelf.
func (r *Resolver) DragStart(src ItemRef, modifier bool) {
	r.set(Start(src, modifier))
}

// DragStartInGroup begins a drag inside an open group.
func (r *Resolver) DragStartInGroup(groupID string, src ItemRef) {
	r.set(StartInGroup(groupID, src))
}

// DragOver records the current drop target; nil clears it.
func (r *Resolver) DragOver(target *ItemRef) {
	r.update(func(s State) State { return s.Over(target) })
}

// ModifierDown and ModifierUp follow the modifier key during a drag.
func (r *Resolver) ModifierDown() { r.update(State.ModifierDown) }

// ModifierUp releases modifier mode.
func (r *Resolver) ModifierUp() { r.update(State.ModifierUp) }

// Cancel abandons the drag without mutating anything.
func (r *Resolver) Cancel() { r.set(Idle()) }

// DragEnd resolves the drag, applies the intent and returns to Idle.
func (r *Resolver) DragEnd() Outcome {
	r.mu.Lock()
	s := r.state
	r.state = Idle()
	r.mu.Unlock()
	return Dispatch(r.lib, Resolve(s), r.logger)
}

// Drop runs a whole drag in one call: start, hover over target, end.
func (r *Resolver) Drop(src ItemRef, target *ItemRef, modifier bool, scope string) Outcome {
	s := Start(src, modifier)
	if scope != "" {
		s = StartInGroup(scope, src)
	}
	return Dispatch(r.lib, Resolve(s.Over(target)), r.logger)
}

func (r *Resolver) set(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = s
}

func (r *Resolver) update(fn func(State) State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = fn(r.state)
}
