// Package gesture turns one pointer drag over the shelf into at most one
// library mutation.
//
// A drag is modelled as an explicit state value. Transitions are pure
// functions on that value; only Dispatch touches the library, and it looks
// every entity up again at that moment.
package gesture

import "fmt"

// Kind classifies a draggable item or drop zone.
type Kind int

// Item kinds.
const (
	KindBook Kind = iota + 1
	KindGroup
	KindBin
)

func (k Kind) String() string {
	switch k {
	case KindBook:
		return "book"
	case KindGroup:
		return "group"
	case KindBin:
		return "bin"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "book":
		return KindBook, true
	case "group":
		return KindGroup, true
	case "bin":
		return KindBin, true
	}
	return 0, false
}

// ItemRef identifies a drag source or drop target.
type ItemRef struct {
	Kind Kind
	ID   string
}

// BookRef refers to a book.
func BookRef(id string) ItemRef { return ItemRef{Kind: KindBook, ID: id} }

// GroupRef refers to a group.
func GroupRef(id string) ItemRef { return ItemRef{Kind: KindGroup, ID: id} }

// BinRef refers to the recycle-bin drop zone.
func BinRef() ItemRef { return ItemRef{Kind: KindBin} }

func (r ItemRef) String() string {
	if r.Kind == KindBin {
		return "bin"
	}
	return r.Kind.String() + ":" + r.ID
}

// State is the single drag slot. The zero value is Idle.
type State struct {
	Dragging bool
	Source   ItemRef
	// Modifier is latched at drag start and follows key down/up afterwards.
	Modifier bool
	// Target is the item under the pointer, nil over empty space.
	Target *ItemRef
	// Scope is the id of the open group the drag started in, empty on the
	// main shelf.
	Scope string
}

// Idle is the resting state.
func Idle() State { return State{} }

// Start begins a drag on the main shelf. Any previous drag is overwritten.
func Start(src ItemRef, modifier bool) State {
	return State{Dragging: true, Source: src, Modifier: modifier}
}

// StartInGroup begins a drag of a member book inside an open group.
func StartInGroup(groupID string, src ItemRef) State {
	return State{Dragging: true, Source: src, Scope: groupID}
}

// Over records the item under the pointer; nil means empty space.
func (s State) Over(target *ItemRef) State {
	if !s.Dragging {
		return s
	}
	if target != nil {
		t := *target
		target = &t
	}
	s.Target = target
	return s
}

// ModifierDown switches the drag into modifier mode.
func (s State) ModifierDown() State {
	if s.Dragging {
		s.Modifier = true
	}
	return s
}

// ModifierUp switches the drag back to plain mode.
func (s State) ModifierUp() State {
	if s.Dragging {
		s.Modifier = false
	}
	return s
}
