package gesture

import "fmt"

// IntentKind is the single mutation a gesture resolves to.
type IntentKind int

// Intents.
const (
	IntentNone IntentKind = iota
	IntentReorderBooks
	IntentReorderGroups
	IntentReorderInGroup
	IntentCreateGroup
	IntentAddToGroup
	IntentSwap
	IntentDeleteBook
	IntentDeleteGroup
)

var intentNames = map[IntentKind]string{
	IntentNone:           "none",
	IntentReorderBooks:   "reorder-books",
	IntentReorderGroups:  "reorder-groups",
	IntentReorderInGroup: "reorder-in-group",
	IntentCreateGroup:    "create-group",
	IntentAddToGroup:     "add-to-group",
	IntentSwap:           "swap",
	IntentDeleteBook:     "delete-book",
	IntentDeleteGroup:    "delete-group",
}

func (k IntentKind) String() string {
	if n, ok := intentNames[k]; ok {
		return n
	}
	return fmt.Sprintf("intent(%d)", int(k))
}

// MarshalText lets intents appear by name in JSON.
func (k IntentKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Intent is what a finished drag means, before it is applied.
type Intent struct {
	Kind   IntentKind
	Source ItemRef
	Target ItemRef
	// Scope is the open group for IntentReorderInGroup.
	Scope string
}

// Resolve classifies a finished drag. The rules are checked in order:
//
//  1. no target, or the target is the source: none
//  2. bin target: delete the dragged group (members stay) or soft-delete the book
//  3. book onto group: add-to-group with the modifier held, swap otherwise
//  4. book onto book: create-group with the modifier held, reorder otherwise
//  5. group onto group: reorder groups
//  6. anything else: none
//
// Inside an open group, book onto book always reorders the members.
func Resolve(s State) Intent {
	if !s.Dragging || s.Target == nil || *s.Target == s.Source {
		return Intent{}
	}
	src, dst := s.Source, *s.Target
	in := Intent{Source: src, Target: dst, Scope: s.Scope}

	switch {
	case dst.Kind == KindBin:
		switch src.Kind {
		case KindGroup:
			in.Kind = IntentDeleteGroup
		case KindBook:
			in.Kind = IntentDeleteBook
		}
	case dst.Kind == KindGroup && src.Kind == KindBook:
		if s.Modifier {
			in.Kind = IntentAddToGroup
		} else {
			in.Kind = IntentSwap
		}
	case src.Kind == KindBook && dst.Kind == KindBook:
		switch {
		case s.Scope != "":
			in.Kind = IntentReorderInGroup
		case s.Modifier:
			in.Kind = IntentCreateGroup
		default:
			in.Kind = IntentReorderBooks
		}
	case src.Kind == KindGroup && dst.Kind == KindGroup:
		in.Kind = IntentReorderGroups
	}
	if in.Kind == IntentNone {
		return Intent{}
	}
	return in
}
