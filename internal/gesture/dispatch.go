package gesture

import (
	"log/slog"

	"github.com/starford/flipshelf/internal/library"
	"github.com/starford/flipshelf/internal/models"
)

// groupNameChars is how much of each title goes into a merged group's name.
const groupNameChars = 15

// Library is the part of the entity store a gesture can mutate.
type Library interface {
	Book(id string) (models.Book, bool)
	Group(id string) (models.Group, bool)
	Books() []models.Book
	Groups() []models.Group
	DeleteBook(id string) bool
	DeleteGroup(id string) bool
	AddBookToGroup(groupID, bookID string) bool
	SwapBookAndGroup(bookID, groupID string) bool
	CreateGroup(name string, bookIDs []string) models.Group
	ReorderBooks(orderedIDs []string) bool
	ReorderGroups(orderedIDs []string) bool
	ReorderBooksInGroup(groupID string, orderedIDs []string) bool
}

// Outcome reports what Dispatch did.
type Outcome struct {
	Intent  IntentKind `json:"intent"`
	Applied bool       `json:"applied"`
	// GroupID is set when a group was created.
	GroupID string `json:"groupId,omitempty"`
}

// Dispatch applies in to lib. An intent referencing an entity that no longer
// exists is dropped without touching anything.
func Dispatch(lib Library, in Intent, logger *slog.Logger) Outcome {
	out := Outcome{Intent: in.Kind}
	switch in.Kind {
	case IntentNone:
		return out
	case IntentDeleteBook:
		out.Applied = lib.DeleteBook(in.Source.ID)
	case IntentDeleteGroup:
		out.Applied = lib.DeleteGroup(in.Source.ID)
	case IntentAddToGroup:
		if _, ok := lib.Book(in.Source.ID); ok {
			out.Applied = lib.AddBookToGroup(in.Target.ID, in.Source.ID)
		}
	case IntentSwap:
		out.Applied = lib.SwapBookAndGroup(in.Source.ID, in.Target.ID)
	case IntentCreateGroup:
		a, okA := lib.Book(in.Source.ID)
		b, okB := lib.Book(in.Target.ID)
		if okA && okB {
			g := lib.CreateGroup(mergedName(a.Title, b.Title), []string{a.ID, b.ID})
			out.Applied, out.GroupID = true, g.ID
		}
	case IntentReorderBooks:
		if ids := library.MoveID(idsOf(lib.Books(), bookID), in.Source.ID, in.Target.ID); ids != nil {
			out.Applied = lib.ReorderBooks(ids)
		}
	case IntentReorderGroups:
		if ids := library.MoveID(idsOf(lib.Groups(), groupID), in.Source.ID, in.Target.ID); ids != nil {
			out.Applied = lib.ReorderGroups(ids)
		}
	case IntentReorderInGroup:
		if g, ok := lib.Group(in.Scope); ok {
			if ids := library.MoveID(g.BookIDs, in.Source.ID, in.Target.ID); ids != nil {
				out.Applied = lib.ReorderBooksInGroup(g.ID, ids)
			}
		}
	}
	if !out.Applied {
		logger.Debug("gesture dropped",
			slog.String("intent", in.Kind.String()),
			slog.String("source", in.Source.String()),
			slog.String("target", in.Target.String()))
	}
	return out
}

func mergedName(a, b string) string {
	return truncate(a, groupNameChars) + " + " + truncate(b, groupNameChars)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func bookID(b models.Book) string   { return b.ID }
func groupID(g models.Group) string { return g.ID }

func idsOf[T any](items []T, key func(T) string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = key(it)
	}
	return out
}
