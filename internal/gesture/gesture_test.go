package gesture

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/flipshelf/internal/library"
	"github.com/starford/flipshelf/internal/models"
)

func newShelf(t *testing.T) (*library.Store, *Resolver, []models.Book) {
	t.Helper()
	s := library.New()
	var books []models.Book
	for _, title := range []string{"The Left Hand of Darkness", "Dune", "Solaris", "Hyperion"} {
		books = append(books, s.AddBook(models.ParsedBook{Title: title, FileHash: title, Format: models.FormatTXT}))
	}
	return s, NewResolver(s, slog.New(slog.NewTextHandler(io.Discard, nil))), books
}

func ids(books []models.Book) []string {
	out := make([]string, len(books))
	for i, b := range books {
		out[i] = b.ID
	}
	return out
}

func ref(r ItemRef) *ItemRef { return &r }

func TestResolveTable(t *testing.T) {
	tests := []struct {
		name string
		st   State
		want IntentKind
	}{
		{"idle", Idle(), IntentNone},
		{"no target", Start(BookRef("a"), false), IntentNone},
		{"onto itself", Start(BookRef("a"), true).Over(ref(BookRef("a"))), IntentNone},
		{"book to bin", Start(BookRef("a"), true).Over(ref(BinRef())), IntentDeleteBook},
		{"group to bin", Start(GroupRef("g"), false).Over(ref(BinRef())), IntentDeleteGroup},
		{"book onto group", Start(BookRef("a"), false).Over(ref(GroupRef("g"))), IntentSwap},
		{"book onto group with modifier", Start(BookRef("a"), true).Over(ref(GroupRef("g"))), IntentAddToGroup},
		{"book onto book", Start(BookRef("a"), false).Over(ref(BookRef("b"))), IntentReorderBooks},
		{"book onto book with modifier", Start(BookRef("a"), true).Over(ref(BookRef("b"))), IntentCreateGroup},
		{"group onto group", Start(GroupRef("g"), true).Over(ref(GroupRef("h"))), IntentReorderGroups},
		{"group onto book", Start(GroupRef("g"), false).Over(ref(BookRef("a"))), IntentNone},
		{"inside open group", StartInGroup("g", BookRef("a")).Over(ref(BookRef("b"))), IntentReorderInGroup},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.st).Kind)
		})
	}
}

func TestModifierFollowsKeys(t *testing.T) {
	st := Start(BookRef("a"), false).Over(ref(BookRef("b")))
	assert.Equal(t, IntentCreateGroup, Resolve(st.ModifierDown()).Kind)
	assert.Equal(t, IntentReorderBooks, Resolve(st.ModifierDown().ModifierUp()).Kind)

	latched := Start(BookRef("a"), true).Over(ref(BookRef("b")))
	assert.Equal(t, IntentCreateGroup, Resolve(latched).Kind)

	assert.False(t, Idle().ModifierDown().Modifier, "idle ignores keys")
}

func TestOverCopiesTarget(t *testing.T) {
	target := BookRef("b")
	st := Start(BookRef("a"), false).Over(&target)
	target.ID = "changed"
	assert.Equal(t, "b", st.Target.ID)
	assert.Nil(t, st.Over(nil).Target)
}

func TestDropBookOntoBookReorders(t *testing.T) {
	s, r, books := newShelf(t)
	a, b := books[0], books[2]

	out := r.Drop(BookRef(a.ID), ref(BookRef(b.ID)), false, "")
	require.True(t, out.Applied)
	assert.Equal(t, []string{books[1].ID, books[2].ID, a.ID, books[3].ID}, ids(s.Books()))
	assert.Empty(t, s.Groups())
}

func TestDropBookOntoBookWithModifierCreatesGroup(t *testing.T) {
	s, r, books := newShelf(t)
	a, b := books[0], books[1]

	out := r.Drop(BookRef(a.ID), ref(BookRef(b.ID)), true, "")
	require.True(t, out.Applied)
	require.NotEmpty(t, out.GroupID)

	g, ok := s.Group(out.GroupID)
	require.True(t, ok)
	assert.Equal(t, []string{a.ID, b.ID}, g.BookIDs)
	assert.Equal(t, "The Left Hand o + Dune", g.Name)
	assert.NotContains(t, ids(s.UngroupedBooks()), a.ID)
	assert.NotContains(t, ids(s.UngroupedBooks()), b.ID)
}

func TestDropBookOntoGroupSwaps(t *testing.T) {
	s, r, books := newShelf(t)
	g := s.CreateGroup("g", []string{books[0].ID})
	a := books[3]

	out := r.Drop(BookRef(a.ID), ref(GroupRef(g.ID)), false, "")
	require.True(t, out.Applied)
	assert.Equal(t, a.ID, s.Books()[0].ID)
	got, _ := s.Group(g.ID)
	assert.NotContains(t, got.BookIDs, a.ID)
}

func TestDropBookOntoGroupWithModifierAdds(t *testing.T) {
	s, r, books := newShelf(t)
	g := s.CreateGroup("g", []string{books[0].ID})
	a := books[3]

	out := r.Drop(BookRef(a.ID), ref(GroupRef(g.ID)), true, "")
	require.True(t, out.Applied)
	got, _ := s.Group(g.ID)
	assert.Equal(t, []string{books[0].ID, a.ID}, got.BookIDs)
	assert.Len(t, s.Books(), 4)
}

func TestDropBookOntoBin(t *testing.T) {
	s, r, books := newShelf(t)
	a := books[1]
	g := s.CreateGroup("solo", []string{a.ID})

	out := r.Drop(BookRef(a.ID), ref(BinRef()), false, "")
	require.True(t, out.Applied)
	assert.NotContains(t, ids(s.Books()), a.ID)
	bin := s.RecycleBin()
	require.Len(t, bin, 1)
	assert.Equal(t, a.ID, bin[0].ID)
	assert.False(t, bin[0].DeletedAt.IsZero())
	_, ok := s.Group(g.ID)
	assert.False(t, ok)
}

func TestDropGroupOntoBinKeepsMembers(t *testing.T) {
	s, r, books := newShelf(t)
	a := books[1]
	g := s.CreateGroup("solo", []string{a.ID})

	out := r.Drop(GroupRef(g.ID), ref(BinRef()), false, "")
	require.True(t, out.Applied)
	assert.Empty(t, s.Groups())
	assert.Contains(t, ids(s.Books()), a.ID)
	assert.Empty(t, s.RecycleBin())
}

func TestDropGroupOntoGroupReorders(t *testing.T) {
	s, r, books := newShelf(t)
	g1 := s.CreateGroup("1", []string{books[0].ID})
	g2 := s.CreateGroup("2", []string{books[1].ID})
	g3 := s.CreateGroup("3", []string{books[2].ID})

	require.True(t, r.Drop(GroupRef(g3.ID), ref(GroupRef(g1.ID)), false, "").Applied)
	var got []string
	for _, g := range s.Groups() {
		got = append(got, g.ID)
	}
	assert.Equal(t, []string{g3.ID, g1.ID, g2.ID}, got)
}

func TestReorderInsideGroup(t *testing.T) {
	s, r, books := newShelf(t)
	g := s.CreateGroup("g", ids(books[:3]))

	r.DragStartInGroup(g.ID, BookRef(books[2].ID))
	r.DragOver(ref(BookRef(books[0].ID)))
	out := r.DragEnd()
	require.True(t, out.Applied)
	got, _ := s.Group(g.ID)
	assert.Equal(t, []string{books[2].ID, books[0].ID, books[1].ID}, got.BookIDs)
}

func TestStaleIDsAreDropped(t *testing.T) {
	s, r, books := newShelf(t)
	a, b := books[0], books[1]

	r.DragStart(BookRef(a.ID), true)
	r.DragOver(ref(BookRef(b.ID)))
	s.DeleteBook(b.ID)
	out := r.DragEnd()

	assert.Equal(t, IntentCreateGroup, out.Intent)
	assert.False(t, out.Applied)
	assert.Empty(t, s.Groups())
	assert.Len(t, s.Books(), 3)
}

func TestStatefulDragLifecycle(t *testing.T) {
	s, r, books := newShelf(t)

	r.DragStart(BookRef(books[0].ID), false)
	r.DragOver(ref(BookRef(books[1].ID)))
	r.ModifierDown()
	assert.True(t, r.State().Modifier)
	r.ModifierUp()
	r.DragOver(nil)
	out := r.DragEnd()

	assert.Equal(t, IntentNone, out.Intent)
	assert.False(t, r.State().Dragging)
	assert.Equal(t, ids(books), ids(s.Books()))

	r.DragStart(BookRef(books[0].ID), false)
	r.Cancel()
	assert.Equal(t, Idle(), r.State())
}
