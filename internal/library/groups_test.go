package library

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/flipshelf/internal/models"
)

func TestCreateGroupDefaults(t *testing.T) {
	s := newTestStore(t)
	a := s.AddBook(parsed("A", "ha"))
	b := s.AddBook(parsed("B", "hb"))
	c := s.AddBook(parsed("C", "hc"))

	g := s.CreateGroup("Sci-fi", []string{a.ID, b.ID})
	assert.Equal(t, models.DefaultGroupColor, g.Color)
	assert.Equal(t, []string{a.ID, b.ID}, g.BookIDs)
	assert.False(t, g.CreatedAt.IsZero())

	assert.Equal(t, []string{c.ID}, bookIDs(s.UngroupedBooks()))
	members, ok := s.GroupBooks(g.ID)
	require.True(t, ok)
	assert.Equal(t, []string{a.ID, b.ID}, bookIDs(members))
}

func TestUpdateAndRenameGroup(t *testing.T) {
	s := newTestStore(t)
	g := s.CreateGroup("old", []string{"x"})

	color := models.GroupPalette[3]
	require.True(t, s.UpdateGroup(g.ID, models.GroupPatch{Color: &color}))
	require.True(t, s.RenameGroup(g.ID, "new"))

	got, _ := s.Group(g.ID)
	assert.Equal(t, "new", got.Name)
	assert.Equal(t, color, got.Color)
	assert.False(t, s.RenameGroup("missing", "x"))
}

func TestDeleteGroupKeepsMembers(t *testing.T) {
	s := newTestStore(t)
	a := s.AddBook(parsed("A", "ha"))
	g := s.CreateGroup("g", []string{a.ID})

	require.True(t, s.DeleteGroup(g.ID))
	assert.Empty(t, s.Groups())
	assert.Equal(t, []string{a.ID}, bookIDs(s.UngroupedBooks()))
	assert.Empty(t, s.RecycleBin())
}

func TestAddBookToGroup(t *testing.T) {
	s := newTestStore(t)
	a := s.AddBook(parsed("A", "ha"))
	b := s.AddBook(parsed("B", "hb"))
	g := s.CreateGroup("g", []string{a.ID})

	assert.True(t, s.AddBookToGroup(g.ID, b.ID))
	assert.False(t, s.AddBookToGroup(g.ID, b.ID), "already a member")
	assert.False(t, s.AddBookToGroup("missing", b.ID))

	got, _ := s.Group(g.ID)
	assert.Equal(t, []string{a.ID, b.ID}, got.BookIDs)
	assert.Len(t, s.Books(), 2)
}

func TestRemoveLastMemberDeletesGroup(t *testing.T) {
	s := newTestStore(t)
	a := s.AddBook(parsed("A", "ha"))
	b := s.AddBook(parsed("B", "hb"))
	g := s.CreateGroup("g", []string{a.ID, b.ID})

	require.True(t, s.RemoveBookFromGroup(g.ID, a.ID))
	got, ok := s.Group(g.ID)
	require.True(t, ok)
	assert.Equal(t, []string{b.ID}, got.BookIDs)

	require.True(t, s.RemoveBookFromGroup(g.ID, b.ID))
	_, ok = s.Group(g.ID)
	assert.False(t, ok)
	assert.Len(t, s.Books(), 2)
}

func TestReorderBooksInGroupReplacesWholesale(t *testing.T) {
	s := newTestStore(t)
	g := s.CreateGroup("g", []string{"a", "b", "c"})

	require.True(t, s.ReorderBooksInGroup(g.ID, []string{"c", "a", "z"}))
	got, _ := s.Group(g.ID)
	assert.Equal(t, []string{"c", "a", "z"}, got.BookIDs)
}

func TestReorderGroupsPartial(t *testing.T) {
	s := newTestStore(t)
	g1 := s.CreateGroup("1", []string{"a"})
	g2 := s.CreateGroup("2", []string{"b"})
	g3 := s.CreateGroup("3", []string{"c"})

	s.ReorderGroups([]string{g3.ID})
	assert.Equal(t, []string{g3.ID, g1.ID, g2.ID}, groupIDs(s.Groups()))
}

func TestSwapBookAndGroup(t *testing.T) {
	tests := []struct {
		name       string
		bookAt     int
		groupAt    int
		wantBooks  []string
		wantGroups []string
	}{
		{
			name:       "group index not after book moves the book",
			bookAt:     2,
			groupAt:    0,
			wantBooks:  []string{"b3", "b1", "b2"},
			wantGroups: []string{"g1", "g2", "g3"},
		},
		{
			name:       "equal indexes move the book",
			bookAt:     1,
			groupAt:    1,
			wantBooks:  []string{"b1", "b2", "b3"},
			wantGroups: []string{"g1", "g2", "g3"},
		},
		{
			name:       "group after book moves the group",
			bookAt:     0,
			groupAt:    2,
			wantBooks:  []string{"b1", "b2", "b3"},
			wantGroups: []string{"g3", "g1", "g2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			s.Hydrate(models.Snapshot{
				Books: []models.Book{{ID: "b1"}, {ID: "b2"}, {ID: "b3"}},
				Groups: []models.Group{
					{ID: "g1", BookIDs: []string{"x"}},
					{ID: "g2", BookIDs: []string{"y"}},
					{ID: "g3", BookIDs: []string{"z"}},
				},
			})
			books := s.Books()
			groups := s.Groups()

			require.True(t, s.SwapBookAndGroup(books[tt.bookAt].ID, groups[tt.groupAt].ID))
			assert.Equal(t, tt.wantBooks, bookIDs(s.Books()))
			assert.Equal(t, tt.wantGroups, groupIDs(s.Groups()))

			g, _ := s.Group(groups[tt.groupAt].ID)
			assert.Len(t, g.BookIDs, 1, "membership untouched")
		})
	}
}

func TestSwapUnknownIsNoop(t *testing.T) {
	s := newTestStore(t)
	a := s.AddBook(parsed("A", "ha"))
	assert.False(t, s.SwapBookAndGroup(a.ID, "missing"))
	assert.False(t, s.SwapBookAndGroup("missing", "missing"))
}

func TestMoveID(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	assert.Equal(t, []string{"b", "c", "a", "d"}, MoveID(ids, "a", "c"))
	assert.Equal(t, []string{"a", "d", "b", "c"}, MoveID(ids, "d", "b"))
	assert.Nil(t, MoveID(ids, "a", "zz"))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids)
}

func TestNoopRemovalsDoNotNotify(t *testing.T) {
	s := newTestStore(t)
	a := s.AddBook(parsed("A", "ha"))
	b := s.AddBook(parsed("B", "hb"))
	g := s.CreateGroup("g", []string{a.ID})

	var kinds []string
	s.Subscribe(ObserverFunc(func(ch Change, _ models.Snapshot) {
		kinds = append(kinds, ch.Kind)
	}))

	assert.False(t, s.RemoveBookFromGroup(g.ID, b.ID), "not a member")
	assert.Equal(t, 0, s.EmptyRecycleBin())
	assert.Empty(t, kinds)

	got, ok := s.Group(g.ID)
	require.True(t, ok)
	assert.Equal(t, []string{a.ID}, got.BookIDs)
}
