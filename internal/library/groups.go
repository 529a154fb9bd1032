package library

import (
	"slices"

	"github.com/starford/flipshelf/internal/models"
)

// CreateGroup appends a new group with the given members and the default color.
func (s *Store) CreateGroup(name string, bookIDs []string) models.Group {
	s.mu.Lock()
	defer s.mu.Unlock()

	g := models.Group{
		ID:        s.newID(),
		Name:      name,
		BookIDs:   nonNil(slices.Clone(bookIDs)),
		Color:     models.DefaultGroupColor,
		CreatedAt: s.now().UTC(),
	}
	s.groups = append(s.groups, g)
	s.commit(Change{Kind: GroupCreated, ID: g.ID})
	return g
}

// UpdateGroup shallow-merges patch into the group with the given id.
func (s *Store) UpdateGroup(id string, patch models.GroupPatch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.groupIndex(id)
	if i < 0 {
		return false
	}
	if patch.Name != nil {
		s.groups[i].Name = *patch.Name
	}
	if patch.Color != nil {
		s.groups[i].Color = *patch.Color
	}
	s.commit(Change{Kind: GroupUpdated, ID: id})
	return true
}

// RenameGroup sets a group's name.
func (s *Store) RenameGroup(id, name string) bool {
	return s.UpdateGroup(id, models.GroupPatch{Name: &name})
}

// DeleteGroup removes a group. Its member books stay on the shelf, ungrouped.
func (s *Store) DeleteGroup(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.groupIndex(id)
	if i < 0 {
		return false
	}
	s.groups = slices.Delete(slices.Clone(s.groups), i, i+1)
	s.commit(Change{Kind: GroupDeleted, ID: id})
	return true
}

// AddBookToGroup appends bookID to the group's members unless already present.
// Membership in other groups is not checked.
func (s *Store) AddBookToGroup(groupID, bookID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.groupIndex(groupID)
	if i < 0 || s.groups[i].Contains(bookID) {
		return false
	}
	s.groups[i].BookIDs = append(slices.Clone(s.groups[i].BookIDs), bookID)
	s.commit(Change{Kind: GroupUpdated, ID: groupID})
	return true
}

// RemoveBookFromGroup drops bookID from the group's members. A group left
// without members is deleted in the same step.
func (s *Store) RemoveBookFromGroup(groupID, bookID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.groupIndex(groupID)
	if i < 0 || !s.groups[i].Contains(bookID) {
		return false
	}
	ids := slices.DeleteFunc(slices.Clone(s.groups[i].BookIDs), func(id string) bool { return id == bookID })
	if len(ids) == 0 {
		s.groups = slices.Delete(slices.Clone(s.groups), i, i+1)
		s.commit(Change{Kind: GroupDeleted, ID: groupID})
		return true
	}
	s.groups[i].BookIDs = ids
	s.commit(Change{Kind: GroupUpdated, ID: groupID})
	return true
}

// ReorderBooksInGroup replaces the group's member list wholesale. The new list
// is not checked against the current membership.
func (s *Store) ReorderBooksInGroup(groupID string, orderedIDs []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.groupIndex(groupID)
	if i < 0 {
		return false
	}
	s.groups[i].BookIDs = nonNil(slices.Clone(orderedIDs))
	s.commit(Change{Kind: GroupUpdated, ID: groupID})
	return true
}

// ReorderGroups applies the partial-reorder rule of ReorderBooks to groups.
func (s *Store) ReorderGroups(orderedIDs []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = partialReorder(s.groups, orderedIDs, func(g models.Group) string { return g.ID })
	s.commit(Change{Kind: GroupsReordered})
	return true
}

// SwapBookAndGroup exchanges the display positions of a book and a group.
// When the group's index is not after the book's, the book is moved to the
// group's index in the books array; otherwise the group is moved to the
// book's index in the groups array. Membership is untouched.
func (s *Store) SwapBookAndGroup(bookID, groupID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	bi := s.bookIndex(bookID)
	gi := s.groupIndex(groupID)
	if bi < 0 || gi < 0 {
		return false
	}
	if gi <= bi {
		s.books = moveItem(s.books, bi, gi)
	} else {
		s.groups = moveItem(s.groups, gi, bi)
	}
	s.commit(Change{Kind: BooksReordered, ID: bookID})
	return true
}
