package models

import "time"

// DefaultGroupColor is the accent color new groups start with.
const DefaultGroupColor = "#89B4FA"

// GroupPalette lists the colors a group may be tagged with.
var GroupPalette = []string{
	"#89B4FA", "#F38BA8", "#A6E3A1", "#FAB387",
	"#CBA6F7", "#F9E2AF", "#94E2D5", "#EBA0AC",
	"#F5C2E7", "#74C7EC", "#B4BEFE", "#89DCEB",
}

// Group is a named, ordered, colored collection of book ids rendered as one stacked tile.
type Group struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	BookIDs   []string  `json:"bookIds"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"createdAt"`
}

// Contains reports whether bookID is a member of the group.
func (g *Group) Contains(bookID string) bool {
	for _, id := range g.BookIDs {
		if id == bookID {
			return true
		}
	}
	return false
}

// GroupPatch carries the fields updateGroup may merge.
type GroupPatch struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// Quote is a saved text excerpt. BookID is not validated against live books.
type Quote struct {
	ID        string    `json:"id"`
	BookID    string    `json:"bookId"`
	Text      string    `json:"text"`
	Page      int       `json:"page"`
	CreatedAt time.Time `json:"createdAt"`
	Note      string    `json:"note"`
}

// Snapshot is the full library state handed to persistence and observers.
type Snapshot struct {
	Books      []Book            `json:"books"`
	Groups     []Group           `json:"groups"`
	RecycleBin []RecycleBinEntry `json:"recycleBin"`
	Quotes     []Quote           `json:"quotes"`
}
