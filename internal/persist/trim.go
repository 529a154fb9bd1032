package persist

import (
	"github.com/starford/flipshelf/internal/models"
)

// DefaultCoverLimit is the longest cover string kept in the trimmed form.
const DefaultCoverLimit = 120000

// Trim returns the cache form of snap: books and recycle-bin entries lose
// their pages (PagesLength records how many there were) and any cover of
// coverLimit characters or more.
func Trim(snap models.Snapshot, coverLimit int) models.Snapshot {
	out := models.Snapshot{
		Books:      make([]models.Book, len(snap.Books)),
		Groups:     snap.Groups,
		RecycleBin: make([]models.RecycleBinEntry, len(snap.RecycleBin)),
		Quotes:     snap.Quotes,
	}
	for i, b := range snap.Books {
		out.Books[i] = trimBook(b, coverLimit)
	}
	for i, e := range snap.RecycleBin {
		e.Book = trimBook(e.Book, coverLimit)
		out.RecycleBin[i] = e
	}
	return out
}

func trimBook(b models.Book, coverLimit int) models.Book {
	b.PagesLength = b.PageCount()
	b.Pages = nil
	if b.CoverImage != nil && len(*b.CoverImage) >= coverLimit {
		b.CoverImage = nil
	}
	return b
}
