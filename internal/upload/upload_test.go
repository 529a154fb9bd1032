package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/flipshelf/internal/apperr"
	"github.com/starford/flipshelf/internal/library"
	"github.com/starford/flipshelf/internal/models"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var okParser = ParserFunc(func(_ context.Context, f File, _ string) (models.ParsedBook, error) {
	if string(f.Data) == "corrupt" {
		return models.ParsedBook{}, &apperr.ParseError{File: f.Name, Err: errors.New("bad bytes")}
	}
	return models.ParsedBook{
		Title:  f.Name,
		Format: models.FormatTXT,
		Pages:  []models.Page{{Text: string(f.Data), PageNumber: 1}},
	}, nil
})

func txt(name, body string) File { return File{Name: name, MIME: MIMETXT, Data: []byte(body)} }

func TestProcessDeduplicates(t *testing.T) {
	lib := library.New()
	p := New(lib, okParser, discard())

	sum, err := p.Process(context.Background(), []File{txt("a.txt", "same")})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Success)
	assert.Empty(t, sum.Message())

	sum, err = p.Process(context.Background(), []File{txt("copy.txt", "same")})
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Success)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, "1 already exist", sum.Message())
	assert.Len(t, lib.Books(), 1)
}

func TestProcessSkipsRecycledDuplicates(t *testing.T) {
	lib := library.New()
	p := New(lib, okParser, discard())

	sum, err := p.Process(context.Background(), []File{txt("a.txt", "body")})
	require.NoError(t, err)
	lib.DeleteBook(sum.Added[0].ID)

	sum, err = p.Process(context.Background(), []File{txt("a.txt", "body")})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Skipped)
	assert.Empty(t, lib.Books())
	assert.Len(t, lib.RecycleBin(), 1)
}

func TestProcessContinuesPastFailures(t *testing.T) {
	lib := library.New()
	var seen []string
	p := New(lib, okParser, discard(), WithProgress(func(name string, index, total int) {
		seen = append(seen, name)
		assert.Equal(t, 3, total)
	}))

	sum, err := p.Process(context.Background(), []File{
		txt("one.txt", "first"),
		txt("bad.txt", "corrupt"),
		txt("two.txt", "second"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one.txt", "bad.txt", "two.txt"}, seen)
	assert.Equal(t, 2, sum.Success)
	assert.Equal(t, 1, sum.Failed)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, "bad.txt", sum.Failures[0].File)
	assert.Equal(t, "2 uploaded, 1 failed", sum.Message())

	books := lib.Books()
	require.Len(t, books, 2)
	assert.Equal(t, "one.txt", books[0].Title)
	assert.NotEmpty(t, books[0].FileHash)
}

func TestProcessRejectsUnsupportedBatch(t *testing.T) {
	p := New(library.New(), okParser, discard())

	_, err := p.Process(context.Background(), []File{{Name: "x.png", MIME: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}})
	assert.ErrorIs(t, err, apperr.ErrNoSupportedFiles)

	sum, err := p.Process(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, sum.Success)
}

func TestProcessStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(library.New(), okParser, discard())

	_, err := p.Process(ctx, []File{txt("a.txt", "x")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFilterSupportedSniffs(t *testing.T) {
	files := []File{
		{Name: "doc.pdf", Data: []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")},
		{Name: "notes", MIME: "application/octet-stream", Data: []byte("plain words\n")},
		{Name: "pic.gif", Data: []byte("GIF89a\x01\x00\x01\x00")},
		{Name: "book.epub", MIME: "application/epub+zip", Data: []byte("PK")},
	}
	got := FilterSupported(files)
	require.Len(t, got, 3)
	assert.Equal(t, MIMEPDF, got[0].MIME)
	assert.Equal(t, MIMETXT, got[1].MIME)
	assert.Equal(t, MIMEEPUB, got[2].MIME)
}

func TestSummaryMessage(t *testing.T) {
	assert.Equal(t, "", Summary{Success: 3}.Message())
	assert.Equal(t, "1 uploaded, 2 already exist, 1 failed", Summary{Success: 1, Skipped: 2, Failed: 1}.Message())
	assert.Equal(t, "1 failed", Summary{Failed: 1}.Message())
}
