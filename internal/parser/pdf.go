package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/starford/flipshelf/internal/models"
)

// parsePDF extracts the text layer of every page. Pages without text stay in
// the sequence with empty Text so page numbers line up with the document.
func (p *Parser) parsePDF(ctx context.Context, data []byte, book *models.ParsedBook) (err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	n := r.NumPage()
	if n == 0 {
		return errors.New("pdf has no pages")
	}

	info := r.Trailer().Key("Info")
	if t := strings.TrimSpace(info.Key("Title").Text()); t != "" {
		book.Title = t
	}
	if a := strings.TrimSpace(info.Key("Author").Text()); a != "" {
		book.Author = a
	}
	if s := strings.TrimSpace(info.Key("Subject").Text()); s != "" {
		book.Metadata["subject"] = s
	}
	book.Metadata["numPages"] = n

	book.Format = models.FormatPDF
	book.Pages = make([]models.Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		page := models.Page{PageNumber: i}
		if pg := r.Page(i); !pg.V.IsNull() {
			text, err := pg.GetPlainText(nil)
			if err != nil {
				return fmt.Errorf("page %d: %w", i, err)
			}
			page.Text = strings.Join(strings.Fields(text), " ")
		}
		book.Pages = append(book.Pages, page)
	}
	return nil
}
