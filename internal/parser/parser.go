// Package parser turns uploaded PDF, EPUB and plain-text files into page
// sequences.
package parser

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/starford/flipshelf/internal/apperr"
	"github.com/starford/flipshelf/internal/models"
	"github.com/starford/flipshelf/internal/upload"
)

// DefaultCharsPerPage is the approximate page size for reflowable text.
const DefaultCharsPerPage = 2000

var paragraphBreak = regexp.MustCompile(`\n\n+`)

// Parser dispatches on MIME type.
type Parser struct {
	charsPerPage int
}

// New creates a parser. charsPerPage <= 0 selects DefaultCharsPerPage.
func New(charsPerPage int) *Parser {
	if charsPerPage <= 0 {
		charsPerPage = DefaultCharsPerPage
	}
	return &Parser{charsPerPage: charsPerPage}
}

// Parse implements upload.Parser. Every failure is returned as an
// *apperr.ParseError.
func (p *Parser) Parse(ctx context.Context, f upload.File, fileHash string) (models.ParsedBook, error) {
	book := models.ParsedBook{
		Title:    strings.TrimSuffix(f.Name, filepath.Ext(f.Name)),
		Author:   models.DefaultAuthor,
		FileHash: fileHash,
		Metadata: map[string]any{},
	}

	var err error
	switch upload.DetectMIME(f) {
	case upload.MIMEPDF:
		err = p.parsePDF(ctx, f.Data, &book)
	case upload.MIMEEPUB:
		err = p.parseEPUB(ctx, f.Data, &book)
	case upload.MIMETXT:
		err = p.parseTXT(f.Data, &book)
	default:
		err = apperr.ErrUnsupportedFormat
	}
	if err != nil {
		return models.ParsedBook{}, &apperr.ParseError{File: f.Name, Err: err}
	}
	book.TotalPages = len(book.Pages)
	return book, nil
}

// Paginate splits text on blank-line paragraph boundaries and packs
// paragraphs into pages of roughly charsPerPage characters. A paragraph is
// never split, so a page may run over. The result is never empty.
func Paginate(text string, charsPerPage int) []string {
	var pages []string
	var cur string
	for _, para := range paragraphBreak.Split(text, -1) {
		if utf8.RuneCountInString(cur)+utf8.RuneCountInString(para) > charsPerPage && cur != "" {
			pages = append(pages, strings.TrimSpace(cur))
			cur = para
			continue
		}
		if cur != "" {
			cur += "\n\n"
		}
		cur += para
	}
	if cur != "" {
		pages = append(pages, strings.TrimSpace(cur))
	}
	if len(pages) == 0 {
		return []string{text}
	}
	return pages
}

func numberPages(texts []string, first int, chapter string) []models.Page {
	out := make([]models.Page, len(texts))
	for i, t := range texts {
		out[i] = models.Page{Text: t, PageNumber: first + i, Chapter: chapter}
	}
	return out
}

func metaString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
		if v != nil {
			return strings.TrimSpace(fmt.Sprint(v))
		}
	}
	return ""
}
