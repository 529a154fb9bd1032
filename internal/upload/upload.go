// Package upload runs a batch of user files through hashing, deduplication
// and parsing into the library, one file at a time.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/starford/flipshelf/internal/apperr"
	"github.com/starford/flipshelf/internal/checksum"
	"github.com/starford/flipshelf/internal/models"
)

// Accepted MIME types.
const (
	MIMEPDF  = "application/pdf"
	MIMEEPUB = "application/epub+zip"
	MIMETXT  = "text/plain"
)

// File is one uploaded document.
type File struct {
	Name string
	// MIME is the declared content type; it is sniffed from Data when empty
	// or generic.
	MIME string
	Data []byte
}

// Parser turns a file into a parsed book.
type Parser interface {
	Parse(ctx context.Context, f File, fileHash string) (models.ParsedBook, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(ctx context.Context, f File, fileHash string) (models.ParsedBook, error)

// Parse calls fn.
func (fn ParserFunc) Parse(ctx context.Context, f File, fileHash string) (models.ParsedBook, error) {
	return fn(ctx, f, fileHash)
}

// Library is the store surface the pipeline writes to.
type Library interface {
	BookExists(fileHash string) bool
	AddBook(p models.ParsedBook) models.Book
}

// ProgressFunc is called before each file is processed; index is 1-based.
type ProgressFunc func(name string, index, total int)

// Failure records one file that could not be added.
type Failure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Summary counts the outcome of a batch.
type Summary struct {
	Success  int           `json:"success"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Added    []models.Book `json:"-"`
	Failures []Failure     `json:"failures,omitempty"`
}

// Message returns the user-facing batch summary. It is empty when every
// file was added.
func (s Summary) Message() string {
	if s.Failed == 0 && s.Skipped == 0 {
		return ""
	}
	var parts []string
	if s.Success > 0 {
		parts = append(parts, fmt.Sprintf("%d uploaded", s.Success))
	}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d already exist", s.Skipped))
	}
	if s.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", s.Failed))
	}
	return strings.Join(parts, ", ")
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithHash replaces the content-identity function.
func WithHash(fn func([]byte) string) Option {
	return func(p *Pipeline) { p.hash = fn }
}

// WithProgress installs a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Pipeline) { p.progress = fn }
}

// Pipeline processes upload batches.
type Pipeline struct {
	lib      Library
	parser   Parser
	hash     func([]byte) string
	progress ProgressFunc
	logger   *slog.Logger
}

// New creates a pipeline writing to lib.
func New(lib Library, parser Parser, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		lib:    lib,
		parser: parser,
		hash:   checksum.Sum,
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process drops unsupported files, then handles the rest in order. A file
// that fails to parse is counted and the batch continues. The returned error
// is apperr.ErrNoSupportedFiles when nothing in a non-empty batch is
// supported, or the context error when ctx ends mid-batch; the summary then
// covers the files handled so far.
func (p *Pipeline) Process(ctx context.Context, files []File) (Summary, error) {
	var sum Summary
	if len(files) == 0 {
		return sum, nil
	}
	supported := FilterSupported(files)
	if len(supported) == 0 {
		return sum, apperr.ErrNoSupportedFiles
	}
	if dropped := len(files) - len(supported); dropped > 0 {
		p.logger.Info("unsupported files dropped", slog.Int("count", dropped))
	}

	for i, f := range supported {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if p.progress != nil {
			p.progress(f.Name, i+1, len(supported))
		}

		fileHash := p.hash(f.Data)
		if p.lib.BookExists(fileHash) {
			sum.Skipped++
			continue
		}

		parsed, err := p.parser.Parse(ctx, f, fileHash)
		if err != nil {
			p.logger.Warn("upload failed", slog.String("file", f.Name), slog.String("error", err.Error()))
			sum.Failed++
			sum.Failures = append(sum.Failures, Failure{File: f.Name, Error: err.Error()})
			continue
		}
		parsed.FileHash = fileHash
		sum.Added = append(sum.Added, p.lib.AddBook(parsed))
		sum.Success++
	}
	return sum, nil
}

// FilterSupported keeps the files whose MIME type is PDF, EPUB or plain
// text. Files without a usable declared type are sniffed; the detected type
// is stored back on the returned copy.
func FilterSupported(files []File) []File {
	out := make([]File, 0, len(files))
	for _, f := range files {
		f.MIME = DetectMIME(f)
		if Supported(f.MIME) {
			out = append(out, f)
		}
	}
	return out
}

// DetectMIME returns the declared type when it is specific, otherwise the
// type sniffed from the content.
func DetectMIME(f File) string {
	declared := baseMIME(f.MIME)
	if declared != "" && declared != "application/octet-stream" && declared != "application/zip" {
		return declared
	}
	return baseMIME(mimetype.Detect(f.Data).String())
}

// Supported reports whether mime is one of the accepted types.
func Supported(mime string) bool {
	switch baseMIME(mime) {
	case MIMEPDF, MIMEEPUB, MIMETXT:
		return true
	}
	return false
}

func baseMIME(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}
