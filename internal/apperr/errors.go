// Package apperr holds the error values shared across Flipshelf packages.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")

	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrNoSupportedFiles  = errors.New("please upload valid PDF, EPUB, or TXT files")

	ErrQuotaExceeded = errors.New("quota exceeded")

	ErrNoText               = errors.New("text-to-speech is not available for image-based pages")
	ErrNarrationUnavailable = errors.New("narration unavailable")
)

// ParseError reports a document that could not be turned into pages.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse book %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
