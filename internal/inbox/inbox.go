// Package inbox watches an import directory and feeds dropped documents
// into the upload pipeline. Handled files are moved to imported/ or failed/.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gabriel-vasile/mimetype"

	"github.com/starford/flipshelf/internal/upload"
)

const (
	// ImportedDir holds files that were added or already in the library.
	ImportedDir = "imported"
	// FailedDir holds files that were unsupported or failed to parse.
	FailedDir = "failed"

	defaultSettle = 500 * time.Millisecond
)

// Importer adds a batch of files to the library.
type Importer interface {
	Process(ctx context.Context, files []upload.File) (upload.Summary, error)
}

// Callback is called after every processed batch.
type Callback func(sum upload.Summary)

// Option configures a Watcher.
type Option func(*Watcher)

// WithSettle sets how long the directory must be quiet before a batch runs.
func WithSettle(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// WithCallback registers fn to receive each batch summary.
func WithCallback(fn Callback) Option {
	return func(w *Watcher) { w.cb = fn }
}

// Watcher imports files dropped into a directory.
type Watcher struct {
	dir      string
	importer Importer
	logger   *slog.Logger
	settle   time.Duration
	cb       Callback
}

// New creates a watcher over dir.
func New(dir string, importer Importer, logger *slog.Logger, opts ...Option) *Watcher {
	w := &Watcher{dir: dir, importer: importer, logger: logger, settle: defaultSettle}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Run creates the inbox layout, imports whatever is already there and then
// imports new files until ctx is cancelled. Bursts of events are coalesced
// so a file still being copied is picked up once it settles.
func (w *Watcher) Run(ctx context.Context) error {
	for _, d := range []string{w.dir, filepath.Join(w.dir, ImportedDir), filepath.Join(w.dir, FailedDir)} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("inbox: mkdir: %w", err)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("inbox: watch %s: %w", w.dir, err)
	}
	w.logger.Info("inbox: started", slog.String("dir", w.dir))

	if _, err := w.Scan(ctx); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Warn("inbox: initial scan failed", slog.String("error", err.Error()))
	}

	var settleTimer *time.Timer
	var settleCh <-chan time.Time
	schedule := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(w.settle)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(w.settle)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			w.logger.Info("inbox: stopped")
			return nil

		case <-settleCh:
			if _, err := w.Scan(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Warn("inbox: scan failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Dir(ev.Name) != filepath.Clean(w.dir) || skipName(filepath.Base(ev.Name)) {
				continue
			}
			schedule()

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// Scan imports every regular file directly inside the inbox and moves each
// one out of the way. The returned summary covers the whole pass.
func (w *Watcher) Scan(ctx context.Context) (upload.Summary, error) {
	var total upload.Summary

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return total, fmt.Errorf("inbox: read dir: %w", err)
	}

	for _, e := range entries {
		if !e.Type().IsRegular() || skipName(e.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}

		path := filepath.Join(w.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			w.logger.Warn("inbox: read failed", slog.String("file", e.Name()), slog.String("error", err.Error()))
			continue
		}

		f := upload.File{Name: e.Name(), MIME: detectMIME(e.Name(), data), Data: data}
		sum, err := w.importer.Process(ctx, []upload.File{f})
		dest := ImportedDir
		switch {
		case err != nil && errors.Is(err, context.Canceled):
			return total, err
		case err != nil:
			dest = FailedDir
			total.Failed++
			total.Failures = append(total.Failures, upload.Failure{File: e.Name(), Error: err.Error()})
		case sum.Failed > 0:
			dest = FailedDir
		}
		merge(&total, sum)

		if err := moveInto(path, filepath.Join(w.dir, dest)); err != nil {
			w.logger.Error("inbox: move failed", slog.String("file", e.Name()), slog.String("error", err.Error()))
			continue
		}
		w.logger.Info("inbox: processed", slog.String("file", e.Name()), slog.String("to", dest))
	}

	if w.cb != nil && (total.Success+total.Skipped+total.Failed) > 0 {
		w.cb(total)
	}
	return total, nil
}

// detectMIME sniffs the content and falls back to the extension for plain
// text, which sniffing reports with a charset parameter.
func detectMIME(name string, data []byte) string {
	m := mimetype.Detect(data)
	switch {
	case m.Is(upload.MIMEPDF), m.Is(upload.MIMEEPUB):
		return m.String()
	case strings.EqualFold(filepath.Ext(name), ".epub") && m.Is("application/zip"):
		return upload.MIMEEPUB
	case m.Is(upload.MIMETXT):
		return upload.MIMETXT
	}
	return m.String()
}

func merge(dst *upload.Summary, src upload.Summary) {
	dst.Success += src.Success
	dst.Skipped += src.Skipped
	dst.Failed += src.Failed
	dst.Added = append(dst.Added, src.Added...)
	dst.Failures = append(dst.Failures, src.Failures...)
}

// moveInto renames path into dir, suffixing the name when it is taken.
func moveInto(path, dir string) error {
	name := filepath.Base(path)
	target := filepath.Join(dir, name)
	if _, err := os.Stat(target); err == nil {
		ext := filepath.Ext(name)
		target = filepath.Join(dir, strings.TrimSuffix(name, ext)+"-"+strconv.FormatInt(time.Now().UnixNano(), 10)+ext)
	}
	return os.Rename(path, target)
}

// skipName ignores dotfiles and in-progress downloads.
func skipName(name string) bool {
	return strings.HasPrefix(name, ".") ||
		strings.HasSuffix(name, ".part") ||
		strings.HasSuffix(name, ".crdownload") ||
		strings.HasSuffix(name, "~")
}
