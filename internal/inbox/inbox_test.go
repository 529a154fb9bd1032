package inbox

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/starford/flipshelf/internal/library"
	"github.com/starford/flipshelf/internal/parser"
	"github.com/starford/flipshelf/internal/testutil"
	"github.com/starford/flipshelf/internal/upload"
)

func inboxEnv(t *testing.T) (string, *library.Store, *Watcher) {
	t.Helper()
	dir := t.TempDir()
	lib := library.New()
	logger := testutil.Logger()
	pipeline := upload.New(lib, parser.New(parser.DefaultCharsPerPage), logger)
	return dir, lib, New(dir, pipeline, logger, WithSettle(50*time.Millisecond))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestScan_ImportsAndMoves(t *testing.T) {
	dir, lib, w := inboxEnv(t)
	for _, d := range []string{ImportedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writeFile(t, filepath.Join(dir, "walden.txt"), "I went to the woods because I wished to live deliberately.")
	writeFile(t, filepath.Join(dir, ".hidden.txt"), "ignored")
	writeFile(t, filepath.Join(dir, "photo.png"), "\x89PNG\r\n\x1a\n\x00\x00\x00\x00")

	sum, err := w.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Success != 1 || sum.Failed != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if got := len(lib.Books()); got != 1 {
		t.Fatalf("books = %d, want 1", got)
	}
	if lib.Books()[0].Title != "walden" {
		t.Errorf("title = %q", lib.Books()[0].Title)
	}
	if !exists(filepath.Join(dir, ImportedDir, "walden.txt")) {
		t.Error("walden.txt should move to imported/")
	}
	if !exists(filepath.Join(dir, FailedDir, "photo.png")) {
		t.Error("photo.png should move to failed/")
	}
	if !exists(filepath.Join(dir, ".hidden.txt")) {
		t.Error("dotfiles stay in place")
	}
}

func TestScan_DuplicateGoesToImported(t *testing.T) {
	dir, lib, w := inboxEnv(t)
	for _, d := range []string{ImportedDir, FailedDir} {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	writeFile(t, filepath.Join(dir, "a.txt"), "same words")
	if _, err := w.Scan(context.Background()); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "a.txt"), "same words")
	sum, err := w.Scan(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", sum.Skipped)
	}
	if len(lib.Books()) != 1 {
		t.Errorf("books = %d, want 1", len(lib.Books()))
	}
	entries, _ := os.ReadDir(filepath.Join(dir, ImportedDir))
	if len(entries) != 2 {
		t.Errorf("imported/ has %d files, want 2", len(entries))
	}
}

func TestRun_PicksUpNewFiles(t *testing.T) {
	dir, lib, _ := inboxEnv(t)
	logger := testutil.Logger()
	pipeline := upload.New(lib, parser.New(parser.DefaultCharsPerPage), logger)

	var mu sync.Mutex
	var batches []upload.Summary
	w := New(dir, pipeline, logger, WithSettle(50*time.Millisecond), WithCallback(func(sum upload.Summary) {
		mu.Lock()
		batches = append(batches, sum)
		mu.Unlock()
	}))

	writeFile(t, filepath.Join(dir, "early.txt"), "already here before start")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	testutil.Eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return len(lib.Books()) == 1
	}, "existing file should be imported on start")

	writeFile(t, filepath.Join(dir, "late.txt"), "dropped while watching")

	testutil.Eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		return len(lib.Books()) == 2 && exists(filepath.Join(dir, ImportedDir, "late.txt"))
	}, "new file should be imported and moved")

	mu.Lock()
	n := len(batches)
	mu.Unlock()
	if n < 2 {
		t.Errorf("callback batches = %d, want >= 2", n)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Run did not stop after cancel")
	}
}

func TestSkipName(t *testing.T) {
	cases := map[string]bool{
		"book.pdf":             false,
		".DS_Store":            true,
		"book.pdf.part":        true,
		"book.epub.crdownload": true,
		"notes.txt~":           true,
	}
	for name, want := range cases {
		if got := skipName(name); got != want {
			t.Errorf("skipName(%q) = %v, want %v", name, got, want)
		}
	}
}
