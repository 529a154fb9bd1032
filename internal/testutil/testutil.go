// Package testutil provides shared test helpers for setting up data dirs and databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/starford/flipshelf/internal/blobstore"
	"github.com/starford/flipshelf/internal/storage"
)

// TestDB creates a temporary SQLite blob store that is automatically cleaned up.
func TestDB(t *testing.T) *blobstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "flipshelf-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := blobstore.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// CacheDir opens a storage.Dir in a fresh temporary directory.
func CacheDir(t *testing.T) *storage.Dir {
	t.Helper()
	d, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return d
}

// Logger returns a logger that discards everything below error.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Eventually polls fn every tick until it returns true or timeout elapses.
func Eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}
