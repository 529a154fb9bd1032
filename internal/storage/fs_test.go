package storage

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/starford/flipshelf/internal/apperr"
)

func openTemp(t *testing.T) *Dir {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return d
}

func TestOpen_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "a", "b")
	d, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if info, err := os.Stat(d.Root()); err != nil || !info.IsDir() {
		t.Fatalf("root not created: %v", err)
	}
	if !filepath.IsAbs(d.Root()) {
		t.Errorf("Root() = %q, want absolute", d.Root())
	}
}

func TestOpen_RejectsFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(p); err == nil {
		t.Fatal("expected error for a regular file")
	}
}

func TestWriteRead(t *testing.T) {
	d := openTemp(t)
	if err := d.Write("library.json", []byte(`{"books":[]}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := d.Read("library.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != `{"books":[]}` {
		t.Errorf("Read = %q", got)
	}

	if err := d.Write("library.json", []byte("v2")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = d.Read("library.json")
	if string(got) != "v2" {
		t.Errorf("after overwrite = %q", got)
	}
}

func TestRead_Missing(t *testing.T) {
	d := openTemp(t)
	_, err := d.Read("nope.json")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestWrite_LeavesNoTempFiles(t *testing.T) {
	d := openTemp(t)
	for i := 0; i < 3; i++ {
		if err := d.Write("settings.json", []byte("{}")); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := os.ReadDir(d.Root())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), tempPrefix) {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestInvalidNames(t *testing.T) {
	d := openTemp(t)
	for _, name := range []string{"", ".", "..", "../escape", "a/b", `a\b`, tempPrefix + "x"} {
		if err := d.Write(name, []byte("x")); err == nil {
			t.Errorf("Write(%q) should fail", name)
		}
		if _, err := d.Read(name); err == nil || errors.Is(err, apperr.ErrNotFound) {
			t.Errorf("Read(%q) err = %v, want invalid name", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(d.Root()), "escape")); !os.IsNotExist(err) {
		t.Error("write escaped the root")
	}
}

func TestRemove(t *testing.T) {
	d := openTemp(t)
	_ = d.Write("gone.json", []byte("bye"))
	if err := d.Remove("gone.json"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := d.Read("gone.json"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := d.Remove("gone.json"); err != nil {
		t.Errorf("second Remove: %v", err)
	}
}

func TestNames(t *testing.T) {
	d := openTemp(t)
	for _, n := range []string{"settings.json", "library.json"} {
		if err := d.Write(n, []byte("{}")); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(d.Root(), "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(d.Root(), tempPrefix+"123"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	names, err := d.Names()
	if err != nil {
		t.Fatalf("Names: %v", err)
	}
	want := []string{"library.json", "settings.json"}
	if !slices.Equal(names, want) {
		t.Errorf("Names = %v, want %v", names, want)
	}
}

func TestSize(t *testing.T) {
	d := openTemp(t)
	_ = d.Write("a.json", []byte("12345"))
	_ = d.Write("b.json", []byte("123"))

	total, err := d.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if total != 8 {
		t.Errorf("Size() = %d, want 8", total)
	}
	without, err := d.Size("a.json")
	if err != nil {
		t.Fatalf("Size(skip): %v", err)
	}
	if without != 3 {
		t.Errorf("Size(a.json) = %d, want 3", without)
	}
}
