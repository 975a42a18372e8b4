package storage

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"chatrelay/internal/config"
)

func newTestStore(t *testing.T) (*Store, *config.Config) {
	t.Helper()
	base := t.TempDir()
	cfg := &config.Config{
		UploadDir:     filepath.Join(base, "uploads"),
		PublicDir:     filepath.Join(base, "static", "uploads"),
		PublicBaseURL: "http://localhost:5001",
	}
	store := New(cfg, zerolog.Nop())
	if err := store.EnsureReady(); err != nil {
		t.Fatalf("ensure ready: %v", err)
	}
	return store, cfg
}

func TestEnsureReadyIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	if err := store.EnsureReady(); err != nil {
		t.Fatalf("second ensure ready: %v", err)
	}
}

func TestSaveWritesBothCopies(t *testing.T) {
	store, cfg := newTestStore(t)

	content := []byte("hello upload")
	path, err := store.Save("greeting_20240101-000000.txt", content)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if path != filepath.Join(cfg.UploadDir, "greeting_20240101-000000.txt") {
		t.Fatalf("unexpected private path %q", path)
	}

	private, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read private copy: %v", err)
	}
	public, err := os.ReadFile(filepath.Join(cfg.PublicDir, "greeting_20240101-000000.txt"))
	if err != nil {
		t.Fatalf("read public copy: %v", err)
	}
	if !bytes.Equal(private, content) || !bytes.Equal(public, content) {
		t.Fatalf("round-trip mismatch: private=%q public=%q", private, public)
	}
}

func TestSaveSucceedsWhenMirrorFails(t *testing.T) {
	store, cfg := newTestStore(t)

	// Break the mirror by replacing the public directory with a file.
	if err := os.RemoveAll(cfg.PublicDir); err != nil {
		t.Fatalf("remove public dir: %v", err)
	}
	if err := os.WriteFile(cfg.PublicDir, []byte("not a directory"), 0o644); err != nil {
		t.Fatalf("block public dir: %v", err)
	}

	if _, err := store.Save("survivor.txt", []byte("data")); err != nil {
		t.Fatalf("save must succeed when only the mirror fails: %v", err)
	}
	if !store.Exists("survivor.txt") {
		t.Fatalf("private copy missing after mirror failure")
	}
}

func TestListReturnsExactlyTheSavedFiles(t *testing.T) {
	store, cfg := newTestStore(t)

	want := map[string]bool{}
	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("file%d.txt", i)
		if _, err := store.Save(name, []byte("x")); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
		want[name] = true
	}
	// Subdirectories must not show up in the listing.
	if err := os.MkdirAll(filepath.Join(cfg.UploadDir, "nested"), 0o755); err != nil {
		t.Fatalf("mkdir nested: %v", err)
	}

	files, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != len(want) {
		t.Fatalf("expected %d files, got %d", len(want), len(files))
	}
	for _, f := range files {
		if !want[f.Filename] {
			t.Fatalf("unexpected file %q in listing", f.Filename)
		}
		if f.Size != 1 {
			t.Fatalf("unexpected size %d for %q", f.Size, f.Filename)
		}
		if f.URL != store.PublicURL(f.Filename) {
			t.Fatalf("URL mismatch for %q: %s", f.Filename, f.URL)
		}
		if f.Modified == 0 {
			t.Fatalf("missing modified time for %q", f.Filename)
		}
	}
}

func TestPublicURL(t *testing.T) {
	store, _ := newTestStore(t)
	got := store.PublicURL("a_20240101-000000.png")
	want := "http://localhost:5001/static/uploads/a_20240101-000000.png"
	if got != want {
		t.Fatalf("PublicURL = %q, want %q", got, want)
	}
}

func TestEnsureReadyFailsOnUnwritableParent(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	base := t.TempDir()
	blocked := filepath.Join(base, "blocked")
	if err := os.MkdirAll(blocked, 0o500); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfg := &config.Config{
		UploadDir:     filepath.Join(blocked, "uploads"),
		PublicDir:     filepath.Join(base, "public"),
		PublicBaseURL: "http://localhost:5001",
	}
	store := New(cfg, zerolog.Nop())
	if err := store.EnsureReady(); err == nil {
		t.Fatalf("expected EnsureReady to fail")
	}
}
