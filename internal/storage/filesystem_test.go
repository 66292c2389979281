package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAndPath(t *testing.T) {
	base := t.TempDir()
	s, err := NewFileStore(base)
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}

	key, err := s.Write(context.Background(), "videos/final_hl_1.mp4", []byte("bytes"))
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	if key != "videos/final_hl_1.mp4" {
		t.Fatalf("key = %q", key)
	}

	path, err := s.Path(key)
	if err != nil {
		t.Fatalf("Path returned error: %v", err)
	}
	if !strings.HasPrefix(path, base) {
		t.Fatalf("path %q escapes base %q", path, base)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "bytes" {
		t.Fatalf("read back: %q, %v", data, err)
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("parent dir missing: %v", err)
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore returned error: %v", err)
	}
	if _, err := s.Path("../escape.mp4"); err == nil {
		t.Fatal("expected error for traversal key")
	}
	if _, err := s.Write(context.Background(), "", nil); err == nil {
		t.Fatal("expected error for empty key")
	}
}
