package storage

import (
	"context"
	"strings"
	"testing"
)

func TestSaveAndRead(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	content := []byte("col1,col2\na,b")
	path, err := store.Save(context.Background(), 42, "my report.csv", content)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if !strings.HasPrefix(path, "uploads/42/") {
		t.Errorf("Storage path should be scoped to the user, got %q", path)
	}
	if !strings.HasSuffix(path, "_my_report.csv") {
		t.Errorf("File name should be sanitized, got %q", path)
	}

	got, err := store.Read(context.Background(), path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("Read back %q, want %q", got, content)
	}
}

func TestSaveStripsPathComponents(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	path, err := store.Save(context.Background(), 1, "../../etc/passwd", []byte("x"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if strings.Contains(path, "..") {
		t.Errorf("Path traversal components must be stripped, got %q", path)
	}
}

func TestReadMissingFile(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	if _, err := store.Read(context.Background(), "uploads/1/missing.csv"); err == nil {
		t.Error("Reading a missing file should fail")
	}
}
