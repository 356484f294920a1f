package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileStore keeps uploaded spreadsheets on local disk under a content path
// of the form uploads/{userID}/{timestamp}_{filename}. The path, not the
// bytes, is what the rest of the system carries around.
type FileStore struct {
	baseDir string
}

// NewFileStore creates a file store rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// Save writes the uploaded bytes and returns the generated storage path.
func (s *FileStore) Save(ctx context.Context, userID uint, fileName string, data []byte) (string, error) {
	relPath := filepath.Join(
		"uploads",
		fmt.Sprintf("%d", userID),
		fmt.Sprintf("%d_%s", time.Now().UnixMilli(), sanitizeFileName(fileName)),
	)

	fullPath := filepath.Join(s.baseDir, relPath)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("create user dir: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}

	return relPath, nil
}

// Read returns the stored bytes for a storage path.
func (s *FileStore) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, path))
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", path, err)
	}
	return data, nil
}

// sanitizeFileName strips path separators and whitespace from a client-
// provided file name.
func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	return name
}
