package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage persists uploaded attachments on disk under a base
// directory. The core only stores and forwards these references; file
// content is never inspected.
type LocalStorage struct {
	baseDir     string
	allowedExts map[string]struct{}
	maxSize     int64
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string, allowedExts []string, maxSize int64) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}

	extSet := make(map[string]struct{}, len(allowedExts))
	for _, ext := range allowedExts {
		extSet[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
	}

	return &LocalStorage{baseDir: baseDir, allowedExts: extSet, maxSize: maxSize}, nil
}

// Allowed reports whether the filename carries a permitted extension.
// An empty allow-list permits everything.
func (s *LocalStorage) Allowed(filename string) bool {
	if len(s.allowedExts) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return false
	}
	_, ok := s.allowedExts[ext]
	return ok
}

// MaxSize returns the upload size limit in bytes (0 = unlimited).
func (s *LocalStorage) MaxSize() int64 {
	return s.maxSize
}

// SaveStream writes the reader's content to the given relative path.
func (s *LocalStorage) SaveStream(relPath string, r io.Reader) (string, error) {
	path := s.resolve(relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare upload directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return "", fmt.Errorf("write upload stream: %w", err)
	}
	return relPath, nil
}

// Open returns a read-only handle for the stored file.
func (s *LocalStorage) Open(relPath string) (*os.File, error) {
	file, err := os.Open(s.resolve(relPath))
	if err != nil {
		return nil, fmt.Errorf("open upload file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(relPath string) error {
	if err := os.Remove(s.resolve(relPath)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload file: %w", err)
	}
	return nil
}

// Path exposes the underlying absolute path.
func (s *LocalStorage) Path(relPath string) string {
	return s.resolve(relPath)
}

func (s *LocalStorage) resolve(relPath string) string {
	if filepath.IsAbs(relPath) {
		return relPath
	}
	return filepath.Join(s.baseDir, relPath)
}
