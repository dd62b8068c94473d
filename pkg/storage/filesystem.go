package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidFileID is returned for identifiers that would escape the base directory.
var ErrInvalidFileID = errors.New("invalid file id")

// UploadMeta describes a file handed to the store.
type UploadMeta struct {
	FileName string
	MimeType string
	MemoID   string
}

// LocalStorage persists files on disk under a base directory.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./attachments"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Upload stores data under a freshly generated identifier and returns it.
func (s *LocalStorage) Upload(ctx context.Context, data []byte, meta UploadMeta) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(meta.FileName))
	if len(ext) > 10 {
		ext = ""
	}
	fileID := uuid.NewString() + ext
	if _, err := s.Save(fileID, data); err != nil {
		return "", err
	}
	return fileID, nil
}

// Save writes the given bytes to the provided relative path under the base dir.
func (s *LocalStorage) Save(filename string, data []byte) (string, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare storage directory: %w", err)
	}
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalize file: %w", err)
	}
	return filename, nil
}

// Open returns a read-only handle for the stored file.
func (s *LocalStorage) Open(fileID string) (*os.File, error) {
	path, err := s.resolve(fileID)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open stored file: %w", err)
	}
	return file, nil
}

// Delete removes a stored file. Deleting a missing file is not an error.
func (s *LocalStorage) Delete(ctx context.Context, fileID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(fileID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete stored file: %w", err)
	}
	return nil
}

// Exists reports whether a file is present.
func (s *LocalStorage) Exists(fileID string) bool {
	path, err := s.resolve(fileID)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

func (s *LocalStorage) resolve(fileID string) (string, error) {
	if fileID == "" || filepath.IsAbs(fileID) {
		return "", ErrInvalidFileID
	}
	cleaned := filepath.Clean(fileID)
	if cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", ErrInvalidFileID
	}
	return filepath.Join(s.baseDir, cleaned), nil
}
