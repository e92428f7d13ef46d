package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"illust_nest/internal/storage"
)

// FileStorage is the local directory the client writes into: persisted
// sessions, fetched images and export archives.
type FileStorage interface {
	Save(ctx context.Context, src io.Reader, relPath string) (filePath string, fileSize int64, err error)
	Open(relPath string) (io.ReadCloser, error)
	Delete(ctx context.Context, filePath string) error
	GetFullPath(relativePath string) string
	GetBaseDir() string
}

type LocalFileStorage struct {
	baseDir string
}

func NewLocalFileStorage(baseDir string) (*LocalFileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	return &LocalFileStorage{
		baseDir: baseDir,
	}, nil
}

// Save streams src into relPath. The write goes to a temp file that is renamed
// into place so a cancelled save never leaves a truncated file behind.
func (s *LocalFileStorage) Save(ctx context.Context, src io.Reader, relPath string) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	filePath, err := s.resolve(relPath)
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return "", 0, fmt.Errorf("failed to create directories: %w", err)
	}

	dst, err := os.CreateTemp(filepath.Dir(filePath), ".partial-*")
	if err != nil {
		return "", 0, fmt.Errorf("failed to create destination file: %w", err)
	}
	tmpName := dst.Name()

	done := make(chan struct{})
	var size int64
	var copyErr error

	go func() {
		size, copyErr = io.Copy(dst, src)
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		_ = dst.Close()
		_ = os.Remove(tmpName)
		return "", 0, ctx.Err()
	}

	if err := dst.Close(); err != nil && copyErr == nil {
		copyErr = err
	}
	if copyErr != nil {
		_ = os.Remove(tmpName)
		return "", 0, fmt.Errorf("failed to copy file: %w", copyErr)
	}

	if err := os.Rename(tmpName, filePath); err != nil {
		_ = os.Remove(tmpName)
		return "", 0, fmt.Errorf("failed to move file into place: %w", err)
	}

	return filepath.Clean(relPath), size, nil
}

func (s *LocalFileStorage) Open(relPath string) (io.ReadCloser, error) {
	fullPath, err := s.resolve(relPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(fullPath)
	if os.IsNotExist(err) {
		return nil, storage.ErrFileNotFound
	}
	return f, err
}

// Delete removes a file from storage
func (s *LocalFileStorage) Delete(ctx context.Context, filePath string) error {
	fullPath, err := s.resolve(filePath)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if os.IsNotExist(err) {
		return storage.ErrFileNotFound
	}
	return err
}

// GetFullPath returns the absolute location of a stored file
func (s *LocalFileStorage) GetFullPath(relativePath string) string {
	return filepath.Join(s.baseDir, relativePath)
}

func (s *LocalFileStorage) GetBaseDir() string {
	return s.baseDir
}

func (s *LocalFileStorage) resolve(relPath string) (string, error) {
	cleaned := filepath.Clean(relPath)
	if filepath.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", storage.ErrInvalidPath
	}
	return filepath.Join(s.baseDir, cleaned), nil
}
