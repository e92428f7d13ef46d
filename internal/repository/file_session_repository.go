package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/storage"
	filestorage "illust_nest/internal/storage/filestorage"
)

type FileSessionRepo struct {
	files filestorage.FileStorage
	path  string
}

func NewFileSessionRepo(files filestorage.FileStorage, path string) *FileSessionRepo {
	return &FileSessionRepo{files: files, path: path}
}

func (r *FileSessionRepo) SaveSession(ctx context.Context, meta models.TokenMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, _, err = r.files.Save(ctx, bytes.NewReader(data), r.path)
	return err
}

func (r *FileSessionRepo) LoadSession(ctx context.Context) (models.TokenMeta, error) {
	var meta models.TokenMeta

	rc, err := r.files.Open(r.path)
	if errors.Is(err, storage.ErrFileNotFound) {
		return meta, storage.ErrSessionNotFound
	}
	if err != nil {
		return meta, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return meta, err
	}

	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("unmarshal session: %w", err)
	}

	return meta, nil
}

func (r *FileSessionRepo) DeleteSession(ctx context.Context) error {
	err := r.files.Delete(ctx, r.path)
	if errors.Is(err, storage.ErrFileNotFound) {
		return nil
	}
	return err
}
