package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"illust_nest/internal/lib/logger/sl"
	filestorage "illust_nest/internal/storage/filestorage"
)

const archiveType = "application/zip"

type ArchiveAPI interface {
	ExportImages(ctx context.Context) (io.ReadCloser, string, error)
	DownloadWork(ctx context.Context, id uint) (io.ReadCloser, string, error)
}

// Sink stores an archive under name and reports where it ended up.
type Sink interface {
	Put(ctx context.Context, name string, src io.Reader, contentType string) (string, error)
}

// DirSink writes archives into local file storage.
type DirSink struct {
	files filestorage.FileStorage
}

func NewDirSink(files filestorage.FileStorage) *DirSink {
	return &DirSink{files: files}
}

func (d *DirSink) Put(ctx context.Context, name string, src io.Reader, _ string) (string, error) {
	rel, _, err := d.files.Save(ctx, src, name)
	if err != nil {
		return "", err
	}

	return d.files.GetFullPath(rel), nil
}

type ExportService struct {
	log *slog.Logger
	api ArchiveAPI
	now func() time.Time
}

func NewExportService(log *slog.Logger, api ArchiveAPI) *ExportService {
	return &ExportService{log: log, api: api, now: time.Now}
}

// ExportAll streams the archive of every original image into sink.
func (s *ExportService) ExportAll(ctx context.Context, sink Sink) (string, error) {
	const op = "export_service.ExportAll"

	rc, name, err := s.api.ExportImages(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if name == "" {
		name = fmt.Sprintf("images_%s.zip", s.now().Format("20060102_150405"))
	}

	return s.store(ctx, op, sink, rc, name)
}

// ExportWork streams the archive of one work into sink.
func (s *ExportService) ExportWork(ctx context.Context, id uint, sink Sink) (string, error) {
	const op = "export_service.ExportWork"

	rc, name, err := s.api.DownloadWork(ctx, id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if name == "" {
		name = fmt.Sprintf("work_%d.zip", id)
	}

	return s.store(ctx, op, sink, rc, name)
}

func (s *ExportService) store(ctx context.Context, op string, sink Sink, rc io.ReadCloser, name string) (string, error) {
	defer rc.Close()

	log := s.log.With(
		slog.String("op", op),
		slog.String("name", name),
	)

	loc, err := sink.Put(ctx, name, rc, archiveType)
	if err != nil {
		log.Error("failed to store archive", sl.Err(err))

		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("archive stored", slog.String("location", loc))

	return loc, nil
}
