package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	httpapp "illust_nest/internal/app/http"
	"illust_nest/internal/config"
	"illust_nest/internal/repository"
	"illust_nest/internal/services/auth"
	editor "illust_nest/internal/services/editor_service"
	export "illust_nest/internal/services/export_service"
	gallery "illust_nest/internal/services/gallery_service"
	listing "illust_nest/internal/services/listing_service"
	media "illust_nest/internal/services/media_service"
	system "illust_nest/internal/services/system_service"
	tags "illust_nest/internal/services/tag_service"
	tokens "illust_nest/internal/services/token_service"
	upload "illust_nest/internal/services/upload_service"
	"illust_nest/internal/session"
	filestorage "illust_nest/internal/storage/filestorage"
	redisapp "illust_nest/internal/storage/redis"
	s3store "illust_nest/internal/storage/s3"
	rest "illust_nest/internal/transport/http"
)

const (
	sessionFile  = "file"
	sessionRedis = "redis"
)

// viewportArea stands in for a screen when lists are followed from a terminal.
var viewportArea = media.Rect{Width: 1280, Height: 800}

type App struct {
	log *slog.Logger
	cfg *config.Config

	Session  *session.Session
	Client   *rest.Client
	Sessions repository.SessionRepository

	Auth    *auth.Auth
	Tokens  *tokens.TokenService
	System  *system.SystemService
	Tags    *tags.TagService
	Gallery *gallery.GalleryService
	Editor  *editor.EditorService
	Export  *export.ExportService
	Media   *media.MediaService
	Preview *httpapp.Server

	closers []func() error
}

func New(log *slog.Logger, cfg *config.Config) (*App, error) {
	const op = "app.New"

	sess := session.New()

	client, err := rest.New(log, cfg.API.BaseURL, sess, rest.Options{
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		Burst:     cfg.API.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := &App{
		log:     log,
		cfg:     cfg,
		Session: sess,
		Client:  client,
	}

	sessions, err := a.sessionRepository()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	a.Sessions = sessions

	registry := media.NewHandleRegistry(cfg.Preview.HandleTTL)

	a.Auth = auth.New(log, client, sess, sessions)
	a.Tokens = tokens.NewTokenService(log, client, sess, sessions, cfg.API.RefreshBefore)
	a.System = system.NewSystemService(log, client)
	a.Tags = tags.NewTagService(log, client)
	a.Gallery = gallery.NewGalleryService(log, client)
	a.Editor = editor.NewEditorService(log, client)
	a.Export = export.NewExportService(log, client)
	a.Media = media.NewMediaService(log, client, registry, media.NewViewport(viewportArea))
	a.Preview = httpapp.New(log, cfg.Preview.Host, cfg.Preview.Port, a.Media)

	stopWatch := a.Auth.Watch()
	a.closers = append(a.closers, func() error {
		stopWatch()
		return nil
	})

	return a, nil
}

func (a *App) sessionRepository() (repository.SessionRepository, error) {
	switch a.cfg.Session.Backend {
	case sessionRedis:
		client := redisapp.NewClient(a.cfg.Redis.RedisAddr, a.cfg.Redis.RedisPassword, a.cfg.Redis.RedisDB)
		a.closers = append(a.closers, client.Close)

		return repository.NewRedisSessionRepo(client, a.cfg.Session.Key), nil
	case sessionFile, "":
		files, err := filestorage.NewLocalFileStorage(filepath.Dir(a.cfg.Session.Path))
		if err != nil {
			return nil, err
		}

		return repository.NewFileSessionRepo(files, filepath.Base(a.cfg.Session.Path)), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", a.cfg.Session.Backend)
	}
}

// Restore brings back the stored login and refreshes the token when it is
// close to expiry. A missing session is not an error.
func (a *App) Restore(ctx context.Context) error {
	if _, err := a.Auth.Restore(ctx); err != nil {
		if errors.Is(err, auth.ErrNotLoggedIn) || errors.Is(err, auth.ErrSessionExpired) {
			return nil
		}
		return err
	}

	return a.Tokens.EnsureFresh(ctx)
}

// RefreshInterval is how often a long-running command checks the token.
func (a *App) RefreshInterval() time.Duration {
	return max(a.cfg.API.RefreshBefore/2, time.Minute)
}

// NewUpload starts a fresh upload for one work.
func (a *App) NewUpload(confirmer upload.Confirmer) *upload.UploadService {
	return upload.NewUploadService(a.log, a.Client, a.Media.Registry(), confirmer)
}

// Works is the private work list.
func (a *App) Works() *listing.WorkList {
	return listing.NewWorkList(a.log, a.Client.ListWorks, a.cfg.Listing.PageSize)
}

// PublicWorks is the list anonymous visitors see.
func (a *App) PublicWorks() *listing.WorkList {
	return listing.NewWorkList(a.log, a.Client.ListPublicWorks, a.cfg.Listing.PageSize)
}

func (a *App) CollectionWorks(id uint) *listing.WorkList {
	return listing.NewWorkList(a.log, a.Gallery.Works(id), a.cfg.Listing.PageSize)
}

// ExportSink returns the S3 bucket when toS3 is set, the export directory otherwise.
func (a *App) ExportSink(ctx context.Context, toS3 bool) (export.Sink, error) {
	if toS3 {
		return s3store.New(ctx, a.cfg.Export.S3)
	}

	files, err := filestorage.NewLocalFileStorage(a.cfg.Export.Dir)
	if err != nil {
		return nil, err
	}

	return export.NewDirSink(files), nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
