package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/lib/logger/sl"
	"illust_nest/internal/lib/validate"
	"illust_nest/internal/repository"
	"illust_nest/internal/session"
	"illust_nest/internal/storage"
	"illust_nest/internal/transport/http/dto"
	"illust_nest/internal/transport/http/dto/response"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrSessionExpired     = errors.New("session expired")
)

type AuthAPI interface {
	Login(ctx context.Context, req dto.LoginRequest) (*models.LoginResult, error)
	Me(ctx context.Context) (*models.User, error)
	ChangePassword(ctx context.Context, req dto.ChangePasswordRequest) error
}

// Auth drives the session through login, logout and restore, and keeps the
// persisted copy in step with it.
type Auth struct {
	log  *slog.Logger
	api  AuthAPI
	sess *session.Session
	repo repository.SessionRepository
	now  func() time.Time
}

func New(log *slog.Logger, api AuthAPI, sess *session.Session, repo repository.SessionRepository) *Auth {
	return &Auth{
		log:  log,
		api:  api,
		sess: sess,
		repo: repo,
		now:  time.Now,
	}
}

// Watch removes the persisted session whenever the backend rejects the token.
// The returned func stops watching.
func (a *Auth) Watch() (stop func()) {
	return a.sess.Subscribe(func(ev session.Event) {
		if ev.Kind != session.EventCleared || ev.Reason == session.ReasonLogout {
			return
		}

		if err := a.repo.DeleteSession(context.Background()); err != nil {
			a.log.Warn("failed to drop stored session",
				slog.String("reason", string(ev.Reason)),
				sl.Err(err),
			)
		}
	})
}

func (a *Auth) Login(ctx context.Context, username, password string) (models.User, error) {
	const op = "auth.Login"

	log := a.log.With(
		slog.String("op", op),
		slog.String("username", username),
	)

	req := dto.LoginRequest{Username: strings.TrimSpace(username), Password: password}
	if err := validate.Struct(req); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("attempting to login user")

	res, err := a.api.Login(ctx, req)
	if err != nil {
		var apiErr *response.APIError
		if errors.As(err, &apiErr) && apiErr.Code == response.CodeUnauthorized {
			log.Info("invalid credentials")

			return models.User{}, fmt.Errorf("%s: %w: %w", op, ErrInvalidCredentials, err)
		}
		log.Error("failed to login", sl.Err(err))

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	meta := models.TokenMeta{User: res.User, Token: res.Token, ExpiresAt: res.ExpiresAt}
	a.sess.Populate(meta)

	if err := a.repo.SaveSession(ctx, meta); err != nil {
		log.Warn("failed to persist session", sl.Err(err))
	}

	log.Info("user logged in successfully")

	return res.User, nil
}

// Logout clears the session and forgets the stored token. It succeeds when
// nobody is logged in.
func (a *Auth) Logout(ctx context.Context) error {
	const op = "auth.Logout"

	a.sess.Clear(session.ReasonLogout)

	if err := a.repo.DeleteSession(ctx); err != nil {
		a.log.Error("failed to delete stored session", slog.String("op", op), sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Restore loads a persisted session into the in-memory one. An expired
// session is removed from the store.
func (a *Auth) Restore(ctx context.Context) (models.User, error) {
	const op = "auth.Restore"

	meta, err := a.repo.LoadSession(ctx)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrNotLoggedIn)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	if meta.Token == "" {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrNotLoggedIn)
	}

	if !meta.ExpiresAt.IsZero() && !a.now().Before(meta.ExpiresAt) {
		a.log.Info("stored session expired", slog.String("op", op), slog.Time("expires_at", meta.ExpiresAt))

		if err := a.repo.DeleteSession(ctx); err != nil {
			a.log.Warn("failed to delete expired session", slog.String("op", op), sl.Err(err))
		}

		return models.User{}, fmt.Errorf("%s: %w", op, ErrSessionExpired)
	}

	a.sess.Populate(meta)

	return meta.User, nil
}

// Me asks the backend who the token belongs to.
func (a *Auth) Me(ctx context.Context) (*models.User, error) {
	const op = "auth.Me"

	if !a.sess.Authenticated() {
		return nil, fmt.Errorf("%s: %w", op, ErrNotLoggedIn)
	}

	user, err := a.api.Me(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (a *Auth) ChangePassword(ctx context.Context, password string) error {
	const op = "auth.ChangePassword"

	if !a.sess.Authenticated() {
		return fmt.Errorf("%s: %w", op, ErrNotLoggedIn)
	}

	req := dto.ChangePasswordRequest{NewPassword: password}
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.api.ChangePassword(ctx, req); err != nil {
		a.log.Error("failed to change password", slog.String("op", op), sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	a.log.Info("password changed", slog.String("op", op))

	return nil
}
