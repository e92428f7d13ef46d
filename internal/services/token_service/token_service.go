package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/lib/jwt"
	"illust_nest/internal/lib/logger/sl"
	"illust_nest/internal/repository"
	"illust_nest/internal/session"
)

var ErrTokenExpired = errors.New("token expired")

// RefreshBefore is the default for how close to expiry a token gets swapped.
const RefreshBefore = 10 * time.Minute

type Refresher interface {
	RefreshToken(ctx context.Context) (*models.TokenPair, error)
}

// TokenService keeps the bearer token of a long-running client fresh.
type TokenService struct {
	log  *slog.Logger
	api  Refresher
	sess *session.Session
	repo repository.SessionRepository
	now  func() time.Time

	refreshBefore time.Duration
}

// NewTokenService refreshes tokens that expire within refreshBefore, or
// within RefreshBefore when it is zero.
func NewTokenService(log *slog.Logger, api Refresher, sess *session.Session, repo repository.SessionRepository, refreshBefore time.Duration) *TokenService {
	if refreshBefore <= 0 {
		refreshBefore = RefreshBefore
	}

	return &TokenService{
		log:           log,
		api:           api,
		sess:          sess,
		repo:          repo,
		now:           time.Now,
		refreshBefore: refreshBefore,
	}
}

// ExpiresAt is the session expiry, or the exp claim of the token when the
// session does not record one.
func (s *TokenService) ExpiresAt() (time.Time, error) {
	if exp := s.sess.ExpiresAt(); !exp.IsZero() {
		return exp, nil
	}

	return jwt.ExpiresAt(s.sess.Token())
}

// EnsureFresh refreshes the token when it is about to expire. An
// already expired token clears the session.
func (s *TokenService) EnsureFresh(ctx context.Context) error {
	const op = "token_service.EnsureFresh"

	if !s.sess.Authenticated() {
		return nil
	}

	log := s.log.With(slog.String("op", op))

	exp, err := s.ExpiresAt()
	if err != nil {
		log.Debug("token carries no expiry", sl.Err(err))
		return nil
	}

	now := s.now()
	if !now.Before(exp) {
		s.sess.Clear(session.ReasonExpired)
		return fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}
	if exp.Sub(now) > s.refreshBefore {
		return nil
	}

	pair, err := s.api.RefreshToken(ctx)
	if err != nil {
		log.Error("failed to refresh token", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	expiresAt := pair.ExpiresAt
	if expiresAt.IsZero() {
		if claimed, err := jwt.ExpiresAt(pair.Token); err == nil {
			expiresAt = claimed
		}
	}

	s.sess.UpdateToken(pair.Token, expiresAt)

	if err := s.repo.SaveSession(ctx, s.sess.Snapshot()); err != nil {
		log.Warn("failed to persist refreshed token", sl.Err(err))
	}

	log.Info("token refreshed", slog.Time("expires_at", expiresAt))

	return nil
}

// Run calls EnsureFresh every interval until ctx is done.
func (s *TokenService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.EnsureFresh(ctx); errors.Is(err, ErrTokenExpired) {
				return
			}
		}
	}
}
