package repository

import (
	"context"

	"illust_nest/internal/domain/models"
)

// SessionRepository persists the session between CLI invocations.
type SessionRepository interface {
	SaveSession(ctx context.Context, meta models.TokenMeta) error
	LoadSession(ctx context.Context) (models.TokenMeta, error)
	DeleteSession(ctx context.Context) error
}
