package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/storage"
	redisapp "illust_nest/internal/storage/redis"

	"github.com/redis/go-redis/v9"
)

type RedisSessionRepo struct {
	Client *redisapp.Client
	Key    string
	now    func() time.Time
}

func NewRedisSessionRepo(client *redisapp.Client, key string) *RedisSessionRepo {
	return &RedisSessionRepo{Client: client, Key: key, now: time.Now}
}

// SaveSession stores the session until the token expires. Tokens without a
// known expiry are kept until deleted.
func (r *RedisSessionRepo) SaveSession(ctx context.Context, meta models.TokenMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	var ttl time.Duration
	if !meta.ExpiresAt.IsZero() {
		ttl = meta.ExpiresAt.Sub(r.clock())
		if ttl <= 0 {
			return r.DeleteSession(ctx)
		}
	}

	return r.Client.Set(ctx, sessionKey(r.Key), data, ttl).Err()
}

func (r *RedisSessionRepo) LoadSession(ctx context.Context) (models.TokenMeta, error) {
	var meta models.TokenMeta

	val, err := r.Client.Get(ctx, sessionKey(r.Key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return meta, storage.ErrSessionNotFound
	}
	if err != nil {
		return meta, err
	}

	if err := json.Unmarshal(val, &meta); err != nil {
		return meta, fmt.Errorf("unmarshal session: %w", err)
	}

	return meta, nil
}

func (r *RedisSessionRepo) DeleteSession(ctx context.Context) error {
	return r.Client.Del(ctx, sessionKey(r.Key)).Err()
}

func (r *RedisSessionRepo) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

func sessionKey(key string) string {
	return "illust_nest:session:" + key
}
