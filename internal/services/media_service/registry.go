package services

import (
	"fmt"
	"time"

	"illust_nest/internal/metrics"
	"illust_nest/internal/storage"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// Blob is the payload behind a handle.
type Blob struct {
	Data        []byte
	ContentType string
}

// HandleRegistry holds image bytes under revocable ids. A handle is valid from
// Mint until Release (or until its TTL runs out when one is configured).
type HandleRegistry struct {
	cache *cache.Cache
}

// NewHandleRegistry creates a registry. A zero ttl keeps handles until released.
func NewHandleRegistry(ttl time.Duration) *HandleRegistry {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl
	}

	c := cache.New(expiration, cleanup)
	c.OnEvicted(func(string, interface{}) {
		metrics.LiveHandles.Dec()
	})

	return &HandleRegistry{cache: c}
}

// Mint stores data and returns its handle id.
func (r *HandleRegistry) Mint(data []byte, contentType string) string {
	id := uuid.NewString()
	r.cache.Set(id, Blob{Data: data, ContentType: contentType}, cache.DefaultExpiration)
	metrics.LiveHandles.Inc()

	return id
}

func (r *HandleRegistry) Get(id string) (Blob, error) {
	v, ok := r.cache.Get(id)
	if !ok {
		return Blob{}, fmt.Errorf("%s: %w", id, storage.ErrHandleNotFound)
	}

	return v.(Blob), nil
}

// Release revokes the handle. Releasing an unknown or already released handle
// is a no-op.
func (r *HandleRegistry) Release(id string) {
	if id == "" {
		return
	}
	r.cache.Delete(id)
}

// Live counts handles that have been minted and not yet released.
func (r *HandleRegistry) Live() int {
	return r.cache.ItemCount()
}
