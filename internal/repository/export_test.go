package repository

import "time"

// SetClock pins the time source for ttl calculations in tests.
func (r *RedisSessionRepo) SetClock(now func() time.Time) {
	r.now = now
}

func SessionKey(key string) string {
	return sessionKey(key)
}
