package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// GenerationLockKey builds redis keys for the per-society bill-generation
// critical section. Two operators triggering the same period close together
// contend on this key; the storage-level uniqueness constraint remains the
// backstop when redis is unavailable.
func GenerationLockKey(societyID int64, period string) string {
	return fmt.Sprintf("billing:society:%d:period:%s:lock", societyID, period)
}

// PeriodLock implements a best-effort mutual exclusion on top of redis SET NX.
type PeriodLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPeriodLock constructs a PeriodLock. TTL bounds how long a crashed
// generation run can hold the key.
func NewPeriodLock(client *redis.Client, ttl time.Duration) *PeriodLock {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &PeriodLock{client: client, ttl: ttl}
}

// Acquire attempts to take the lock. It returns a release func and whether
// the lock was obtained. Redis failures report as not-acquired; callers are
// expected to proceed regardless.
func (l *PeriodLock) Acquire(ctx context.Context, key string) (func(), bool) {
	if l == nil || l.client == nil {
		return func() {}, false
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil || !ok {
		return func() {}, false
	}
	release := func() {
		// Only delete our own token; an expired key may have been re-acquired.
		current, err := l.client.Get(context.Background(), key).Result()
		if err != nil || current != token {
			return
		}
		_ = l.client.Del(context.Background(), key).Err()
	}
	return release, true
}
