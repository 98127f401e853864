package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobLock is a best-effort distributed mutex for scheduled jobs, so that two
// worker replicas never send the same batch of reminders.
type JobLock struct {
	cache *Cache
}

// NewJobLock creates a lock backed by cache.
func NewJobLock(cache *Cache) *JobLock {
	return &JobLock{cache: cache}
}

// TryLock acquires name for ttl. The lock expires on its own if the holder
// dies; unlock only releases it while still owned.
func (l *JobLock) TryLock(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	key := l.cache.Key(PrefixLock, name)
	token := uuid.NewString()

	ok, err := l.cache.SetNX(ctx, key, token, ttl)
	if err != nil || !ok {
		return nil, false, err
	}

	unlock := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_, _ = l.cache.DeleteIfValue(ctx, key, token)
	}
	return unlock, true, nil
}
