package redis

import (
	"context"
	"sync"
	"time"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// REDIS REMINDER LOG
// ══════════════════════════════════════════════════════════════════════════════

// ReminderLog remembers sent reminders in Redis so that every worker and API
// instance agrees on what was already sent this month.
type ReminderLog struct {
	cache *Cache
}

var _ notification.ReminderLog = (*ReminderLog)(nil)

// NewReminderLog creates a Redis backed reminder log.
func NewReminderLog(cache *Cache) *ReminderLog {
	return &ReminderLog{cache: cache}
}

// MarkSent implements notification.ReminderLog.
func (l *ReminderLog) MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.cache.SetNX(ctx, l.cache.Key(PrefixReminder, key), time.Now().UTC().Format(time.RFC3339), ttl)
}

// Forget implements notification.ReminderLog.
func (l *ReminderLog) Forget(ctx context.Context, key string) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	return l.cache.Delete(ctx, l.cache.Key(PrefixReminder, key))
}

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY REMINDER LOG
// ══════════════════════════════════════════════════════════════════════════════

// MemoryReminderLog is the single-process fallback used when Redis is not
// configured.
type MemoryReminderLog struct {
	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry, zero means never
	now     func() time.Time
}

var _ notification.ReminderLog = (*MemoryReminderLog)(nil)

// NewMemoryReminderLog creates an empty log.
func NewMemoryReminderLog() *MemoryReminderLog {
	return &MemoryReminderLog{
		entries: make(map[string]time.Time),
		now:     time.Now,
	}
}

// MarkSent implements notification.ReminderLog.
func (l *MemoryReminderLog) MarkSent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if key == "" {
		return false, ErrCacheKeyEmpty
	}
	if ttl < 0 {
		return false, ErrCacheInvalidTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expiry, ok := l.entries[key]; ok && (expiry.IsZero() || now.Before(expiry)) {
		return false, nil
	}

	var expiry time.Time
	if ttl > 0 {
		expiry = now.Add(ttl)
	}
	l.entries[key] = expiry
	return true, nil
}

// Forget implements notification.ReminderLog.
func (l *MemoryReminderLog) Forget(_ context.Context, key string) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	l.mu.Lock()
	delete(l.entries, key)
	l.mu.Unlock()
	return nil
}

// Len returns the number of live entries.
func (l *MemoryReminderLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for key, expiry := range l.entries {
		if !expiry.IsZero() && !now.Before(expiry) {
			delete(l.entries, key)
			continue
		}
		n++
	}
	return n
}
