package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReminderLogDedupes(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryReminderLog()

	first, err := log.MarkSent(ctx, "fee_reminder:s1:2024-06", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := log.MarkSent(ctx, "fee_reminder:s1:2024-06", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, log.Forget(ctx, "fee_reminder:s1:2024-06"))
	retried, err := log.MarkSent(ctx, "fee_reminder:s1:2024-06", time.Hour)
	require.NoError(t, err)
	assert.True(t, retried)
}

func TestMemoryReminderLogExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.June, 5, 10, 0, 0, 0, time.UTC)
	log := NewMemoryReminderLog()
	log.now = func() time.Time { return now }

	ok, err := log.MarkSent(ctx, "k", 24*time.Hour)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, log.Len())

	now = now.Add(25 * time.Hour)
	assert.Equal(t, 0, log.Len())

	ok, err = log.MarkSent(ctx, "k", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryReminderLogRejectsBadInput(t *testing.T) {
	log := NewMemoryReminderLog()

	_, err := log.MarkSent(context.Background(), "", time.Hour)
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)

	_, err = log.MarkSent(context.Background(), "k", -time.Second)
	assert.ErrorIs(t, err, ErrCacheInvalidTTL)
}

func TestConfigAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "cache"
	cfg.Port = 6380
	assert.Equal(t, "cache:6380", cfg.Addr())
}
