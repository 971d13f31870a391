package telegram_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-escrow/telegram"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestSessionCache_GetLatestReturnsNewest(t *testing.T) {
	clock := newManualClock()
	cache := telegram.NewMemorySessionCache(telegram.WithSessionClock(clock.Now))

	_, err := cache.Store("user-1", 100, "old")
	require.NoError(t, err)
	clock.Advance(time.Minute)
	id, err := cache.Store("user-1", 200, "@new")
	require.NoError(t, err)

	latest, ok := cache.GetLatest("user-1")
	require.True(t, ok)
	assert.Equal(t, id, latest.SessionID)
	assert.Equal(t, int64(200), latest.TelegramID)
	assert.Equal(t, "new", latest.Username)
	assert.Equal(t, clock.Now().Add(telegram.DefaultSessionTTL), latest.ExpiresAt)
}

func TestSessionCache_TiesGoToLastStored(t *testing.T) {
	clock := newManualClock()
	cache := telegram.NewMemorySessionCache(telegram.WithSessionClock(clock.Now))

	_, err := cache.Store("user-1", 100, "")
	require.NoError(t, err)
	_, err = cache.Store("user-1", 200, "")
	require.NoError(t, err)

	chatID, ok := cache.GetExternalID("user-1")
	require.True(t, ok)
	assert.Equal(t, int64(200), chatID)
}

func TestSessionCache_ExpiredSessionsAreInvisible(t *testing.T) {
	clock := newManualClock()
	cache := telegram.NewMemorySessionCache(
		telegram.WithSessionClock(clock.Now),
		telegram.WithSessionTTL(time.Hour),
	)

	_, err := cache.Store("user-1", 100, "")
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	_, err = cache.Store("user-1", 200, "")
	require.NoError(t, err)

	clock.Advance(45 * time.Minute)
	chatID, ok := cache.GetExternalID("user-1")
	require.True(t, ok)
	assert.Equal(t, int64(200), chatID)

	clock.Advance(15 * time.Minute)
	_, ok = cache.GetLatest("user-1")
	assert.False(t, ok)
	_, ok = cache.GetExternalID("user-1")
	assert.False(t, ok)
}

func TestSessionCache_UnknownUser(t *testing.T) {
	cache := telegram.NewMemorySessionCache()

	_, ok := cache.GetLatest("nobody")
	assert.False(t, ok)
	assert.Zero(t, cache.ClearAll("nobody"))
}

func TestSessionCache_StoreRequiresUser(t *testing.T) {
	cache := telegram.NewMemorySessionCache()

	_, err := cache.Store("  ", 1, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, telegram.ErrMissingUserID)
}

func TestSessionCache_ClearAll(t *testing.T) {
	cache := telegram.NewMemorySessionCache()

	for i := int64(0); i < 3; i++ {
		_, err := cache.Store("user-1", i, "")
		require.NoError(t, err)
	}
	_, err := cache.Store("user-2", 9, "")
	require.NoError(t, err)

	assert.Equal(t, 3, cache.ClearAll("user-1"))
	_, ok := cache.GetLatest("user-1")
	assert.False(t, ok)

	chatID, ok := cache.GetExternalID("user-2")
	require.True(t, ok)
	assert.Equal(t, int64(9), chatID)
}

func TestSessionCache_Sweep(t *testing.T) {
	clock := newManualClock()
	cache := telegram.NewMemorySessionCache(
		telegram.WithSessionClock(clock.Now),
		telegram.WithSessionTTL(time.Minute),
	)

	_, _ = cache.Store("user-1", 1, "")
	_, _ = cache.Store("user-2", 2, "")
	clock.Advance(2 * time.Minute)
	_, _ = cache.Store("user-2", 3, "")

	assert.Equal(t, 3, cache.Len())
	assert.Equal(t, 2, cache.Sweep())
	assert.Equal(t, 1, cache.Len())

	chatID, ok := cache.GetExternalID("user-2")
	require.True(t, ok)
	assert.Equal(t, int64(3), chatID)
}

func TestSessionCache_ConcurrentStore(t *testing.T) {
	cache := telegram.NewMemorySessionCache()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := cache.Store("user-1", int64(i), "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 16, cache.Len())
	_, ok := cache.GetLatest("user-1")
	assert.True(t, ok)
}
