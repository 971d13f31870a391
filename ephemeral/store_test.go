package ephemeral_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-escrow/ephemeral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore_RoundTripIsSingleUse(t *testing.T) {
	store := ephemeral.NewMemoryStore()

	token, err := store.Issue("user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, ok := store.Consume(token)
	assert.True(t, ok)
	assert.Equal(t, "user-1", userID)

	userID, ok = store.Consume(token)
	assert.False(t, ok)
	assert.Empty(t, userID)
}

func TestMemoryStore_UnknownToken(t *testing.T) {
	store := ephemeral.NewMemoryStore()

	userID, ok := store.Consume("does-not-exist")
	assert.False(t, ok)
	assert.Empty(t, userID)
}

func TestMemoryStore_ZeroTTLIsExpired(t *testing.T) {
	store := ephemeral.NewMemoryStore()

	token, err := store.Issue("user-1", ephemeral.WithTTL(0))
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())

	_, ok := store.Consume(token)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_Expiry(t *testing.T) {
	c := newClock()
	store := ephemeral.NewMemoryStore(ephemeral.WithClock(c.Now))

	token, err := store.Issue("user-1")
	require.NoError(t, err)

	c.Advance(ephemeral.DefaultTTL - time.Second)
	other, err := store.Issue("user-2")
	require.NoError(t, err)

	c.Advance(time.Second)

	_, ok := store.Consume(token)
	assert.False(t, ok)
	assert.Equal(t, 1, store.Len())

	userID, ok := store.Consume(other)
	assert.True(t, ok)
	assert.Equal(t, "user-2", userID)
}

func TestMemoryStore_Sweep(t *testing.T) {
	c := newClock()
	store := ephemeral.NewMemoryStore(ephemeral.WithClock(c.Now), ephemeral.WithDefaultTTL(time.Minute))

	_, err := store.Issue("a")
	require.NoError(t, err)
	_, err = store.Issue("b", ephemeral.WithTTL(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 0, store.Sweep())

	c.Advance(2 * time.Minute)
	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Sweep())
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_IssueRequiresUser(t *testing.T) {
	store := ephemeral.NewMemoryStore()

	_, err := store.Issue("  ")
	assert.ErrorIs(t, err, ephemeral.ErrMissingUserID)
}

func TestMemoryStore_ConcurrentConsumeHasOneWinner(t *testing.T) {
	store := ephemeral.NewMemoryStore()

	token, err := store.Issue("user-1")
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := store.Consume(token); ok {
				wins.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestMemoryStore_BackgroundSweep(t *testing.T) {
	c := newClock()
	store := ephemeral.NewMemoryStore(
		ephemeral.WithClock(c.Now),
		ephemeral.WithSweepInterval(5*time.Millisecond),
	)

	_, err := store.Issue("user-1", ephemeral.WithTTL(time.Second))
	require.NoError(t, err)
	c.Advance(time.Minute)

	store.Start(context.Background())
	defer store.Stop()

	assert.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryStore_IsolatedInstances(t *testing.T) {
	first := ephemeral.NewMemoryStore()
	second := ephemeral.NewMemoryStore()

	token, err := first.Issue("user-1")
	require.NoError(t, err)

	_, ok := second.Consume(token)
	assert.False(t, ok)
	assert.Equal(t, 1, first.Len())
}
