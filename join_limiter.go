package escrow

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-escrow/internal/janitor"
	"golang.org/x/time/rate"
)

// JoinLimiter decides whether an actor may try another join code.
type JoinLimiter interface {
	Allow(actorID string) bool
}

// JoinLimit configures RateJoinLimiter.
type JoinLimit struct {
	PerMinute float64
	Burst     int
	// IdleTTL drops limiters for actors that stopped trying.
	IdleTTL time.Duration
}

// DefaultJoinLimit allows a short burst then one attempt every 6 seconds.
var DefaultJoinLimit = JoinLimit{PerMinute: 10, Burst: 5, IdleTTL: 10 * time.Minute}

type joinEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateJoinLimiter keeps a token bucket per actor.
type RateJoinLimiter struct {
	limit   JoinLimit
	mu      sync.Mutex
	actors  map[string]*joinEntry
	now     func() time.Time
	janitor *janitor.Janitor
}

var _ JoinLimiter = (*RateJoinLimiter)(nil)

// NewRateJoinLimiter returns a per-actor limiter. Zero fields take the
// DefaultJoinLimit values.
func NewRateJoinLimiter(limit JoinLimit) *RateJoinLimiter {
	if limit.PerMinute <= 0 {
		limit.PerMinute = DefaultJoinLimit.PerMinute
	}
	if limit.Burst <= 0 {
		limit.Burst = DefaultJoinLimit.Burst
	}
	if limit.IdleTTL <= 0 {
		limit.IdleTTL = DefaultJoinLimit.IdleTTL
	}

	l := &RateJoinLimiter{
		limit:  limit,
		actors: make(map[string]*joinEntry),
		now:    time.Now,
	}
	l.janitor = janitor.New(limit.IdleTTL, func() { l.Sweep() })
	return l
}

// WithClock injects a custom clock.
func (l *RateJoinLimiter) WithClock(clock func() time.Time) *RateJoinLimiter {
	if clock != nil {
		l.now = clock
	}
	return l
}

// Len returns the number of tracked actors.
func (l *RateJoinLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.actors)
}

func (l *RateJoinLimiter) Allow(actorID string) bool {
	now := l.now()

	l.mu.Lock()
	entry, ok := l.actors[actorID]
	if !ok {
		entry = &joinEntry{
			limiter: rate.NewLimiter(rate.Limit(l.limit.PerMinute/60.0), l.limit.Burst),
		}
		l.actors[actorID] = entry
	}
	entry.lastSeen = now
	l.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

// Sweep drops idle actors and returns how many were removed.
func (l *RateJoinLimiter) Sweep() int {
	cutoff := l.now().Add(-l.limit.IdleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, entry := range l.actors {
		if entry.lastSeen.Before(cutoff) {
			delete(l.actors, id)
			removed++
		}
	}
	return removed
}

// Start runs Sweep every IdleTTL until ctx is done or Stop is called.
func (l *RateJoinLimiter) Start(ctx context.Context) {
	l.janitor.Start(ctx)
}

// Stop ends the background sweep.
func (l *RateJoinLimiter) Stop() {
	l.janitor.Stop()
}
