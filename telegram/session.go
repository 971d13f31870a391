package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-escrow/internal/janitor"
	"github.com/google/uuid"
)

const (
	// DefaultSessionTTL is how long a chat link stays valid.
	DefaultSessionTTL = 24 * time.Hour
	// DefaultSessionSweepInterval is how often expired sessions are purged.
	DefaultSessionSweepInterval = time.Hour
)

// ErrMissingUserID is returned when a session is stored without a user id.
var ErrMissingUserID = goerrors.New("user id required to link a chat", goerrors.CategoryBadInput).
	WithTextCode("TELEGRAM_USER_REQUIRED").
	WithCode(goerrors.CodeBadRequest)

// Session links a marketplace user to a Telegram chat.
type Session struct {
	SessionID  string    `json:"session_id"`
	TelegramID int64     `json:"telegram_id"`
	UserID     string    `json:"user_id"`
	Username   string    `json:"username,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	seq        uint64
}

// SessionCache keeps Telegram links per user. A user may hold several
// sessions; lookups return the most recent one that has not expired.
// Absence is reported with a false flag, never an error.
type SessionCache interface {
	Store(userID string, telegramID int64, username string) (string, error)
	GetLatest(userID string) (Session, bool)
	ClearAll(userID string) int
	GetExternalID(userID string) (int64, bool)
}

// SessionOption configures a MemorySessionCache.
type SessionOption func(*MemorySessionCache)

// WithSessionClock injects the clock used for expiry and ordering.
func WithSessionClock(clock func() time.Time) SessionOption {
	return func(c *MemorySessionCache) {
		if clock != nil {
			c.now = clock
		}
	}
}

// WithSessionTTL overrides DefaultSessionTTL.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(c *MemorySessionCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithSessionSweepInterval overrides DefaultSessionSweepInterval.
func WithSessionSweepInterval(interval time.Duration) SessionOption {
	return func(c *MemorySessionCache) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

// MemorySessionCache is an in-process SessionCache indexed by user id.
type MemorySessionCache struct {
	mu       sync.Mutex
	byUser   map[string][]*Session
	seq      uint64
	now      func() time.Time
	ttl      time.Duration
	interval time.Duration
	janitor  *janitor.Janitor
}

var _ SessionCache = (*MemorySessionCache)(nil)

// NewMemorySessionCache returns an empty cache.
func NewMemorySessionCache(opts ...SessionOption) *MemorySessionCache {
	c := &MemorySessionCache{
		byUser:   make(map[string][]*Session),
		now:      time.Now,
		ttl:      DefaultSessionTTL,
		interval: DefaultSessionSweepInterval,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	c.janitor = janitor.New(c.interval, func() { c.Sweep() })
	return c
}

func (c *MemorySessionCache) Store(userID string, telegramID int64, username string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrMissingUserID
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.seq++
	session := &Session{
		SessionID:  uuid.NewString(),
		TelegramID: telegramID,
		UserID:     userID,
		Username:   strings.TrimPrefix(username, "@"),
		CreatedAt:  now,
		ExpiresAt:  now.Add(c.ttl),
		seq:        c.seq,
	}
	c.byUser[userID] = append(c.byUser[userID], session)
	return session.SessionID, nil
}

// GetLatest returns the newest live session. Ties on CreatedAt go to the
// session stored last.
func (c *MemorySessionCache) GetLatest(userID string) (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var latest *Session
	for _, s := range c.byUser[userID] {
		if !now.Before(s.ExpiresAt) {
			continue
		}
		if latest == nil || newer(s, latest) {
			latest = s
		}
	}

	if latest == nil {
		return Session{}, false
	}
	return *latest, true
}

func newer(a, b *Session) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.seq > b.seq
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// ClearAll removes every session of userID and returns how many existed.
func (c *MemorySessionCache) ClearAll(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.byUser[userID])
	delete(c.byUser, userID)
	return n
}

func (c *MemorySessionCache) GetExternalID(userID string) (int64, bool) {
	s, ok := c.GetLatest(userID)
	if !ok {
		return 0, false
	}
	return s.TelegramID, true
}

// Sweep drops expired sessions and returns how many were removed.
func (c *MemorySessionCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for userID, sessions := range c.byUser {
		live := sessions[:0]
		for _, s := range sessions {
			if now.Before(s.ExpiresAt) {
				live = append(live, s)
			} else {
				removed++
			}
		}
		if len(live) == 0 {
			delete(c.byUser, userID)
			continue
		}
		c.byUser[userID] = live
	}
	return removed
}

// Len returns the number of sessions held, expired ones included.
func (c *MemorySessionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, sessions := range c.byUser {
		n += len(sessions)
	}
	return n
}

// Start runs Sweep on the configured interval until ctx is done or Stop
// is called.
func (c *MemorySessionCache) Start(ctx context.Context) {
	c.janitor.Start(ctx)
}

// Stop ends the background sweep.
func (c *MemorySessionCache) Stop() {
	c.janitor.Stop()
}
