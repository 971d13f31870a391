// Package ephemeral holds short lived, single use tokens that bind a
// random string to a user id. Tokens back the Telegram linking flow.
package ephemeral

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
	// DefaultTTL is how long an issued token stays consumable.
	DefaultTTL = 300 * time.Second
	// DefaultSweepInterval is how often expired tokens are purged.
	DefaultSweepInterval = 60 * time.Second
)

// ErrMissingUserID is returned when Issue is called without a user id.
var ErrMissingUserID = goerrors.New("user id required to issue a token", goerrors.CategoryBadInput).
	WithTextCode("EPHEMERAL_USER_REQUIRED").
	WithCode(goerrors.CodeBadRequest)

// Token is a pending single use token.
type Token struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// Store issues and consumes single use tokens. Consume never fails: an
// unknown, expired or already used token yields ("", false).
type Store interface {
	Issue(userID string, opts ...IssueOption) (string, error)
	Consume(token string) (string, bool)
}

type issueOptions struct {
	ttl time.Duration
}

// IssueOption customizes a single Issue call.
type IssueOption func(*issueOptions)

// WithTTL overrides the store TTL for one token. Zero issues a token that
// is already expired.
func WithTTL(ttl time.Duration) IssueOption {
	return func(o *issueOptions) {
		if ttl < 0 {
			ttl = 0
		}
		o.ttl = ttl
	}
}

// Option configures a MemoryStore.
type Option func(*MemoryStore)

// WithClock injects the clock used for expiry.
func WithClock(clock func() time.Time) Option {
	return func(s *MemoryStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

// WithDefaultTTL sets the TTL used when Issue gets no WithTTL option.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSweepInterval sets how often Start purges expired tokens.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *MemoryStore) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// MemoryStore is a mutex guarded in-process Store.
type MemoryStore struct {
	mu       sync.Mutex
	tokens   map[string]Token
	now      func() time.Time
	ttl      time.Duration
	interval time.Duration
	janitor  *janitor.Janitor
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store. Call Start to purge expired
// tokens in the background.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		tokens:   make(map[string]Token),
		now:      time.Now,
		ttl:      DefaultTTL,
		interval: DefaultSweepInterval,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	s.janitor = janitor.New(s.interval, func() { s.Sweep() })
	return s
}

func (s *MemoryStore) Issue(userID string, opts ...IssueOption) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", ErrMissingUserID
	}

	o := issueOptions{ttl: s.ttl}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	token := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[token] = Token{
		Token:     token,
		UserID:    userID,
		ExpiresAt: s.now().Add(o.ttl),
	}
	return token, nil
}

// Consume returns the user id bound to token and deletes it. Lookup, expiry
// check and delete happen under one lock, so at most one caller wins.
func (s *MemoryStore) Consume(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tokens[token]
	if !ok {
		return "", false
	}
	delete(s.tokens, token)

	if !s.now().Before(entry.ExpiresAt) {
		return "", false
	}
	return entry.UserID, true
}

// Sweep removes expired tokens and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, entry := range s.tokens {
		if !now.Before(entry.ExpiresAt) {
			delete(s.tokens, token)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored tokens, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// Start runs Sweep on the configured interval until ctx is done or Stop
// is called.
func (s *MemoryStore) Start(ctx context.Context) {
	s.janitor.Start(ctx)
}

// Stop ends the background sweep.
func (s *MemoryStore) Stop() {
	s.janitor.Stop()
}
