package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/emotune/internal/observability"
)

var (
	// ErrTokenInvalid means the token was never issued or was already used.
	ErrTokenInvalid = errors.New("reset token invalid")
	// ErrTokenExpired means the token existed but its lifetime had passed.
	ErrTokenExpired = errors.New("reset token expired")
)

// DefaultResetTokenTTL is how long a password reset token stays usable.
const DefaultResetTokenTTL = time.Hour

type resetEntry struct {
	accountID int64
	expiresAt time.Time
}

// ResetTokenStore holds password reset tokens in memory. Tokens are single use:
// the first Consume that returns an account or ErrTokenExpired removes the token.
// Nothing survives a restart.
type ResetTokenStore struct {
	mu     sync.Mutex
	tokens map[string]resetEntry
	ttl    time.Duration
	now    func() time.Time
}

func NewResetTokenStore(ttl time.Duration) *ResetTokenStore {
	if ttl <= 0 {
		ttl = DefaultResetTokenTTL
	}
	return &ResetTokenStore{
		tokens: make(map[string]resetEntry),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Create issues a new token for accountID.
func (s *ResetTokenStore) Create(accountID int64) string {
	token := uuid.NewString()

	s.mu.Lock()
	s.tokens[token] = resetEntry{accountID: accountID, expiresAt: s.now().Add(s.ttl)}
	n := len(s.tokens)
	s.mu.Unlock()

	observability.ResetTokensActive.Set(float64(n))
	return token
}

// Consume redeems token at instant now and returns the account it was issued
// for. Expired tokens are deleted and reported as ErrTokenExpired.
func (s *ResetTokenStore) Consume(token string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer func() {
		n := len(s.tokens)
		s.mu.Unlock()
		observability.ResetTokensActive.Set(float64(n))
	}()

	entry, ok := s.tokens[token]
	if !ok {
		return 0, ErrTokenInvalid
	}
	delete(s.tokens, token)

	if now.After(entry.expiresAt) {
		return 0, ErrTokenExpired
	}
	return entry.accountID, nil
}

// Sweep drops every token that expired before now and returns how many were
// removed. Expired tokens are unusable either way; this only bounds memory.
func (s *ResetTokenStore) Sweep(now time.Time) int {
	s.mu.Lock()
	removed := 0
	for token, entry := range s.tokens {
		if now.After(entry.expiresAt) {
			delete(s.tokens, token)
			removed++
		}
	}
	n := len(s.tokens)
	s.mu.Unlock()

	observability.ResetTokensActive.Set(float64(n))
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *ResetTokenStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			if n := s.Sweep(t); n > 0 {
				slog.Debug("swept expired reset tokens", "count", n)
			}
		}
	}
}

// Len returns the number of tokens currently held.
func (s *ResetTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}
