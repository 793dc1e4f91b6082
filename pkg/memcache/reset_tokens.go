package mem

import (
	"context"
	"sync"
	"time"
)

// TokenStore keeps short-lived single-use tokens (email verification,
// password reset, OAuth state) mapped to the value they stand for.
type TokenStore interface {
	Set(ctx context.Context, token string, value string, ttl time.Duration) error

	// Consume returns the value for token if not expired and removes the
	// token (single-use). Returns "" if missing/expired.
	Consume(ctx context.Context, token string) (string, error)

	// Peek reads without consuming.
	Peek(ctx context.Context, token string) (string, bool, error)
}

type entry struct {
	value     string
	expiresAt time.Time
}

type ResetTokens struct {
	mu   sync.RWMutex
	data map[string]entry
	now  func() time.Time
}

var _ TokenStore = (*ResetTokens)(nil)

func NewResetTokens() *ResetTokens {
	return &ResetTokens{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

func (s *ResetTokens) Set(_ context.Context, token string, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[token] = entry{
		value:     value,
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *ResetTokens) Consume(_ context.Context, token string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[token]
	if !ok {
		return "", nil
	}
	delete(s.data, token)
	if s.now().After(e.expiresAt) {
		return "", nil
	}
	return e.value, nil
}

func (s *ResetTokens) Peek(_ context.Context, token string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[token]
	if !ok || s.now().After(e.expiresAt) {
		return "", false, nil
	}
	return e.value, true, nil
}
