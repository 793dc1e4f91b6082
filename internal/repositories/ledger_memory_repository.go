package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"exampattern/internal/models/db_models"
	"exampattern/pkg/utils"
)

// InMemoryLedgerStore keeps balances in process memory. Each user has a
// dedicated mutex held for the whole read-modify-write, so different users
// never contend with each other.
type InMemoryLedgerStore struct {
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	balances map[string]*db_models.TokenBalance
	logs     map[string][]db_models.TokenUsageLog
	seq      int64
}

var _ LedgerRepository = (*InMemoryLedgerStore)(nil)

func NewInMemoryLedgerStore() *InMemoryLedgerStore {
	return &InMemoryLedgerStore{
		locks:    make(map[string]*sync.Mutex),
		balances: make(map[string]*db_models.TokenBalance),
		logs:     make(map[string][]db_models.TokenUsageLog),
	}
}

func (s *InMemoryLedgerStore) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// nextStamp hands out strictly increasing timestamps so newest-first ordering
// is stable even when two entries land in the same clock tick.
func (s *InMemoryLedgerStore) nextStamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UnixNano()
	if now <= s.seq {
		now = s.seq + 1
	}
	s.seq = now
	return now
}

func (s *InMemoryLedgerStore) EnsureBalance(ctx context.Context, userID string, startingGrant int64) (*db_models.TokenBalance, error) {
	if err := ctx.Err(); err != nil {
		return nil, utils.StorageErr("ensure balance", err)
	}
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	b := s.loadOrSeed(userID, startingGrant)
	cp := *b
	return &cp, nil
}

// loadOrSeed must be called with the user's lock held.
func (s *InMemoryLedgerStore) loadOrSeed(userID string, startingGrant int64) *db_models.TokenBalance {
	s.mu.Lock()
	b, ok := s.balances[userID]
	s.mu.Unlock()
	if ok {
		return b
	}

	now := s.nextStamp()
	b = db_models.NewTokenBalance(userID, startingGrant, now)
	s.mu.Lock()
	s.balances[userID] = b
	if startingGrant > 0 {
		welcome := welcomeEntry(userID, startingGrant, now)
		welcome.ID = uuid.New()
		s.logs[userID] = append(s.logs[userID], *welcome)
	}
	s.mu.Unlock()
	return b
}

func (s *InMemoryLedgerStore) Mutate(ctx context.Context, req MutateRequest) (*MutateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, utils.StorageErr("mutate balance", err)
	}
	lock := s.userLock(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	stored := s.loadOrSeed(req.UserID, req.StartingGrant)

	if req.IdempotencyKey != "" {
		if prior, ok := s.findByKey(req.UserID, req.IdempotencyKey); ok {
			return req.replay(*stored, &prior)
		}
	}

	working := *stored
	entry, err := req.Apply(&working)
	if err != nil {
		return nil, err
	}
	if err := checkInvariant(&working); err != nil {
		return nil, err
	}

	now := s.nextStamp()
	working.Version++
	working.UpdatedAt = now

	s.mu.Lock()
	*stored = working
	if entry != nil {
		prepareEntry(entry, req, now)
		s.logs[req.UserID] = append(s.logs[req.UserID], *entry)
	}
	s.mu.Unlock()

	return &MutateResult{Balance: working, Entry: entry}, nil
}

func (s *InMemoryLedgerStore) findByKey(userID, key string) (db_models.TokenUsageLog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.logs[userID] {
		if l.IdempotencyKey != nil && *l.IdempotencyKey == key {
			return l, true
		}
	}
	return db_models.TokenUsageLog{}, false
}

func (s *InMemoryLedgerStore) ListUsage(ctx context.Context, userID string, limit int) ([]db_models.TokenUsageLog, error) {
	all, err := s.ListAllUsage(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt > all[j].CreatedAt })
	if n := clampLimit(limit); len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (s *InMemoryLedgerStore) ListAllUsage(ctx context.Context, userID string) ([]db_models.TokenUsageLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, utils.StorageErr("list usage", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]db_models.TokenUsageLog, len(s.logs[userID]))
	copy(out, s.logs[userID])
	return out, nil
}
