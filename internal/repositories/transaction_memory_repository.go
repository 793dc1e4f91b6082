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

type InMemoryTransactionStore struct {
	mu   sync.Mutex
	txns map[uuid.UUID]*db_models.PaymentTransaction
	seq  int64
}

var _ TransactionRepository = (*InMemoryTransactionStore)(nil)

func NewInMemoryTransactionStore() *InMemoryTransactionStore {
	return &InMemoryTransactionStore{txns: make(map[uuid.UUID]*db_models.PaymentTransaction)}
}

func (s *InMemoryTransactionStore) stamp() int64 {
	now := time.Now().UnixNano()
	if now <= s.seq {
		now = s.seq + 1
	}
	s.seq = now
	return now
}

func (s *InMemoryTransactionStore) Create(ctx context.Context, txn *db_models.PaymentTransaction) error {
	if err := ctx.Err(); err != nil {
		return utils.StorageErr("create transaction", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt == 0 {
		txn.CreatedAt = s.stamp()
	}
	txn.UpdatedAt = txn.CreatedAt
	cp := *txn
	s.txns[txn.ID] = &cp
	return nil
}

func (s *InMemoryTransactionStore) FindByIDForUser(ctx context.Context, id, userID string) (*db_models.PaymentTransaction, error) {
	txnID, err := uuid.Parse(id)
	if err != nil {
		return nil, utils.ErrTransactionNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[txnID]
	if !ok || txn.UserID != userID {
		return nil, utils.ErrTransactionNotFound
	}
	cp := *txn
	return &cp, nil
}

func (s *InMemoryTransactionStore) Transition(ctx context.Context, id string, from, to db_models.TransactionStatus, fields TransitionFields) (*db_models.PaymentTransaction, error) {
	if !db_models.CanTransition(from, to) {
		return nil, utils.ErrInvalidState
	}
	txnID, err := uuid.Parse(id)
	if err != nil {
		return nil, utils.ErrTransactionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	txn, ok := s.txns[txnID]
	if !ok {
		return nil, utils.ErrTransactionNotFound
	}
	if txn.Status != from {
		return nil, utils.ErrInvalidState
	}

	txn.Status = to
	txn.UpdatedAt = s.stamp()
	if fields.FailureReason != nil {
		txn.FailureReason = *fields.FailureReason
	}
	if fields.TokensReversed != nil {
		txn.TokensReversed = *fields.TokensReversed
	}
	if fields.CompletedAt != nil {
		v := *fields.CompletedAt
		txn.CompletedAt = &v
	}
	if fields.RefundedAt != nil {
		v := *fields.RefundedAt
		txn.RefundedAt = &v
	}
	cp := *txn
	return &cp, nil
}

func (s *InMemoryTransactionStore) ListByUser(ctx context.Context, userID string, limit int) ([]db_models.PaymentTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db_models.PaymentTransaction
	for _, txn := range s.txns {
		if txn.UserID == userID {
			out = append(out, *txn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
