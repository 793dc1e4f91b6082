package repositories

import (
	"context"
	"fmt"

	"exampattern/internal/models/db_models"
)

// BalanceMutation inspects the locked balance, adjusts it in place and
// returns the log entry describing the change. Returning an error aborts the
// mutation and nothing is persisted.
type BalanceMutation func(balance *db_models.TokenBalance) (*db_models.TokenUsageLog, error)

type MutateRequest struct {
	UserID string
	// StartingGrant seeds the balance row when the user has none yet.
	StartingGrant  int64
	IdempotencyKey string
	Apply          BalanceMutation
	// Replay vets the entry an earlier call stored under IdempotencyKey. A
	// non-nil error rejects the call instead of replaying someone else's entry.
	Replay func(prior *db_models.TokenUsageLog) error
}

type MutateResult struct {
	Balance db_models.TokenBalance
	Entry   *db_models.TokenUsageLog
	// Replayed is set when IdempotencyKey matched an earlier entry; Apply was
	// not called and Entry is the original one.
	Replayed bool
}

// LedgerRepository persists balances and the usage log. Mutate must serialize
// concurrent calls for the same user and commit the balance change together
// with the log entry.
type LedgerRepository interface {
	EnsureBalance(ctx context.Context, userID string, startingGrant int64) (*db_models.TokenBalance, error)
	Mutate(ctx context.Context, req MutateRequest) (*MutateResult, error)
	ListUsage(ctx context.Context, userID string, limit int) ([]db_models.TokenUsageLog, error)
	ListAllUsage(ctx context.Context, userID string) ([]db_models.TokenUsageLog, error)
}

// TransactionRepository persists settlement records.
type TransactionRepository interface {
	Create(ctx context.Context, txn *db_models.PaymentTransaction) error
	FindByIDForUser(ctx context.Context, id, userID string) (*db_models.PaymentTransaction, error)
	// Transition moves a record from one status to another only if it is
	// currently in from; otherwise it returns utils.ErrInvalidState.
	Transition(ctx context.Context, id string, from, to db_models.TransactionStatus, fields TransitionFields) (*db_models.PaymentTransaction, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]db_models.PaymentTransaction, error)
}

type TransitionFields struct {
	FailureReason  *string
	TokensReversed *int64
	CompletedAt    *int64
	RefundedAt     *int64
}

func (req MutateRequest) replay(balance db_models.TokenBalance, prior *db_models.TokenUsageLog) (*MutateResult, error) {
	if req.Replay != nil {
		if err := req.Replay(prior); err != nil {
			return nil, err
		}
	}
	return &MutateResult{Balance: balance, Entry: prior, Replayed: true}, nil
}

func welcomeEntry(userID string, grant int64, now int64) *db_models.TokenUsageLog {
	return &db_models.TokenUsageLog{
		UserID:      userID,
		ActionType:  db_models.ActionWelcomeBonus,
		Amount:      -grant,
		Description: "Starting token grant",
		CreatedAt:   now,
	}
}

func checkInvariant(b *db_models.TokenBalance) error {
	if !b.Reconciles() {
		return fmt.Errorf("ledger invariant violated for user %s: available=%d purchased=%d used=%d",
			b.UserID, b.Available, b.Purchased, b.Used)
	}
	return nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)
