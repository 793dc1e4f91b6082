package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"exampattern/internal/models/db_models"
	"exampattern/internal/models/response_models"
	"exampattern/internal/repositories"
	"exampattern/pkg/utils"
)

// UsageContext tags a debit with what the tokens were spent on.
type UsageContext struct {
	ExamType string
	Subject  string
	Topic    string
	Metadata map[string]any
}

type LedgerServiceInterface interface {
	GetBalance(ctx context.Context, userID string) (*response_models.TokenBalanceResponse, error)
	HasSufficient(ctx context.Context, userID string, action ActionType) (*response_models.TokenCheckResponse, error)
	Debit(ctx context.Context, userID string, action ActionType, description string, usage UsageContext, idempotencyKey string) (*response_models.DebitResponse, error)
	Credit(ctx context.Context, userID string, amount int64, source string, idempotencyKey string) (*response_models.CreditResponse, error)
	// ForceAdjust removes up to amount tokens without an insufficiency check.
	// It exists for refund compensation only.
	ForceAdjust(ctx context.Context, userID string, amount int64, reason string, idempotencyKey string) (*response_models.AdjustResponse, error)
	UsageHistory(ctx context.Context, userID string, limit int) ([]response_models.UsageLogResponse, error)
	Statistics(ctx context.Context, userID string) (*response_models.TokenStatisticsResponse, error)
	Pricing() *response_models.PricingResponse
}

type LedgerService struct {
	repo          repositories.LedgerRepository
	costs         CostTable
	startingGrant int64
}

func NewLedgerService(repo repositories.LedgerRepository, costs CostTable, startingGrant int64) LedgerServiceInterface {
	if costs == nil {
		costs = DefaultCostTable()
	}
	return &LedgerService{repo: repo, costs: costs, startingGrant: startingGrant}
}

func (l *LedgerService) GetBalance(ctx context.Context, userID string) (*response_models.TokenBalanceResponse, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	b, err := l.repo.EnsureBalance(ctx, userID, l.startingGrant)
	if err != nil {
		return nil, err
	}
	return toBalanceResponse(b), nil
}

func (l *LedgerService) HasSufficient(ctx context.Context, userID string, action ActionType) (*response_models.TokenCheckResponse, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	cost, err := l.costs.Cost(action)
	if err != nil {
		return nil, err
	}
	b, err := l.repo.EnsureBalance(ctx, userID, l.startingGrant)
	if err != nil {
		return nil, err
	}
	return &response_models.TokenCheckResponse{
		ActionType:    string(action),
		Required:      cost,
		Available:     b.Available,
		HasSufficient: b.Available >= cost,
	}, nil
}

func (l *LedgerService) Debit(ctx context.Context, userID string, action ActionType, description string, usage UsageContext, idempotencyKey string) (*response_models.DebitResponse, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	cost, err := l.costs.Cost(action)
	if err != nil {
		return nil, err
	}
	metadata, err := encodeMetadata(usage.Metadata)
	if err != nil {
		return nil, err
	}
	if description == "" {
		description = fmt.Sprintf("Used %d tokens for %s", cost, action)
	}

	res, err := l.repo.Mutate(ctx, repositories.MutateRequest{
		UserID:         userID,
		StartingGrant:  l.startingGrant,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
		Replay:         sameOperation(string(action), func(amount int64) bool { return amount == cost }),
		Apply: func(b *db_models.TokenBalance) (*db_models.TokenUsageLog, error) {
			if b.Available < cost {
				return nil, &utils.InsufficientTokensError{
					Action:    string(action),
					Required:  cost,
					Available: b.Available,
				}
			}
			b.Available -= cost
			b.Used += cost
			return &db_models.TokenUsageLog{
				ActionType:  string(action),
				Amount:      cost,
				Description: description,
				ExamType:    usage.ExamType,
				Subject:     usage.Subject,
				Topic:       usage.Topic,
				Metadata:    metadata,
			}, nil
		},
	})
	if err != nil {
		log.WithFields(log.Fields{"user_id": userID, "action": action, "cost": cost}).
			WithError(err).Info("token debit rejected")
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":   userID,
		"action":    action,
		"deducted":  cost,
		"remaining": res.Balance.Available,
		"replayed":  res.Replayed,
	}).Info("tokens debited")

	return &response_models.DebitResponse{
		ActionType: string(action),
		Deducted:   res.Entry.Amount,
		Remaining:  res.Balance.Available,
		EntryID:    res.Entry.ID.String(),
		Replayed:   res.Replayed,
	}, nil
}

func (l *LedgerService) Credit(ctx context.Context, userID string, amount int64, source string, idempotencyKey string) (*response_models.CreditResponse, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: credit must be positive, got %d", utils.ErrInvalidAmount, amount)
	}
	action := db_models.ActionTokenPurchase
	if source == db_models.ActionAdminGrant {
		action = db_models.ActionAdminGrant
	}
	if source == "" {
		source = action
	}

	res, err := l.repo.Mutate(ctx, repositories.MutateRequest{
		UserID:         userID,
		StartingGrant:  l.startingGrant,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
		Replay:         sameOperation(action, func(logged int64) bool { return logged == -amount }),
		Apply: func(b *db_models.TokenBalance) (*db_models.TokenUsageLog, error) {
			b.Available += amount
			b.Purchased += amount
			return &db_models.TokenUsageLog{
				ActionType:  action,
				Amount:      -amount,
				Description: fmt.Sprintf("Added %d tokens via %s", amount, source),
			}, nil
		},
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"user_id":   userID,
		"amount":    amount,
		"source":    source,
		"available": res.Balance.Available,
		"replayed":  res.Replayed,
	}).Info("tokens credited")

	return &response_models.CreditResponse{
		Added:     -res.Entry.Amount,
		Available: res.Balance.Available,
		EntryID:   res.Entry.ID.String(),
		Replayed:  res.Replayed,
	}, nil
}

func (l *LedgerService) ForceAdjust(ctx context.Context, userID string, amount int64, reason string, idempotencyKey string) (*response_models.AdjustResponse, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: adjustment must be positive, got %d", utils.ErrInvalidAmount, amount)
	}

	res, err := l.repo.Mutate(ctx, repositories.MutateRequest{
		UserID:         userID,
		StartingGrant:  l.startingGrant,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
		// the stored amount may have been clamped below the request
		Replay: sameOperation(db_models.ActionRefund, func(applied int64) bool { return applied >= 0 && applied <= amount }),
		Apply: func(b *db_models.TokenBalance) (*db_models.TokenUsageLog, error) {
			applied := min(amount, b.Available)
			b.Available -= applied
			b.Used += applied
			return &db_models.TokenUsageLog{
				ActionType:  db_models.ActionRefund,
				Amount:      applied,
				Description: reason,
			}, nil
		},
	})
	if err != nil {
		return nil, err
	}

	fields := log.Fields{
		"user_id":   userID,
		"requested": amount,
		"applied":   res.Entry.Amount,
		"available": res.Balance.Available,
	}
	if res.Entry.Amount < amount {
		log.WithFields(fields).Warn("refund adjustment clamped to available balance")
	} else {
		log.WithFields(fields).Info("tokens reversed")
	}

	return &response_models.AdjustResponse{
		Requested: amount,
		Applied:   res.Entry.Amount,
		Available: res.Balance.Available,
	}, nil
}

func (l *LedgerService) UsageHistory(ctx context.Context, userID string, limit int) ([]response_models.UsageLogResponse, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	logs, err := l.repo.ListUsage(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]response_models.UsageLogResponse, 0, len(logs))
	for i := range logs {
		out = append(out, toUsageLogResponse(&logs[i]))
	}
	return out, nil
}

func (l *LedgerService) Statistics(ctx context.Context, userID string) (*response_models.TokenStatisticsResponse, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	b, err := l.repo.EnsureBalance(ctx, userID, l.startingGrant)
	if err != nil {
		return nil, err
	}
	logs, err := l.repo.ListAllUsage(ctx, userID)
	if err != nil {
		return nil, err
	}

	byAction := make(map[string]int64, len(billableActions))
	for _, a := range billableActions {
		byAction[string(a)] = 0
	}
	var purchased int64
	for _, entry := range logs {
		if entry.IsCredit() {
			purchased += -entry.Amount
			continue
		}
		byAction[entry.ActionType] += entry.Amount
	}

	return &response_models.TokenStatisticsResponse{
		Balance:        *toBalanceResponse(b),
		UsageByAction:  byAction,
		TotalUsed:      b.Used,
		TotalPurchased: purchased,
		EntryCount:     len(logs),
	}, nil
}

func (l *LedgerService) Pricing() *response_models.PricingResponse {
	return buildPricingResponse(l.costs)
}

// ClientIdempotencyKey scopes a caller-supplied key so it can never collide
// with the keys settlement derives from transaction ids.
func ClientIdempotencyKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	return clientKeyPrefix + key
}

const clientKeyPrefix = "client:"

// sameOperation rejects a replay whose stored entry was written by a
// different kind of ledger call.
func sameOperation(action string, amountOK func(int64) bool) func(*db_models.TokenUsageLog) error {
	return func(prior *db_models.TokenUsageLog) error {
		if prior.ActionType != action || !amountOK(prior.Amount) {
			return fmt.Errorf("%w: idempotency key already used for %s of %d tokens",
				utils.ErrInvalidState, prior.ActionType, prior.Amount)
		}
		return nil
	}
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", utils.ErrInvalidInput)
	}
	return nil
}

func encodeMetadata(m map[string]any) (datatypes.JSON, error) {
	if len(m) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %v", utils.ErrInvalidInput, err)
	}
	return datatypes.JSON(raw), nil
}

func toBalanceResponse(b *db_models.TokenBalance) *response_models.TokenBalanceResponse {
	return &response_models.TokenBalanceResponse{
		Available: b.Available,
		Used:      b.Used,
		Purchased: b.Purchased,
		UpdatedAt: utils.FormatRFC3339(utils.FromUnixNano(b.UpdatedAt)),
	}
}

func toUsageLogResponse(e *db_models.TokenUsageLog) response_models.UsageLogResponse {
	return response_models.UsageLogResponse{
		ID:          e.ID.String(),
		ActionType:  e.ActionType,
		Amount:      e.Amount,
		Description: e.Description,
		ExamType:    e.ExamType,
		Subject:     e.Subject,
		Topic:       e.Topic,
		Metadata:    e.Metadata,
		CreatedAt:   utils.FormatRFC3339(utils.FromUnixNano(e.CreatedAt)),
	}
}
