package repositories

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"exampattern/internal/models/db_models"
)

const (
	colBalances     = "user_tokens"
	colUsageLogs    = "token_usage_logs"
	colTransactions = "payment_transactions"
)

type balanceDoc struct {
	UserID    string `bson:"_id"`
	ID        string `bson:"balance_id"`
	Available int64  `bson:"available"`
	Used      int64  `bson:"used"`
	Purchased int64  `bson:"purchased"`
	Version   int64  `bson:"version"`
	CreatedAt int64  `bson:"created_at"`
	UpdatedAt int64  `bson:"updated_at"`
	// Pending is the log entry of the last balance change until it has been
	// copied into the usage log collection.
	Pending *usageLogDoc `bson:"pending,omitempty"`
}

func toBalanceDoc(b *db_models.TokenBalance) *balanceDoc {
	return &balanceDoc{
		UserID:    b.UserID,
		ID:        b.ID.String(),
		Available: b.Available,
		Used:      b.Used,
		Purchased: b.Purchased,
		Version:   b.Version,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func fromBalanceDoc(d *balanceDoc) *db_models.TokenBalance {
	id, _ := uuid.Parse(d.ID)
	return &db_models.TokenBalance{
		ID:        id,
		UserID:    d.UserID,
		Available: d.Available,
		Used:      d.Used,
		Purchased: d.Purchased,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type usageLogDoc struct {
	ID             string `bson:"_id"`
	UserID         string `bson:"user_id"`
	ActionType     string `bson:"action_type"`
	Amount         int64  `bson:"amount"`
	Description    string `bson:"description,omitempty"`
	ExamType       string `bson:"exam_type,omitempty"`
	Subject        string `bson:"subject,omitempty"`
	Topic          string `bson:"topic,omitempty"`
	Metadata       []byte `bson:"metadata,omitempty"`
	IdempotencyKey string `bson:"idempotency_key,omitempty"`
	CreatedAt      int64  `bson:"created_at"`
}

func toUsageLogDoc(l *db_models.TokenUsageLog) *usageLogDoc {
	d := &usageLogDoc{
		ID:          l.ID.String(),
		UserID:      l.UserID,
		ActionType:  l.ActionType,
		Amount:      l.Amount,
		Description: l.Description,
		ExamType:    l.ExamType,
		Subject:     l.Subject,
		Topic:       l.Topic,
		Metadata:    []byte(l.Metadata),
		CreatedAt:   l.CreatedAt,
	}
	if l.IdempotencyKey != nil {
		d.IdempotencyKey = *l.IdempotencyKey
	}
	return d
}

func fromUsageLogDoc(d *usageLogDoc) db_models.TokenUsageLog {
	id, _ := uuid.Parse(d.ID)
	l := db_models.TokenUsageLog{
		ID:          id,
		UserID:      d.UserID,
		ActionType:  d.ActionType,
		Amount:      d.Amount,
		Description: d.Description,
		ExamType:    d.ExamType,
		Subject:     d.Subject,
		Topic:       d.Topic,
		CreatedAt:   d.CreatedAt,
	}
	if len(d.Metadata) > 0 {
		l.Metadata = datatypes.JSON(d.Metadata)
	}
	if d.IdempotencyKey != "" {
		key := d.IdempotencyKey
		l.IdempotencyKey = &key
	}
	return l
}

// transactionDoc stores the amount as a decimal string so cents survive the
// round trip.
type transactionDoc struct {
	ID              string `bson:"_id"`
	UserID          string `bson:"user_id"`
	Amount          string `bson:"amount"`
	Currency        string `bson:"currency"`
	TokensPurchased int64  `bson:"tokens_purchased"`
	PaymentMethod   string `bson:"payment_method"`
	Status          string `bson:"status"`
	CardLast4       string `bson:"card_last4,omitempty"`
	CardBrand       string `bson:"card_brand,omitempty"`
	FailureReason   string `bson:"failure_reason,omitempty"`
	TokensReversed  int64  `bson:"tokens_reversed"`
	CreatedAt       int64  `bson:"created_at"`
	UpdatedAt       int64  `bson:"updated_at"`
	CompletedAt     *int64 `bson:"completed_at,omitempty"`
	RefundedAt      *int64 `bson:"refunded_at,omitempty"`
}

func toTransactionDoc(t *db_models.PaymentTransaction) *transactionDoc {
	return &transactionDoc{
		ID:              t.ID.String(),
		UserID:          t.UserID,
		Amount:          t.Amount.StringFixed(2),
		Currency:        t.Currency,
		TokensPurchased: t.TokensPurchased,
		PaymentMethod:   t.PaymentMethod,
		Status:          string(t.Status),
		CardLast4:       t.CardLast4,
		CardBrand:       t.CardBrand,
		FailureReason:   t.FailureReason,
		TokensReversed:  t.TokensReversed,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		CompletedAt:     t.CompletedAt,
		RefundedAt:      t.RefundedAt,
	}
}

func fromTransactionDoc(d *transactionDoc) (*db_models.PaymentTransaction, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return nil, err
	}
	return &db_models.PaymentTransaction{
		ID:              id,
		UserID:          d.UserID,
		Amount:          amount,
		Currency:        d.Currency,
		TokensPurchased: d.TokensPurchased,
		PaymentMethod:   d.PaymentMethod,
		Status:          db_models.TransactionStatus(d.Status),
		CardLast4:       d.CardLast4,
		CardBrand:       d.CardBrand,
		FailureReason:   d.FailureReason,
		TokensReversed:  d.TokensReversed,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
		CompletedAt:     d.CompletedAt,
		RefundedAt:      d.RefundedAt,
	}, nil
}
