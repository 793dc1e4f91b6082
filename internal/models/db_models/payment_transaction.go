package db_models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TxnStatusInitiated TransactionStatus = "initiated"
	TxnStatusCompleted TransactionStatus = "completed"
	TxnStatusFailed    TransactionStatus = "failed"
	TxnStatusRefunded  TransactionStatus = "refunded"
)

const PaymentMethodCreditCard = "credit_card"

type PaymentTransaction struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey"`
	UserID          string            `gorm:"size:64;index"`
	Amount          decimal.Decimal   `gorm:"type:numeric(12,2)"`
	Currency        string            `gorm:"size:3"`
	TokensPurchased int64             `gorm:"not null"`
	PaymentMethod   string            `gorm:"size:32"`
	Status          TransactionStatus `gorm:"size:16;index"`

	// Masked instrument metadata only; full numbers are never stored.
	CardLast4 string `gorm:"size:4"`
	CardBrand string `gorm:"size:16"`

	FailureReason  string
	TokensReversed int64

	CreatedAt   int64 `gorm:"autoCreateTime:nano;index"`
	UpdatedAt   int64 `gorm:"autoUpdateTime:nano"`
	CompletedAt *int64
	RefundedAt  *int64
}

func (PaymentTransaction) TableName() string { return "payment_transactions" }

// CanTransition reports whether from -> to is an allowed status change.
func CanTransition(from, to TransactionStatus) bool {
	switch from {
	case TxnStatusInitiated:
		return to == TxnStatusCompleted || to == TxnStatusFailed
	case TxnStatusCompleted:
		return to == TxnStatusRefunded
	default:
		return false
	}
}
