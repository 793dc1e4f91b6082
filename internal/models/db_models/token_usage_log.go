package db_models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ActionTokenPurchase = "token_purchase"
	ActionWelcomeBonus  = "welcome_bonus"
	ActionAdminGrant    = "admin_grant"
	ActionRefund        = "refund"
)

// TokenUsageLog is an append-only audit entry. Debits carry a positive
// Amount, credits a negative one.
type TokenUsageLog struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID         string    `gorm:"size:64;uniqueIndex:idx_usage_user_key,priority:1"`
	ActionType     string    `gorm:"size:64;index"`
	Amount         int64
	Description    string
	ExamType       string
	Subject        string
	Topic          string
	Metadata       datatypes.JSON
	IdempotencyKey *string `gorm:"size:128;uniqueIndex:idx_usage_user_key,priority:2"`
	CreatedAt      int64   `gorm:"autoCreateTime:nano;index"`
}

func (TokenUsageLog) TableName() string { return "token_usage_logs" }

func (l *TokenUsageLog) IsCredit() bool { return l.Amount < 0 }
