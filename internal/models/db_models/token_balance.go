package db_models

import "github.com/google/uuid"

// TokenBalance is the per-user spendable counter. Available always equals
// Purchased - Used.
type TokenBalance struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    string    `gorm:"uniqueIndex;size:64"`
	Available int64     `gorm:"not null;default:0"`
	Used      int64     `gorm:"not null;default:0"`
	Purchased int64     `gorm:"not null;default:0"`
	Version   int64     `gorm:"not null;default:0"`
	CreatedAt int64     `gorm:"autoCreateTime:nano"`
	UpdatedAt int64     `gorm:"autoUpdateTime:nano"`
}

func (TokenBalance) TableName() string { return "user_tokens" }

func NewTokenBalance(userID string, grant int64, now int64) *TokenBalance {
	return &TokenBalance{
		ID:        uuid.New(),
		UserID:    userID,
		Available: grant,
		Purchased: grant,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (b *TokenBalance) Reconciles() bool {
	return b.Available == b.Purchased-b.Used && b.Available >= 0
}
