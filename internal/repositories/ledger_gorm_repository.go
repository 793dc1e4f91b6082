package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"exampattern/internal/models/db_models"
	"exampattern/pkg/utils"
)

type ledgerRepository struct {
	db *gorm.DB
}

var _ LedgerRepository = (*ledgerRepository)(nil)

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) EnsureBalance(ctx context.Context, userID string, startingGrant int64) (*db_models.TokenBalance, error) {
	var balance db_models.TokenBalance
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&balance).Error
	if err == nil {
		return &balance, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.StorageErr("find balance", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := lockOrCreateBalance(tx, userID, startingGrant)
		if err != nil {
			return err
		}
		balance = *locked
		return nil
	})
	if err != nil {
		return nil, utils.StorageErr("create balance", err)
	}
	return &balance, nil
}

func (r *ledgerRepository) Mutate(ctx context.Context, req MutateRequest) (*MutateResult, error) {
	var (
		result   MutateResult
		applyErr error
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := lockOrCreateBalance(tx, req.UserID, req.StartingGrant)
		if err != nil {
			return err
		}

		if req.IdempotencyKey != "" {
			var prior db_models.TokenUsageLog
			err := tx.Where("user_id = ? AND idempotency_key = ?", req.UserID, req.IdempotencyKey).
				First(&prior).Error
			if err == nil {
				replayed, err := req.replay(*balance, &prior)
				if err != nil {
					applyErr = err
					return err
				}
				result = *replayed
				return nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		entry, err := req.Apply(balance)
		if err != nil {
			applyErr = err
			return err
		}
		if err := checkInvariant(balance); err != nil {
			applyErr = err
			return err
		}

		now := time.Now().UnixNano()
		balance.Version++
		balance.UpdatedAt = now
		if err := tx.Model(&db_models.TokenBalance{}).
			Where("id = ?", balance.ID).
			Updates(map[string]interface{}{
				"available":  balance.Available,
				"used":       balance.Used,
				"purchased":  balance.Purchased,
				"version":    balance.Version,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}

		if entry != nil {
			prepareEntry(entry, req, now)
			if err := tx.Create(entry).Error; err != nil {
				return err
			}
		}

		result = MutateResult{Balance: *balance, Entry: entry}
		return nil
	})

	if applyErr != nil {
		return nil, applyErr
	}
	if err != nil {
		return nil, utils.StorageErr("mutate balance", err)
	}
	return &result, nil
}

func (r *ledgerRepository) ListUsage(ctx context.Context, userID string, limit int) ([]db_models.TokenUsageLog, error) {
	var logs []db_models.TokenUsageLog
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&logs).Error
	if err != nil {
		return nil, utils.StorageErr("list usage", err)
	}
	return logs, nil
}

func (r *ledgerRepository) ListAllUsage(ctx context.Context, userID string) ([]db_models.TokenUsageLog, error) {
	var logs []db_models.TokenUsageLog
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&logs).Error
	if err != nil {
		return nil, utils.StorageErr("list usage", err)
	}
	return logs, nil
}

// lockOrCreateBalance returns the user's balance row locked FOR UPDATE,
// inserting it with the starting grant first when it does not exist.
func lockOrCreateBalance(tx *gorm.DB, userID string, startingGrant int64) (*db_models.TokenBalance, error) {
	var balance db_models.TokenBalance
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&balance).Error
	if err == nil {
		return &balance, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UnixNano()
	seed := db_models.NewTokenBalance(userID, startingGrant, now)
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(seed)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 1 && startingGrant > 0 {
		welcome := welcomeEntry(userID, startingGrant, now)
		welcome.ID = uuid.New()
		if err := tx.Create(welcome).Error; err != nil {
			return nil, err
		}
	}

	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

func prepareEntry(entry *db_models.TokenUsageLog, req MutateRequest, now int64) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.UserID = req.UserID
	if entry.CreatedAt == 0 {
		entry.CreatedAt = now
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		entry.IdempotencyKey = &key
	}
}
