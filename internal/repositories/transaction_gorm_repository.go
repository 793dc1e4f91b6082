package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"exampattern/internal/models/db_models"
	"exampattern/pkg/utils"
)

type transactionRepository struct {
	db *gorm.DB
}

var _ TransactionRepository = (*transactionRepository)(nil)

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, txn *db_models.PaymentTransaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt == 0 {
		txn.CreatedAt = time.Now().UnixNano()
	}
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return utils.StorageErr("create transaction", err)
	}
	return nil
}

func (r *transactionRepository) FindByIDForUser(ctx context.Context, id, userID string) (*db_models.PaymentTransaction, error) {
	txnID, err := uuid.Parse(id)
	if err != nil {
		return nil, utils.ErrTransactionNotFound
	}

	var txn db_models.PaymentTransaction
	err = r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", txnID, userID).
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrTransactionNotFound
		}
		return nil, utils.StorageErr("find transaction", err)
	}
	return &txn, nil
}

func (r *transactionRepository) Transition(ctx context.Context, id string, from, to db_models.TransactionStatus, fields TransitionFields) (*db_models.PaymentTransaction, error) {
	if !db_models.CanTransition(from, to) {
		return nil, utils.ErrInvalidState
	}
	txnID, err := uuid.Parse(id)
	if err != nil {
		return nil, utils.ErrTransactionNotFound
	}

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now().UnixNano(),
	}
	if fields.FailureReason != nil {
		updates["failure_reason"] = *fields.FailureReason
	}
	if fields.TokensReversed != nil {
		updates["tokens_reversed"] = *fields.TokensReversed
	}
	if fields.CompletedAt != nil {
		updates["completed_at"] = *fields.CompletedAt
	}
	if fields.RefundedAt != nil {
		updates["refunded_at"] = *fields.RefundedAt
	}

	res := r.db.WithContext(ctx).
		Model(&db_models.PaymentTransaction{}).
		Where("id = ? AND status = ?", txnID, from).
		Updates(updates)
	if res.Error != nil {
		return nil, utils.StorageErr("transition transaction", res.Error)
	}

	var txn db_models.PaymentTransaction
	if err := r.db.WithContext(ctx).Where("id = ?", txnID).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrTransactionNotFound
		}
		return nil, utils.StorageErr("reload transaction", err)
	}
	if res.RowsAffected == 0 {
		return nil, utils.ErrInvalidState
	}
	return &txn, nil
}

func (r *transactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]db_models.PaymentTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var txns []db_models.PaymentTransaction
	if err := query.Find(&txns).Error; err != nil {
		return nil, utils.StorageErr("list transactions", err)
	}
	return txns, nil
}
