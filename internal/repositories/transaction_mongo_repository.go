package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"exampattern/internal/models/db_models"
	"exampattern/pkg/utils"
)

type mongoTransactionRepository struct {
	txns *mongo.Collection
}

var _ TransactionRepository = (*mongoTransactionRepository)(nil)

func NewMongoTransactionRepository(db *mongo.Database) TransactionRepository {
	return &mongoTransactionRepository{txns: db.Collection(colTransactions)}
}

func (r *mongoTransactionRepository) Create(ctx context.Context, txn *db_models.PaymentTransaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt == 0 {
		txn.CreatedAt = time.Now().UnixNano()
	}
	txn.UpdatedAt = txn.CreatedAt
	if _, err := r.txns.InsertOne(ctx, toTransactionDoc(txn)); err != nil {
		return utils.StorageErr("create transaction", err)
	}
	return nil
}

func (r *mongoTransactionRepository) FindByIDForUser(ctx context.Context, id, userID string) (*db_models.PaymentTransaction, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, utils.ErrTransactionNotFound
	}
	var doc transactionDoc
	err := r.txns.FindOne(ctx, bson.M{"_id": id, "user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrTransactionNotFound
	}
	if err != nil {
		return nil, utils.StorageErr("find transaction", err)
	}
	txn, err := fromTransactionDoc(&doc)
	if err != nil {
		return nil, utils.StorageErr("decode transaction", err)
	}
	return txn, nil
}

func (r *mongoTransactionRepository) Transition(ctx context.Context, id string, from, to db_models.TransactionStatus, fields TransitionFields) (*db_models.PaymentTransaction, error) {
	if !db_models.CanTransition(from, to) {
		return nil, utils.ErrInvalidState
	}

	set := bson.M{"status": string(to), "updated_at": time.Now().UnixNano()}
	if fields.FailureReason != nil {
		set["failure_reason"] = *fields.FailureReason
	}
	if fields.TokensReversed != nil {
		set["tokens_reversed"] = *fields.TokensReversed
	}
	if fields.CompletedAt != nil {
		set["completed_at"] = *fields.CompletedAt
	}
	if fields.RefundedAt != nil {
		set["refunded_at"] = *fields.RefundedAt
	}

	var doc transactionDoc
	err := r.txns.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": string(from)},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, countErr := r.txns.CountDocuments(ctx, bson.M{"_id": id})
		if countErr != nil {
			return nil, utils.StorageErr("transition transaction", countErr)
		}
		if n == 0 {
			return nil, utils.ErrTransactionNotFound
		}
		return nil, utils.ErrInvalidState
	}
	if err != nil {
		return nil, utils.StorageErr("transition transaction", err)
	}
	return fromTransactionDoc(&doc)
}

func (r *mongoTransactionRepository) ListByUser(ctx context.Context, userID string, limit int) ([]db_models.PaymentTransaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.txns.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, utils.StorageErr("list transactions", err)
	}
	var docs []transactionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, utils.StorageErr("list transactions", err)
	}
	out := make([]db_models.PaymentTransaction, 0, len(docs))
	for i := range docs {
		txn, err := fromTransactionDoc(&docs[i])
		if err != nil {
			return nil, utils.StorageErr("decode transaction", err)
		}
		out = append(out, *txn)
	}
	return out, nil
}
