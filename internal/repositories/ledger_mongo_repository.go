package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"exampattern/internal/models/db_models"
	"exampattern/pkg/utils"
)

// maxCASAttempts bounds the optimistic retry loop in Mutate.
const maxCASAttempts = 32

var errVersionConflict = errors.New("balance version changed")

type mongoLedgerRepository struct {
	balances *mongo.Collection
	logs     *mongo.Collection
}

var _ LedgerRepository = (*mongoLedgerRepository)(nil)

// NewMongoLedgerRepository serializes writers with a compare-and-swap on the
// balance document's version field.
func NewMongoLedgerRepository(db *mongo.Database) LedgerRepository {
	return &mongoLedgerRepository{
		balances: db.Collection(colBalances),
		logs:     db.Collection(colUsageLogs),
	}
}

// EnsureMongoIndexes creates the indexes the ledger and settlement
// collections rely on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		colUsageLogs: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{
				Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "idempotency_key", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"idempotency_key": bson.M{"$exists": true}}),
			},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
	for col, models := range indexes {
		if _, err := db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: create %s indexes: %w", col, err)
		}
	}
	return nil
}

func (r *mongoLedgerRepository) EnsureBalance(ctx context.Context, userID string, startingGrant int64) (*db_models.TokenBalance, error) {
	doc, err := r.loadOrSeed(ctx, userID, startingGrant)
	if err != nil {
		return nil, utils.StorageErr("ensure balance", err)
	}
	return fromBalanceDoc(doc), nil
}

// loadOrSeed returns the balance document, creating it with the starting
// grant on first use. A pending entry left by an earlier writer is copied
// into the usage log before the document is returned.
func (r *mongoLedgerRepository) loadOrSeed(ctx context.Context, userID string, startingGrant int64) (*balanceDoc, error) {
	var doc balanceDoc
	err := r.balances.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	if err == nil {
		if err := r.flushPending(ctx, &doc); err != nil {
			return nil, err
		}
		return &doc, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	now := time.Now().UnixNano()
	seed := toBalanceDoc(db_models.NewTokenBalance(userID, startingGrant, now))
	if startingGrant > 0 {
		welcome := welcomeEntry(userID, startingGrant, now)
		welcome.ID = uuid.New()
		seed.Pending = toUsageLogDoc(welcome)
	}
	_, err = r.balances.InsertOne(ctx, seed)
	switch {
	case err == nil:
		if err := r.flushPending(ctx, seed); err != nil {
			return nil, err
		}
		return seed, nil
	case mongo.IsDuplicateKeyError(err):
		if err := r.balances.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
			return nil, err
		}
		if err := r.flushPending(ctx, &doc); err != nil {
			return nil, err
		}
		return &doc, nil
	default:
		return nil, err
	}
}

// flushPending upserts the pending entry into the usage log and clears it
// from the balance document. The balance change it describes is already
// committed, so the copy runs even if the caller has gone away.
func (r *mongoLedgerRepository) flushPending(ctx context.Context, doc *balanceDoc) error {
	if doc.Pending == nil {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	_, err := r.logs.ReplaceOne(ctx, bson.M{"_id": doc.Pending.ID}, doc.Pending, options.Replace().SetUpsert(true))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("copy pending usage entry: %w", err)
	}
	if _, err := r.balances.UpdateOne(ctx,
		bson.M{"_id": doc.UserID, "pending._id": doc.Pending.ID},
		bson.M{"$unset": bson.M{"pending": ""}}); err != nil {
		log.WithError(err).WithField("user_id", doc.UserID).Warn("failed to clear pending usage entry")
	}
	doc.Pending = nil
	return nil
}

// Mutate swaps the balance document guarded by its version and stores the
// new log entry on it in the same write, then copies the entry into the
// usage log. A lost swap retries against the fresh balance. Loading the
// balance flushes any pending entry first, so replays are found in the log.
func (r *mongoLedgerRepository) Mutate(ctx context.Context, req MutateRequest) (*MutateResult, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		res, err := r.tryMutate(ctx, req)
		if errors.Is(err, errVersionConflict) {
			log.WithFields(log.Fields{"user_id": req.UserID, "attempt": attempt + 1}).
				Debug("ledger balance version conflict, retrying")
			continue
		}
		return res, err
	}
	return nil, utils.StorageErr("mutate balance", fmt.Errorf("gave up after %d version conflicts", maxCASAttempts))
}

func (r *mongoLedgerRepository) tryMutate(ctx context.Context, req MutateRequest) (*MutateResult, error) {
	doc, err := r.loadOrSeed(ctx, req.UserID, req.StartingGrant)
	if err != nil {
		return nil, utils.StorageErr("load balance", err)
	}
	current := fromBalanceDoc(doc)

	if req.IdempotencyKey != "" {
		prior, err := r.findByKey(ctx, req.UserID, req.IdempotencyKey)
		if err != nil {
			return nil, utils.StorageErr("find idempotent entry", err)
		}
		if prior != nil {
			return req.replay(*current, prior)
		}
	}

	working := *current
	entry, err := req.Apply(&working)
	if err != nil {
		return nil, err
	}
	if err := checkInvariant(&working); err != nil {
		return nil, err
	}

	now := time.Now().UnixNano()
	working.Version = current.Version + 1
	working.UpdatedAt = now

	set := bson.M{
		"available":  working.Available,
		"used":       working.Used,
		"purchased":  working.Purchased,
		"version":    working.Version,
		"updated_at": now,
	}
	var pending *usageLogDoc
	if entry != nil {
		prepareEntry(entry, req, now)
		pending = toUsageLogDoc(entry)
		set["pending"] = pending
	}

	res, err := r.balances.UpdateOne(ctx, bson.M{"_id": req.UserID, "version": current.Version}, bson.M{"$set": set})
	if err != nil {
		return nil, utils.StorageErr("update balance", err)
	}
	if res.MatchedCount != 1 {
		return nil, errVersionConflict
	}

	if pending != nil {
		committed := &balanceDoc{UserID: req.UserID, Pending: pending}
		if err := r.flushPending(ctx, committed); err != nil {
			log.WithError(err).WithField("entry_id", entry.ID).
				Warn("usage entry left pending on balance document")
		}
	}
	return &MutateResult{Balance: working, Entry: entry}, nil
}

func (r *mongoLedgerRepository) findByKey(ctx context.Context, userID, key string) (*db_models.TokenUsageLog, error) {
	var doc usageLogDoc
	err := r.logs.FindOne(ctx, bson.M{"user_id": userID, "idempotency_key": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry := fromUsageLogDoc(&doc)
	return &entry, nil
}

func (r *mongoLedgerRepository) ListUsage(ctx context.Context, userID string, limit int) ([]db_models.TokenUsageLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(clampLimit(limit)))
	return r.findLogs(ctx, userID, opts)
}

func (r *mongoLedgerRepository) ListAllUsage(ctx context.Context, userID string) ([]db_models.TokenUsageLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	return r.findLogs(ctx, userID, opts)
}

func (r *mongoLedgerRepository) findLogs(ctx context.Context, userID string, opts *options.FindOptionsBuilder) ([]db_models.TokenUsageLog, error) {
	var balance balanceDoc
	err := r.balances.FindOne(ctx, bson.M{"_id": userID}).Decode(&balance)
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.StorageErr("list usage", err)
	}
	if err := r.flushPending(ctx, &balance); err != nil {
		return nil, utils.StorageErr("list usage", err)
	}
	cur, err := r.logs.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, utils.StorageErr("list usage", err)
	}
	var docs []usageLogDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, utils.StorageErr("list usage", err)
	}
	out := make([]db_models.TokenUsageLog, 0, len(docs))
	for i := range docs {
		out = append(out, fromUsageLogDoc(&docs[i]))
	}
	return out, nil
}
