package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"exampattern/internal/infra"
	"exampattern/internal/models/db_models"
	"exampattern/pkg/utils"
)

func newSQLiteLedger(t *testing.T) LedgerRepository {
	t.Helper()
	db, err := infra.OpenDatabase("file::memory:")
	require.NoError(t, err)
	require.NoError(t, infra.Migrate(db))
	t.Cleanup(func() { infra.CloseDatabase(db) })
	return NewLedgerRepository(db)
}

func newMongoLedger(t *testing.T) LedgerRepository {
	t.Helper()
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}
	ctx := context.Background()
	db, err := infra.ConnectMongo(ctx, uri, fmt.Sprintf("exampattern_test_%d", time.Now().UnixNano()))
	require.NoError(t, err)
	require.NoError(t, EnsureMongoIndexes(ctx, db))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		infra.DisconnectMongo(context.Background(), db)
	})
	return NewMongoLedgerRepository(db)
}

func ledgerBackends() map[string]func(t *testing.T) LedgerRepository {
	return map[string]func(t *testing.T) LedgerRepository{
		"sqlite": newSQLiteLedger,
		"memory": func(t *testing.T) LedgerRepository { return NewInMemoryLedgerStore() },
		"mongo":  newMongoLedger,
	}
}

func debitBy(n int64, action string) BalanceMutation {
	return func(b *db_models.TokenBalance) (*db_models.TokenUsageLog, error) {
		if b.Available < n {
			return nil, &utils.InsufficientTokensError{Action: action, Required: n, Available: b.Available}
		}
		b.Available -= n
		b.Used += n
		return &db_models.TokenUsageLog{ActionType: action, Amount: n}, nil
	}
}

func TestLedgerRepositories(t *testing.T) {
	for name, open := range ledgerBackends() {
		t.Run(name, func(t *testing.T) {
			t.Run("seeds balance with welcome entry", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				b, err := repo.EnsureBalance(ctx, "u1", 50)
				require.NoError(t, err)
				assert.EqualValues(t, 50, b.Available)
				assert.EqualValues(t, 50, b.Purchased)
				assert.EqualValues(t, 0, b.Used)

				again, err := repo.EnsureBalance(ctx, "u1", 999)
				require.NoError(t, err)
				assert.EqualValues(t, 50, again.Available)

				logs, err := repo.ListAllUsage(ctx, "u1")
				require.NoError(t, err)
				require.Len(t, logs, 1)
				assert.Equal(t, db_models.ActionWelcomeBonus, logs[0].ActionType)
				assert.EqualValues(t, -50, logs[0].Amount)
			})

			t.Run("zero grant writes no entry", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				_, err := repo.EnsureBalance(ctx, "u0", 0)
				require.NoError(t, err)
				logs, err := repo.ListAllUsage(ctx, "u0")
				require.NoError(t, err)
				assert.Empty(t, logs)
			})

			t.Run("mutation failure leaves state untouched", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				_, err := repo.Mutate(ctx, MutateRequest{UserID: "u2", StartingGrant: 5, Apply: debitBy(10, "examValidation")})
				var insufficient *utils.InsufficientTokensError
				require.True(t, errors.As(err, &insufficient))
				assert.EqualValues(t, 10, insufficient.Required)
				assert.EqualValues(t, 5, insufficient.Available)

				b, err := repo.EnsureBalance(ctx, "u2", 5)
				require.NoError(t, err)
				assert.EqualValues(t, 5, b.Available)
				assert.EqualValues(t, 0, b.Used)

				logs, err := repo.ListAllUsage(ctx, "u2")
				require.NoError(t, err)
				assert.Len(t, logs, 1)
			})

			t.Run("idempotency key replays original entry", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				first, err := repo.Mutate(ctx, MutateRequest{UserID: "u3", StartingGrant: 50, IdempotencyKey: "k1", Apply: debitBy(10, "examValidation")})
				require.NoError(t, err)
				assert.False(t, first.Replayed)
				assert.EqualValues(t, 40, first.Balance.Available)

				second, err := repo.Mutate(ctx, MutateRequest{UserID: "u3", StartingGrant: 50, IdempotencyKey: "k1", Apply: debitBy(10, "examValidation")})
				require.NoError(t, err)
				assert.True(t, second.Replayed)
				assert.Equal(t, first.Entry.ID, second.Entry.ID)
				assert.EqualValues(t, 40, second.Balance.Available)

				logs, err := repo.ListAllUsage(ctx, "u3")
				require.NoError(t, err)
				assert.Len(t, logs, 2)
			})

			t.Run("history newest first and limited", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				for i := 0; i < 4; i++ {
					_, err := repo.Mutate(ctx, MutateRequest{UserID: "u4", StartingGrant: 50, Apply: debitBy(int64(i+1), "visualData")})
					require.NoError(t, err)
				}

				logs, err := repo.ListUsage(ctx, "u4", 2)
				require.NoError(t, err)
				require.Len(t, logs, 2)
				assert.EqualValues(t, 4, logs[0].Amount)
				assert.EqualValues(t, 3, logs[1].Amount)
				assert.GreaterOrEqual(t, logs[0].CreatedAt, logs[1].CreatedAt)

				all, err := repo.ListUsage(ctx, "u4", 0)
				require.NoError(t, err)
				assert.Len(t, all, 5)
			})

			t.Run("concurrent debits never overdraw", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()

				var (
					wg      sync.WaitGroup
					mu      sync.Mutex
					success int
					failed  int
				)
				for i := 0; i < 20; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						_, err := repo.Mutate(ctx, MutateRequest{UserID: "u5", StartingGrant: 50, Apply: debitBy(10, "examValidation")})
						mu.Lock()
						defer mu.Unlock()
						if err != nil {
							assert.ErrorIs(t, err, utils.ErrInsufficientTokens)
							failed++
							return
						}
						success++
					}()
				}
				wg.Wait()

				assert.Equal(t, 5, success)
				assert.Equal(t, 15, failed)
				b, err := repo.EnsureBalance(ctx, "u5", 50)
				require.NoError(t, err)
				assert.EqualValues(t, 0, b.Available)
				assert.True(t, b.Reconciles())

				logs, err := repo.ListAllUsage(ctx, "u5")
				require.NoError(t, err)
				assert.Len(t, logs, 6)
			})

			t.Run("replay of a different operation is rejected", func(t *testing.T) {
				repo := open(t)
				ctx := context.Background()
				onlyDebits := func(prior *db_models.TokenUsageLog) error {
					if prior.ActionType != "examValidation" {
						return utils.ErrInvalidState
					}
					return nil
				}

				_, err := repo.Mutate(ctx, MutateRequest{UserID: "u6", StartingGrant: 50, IdempotencyKey: "k1", Apply: debitBy(5, "visualData")})
				require.NoError(t, err)

				_, err = repo.Mutate(ctx, MutateRequest{UserID: "u6", StartingGrant: 50, IdempotencyKey: "k1", Replay: onlyDebits, Apply: debitBy(10, "examValidation")})
				assert.ErrorIs(t, err, utils.ErrInvalidState)

				b, err := repo.EnsureBalance(ctx, "u6", 50)
				require.NoError(t, err)
				assert.EqualValues(t, 45, b.Available)
			})

			t.Run("cancelled mutation leaves no entry behind", func(t *testing.T) {
				repo := open(t)
				_, err := repo.EnsureBalance(context.Background(), "u7", 50)
				require.NoError(t, err)

				cancelled, cancel := context.WithCancel(context.Background())
				cancel()
				_, err = repo.Mutate(cancelled, MutateRequest{UserID: "u7", StartingGrant: 50, IdempotencyKey: "k1", Apply: debitBy(10, "examValidation")})
				require.Error(t, err)

				ctx := context.Background()
				logs, err := repo.ListAllUsage(ctx, "u7")
				require.NoError(t, err)
				assert.Len(t, logs, 1)

				res, err := repo.Mutate(ctx, MutateRequest{UserID: "u7", StartingGrant: 50, IdempotencyKey: "k1", Apply: debitBy(10, "examValidation")})
				require.NoError(t, err)
				assert.False(t, res.Replayed)
				assert.EqualValues(t, 40, res.Balance.Available)
			})
		})
	}
}

func TestMongoPendingEntryIsFlushed(t *testing.T) {
	repo := newMongoLedger(t).(*mongoLedgerRepository)
	ctx := context.Background()

	_, err := repo.EnsureBalance(ctx, "p1", 50)
	require.NoError(t, err)

	// a balance change committed without its log copy
	key := "k1"
	orphan := &db_models.TokenUsageLog{ActionType: "examValidation", Amount: 10, IdempotencyKey: &key}
	prepareEntry(orphan, MutateRequest{UserID: "p1", IdempotencyKey: key}, time.Now().UnixNano())
	_, err = repo.balances.UpdateOne(ctx, bson.M{"_id": "p1"}, bson.M{
		"$set": bson.M{"available": 40, "used": 10, "pending": toUsageLogDoc(orphan)},
		"$inc": bson.M{"version": 1},
	})
	require.NoError(t, err)

	res, err := repo.Mutate(ctx, MutateRequest{UserID: "p1", StartingGrant: 50, IdempotencyKey: key, Apply: debitBy(10, "examValidation")})
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.Equal(t, orphan.ID, res.Entry.ID)
	assert.EqualValues(t, 40, res.Balance.Available)

	logs, err := repo.ListAllUsage(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	var doc balanceDoc
	require.NoError(t, repo.balances.FindOne(ctx, bson.M{"_id": "p1"}).Decode(&doc))
	assert.Nil(t, doc.Pending)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultHistoryLimit, clampLimit(0))
	assert.Equal(t, DefaultHistoryLimit, clampLimit(-3))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, MaxHistoryLimit, clampLimit(10_000))
}
