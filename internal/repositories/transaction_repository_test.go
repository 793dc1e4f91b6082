package repositories

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exampattern/internal/infra"
	"exampattern/internal/models/db_models"
	"exampattern/pkg/utils"
)

func transactionBackends() map[string]func(t *testing.T) TransactionRepository {
	return map[string]func(t *testing.T) TransactionRepository{
		"sqlite": func(t *testing.T) TransactionRepository {
			db, err := infra.OpenDatabase("file::memory:")
			require.NoError(t, err)
			require.NoError(t, infra.Migrate(db))
			t.Cleanup(func() { infra.CloseDatabase(db) })
			return NewTransactionRepository(db)
		},
		"memory": func(t *testing.T) TransactionRepository { return NewInMemoryTransactionStore() },
		"mongo": func(t *testing.T) TransactionRepository {
			uri := os.Getenv("MONGO_URI")
			if uri == "" {
				t.Skip("MONGO_URI not set")
			}
			db, err := infra.ConnectMongo(context.Background(), uri, fmt.Sprintf("exampattern_txn_%d", time.Now().UnixNano()))
			require.NoError(t, err)
			t.Cleanup(func() {
				_ = db.Drop(context.Background())
				infra.DisconnectMongo(context.Background(), db)
			})
			return NewMongoTransactionRepository(db)
		},
	}
}

func newInitiated(userID string) *db_models.PaymentTransaction {
	return &db_models.PaymentTransaction{
		UserID:          userID,
		Amount:          decimal.RequireFromString("9.99"),
		Currency:        "USD",
		TokensPurchased: 100,
		PaymentMethod:   db_models.PaymentMethodCreditCard,
		Status:          db_models.TxnStatusInitiated,
		CardLast4:       "1111",
		CardBrand:       "visa",
	}
}

func TestTransactionRepositories(t *testing.T) {
	for name, open := range transactionBackends() {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			ctx := context.Background()

			txn := newInitiated("buyer")
			require.NoError(t, repo.Create(ctx, txn))
			require.NotEqual(t, uuid.Nil, txn.ID)

			found, err := repo.FindByIDForUser(ctx, txn.ID.String(), "buyer")
			require.NoError(t, err)
			assert.Equal(t, "9.99", found.Amount.StringFixed(2))
			assert.Equal(t, db_models.TxnStatusInitiated, found.Status)

			_, err = repo.FindByIDForUser(ctx, txn.ID.String(), "someone-else")
			assert.ErrorIs(t, err, utils.ErrTransactionNotFound)
			_, err = repo.FindByIDForUser(ctx, "not-a-uuid", "buyer")
			assert.ErrorIs(t, err, utils.ErrNotFound)

			completedAt := time.Now().UnixNano()
			done, err := repo.Transition(ctx, txn.ID.String(), db_models.TxnStatusInitiated, db_models.TxnStatusCompleted,
				TransitionFields{CompletedAt: &completedAt})
			require.NoError(t, err)
			assert.Equal(t, db_models.TxnStatusCompleted, done.Status)
			require.NotNil(t, done.CompletedAt)
			assert.Equal(t, completedAt, *done.CompletedAt)

			_, err = repo.Transition(ctx, txn.ID.String(), db_models.TxnStatusInitiated, db_models.TxnStatusFailed, TransitionFields{})
			assert.ErrorIs(t, err, utils.ErrInvalidState)

			_, err = repo.Transition(ctx, txn.ID.String(), db_models.TxnStatusFailed, db_models.TxnStatusRefunded, TransitionFields{})
			assert.ErrorIs(t, err, utils.ErrInvalidState)

			_, err = repo.Transition(ctx, uuid.NewString(), db_models.TxnStatusCompleted, db_models.TxnStatusRefunded, TransitionFields{})
			assert.ErrorIs(t, err, utils.ErrTransactionNotFound)

			second := newInitiated("buyer")
			require.NoError(t, repo.Create(ctx, second))

			list, err := repo.ListByUser(ctx, "buyer", 0)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, second.ID, list[0].ID)

			limited, err := repo.ListByUser(ctx, "buyer", 1)
			require.NoError(t, err)
			assert.Len(t, limited, 1)
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, db_models.CanTransition(db_models.TxnStatusInitiated, db_models.TxnStatusCompleted))
	assert.True(t, db_models.CanTransition(db_models.TxnStatusInitiated, db_models.TxnStatusFailed))
	assert.True(t, db_models.CanTransition(db_models.TxnStatusCompleted, db_models.TxnStatusRefunded))
	assert.False(t, db_models.CanTransition(db_models.TxnStatusFailed, db_models.TxnStatusRefunded))
	assert.False(t, db_models.CanTransition(db_models.TxnStatusRefunded, db_models.TxnStatusRefunded))
}
