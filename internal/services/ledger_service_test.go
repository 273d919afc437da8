package services

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/recyclepay/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerService_RecordWithdrawal(t *testing.T) {
	ctx := context.Background()

	t.Run("successful withdrawal", func(t *testing.T) {
		env := newTestEnv(t)
		amount := decimal.RequireFromString("1.00")

		env.mock.ExpectBegin()
		env.mock.ExpectExec("SELECT pg_advisory_xact_lock\\(hashtext\\(\\$1\\)\\)").
			WithArgs("user-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		env.mock.ExpectQuery("SELECT COALESCE\\(SUM\\(CASE WHEN kind = 'withdrawal' THEN -amount ELSE amount END\\), 0\\)").
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("1.50"))
		env.mock.ExpectQuery("INSERT INTO ledger_entries").
			WithArgs("user-1", "withdrawal", amount, "wd_77", testNow).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(9))
		env.mock.ExpectCommit()

		entry, err := env.wallet.RecordWithdrawal(ctx, "user-1", amount, "wd_77")
		require.NoError(t, err)
		assert.Equal(t, int64(9), entry.ID)
		assert.Equal(t, models.EntryKindWithdrawal, entry.Kind)
		assert.Equal(t, 1, env.statsCache.invalidationsFor("user-1"))
		assert.Equal(t, 1, env.boardCache.invalidationCount())
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("insufficient balance", func(t *testing.T) {
		env := newTestEnv(t)

		env.mock.ExpectBegin()
		env.mock.ExpectExec("SELECT pg_advisory_xact_lock").
			WithArgs("user-1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		env.mock.ExpectQuery("SELECT COALESCE\\(SUM").
			WithArgs("user-1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("0.50"))
		env.mock.ExpectRollback()

		_, err := env.wallet.RecordWithdrawal(ctx, "user-1", decimal.RequireFromString("1.00"), "")
		assert.ErrorIs(t, err, ErrInsufficientBalance)
		assert.Contains(t, err.Error(), "0.50")
		assert.Equal(t, 0, env.statsCache.invalidationsFor("user-1"))
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("non positive amount", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.wallet.RecordWithdrawal(ctx, "user-1", decimal.Zero, "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
		_, err = env.wallet.RecordWithdrawal(ctx, "user-1", decimal.NewFromInt(-5), "")
		assert.ErrorIs(t, err, ErrInvalidAmount)
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})
}

func TestLedgerService_RecordCredit(t *testing.T) {
	ctx := context.Background()

	t.Run("generates a source ref", func(t *testing.T) {
		env := newTestEnv(t)
		amount := decimal.RequireFromString("25.00")

		env.mock.ExpectQuery("INSERT INTO ledger_entries").
			WithArgs("user-1", "credit", amount, sqlmock.AnyArg(), testNow).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

		entry, err := env.wallet.RecordCredit(ctx, "admin-1", "user-1", amount, " ")
		require.NoError(t, err)
		assert.Contains(t, entry.SourceRef, "credit_")
		assert.Equal(t, 1, env.statsCache.invalidationsFor("user-1"))
		assert.Equal(t, 1, env.boardCache.invalidationCount())
		assert.NoError(t, env.mock.ExpectationsWereMet())
	})

	t.Run("missing user", func(t *testing.T) {
		env := newTestEnv(t)

		_, err := env.wallet.RecordCredit(ctx, "admin-1", "", decimal.NewFromInt(1), "")
		assert.ErrorIs(t, err, ErrValidation)
	})
}
