package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/recyclepay/backend/internal/models"
	"github.com/shopspring/decimal"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// LedgerStore is the append-only record of monetary movements. It never
// updates or deletes a row.
type LedgerStore struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewLedgerStore(db *sqlx.DB) *LedgerStore {
	return &LedgerStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Append writes one entry in its own statement.
func (s *LedgerStore) Append(ctx context.Context, entry *models.LedgerEntry) error {
	return s.AppendTx(ctx, s.db, entry)
}

// AppendTx writes one entry through q, usually the caller's transaction, and
// fills in the generated id and timestamp.
func (s *LedgerStore) AppendTx(ctx context.Context, q sqlx.QueryerContext, entry *models.LedgerEntry) error {
	if strings.TrimSpace(entry.UserID) == "" {
		return newError(KindValidation, "ledger entry requires a user id")
	}
	if !entry.Kind.Valid() {
		return newError(KindValidation, fmt.Sprintf("unknown ledger entry kind %q", entry.Kind))
	}
	if entry.Amount.IsNegative() {
		return newError(KindInvalidAmount, "ledger amount must not be negative")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	err := q.QueryRowxContext(ctx, `
		INSERT INTO ledger_entries (user_id, kind, amount, source_ref, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		entry.UserID, string(entry.Kind), entry.Amount, entry.SourceRef, entry.CreatedAt).Scan(&entry.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return &Error{Kind: KindInvalidTransition, Message: "reward already recorded for " + entry.SourceRef, Err: err}
		}
		return storageError("append ledger entry", err)
	}
	return nil
}

type kindTotal struct {
	Kind  string          `db:"kind"`
	Total decimal.Decimal `db:"total"`
}

// SumByKind is the authoritative per-kind total for one user. Kinds without
// entries are reported as zero.
func (s *LedgerStore) SumByKind(ctx context.Context, userID string) (map[models.EntryKind]decimal.Decimal, error) {
	var rows []kindTotal
	err := s.db.SelectContext(ctx, &rows, `
		SELECT kind, COALESCE(SUM(amount), 0) AS total
		FROM ledger_entries
		WHERE user_id = $1
		GROUP BY kind`, userID)
	if err != nil {
		return nil, storageError("sum ledger entries", err)
	}

	totals := map[models.EntryKind]decimal.Decimal{
		models.EntryKindCredit:     decimal.Zero,
		models.EntryKindReward:     decimal.Zero,
		models.EntryKindWithdrawal: decimal.Zero,
	}
	for _, row := range rows {
		totals[models.EntryKind(row.Kind)] = row.Total
	}
	return totals, nil
}

// BalanceTx computes credits + rewards - withdrawals through q.
func (s *LedgerStore) BalanceTx(ctx context.Context, q sqlx.QueryerContext, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := q.QueryRowxContext(ctx, `
		SELECT COALESCE(SUM(CASE WHEN kind = 'withdrawal' THEN -amount ELSE amount END), 0)
		FROM ledger_entries
		WHERE user_id = $1`, userID).Scan(&balance)
	if err != nil {
		return decimal.Zero, storageError("compute balance", err)
	}
	return balance, nil
}

type UserEarnings struct {
	UserID      string          `db:"user_id"`
	TotalEarned decimal.Decimal `db:"total_earned"`
}

// EarnedByUser returns credits + rewards per user for ranking.
func (s *LedgerStore) EarnedByUser(ctx context.Context) ([]UserEarnings, error) {
	var rows []UserEarnings
	err := s.db.SelectContext(ctx, &rows, `
		SELECT user_id, COALESCE(SUM(amount) FILTER (WHERE kind IN ('credit', 'reward')), 0) AS total_earned
		FROM ledger_entries
		GROUP BY user_id`)
	if err != nil {
		return nil, storageError("sum earnings by user", err)
	}
	return rows, nil
}

// History returns a user's entries newest first.
func (s *LedgerStore) History(ctx context.Context, userID string, filter models.HistoryFilter) ([]models.LedgerEntry, error) {
	query := `
		SELECT id, user_id, kind, amount, source_ref, created_at
		FROM ledger_entries
		WHERE user_id = $1`
	args := []any{userID}

	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	if len(filter.Kinds) > 0 {
		kinds := make([]string, 0, len(filter.Kinds))
		for _, k := range filter.Kinds {
			if !k.Valid() {
				return nil, newError(KindValidation, fmt.Sprintf("unknown ledger entry kind %q", k))
			}
			kinds = append(kinds, string(k))
		}
		args = append(args, pq.Array(kinds))
		query += fmt.Sprintf(" AND kind = ANY($%d)", len(args))
	}

	args = append(args, clampLimit(filter.Limit, defaultHistoryLimit, maxHistoryLimit))
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d", len(args))

	entries := []models.LedgerEntry{}
	if err := s.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, storageError("read ledger history", err)
	}
	return entries, nil
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
