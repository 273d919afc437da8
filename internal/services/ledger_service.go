package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/recyclepay/backend/internal/config"
	"github.com/recyclepay/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// LedgerService records money that does not come from scan approvals:
// admin UPI credits and user withdrawals.
type LedgerService struct {
	db     *sqlx.DB
	ledger *LedgerStore
	stats  *StatsService
	rank   *RankService
	audit  *AuditLogger
	retry  config.RetryConfig
	logger logrus.FieldLogger
	now    func() time.Time
}

func NewLedgerService(db *sqlx.DB, ledger *LedgerStore, stats *StatsService, rank *RankService, retry config.RetryConfig, logger logrus.FieldLogger) *LedgerService {
	return &LedgerService{
		db:     db,
		ledger: ledger,
		stats:  stats,
		rank:   rank,
		audit:  NewAuditLogger(logger),
		retry:  retry,
		logger: logger.WithField("module", "ledger"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RecordCredit appends a UPI credit for userID on behalf of adminID.
func (s *LedgerService) RecordCredit(ctx context.Context, adminID, userID string, amount decimal.Decimal, sourceRef string) (*models.LedgerEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, newError(KindValidation, "user id is required")
	}
	if err := validateAmount(amount, false); err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		UserID:    userID,
		Kind:      models.EntryKindCredit,
		Amount:    amount,
		SourceRef: refOrNew(sourceRef, "credit"),
		CreatedAt: s.now(),
	}
	if err := s.ledger.Append(ctx, entry); err != nil {
		config.LogError(s.logger, "ledger", "RecordCredit", "failed to append credit", userID, err)
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"amount":     amount.StringFixed(2),
		"source_ref": entry.SourceRef,
	}).Info("credit recorded")
	s.audit.LogLedgerEntry(*entry, adminID)

	s.stats.Invalidate(ctx, userID)
	s.rank.Invalidate(ctx)
	return entry, nil
}

// RecordWithdrawal debits userID. Withdrawals for the same user are
// serialized by an advisory lock so two of them cannot both pass the
// balance check.
func (s *LedgerService) RecordWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, sourceRef string) (*models.LedgerEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, newError(KindValidation, "user id is required")
	}
	if err := validateAmount(amount, false); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageError("begin withdrawal", err)
	}
	defer tx.Rollback()

	if err := lockUser(ctx, tx, userID); err != nil {
		return nil, err
	}

	balance, err := s.ledger.BalanceTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(amount) {
		return nil, newError(KindInsufficientBalance, "insufficient balance: available ₹"+balance.StringFixed(2))
	}

	entry := &models.LedgerEntry{
		UserID:    userID,
		Kind:      models.EntryKindWithdrawal,
		Amount:    amount,
		SourceRef: refOrNew(sourceRef, "withdrawal"),
		CreatedAt: s.now(),
	}
	if err := s.ledger.AppendTx(ctx, tx, entry); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storageError("commit withdrawal", err)
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"amount":     amount.StringFixed(2),
		"source_ref": entry.SourceRef,
	}).Info("withdrawal recorded")
	s.audit.LogLedgerEntry(*entry, userID)

	s.stats.Invalidate(ctx, userID)
	s.rank.Invalidate(ctx)
	return entry, nil
}

// History lists a user's ledger entries newest first.
func (s *LedgerService) History(ctx context.Context, userID string, filter models.HistoryFilter) ([]models.LedgerEntry, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, newError(KindValidation, "user id is required")
	}
	return withReadRetry(ctx, s.retry, s.logger, "ledger_history", func() ([]models.LedgerEntry, error) {
		return s.ledger.History(ctx, userID, filter)
	})
}

func lockUser(ctx context.Context, tx *sqlx.Tx, userID string) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		return storageError("lock user ledger", err)
	}
	return nil
}

func refOrNew(ref, prefix string) string {
	if ref = strings.TrimSpace(ref); ref != "" {
		return ref
	}
	return prefix + "_" + uuid.New().String()
}
