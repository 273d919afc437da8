package services

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/recyclepay/backend/internal/config"
	"github.com/recyclepay/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ScanService drives a scan code through pending -> approved | rejected.
// Approval and its reward ledger entry commit in one transaction; cache
// invalidation and the user notification run only after that commit.
type ScanService struct {
	db        *sqlx.DB
	registry  *ScanRegistry
	ledger    *LedgerStore
	stats     *StatsService
	rank      *RankService
	notifier  *NotificationService
	validator *ValidationHelper
	audit     *AuditLogger
	retry     config.RetryConfig
	logger    logrus.FieldLogger
	now       func() time.Time
}

func NewScanService(db *sqlx.DB, registry *ScanRegistry, ledger *LedgerStore, stats *StatsService, rank *RankService, notifier *NotificationService, retry config.RetryConfig, logger logrus.FieldLogger) *ScanService {
	return &ScanService{
		db:        db,
		registry:  registry,
		ledger:    ledger,
		stats:     stats,
		rank:      rank,
		notifier:  notifier,
		validator: NewValidationHelper(),
		audit:     NewAuditLogger(logger),
		retry:     retry,
		logger:    logger.WithField("module", "scans"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit registers a scanned code as pending for ownerID. A code is accepted
// once, ever: later submissions by anyone fail with the kind matching the
// existing record's status.
func (s *ScanService) Submit(ctx context.Context, code, ownerID string) (*models.ScanRecord, error) {
	if strings.TrimSpace(code) == "" {
		return nil, newError(KindValidation, "scan code must not be empty")
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, newError(KindValidation, "owner id is required")
	}

	rec, created, err := s.registry.Create(ctx, code, ownerID)
	if err != nil {
		config.LogError(s.logger, "scans", "Submit", "failed to create scan record", code, err)
		return nil, err
	}
	if created {
		s.logger.WithFields(logrus.Fields{
			"scan_code": code,
			"owner_id":  ownerID,
		}).Info("scan submitted")
		s.stats.Invalidate(ctx, ownerID)
		return rec, nil
	}

	existing, err := s.registry.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"scan_code": code,
		"owner_id":  ownerID,
		"status":    existing.Status,
	}).Info("duplicate scan submission")
	return nil, conflictError(existing)
}

// Decide closes a pending scan. The payload is validated before any storage
// access. Deciding an already closed scan fails with InvalidTransition and
// the current record attached.
func (s *ScanService) Decide(ctx context.Context, req models.DecisionRequest) (models.DecisionResult, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if err := s.validateDecision(req); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageError("begin decision", err)
	}
	defer tx.Rollback()

	rec, err := s.registry.GetForUpdate(ctx, tx, req.Code)
	if err != nil {
		return nil, err
	}
	if rec.Status != models.ScanStatusPending {
		return nil, &Error{
			Kind:    KindInvalidTransition,
			Message: "scan " + rec.Code + " is already " + string(rec.Status),
			Record:  rec,
		}
	}

	now := s.now()
	adminID := req.AdminID
	rec.DecidedAt = &now
	rec.DecidedBy = &adminID

	var result models.DecisionResult
	switch req.Decision {
	case models.DecisionApprove:
		rec.Status = models.ScanStatusApproved
		rec.RewardAmount = *req.Amount
		if err := s.registry.TransitionTx(ctx, tx, rec); err != nil {
			return nil, err
		}
		entry := models.LedgerEntry{
			UserID:    rec.OwnerID,
			Kind:      models.EntryKindReward,
			Amount:    rec.RewardAmount,
			SourceRef: rec.Code,
			CreatedAt: now,
		}
		if err := s.ledger.AppendTx(ctx, tx, &entry); err != nil {
			return nil, err
		}
		result = models.ApprovedResult{Record: *rec, Entry: entry}

	case models.DecisionReject:
		reason := req.Reason
		rec.Status = models.ScanStatusRejected
		rec.RewardAmount = decimal.Zero
		rec.RejectionReason = &reason
		if err := s.registry.TransitionTx(ctx, tx, rec); err != nil {
			return nil, err
		}
		result = models.RejectedResult{Record: *rec}
	}

	if err := tx.Commit(); err != nil {
		return nil, storageError("commit decision", err)
	}

	s.logger.WithFields(logrus.Fields{
		"scan_code": rec.Code,
		"owner_id":  rec.OwnerID,
		"status":    rec.Status,
		"admin_id":  adminID,
	}).Info("scan decided")

	s.afterDecision(ctx, *rec)
	return result, nil
}

func (s *ScanService) afterDecision(ctx context.Context, rec models.ScanRecord) {
	s.audit.LogDecision(rec)
	s.stats.Invalidate(ctx, rec.OwnerID)

	var event models.ScanEvent
	if rec.Status == models.ScanStatusApproved {
		s.rank.Invalidate(ctx)
		event = approvedEvent(rec, *rec.DecidedAt)
	} else {
		event = rejectedEvent(rec, *rec.DecidedAt)
	}
	s.notifier.Dispatch(rec.OwnerID, event)
}

func (s *ScanService) validateDecision(req models.DecisionRequest) error {
	if err := s.validator.ValidateStruct(req); err != nil {
		return &Error{Kind: KindValidation, Message: "invalid decision request", Err: err}
	}
	if strings.TrimSpace(req.Code) == "" {
		return newError(KindValidation, "scan code must not be empty")
	}

	switch req.Decision {
	case models.DecisionApprove:
		if req.Amount == nil {
			return newError(KindInvalidAmount, "reward amount is required for approval")
		}
		return validateAmount(*req.Amount, true)
	case models.DecisionReject:
		if req.Reason == "" {
			return newError(KindMissingReason, "rejection reason is required")
		}
	}
	return nil
}

// maxAmount is the largest value a NUMERIC(14, 2) column holds.
var maxAmount = decimal.RequireFromString("999999999999.99")

// validateAmount rejects negative, oversized and sub-paisa amounts.
func validateAmount(amount decimal.Decimal, allowZero bool) error {
	if amount.IsNegative() {
		return newError(KindInvalidAmount, "amount must not be negative")
	}
	if amount.GreaterThan(maxAmount) {
		return newError(KindInvalidAmount, "amount exceeds ₹"+maxAmount.StringFixed(2))
	}
	if !allowZero && amount.IsZero() {
		return newError(KindInvalidAmount, "amount must be greater than zero")
	}
	if !amount.Equal(amount.Round(2)) {
		return newError(KindInvalidAmount, "amount must have at most two decimal places")
	}
	return nil
}

// ScanHistory lists the owner's scans newest first.
func (s *ScanService) ScanHistory(ctx context.Context, ownerID string, filter models.ScanFilter) ([]models.ScanRecord, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, newError(KindValidation, "owner id is required")
	}
	return withReadRetry(ctx, s.retry, s.logger, "scan_history", func() ([]models.ScanRecord, error) {
		return s.registry.ListByOwner(ctx, ownerID, filter)
	})
}

// ListPending is the admin review queue, oldest first.
func (s *ScanService) ListPending(ctx context.Context, limit int) ([]models.ScanRecord, error) {
	return withReadRetry(ctx, s.retry, s.logger, "list_pending", func() ([]models.ScanRecord, error) {
		return s.registry.ListPending(ctx, limit)
	})
}

// Get returns a single scan record.
func (s *ScanService) Get(ctx context.Context, code string) (*models.ScanRecord, error) {
	if strings.TrimSpace(code) == "" {
		return nil, newError(KindValidation, "scan code must not be empty")
	}
	return withReadRetry(ctx, s.retry, s.logger, "get_scan", func() (*models.ScanRecord, error) {
		return s.registry.Get(ctx, code)
	})
}
