package services

import (
	"time"

	"github.com/recyclepay/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// AuditEvent is one money-affecting action, logged after it commits.
type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Actor     string    `json:"actor"`
	UserID    string    `json:"user_id"`
	Reference string    `json:"reference"`
	Amount    string    `json:"amount,omitempty"`
	Status    string    `json:"status"`
	Details   any       `json:"details,omitempty"`
}

type AuditLogger struct {
	logger logrus.FieldLogger
}

func NewAuditLogger(logger logrus.FieldLogger) *AuditLogger {
	return &AuditLogger{logger: logger.WithField("channel", "audit")}
}

func (a *AuditLogger) LogDecision(rec models.ScanRecord) {
	event := AuditEvent{
		EventType: "SCAN_DECISION",
		UserID:    rec.OwnerID,
		Reference: rec.Code,
		Status:    string(rec.Status),
	}
	if rec.DecidedAt != nil {
		event.Timestamp = *rec.DecidedAt
	}
	if rec.DecidedBy != nil {
		event.Actor = *rec.DecidedBy
	}
	if rec.Status == models.ScanStatusApproved {
		event.Amount = rec.RewardAmount.StringFixed(2)
	}
	if rec.RejectionReason != nil {
		event.Details = map[string]string{"reason": *rec.RejectionReason}
	}
	a.log(event)
}

func (a *AuditLogger) LogLedgerEntry(entry models.LedgerEntry, actor string) {
	a.log(AuditEvent{
		Timestamp: entry.CreatedAt,
		EventType: "LEDGER_" + string(entry.Kind),
		Actor:     actor,
		UserID:    entry.UserID,
		Reference: entry.SourceRef,
		Amount:    entry.Amount.StringFixed(2),
		Status:    "SUCCESS",
	})
}

func (a *AuditLogger) log(event AuditEvent) {
	a.logger.WithFields(logrus.Fields{
		"event_type": event.EventType,
		"actor":      event.Actor,
		"user_id":    event.UserID,
		"reference":  event.Reference,
		"amount":     event.Amount,
		"status":     event.Status,
		"details":    event.Details,
		"at":         event.Timestamp,
	}).Info("AUDIT")
}
