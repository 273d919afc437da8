package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ScanStatus string

const (
	ScanStatusPending  ScanStatus = "pending"
	ScanStatusApproved ScanStatus = "approved"
	ScanStatusRejected ScanStatus = "rejected"
)

func (s ScanStatus) Valid() bool {
	switch s {
	case ScanStatusPending, ScanStatusApproved, ScanStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s ScanStatus) Terminal() bool {
	return s == ScanStatusApproved || s == ScanStatusRejected
}

// ScanRecord is the single lifecycle record of a scanned bottle code.
type ScanRecord struct {
	ID              string          `json:"id" db:"id"`
	Code            string          `json:"code" db:"code"`
	OwnerID         string          `json:"ownerId" db:"owner_id"`
	Status          ScanStatus      `json:"status" db:"status"`
	RewardAmount    decimal.Decimal `json:"rewardAmount" db:"reward_amount"`
	RejectionReason *string         `json:"rejectionReason,omitempty" db:"rejection_reason"`
	SubmittedAt     time.Time       `json:"submittedAt" db:"submitted_at"`
	DecidedAt       *time.Time      `json:"decidedAt,omitempty" db:"decided_at"`
	DecidedBy       *string         `json:"decidedBy,omitempty" db:"decided_by"`
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// DecisionRequest is the admin payload for closing a pending scan.
type DecisionRequest struct {
	Code     string           `json:"code" validate:"required"`
	Decision Decision         `json:"decision" validate:"required,oneof=approve reject"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Reason   string           `json:"reason,omitempty"`
	AdminID  string           `json:"-" validate:"required"`
}

// DecisionResult is either ApprovedResult or RejectedResult.
type DecisionResult interface {
	decisionResult()
	Scan() ScanRecord
}

type ApprovedResult struct {
	Record ScanRecord  `json:"record"`
	Entry  LedgerEntry `json:"entry"`
}

type RejectedResult struct {
	Record ScanRecord `json:"record"`
}

func (ApprovedResult) decisionResult() {}
func (RejectedResult) decisionResult() {}

func (r ApprovedResult) Scan() ScanRecord { return r.Record }
func (r RejectedResult) Scan() ScanRecord { return r.Record }

// ScanFilter narrows an owner's scan history.
type ScanFilter struct {
	Status ScanStatus
	From   *time.Time
	To     *time.Time
	Limit  int
}

// ScanCounts groups an owner's records by status.
type ScanCounts struct {
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
}

func (c ScanCounts) Total() int64 {
	return c.Pending + c.Approved + c.Rejected
}
