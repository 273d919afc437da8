package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ScanEvent is pushed to the owner of a scan after its status changes.
type ScanEvent struct {
	ScanCode     string           `json:"scanCode"`
	Status       ScanStatus       `json:"status"`
	RewardAmount *decimal.Decimal `json:"rewardAmount,omitempty"`
	Message      string           `json:"message"`
	OccurredAt   time.Time        `json:"occurredAt"`
}
