package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserStats is a derived, rebuildable summary. Balance always equals
// UPIEarnedTotal + RewardsTotal - WithdrawalsTotal.
type UserStats struct {
	UserID               string          `json:"userId"`
	BottlesReturnedTotal int64           `json:"bottlesReturned"`
	ScansPending         int64           `json:"scansPending"`
	ScansRejected        int64           `json:"scansRejected"`
	ScansTotal           int64           `json:"scansTotal"`
	UPIEarnedTotal       decimal.Decimal `json:"upiEarned"`
	RewardsTotal         decimal.Decimal `json:"rewards"`
	WithdrawalsTotal     decimal.Decimal `json:"withdrawals"`
	Balance              decimal.Decimal `json:"balance"`
	RecyclingRate        int             `json:"recyclingRate"`
	ComputedAt           time.Time       `json:"computedAt"`
	Version              int64           `json:"version"`
}

// LeaderboardEntry is one ranked position. FirstApprovedAt is the tie-breaker.
type LeaderboardEntry struct {
	Rank            int             `json:"rank"`
	UserID          string          `json:"userId"`
	TotalEarned     decimal.Decimal `json:"totalEarned"`
	FirstApprovedAt *time.Time      `json:"firstApprovedAt,omitempty"`
}

type UserRank struct {
	UserID      string          `json:"userId"`
	Rank        int             `json:"rank"`
	TotalEarned decimal.Decimal `json:"totalEarned"`
	TotalUsers  int             `json:"totalUsers"`
}

type Leaderboard struct {
	Entries    []LeaderboardEntry `json:"entries"`
	ComputedAt time.Time          `json:"computedAt"`
}
