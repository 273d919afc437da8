package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryKind string

const (
	EntryKindCredit     EntryKind = "credit"
	EntryKindReward     EntryKind = "reward"
	EntryKindWithdrawal EntryKind = "withdrawal"
)

func (k EntryKind) Valid() bool {
	switch k {
	case EntryKindCredit, EntryKindReward, EntryKindWithdrawal:
		return true
	}
	return false
}

// LedgerEntry is one immutable monetary movement. Corrections are new
// offsetting entries, never updates.
type LedgerEntry struct {
	ID        int64           `json:"id" db:"id"`
	UserID    string          `json:"userId" db:"user_id"`
	Kind      EntryKind       `json:"kind" db:"kind"`
	Amount    decimal.Decimal `json:"amount" db:"amount"`
	SourceRef string          `json:"sourceRef" db:"source_ref"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}

// HistoryFilter narrows a ledger history read. Zero values mean "no bound".
type HistoryFilter struct {
	From  *time.Time
	To    *time.Time
	Kinds []EntryKind
	Limit int
}
