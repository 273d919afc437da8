package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/recyclepay/backend/internal/models"
)

const (
	defaultScanListLimit = 50
	maxScanListLimit     = 500
)

const scanColumns = `id, code, owner_id, status, reward_amount, rejection_reason, submitted_at, decided_at, decided_by`

// ScanRegistry owns the scan_records table: one row per distinct code.
type ScanRegistry struct {
	db    *sqlx.DB
	now   func() time.Time
	newID func() string
}

func NewScanRegistry(db *sqlx.DB) *ScanRegistry {
	return &ScanRegistry{
		db:    db,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.New().String() },
	}
}

// Create inserts a pending record unless the code is already known. The
// unique constraint on code decides the winner between concurrent callers;
// created is false when another record already holds the code.
func (r *ScanRegistry) Create(ctx context.Context, code, ownerID string) (rec *models.ScanRecord, created bool, err error) {
	var row models.ScanRecord
	err = r.db.QueryRowxContext(ctx, `
		INSERT INTO scan_records (id, code, owner_id, status, submitted_at)
		VALUES ($1, $2, $3, 'pending', $4)
		ON CONFLICT (code) DO NOTHING
		RETURNING `+scanColumns,
		r.newID(), code, ownerID, r.now()).StructScan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, storageError("create scan record", err)
	}
	return &row, true, nil
}

func (r *ScanRegistry) Get(ctx context.Context, code string) (*models.ScanRecord, error) {
	var row models.ScanRecord
	err := r.db.GetContext(ctx, &row, `SELECT `+scanColumns+` FROM scan_records WHERE code = $1`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{Kind: KindNotFound, Message: fmt.Sprintf("scan code %q not found", code)}
	}
	if err != nil {
		return nil, storageError("read scan record", err)
	}
	return &row, nil
}

// GetForUpdate reads the record and holds its row lock until tx ends.
func (r *ScanRegistry) GetForUpdate(ctx context.Context, tx *sqlx.Tx, code string) (*models.ScanRecord, error) {
	var row models.ScanRecord
	err := tx.GetContext(ctx, &row, `SELECT `+scanColumns+` FROM scan_records WHERE code = $1 FOR UPDATE`, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &Error{Kind: KindNotFound, Message: fmt.Sprintf("scan code %q not found", code)}
	}
	if err != nil {
		return nil, storageError("lock scan record", err)
	}
	return &row, nil
}

// TransitionTx persists a decided record. The status guard makes a second
// decision on the same row a no-op that reports InvalidTransition.
func (r *ScanRegistry) TransitionTx(ctx context.Context, tx *sqlx.Tx, rec *models.ScanRecord) error {
	if !rec.Status.Terminal() {
		return newError(KindInvalidTransition, "scan records can only move to approved or rejected")
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE scan_records
		SET status = $1, reward_amount = $2, rejection_reason = $3, decided_at = $4, decided_by = $5
		WHERE id = $6 AND status = 'pending'`,
		string(rec.Status), rec.RewardAmount, rec.RejectionReason, rec.DecidedAt, rec.DecidedBy, rec.ID)
	if err != nil {
		return storageError("update scan record", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return storageError("update scan record", err)
	}
	if n == 0 {
		return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf("scan code %q is no longer pending", rec.Code), Record: rec}
	}
	return nil
}

type statusCount struct {
	Status string `db:"status"`
	Count  int64  `db:"count"`
}

func (r *ScanRegistry) CountByStatus(ctx context.Context, ownerID string) (models.ScanCounts, error) {
	var rows []statusCount
	err := r.db.SelectContext(ctx, &rows, `
		SELECT status, COUNT(*) AS count
		FROM scan_records
		WHERE owner_id = $1
		GROUP BY status`, ownerID)
	if err != nil {
		return models.ScanCounts{}, storageError("count scan records", err)
	}

	var counts models.ScanCounts
	for _, row := range rows {
		switch models.ScanStatus(row.Status) {
		case models.ScanStatusPending:
			counts.Pending = row.Count
		case models.ScanStatusApproved:
			counts.Approved = row.Count
		case models.ScanStatusRejected:
			counts.Rejected = row.Count
		}
	}
	return counts, nil
}

// ListByOwner returns an owner's scans newest first.
func (r *ScanRegistry) ListByOwner(ctx context.Context, ownerID string, filter models.ScanFilter) ([]models.ScanRecord, error) {
	query := `SELECT ` + scanColumns + ` FROM scan_records WHERE owner_id = $1`
	args := []any{ownerID}

	if filter.Status != "" {
		if !filter.Status.Valid() {
			return nil, newError(KindValidation, fmt.Sprintf("unknown scan status %q", filter.Status))
		}
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND submitted_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND submitted_at < $%d", len(args))
	}

	args = append(args, clampLimit(filter.Limit, defaultScanListLimit, maxScanListLimit))
	query += fmt.Sprintf(" ORDER BY submitted_at DESC, id DESC LIMIT $%d", len(args))

	records := []models.ScanRecord{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, storageError("list scan records", err)
	}
	return records, nil
}

// ListPending returns the admin review queue, oldest first.
func (r *ScanRegistry) ListPending(ctx context.Context, limit int) ([]models.ScanRecord, error) {
	records := []models.ScanRecord{}
	err := r.db.SelectContext(ctx, &records, `
		SELECT `+scanColumns+`
		FROM scan_records
		WHERE status = 'pending'
		ORDER BY submitted_at ASC, id ASC
		LIMIT $1`, clampLimit(limit, defaultScanListLimit, maxScanListLimit))
	if err != nil {
		return nil, storageError("list pending scans", err)
	}
	return records, nil
}

type OwnerFirstApproved struct {
	OwnerID         string    `db:"owner_id"`
	FirstApprovedAt time.Time `db:"first_approved_at"`
}

// FirstApprovedByOwner returns, per owner, the submission time of the
// earliest approved scan. It is the leaderboard tie-breaker.
func (r *ScanRegistry) FirstApprovedByOwner(ctx context.Context) ([]OwnerFirstApproved, error) {
	var rows []OwnerFirstApproved
	err := r.db.SelectContext(ctx, &rows, `
		SELECT owner_id, MIN(submitted_at) AS first_approved_at
		FROM scan_records
		WHERE status = 'approved'
		GROUP BY owner_id`)
	if err != nil {
		return nil, storageError("read first approvals", err)
	}
	return rows, nil
}
