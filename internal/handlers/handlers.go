package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/recyclepay/backend/internal/middleware"
	"github.com/recyclepay/backend/internal/models"
	"github.com/recyclepay/backend/internal/services"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1_048_576

type ScanService interface {
	Submit(ctx context.Context, code, ownerID string) (*models.ScanRecord, error)
	Decide(ctx context.Context, req models.DecisionRequest) (models.DecisionResult, error)
	ScanHistory(ctx context.Context, ownerID string, filter models.ScanFilter) ([]models.ScanRecord, error)
	ListPending(ctx context.Context, limit int) ([]models.ScanRecord, error)
}

type StatsProvider interface {
	GetStats(ctx context.Context, userID string) (*models.UserStats, error)
}

type RankProvider interface {
	GetRank(ctx context.Context, userID string) (*models.UserRank, error)
	Leaderboard(ctx context.Context, limit int) (*models.Leaderboard, error)
}

type Wallet interface {
	RecordCredit(ctx context.Context, adminID, userID string, amount decimal.Decimal, sourceRef string) (*models.LedgerEntry, error)
	RecordWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, sourceRef string) (*models.LedgerEntry, error)
	History(ctx context.Context, userID string, filter models.HistoryFilter) ([]models.LedgerEntry, error)
}

type LabelRenderer interface {
	NewCode(prefix string) string
	Render(code string) (string, error)
}

// decodeJSON reads exactly one JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return "", false
	}
	return userID, true
}

// queryInt returns def when the parameter is absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// queryTime parses an RFC 3339 parameter; absent yields nil.
func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func queryRange(w http.ResponseWriter, r *http.Request) (from, to *time.Time, limit int, ok bool) {
	var err error
	if from, err = queryTime(r, "from"); err != nil {
		services.SendErrorResponse(w, "from must be an RFC 3339 timestamp", http.StatusBadRequest, nil)
		return nil, nil, 0, false
	}
	if to, err = queryTime(r, "to"); err != nil {
		services.SendErrorResponse(w, "to must be an RFC 3339 timestamp", http.StatusBadRequest, nil)
		return nil, nil, 0, false
	}
	if limit, err = queryInt(r, "limit", 0); err != nil || limit < 0 {
		services.SendErrorResponse(w, "limit must be a non-negative integer", http.StatusBadRequest, nil)
		return nil, nil, 0, false
	}
	return from, to, limit, true
}
