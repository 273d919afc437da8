package handlers

import (
	"net/http"
	"strings"

	"github.com/recyclepay/backend/internal/config"
	"github.com/recyclepay/backend/internal/models"
	"github.com/recyclepay/backend/internal/services"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// WalletHandler serves the user's own dashboard, history and payouts.
type WalletHandler struct {
	stats  StatsProvider
	rank   RankProvider
	wallet Wallet
	logger logrus.FieldLogger
}

func NewWalletHandler(stats StatsProvider, rank RankProvider, wallet Wallet, logger logrus.FieldLogger) *WalletHandler {
	return &WalletHandler{
		stats:  stats,
		rank:   rank,
		wallet: wallet,
		logger: logger.WithField("module", "wallet_handler"),
	}
}

// Stats returns the dashboard summary and the caller's rank. A rank failure
// does not fail the request; the rank is omitted.
// GET /me/stats
func (h *WalletHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	stats, err := h.stats.GetStats(r.Context(), userID)
	if err != nil {
		config.LogError(h.logger, "wallet_handler", "Stats", "failed to load stats", userID, err)
		services.SendCoreError(w, err)
		return
	}

	resp := map[string]any{
		"success": true,
		"stats":   stats,
	}
	rank, err := h.rank.GetRank(r.Context(), userID)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Warn("rank unavailable")
	} else {
		resp["rank"] = rank
	}

	writeJSON(w, http.StatusOK, resp)
}

// Rank returns the caller's leaderboard position; 0 means unranked.
// GET /me/rank
func (h *WalletHandler) Rank(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	rank, err := h.rank.GetRank(r.Context(), userID)
	if err != nil {
		services.SendCoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"rank":    rank,
	})
}

// Leaderboard returns the top earners.
// GET /leaderboard?limit=
func (h *WalletHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		services.SendErrorResponse(w, "limit must be a non-negative integer", http.StatusBadRequest, nil)
		return
	}

	board, err := h.rank.Leaderboard(r.Context(), limit)
	if err != nil {
		services.SendCoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"leaderboard": board,
	})
}

// History lists the caller's ledger entries newest first.
// GET /me/history?kind=reward,withdrawal&from=&to=&limit=
func (h *WalletHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	from, to, limit, ok := queryRange(w, r)
	if !ok {
		return
	}

	filter := models.HistoryFilter{From: from, To: to, Limit: limit}
	if raw := r.URL.Query().Get("kind"); raw != "" {
		for _, k := range strings.Split(raw, ",") {
			filter.Kinds = append(filter.Kinds, models.EntryKind(strings.TrimSpace(k)))
		}
	}

	entries, err := h.wallet.History(r.Context(), userID, filter)
	if err != nil {
		services.SendCoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"entries": entries,
	})
}

type withdrawalRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}

// Withdraw records a payout of the caller's balance.
// POST /me/withdrawals
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req withdrawalRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.wallet.RecordWithdrawal(r.Context(), userID, req.Amount, req.Reference)
	if err != nil {
		if services.KindOf(err) == services.KindStorageUnavailable {
			config.LogError(h.logger, "wallet_handler", "Withdraw", "withdrawal failed", userID, err)
		}
		services.SendCoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"entry":   entry,
	})
}
