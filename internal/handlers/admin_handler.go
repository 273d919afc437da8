package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/recyclepay/backend/internal/config"
	"github.com/recyclepay/backend/internal/middleware"
	"github.com/recyclepay/backend/internal/models"
	"github.com/recyclepay/backend/internal/services"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// AdminHandler serves the verification queue, manual credits and label
// printing. Routes are mounted behind middleware.RequireAdmin.
type AdminHandler struct {
	scans     ScanService
	wallet    Wallet
	labels    LabelRenderer
	validator *services.ValidationHelper
	logger    logrus.FieldLogger
}

func NewAdminHandler(scans ScanService, wallet Wallet, labels LabelRenderer, logger logrus.FieldLogger) *AdminHandler {
	return &AdminHandler{
		scans:     scans,
		wallet:    wallet,
		labels:    labels,
		validator: services.NewValidationHelper(),
		logger:    logger.WithField("module", "admin_handler"),
	}
}

// Pending lists scans awaiting a decision, oldest first.
// GET /admin/scans/pending?limit=
func (h *AdminHandler) Pending(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		services.SendErrorResponse(w, "limit must be a non-negative integer", http.StatusBadRequest, nil)
		return
	}

	records, err := h.scans.ListPending(r.Context(), limit)
	if err != nil {
		services.SendCoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"scans":   records,
	})
}

type decisionBody struct {
	Decision models.Decision  `json:"decision"`
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Reason   string           `json:"reason,omitempty"`
}

// Decide approves or rejects a pending scan. Repeating a decision on a scan
// that is already closed answers 200 with the stored record, so admin
// clients can retry safely.
// POST /admin/scans/{code}/decision
func (h *AdminHandler) Decide(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var body decisionBody
	if !decodeJSON(w, r, &body) {
		return
	}

	req := models.DecisionRequest{
		Code:     chi.URLParam(r, "code"),
		Decision: body.Decision,
		Amount:   body.Amount,
		Reason:   body.Reason,
		AdminID:  adminID,
	}

	result, err := h.scans.Decide(r.Context(), req)
	if err != nil {
		var coreErr *services.Error
		if errors.As(err, &coreErr) && coreErr.Kind == services.KindInvalidTransition && coreErr.Record != nil {
			h.logger.WithFields(logrus.Fields{
				"scan_code": req.Code,
				"admin_id":  adminID,
				"status":    coreErr.Record.Status,
			}).Info("decision on closed scan treated as idempotent")
			writeJSON(w, http.StatusOK, map[string]any{
				"success":    true,
				"idempotent": true,
				"scan":       coreErr.Record,
			})
			return
		}
		if services.KindOf(err) == services.KindStorageUnavailable {
			config.LogError(h.logger, "admin_handler", "Decide", "decision failed", req.Code, err)
		}
		services.SendCoreError(w, err)
		return
	}

	resp := map[string]any{
		"success": true,
		"scan":    result.Scan(),
	}
	if approved, ok := result.(models.ApprovedResult); ok {
		resp["entry"] = approved.Entry
	}
	writeJSON(w, http.StatusOK, resp)
}

type creditRequest struct {
	UserID    string          `json:"userId" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}

// Credit records a UPI credit for a user.
// POST /admin/credits
func (h *AdminHandler) Credit(w http.ResponseWriter, r *http.Request) {
	adminID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req creditRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	entry, err := h.wallet.RecordCredit(r.Context(), adminID, req.UserID, req.Amount, req.Reference)
	if err != nil {
		services.SendCoreError(w, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"admin_id": adminID,
		"user_id":  req.UserID,
		"amount":   req.Amount.StringFixed(2),
	}).Info("manual credit recorded")

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"entry":   entry,
	})
}

type labelRequest struct {
	Code   string `json:"code,omitempty"`
	Prefix string `json:"prefix,omitempty" validate:"omitempty,alphanum,max=8"`
}

// Label renders a printable QR label. A fresh code is generated when none
// is given.
// POST /admin/labels
func (h *AdminHandler) Label(w http.ResponseWriter, r *http.Request) {
	var req labelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	code := req.Code
	if code == "" {
		code = h.labels.NewCode(req.Prefix)
	}

	image, err := h.labels.Render(code)
	if err != nil {
		services.SendCoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"code":    code,
		"qrImage": image,
	})
}

// Routes mounts the admin endpoints on r.
func (h *AdminHandler) Routes(r chi.Router) {
	r.Use(middleware.RequireAdmin)
	r.Get("/scans/pending", h.Pending)
	r.Post("/scans/{code}/decision", h.Decide)
	r.Post("/credits", h.Credit)
	r.Post("/labels", h.Label)
}
