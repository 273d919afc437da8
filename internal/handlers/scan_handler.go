package handlers

import (
	"net/http"

	"github.com/recyclepay/backend/internal/config"
	"github.com/recyclepay/backend/internal/models"
	"github.com/recyclepay/backend/internal/services"
	"github.com/sirupsen/logrus"
)

type ScanHandler struct {
	scans     ScanService
	validator *services.ValidationHelper
	logger    logrus.FieldLogger
}

func NewScanHandler(scans ScanService, logger logrus.FieldLogger) *ScanHandler {
	return &ScanHandler{
		scans:     scans,
		validator: services.NewValidationHelper(),
		logger:    logger.WithField("module", "scan_handler"),
	}
}

type submitScanRequest struct {
	Code string `json:"code" validate:"required"`
}

// Submit registers a scanned bottle code for the caller.
// POST /scans
func (h *ScanHandler) Submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req submitScanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	rec, err := h.scans.Submit(r.Context(), req.Code, userID)
	if err != nil {
		if services.KindOf(err) == services.KindStorageUnavailable || services.KindOf(err) == "" {
			config.LogError(h.logger, "scan_handler", "Submit", "scan submission failed", req.Code, err)
		}
		services.SendCoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Scan submitted, waiting for verification",
		"scan":    rec,
	})
}

// List returns the caller's scans newest first.
// GET /scans?status=&from=&to=&limit=
func (h *ScanHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	from, to, limit, ok := queryRange(w, r)
	if !ok {
		return
	}

	records, err := h.scans.ScanHistory(r.Context(), userID, models.ScanFilter{
		Status: models.ScanStatus(r.URL.Query().Get("status")),
		From:   from,
		To:     to,
		Limit:  limit,
	})
	if err != nil {
		services.SendCoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"scans":   records,
	})
}
