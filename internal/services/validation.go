package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse represents error response structure
type ErrorResponse struct {
	Error   string            `json:"error"`             // Error message
	Code    ErrorKind         `json:"code,omitempty"`    // Core error kind
	Status  string            `json:"status,omitempty"`  // Existing scan status on conflicts
	Details map[string]string `json:"details,omitempty"` // Validation details
}

// ValidationHelper provides shared validation functionality
type ValidationHelper struct {
	validator *validator.Validate
}

// NewValidationHelper creates a new validation helper
func NewValidationHelper() *ValidationHelper {
	return &ValidationHelper{
		validator: validator.New(),
	}
}

// ValidateStruct validates a struct and returns validation errors
func (vh *ValidationHelper) ValidateStruct(s any) error {
	return vh.validator.Struct(s)
}

// SendErrorResponse sends a JSON error response
func SendErrorResponse(w http.ResponseWriter, message string, statusCode int, validationErr error) {
	writeErrorResponse(w, statusCode, ErrorResponse{
		Error:   message,
		Details: validationDetails(validationErr),
	})
}

// SendCoreError maps a core error to its HTTP status and writes it.
func SendCoreError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error(), Code: KindOf(err)}

	var coreErr *Error
	if errors.As(err, &coreErr) {
		resp.Error = coreErr.Message
		resp.Details = validationDetails(coreErr.Err)
		switch coreErr.Kind {
		case KindAlreadyPending, KindAlreadyCompleted, KindAlreadyRejected:
			resp.Status = string(coreErr.Kind)
		}
	}

	writeErrorResponse(w, HTTPStatus(err), resp)
}

// HTTPStatus is the response status for a core error kind.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInvalidAmount, KindMissingReason:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyPending, KindAlreadyCompleted, KindAlreadyRejected, KindInvalidTransition:
		return http.StatusConflict
	case KindInsufficientBalance:
		return http.StatusUnprocessableEntity
	case KindStorageUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func validationDetails(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make(map[string]string, len(verrs))
	for _, e := range verrs {
		details[e.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", e.Tag())
	}
	return details
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}
