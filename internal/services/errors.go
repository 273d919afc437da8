package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/recyclepay/backend/internal/models"
)

type ErrorKind string

const (
	KindValidation          ErrorKind = "validation_error"
	KindAlreadyPending      ErrorKind = "already_pending"
	KindAlreadyCompleted    ErrorKind = "already_completed"
	KindAlreadyRejected     ErrorKind = "already_rejected"
	KindInvalidTransition   ErrorKind = "invalid_transition"
	KindInvalidAmount       ErrorKind = "invalid_amount"
	KindMissingReason       ErrorKind = "missing_reason"
	KindStorageUnavailable  ErrorKind = "storage_unavailable"
	KindNotFound            ErrorKind = "not_found"
	KindInsufficientBalance ErrorKind = "insufficient_balance"
)

// Error is the typed result of every failed core operation. Record is set
// for conflicts on an existing scan code.
type Error struct {
	Kind    ErrorKind
	Message string
	Record  *models.ScanRecord
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can compare against the sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation          = &Error{Kind: KindValidation}
	ErrAlreadyPending      = &Error{Kind: KindAlreadyPending}
	ErrAlreadyCompleted    = &Error{Kind: KindAlreadyCompleted}
	ErrAlreadyRejected     = &Error{Kind: KindAlreadyRejected}
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition}
	ErrInvalidAmount       = &Error{Kind: KindInvalidAmount}
	ErrMissingReason       = &Error{Kind: KindMissingReason}
	ErrStorageUnavailable  = &Error{Kind: KindStorageUnavailable}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInsufficientBalance = &Error{Kind: KindInsufficientBalance}
)

// KindOf returns the kind of a core error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// storageError classifies an infrastructure failure. Core errors pass through.
func storageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindStorageUnavailable, Message: op, Err: err}
}

// conflictError maps an existing record to the matching submit conflict.
func conflictError(rec *models.ScanRecord) error {
	switch rec.Status {
	case models.ScanStatusApproved:
		return &Error{Kind: KindAlreadyCompleted, Message: "scan code has already been processed and rewarded", Record: rec}
	case models.ScanStatusRejected:
		reason := ""
		if rec.RejectionReason != nil {
			reason = *rec.RejectionReason
		}
		return &Error{Kind: KindAlreadyRejected, Message: fmt.Sprintf("scan code was rejected: %s", reason), Record: rec}
	default:
		return &Error{
			Kind:    KindAlreadyPending,
			Message: fmt.Sprintf("scan code is already waiting for verification (submitted %s)", rec.SubmittedAt.Format("2006-01-02 15:04:05")),
			Record:  rec,
		}
	}
}

const pqUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}

// isTransient reports failures worth retrying on read paths.
func isTransient(err error) bool {
	if KindOf(err) != KindStorageUnavailable {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
