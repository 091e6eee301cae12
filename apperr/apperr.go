// Package apperr defines the error taxonomy shared by every API route. Handlers
// return *Error values and the error middleware turns them into the JSON
// envelope {"error": {"code", "message", "details"}}.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeUnauthorized        Code = "AUTH_UNAUTHORIZED"
	CodeForbidden           Code = "AUTH_FORBIDDEN"
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeNotFound            Code = "RESOURCE_NOT_FOUND"
	CodeDuplicate           Code = "DUPLICATE_ENTRY"
	CodeRestaurantClosed    Code = "RESTAURANT_CLOSED"
	CodeDeliveryUnavailable Code = "DELIVERY_UNAVAILABLE"
	CodeMinOrderNotMet      Code = "MIN_ORDER_NOT_MET"
	CodeItemUnavailable     Code = "ITEM_UNAVAILABLE"
	CodeInvalidTransition   Code = "INVALID_TRANSITION"
	CodeVoucherInvalid      Code = "VOUCHER_INVALID"
	CodeVoucherExpired      Code = "VOUCHER_EXPIRED"
	CodeVoucherUsageLimit   Code = "VOUCHER_USAGE_LIMIT"
	CodeInsufficientPoints  Code = "INSUFFICIENT_POINTS"
	CodeFileUpload          Code = "FILE_UPLOAD_ERROR"
	CodeFileTooLarge        Code = "FILE_TOO_LARGE"
	CodeFileTypeNotAllowed  Code = "FILE_TYPE_NOT_ALLOWED"
	CodeRateLimited         Code = "RATE_LIMIT_EXCEEDED"
	CodePaymentFailed       Code = "PAYMENT_FAILED"
	CodeWebhookInvalid      Code = "PAYMENT_WEBHOOK_INVALID"
	CodeInternal            Code = "INTERNAL_ERROR"
)

// Error is a domain error carrying everything the envelope needs.
type Error struct {
	Code    Code
	Status  int
	Message string
	Details interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

// Wrap attaches the underlying cause, which is logged but never sent to clients.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

func New(code Code, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

func Unauthorized(message string) *Error {
	return New(CodeUnauthorized, http.StatusUnauthorized, message)
}

func Forbidden(message string) *Error {
	return New(CodeForbidden, http.StatusForbidden, message)
}

func Validation(message string) *Error {
	return New(CodeValidation, http.StatusBadRequest, message)
}

func NotFound(resource string) *Error {
	return New(CodeNotFound, http.StatusNotFound, resource+" not found")
}

func Duplicate(message string) *Error {
	return New(CodeDuplicate, http.StatusConflict, message)
}

// BusinessRule is a 422 for a request that is well-formed but not allowed.
func BusinessRule(code Code, message string) *Error {
	return New(code, http.StatusUnprocessableEntity, message)
}

func RateLimited(message string) *Error {
	return New(CodeRateLimited, http.StatusTooManyRequests, message)
}

func Internal(err error) *Error {
	return &Error{Code: CodeInternal, Status: http.StatusInternalServerError, Message: "An unexpected error occurred", Err: err}
}

// From returns err as *Error, mapping anything unknown to INTERNAL_ERROR.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err)
}
