package utils

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures returned by the domain services.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindUnauthorized
	KindInvalidState
	KindPolicyViolation
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindInvalidState:
		return "invalid_state"
	case KindPolicyViolation:
		return "policy_violation"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// AppError is a typed failure carrying an API error code.
// Two AppErrors match under errors.Is when their codes are equal.
type AppError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

// WithMessage returns a copy of e with a different message.
func (e *AppError) WithMessage(msg string) *AppError {
	cp := *e
	cp.Message = msg
	return &cp
}

// Wrap returns a copy of e that wraps cause.
func (e *AppError) Wrap(cause error) *AppError {
	cp := *e
	cp.Err = cause
	return &cp
}

func NewNotFound(code, msg string) *AppError {
	return &AppError{Kind: KindNotFound, Code: code, Message: msg}
}

func NewUnauthorized(code, msg string) *AppError {
	return &AppError{Kind: KindUnauthorized, Code: code, Message: msg}
}

func NewInvalidState(code, msg string) *AppError {
	return &AppError{Kind: KindInvalidState, Code: code, Message: msg}
}

func NewPolicyViolation(code, msg string) *AppError {
	return &AppError{Kind: KindPolicyViolation, Code: code, Message: msg}
}

func NewValidation(code, msg string) *AppError {
	return &AppError{Kind: KindValidation, Code: code, Message: msg}
}

// Internal wraps an unexpected error.
func Internal(err error) *AppError {
	return &AppError{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: "internal error", Err: err}
}

// KindOf returns the kind of err, or KindInternal when err is not an AppError.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Common application errors used across services.
var (
	ErrInvalidToken = NewUnauthorized("INVALID_TOKEN", "invalid or expired token")
	ErrForbidden    = NewUnauthorized("FORBIDDEN", "not allowed to perform this action")
	ErrNotEligible  = NewUnauthorized("NOT_ELIGIBLE", "only clients who booked or contacted this service can rate it")
	ErrInvalidOTP   = NewUnauthorized("INVALID_OTP", "invalid or expired OTP")

	ErrUserNotFound           = NewNotFound("USER_NOT_FOUND", "user not found")
	ErrSupplierNotFound       = NewNotFound("SUPPLIER_NOT_FOUND", "supplier not found")
	ErrServiceNotFound        = NewNotFound("SERVICE_NOT_FOUND", "service not found")
	ErrContactRequestNotFound = NewNotFound("CONTACT_REQUEST_NOT_FOUND", "contact request not found")
	ErrBookingNotFound        = NewNotFound("BOOKING_NOT_FOUND", "booking not found")
	ErrSubscriptionNotFound   = NewNotFound("SUBSCRIPTION_NOT_FOUND", "no active subscription found")
	ErrJoinRequestNotFound    = NewNotFound("JOIN_REQUEST_NOT_FOUND", "join request not found")
	ErrRatingNotFound         = NewNotFound("RATING_NOT_FOUND", "rating not found")

	ErrAlreadyConverted        = NewInvalidState("ALREADY_CONVERTED", "contact request already converted to booking")
	ErrRequestNotPending       = NewInvalidState("REQUEST_NOT_PENDING", "contact request was already answered")
	ErrRequestNotAccepted      = NewInvalidState("REQUEST_NOT_ACCEPTED", "contact request has not been accepted")
	ErrNoQuotedPrice           = NewInvalidState("NO_QUOTED_PRICE", "no quoted price available on request")
	ErrBookingNotPending       = NewInvalidState("BOOKING_NOT_PENDING", "only pending bookings can be changed")
	ErrSubscriptionNotActive   = NewInvalidState("SUBSCRIPTION_NOT_ACTIVE", "subscription is not active")
	ErrSubscriptionConflict    = NewInvalidState("SUBSCRIPTION_CONFLICT", "supplier already has another active subscription")
	ErrJoinRequestPending      = NewInvalidState("JOIN_REQUEST_PENDING", "a pending join request already exists for this phone")
	ErrJoinRequestClosed       = NewInvalidState("JOIN_REQUEST_CLOSED", "join request was already processed")
	ErrContactRequestMismatch  = NewInvalidState("CONTACT_REQUEST_MISMATCH", "contact request does not match service")
	ErrContactRequestNotNeeded = NewPolicyViolation("INVALID_CONTACT_CATEGORY", "this service does not require a contact request")

	ErrSupplierLocked      = NewPolicyViolation("SUPPLIER_LOCKED", "supplier is temporarily locked due to reaching the free limit")
	ErrContactOnlyCategory = NewPolicyViolation("CONTACT_ONLY_CATEGORY", "this category can only be reached through a contact request")
	ErrPriceNotAvailable   = NewPolicyViolation("PRICE_NOT_AVAILABLE", "price not available for this service, please contact the supplier")
	ErrDateNotAvailable    = NewPolicyViolation("DATE_NOT_AVAILABLE", "selected date is not available for this service")
	ErrCapacityOutOfRange  = NewPolicyViolation("CAPACITY_OUT_OF_RANGE", "number of people is outside the service capacity")
	ErrOTPRateLimited      = NewPolicyViolation("TOO_MANY_REQUESTS", "too many OTP requests, try again later")

	ErrInvalidStatus = NewValidation("INVALID_STATUS", "status value is not allowed")
	ErrInvalidPlan   = NewValidation("INVALID_PLAN", "unknown subscription plan")
	ErrInvalidDays   = NewValidation("INVALID_DAYS", "days must be a positive integer")
	ErrInvalidInput  = NewValidation("INVALID_REQUEST", "invalid request")
	ErrInvalidScore  = NewValidation("INVALID_SCORE", "score must be an integer between 1 and 5")
)
