package common

import (
	"errors"
	"net/http"
)

// Sentinel errors shared across the risk layer.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
	ErrConflict       = errors.New("resource conflict")
	ErrValidation     = errors.New("validation error")
	ErrRateExceeded   = errors.New("rate exceeded")
)

// Machine-readable rejection kinds surfaced as error_code in responses.
const (
	CodeRateExceeded         = "RATE_EXCEEDED"
	CodeSuspicious           = "SUSPICIOUS"
	CodeDuplicate            = "DUPLICATE_TRANSACTION"
	CodeAmountMismatch       = "AMOUNT_MISMATCH"
	CodePriceTampering       = "PRICE_TAMPERING"
	CodeFraudBlocked         = "FRAUD_BLOCKED"
	CodeValidationIncomplete = "VALIDATION_INCOMPLETE"
	CodeSessionInvalidated   = "SESSION_INVALIDATED"
	CodePromoAbuse           = "PROMO_ABUSE"
	CodeOTPRequired          = "OTP_REQUIRED"
	CodeAccountLocked        = "ACCOUNT_LOCKED"
)

// AppError represents an application error with HTTP status code
type AppError struct {
	Code      int    `json:"code"`
	ErrorCode string `json:"error_code,omitempty"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the underlying error to errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithCode returns a copy of the error tagged with a rejection kind.
func (e *AppError) WithCode(code string) *AppError {
	cp := *e
	cp.ErrorCode = code
	return &cp
}

// NewAppError creates a new AppError
func NewAppError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewNotFoundError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusNotFound,
		Message: message,
		Err:     err,
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Code:    http.StatusUnauthorized,
		Message: message,
		Err:     ErrUnauthorized,
	}
}

func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:    http.StatusForbidden,
		Message: message,
		Err:     ErrForbidden,
	}
}

func NewBadRequestError(message string, err error) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{
		Code:    http.StatusConflict,
		Message: message,
		Err:     ErrConflict,
	}
}

func NewValidationError(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Message: message,
		Err:     ErrValidation,
	}
}

func NewTooManyRequestsError(message string) *AppError {
	return &AppError{
		Code:      http.StatusTooManyRequests,
		ErrorCode: CodeRateExceeded,
		Message:   message,
		Err:       ErrRateExceeded,
	}
}

// AsAppError unwraps err into an *AppError when one is present in the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
