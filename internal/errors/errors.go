// Package errors defines the application error type shared by services and
// handlers. Services return only *AppError values so that the transport layer
// can render a stable code and a safe message without leaking internals.
package errors

import "net/http"

// AppError is a structured application error carrying an error code, a
// human-readable message, the HTTP status to render and an optional cause.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is matches two AppErrors by code, so a sentinel compares equal to any copy
// produced by Wrap or WithMessage.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Wrap copies a sentinel and attaches an internal cause.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage copies a sentinel with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized       = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrInvalidCredentials = &AppError{Code: "INVALID_CREDENTIALS", Message: "Invalid email or password", StatusCode: http.StatusUnauthorized}
	ErrForbidden          = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}

	// ErrConcurrentModification reports that a row changed between read and
	// write. Callers may retry with fresh state.
	ErrConcurrentModification = &AppError{Code: "CONCURRENT_MODIFICATION", Message: "The resource was modified concurrently, reload and retry", StatusCode: http.StatusConflict}
)

// User errors.
var (
	ErrUserNotFound   = &AppError{Code: "USER_NOT_FOUND", Message: "User not found", StatusCode: http.StatusNotFound}
	ErrDuplicateEmail = &AppError{Code: "DUPLICATE_EMAIL", Message: "A user with this email already exists", StatusCode: http.StatusConflict}
)

// Transaction errors.
var (
	ErrTransactionNotFound    = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrInvalidTransactionType = &AppError{Code: "INVALID_TRANSACTION_TYPE", Message: "Transaction type must be income or expense", StatusCode: http.StatusBadRequest}
)

// Budget errors.
var (
	ErrBudgetNotFound      = &AppError{Code: "BUDGET_NOT_FOUND", Message: "Budget not found", StatusCode: http.StatusNotFound}
	ErrNoActiveBudget      = &AppError{Code: "NO_ACTIVE_BUDGET", Message: "No active budget for the current period", StatusCode: http.StatusNotFound}
	ErrBudgetOverlap       = &AppError{Code: "BUDGET_OVERLAP", Message: "An active budget already covers part of this period", StatusCode: http.StatusConflict}
	ErrBudgetTotalMismatch = &AppError{Code: "BUDGET_TOTAL_MISMATCH", Message: "Sum of category amounts must equal the total budget", StatusCode: http.StatusBadRequest}
	ErrInvalidBudgetPeriod = &AppError{Code: "INVALID_BUDGET_PERIOD", Message: "Budget end date must be after its start date", StatusCode: http.StatusBadRequest}
	ErrDuplicateCategory   = &AppError{Code: "DUPLICATE_BUDGET_CATEGORY", Message: "A category may appear only once in a budget", StatusCode: http.StatusBadRequest}
)

// Activation errors.
var (
	ErrActivationCodeNotFound  = &AppError{Code: "ACTIVATION_CODE_NOT_FOUND", Message: "Activation code not found", StatusCode: http.StatusNotFound}
	ErrActivationCodeExpired   = &AppError{Code: "ACTIVATION_CODE_EXPIRED", Message: "Activation code has expired or was deactivated", StatusCode: http.StatusGone}
	ErrActivationCodeExhausted = &AppError{Code: "ACTIVATION_CODE_EXHAUSTED", Message: "Activation code has no remaining uses", StatusCode: http.StatusConflict}
	ErrIdentityAlreadyLinked   = &AppError{Code: "IDENTITY_ALREADY_LINKED", Message: "This chat identity is linked to another account", StatusCode: http.StatusConflict}
	ErrChatLinkNotFound        = &AppError{Code: "CHAT_LINK_NOT_FOUND", Message: "No active chat link for this identity", StatusCode: http.StatusNotFound}
)
