package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrValidation = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal   = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")

	ErrEmailExists        = New("EMAIL_EXISTS", http.StatusBadRequest, "user with this email already exists")
	ErrUsernameExists     = New("USERNAME_EXISTS", http.StatusBadRequest, "user with this username already exists")
	ErrUserNotFound       = New("USER_NOT_FOUND", http.StatusNotFound, "user not found")
	ErrIncorrectPassword  = New("INCORRECT_PASSWORD", http.StatusUnauthorized, "incorrect password")
	ErrAccountLocked      = New("ACCOUNT_LOCKED", http.StatusForbidden, "account is locked, try again later")
	ErrAccountNotVerified = New("ACCOUNT_NOT_VERIFIED", http.StatusForbidden, "email address is not verified")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")

	ErrAlreadyVerified  = New("ALREADY_VERIFIED", http.StatusBadRequest, "email is already verified")
	ErrVerificationCode = New("VERIFICATION_CODE_ERROR", http.StatusBadRequest, "verification code is invalid or expired")

	ErrTokenNotFound    = New("TOKEN_NOT_FOUND", http.StatusBadRequest, "refresh token not found")
	ErrInvalidTokenType = New("INVALID_TOKEN_TYPE", http.StatusBadRequest, "wrong token type")
	ErrTokenExpired     = New("TOKEN_EXPIRED", http.StatusUnauthorized, "token has expired")
	ErrTokenNotValid    = New("TOKEN_NOT_VALID", http.StatusUnauthorized, "token is revoked or expired")
	ErrMalformedToken   = New("MALFORMED_TOKEN", http.StatusUnauthorized, "token is malformed or has a bad signature")

	ErrUnauthorized = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrForbidden    = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrConflict     = New("CONFLICT", http.StatusConflict, "concurrent update detected")
	ErrRateLimited  = New("RATE_LIMIT_EXCEEDED", http.StatusTooManyRequests, "too many requests, try again later")

	ErrCategoryNotFound  = New("CATEGORY_NOT_FOUND", http.StatusNotFound, "category not found")
	ErrCategoryExists    = New("CATEGORY_EXISTS", http.StatusBadRequest, "category with this name already exists")
	ErrCategoryHasDishes = New("CATEGORY_HAS_DISHES", http.StatusConflict, "category still contains dishes")
	ErrDishNotFound      = New("DISH_NOT_FOUND", http.StatusNotFound, "dish not found")

	ErrCacheMiss = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// Is reports whether err carries the same error code as target.
func Is(err error, target *Error) bool {
	if err == nil || target == nil {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == target.Code
}
