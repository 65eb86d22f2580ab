// Package domainerrors defines the error vocabulary shared by the
// authentication services. Callers branch on codes rather than error
// strings, and the HTTP layer maps codes onto status responses.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of failure. Codes are stable and form part of the
// API contract; messages are free to change.
type Code string

const (
	CodeInternal     Code = "internal_error"
	CodeBadRequest   Code = "bad_request"
	CodeValidation   Code = "validation_error"
	CodeNotFound     Code = "not_found"
	CodeUnauthorized Code = "unauthorized"
	CodeConflict     Code = "conflict"
	CodeTimeout      Code = "timeout"

	// Credential verification and challenge codes. These mirror the
	// user-facing outcomes exactly: each code requires different copy on the
	// rendered page, so they must stay distinct.
	CodeInvalidCredentials   Code = "invalid_credentials"
	CodeAccountLocked        Code = "account_locked"
	CodeAccountExpired       Code = "account_expired"
	CodeDirectoryUnavailable Code = "directory_unavailable"
	CodeTokenNotFound        Code = "token_not_found"
	CodeTokenExpired         Code = "token_expired"
	CodeTokenWrongUser       Code = "token_wrong_user"
	CodeNoVerifiedContact    Code = "no_verified_contact"
	CodeMfaIncorrect         Code = "mfa_incorrect"
	CodeMfaLocked            Code = "mfa_locked"
	CodeInvalidSelection     Code = "invalid_selection"
)

// DomainError carries a code alongside the human-readable message.
type DomainError struct {
	Code    Code
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// New creates a DomainError with the given code and message.
func New(code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Newf creates a DomainError with a formatted message.
func Newf(code Code, format string, args ...any) *DomainError {
	return &DomainError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message, preserving the cause for
// errors.Is/As chains.
func Wrap(err error, code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Is reports whether err (or anything it wraps) carries the given code.
func Is(err error, code Code) bool {
	var de *DomainError
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Err
		if err == nil {
			return false
		}
	}
	return false
}

// CodeOf extracts the outermost domain code, defaulting to CodeInternal for
// unclassified errors.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the response status used by the HTTP layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidSelection:
		return http.StatusBadRequest
	case CodeNotFound, CodeTokenNotFound:
		return http.StatusNotFound
	case CodeUnauthorized, CodeInvalidCredentials, CodeMfaIncorrect:
		return http.StatusUnauthorized
	case CodeAccountLocked, CodeAccountExpired, CodeMfaLocked, CodeTokenWrongUser, CodeNoVerifiedContact:
		return http.StatusForbidden
	case CodeTokenExpired:
		return http.StatusGone
	case CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeDirectoryUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
