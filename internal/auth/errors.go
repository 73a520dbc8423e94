package auth

import (
	"errors"
	"fmt"
)

// Code classifies a sign-in failure.
type Code string

const (
	CodeNonceReused        Code = "NONCE_REUSED"
	CodeMethodNotSupported Code = "METHOD_NOT_SUPPORTED"
	CodeNoAccounts         Code = "NO_ACCOUNTS"
	CodeNoSignature        Code = "NO_SIGNATURE"
	CodeInvalidNonce       Code = "INVALID_NONCE"
	CodeInvalidSignature   Code = "INVALID_SIGNATURE"
	CodeInvalidMessage     Code = "INVALID_MESSAGE"
	CodeProviderError      Code = "PROVIDER_ERROR"
)

// Error is the error type returned by Flow. Err carries the underlying cause
// for PROVIDER_ERROR and a malformed INVALID_MESSAGE, and is nil for other
// rule violations.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth: %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("auth: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// CodeOf returns the Code of err, or "" if err is not an *Error.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

func newError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func providerError(op string, err error) *Error {
	return &Error{Code: CodeProviderError, Message: op, Err: err}
}
