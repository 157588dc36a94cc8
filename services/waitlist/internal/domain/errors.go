package domain

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeInvalidInput      Code = "INVALID_INPUT"
	CodeAlreadyRegistered Code = "ALREADY_REGISTERED"
	CodeNotFound          Code = "NOT_FOUND"
	CodeConfig            Code = "CONFIG_ERROR"
	CodeNotifyFailed      Code = "NOTIFY_FAILED"
	CodeInternal          Code = "INTERNAL"
)

// Error is a waitlist failure carrying a stable code for callers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so errors.Is(err, ErrNotFound)
// works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrInvalidInput      = &Error{Code: CodeInvalidInput, Message: "Invalid input"}
	ErrAlreadyRegistered = &Error{Code: CodeAlreadyRegistered, Message: "You are already on the waitlist!"}
	ErrNotFound          = &Error{Code: CodeNotFound, Message: "Email not found on waitlist"}
	ErrConfig            = &Error{Code: CodeConfig, Message: "Server configuration error"}
)

func InvalidInput(message string) *Error {
	return &Error{Code: CodeInvalidInput, Message: message}
}

func Internal(message string, err error) *Error {
	return &Error{Code: CodeInternal, Message: message, Err: err}
}

// CodeOf returns the code carried by err, or CodeInternal for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the user-facing message for err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "Something went wrong"
}
