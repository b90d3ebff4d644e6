package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is the machine-readable reason sent to clients with an error event.
type ErrorCode string

const (
	CodeNotFound         ErrorCode = "not_found"
	CodeInvalidState     ErrorCode = "invalid_state"
	CodeAlreadyStarted   ErrorCode = "already_started"
	CodeFull             ErrorCode = "full"
	CodeNotEnoughPlayers ErrorCode = "not_enough_players"
	CodeInvalidActor     ErrorCode = "invalid_actor"
	CodeInvalidConfig    ErrorCode = "invalid_config"
	CodeInvalidInput     ErrorCode = "invalid_input"
	CodeInternal         ErrorCode = "internal"
)

// Error is a game rule violation. Two errors match under errors.Is when their codes match.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is lets callers compare against the sentinel values below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrNotFound         = &Error{Code: CodeNotFound}
	ErrInvalidState     = &Error{Code: CodeInvalidState}
	ErrAlreadyStarted   = &Error{Code: CodeAlreadyStarted}
	ErrFull             = &Error{Code: CodeFull}
	ErrNotEnoughPlayers = &Error{Code: CodeNotEnoughPlayers}
	ErrInvalidActor     = &Error{Code: CodeInvalidActor}
	ErrInvalidConfig    = &Error{Code: CodeInvalidConfig}
	ErrInvalidInput     = &Error{Code: CodeInvalidInput}
)

// NewError builds a coded error with a formatted message.
func NewError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the code from err, falling back to CodeInternal.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the text of err that is safe to show a client.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message == "" {
			return string(e.Code)
		}
		return e.Message
	}
	return "internal error"
}
