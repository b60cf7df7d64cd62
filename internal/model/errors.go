package model

import (
	"errors"
	"fmt"
)

// ErrorCode discriminates failures crossing the pipeline boundary.
type ErrorCode string

// Error codes
const (
	CodeInvalidAddress   ErrorCode = "INVALID_ADDRESS"
	CodeInvalidWindow    ErrorCode = "INVALID_WINDOW"
	CodeNoTransactions   ErrorCode = "NO_TRANSACTIONS"
	CodeRateLimited      ErrorCode = "RATE_LIMITED"
	CodeGenerationFailed ErrorCode = "GENERATION_FAILED"
)

// Sentinels usable with errors.Is against any *Error carrying the same code.
var (
	ErrInvalidAddress   = &Error{Code: CodeInvalidAddress, Message: "invalid Sui address format"}
	ErrInvalidWindow    = &Error{Code: CodeInvalidWindow, Message: "invalid report window"}
	ErrNoTransactions   = &Error{Code: CodeNoTransactions, Message: "no transactions found"}
	ErrGenerationFailed = &Error{Code: CodeGenerationFailed, Message: "failed to generate wrapped data"}
)

// Error is a coded pipeline error.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// NewError creates a coded error wrapping cause, which may be nil.
func NewError(code ErrorCode, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Err:     cause,
	}
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

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// CodeOf returns the code carried by err, or CodeGenerationFailed for foreign errors.
func CodeOf(err error) ErrorCode {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeGenerationFailed
}
