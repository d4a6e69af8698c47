// File: errors/errors.go
// Author: corenet contributors
// License: Apache-2.0
//
// Package errors defines the failure taxonomy shared by eventqueue,
// fbserver, fbclient and fbmysql. Every kind carries a stable Code so
// callers can use errors.Is/errors.As instead of matching on message
// text, and a human-readable Message that (where applicable) embeds
// the formatted last-OS-error string.
package errors

import "fmt"

// Kind identifies the category of failure. Kinds are distinguishable
// so that, e.g., a timeout can be retried while a runtime error cannot.
type Kind int

const (
	// InvalidArgument marks a precondition violation: empty string,
	// out-of-range port, non-positive size, nil address record.
	InvalidArgument Kind = iota
	// InvalidDomain marks a domain tag outside {IPv4, IPv6, Local}, or
	// the wrong constructor used for the requested domain.
	InvalidDomain
	// ServerCreation marks a failed Server construction path (socket,
	// bind, listen, event-queue creation).
	ServerCreation
	// ServerRuntime marks a steady-state Server failure (read, write,
	// close, select/poll error, peer closed, backlog exhausted).
	ServerRuntime
	// ServerTimeout marks a Server readiness wait that exceeded its budget.
	ServerTimeout
	// ClientCreation marks a failed Client construction path (socket,
	// connect).
	ClientCreation
	// ClientRuntime marks a steady-state Client failure.
	ClientRuntime
	// ClientTimeout marks a Client readiness wait that exceeded its budget.
	ClientTimeout
	// SystemRuntime marks a filesystem or time-retrieval failure in sysutil.
	SystemRuntime
	// MySQLCreation marks a failed MySQL connection-open path.
	MySQLCreation
	// MySQLRuntime marks a steady-state MySQL query/statement failure.
	MySQLRuntime
)

// prefixes mirrors the original's "Category: message" convention
// (InvalidArgumentException -> "Invalid Argument: ...", etc.).
var prefixes = map[Kind]string{
	InvalidArgument: "Invalid Argument",
	InvalidDomain:   "Invalid Domain",
	ServerCreation:  "Server Creation Error",
	ServerRuntime:   "Server Runtime Error",
	ServerTimeout:   "Server Timeout",
	ClientCreation:  "Client Creation Error",
	ClientRuntime:   "Client Runtime Error",
	ClientTimeout:   "Client Timeout",
	SystemRuntime:   "System Runtime Error",
	MySQLCreation:   "MySQL Creation Error",
	MySQLRuntime:    "MySQL Runtime Error",
}

// Error is the single error type used across the module. Code makes
// the kind machine-checkable; Message is the formatted, human-readable
// explanation.
type Error struct {
	Code    Kind
	Message string
	// Cause is the underlying OS/library error, if any, so callers can
	// still unwrap to a syscall.Errno or *mysql.MySQLError when needed.
	Cause error
}

func (e *Error) Error() string {
	prefix := prefixes[e.Code]
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Code, so that
// errors.Is(err, &Error{Code: ServerTimeout}) style checks work without
// comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newErr(code Kind, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// New constructs a plain Error of the given kind with no wrapped cause.
func New(code Kind, message string) *Error {
	return newErr(code, message, nil)
}

// Wrap constructs an Error of the given kind that wraps cause.
func Wrap(code Kind, message string, cause error) *Error {
	return newErr(code, message, cause)
}

// Is reports whether err is an *Error of the given kind. Convenience
// wrapper so call sites don't need to build a throwaway target value.
func Is(err error, code Kind) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Code == code
}
