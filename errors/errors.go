// Package errors provides error handling for codelens.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints for actionable failures
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Add hints for users
//	return errors.WithHint(err, "try increasing the timeout")
//
//	// Check errors
//	if errors.Is(err, errors.ErrTimeout) {
//	    // handle timeout
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll

	GetAllHints    = crdb.GetAllHints
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors for the language-server core.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrBinaryNotFound indicates the analyzer binary could not be located.
	// Fatal for client acquisition; carries a hint naming the search locations.
	ErrBinaryNotFound = New("analyzer binary not found")

	// ErrProtocol indicates a malformed frame or a server-reported JSON-RPC error.
	// Surfaced per-call; the connection itself survives.
	ErrProtocol = New("protocol error")

	// ErrTimeout indicates a request received no response within its deadline.
	// The subprocess-side computation may still run to completion; its late
	// response is dropped as unmatched.
	ErrTimeout = New("request timed out")

	// ErrTransportClosed indicates the transport was shut down while the
	// request was still pending.
	ErrTransportClosed = New("transport closed")

	// ErrFileNotFound indicates a caller-supplied path does not exist or
	// resolves outside the workspace root.
	ErrFileNotFound = New("file not found")

	// ErrSymbolNotFound indicates no symbol in the document outline matches
	// the requested name.
	ErrSymbolNotFound = New("symbol not found")

	// ErrCallHierarchyUnavailable indicates the analyzer produced no call
	// hierarchy items for the resolved position.
	ErrCallHierarchyUnavailable = New("call hierarchy unavailable")
)

// IsTimeout checks if an error is or wraps ErrTimeout.
func IsTimeout(err error) bool {
	return err != nil && Is(err, ErrTimeout)
}

// IsFileNotFound checks if an error is or wraps ErrFileNotFound.
func IsFileNotFound(err error) bool {
	return err != nil && Is(err, ErrFileNotFound)
}

// NewFileNotFound creates a file-not-found error naming the offending path.
func NewFileNotFound(path string) error {
	return Wrapf(ErrFileNotFound, "%s", path)
}

// NewSymbolNotFound creates a symbol-not-found error naming the symbol and file.
func NewSymbolNotFound(symbol, path string) error {
	return Wrapf(ErrSymbolNotFound, "%q in %s", symbol, path)
}
