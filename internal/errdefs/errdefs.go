// Package errdefs holds the error kinds shared by chats, accounts and backends.
// Callers classify failures with errors.Is.
package errdefs

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotConnected    = errors.New("not connected")
	ErrNotSupported    = errors.New("not supported")
	ErrBackendFailure  = errors.New("backend failure")
	ErrCancelled       = errors.New("cancelled")
)
