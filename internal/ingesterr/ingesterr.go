// Package ingesterr defines the sentinel error values shared across the
// ingestion pipeline so callers can distinguish "stop this worker" from
// "log and continue" with errors.Is instead of string matching.
package ingesterr

import "errors"

var (
	// ErrTransport covers HTTP/WebSocket I/O failures. Recovered locally by
	// the owning worker via backoff-and-retry.
	ErrTransport = errors.New("transport failure")

	// ErrParse covers malformed top-level JSON-RPC documents. The record is
	// skipped; the caller continues.
	ErrParse = errors.New("parse failure")

	// ErrDecode covers base64 overflow or an invalid alphabet byte in a
	// required "Program data:" payload. The record is dropped.
	ErrDecode = errors.New("decode failure")

	// ErrQueueClosed is returned by Queue.Push once the queue has been
	// closed. It signals the producing worker to stop, not to retry.
	ErrQueueClosed = errors.New("queue closed")

	// ErrDBConnect covers failure to establish or re-establish the database
	// connection pool.
	ErrDBConnect = errors.New("database connect failure")

	// ErrDBWrite covers a failed INSERT. The event is discarded; at-least-once
	// delivery relies on the ON CONFLICT DO NOTHING clause, not on retrying
	// the failed event.
	ErrDBWrite = errors.New("database write failure")

	// ErrConfigInvalid is returned only at startup, before any worker runs.
	ErrConfigInvalid = errors.New("invalid configuration")
)
