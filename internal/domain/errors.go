package domain

import "errors"

var (
	// ErrConfig marks a missing or malformed configuration or ledger table.
	ErrConfig = errors.New("configuration error")

	// ErrExtraction marks a failed or unparseable extraction call.
	ErrExtraction = errors.New("extraction error")

	// ErrLedgerWrite marks a failed append to the ledger.
	ErrLedgerWrite = errors.New("ledger write error")

	// ErrStaleReference marks a pending entry or edit marker that has expired.
	ErrStaleReference = errors.New("stale reference")
)
