package importer

// errors.go defines the structural error taxonomy. Structural errors are
// fatal and abort a run before review; per-row validation problems are never
// errors in this sense, they are collected on the draft instead.

import "errors"

var (
	// ErrEmptyMatrix means the uploaded file produced no rows at all.
	ErrEmptyMatrix = errors.New("no rows found in file")

	// ErrNoDataRows means the layout was detected but nothing follows the
	// banner or header.
	ErrNoDataRows = errors.New("no data rows after header")

	// ErrIncompleteMapping means a manual mapping is missing required fields
	// or maps two fields to the same column.
	ErrIncompleteMapping = errors.New("incomplete mapping")

	// ErrMappingRequired means auto-mapping failed and the session is
	// waiting for a manual mapping before it can review.
	ErrMappingRequired = errors.New("manual mapping required")

	// ErrWrongState means an operation was invoked out of order, such as
	// committing a session that never reached review.
	ErrWrongState = errors.New("operation not allowed in current state")
)
