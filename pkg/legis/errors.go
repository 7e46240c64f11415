package legis

import "errors"

// Error taxonomy. Callers classify failures with errors.Is; the MCP layer
// maps them to the user-visible messages ("not found", "temporary error,
// please retry", "deadline exceeded").
var (
	// ErrInvalidQuery marks malformed search input: a page size above the
	// maximum or a negative offset. An empty query is not an error; it
	// yields an empty page.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrNotFound marks a detail lookup for an unknown internal id.
	ErrNotFound = errors.New("provision not found")

	// ErrVersionMismatch marks a fingerprint whose graph version differs
	// from the current one. Recoverable: recompute against the live graph.
	ErrVersionMismatch = errors.New("graph version mismatch")

	// ErrStoreUnavailable marks a transient storage failure. Retriable.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrDeadlineExceeded marks a request or batch that ran out of its time
	// budget. Store reads surface it without partial writes.
	ErrDeadlineExceeded = errors.New("deadline exceeded")

	// ErrInvariantViolation marks internal corruption such as a baseline
	// distribution that does not sum to a positive value. Never returned to
	// clients as data.
	ErrInvariantViolation = errors.New("internal invariant violation")
)
