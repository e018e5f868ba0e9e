package engine

import "errors"

// Engine errors are local validation failures: every one is synchronous,
// recoverable by retrying with refreshed state, and leaves the state and
// its version untouched. The error text doubles as the wire error code.
var (
	ErrInvalidPhase       = errors.New("ENGINE_INVALID_PHASE")
	ErrVersionConflict    = errors.New("ENGINE_VERSION_CONFLICT")
	ErrInvalidActionIndex = errors.New("ENGINE_INVALID_ACTION_INDEX")
	ErrInvalidCoverList   = errors.New("ENGINE_INVALID_COVER_LIST")
	ErrInvalidAction      = errors.New("ENGINE_INVALID_ACTION")
)
