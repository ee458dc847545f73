package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores, locks and transports return
// these (optionally wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: signal or roundtrip row does not exist
//   - ErrInvalidState: signal is not in the state an operation expects
//   - ErrConflict: a concurrent writer won
//   - ErrUnavailable: backing service temporarily unreachable
//   - ErrLockNotAcquired: per-signal lock could not be taken before the deadline
//
// For validation errors (bad identifiers, malformed XML) use pkg/domain-errors directly.
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidState    = errors.New("invalid state")
	ErrConflict        = errors.New("conflict")
	ErrUnavailable     = errors.New("unavailable")
	ErrLockNotAcquired = errors.New("lock not acquired")
)
