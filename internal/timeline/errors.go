package timeline

import "errors"

var (
	// ErrInvalidInsertionPoint is returned for a negative insertion time or a
	// non-positive clip duration. Nothing is mutated.
	ErrInvalidInsertionPoint = errors.New("invalid insertion point")

	// ErrInvariantViolation is returned when a segment sequence is not
	// contiguous, ordered, and free of zero-length segments. The store keeps
	// its previous state.
	ErrInvariantViolation = errors.New("timeline invariant violation")

	// ErrStaleSnapshot is returned by CompareAndReplace when another writer
	// committed after the caller took its snapshot.
	ErrStaleSnapshot = errors.New("stale timeline snapshot")
)
