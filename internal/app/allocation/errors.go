// internal/app/allocation/errors.go
package allocation

import "errors"

// Error taxonomy for allocation operations. Callers classify failures with
// errors.Is; the API surface maps each kind to a distinct status code.
var (
	// ErrInvalidArgument marks malformed identifiers or missing fields.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrForbidden marks a role-policy violation (admins never hold rooms).
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound marks an absent room, user, or allocation.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a room that is already occupied.
	ErrConflict = errors.New("room already allocated")

	// ErrUnavailable marks a transient store failure. The whole call is safe
	// to retry from the top: the guard's conditional write is idempotent, so
	// retrying an already-applied occupy simply reports ErrConflict.
	ErrUnavailable = errors.New("store unavailable")

	// ErrInconsistent marks a failed compensation: the room document and the
	// allocation records disagree and an operator must reconcile them. It is
	// surfaced distinctly and never downgraded to a generic failure.
	ErrInconsistent = errors.New("allocation state inconsistent")
)
