// internal/app/allocation/guard.go
package allocation

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OccupyOutcome is the result of Guard.TryOccupy.
type OccupyOutcome int

const (
	Occupied OccupyOutcome = iota
	AlreadyOccupied
	OccupyRoomNotFound
)

// ReleaseOutcome is the result of Guard.Release.
type ReleaseOutcome int

const (
	Freed ReleaseOutcome = iota
	NotOccupied
	ReleaseRoomNotFound
)

// Guard owns the occupancy fields of every room. Its two transitions are
// single conditional writes, so concurrent callers racing for the same room
// are serialized by the store's per-document atomicity: exactly one occupy
// wins, the rest observe AlreadyOccupied.
//
// Nothing outside the Guard may write occupancy_state or occupant_id.
type Guard struct {
	store Store
}

// NewGuard returns a Guard over the given store.
func NewGuard(store Store) *Guard {
	return &Guard{store: store}
}

// TryOccupy transitions the room from free to occupied by userID.
//
// A zero-match conditional write is never assumed to be any particular
// failure: the room is re-fetched to report OccupyRoomNotFound and
// AlreadyOccupied precisely.
func (g *Guard) TryOccupy(ctx context.Context, roomID, userID primitive.ObjectID) (OccupyOutcome, error) {
	matched, err := g.store.SetOccupied(ctx, roomID, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: occupy room %s: %v", ErrUnavailable, roomID.Hex(), err)
	}
	if matched > 0 {
		return Occupied, nil
	}

	room, err := g.store.FindRoom(ctx, roomID)
	if err != nil {
		return 0, fmt.Errorf("%w: fetch room %s: %v", ErrUnavailable, roomID.Hex(), err)
	}
	if room == nil {
		return OccupyRoomNotFound, nil
	}
	return AlreadyOccupied, nil
}

// Release transitions the room from occupied to free, clearing the occupant.
func (g *Guard) Release(ctx context.Context, roomID primitive.ObjectID) (ReleaseOutcome, error) {
	matched, err := g.store.SetFree(ctx, roomID)
	if err != nil {
		return 0, fmt.Errorf("%w: release room %s: %v", ErrUnavailable, roomID.Hex(), err)
	}
	if matched > 0 {
		return Freed, nil
	}

	room, err := g.store.FindRoom(ctx, roomID)
	if err != nil {
		return 0, fmt.Errorf("%w: fetch room %s: %v", ErrUnavailable, roomID.Hex(), err)
	}
	if room == nil {
		return ReleaseRoomNotFound, nil
	}
	return NotOccupied, nil
}
