// internal/app/allocation/store.go
package allocation

import (
	"context"

	"github.com/dalemusser/roomhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is the persistence contract the allocation core runs against. The
// Mongo implementation lives in internal/app/store/allocations; tests use an
// in-memory implementation with the same conditional-update atomicity.
//
// SetOccupied and SetFree are conditional single-document writes: each
// matches the room only in the expected occupancy state and returns the
// matched count. They are called exclusively by the Guard; no other code
// writes a room's occupancy fields.
type Store interface {
	// FindRoom returns the room, or nil if no such room exists.
	FindRoom(ctx context.Context, roomID primitive.ObjectID) (*models.Room, error)

	// SetOccupied atomically transitions the room from free to occupied by
	// userID. Returns the number of documents matched (0 or 1).
	SetOccupied(ctx context.Context, roomID, userID primitive.ObjectID) (int64, error)

	// SetFree atomically transitions the room from occupied to free and
	// clears the occupant. Returns the number of documents matched (0 or 1).
	SetFree(ctx context.Context, roomID primitive.ObjectID) (int64, error)

	// FindUser returns the user, or nil if no such user exists.
	FindUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error)

	// InsertAllocation appends an allocation record and returns its id.
	InsertAllocation(ctx context.Context, rec models.Allocation) (primitive.ObjectID, error)

	// DeleteAllocationsByRoom removes every allocation record for the room
	// and returns the deleted count.
	DeleteAllocationsByRoom(ctx context.Context, roomID primitive.ObjectID) (int64, error)

	// AllocationsByUser returns the allocation records naming the user.
	AllocationsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Allocation, error)

	// AllocationsByRoom returns the allocation records naming the room.
	AllocationsByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.Allocation, error)

	// OccupiedRooms returns every room currently marked occupied. Used by
	// the background sweep that repairs orphaned occupancy.
	OccupiedRooms(ctx context.Context) ([]models.Room, error)

	// AllAllocations returns every live allocation record. The unique
	// room_id index keeps this set no larger than the room count.
	AllAllocations(ctx context.Context) ([]models.Allocation, error)

	// DeleteAllocationByID removes a single allocation record and returns
	// the deleted count. Used by the sweep, which must not touch records
	// other than the one it judged stale.
	DeleteAllocationByID(ctx context.Context, id primitive.ObjectID) (int64, error)
}
