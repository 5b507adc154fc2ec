// internal/domain/models/allocation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Allocation is the history record written when a user takes a room and
// deleted when the room is deallocated. While a room is occupied exactly one
// allocation references it (the room_allocations collection carries a unique
// index on room_id as a backstop).
type Allocation struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"allocationId"`
	UserID      primitive.ObjectID `bson:"user_id" json:"userId"`
	RoomID      primitive.ObjectID `bson:"room_id" json:"roomId"`
	Reference   string             `bson:"reference" json:"reference"` // uuid shown to clients
	AllocatedAt time.Time          `bson:"allocated_at" json:"allocatedAt"`
}
