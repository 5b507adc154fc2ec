// internal/domain/models/room.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Occupancy states for a room. A room is created free; the only writer of
// the occupancy pair is the allocation guard.
const (
	OccupancyFree     = "free"
	OccupancyOccupied = "occupied"
)

// Room represents a bookable room.
//
// The attribute fields (name, description, capacity, services, price and
// availability window) are ordinary CRUD data owned by the rooms feature.
// OccupancyState and OccupantID are owned by the allocation guard: they are
// never written by room updates, and OccupantID is set iff OccupancyState
// is "occupied".
type Room struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"` // sanitized HTML
	Capacity      int                `bson:"capacity" json:"capacity"`
	Services      []string           `bson:"services,omitempty" json:"services,omitempty"`
	PricePerNight float64            `bson:"price_per_night" json:"pricePerNight"`
	AvailableFrom time.Time          `bson:"available_from" json:"availableFrom"`
	AvailableTo   time.Time          `bson:"available_to" json:"availableTo"`

	OccupancyState string              `bson:"occupancy_state" json:"occupancyState"` // free | occupied
	OccupantID     *primitive.ObjectID `bson:"occupant_id,omitempty" json:"occupantId,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// Occupied reports whether the room currently has an occupant.
func (r *Room) Occupied() bool {
	return r.OccupancyState == OccupancyOccupied
}
