// Package roomstore persists room attribute data.
//
// Occupancy is deliberately out of reach here: updates are built from an
// allowlist of attribute fields, so nothing in this package can touch
// occupancy_state or occupant_id. Those belong to the allocation guard.
package roomstore

import (
	"context"
	"time"

	"github.com/dalemusser/roomhub/internal/app/system/timeouts"
	"github.com/dalemusser/roomhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store provides room CRUD over the rooms collection.
type Store struct {
	c *mongo.Collection
}

// New creates a Store over the given database.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("rooms")}
}

// Insert creates a room. New rooms are always free; whatever occupancy the
// caller set on the struct is overwritten.
func (s *Store) Insert(ctx context.Context, room models.Room) (primitive.ObjectID, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	now := time.Now().UTC()
	room.ID = primitive.NewObjectID()
	room.OccupancyState = models.OccupancyFree
	room.OccupantID = nil
	room.CreatedAt = now
	room.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, room); err != nil {
		return primitive.NilObjectID, err
	}
	return room.ID, nil
}

// FindByID returns the room, or nil if no such room exists.
func (s *Store) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	var room models.Room
	err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&room)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// List returns rooms sorted by name, up to limit (0 means a sane default).
func (s *Store) List(ctx context.Context, limit int64) ([]models.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()

	if limit <= 0 {
		limit = 100
	}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}}).SetLimit(limit)
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rooms []models.Room
	if err := cur.All(ctx, &rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

// Update holds the attribute fields a room update may change.
type Update struct {
	Name          string
	Description   string
	Capacity      int
	Services      []string
	PricePerNight float64
	AvailableFrom time.Time
	AvailableTo   time.Time
}

// UpdateAttributes replaces the room's attribute fields. Returns false if
// the room does not exist.
func (s *Store) UpdateAttributes(ctx context.Context, id primitive.ObjectID, upd Update) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	set := bson.M{
		"name":            upd.Name,
		"description":     upd.Description,
		"capacity":        upd.Capacity,
		"services":        upd.Services,
		"price_per_night": upd.PricePerNight,
		"available_from":  upd.AvailableFrom,
		"available_to":    upd.AvailableTo,
		"updated_at":      time.Now().UTC(),
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

// DeleteFree removes the room only while it is free, so an occupied room
// can never vanish out from under its allocation record. Returns false if
// nothing was deleted (missing or occupied; callers re-fetch to tell which).
func (s *Store) DeleteFree(ctx context.Context, id primitive.ObjectID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id, "occupancy_state": models.OccupancyFree})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}
