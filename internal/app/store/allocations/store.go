// Package allocstore is the Mongo implementation of allocation.Store.
//
// It spans the three collections the allocation core touches: rooms (for
// the conditional occupancy writes), room_allocations (the history
// records), and users (the role lookup). Every call runs under a bounded
// timeout so the core never blocks indefinitely on the database.
package allocstore

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/roomhub/internal/app/system/timeouts"
	"github.com/dalemusser/roomhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store implements allocation.Store against MongoDB.
type Store struct {
	rooms       *mongo.Collection
	allocations *mongo.Collection
	users       *mongo.Collection
}

// New creates a Store over the given database.
func New(db *mongo.Database) *Store {
	return &Store{
		rooms:       db.Collection("rooms"),
		allocations: db.Collection("room_allocations"),
		users:       db.Collection("users"),
	}
}

// FindRoom returns the room, or nil if no such room exists.
func (s *Store) FindRoom(ctx context.Context, roomID primitive.ObjectID) (*models.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	var room models.Room
	err := s.rooms.FindOne(ctx, bson.M{"_id": roomID}).Decode(&room)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// SetOccupied is the guard's forward transition: one conditional update
// that matches the room only while it is free. Mongo's per-document
// atomicity serializes concurrent callers; the matched count says whether
// this caller won.
func (s *Store) SetOccupied(ctx context.Context, roomID, userID primitive.ObjectID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	res, err := s.rooms.UpdateOne(ctx,
		bson.M{"_id": roomID, "occupancy_state": models.OccupancyFree},
		bson.M{"$set": bson.M{
			"occupancy_state": models.OccupancyOccupied,
			"occupant_id":     userID,
			"updated_at":      time.Now().UTC(),
		}},
	)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// SetFree is the inverse transition, matching only while occupied.
func (s *Store) SetFree(ctx context.Context, roomID primitive.ObjectID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	res, err := s.rooms.UpdateOne(ctx,
		bson.M{"_id": roomID, "occupancy_state": models.OccupancyOccupied},
		bson.M{
			"$set":   bson.M{"occupancy_state": models.OccupancyFree, "updated_at": time.Now().UTC()},
			"$unset": bson.M{"occupant_id": ""},
		},
	)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

// FindUser returns the user, or nil if no such user exists.
func (s *Store) FindUser(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	var user models.User
	err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// InsertAllocation appends a history record and returns its id.
func (s *Store) InsertAllocation(ctx context.Context, rec models.Allocation) (primitive.ObjectID, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	rec.ID = primitive.NewObjectID()
	res, err := s.allocations.InsertOne(ctx, rec)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return id, nil
}

// DeleteAllocationsByRoom removes every record for the room. DeleteMany
// rather than DeleteOne: if a stale record ever survived a past cleanup
// failure, the next deallocation sweeps it too.
func (s *Store) DeleteAllocationsByRoom(ctx context.Context, roomID primitive.ObjectID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	res, err := s.allocations.DeleteMany(ctx, bson.M{"room_id": roomID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// AllocationsByUser returns the records naming the user.
func (s *Store) AllocationsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Allocation, error) {
	return s.findAllocations(ctx, bson.M{"user_id": userID})
}

// AllocationsByRoom returns the records naming the room.
func (s *Store) AllocationsByRoom(ctx context.Context, roomID primitive.ObjectID) ([]models.Allocation, error) {
	return s.findAllocations(ctx, bson.M{"room_id": roomID})
}

// OccupiedRooms returns every room currently marked occupied.
func (s *Store) OccupiedRooms(ctx context.Context) ([]models.Room, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()

	cur, err := s.rooms.Find(ctx, bson.M{"occupancy_state": models.OccupancyOccupied})
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

// AllAllocations returns every live allocation record.
func (s *Store) AllAllocations(ctx context.Context) ([]models.Allocation, error) {
	return s.findAllocations(ctx, bson.M{})
}

// DeleteAllocationByID removes one allocation record.
func (s *Store) DeleteAllocationByID(ctx context.Context, id primitive.ObjectID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	res, err := s.allocations.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) findAllocations(ctx context.Context, filter bson.M) ([]models.Allocation, error) {
	ctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()

	cur, err := s.allocations.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var recs []models.Allocation
	if err := cur.All(ctx, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}
