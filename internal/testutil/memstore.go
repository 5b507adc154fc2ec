// internal/testutil/memstore.go
package testutil

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dalemusser/roomhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrStoreDown is what MemStore returns from operations flagged to fail.
var ErrStoreDown = errors.New("memstore: simulated store failure")

// ErrDuplicateRoomKey models the unique room_id index on room_allocations:
// inserting a second record for the same room fails the way Mongo's
// duplicate-key error does.
var ErrDuplicateRoomKey = errors.New("memstore: duplicate key: room_id")

// MemStore is an in-memory allocation.Store. A single mutex makes every
// conditional update atomic, mirroring the per-document atomicity the Mongo
// store relies on, so concurrency tests exercise the same serialization the
// guard gets in production.
//
// The Fail* flags make individual operations return ErrStoreDown, which is
// how the compensation and inconsistency paths are driven in tests.
type MemStore struct {
	mu          sync.Mutex
	rooms       map[primitive.ObjectID]models.Room
	users       map[primitive.ObjectID]models.User
	allocations map[primitive.ObjectID]models.Allocation

	FailSetOccupied       bool
	FailSetFree           bool
	FailInsertAllocation  bool
	FailDeleteAllocations bool
	FailFindRoom          bool
	FailFindUser          bool
	FailAllocationQueries bool
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		rooms:       make(map[primitive.ObjectID]models.Room),
		users:       make(map[primitive.ObjectID]models.User),
		allocations: make(map[primitive.ObjectID]models.Allocation),
	}
}

// AddRoom inserts a free room and returns its id.
func (m *MemStore) AddRoom(name string) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := primitive.NewObjectID()
	now := time.Now().UTC()
	m.rooms[id] = models.Room{
		ID:             id,
		Name:           name,
		Capacity:       2,
		PricePerNight:  100,
		AvailableFrom:  now,
		AvailableTo:    now.AddDate(1, 0, 0),
		OccupancyState: models.OccupancyFree,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return id
}

// AddUser inserts a user with the given role and returns its id.
func (m *MemStore) AddUser(name, role string) primitive.ObjectID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := primitive.NewObjectID()
	now := time.Now().UTC()
	m.users[id] = models.User{
		ID:        id,
		Name:      name,
		Email:     name + "@example.com",
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return id
}

// Room returns a copy of the stored room and a found flag, for assertions.
func (m *MemStore) Room(id primitive.ObjectID) (models.Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	return r, ok
}

// AllocationCount returns the number of live allocation records.
func (m *MemStore) AllocationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.allocations)
}

// CheckInvariant verifies that every occupied room has exactly one
// allocation record naming the same occupant, and every free room has none.
// Returns nil when the cross-entity invariant holds.
func (m *MemStore) CheckInvariant() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	perRoom := make(map[primitive.ObjectID][]models.Allocation)
	for _, a := range m.allocations {
		perRoom[a.RoomID] = append(perRoom[a.RoomID], a)
	}

	for id, r := range m.rooms {
		recs := perRoom[id]
		if r.OccupancyState == models.OccupancyOccupied {
			if r.OccupantID == nil {
				return errors.New("occupied room has no occupant")
			}
			if len(recs) != 1 {
				return errors.New("occupied room does not have exactly one allocation record")
			}
			if recs[0].UserID != *r.OccupantID {
				return errors.New("allocation record names a different occupant")
			}
		} else {
			if r.OccupantID != nil {
				return errors.New("free room still names an occupant")
			}
			if len(recs) != 0 {
				return errors.New("free room has live allocation records")
			}
		}
	}
	return nil
}

// allocation.Store implementation

func (m *MemStore) FindRoom(_ context.Context, roomID primitive.ObjectID) (*models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFindRoom {
		return nil, ErrStoreDown
	}
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *MemStore) SetOccupied(_ context.Context, roomID, userID primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSetOccupied {
		return 0, ErrStoreDown
	}
	r, ok := m.rooms[roomID]
	if !ok || r.OccupancyState != models.OccupancyFree {
		return 0, nil
	}
	r.OccupancyState = models.OccupancyOccupied
	r.OccupantID = &userID
	r.UpdatedAt = time.Now().UTC()
	m.rooms[roomID] = r
	return 1, nil
}

func (m *MemStore) SetFree(_ context.Context, roomID primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSetFree {
		return 0, ErrStoreDown
	}
	r, ok := m.rooms[roomID]
	if !ok || r.OccupancyState != models.OccupancyOccupied {
		return 0, nil
	}
	r.OccupancyState = models.OccupancyFree
	r.OccupantID = nil
	r.UpdatedAt = time.Now().UTC()
	m.rooms[roomID] = r
	return 1, nil
}

func (m *MemStore) FindUser(_ context.Context, userID primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFindUser {
		return nil, ErrStoreDown
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemStore) InsertAllocation(_ context.Context, rec models.Allocation) (primitive.ObjectID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailInsertAllocation {
		return primitive.NilObjectID, ErrStoreDown
	}
	// The room_allocations collection carries a unique index on room_id.
	for _, a := range m.allocations {
		if a.RoomID == rec.RoomID {
			return primitive.NilObjectID, ErrDuplicateRoomKey
		}
	}
	rec.ID = primitive.NewObjectID()
	m.allocations[rec.ID] = rec
	return rec.ID, nil
}

func (m *MemStore) DeleteAllocationsByRoom(_ context.Context, roomID primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDeleteAllocations {
		return 0, ErrStoreDown
	}
	var deleted int64
	for id, a := range m.allocations {
		if a.RoomID == roomID {
			delete(m.allocations, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemStore) AllocationsByUser(_ context.Context, userID primitive.ObjectID) ([]models.Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAllocationQueries {
		return nil, ErrStoreDown
	}
	var out []models.Allocation
	for _, a := range m.allocations {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MemStore) OccupiedRooms(_ context.Context) ([]models.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFindRoom {
		return nil, ErrStoreDown
	}
	var out []models.Room
	for _, r := range m.rooms {
		if r.OccupancyState == models.OccupancyOccupied {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemStore) AllocationsByRoom(_ context.Context, roomID primitive.ObjectID) ([]models.Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAllocationQueries {
		return nil, ErrStoreDown
	}
	var out []models.Allocation
	for _, a := range m.allocations {
		if a.RoomID == roomID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *MemStore) AllAllocations(_ context.Context) ([]models.Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAllocationQueries {
		return nil, ErrStoreDown
	}
	var out []models.Allocation
	for _, a := range m.allocations {
		out = append(out, a)
	}
	return out, nil
}

func (m *MemStore) DeleteAllocationByID(_ context.Context, id primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailDeleteAllocations {
		return 0, ErrStoreDown
	}
	if _, ok := m.allocations[id]; !ok {
		return 0, nil
	}
	delete(m.allocations, id)
	return 1, nil
}
