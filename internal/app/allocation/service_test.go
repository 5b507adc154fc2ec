package allocation_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dalemusser/roomhub/internal/app/allocation"
	"github.com/dalemusser/roomhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newService(store *testutil.MemStore) *allocation.Service {
	return allocation.NewService(store, zap.NewNop())
}

// checkInvariant fails the test if the occupancy/allocation invariant does
// not hold. Called after every operation in these tests.
func checkInvariant(t *testing.T, store *testutil.MemStore) {
	t.Helper()
	if err := store.CheckInvariant(); err != nil {
		t.Fatalf("invariant violated: %v", err)
	}
}

func TestAllocate_Success(t *testing.T) {
	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	userID := store.AddUser("alice", "user")
	svc := newService(store)

	rec, err := svc.Allocate(context.Background(), "user", userID.Hex(), roomID.Hex())
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if rec.ID.IsZero() {
		t.Error("allocation id not assigned")
	}
	if rec.Reference == "" {
		t.Error("booking reference not assigned")
	}
	if rec.UserID != userID || rec.RoomID != roomID {
		t.Errorf("record ids wrong: %+v", rec)
	}
	checkInvariant(t, store)
}

func TestAllocate_AdminCallerForbidden(t *testing.T) {
	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	userID := store.AddUser("alice", "user")
	svc := newService(store)

	_, err := svc.Allocate(context.Background(), "admin", userID.Hex(), roomID.Hex())
	if !errors.Is(err, allocation.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
	// Policy errors are detected before any store mutation.
	room, _ := store.Room(roomID)
	if room.Occupied() {
		t.Error("room mutated by rejected call")
	}
	checkInvariant(t, store)
}

func TestAllocate_AdminTargetForbidden(t *testing.T) {
	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	adminID := store.AddUser("root", "admin")
	svc := newService(store)

	_, err := svc.Allocate(context.Background(), "user", adminID.Hex(), roomID.Hex())
	if !errors.Is(err, allocation.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
	checkInvariant(t, store)
}

func TestAllocate_InvalidIDs(t *testing.T) {
	store := testutil.NewMemStore()
	svc := newService(store)

	tests := []struct{ user, room string }{
		{"", "507f1f77bcf86cd799439011"},
		{"507f1f77bcf86cd799439011", ""},
		{"nothex", "507f1f77bcf86cd799439011"},
		{"507f1f77bcf86cd799439011", "nothex"},
	}
	for _, tt := range tests {
		_, err := svc.Allocate(context.Background(), "user", tt.user, tt.room)
		if !errors.Is(err, allocation.ErrInvalidArgument) {
			t.Errorf("Allocate(%q, %q) err = %v, want ErrInvalidArgument", tt.user, tt.room, err)
		}
	}
}

func TestAllocate_UserNotFound(t *testing.T) {
	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	svc := newService(store)

	_, err := svc.Allocate(context.Background(), "user", primitive.NewObjectID().Hex(), roomID.Hex())
	if !errors.Is(err, allocation.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestAllocate_RoomNotFound(t *testing.T) {
	store := testutil.NewMemStore()
	userID := store.AddUser("alice", "user")
	svc := newService(store)

	_, err := svc.Allocate(context.Background(), "user", userID.Hex(), primitive.NewObjectID().Hex())
	if !errors.Is(err, allocation.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// Retrying a completed allocate must not double-allocate: the second call
// observes the occupied room and reports a conflict.
func TestAllocate_SecondCallConflicts(t *testing.T) {
	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	userID := store.AddUser("alice", "user")
	svc := newService(store)

	if _, err := svc.Allocate(context.Background(), "user", userID.Hex(), roomID.Hex()); err != nil {
		t.Fatalf("first Allocate: %v", err)
	}
	_, err := svc.Allocate(context.Background(), "user", userID.Hex(), roomID.Hex())
	if !errors.Is(err, allocation.ErrConflict) {
		t.Errorf("second Allocate err = %v, want ErrConflict", err)
	}
	if store.AllocationCount() != 1 {
		t.Errorf("allocation records = %d, want 1", store.AllocationCount())
	}
	checkInvariant(t, store)
}

// When the history insert fails, the occupancy flip is compensated and the
// room ends up free again.
func TestAllocate_InsertFailureCompensated(t *testing.T) {
	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	userID := store.AddUser("alice", "user")
	store.FailInsertAllocation = true
	svc := newService(store)

	_, err := svc.Allocate(context.Background(), "user", userID.Hex(), roomID.Hex())
	if !errors.Is(err, allocation.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	room, _ := store.Room(roomID)
	if room.Occupied() {
		t.Error("compensation did not free the room")
	}
	checkInvariant(t, store)

	// The call is retryable from the top once the store recovers.
	store.FailInsertAllocation = false
	if _, err := svc.Allocate(context.Background(), "user", userID.Hex(), roomID.Hex()); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
	checkInvariant(t, store)
}

// When the compensation itself keeps failing, the call must surface the
// inconsistency distinctly instead of a generic failure.
func TestAllocate_CompensationFailureInconsistent(t *testing.T) {
	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	userID := store.AddUser("alice", "user")
	store.FailInsertAllocation = true
	store.FailSetFree = true
	svc := newService(store)

	_, err := svc.Allocate(context.Background(), "user", userID.Hex(), roomID.Hex())
	if !errors.Is(err, allocation.ErrInconsistent) {
		t.Errorf("err = %v, want ErrInconsistent", err)
	}
	if errors.Is(err, allocation.ErrUnavailable) {
		t.Error("inconsistency must not be downgraded to ErrUnavailable")
	}
}

func TestDeallocate_RoundTrip(t *testing.T) {
	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	userID := store.AddUser("alice", "user")
	svc := newService(store)

	if _, err := svc.Allocate(context.Background(), "user", userID.Hex(), roomID.Hex()); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := svc.Deallocate(context.Background(), "user", roomID.Hex()); err != nil {
		t.Fatalf("Deallocate: %v", err)
	}

	room, _ := store.Room(roomID)
	if room.Occupied() || room.OccupantID != nil {
		t.Errorf("room not returned to free: %+v", room)
	}
	if store.AllocationCount() != 0 {
		t.Errorf("live allocation records = %d, want 0", store.AllocationCount())
	}
	checkInvariant(t, store)

	// The room can be taken again.
	other := store.AddUser("bob", "user")
	if _, err := svc.Allocate(context.Background(), "user", other.Hex(), roomID.Hex()); err != nil {
		t.Fatalf("re-Allocate: %v", err)
	}
	checkInvariant(t, store)
}

func TestDeallocate_AdminForbidden(t *testing.T) {
	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	svc := newService(store)

	err := svc.Deallocate(context.Background(), "admin", roomID.Hex())
	if !errors.Is(err, allocation.ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestDeallocate_FreeRoomNotFound(t *testing.T) {
	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	svc := newService(store)

	err := svc.Deallocate(context.Background(), "user", roomID.Hex())
	if !errors.Is(err, allocation.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeallocate_MissingRoomNotFound(t *testing.T) {
	store := testutil.NewMemStore()
	svc := newService(store)

	err := svc.Deallocate(context.Background(), "user", primitive.NewObjectID().Hex())
	if !errors.Is(err, allocation.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeallocate_InvalidID(t *testing.T) {
	store := testutil.NewMemStore()
	svc := newService(store)

	err := svc.Deallocate(context.Background(), "user", "nothex")
	if !errors.Is(err, allocation.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
}

// A record-cleanup failure after the release succeeded is reported as the
// inconsistency, but the room stays free (the cleanup is not reversed).
func TestDeallocate_CleanupFailureInconsistent(t *testing.T) {
	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	userID := store.AddUser("alice", "user")
	svc := newService(store)

	if _, err := svc.Allocate(context.Background(), "user", userID.Hex(), roomID.Hex()); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	store.FailDeleteAllocations = true

	err := svc.Deallocate(context.Background(), "user", roomID.Hex())
	if !errors.Is(err, allocation.ErrInconsistent) {
		t.Errorf("err = %v, want ErrInconsistent", err)
	}
	room, _ := store.Room(roomID)
	if room.Occupied() {
		t.Error("room should remain free despite cleanup failure")
	}
}

func TestAllocationsByUser(t *testing.T) {
	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	userID := store.AddUser("alice", "user")
	svc := newService(store)

	if _, err := svc.AllocationsByUser(context.Background(), "nothex"); !errors.Is(err, allocation.ErrInvalidArgument) {
		t.Errorf("invalid id err = %v, want ErrInvalidArgument", err)
	}

	recs, err := svc.AllocationsByUser(context.Background(), userID.Hex())
	if err != nil {
		t.Fatalf("AllocationsByUser: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("expected no records before allocate, got %d", len(recs))
	}

	if _, err := svc.Allocate(context.Background(), "user", userID.Hex(), roomID.Hex()); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	recs, err = svc.AllocationsByUser(context.Background(), userID.Hex())
	if err != nil {
		t.Fatalf("AllocationsByUser: %v", err)
	}
	if len(recs) != 1 || recs[0].RoomID != roomID {
		t.Errorf("records = %+v, want one for room %s", recs, roomID.Hex())
	}
}

func TestAllocationsByRoom(t *testing.T) {
	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	userID := store.AddUser("alice", "user")
	svc := newService(store)

	if _, err := svc.AllocationsByRoom(context.Background(), "x"); !errors.Is(err, allocation.ErrInvalidArgument) {
		t.Errorf("invalid id err = %v, want ErrInvalidArgument", err)
	}

	if _, err := svc.Allocate(context.Background(), "user", userID.Hex(), roomID.Hex()); err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	recs, err := svc.AllocationsByRoom(context.Background(), roomID.Hex())
	if err != nil {
		t.Fatalf("AllocationsByRoom: %v", err)
	}
	if len(recs) != 1 || recs[0].UserID != userID {
		t.Errorf("records = %+v, want one for user %s", recs, userID.Hex())
	}
}

// N concurrent allocates for the same room with distinct users: exactly one
// success, the rest conflicts, and the invariant holds afterwards.
func TestAllocate_Concurrent(t *testing.T) {
	const n = 50

	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	users := make([]primitive.ObjectID, n)
	for i := range users {
		users[i] = store.AddUser("user", "user")
	}
	svc := newService(store)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(uid primitive.ObjectID) {
			defer wg.Done()
			_, err := svc.Allocate(context.Background(), "user", uid.Hex(), roomID.Hex())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, allocation.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(users[i])
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}
	if conflicts != n-1 {
		t.Errorf("conflicts = %d, want %d", conflicts, n-1)
	}
	if store.AllocationCount() != 1 {
		t.Errorf("allocation records = %d, want 1", store.AllocationCount())
	}
	checkInvariant(t, store)

	// The winning record must name the room's occupant.
	room, _ := store.Room(roomID)
	if room.OccupantID == nil {
		t.Fatal("no occupant after concurrent allocate")
	}
	recs, err := svc.AllocationsByRoom(context.Background(), roomID.Hex())
	if err != nil || len(recs) != 1 || recs[0].UserID != *room.OccupantID {
		t.Errorf("winner mismatch: records=%+v occupant=%v err=%v", recs, room.OccupantID, err)
	}
}
