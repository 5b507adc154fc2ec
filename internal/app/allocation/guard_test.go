package allocation_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dalemusser/roomhub/internal/app/allocation"
	"github.com/dalemusser/roomhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTryOccupy_FreeRoom(t *testing.T) {
	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	userID := store.AddUser("alice", "user")
	guard := allocation.NewGuard(store)

	outcome, err := guard.TryOccupy(context.Background(), roomID, userID)
	if err != nil {
		t.Fatalf("TryOccupy: %v", err)
	}
	if outcome != allocation.Occupied {
		t.Fatalf("outcome = %v, want Occupied", outcome)
	}

	room, _ := store.Room(roomID)
	if !room.Occupied() || room.OccupantID == nil || *room.OccupantID != userID {
		t.Errorf("room not marked occupied by %s: %+v", userID.Hex(), room)
	}
}

func TestTryOccupy_AlreadyOccupied(t *testing.T) {
	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	first := store.AddUser("alice", "user")
	second := store.AddUser("bob", "user")
	guard := allocation.NewGuard(store)

	if _, err := guard.TryOccupy(context.Background(), roomID, first); err != nil {
		t.Fatalf("first TryOccupy: %v", err)
	}
	outcome, err := guard.TryOccupy(context.Background(), roomID, second)
	if err != nil {
		t.Fatalf("second TryOccupy: %v", err)
	}
	if outcome != allocation.AlreadyOccupied {
		t.Errorf("outcome = %v, want AlreadyOccupied", outcome)
	}

	// The first occupant must still hold the room.
	room, _ := store.Room(roomID)
	if room.OccupantID == nil || *room.OccupantID != first {
		t.Errorf("occupant changed: %+v", room)
	}
}

func TestTryOccupy_RoomNotFound(t *testing.T) {
	store := testutil.NewMemStore()
	userID := store.AddUser("alice", "user")
	guard := allocation.NewGuard(store)

	outcome, err := guard.TryOccupy(context.Background(), primitive.NewObjectID(), userID)
	if err != nil {
		t.Fatalf("TryOccupy: %v", err)
	}
	if outcome != allocation.OccupyRoomNotFound {
		t.Errorf("outcome = %v, want OccupyRoomNotFound", outcome)
	}
}

func TestTryOccupy_StoreFailure(t *testing.T) {
	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	userID := store.AddUser("alice", "user")
	store.FailSetOccupied = true
	guard := allocation.NewGuard(store)

	_, err := guard.TryOccupy(context.Background(), roomID, userID)
	if !errors.Is(err, allocation.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestRelease_Occupied(t *testing.T) {
	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	userID := store.AddUser("alice", "user")
	guard := allocation.NewGuard(store)

	if _, err := guard.TryOccupy(context.Background(), roomID, userID); err != nil {
		t.Fatalf("TryOccupy: %v", err)
	}
	outcome, err := guard.Release(context.Background(), roomID)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if outcome != allocation.Freed {
		t.Fatalf("outcome = %v, want Freed", outcome)
	}

	room, _ := store.Room(roomID)
	if room.Occupied() || room.OccupantID != nil {
		t.Errorf("room not freed: %+v", room)
	}
}

func TestRelease_NotOccupied(t *testing.T) {
	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	guard := allocation.NewGuard(store)

	outcome, err := guard.Release(context.Background(), roomID)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if outcome != allocation.NotOccupied {
		t.Errorf("outcome = %v, want NotOccupied", outcome)
	}
}

func TestRelease_RoomNotFound(t *testing.T) {
	store := testutil.NewMemStore()
	guard := allocation.NewGuard(store)

	outcome, err := guard.Release(context.Background(), primitive.NewObjectID())
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if outcome != allocation.ReleaseRoomNotFound {
		t.Errorf("outcome = %v, want ReleaseRoomNotFound", outcome)
	}
}

// Launching many concurrent occupies for one room must yield exactly one
// winner, with the rest observing AlreadyOccupied.
func TestTryOccupy_Concurrent(t *testing.T) {
	const n = 50

	store := testutil.NewMemStore()
	roomID := store.AddRoom("101")
	users := make([]primitive.ObjectID, n)
	for i := range users {
		users[i] = store.AddUser("user", "user")
	}
	guard := allocation.NewGuard(store)

	outcomes := make([]allocation.OccupyOutcome, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcome, err := guard.TryOccupy(context.Background(), roomID, users[i])
			if err != nil {
				t.Errorf("TryOccupy[%d]: %v", i, err)
				return
			}
			outcomes[i] = outcome
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, o := range outcomes {
		if o == allocation.Occupied {
			wins++
		} else if o != allocation.AlreadyOccupied {
			t.Errorf("unexpected outcome %v", o)
		}
	}
	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
}
