// internal/app/allocation/service.go
package allocation

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/roomhub/internal/app/system/normalize"
	"github.com/dalemusser/roomhub/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// compensationAttempts bounds how many times a failed allocate retries the
// compensating release before declaring the state inconsistent.
const compensationAttempts = 3

// Service validates allocation requests, applies the role policy, and keeps
// the allocation history in step with the Guard's occupancy transitions.
//
// The admin exclusion is enforced here as well as at the API surface: the
// service may gain callers that bypass the HTTP layer, and the policy must
// hold for them too.
type Service struct {
	store Store
	guard *Guard
	log   *zap.Logger
}

// NewService builds a Service (and its Guard) over the given store.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, guard: NewGuard(store), log: logger}
}

// Allocate binds user userID to room roomID and returns the new allocation
// record. callerRole is the authenticated caller's role.
//
// If the occupancy flip succeeds but the history insert fails, the flip is
// compensated by releasing the room; only when that also fails (after
// compensationAttempts tries) does the call report ErrInconsistent.
func (s *Service) Allocate(ctx context.Context, callerRole, userID, roomID string) (*models.Allocation, error) {
	if normalize.Role(callerRole) == models.RoleAdmin {
		return nil, fmt.Errorf("%w: admin users cannot allocate rooms", ErrForbidden)
	}

	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: user id %q", ErrInvalidArgument, userID)
	}
	rid, err := primitive.ObjectIDFromHex(roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: room id %q", ErrInvalidArgument, roomID)
	}

	user, err := s.store.FindUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch user %s: %v", ErrUnavailable, userID, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	// Advisory check, deliberately not atomic with the occupy: a role
	// change that lands between this read and the flip is tolerated.
	if user.Role == models.RoleAdmin {
		return nil, fmt.Errorf("%w: admin users cannot be allocated rooms", ErrForbidden)
	}

	outcome, err := s.guard.TryOccupy(ctx, rid, uid)
	if err != nil {
		return nil, err
	}
	switch outcome {
	case AlreadyOccupied:
		return nil, fmt.Errorf("%w: room %s", ErrConflict, roomID)
	case OccupyRoomNotFound:
		return nil, fmt.Errorf("%w: room %s", ErrNotFound, roomID)
	}

	rec := models.Allocation{
		UserID:      uid,
		RoomID:      rid,
		Reference:   uuid.NewString(),
		AllocatedAt: time.Now().UTC(),
	}
	id, err := s.store.InsertAllocation(ctx, rec)
	if err != nil {
		return nil, s.compensateOccupy(ctx, rid, uid, err)
	}
	rec.ID = id

	s.log.Info("room allocated",
		zap.String("room_id", roomID),
		zap.String("user_id", userID),
		zap.String("allocation_id", id.Hex()))
	return &rec, nil
}

// compensateOccupy undoes a successful occupy after the history insert
// failed, so the room is not left marked occupied with no record backing it.
// Any error-free release counts: NotOccupied or a missing room mean some
// concurrent actor already restored the invariant.
func (s *Service) compensateOccupy(ctx context.Context, roomID, userID primitive.ObjectID, insertErr error) error {
	for attempt := 1; attempt <= compensationAttempts; attempt++ {
		if _, err := s.guard.Release(ctx, roomID); err == nil {
			return fmt.Errorf("%w: insert allocation record: %v", ErrUnavailable, insertErr)
		} else if attempt < compensationAttempts {
			s.log.Warn("compensating release failed, retrying",
				zap.String("room_id", roomID.Hex()),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
	}

	s.log.Error("allocation state inconsistent: room occupied with no allocation record",
		zap.String("room_id", roomID.Hex()),
		zap.String("user_id", userID.Hex()),
		zap.NamedError("insert_error", insertErr))
	return fmt.Errorf("%w: room %s occupied with no allocation record", ErrInconsistent, roomID.Hex())
}

// Deallocate frees room roomID and deletes its allocation records.
//
// A delete failure after a successful release is reported as ErrInconsistent
// but never reversed: a stale history record does not violate the occupancy
// invariant, so operators only need to clean it up, not reconcile state.
func (s *Service) Deallocate(ctx context.Context, callerRole, roomID string) error {
	if normalize.Role(callerRole) == models.RoleAdmin {
		return fmt.Errorf("%w: admin users cannot deallocate rooms", ErrForbidden)
	}

	rid, err := primitive.ObjectIDFromHex(roomID)
	if err != nil {
		return fmt.Errorf("%w: room id %q", ErrInvalidArgument, roomID)
	}

	outcome, err := s.guard.Release(ctx, rid)
	if err != nil {
		return err
	}
	switch outcome {
	case NotOccupied:
		return fmt.Errorf("%w: room %s is not allocated", ErrNotFound, roomID)
	case ReleaseRoomNotFound:
		return fmt.Errorf("%w: room %s", ErrNotFound, roomID)
	}

	if _, err := s.store.DeleteAllocationsByRoom(ctx, rid); err != nil {
		s.log.Error("allocation state inconsistent: stale allocation records remain after release",
			zap.String("room_id", roomID),
			zap.Error(err))
		return fmt.Errorf("%w: room %s freed but stale allocation records remain", ErrInconsistent, roomID)
	}

	s.log.Info("room deallocated", zap.String("room_id", roomID))
	return nil
}

// AllocationsByUser returns the allocation records naming the user. Reads
// are advisory: they are not serialized against concurrent writes.
func (s *Service) AllocationsByUser(ctx context.Context, userID string) ([]models.Allocation, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, fmt.Errorf("%w: user id %q", ErrInvalidArgument, userID)
	}
	recs, err := s.store.AllocationsByUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("%w: list allocations for user %s: %v", ErrUnavailable, userID, err)
	}
	return recs, nil
}

// AllocationsByRoom returns the allocation records naming the room.
func (s *Service) AllocationsByRoom(ctx context.Context, roomID string) ([]models.Allocation, error) {
	rid, err := primitive.ObjectIDFromHex(roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: room id %q", ErrInvalidArgument, roomID)
	}
	recs, err := s.store.AllocationsByRoom(ctx, rid)
	if err != nil {
		return nil, fmt.Errorf("%w: list allocations for room %s: %v", ErrUnavailable, roomID, err)
	}
	return recs, nil
}
