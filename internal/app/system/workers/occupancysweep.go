// internal/app/system/workers/occupancysweep.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/roomhub/internal/app/allocation"
	"github.com/dalemusser/roomhub/internal/app/system/timeouts"
	"github.com/dalemusser/roomhub/internal/domain/models"
	"go.uber.org/zap"
)

// OccupancySweep is a background worker that repairs the two states a crash
// or repeated storage failure can strand the data in:
//
//   - an occupied room with no allocation record, left when an allocation
//     was interrupted between its two writes and compensation also failed;
//   - an allocation record whose room is free or gone, left when a
//     deallocation freed the room but could not remove the record. The
//     unique room_id index makes such a record block every later allocation
//     of that room until it is removed.
//
// Both states are legal transients inside an in-flight request, so the
// sweep only touches rooms and records older than a grace window, judged
// by the room's updated_at stamp. The conditional writes make each repair
// safe even if a request lands between the scan and the fix.
type OccupancySweep struct {
	store    allocation.Store
	log      *zap.Logger
	interval time.Duration
	grace    time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewOccupancySweep creates a sweep worker that runs every interval and
// leaves state younger than grace alone.
func NewOccupancySweep(store allocation.Store, logger *zap.Logger, interval, grace time.Duration) *OccupancySweep {
	return &OccupancySweep{
		store:    store,
		log:      logger,
		interval: interval,
		grace:    grace,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (w *OccupancySweep) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("occupancy sweep worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("grace", w.grace))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *OccupancySweep) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("occupancy sweep worker stopped")
}

func (w *OccupancySweep) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), timeouts.Medium())
			if repaired, err := w.SweepOnce(ctx); err != nil {
				w.log.Error("occupancy sweep failed", zap.Error(err))
			} else if repaired > 0 {
				w.log.Warn("repaired orphaned occupancy", zap.Int("repairs", repaired))
			}
			cancel()
		}
	}
}

// SweepOnce runs one repair pass and returns the number of repairs made.
//
// Pass one frees occupied rooms with no allocation record. An allocation
// in flight sits in exactly that state between claiming the room and
// inserting its record, so rooms whose updated_at is within the grace
// window are skipped; SetOccupied stamps updated_at, which bounds how long
// the in-flight window can look stale. The conditional free cannot undo a
// new allocation because only a free room can be claimed.
//
// Pass two deletes allocation records whose room is missing or free. A
// record for a free room is a leftover from a deallocation that freed the
// room but failed the record delete, and it blocks the room's unique
// room_id slot from any later allocation. A room freed within the grace
// window is skipped since a deallocation may still be between its two
// writes. Deleting by record id is safe at any time: a record detached
// from an occupied room can never become live again, because a new
// allocation always inserts its own record.
func (w *OccupancySweep) SweepOnce(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	repaired := 0

	rooms, err := w.store.OccupiedRooms(ctx)
	if err != nil {
		return 0, err
	}
	for _, room := range rooms {
		if now.Sub(room.UpdatedAt) < w.grace {
			continue
		}
		recs, err := w.store.AllocationsByRoom(ctx, room.ID)
		if err != nil {
			return repaired, err
		}
		if len(recs) > 0 {
			continue
		}

		matched, err := w.store.SetFree(ctx, room.ID)
		if err != nil {
			return repaired, err
		}
		if matched > 0 {
			repaired++
			w.log.Warn("freed room with no allocation record",
				zap.String("room_id", room.ID.Hex()))
		}
	}

	recs, err := w.store.AllAllocations(ctx)
	if err != nil {
		return repaired, err
	}
	for _, rec := range recs {
		room, err := w.store.FindRoom(ctx, rec.RoomID)
		if err != nil {
			return repaired, err
		}
		if room != nil {
			if room.OccupancyState != models.OccupancyFree {
				continue
			}
			if now.Sub(room.UpdatedAt) < w.grace {
				continue
			}
		}

		deleted, err := w.store.DeleteAllocationByID(ctx, rec.ID)
		if err != nil {
			return repaired, err
		}
		if deleted > 0 {
			repaired++
			w.log.Warn("removed allocation record for unoccupied room",
				zap.String("room_id", rec.RoomID.Hex()),
				zap.String("allocation_id", rec.ID.Hex()))
		}
	}

	return repaired, nil
}
