// internal/app/features/allocations/handler.go
package allocations

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/roomhub/internal/app/allocation"
	"github.com/dalemusser/roomhub/internal/app/features/shared"
	"github.com/dalemusser/roomhub/internal/app/system/authz"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler is the feature-level entry point for room allocations.
type Handler struct {
	Svc *allocation.Service
	Log *zap.Logger
}

// NewHandler constructs an allocations handler bound to the service and logger.
func NewHandler(svc *allocation.Service, logger *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: logger}
}

// allocateRequest is the JSON body for POST /allocate.
type allocateRequest struct {
	UserID string `json:"userId"`
	RoomID string `json:"roomId"`
}

// HandleAllocate handles POST /allocate.
//
// On success: 201 and the created allocation record, including the
// booking reference the caller can quote later.
func (h *Handler) HandleAllocate(w http.ResponseWriter, r *http.Request) {
	var req allocateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	role, _, _, _ := authz.UserCtx(r)

	alloc, err := h.Svc.Allocate(r.Context(), role, req.UserID, req.RoomID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	shared.JSON(w, http.StatusCreated, alloc)
}

// ServeByUser handles GET /allocations/user/{userId}.
func (h *Handler) ServeByUser(w http.ResponseWriter, r *http.Request) {
	allocs, err := h.Svc.AllocationsByUser(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	shared.JSON(w, http.StatusOK, allocs)
}

// ServeByRoom handles GET /allocations/room/{roomId}.
func (h *Handler) ServeByRoom(w http.ResponseWriter, r *http.Request) {
	allocs, err := h.Svc.AllocationsByRoom(r.Context(), chi.URLParam(r, "roomId"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	shared.JSON(w, http.StatusOK, allocs)
}

// HandleDeallocate handles DELETE /deallocate/{roomId}.
func (h *Handler) HandleDeallocate(w http.ResponseWriter, r *http.Request) {
	role, _, _, _ := authz.UserCtx(r)

	if err := h.Svc.Deallocate(r.Context(), role, chi.URLParam(r, "roomId")); err != nil {
		h.writeServiceError(w, err)
		return
	}
	shared.JSON(w, http.StatusOK, map[string]string{"message": "room deallocated"})
}

// writeServiceError maps service errors onto HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, allocation.ErrInvalidArgument):
		shared.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, allocation.ErrForbidden):
		shared.Error(w, http.StatusForbidden, err.Error())
	case errors.Is(err, allocation.ErrNotFound):
		shared.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, allocation.ErrConflict):
		shared.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, allocation.ErrUnavailable):
		shared.Error(w, http.StatusServiceUnavailable, "storage temporarily unavailable, retry the request")
	case errors.Is(err, allocation.ErrInconsistent):
		// Inconsistent state needs operator attention; the log line is the
		// signal the cleanup job keys on.
		h.Log.Error("allocation state inconsistent", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "internal error")
	default:
		h.Log.Error("allocation request failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "internal error")
	}
}
