// internal/app/features/rooms/handler.go
package rooms

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dalemusser/roomhub/internal/app/features/shared"
	"github.com/dalemusser/roomhub/internal/app/store/rooms"
	"github.com/dalemusser/roomhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/roomhub/internal/app/system/inputval"
	"github.com/dalemusser/roomhub/internal/app/system/normalize"
	"github.com/dalemusser/roomhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const listLimit = 100

// Store is the persistence surface the rooms feature needs.
type Store interface {
	Insert(ctx context.Context, room models.Room) (primitive.ObjectID, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Room, error)
	List(ctx context.Context, limit int64) ([]models.Room, error)
	UpdateAttributes(ctx context.Context, id primitive.ObjectID, upd roomstore.Update) (bool, error)
	DeleteFree(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// Handler is the feature-level entry point for room CRUD.
type Handler struct {
	Store Store
	Log   *zap.Logger
}

// NewHandler constructs a rooms handler bound to a store and logger.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{Store: store, Log: logger}
}

// roomRequest is the JSON body for create and update.
type roomRequest struct {
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Capacity      int        `json:"capacity"`
	Services      []string   `json:"services"`
	PricePerNight float64    `json:"pricePerNight"`
	AvailableFrom *time.Time `json:"availableFrom"`
	AvailableTo   *time.Time `json:"availableTo"`
}

// validate checks the request fields and returns a client-facing message
// for the first problem found. The description is sanitized in place.
func (req *roomRequest) validate() (string, bool) {
	req.Name = normalize.Name(req.Name)
	req.Description = htmlsanitize.Sanitize(req.Description)

	switch {
	case !inputval.IsValidName(req.Name):
		return "name must be between 3 and 50 characters", false
	case !inputval.IsValidDescription(req.Description):
		return "description must be at most 255 characters", false
	case !inputval.IsValidCapacity(req.Capacity):
		return "capacity must be at least 1", false
	case !inputval.IsValidPrice(req.PricePerNight):
		return "pricePerNight must not be negative", false
	case req.AvailableFrom == nil || req.AvailableTo == nil:
		return "availableFrom and availableTo are required", false
	case !inputval.IsValidAvailability(*req.AvailableFrom, *req.AvailableTo):
		return "availableFrom must be before availableTo", false
	}
	return "", true
}

// HandleCreate handles POST /rooms (admin only).
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg, ok := req.validate(); !ok {
		shared.Error(w, http.StatusBadRequest, msg)
		return
	}

	room := models.Room{
		Name:          req.Name,
		Description:   req.Description,
		Capacity:      req.Capacity,
		Services:      req.Services,
		PricePerNight: req.PricePerNight,
		AvailableFrom: *req.AvailableFrom,
		AvailableTo:   *req.AvailableTo,
	}
	id, err := h.Store.Insert(r.Context(), room)
	if err != nil {
		h.Log.Error("room create failed", zap.Error(err))
		shared.Error(w, http.StatusServiceUnavailable, "storage temporarily unavailable, retry the request")
		return
	}

	created, err := h.Store.FindByID(r.Context(), id)
	if err != nil || created == nil {
		// The insert went through; fall back to a minimal body.
		shared.JSON(w, http.StatusCreated, map[string]string{"id": id.Hex()})
		return
	}
	shared.JSON(w, http.StatusCreated, created)
}

// ServeList handles GET /rooms.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.Store.List(r.Context(), listLimit)
	if err != nil {
		h.Log.Error("room list failed", zap.Error(err))
		shared.Error(w, http.StatusServiceUnavailable, "storage temporarily unavailable, retry the request")
		return
	}
	if rooms == nil {
		rooms = []models.Room{}
	}
	shared.JSON(w, http.StatusOK, rooms)
}

// ServeView handles GET /rooms/{id}.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	room, err := h.Store.FindByID(r.Context(), id)
	if err != nil {
		h.Log.Error("room lookup failed", zap.Error(err))
		shared.Error(w, http.StatusServiceUnavailable, "storage temporarily unavailable, retry the request")
		return
	}
	if room == nil {
		shared.Error(w, http.StatusNotFound, "room not found")
		return
	}
	shared.JSON(w, http.StatusOK, room)
}

// HandleUpdate handles PUT /rooms/{id} (admin only). Only attribute fields
// can change; occupancy never passes through this path.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req roomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg, ok := req.validate(); !ok {
		shared.Error(w, http.StatusBadRequest, msg)
		return
	}

	upd := roomstore.Update{
		Name:          req.Name,
		Description:   req.Description,
		Capacity:      req.Capacity,
		Services:      req.Services,
		PricePerNight: req.PricePerNight,
		AvailableFrom: *req.AvailableFrom,
		AvailableTo:   *req.AvailableTo,
	}
	found, err := h.Store.UpdateAttributes(r.Context(), id, upd)
	if err != nil {
		h.Log.Error("room update failed", zap.Error(err))
		shared.Error(w, http.StatusServiceUnavailable, "storage temporarily unavailable, retry the request")
		return
	}
	if !found {
		shared.Error(w, http.StatusNotFound, "room not found")
		return
	}
	shared.JSON(w, http.StatusOK, map[string]string{"message": "room updated"})
}

// HandleDelete handles DELETE /rooms/{id} (admin only). An occupied room
// cannot be deleted; it has to be deallocated first.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	deleted, err := h.Store.DeleteFree(r.Context(), id)
	if err != nil {
		h.Log.Error("room delete failed", zap.Error(err))
		shared.Error(w, http.StatusServiceUnavailable, "storage temporarily unavailable, retry the request")
		return
	}
	if deleted {
		shared.JSON(w, http.StatusOK, map[string]string{"message": "room deleted"})
		return
	}

	// Nothing matched: either the room is gone or it is occupied.
	room, err := h.Store.FindByID(r.Context(), id)
	if err == nil && room != nil && room.Occupied() {
		shared.Error(w, http.StatusConflict, "room is occupied, deallocate it first")
		return
	}
	shared.Error(w, http.StatusNotFound, "room not found")
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		shared.Error(w, http.StatusBadRequest, "invalid room id")
		return primitive.NilObjectID, false
	}
	return id, true
}
