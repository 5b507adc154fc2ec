// internal/app/features/users/handler.go
package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dalemusser/roomhub/internal/app/features/shared"
	"github.com/dalemusser/roomhub/internal/app/store/users"
	"github.com/dalemusser/roomhub/internal/app/system/auth"
	"github.com/dalemusser/roomhub/internal/app/system/authz"
	"github.com/dalemusser/roomhub/internal/app/system/inputval"
	"github.com/dalemusser/roomhub/internal/app/system/normalize"
	"github.com/dalemusser/roomhub/internal/app/system/ratelimit"
	"github.com/dalemusser/roomhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Store is the persistence surface the users feature needs.
type Store interface {
	Create(ctx context.Context, user models.User) (primitive.ObjectID, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UpdateFields(ctx context.Context, id primitive.ObjectID, upd userstore.Update) (bool, error)
	Delete(ctx context.Context, id primitive.ObjectID) (bool, error)
}

// Handler is the feature-level entry point for accounts and sign-in.
type Handler struct {
	Store  Store
	SM     *auth.SessionManager
	Limits *ratelimit.LoginLimiter
	Log    *zap.Logger
}

// NewHandler constructs a users handler bound to a store, session manager
// and logger.
func NewHandler(store Store, sm *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{
		Store:  store,
		SM:     sm,
		Limits: ratelimit.NewLoginLimiter(),
		Log:    logger,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister handles POST /users/register. Accounts register with the
// "user" role; admin accounts are provisioned out of band.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req.Name = normalize.Name(req.Name)
	req.Email = normalize.Email(req.Email)
	switch {
	case !inputval.IsValidName(req.Name):
		shared.Error(w, http.StatusBadRequest, "name must be between 3 and 50 characters")
		return
	case !inputval.IsValidEmail(req.Email):
		shared.Error(w, http.StatusBadRequest, "invalid email address")
		return
	case !inputval.IsValidPassword(req.Password):
		shared.Error(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.Log.Error("password hash failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	id, err := h.Store.Create(r.Context(), models.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
	})
	if errors.Is(err, userstore.ErrEmailTaken) {
		shared.Error(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		h.Log.Error("user create failed", zap.Error(err))
		shared.Error(w, http.StatusServiceUnavailable, "storage temporarily unavailable, retry the request")
		return
	}

	shared.JSON(w, http.StatusCreated, map[string]string{"id": id.Hex()})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin handles POST /users/login. On success the session cookie is
// set and the account is returned. Unknown email and wrong password get
// the same answer.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if allowed, reason := h.Limits.Check(r, req.Email); !allowed {
		shared.Error(w, http.StatusTooManyRequests, reason)
		return
	}

	user, err := h.Store.FindByEmail(r.Context(), normalize.Email(req.Email))
	if err != nil {
		h.Log.Error("user lookup failed", zap.Error(err))
		shared.Error(w, http.StatusServiceUnavailable, "storage temporarily unavailable, retry the request")
		return
	}
	if user == nil ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		shared.Error(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	su := &auth.SessionUser{
		ID:    user.ID.Hex(),
		Name:  user.Name,
		Email: user.Email,
		Role:  user.Role,
	}
	if err := h.SM.SignIn(w, r, su); err != nil {
		h.Log.Error("session write failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	h.Limits.ResetEmail(req.Email)
	shared.JSON(w, http.StatusOK, user)
}

// HandleLogout handles POST /users/logout.
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.SM.SignOut(w, r); err != nil {
		h.Log.Error("session clear failed", zap.Error(err))
		shared.Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	shared.JSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

// ServeView handles GET /users/{id}.
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	user, err := h.Store.FindByID(r.Context(), id)
	if err != nil {
		h.Log.Error("user lookup failed", zap.Error(err))
		shared.Error(w, http.StatusServiceUnavailable, "storage temporarily unavailable, retry the request")
		return
	}
	if user == nil {
		shared.Error(w, http.StatusNotFound, "user not found")
		return
	}
	shared.JSON(w, http.StatusOK, user)
}

type updateRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

// HandleUpdate handles PUT /users/{id}. An account may update itself; an
// admin may update anyone.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if _, _, callerID, _ := authz.UserCtx(r); callerID != id && !authz.IsAdmin(r) {
		shared.Error(w, http.StatusForbidden, "cannot update another account")
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var upd userstore.Update
	if req.Name != nil {
		name := normalize.Name(*req.Name)
		if !inputval.IsValidName(name) {
			shared.Error(w, http.StatusBadRequest, "name must be between 3 and 50 characters")
			return
		}
		upd.Name = &name
	}
	if req.Email != nil {
		email := normalize.Email(*req.Email)
		if !inputval.IsValidEmail(email) {
			shared.Error(w, http.StatusBadRequest, "invalid email address")
			return
		}
		upd.Email = &email
	}
	if req.Password != nil {
		if !inputval.IsValidPassword(*req.Password) {
			shared.Error(w, http.StatusBadRequest, "password must be at least 8 characters")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			h.Log.Error("password hash failed", zap.Error(err))
			shared.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		hs := string(hash)
		upd.PasswordHash = &hs
	}
	if upd.Name == nil && upd.Email == nil && upd.PasswordHash == nil {
		shared.Error(w, http.StatusBadRequest, "nothing to update")
		return
	}

	found, err := h.Store.UpdateFields(r.Context(), id, upd)
	if errors.Is(err, userstore.ErrEmailTaken) {
		shared.Error(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		h.Log.Error("user update failed", zap.Error(err))
		shared.Error(w, http.StatusServiceUnavailable, "storage temporarily unavailable, retry the request")
		return
	}
	if !found {
		shared.Error(w, http.StatusNotFound, "user not found")
		return
	}
	shared.JSON(w, http.StatusOK, map[string]string{"message": "account updated"})
}

// HandleDelete handles DELETE /users/{id} (admin only).
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	deleted, err := h.Store.Delete(r.Context(), id)
	if err != nil {
		h.Log.Error("user delete failed", zap.Error(err))
		shared.Error(w, http.StatusServiceUnavailable, "storage temporarily unavailable, retry the request")
		return
	}
	if !deleted {
		shared.Error(w, http.StatusNotFound, "user not found")
		return
	}
	shared.JSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		shared.Error(w, http.StatusBadRequest, "invalid user id")
		return primitive.NilObjectID, false
	}
	return id, true
}
