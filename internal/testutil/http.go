// Package testutil provides helpers for handler and service tests: request
// builders that inject a session user or chi URL params, and an in-memory
// allocation store.
package testutil

import (
	"context"
	"net/http"

	"github.com/dalemusser/roomhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// WithUser attaches a session user to the request context, standing in for
// the SessionManager middleware.
func WithUser(r *http.Request, id primitive.ObjectID, name, role string) *http.Request {
	return auth.WithUser(r, &auth.SessionUser{
		ID:   id.Hex(),
		Name: name,
		Role: role,
	})
}

// AdminRequest attaches a fresh admin session user to the request.
func AdminRequest(r *http.Request) *http.Request {
	return WithUser(r, primitive.NewObjectID(), "Test Admin", "admin")
}
