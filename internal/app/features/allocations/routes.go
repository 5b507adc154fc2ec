// internal/app/features/allocations/routes.go
package allocations

import (
	"github.com/dalemusser/roomhub/internal/app/system/auth"
	"github.com/dalemusser/roomhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the allocation routes at the router root.
//
// Allocate and deallocate are restricted to the "user" role at the routing
// layer; the service enforces the same policy again so a future route
// change cannot silently open the operations to admins.
func Routes(h *Handler, sm *auth.SessionManager) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Use(sm.RequireRole(models.RoleUser))

		pr.Post("/allocate", h.HandleAllocate)
		pr.Delete("/deallocate/{roomId}", h.HandleDeallocate)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)

		pr.Get("/allocations/user/{userId}", h.ServeByUser)
		pr.Get("/allocations/room/{roomId}", h.ServeByRoom)
	})

	return r
}
