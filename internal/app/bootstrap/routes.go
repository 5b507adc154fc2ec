// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	"github.com/dalemusser/roomhub/internal/app/allocation"
	allocationsfeature "github.com/dalemusser/roomhub/internal/app/features/allocations"
	healthfeature "github.com/dalemusser/roomhub/internal/app/features/health"
	roomsfeature "github.com/dalemusser/roomhub/internal/app/features/rooms"
	usersfeature "github.com/dalemusser/roomhub/internal/app/features/users"
	allocstore "github.com/dalemusser/roomhub/internal/app/store/allocations"
	roomstore "github.com/dalemusser/roomhub/internal/app/store/rooms"
	userstore "github.com/dalemusser/roomhub/internal/app/store/users"
	"github.com/dalemusser/roomhub/internal/app/system/auth"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. RoomHub mounts the health check, the
// account routes, the room CRUD routes, and the allocation routes.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	users := userstore.New(deps.MongoDatabase)

	// LoadSessionUser fetches fresh user data on each request, so role
	// changes and deleted accounts take effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(users))

	r := chi.NewRouter()

	// Global auth middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Accounts and sign-in
	usersHandler := usersfeature.NewHandler(users, sessionMgr, logger)
	r.Mount("/users", usersfeature.Routes(usersHandler, sessionMgr))

	// Room CRUD
	roomsHandler := roomsfeature.NewHandler(roomstore.New(deps.MongoDatabase), logger)
	r.Mount("/rooms", roomsfeature.Routes(roomsHandler, sessionMgr))

	// Allocation endpoints live at the root: /allocate, /deallocate/{roomId},
	// /allocations/user/{userId}, /allocations/room/{roomId}.
	allocSvc := allocation.NewService(allocstore.New(deps.MongoDatabase), logger)
	allocHandler := allocationsfeature.NewHandler(allocSvc, logger)
	r.Mount("/", allocationsfeature.Routes(allocHandler, sessionMgr))

	return r, nil
}
