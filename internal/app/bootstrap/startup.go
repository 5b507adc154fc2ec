// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"

	allocstore "github.com/dalemusser/roomhub/internal/app/store/allocations"
	userstore "github.com/dalemusser/roomhub/internal/app/store/users"
	"github.com/dalemusser/roomhub/internal/app/system/normalize"
	"github.com/dalemusser/roomhub/internal/app/system/timeouts"
	"github.com/dalemusser/roomhub/internal/app/system/workers"
	"github.com/dalemusser/roomhub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeout overrides applied from environment", zap.Int("count", n))
	}

	if appCfg.AdminEmail != "" {
		if err := ensureAdmin(ctx, deps, appCfg.AdminEmail, appCfg.AdminPassword, logger); err != nil {
			return fmt.Errorf("admin bootstrap: %w", err)
		}
	}

	if appCfg.SweepInterval > 0 {
		// The grace window must comfortably cover the gap between an
		// allocation's two writes, which is bounded by the short timeout.
		grace := 6 * timeouts.Short()
		sweeper = workers.NewOccupancySweep(allocstore.New(deps.MongoDatabase), logger, appCfg.SweepInterval, grace)
		sweeper.Start()
	}

	return nil
}

// sweeper runs for the life of the process; Shutdown stops it.
var sweeper *workers.OccupancySweep

// ensureAdmin creates the admin account if it does not exist, or promotes
// an existing account with that email to the admin role. The password is
// only used when the account is created.
func ensureAdmin(ctx context.Context, deps DBDeps, email, password string, logger *zap.Logger) error {
	store := userstore.New(deps.MongoDatabase)
	email = normalize.Email(email)

	existing, err := store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	if existing == nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		id, err := store.Create(ctx, models.User{
			Name:         "Administrator",
			Email:        email,
			PasswordHash: string(hash),
			Role:         models.RoleAdmin,
		})
		if err != nil {
			return err
		}
		logger.Info("created admin account",
			zap.String("email", email),
			zap.String("id", id.Hex()))
		return nil
	}

	if existing.Role == models.RoleAdmin {
		return nil
	}

	if _, err := store.UpdateRole(ctx, existing.ID, models.RoleAdmin); err != nil {
		return err
	}
	logger.Info("promoted account to admin", zap.String("email", email))
	return nil
}
