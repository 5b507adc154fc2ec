// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration; core settings like HTTP
// ports, TLS, and logging live in WAFFLE's CoreConfig.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Max connection pool size
	MongoMinPoolSize uint64 // Min connection pool size

	// Session management configuration
	SessionKey    string // Secret key for signing session cookies (must be strong in production)
	SessionName   string // Cookie name for sessions (default: roomhub-session)
	SessionDomain string // Cookie domain (blank means current host)

	// Admin bootstrap. When both are set, Startup creates (or promotes)
	// the account with the admin role. Admins cannot register through
	// the public API.
	AdminEmail    string
	AdminPassword string

	// SweepInterval is how often the background sweep looks for rooms
	// marked occupied with no allocation record. Zero disables it.
	SweepInterval time.Duration
}
