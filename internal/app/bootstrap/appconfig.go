// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//
// AppConfig carries what the audience engine itself needs: where the data
// lives, how actors are identified, how ledger writes are serialized, and
// where audit events and traces go.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in the driver pool
	MongoMinPoolSize uint64 // Connections kept warm in the driver pool

	// Session cookie configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: alumnihub-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Bearer token configuration (blank secret disables bearer tokens)
	JWTSecret string
	JWTIssuer string

	// Audit logging: "all", "db", "log" or "off" per category
	AuditLogCommunity string
	AuditLogContent   string

	// Per-key leases that serialize ledger writes
	LeaseTTL      time.Duration
	LeaseMaxTries int

	// Count reconciliation
	ReconcileInterval time.Duration // 0 disables the background worker

	// Per-actor throttle on post and event creation
	WriteRatePerMinute int // 0 disables
	WriteBurst         int

	// OpenTelemetry (blank endpoint disables export)
	OTelEndpoint    string
	OTelServiceName string

	// Database operation timeouts
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
}
