// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	leasestore "github.com/dalemusser/alumnihub/internal/app/store/leases"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for AlumniHub.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: ALUMNIHUB_MONGO_URI, ALUMNIHUB_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "alumni_hub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "alumnihub-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Session cookie lifetime (e.g., 720h)"},

	// Bearer tokens
	{Name: "jwt_secret", Default: "", Desc: "HS256 secret for bearer tokens (blank disables bearer auth)"},
	{Name: "jwt_issuer", Default: "alumnihub", Desc: "Expected iss claim on bearer tokens"},

	// Audit logging settings
	{Name: "audit_log_community", Default: "all", Desc: "Group/topic event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_content", Default: "all", Desc: "Post/event/RSVP event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Leases
	{Name: "lease_ttl", Default: "10s", Desc: "Lifetime of a per-key write lease. Work under the lease is cancelled a fifth of this before expiry, so it also bounds each guarded write"},
	{Name: "lease_max_tries", Default: 40, Desc: "Attempts to acquire a busy lease before answering 503"},
	{Name: "reconcile_interval", Default: "15m", Desc: "How often member/subscriber counts are re-derived from the ledgers (0 disables)"},

	// Write throttling
	{Name: "write_rate_per_minute", Default: 30, Desc: "Posts/events an actor may create per minute (0 disables)"},
	{Name: "write_burst", Default: 10, Desc: "Creations allowed in a burst before throttling"},

	// Tracing
	{Name: "otel_endpoint", Default: "", Desc: "OTLP/HTTP traces endpoint URL (blank disables tracing)"},
	{Name: "otel_service_name", Default: "alumnihub", Desc: "service.name reported on spans"},

	// Timeouts
	{Name: "timeout_short", Default: "5s", Desc: "Timeout for single-document reads and writes"},
	{Name: "timeout_medium", Default: "10s", Desc: "Timeout for listings and transactional writes"},
	{Name: "timeout_long", Default: "30s", Desc: "Timeout for lease-guarded writes such as RSVPs"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, ALUMNIHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "ALUMNIHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 30*24*time.Hour),

		JWTSecret: appValues.String("jwt_secret"),
		JWTIssuer: appValues.String("jwt_issuer"),

		AuditLogCommunity: appValues.String("audit_log_community"),
		AuditLogContent:   appValues.String("audit_log_content"),

		LeaseTTL:      appValues.Duration("lease_ttl", leasestore.DefaultTTL),
		LeaseMaxTries: appValues.Int("lease_max_tries"),

		ReconcileInterval: appValues.Duration("reconcile_interval", 15*time.Minute),

		WriteRatePerMinute: appValues.Int("write_rate_per_minute"),
		WriteBurst:         appValues.Int("write_burst"),

		OTelEndpoint:    appValues.String("otel_endpoint"),
		OTelServiceName: appValues.String("otel_service_name"),

		TimeoutShort:  appValues.Duration("timeout_short", timeouts.DefaultShort),
		TimeoutMedium: appValues.Duration("timeout_medium", timeouts.DefaultMedium),
		TimeoutLong:   appValues.Duration("timeout_long", timeouts.DefaultLong),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The MongoDB URI is checked here to catch configuration errors before
// attempting to connect.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if appCfg.MongoURI == "" {
		return fmt.Errorf("mongo_uri must be set")
	}
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return fmt.Errorf("mongo_database must be set")
	}

	// Production needs a real signing key
	if coreCfg.Env == "prod" && len(appCfg.SessionKey) < 32 {
		return fmt.Errorf("session_key must be at least 32 characters in prod")
	}
	if appCfg.JWTSecret != "" && len(appCfg.JWTSecret) < 32 {
		logger.Warn("jwt_secret is short; 32+ chars recommended", zap.Int("length", len(appCfg.JWTSecret)))
	}

	if appCfg.LeaseTTL <= 0 {
		return fmt.Errorf("lease_ttl must be positive, got %s", appCfg.LeaseTTL)
	}
	if appCfg.LeaseMaxTries < 1 {
		return fmt.Errorf("lease_max_tries must be at least 1, got %d", appCfg.LeaseMaxTries)
	}
	if appCfg.ReconcileInterval < 0 {
		return fmt.Errorf("reconcile_interval must not be negative, got %s", appCfg.ReconcileInterval)
	}

	for key, v := range map[string]string{
		"audit_log_community": appCfg.AuditLogCommunity,
		"audit_log_content":   appCfg.AuditLogContent,
	} {
		switch v {
		case "all", "db", "log", "off":
		default:
			return fmt.Errorf("%s must be all, db, log or off, got %q", key, v)
		}
	}

	return nil
}
