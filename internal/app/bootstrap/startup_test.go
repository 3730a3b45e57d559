package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

const testSessionKey = "0123456789abcdef0123456789abcdef"

func validAppConfig() AppConfig {
	return AppConfig{
		MongoURI:          "mongodb://localhost:27017",
		MongoDatabase:     "alumni_hub",
		SessionKey:        testSessionKey,
		SessionName:       "alumnihub-session",
		SessionMaxAge:     time.Hour,
		JWTSecret:         "test-jwt-secret-test-jwt-secret!",
		JWTIssuer:         "alumnihub-test",
		AuditLogCommunity: "all",
		AuditLogContent:   "db",
		LeaseTTL:          2 * time.Second,
		LeaseMaxTries:     10,
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"valid dev", "dev", func(*AppConfig) {}, ""},
		{"valid prod", "prod", func(*AppConfig) {}, ""},
		{"missing uri", "dev", func(c *AppConfig) { c.MongoURI = "" }, "mongo_uri"},
		{"missing database", "dev", func(c *AppConfig) { c.MongoDatabase = "" }, "mongo_database"},
		{"short key in prod", "prod", func(c *AppConfig) { c.SessionKey = "short" }, "session_key"},
		{"short key in dev", "dev", func(c *AppConfig) { c.SessionKey = "short" }, ""},
		{"zero lease ttl", "dev", func(c *AppConfig) { c.LeaseTTL = 0 }, "lease_ttl"},
		{"zero lease tries", "dev", func(c *AppConfig) { c.LeaseMaxTries = 0 }, "lease_max_tries"},
		{"bad audit mode", "dev", func(c *AppConfig) { c.AuditLogContent = "sometimes" }, "audit_log_content"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validAppConfig()
			tt.mutate(&cfg)
			err := ValidateConfig(&config.CoreConfig{Env: tt.env}, cfg, testLogger())
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestStartup_ConfiguresTimeouts(t *testing.T) {
	defer timeouts.Reset()

	cfg := validAppConfig()
	cfg.TimeoutShort = 3 * time.Second
	cfg.TimeoutLong = 45 * time.Second

	if err := Startup(context.Background(), &config.CoreConfig{}, cfg, DBDeps{}, testLogger()); err != nil {
		t.Fatalf("Startup failed: %v", err)
	}

	if got := timeouts.Short(); got != 3*time.Second {
		t.Errorf("short timeout: expected 3s, got %s", got)
	}
	if got := timeouts.Medium(); got != timeouts.DefaultMedium {
		t.Errorf("medium timeout should keep default, got %s", got)
	}
	if got := timeouts.Long(); got != 45*time.Second {
		t.Errorf("long timeout: expected 45s, got %s", got)
	}

	// No endpoint configured, so shutdown flushes a no-op provider.
	if err := Shutdown(context.Background(), &config.CoreConfig{}, cfg, DBDeps{}, testLogger()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

func TestBuildHandler_Routes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cfg := validAppConfig()
	deps := DBDeps{AlumniHubMongoClient: db.Client(), AlumniHubMongoDatabase: db}

	h, err := BuildHandler(&config.CoreConfig{Env: "dev"}, cfg, deps, testLogger())
	if err != nil {
		t.Fatalf("BuildHandler failed: %v", err)
	}

	fixtures := testutil.NewFixtures(t, db)
	user := fixtures.CreateUser(ctx, "Ada Lovelace")

	issuer, err := auth.NewSessionManager(testSessionKey, cfg.SessionName, "", time.Hour, false, testLogger())
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	token, err := issuer.WithBearer(cfg.JWTSecret, cfg.JWTIssuer).IssueToken(user.ID, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	tests := []struct {
		name   string
		path   string
		bearer string
		want   int
	}{
		{"health is public", "/health", "", http.StatusOK},
		{"groups require actor", "/groups/mine", "", http.StatusUnauthorized},
		{"groups with bearer", "/groups/mine", token, http.StatusOK},
		{"audience with bearer", "/me/audience", token, http.StatusOK},
		{"posts with bearer", "/posts", token, http.StatusOK},
		{"events with bearer", "/events", token, http.StatusOK},
		{"garbage bearer", "/topics/mine", "not-a-jwt", http.StatusUnauthorized},
		{"unknown route", "/nowhere", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("GET %s: expected %d, got %d: %s", tt.path, tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestEnsureSchema(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{AlumniHubMongoDatabase: db}
	if err := EnsureSchema(ctx, &config.CoreConfig{}, validAppConfig(), deps, testLogger()); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	// Running twice must be a no-op.
	if err := EnsureSchema(ctx, &config.CoreConfig{}, validAppConfig(), deps, testLogger()); err != nil {
		t.Fatalf("second EnsureSchema failed: %v", err)
	}
}

func TestBuildHandler_ThrottlesWrites(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	cfg := validAppConfig()
	cfg.WriteRatePerMinute = 1
	cfg.WriteBurst = 1
	deps := DBDeps{AlumniHubMongoClient: db.Client(), AlumniHubMongoDatabase: db}

	h, err := BuildHandler(&config.CoreConfig{Env: "dev"}, cfg, deps, testLogger())
	if err != nil {
		t.Fatalf("BuildHandler failed: %v", err)
	}

	user := testutil.NewFixtures(t, db).CreateUser(ctx, "Grace Hopper")
	issuer, err := auth.NewSessionManager(testSessionKey, cfg.SessionName, "", time.Hour, false, testLogger())
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	token, err := issuer.WithBearer(cfg.JWTSecret, cfg.JWTIssuer).IssueToken(user.ID, time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader(`{}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// The first request reaches validation; the second is throttled.
	if got := post(); got != http.StatusUnprocessableEntity {
		t.Fatalf("first write: expected 422, got %d", got)
	}
	if got := post(); got != http.StatusTooManyRequests {
		t.Fatalf("second write: expected 429, got %d", got)
	}
}
