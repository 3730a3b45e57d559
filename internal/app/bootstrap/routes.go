// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	audiencefeature "github.com/dalemusser/alumnihub/internal/app/features/audience"
	eventsfeature "github.com/dalemusser/alumnihub/internal/app/features/events"
	groupsfeature "github.com/dalemusser/alumnihub/internal/app/features/groups"
	healthfeature "github.com/dalemusser/alumnihub/internal/app/features/health"
	postsfeature "github.com/dalemusser/alumnihub/internal/app/features/posts"
	topicsfeature "github.com/dalemusser/alumnihub/internal/app/features/topics"
	userstore "github.com/dalemusser/alumnihub/internal/app/store/users"
	"github.com/dalemusser/alumnihub/internal/app/system/apierr"
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed. At this point you have access to:
//   - coreCfg: WAFFLE core configuration (ports, env, timeouts, etc.)
//   - appCfg: app-specific configuration defined in AppConfig
//   - deps: any DB or backend clients bundled in DBDeps
//   - logger: the fully configured zap.Logger for this app
//
// AlumniHub resolves the actor on every request (bearer token first, then
// session cookie) and mounts one JSON feature router per resource.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}
	if appCfg.JWTSecret != "" {
		sessionMgr.WithBearer(appCfg.JWTSecret, appCfg.JWTIssuer)
	}

	// Every resolved id is checked against the users collection so a
	// disabled user loses access immediately.
	db := deps.AlumniHubMongoDatabase
	sessionMgr.WithSource(userstore.NewFetcher(db))

	svc := buildServices(appCfg, db, logger)
	if appCfg.ReconcileInterval > 0 {
		startReconciler(appCfg.ReconcileInterval, svc, logger)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Global auth middleware: loads the Actor into context when credentials
	// are present. Feature routers decide whether one is required.
	r.Use(sessionMgr.LoadActor)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apierr.JSON(w, http.StatusNotFound, apierr.Body{Error: "not_found", Message: "no such route"})
	})

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.AlumniHubMongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	groupsHandler := groupsfeature.NewHandler(db, svc.Groups, svc.Memberships, svc.Audit, logger)
	r.Mount("/groups", groupsfeature.Routes(groupsHandler, sessionMgr))

	topicsHandler := topicsfeature.NewHandler(svc.Topics, svc.Subscriptions, svc.Audit, logger)
	r.Mount("/topics", topicsfeature.Routes(topicsHandler, sessionMgr))

	// Posts and events share one write budget per actor.
	writes := ratelimit.New(appCfg.WriteRatePerMinute, appCfg.WriteBurst)

	postsHandler := postsfeature.NewHandler(svc.Posts, svc.Audit, logger)
	r.Mount("/posts", postsfeature.Routes(postsHandler, sessionMgr, writes))

	eventsHandler := eventsfeature.NewHandler(svc.Events, svc.Audit, logger)
	r.Mount("/events", eventsfeature.Routes(eventsHandler, sessionMgr, writes))

	audienceHandler := audiencefeature.NewHandler(svc.Resolver, svc.Groups, svc.Topics, logger)
	r.Mount("/me", audiencefeature.Routes(audienceHandler, sessionMgr))

	return r, nil
}
