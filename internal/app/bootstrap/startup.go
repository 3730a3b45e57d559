// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"github.com/dalemusser/alumnihub/internal/app/system/tracing"
	"github.com/dalemusser/alumnihub/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Lifecycle state carried from Startup/BuildHandler to Shutdown.
var (
	lifecycleMu     sync.Mutex
	shutdownTracing = func(context.Context) error { return nil }
	reconciler      *workers.CountReconciler
)

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It
// applies the configured timeouts and installs the trace exporter.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})
	cur := timeouts.Current()
	logger.Info("timeouts configured",
		zap.Duration("short", cur.Short),
		zap.Duration("medium", cur.Medium),
		zap.Duration("long", cur.Long))

	shutdown, err := tracing.Setup(ctx, appCfg.OTelServiceName, appCfg.OTelEndpoint)
	if err != nil {
		logger.Error("tracing setup failed", zap.Error(err))
		return err
	}
	lifecycleMu.Lock()
	shutdownTracing = shutdown
	lifecycleMu.Unlock()
	if appCfg.OTelEndpoint != "" {
		logger.Info("tracing enabled", zap.String("endpoint", appCfg.OTelEndpoint))
	}
	return nil
}

// startReconciler launches the count reconcile worker over groups and
// topics. It replaces any worker left by an earlier BuildHandler call.
func startReconciler(interval time.Duration, svc services, logger *zap.Logger) {
	w := workers.NewCountReconciler(logger, interval,
		workers.CountSource{Name: "groups", IDs: svc.Groups.IDs, Reconcile: svc.Memberships.Reconcile},
		workers.CountSource{Name: "topics", IDs: svc.Topics.IDs, Reconcile: svc.Subscriptions.Reconcile},
	)
	w.Start()

	lifecycleMu.Lock()
	prev := reconciler
	reconciler = w
	lifecycleMu.Unlock()
	if prev != nil {
		prev.Stop()
	}
}
