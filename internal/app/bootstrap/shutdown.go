// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background work, flushes pending spans and cleanly tears
// down DB connections.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	lifecycleMu.Lock()
	flush := shutdownTracing
	w := reconciler
	reconciler = nil
	lifecycleMu.Unlock()

	if w != nil {
		w.Stop()
	}
	if err := flush(ctx); err != nil {
		logger.Warn("trace flush failed", zap.Error(err))
	}

	if deps.AlumniHubMongoClient != nil {
		logger.Info("disconnecting AlumniHub MongoDB client")
		if err := deps.AlumniHubMongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
