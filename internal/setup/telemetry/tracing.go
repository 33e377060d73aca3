package telemetry

import (
	"context"

	"github.com/robalyx/chatguard/internal/setup/config"
	"github.com/uptrace/uptrace-go/uptrace"
	"go.uber.org/zap"
)

// ConfigureTracing installs the Uptrace exporter when a DSN is configured.
// The returned function flushes pending spans and must be called on shutdown.
func ConfigureTracing(cfg *config.Telemetry, version string, logger *zap.Logger) func(context.Context) {
	if cfg.UptraceDSN == "" {
		logger.Debug("Uptrace DSN not configured, spans stay local")
		return func(context.Context) {}
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "chatguard"
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(cfg.UptraceDSN),
		uptrace.WithServiceName(serviceName),
		uptrace.WithServiceVersion(version),
		uptrace.WithDeploymentEnvironment(cfg.Environment),
	)

	logger.Info("Configured Uptrace exporter", zap.String("service", serviceName))

	return func(ctx context.Context) {
		if err := uptrace.Shutdown(ctx); err != nil {
			logger.Warn("Failed to flush spans", zap.Error(err))
		}
	}
}
