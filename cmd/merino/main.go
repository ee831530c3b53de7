package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mozilla-services/merino/health"
	"github.com/mozilla-services/merino/metrics"
	"github.com/mozilla-services/merino/reconfigure"
	"github.com/mozilla-services/merino/settings"
	"github.com/mozilla-services/merino/yacache"
	"github.com/mozilla-services/merino/yalogger"
)

// main wires the ambient configuration, logger and Redis client into a
// reconfigure.Registry, builds the provider tree named in the settings'
// provider config document, and blocks until the process receives a
// termination signal. It does not expose an HTTP surface: routing,
// extractors and Dockerflow endpoints are an operator's concern, built on
// top of the Suggest/Reconfigure operations this binary constructs.
func main() {
	log := yalogger.NewBaseLogger(nil).NewLogger()

	cfg := settings.Load(log)

	log = yalogger.NewBaseLogger(&yalogger.Config{
		BaseLoggerType: yalogger.Logrus,
		Level:          cfg.LogLevel,
	}).NewLogger()

	probe := health.NewProbe()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := yacache.NewRedisClient(
		cfg.RedisHost,
		cfg.RedisPort,
		cfg.RedisPassword,
		cfg.RedisDB,
		log,
	)
	defer redisClient.Close()

	registry := &reconfigure.Registry{
		RedisClient:             redisClient,
		MetricsSink:             metrics.NewNop(),
		Log:                     log,
		Debug:                   cfg.Debug,
		RemoteSettingsServerURL: cfg.RemoteSettingsServerURL,
	}

	providersConfig, loadErr := cfg.LoadProvidersConfig()
	if loadErr != nil {
		log.Fatalf("loading providers config: %v", loadErr)
	}

	tree, buildErr := registry.BuildNamed(ctx, providersConfig)
	if buildErr != nil {
		log.Fatalf("building provider tree: %v", buildErr)
	}

	probe.MarkReady()
	log.Infof("merino core ready, %d providers loaded", len(tree.ListProviders()))

	<-ctx.Done()

	log.Info("shutting down")
	probe.MarkNotReady()
}
