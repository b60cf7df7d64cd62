// Package main is the entry point for the Sui Wrapped report service.
package main

import (
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/sui-wrapped/internal/cache"
	"github.com/yourorg/sui-wrapped/internal/circuitbreaker"
	"github.com/yourorg/sui-wrapped/internal/classify"
	"github.com/yourorg/sui-wrapped/internal/config"
	"github.com/yourorg/sui-wrapped/internal/export"
	"github.com/yourorg/sui-wrapped/internal/fetch"
	"github.com/yourorg/sui-wrapped/internal/nft"
	"github.com/yourorg/sui-wrapped/internal/otel"
	"github.com/yourorg/sui-wrapped/internal/pipeline"
)

func main() {
	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Error loading configuration: %v", err)
	}

	shutdownTracer := otel.InitTracer(cfg)
	defer shutdownTracer()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	registry, err := loadRegistry(cfg.RegistryPath)
	if err != nil {
		logrus.Fatalf("Error loading protocol registry: %v", err)
	}

	breaker := circuitbreaker.New(cfg.BreakerFailures).
		WithResetDelay(cfg.BreakerResetDelay).
		WithTripCallback(func(reason string) {
			logrus.Warnf("Ledger circuit breaker tripped: %s", reason)
		})
	ledger := fetch.NewGuardedLedger(fetch.NewRPCClient(cfg.RPCURL, cfg.RPCRetryMax, cfg.RPCTimeout), breaker)

	store, err := newStore(cfg.CacheBackend)
	if err != nil {
		logrus.Fatalf("Error creating cache store: %v", err)
	}
	resultCache := cache.New(store, cfg.CacheTTL).WithComputeTimeout(cfg.RequestTimeout)
	defer resultCache.Close()

	orch := pipeline.New(ledger, classify.New(registry)).
		WithCache(resultCache).
		WithScanner(nft.NewScanner(ledger).WithPaging(cfg.NFTPageSize, cfg.NFTPageDelay, cfg.NFTMaxPages)).
		WithHistoryOptions(fetch.HistoryOptions{
			PageSize:  cfg.TxPageSize,
			PageDelay: cfg.TxPageDelay,
			Budget:    cfg.TxFetchBudget,
			MaxPages:  cfg.TxMaxPages,
		}).
		WithMetrics(pipeline.NewMetrics(reg))

	server := NewServer(cfg, orch, reg).
		WithBreaker(ledger).
		WithRegistry(registry)

	if exporter := newExporter(cfg.Export); exporter != nil {
		exporter.Start()
		defer exporter.Stop()
		orch.WithPublisher(exporter)
		server.WithExporter(exporter)
	}

	logrus.WithFields(logrus.Fields{
		"port":          cfg.Port,
		"rpc_url":       cfg.RPCURL,
		"cache_backend": cfg.CacheBackend,
		"cache_ttl":     cfg.CacheTTL,
		"report_year":   cfg.ReportYear,
		"protocols":     registry.Len(),
		"export":        cfg.Export.Enabled(),
	}).Info("Server initialized")

	server.Start()
}

// setupLogging configures the logging for the application
func setupLogging() {
	logFormat := strings.ToLower(os.Getenv("LOG_FORMAT"))
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))

	switch logFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch logLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

func loadRegistry(path string) (*classify.Registry, error) {
	if path == "" {
		return classify.DefaultRegistry(), nil
	}
	return classify.LoadRegistryFile(path)
}

func newStore(backend string) (cache.Store, error) {
	if backend == config.CacheBackendBadger {
		return cache.NewBadgerStore()
	}
	return cache.NewMemoryStore(), nil
}

// newExporter returns nil when no sink is configured or none could be created.
func newExporter(cfg config.ExportConfig) *export.Exporter {
	if !cfg.Enabled() {
		return nil
	}

	var sinks []export.Sink
	if len(cfg.KafkaBrokers) > 0 {
		sink, err := export.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			logrus.WithError(err).Warn("Kafka export disabled")
		} else {
			sinks = append(sinks, sink)
		}
	}
	if cfg.WebhookURL != "" {
		sinks = append(sinks, export.NewWebhookSink(cfg.WebhookURL, cfg.WebhookAPIKey))
	}
	if len(sinks) == 0 {
		return nil
	}
	return export.NewExporter(cfg.BatchSize, cfg.Interval, sinks...)
}
