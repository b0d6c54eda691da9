// vaultd serves the Canton vault backend: pooled vault accounting over
// the Canton JSON Ledger API, with an in-memory demo fallback when the
// ledger is unreachable at boot.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/luxfi/database/manager"
	"github.com/luxfi/log"

	"github.com/cantonlabs/vault/pkg/api"
	"github.com/cantonlabs/vault/pkg/demo"
	"github.com/cantonlabs/vault/pkg/events"
	"github.com/cantonlabs/vault/pkg/journal"
	"github.com/cantonlabs/vault/pkg/ledger"
	"github.com/cantonlabs/vault/pkg/metrics"
	"github.com/cantonlabs/vault/pkg/vault"
)

const defaultDataDir = ".vaultd"

type Config struct {
	ListenAddr  string
	MetricsAddr string

	LedgerURL     string
	LedgerToken   string
	SubmitPath    string
	LedgerTimeout time.Duration

	NATSURL  string
	DataDir  string
	LogLevel string
}

func parseConfig() *Config {
	cfg := &Config{}
	flag.StringVar(&cfg.ListenAddr, "listen", envOr("PORT_ADDR", ":3000"), "API listen address")
	flag.StringVar(&cfg.MetricsAddr, "metrics", envOr("METRICS_ADDR", ":9090"), "Metrics listen address")
	flag.StringVar(&cfg.LedgerURL, "ledger-url", envOr("LEDGER_API_URL", ledger.DefaultBaseURL), "Canton JSON Ledger API base URL")
	flag.StringVar(&cfg.LedgerToken, "ledger-token", envOr("LEDGER_ACCESS_TOKEN", ""), "Ledger bearer token")
	flag.StringVar(&cfg.SubmitPath, "ledger-submit-path", envOr("LEDGER_SUBMIT_PATH", ledger.DefaultSubmitPath), "Ledger command submit path")
	flag.DurationVar(&cfg.LedgerTimeout, "ledger-timeout", ledger.DefaultTimeout, "Ledger request timeout")
	flag.StringVar(&cfg.NATSURL, "nats", envOr("NATS_URL", ""), "NATS URL for event publishing (empty disables)")
	flag.StringVar(&cfg.DataDir, "datadir", envOr("DATA_DIR", defaultDataDir), "Journal data directory under $HOME")
	flag.StringVar(&cfg.LogLevel, "log-level", envOr("LOG_LEVEL", "info"), "Log level")
	flag.Parse()
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	cfg := parseConfig()

	level, _ := log.ToLevel(cfg.LogLevel)
	logger := log.NewTestLogger(level)
	logger.Info("starting vaultd", "listen", cfg.ListenAddr, "ledger", cfg.LedgerURL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Journal store: BadgerDB under the data dir, memory fallback.
	dataPath := filepath.Join(os.Getenv("HOME"), cfg.DataDir)
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		logger.Fatal("create data directory", log.String("path", dataPath), log.Err(err))
	}
	dbManager := manager.NewManager(dataPath, nil)
	dbConfig := manager.DefaultBadgerDBConfig("badgerdb")
	dbConfig.Namespace = "vaultd"
	db, err := dbManager.New(dbConfig)
	if err != nil {
		logger.Warn("failed to open BadgerDB, journaling in memory", "error", err)
		db, err = dbManager.New(manager.DefaultMemoryConfig())
		if err != nil {
			logger.Fatal("create journal database", log.Err(err))
		}
	}
	jnl, err := journal.Open(db, logger.New("module", "journal"))
	if err != nil {
		logger.Fatal("open journal", log.Err(err))
	}

	m := metrics.New("vaultd", logger.New("module", "metrics"))

	hub := api.NewHub(logger.New("module", "ws"))
	go hub.Run(ctx)

	sinks := []vault.Sink{jnl, hub}
	if cfg.NATSURL != "" {
		pub, err := events.Connect(cfg.NATSURL, logger.New("module", "events"))
		if err != nil {
			logger.Warn("NATS unavailable, events disabled", "url", cfg.NATSURL, "error", err)
		} else {
			defer pub.Close()
			sinks = append(sinks, pub)
		}
	}

	gateway := ledger.NewClient(ledger.Config{
		BaseURL:     cfg.LedgerURL,
		AccessToken: cfg.LedgerToken,
		Timeout:     cfg.LedgerTimeout,
		SubmitPath:  cfg.SubmitPath,
	}, logger.New("module", "ledger"))

	core := vault.NewService(ctx,
		gateway,
		ledger.NewBackend(gateway, logger.New("module", "ledger")),
		demo.NewStore(logger.New("module", "demo")),
		logger.New("module", "vault"),
		vault.WithMetrics(m),
		vault.WithSinks(sinks...),
	)

	apiServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewServer(core, hub, logger.New("module", "api")).Routes(),
	}
	metricsServer := &http.Server{Addr: cfg.MetricsAddr}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", m.Handler())
	metricsServer.Handler = metricsMux

	go func() {
		logger.Info("metrics listening", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server", "error", err)
		}
	}()
	go func() {
		logger.Info("API listening", "addr", cfg.ListenAddr)
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server", log.Err(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	apiServer.Shutdown(shutdownCtx)
	metricsServer.Shutdown(shutdownCtx)
	if err := db.Close(); err != nil {
		logger.Warn("close journal database", "error", err)
	}
}
