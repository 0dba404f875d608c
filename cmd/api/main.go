package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/aman-zulfiqar/spl-token-manager/internal/ai"
	"github.com/aman-zulfiqar/spl-token-manager/internal/config"
	"github.com/aman-zulfiqar/spl-token-manager/internal/flags"
	"github.com/aman-zulfiqar/spl-token-manager/internal/poller"
	"github.com/aman-zulfiqar/spl-token-manager/internal/server"
	"github.com/aman-zulfiqar/spl-token-manager/internal/storage"
	"github.com/aman-zulfiqar/spl-token-manager/internal/tokenengine"
	"github.com/aman-zulfiqar/spl-token-manager/internal/watchlist"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the API server
// It wires the engine, readers and live dashboard, then serves HTTP with graceful shutdown
func main() {
	// Initialize structured logger with custom formatting
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	// Load and validate configuration from environment variables
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown (Ctrl+C, SIGTERM)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Token engine owns the RPC connection, the signer and the optional
	// Redis and ClickHouse journals
	engine, err := tokenengine.NewEngine(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create token engine")
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.WithError(err).Warn("engine close failed")
		}
	}()

	rpcClient := engine.RPC()
	balances := poller.NewBalanceReader(rpcClient)
	history := poller.NewHistoryReader(rpcClient, cfg.Cluster, logger)
	watched := watchlist.New()

	h := &server.Handlers{
		Engine:       engine,
		Balances:     balances,
		History:      history,
		Watchlist:    watched,
		HistoryLimit: cfg.HistoryLimit,
		DevMode:      cfg.DevMode,
		Logger:       logger,
	}

	// Redis-backed journal, snapshot cache and feature flags (optional)
	var snapshots storage.SnapshotCache
	if rc := engine.Redis(); rc != nil {
		flagStore, err := flags.NewStore(rc.Client())
		if err != nil {
			logger.WithError(err).Fatal("failed to create flags store")
		}
		h.Cache = rc
		h.Flags = flagStore
		snapshots = rc
	} else {
		logger.Info("REDIS_ADDR not set, journal and flags endpoints are disabled")
	}

	// Live dashboard for the connected wallet
	if owner := engine.Requester(); !owner.IsZero() {
		dash := poller.NewDashboard(poller.DashboardConfig{
			Owner:           owner,
			Balances:        balances,
			History:         history,
			Watchlist:       watched,
			Cache:           snapshots,
			BalanceInterval: cfg.BalancePollInterval,
			HistoryInterval: cfg.HistoryPollInterval,
			HistoryLimit:    cfg.HistoryLimit,
			Logger:          logger,
		})
		dash.Start(ctx)
		defer dash.Stop()
		h.Dashboard = dash
	}

	// Initialize AI agent for natural language queries (optional)
	aiBase := ai.AgentConfig{
		ClickHouseAddr:     cfg.ClickHouseAddr,
		ClickHouseDatabase: cfg.ClickHouseDatabase,
		ClickHouseUsername: cfg.ClickHouseUsername,
		ClickHousePassword: cfg.ClickHousePassword,
		OpenRouterAPIKey:   cfg.OpenRouterAPIKey,
		Model:              "openai/gpt-4.1-mini", // Default model for NL→SQL translation
		Logger:             logger,
	}
	h.AIBaseConfig = aiBase

	// Only initialize AI if OpenRouter API key and the operation log are configured
	if cfg.OpenRouterAPIKey != "" && cfg.ClickHouseEnabled() {
		agent, err := ai.NewAgent(ctx, aiBase)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize ai agent")
		} else {
			h.AI = agent
			defer func() {
				_ = agent.Close() // Clean up AI resources on shutdown
			}()
		}
	}

	// Create HTTP server with configuration and handlers
	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.APIAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	// Setup graceful shutdown in a separate goroutine
	go func() {
		<-sigCh // Wait for shutdown signal
		logger.Info("shutting down")
		cancel()                               // Stop pollers and in-flight reads
		_ = srv.Shutdown(context.Background()) // Gracefully shutdown HTTP server
	}()

	logger.WithFields(logrus.Fields{
		"addr":      cfg.APIAddr,
		"cluster":   cfg.Cluster,
		"connected": !engine.Requester().IsZero(),
	}).Info("api server starting")
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Fatal("api server failed")
	}

	// Wait for server to be fully shut down
	if err := srv.WaitClosed(context.Background()); err != nil {
		logger.WithError(err).Warn("shutdown did not complete")
	}
}
