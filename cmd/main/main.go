package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CTAG07/acfget/pkg/templating"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

const configPath = "./config.json"

func main() {
	baseLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	actionChan := make(chan string, 1)

	go func() {
		osSignalChan := make(chan os.Signal, 1)
		signal.Notify(osSignalChan, syscall.SIGINT, syscall.SIGTERM)
		<-osSignalChan
		baseLogger.Info("OS signal received, initiating shutdown.")
		actionChan <- actionShutdown
	}()

	for {
		action, err := run(actionChan)
		if err != nil {
			baseLogger.Error("An error occurred during server run, shutting down.", "error", err)
			os.Exit(1)
		}
		if action != actionRestart {
			break
		}
		baseLogger.Info("--- Server Restarting ---")
	}

	baseLogger.Info("acfget has shut down.")
}

// run hosts the API server for one configuration cycle and returns the action
// that ended it.
func run(actionChan chan string) (string, error) {
	cm, err := NewConfigManager(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	config := cm.Get()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(config.Server.LogLevel)}))
	cm.SetLogger(logger)
	logger.Info("Starting server cycle...", "version", Version, "driver", config.Store.Driver)

	if err = os.MkdirAll(config.Server.DataDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := initDB(config.Server.DatabasePath)
	if err != nil {
		return "", fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		logger.Info("Closing database connection.")
		if err := db.Close(); err != nil {
			logger.Error("Failed to close database", "error", err)
		}
	}()

	if err = setupAuthSchema(db); err != nil {
		return "", fmt.Errorf("failed to setup auth schema: %w", err)
	}
	if err = setupStatsSchema(db); err != nil {
		return "", fmt.Errorf("failed to setup stats schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src, closeSource, err := openSource(ctx, config.Store, logger)
	if err != nil {
		return "", fmt.Errorf("failed to open field source: %w", err)
	}
	defer closeSource()

	engine, err := templating.NewEngine(logger, src, config.Templates)
	if err != nil {
		return "", fmt.Errorf("failed to create render engine: %w", err)
	}
	cm.SetEngine(engine)

	library, err := NewTemplateLibrary(config.Server.TemplateDir)
	if err != nil {
		return "", err
	}

	if config.Store.Driver == "fixture" && config.Store.WatchFixture {
		watcher, err := NewFixtureWatcher(config.Store.FixturePath, engine, logger)
		if err != nil {
			logger.Warn("Fixture hot reload disabled", "error", err)
		} else {
			go watcher.Run(ctx)
		}
	}

	server := NewServer(cm, logger, db, engine, library, actionChan)
	apiHttpServer := &http.Server{
		Addr:              config.Server.ApiAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting api server", "address", apiHttpServer.Addr)
		if err := apiHttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var action string
	select {
	case action = <-actionChan:
	case err = <-serveErr:
		return "", fmt.Errorf("api server failed: %w", err)
	}

	logger.Info("Stopping server for " + action + "...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err = apiHttpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Api server shutdown failed", "error", err)
	}
	logger.Info("HTTP server stopped.")

	return action, nil
}
