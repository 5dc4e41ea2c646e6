// Package main is the entry point for the holiday engine server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/holiday-engine/backend/internal/api"
	"github.com/holiday-engine/backend/internal/api/handlers"
	"github.com/holiday-engine/backend/internal/calendar"
	"github.com/holiday-engine/backend/internal/config"
	"github.com/holiday-engine/backend/internal/holiday"
	"github.com/holiday-engine/backend/internal/log"
	"github.com/holiday-engine/backend/internal/storage"
	"github.com/holiday-engine/backend/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	configPath := flag.String("config", "/data/config.yaml", "Path to the YAML config file")
	envFile := flag.String("env", ".env", "Optional .env file with HOLIDAYS_* overrides")
	addr := flag.String("addr", "", "HTTP server address (overrides config)")
	dataDir := flag.String("data", "", "Data directory for the SQLite database (overrides config)")
	staticDir := flag.String("static", "", "Directory for static frontend files (overrides config)")
	logLevel := flag.String("log-level", "", "debug, info, warn or error (overrides config)")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Listen = *addr
		case "data":
			cfg.DataDir = *dataDir
		case "static":
			cfg.StaticDir = *staticDir
		case "log-level":
			cfg.LogLevel = *logLevel
		}
	})
	if version != "dev" {
		cfg.AppVersion = version
	}

	if *healthCheck {
		if err := runHealthCheck(cfg.Listen); err != nil {
			fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	log.SetLevel(cfg.LogLevel)
	defer log.Sync()

	if err := run(cfg); err != nil {
		log.Error("server failed", err)
		log.Sync()
		os.Exit(1)
	}
}

func loadConfig(path, envFile string) (*config.Config, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		if cfg == nil {
			return nil, err
		}
		// Defaults are usable even when the first-run file could not be written.
		fmt.Fprintf(os.Stderr, "config: %v (continuing with defaults)\n", err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting holiday engine", "version", cfg.AppVersion, "listen", cfg.Listen)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	db, err := storage.NewDB(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := storage.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	store := storage.NewStore(db)
	engine := holiday.New(store,
		holiday.WithAppVersion(cfg.AppVersion),
		holiday.WithWorkers(cfg.Workers),
		holiday.WithInitialRegions(cfg.DefaultRegions...),
	)
	if err := engine.Open(ctx, time.Now().In(loc).Year()); err != nil {
		return fmt.Errorf("opening holiday engine: %w", err)
	}
	if _, err := engine.UpgradeDefaults(ctx); err != nil {
		log.Error("upgrading default rules", err)
	}

	hub := websocket.NewHub()
	go hub.Run(ctx)

	events, unsubscribe := engine.Subscribe(64)
	defer unsubscribe()
	go websocket.NewBroadcaster(hub).Relay(ctx, events)

	scheduler := calendar.NewScheduler(engine, cfg.RolloverCron, time.Now, loc)
	if err := scheduler.Start(ctx); err != nil {
		log.Error("rollover scheduler not started", err)
		scheduler = nil
	}

	router := api.NewRouter(api.Services{
		DB:             db,
		Store:          store,
		Engine:         engine,
		Hub:            hub,
		Scheduler:      scheduler,
		Fetcher:        calendar.NewFetcher(cfg.FetchTimeout()),
		Clock:          handlers.Clock{Now: time.Now, Location: loc},
		StaticDir:      cfg.StaticDir,
		MinimumRegions: cfg.MinimumRegions,
		Version:        cfg.AppVersion,
	})

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Listen)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serving http: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// runHealthCheck queries a running server, as Docker HEALTHCHECK does.
func runHealthCheck(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("parsing listen address %q: %w", addr, err)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://localhost:" + port + "/api/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}
