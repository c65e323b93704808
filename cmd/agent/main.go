package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/courtcut/courtcut-agent/internal/api"
	"github.com/courtcut/courtcut-agent/internal/catalog"
	"github.com/courtcut/courtcut-agent/internal/config"
	"github.com/courtcut/courtcut-agent/internal/db"
	"github.com/courtcut/courtcut-agent/internal/encoder"
	"github.com/courtcut/courtcut-agent/internal/events"
	"github.com/courtcut/courtcut-agent/internal/export"
	"github.com/courtcut/courtcut-agent/internal/logging"
	"github.com/courtcut/courtcut-agent/internal/pipeline"
	"github.com/courtcut/courtcut-agent/internal/playback"
	"github.com/courtcut/courtcut-agent/internal/preflight"
	"github.com/courtcut/courtcut-agent/internal/ui"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	for _, dir := range []string{cfg.DataDir(), cfg.ClipsDir(), cfg.ThumbnailsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting courtcut agent",
		"version", config.Version,
		"commit", config.GitCommit,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := catalog.NewRepository(database.Conn())

	authToken, err := ensureAuthToken(repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                  COURTCUT AGENT v%-24s ║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  API URL:    http://127.0.0.1:%-27d ║\n", cfg.Port())
	fmt.Printf("║  Auth Token: %-45s ║\n", authToken)
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()

	catalogSvc := catalog.NewService(repo, logger)

	enc := encoder.New(encoder.DefaultConfig(cfg.FFmpegPath(), logger))
	validator := preflight.New(preflight.Config{
		EncoderPath:  cfg.FFmpegPath(),
		OutputDir:    cfg.ClipsDir(),
		LowDiskBytes: cfg.LowDiskBytes(),
		Logger:       logger,
	})
	systemCheck := preflight.NewCachedValidator(validator, 0)
	if res := systemCheck.Refresh(context.Background()); !res.OK {
		logger.Warn("system check reported issues", "issues", res.Issues)
	}

	tracker := pipeline.NewTracker()
	clipPipeline := pipeline.New(pipeline.Config{
		ClipsDir:      cfg.ClipsDir(),
		ThumbnailsDir: cfg.ThumbnailsDir(),
		Logger:        logger,
	}, enc, catalogSvc, tracker)
	controller := pipeline.NewController(clipPipeline, systemCheck, pipeline.ControllerConfig{
		MaxAttempts: cfg.MaxAttempts(),
		Logger:      logger,
	})

	hub := events.NewHub(logger)
	hub.Critical(string(pipeline.EventCreated), string(pipeline.EventFailed), string(pipeline.EventCancelled))

	apiServer := api.NewServer(api.ServerConfig{
		Port:           cfg.Port(),
		Version:        config.Version,
		CatalogService: catalogSvc,
		ConfigStore:    repo,
		Controller:     controller,
		Canceller:      clipPipeline,
		SystemCheck:    systemCheck,
		Exporter:       export.NewBatcher(logger),
		PlaybackServer: playback.NewServer(logger, cfg.ClipsDir(), cfg.ThumbnailsDir()),
		Hub:            hub,
		Logger:         logger,
		StartTime:      startTime,
	})

	quitCh := make(chan struct{})
	var quitOnce sync.Once
	quit := func() { quitOnce.Do(func() { close(quitCh) }) }

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
			quit()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			quit()
		case <-quitCh:
		}
	}()

	var tray *ui.Tray
	if cfg.Headless() {
		logger.Info("running in headless mode (no system tray)")
	} else {
		tray = ui.NewTray(ui.TrayConfig{
			CatalogService: catalogSvc,
			Canceller:      clipPipeline,
			Events:         hub,
			Logger:         logger,
			OnQuit:         quit,
		})
		go tray.Run()
	}

	<-quitCh

	logger.Info("initiating graceful shutdown")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := controller.Shutdown(shutdownCtx); err != nil {
		logger.Warn("clip requests still running at shutdown", "active", tracker.Active(), "error", err)
	}
	hub.Close()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}
	if tray != nil {
		tray.Quit()
	}

	logger.Info("shutdown complete")
	return nil
}

func ensureAuthToken(repo catalog.Repository) (string, error) {
	ctx := context.Background()

	existing, err := repo.GetConfig(ctx, api.AuthTokenKey)
	if err == nil && existing != "" {
		return existing, nil
	}

	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", err
	}
	token := hex.EncodeToString(tokenBytes)

	if err := repo.SetConfig(ctx, api.AuthTokenKey, token); err != nil {
		return "", err
	}

	return token, nil
}
