package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charlie0129/activity-monitor-go/internal/api"
	"github.com/charlie0129/activity-monitor-go/internal/config"
	"github.com/charlie0129/activity-monitor-go/internal/database"
	"github.com/charlie0129/activity-monitor-go/internal/monitor"
	"github.com/charlie0129/activity-monitor-go/internal/probe"
	"github.com/charlie0129/activity-monitor-go/internal/rollup"
	"github.com/charlie0129/activity-monitor-go/internal/rules"
	"github.com/charlie0129/activity-monitor-go/internal/uploader"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		slog.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Load productivity rules
	ruleSet, err := rules.Load(cfg.RulesPath)
	if err != nil {
		slog.Error("failed to load rules, using defaults", "path", cfg.RulesPath, "error", err)
		rs := rules.Default()
		ruleSet = &rs
	}

	// Upload client and retry queue
	uploadClient := uploader.NewClient(cfg.UploadURL, cfg.UploadFieldName, "")
	uploadQueue, err := uploader.NewQueue(uploadClient, db, uploader.Options{
		InitialDelay:      cfg.UploadInitialDelay(),
		MaxDelay:          cfg.UploadMaxDelay(),
		MaxRetries:        cfg.UploadMaxRetries,
		DrainInterval:     cfg.UploadDrainInterval(),
		DeleteAfterUpload: cfg.DeleteAfterUpload,
	})
	if err != nil {
		slog.Error("failed to initialize upload queue", "error", err)
		os.Exit(1)
	}
	uploadQueue.Start()

	// Event stream for the host UI
	hub := api.NewSSEHub()

	// Monitoring controller
	controller := monitor.NewController(monitor.Options{
		Clock:           monitor.SystemClock(),
		Scheduler:       monitor.NewScheduler(),
		Probe:           probe.New(),
		DB:              db,
		Sink:            hub,
		Rules:           *ruleSet,
		WindowInterval:  cfg.WindowInterval(),
		BrowserInterval: cfg.BrowserInterval(),
		IdlePoll:        cfg.IdlePollInterval(),
		IdleThreshold:   cfg.IdleThreshold(),
		UploadClient:    uploadClient,
		UploadQueue:     uploadQueue,
	})

	controller.StartWindowSampling(cfg.WindowInterval())
	controller.StartBrowserSampling(cfg.BrowserInterval())
	controller.StartIdleMonitor(cfg.IdleThreshold())

	// Hot-reload the rules file
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	if cfg.RulesPath != "" {
		go func() {
			if err := rules.Watch(watchCtx, cfg.RulesPath, controller.UpdateRules); err != nil {
				slog.Error("rules watcher stopped", "error", err)
			}
		}()
	}

	// Daily rollup scheduler
	roller := rollup.New(db, controller.Stats, cfg.EventRetention(), cfg.GetTimezone())
	roller.StartScheduler(cfg.RollupSchedule)

	// Setup HTTP server
	handler := api.NewHandler(controller, db, hub)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:        cfg.ListenAddr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelWatch()
		roller.Stop()
		controller.Shutdown() // final accounting, stops samplers and queue
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.ListenAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
