package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	"github.com/emirlan/inboxlm/internal/adapter"
	"github.com/emirlan/inboxlm/internal/ai"
	"github.com/emirlan/inboxlm/internal/config"
	"github.com/emirlan/inboxlm/internal/digest"
	"github.com/emirlan/inboxlm/internal/notifier"
	"github.com/emirlan/inboxlm/internal/pipeline"
	"github.com/emirlan/inboxlm/internal/server"
	"github.com/emirlan/inboxlm/internal/store"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	jsonLogs := flag.Bool("json-logs", false, "Emit logs as JSON instead of pretty text")
	dryRun := flag.Bool("dry-run", false, "Log notifications instead of sending them")
	flag.Parse()

	// A missing .env is fine; real deployments use the environment directly.
	_ = godotenv.Load()

	setupLogging(*debug, *jsonLogs)

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		if errors.Is(err, config.ErrMissingAPIKey) {
			slog.Error("GEMINI_API_KEY is not set in environment variables")
		} else {
			slog.Error("Invalid configuration", "error", err)
		}
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("Received shutdown signal", "signal", sig)
		cancel()
	}()

	// Open the message store
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("Failed to open store", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// Initialize the AI annotator
	gemini := ai.NewGeminiClient(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.Endpoint, cfg.AI.Timeout())
	annotator := ai.NewAnnotator(gemini, cfg.AI.MaxAttempts, cfg.AI.BaseDelay())

	// Initialize platform adapters
	var adapters []adapter.Adapter
	var slackSender adapter.Sender

	if cfg.Gmail.Enabled {
		adapters = append(adapters, adapter.NewGmailAdapter(cfg.Gmail))
	}
	if cfg.Slack.Enabled {
		sl := adapter.NewSlackAdapter(cfg.Slack)
		adapters = append(adapters, sl)
		slackSender = sl
	}
	if cfg.WhatsApp.Enabled {
		wa := adapter.NewWhatsAppAdapter(cfg.WhatsApp)
		adapters = append(adapters, wa)
		// The WhatsApp session connects in the background; messages buffer
		// once the QR pairing completes.
		go func() {
			if err := wa.Connect(ctx); err != nil {
				slog.Error("WhatsApp connection failed", "error", err)
			}
		}()
		defer wa.Disconnect()
	}

	// Initialize notifier
	var urgencyNotifier notifier.Notifier
	if *dryRun || !cfg.Pushover.Enabled {
		urgencyNotifier = notifier.NewLogNotifier()
		slog.Info("Urgency notifications will be logged only")
	} else {
		urgencyNotifier = notifier.NewPushoverNotifier(cfg.Pushover)
	}

	pl := pipeline.New(pipeline.Deps{
		Store:       st,
		Annotator:   annotator,
		Adapters:    adapters,
		SlackSender: slackSender,
		Notifier:    urgencyNotifier,
	})
	dg := digest.New(st, annotator)

	// Start the API and dashboard server
	srv := server.New(st, pl, dg, cfg.Server.Port)
	if err := srv.Start(); err != nil {
		slog.Error("Failed to start server", "error", err)
		os.Exit(1)
	}

	slog.Info("Unified inbox started",
		"adapters", len(adapters),
		"port", cfg.Server.Port)

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("Server shutdown failed", "error", err)
	}

	slog.Info("Shutdown complete")
}

func setupLogging(debug, jsonLogs bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if jsonLogs {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	}
	slog.SetDefault(slog.New(handler))
}
