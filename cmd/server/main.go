package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/config"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/engine"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/events"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/metrics"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/server"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/session"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/store"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/summarize"
)

const (
	defaultConfigPath = "configs/config.yaml"
	serviceName       = "streaming-transcription-service"
	serviceVersion    = "1.0.0"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Logging)

	logger.Info("Service starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("config_path", *configPath),
	)
	logger.Info("Configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("bind_address", cfg.Server.BindAddress),
		slog.String("stream_path", cfg.Server.StreamPath),
		slog.Int("max_sessions", cfg.Server.MaxSessions),
		slog.Float64("default_buffer_seconds", cfg.Session.DefaultBufferSeconds),
		slog.String("flush_window", cfg.Session.FlushWindow),
		slog.String("engine_endpoint", cfg.Engine.Endpoint),
		slog.String("log_level", cfg.Logging.Level),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Prometheus metrics on a dedicated registry, exposed by the HTTP API.
	registerer := prometheus.NewRegistry()
	appMetrics := metrics.New(registerer)

	eng, err := engine.NewHTTPEngine(engine.Config{
		Endpoint:      cfg.Engine.Endpoint,
		APIKey:        cfg.Engine.APIKey,
		Model:         cfg.Engine.Model,
		Language:      cfg.Engine.Language,
		Timeout:       cfg.Engine.GetTimeoutDuration(),
		MaxRetries:    cfg.Engine.MaxRetries,
		MaxConcurrent: cfg.Engine.MaxConcurrent,
	})
	if err != nil {
		logger.Error("Failed to create transcription engine", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Transcription engine initialized",
		slog.String("endpoint", cfg.Engine.Endpoint),
		slog.String("model", cfg.Engine.Model),
	)

	var transcripts store.Store = store.Noop{}
	if cfg.Store.DSN != "" {
		pg, err := store.NewPostgres(ctx, cfg.Store.DSN)
		if err != nil {
			logger.Error("Failed to connect transcript store", slog.String("error", err.Error()))
			os.Exit(1)
		}
		transcripts = pg
		logger.Info("Transcript store connected")
	} else {
		logger.Info("No store DSN configured, transcripts will not be persisted")
	}
	defer transcripts.Close()

	summarizer := summarize.New(cfg.Summarize.APIKey,
		summarize.WithModel(cfg.Summarize.Model),
		summarize.WithBaseURL(cfg.Summarize.BaseURL),
	)
	if !summarizer.Enabled() {
		logger.Info("No summarize API key configured, summary endpoints disabled")
	}

	publisher := events.New(events.Config{
		Brokers:      cfg.Events.Brokers,
		TopicPartial: cfg.Events.TopicPartial,
		TopicFinal:   cfg.Events.TopicFinal,
	}, logger)
	defer publisher.Close()

	sessionCfg := session.Config{
		DefaultBufferSeconds:   cfg.Session.DefaultBufferSeconds,
		MinBufferSeconds:       cfg.Session.MinBufferSeconds,
		MaxBufferSeconds:       cfg.Session.MaxBufferSeconds,
		MaxBufferBytes:         cfg.Session.MaxBufferBytes,
		FlushWindow:            cfg.Session.FlushWindow,
		FlushTimeout:           cfg.Session.GetFlushTimeoutDuration(),
		StopFlushTimeout:       cfg.Session.GetStopFlushTimeoutDuration(),
		StopGrace:              cfg.Session.GetStopGraceDuration(),
		EngineFailureThreshold: cfg.Session.EngineFailureThreshold,
		DedupEpsilon:           cfg.Session.DedupEpsilon,
		MergeOverwrite:         cfg.Session.MergeOverwrite,
	}

	registry := server.NewRegistry()
	wsServer := server.NewWSServer(server.WSConfig{
		Address:      cfg.Server.BindAddress,
		Port:         cfg.Server.Port,
		StreamPath:   cfg.Server.StreamPath,
		MaxSessions:  cfg.Server.MaxSessions,
		WriteTimeout: cfg.Server.GetWriteTimeoutDuration(),
	}, sessionCfg, eng, registry, logger, appMetrics,
		session.WithRecorder(transcripts),
		session.WithEventSink(publisher),
	)

	var httpServer *server.HTTPServer
	if cfg.Monitor.Enabled {
		httpServer = server.NewHTTPServer(cfg.Monitor, logger, cfg, registry,
			transcripts, summarizer, eng, appMetrics, registerer)
		logger.Info("HTTP API server initialized",
			slog.String("address", fmt.Sprintf("%s:%d", cfg.Monitor.Address, cfg.Monitor.Port)),
		)
	}

	if err := wsServer.Start(); err != nil {
		logger.Error("Failed to start streaming server", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if httpServer != nil {
		if err := httpServer.Start(); err != nil {
			logger.Error("Failed to start HTTP server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("Service started successfully, waiting for signals...",
		slog.String("stream_address", fmt.Sprintf("%s:%d%s",
			cfg.Server.BindAddress, cfg.Server.Port, cfg.Server.StreamPath)),
	)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	logger.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Both servers drain in parallel; session teardown dominates the bound.
	var g errgroup.Group
	g.Go(func() error { return wsServer.Stop(shutdownCtx) })
	if httpServer != nil {
		g.Go(func() error { return httpServer.Stop(shutdownCtx) })
	}
	if err := g.Wait(); err != nil {
		logger.Error("Error during shutdown", slog.String("error", err.Error()))
	}

	stats := eng.GetStats()
	logger.Info("Final engine statistics",
		slog.Uint64("total_requests", stats.TotalRequests),
		slog.Uint64("success_requests", stats.SuccessRequests),
		slog.Uint64("failed_requests", stats.FailedRequests),
		slog.Uint64("total_retries", stats.TotalRetries),
	)

	logger.Info("Service stopped")
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
