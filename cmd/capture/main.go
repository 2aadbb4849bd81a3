// Command capture streams a WAV file to the transcription server and prints
// live captions, standing in for a microphone client.
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

	"golang.org/x/sync/errgroup"

	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/capture"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/config"
	"github.com/Dishandkarkera/AI-Video-Audio-Summarizer/internal/protocol"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	filePath := flag.String("file", "", "WAV file to stream (required)")
	serverURL := flag.String("server", "", "Stream endpoint override, e.g. ws://localhost:8080/v1/stream")
	flag.Parse()

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "Usage: capture -file <audio.wav> [-config path] [-server url]")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	url := cfg.Capture.ServerURL
	if *serverURL != "" {
		url = *serverURL
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(cfg, url, *filePath, logger); err != nil {
		logger.Error("Capture failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, url, filePath string, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	source, err := capture.NewFileSource(filePath, cfg.Capture.GetChunkIntervalDuration())
	if err != nil {
		return err
	}

	pipeline, err := capture.NewPipeline(source, capture.PipelineConfig{
		Interval:     cfg.Capture.GetChunkIntervalDuration(),
		QueueSize:    cfg.Capture.QueueSize,
		Policy:       cfg.Capture.BackpressurePolicy,
		BlockTimeout: cfg.Capture.GetBlockTimeoutDuration(),
	}, logger)
	if err != nil {
		return err
	}

	client, err := capture.Dial(ctx, capture.ClientConfig{
		ServerURL:     url,
		BufferSeconds: cfg.Capture.BufferSeconds,
	}, logger)
	if err != nil {
		return err
	}
	logger.Info("Streaming started",
		slog.String("session_id", client.SessionID()),
		slog.String("file", filePath),
		slog.Duration("chunk_interval", cfg.Capture.GetChunkIntervalDuration()),
	)

	pipeline.Start()
	defer pipeline.Stop()

	var finalText string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Upload until the file runs out or the user interrupts, then
		// stop the session and wait for the final caption.
		if err := client.Stream(gctx, pipeline.Chunks()); err != nil && gctx.Err() == nil {
			return err
		}
		pipeline.Stop()

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		text, err := client.Stop(stopCtx)
		if err != nil {
			logger.Warn("Stop did not complete cleanly", slog.String("error", err.Error()))
		}
		finalText = text
		return nil
	})
	g.Go(func() error {
		for caption := range client.Captions() {
			switch caption.Kind {
			case protocol.KindPartial:
				fmt.Printf("\r[partial] %s", caption.Text)
			case protocol.KindFinal:
				fmt.Printf("\n[final]   %s\n", caption.Text)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Streaming finished",
		slog.Uint64("chunks_sent", pipeline.Emitted()),
		slog.Uint64("chunks_dropped", pipeline.Dropped()),
		slog.Int("transcript_chars", len(finalText)),
	)
	return nil
}
