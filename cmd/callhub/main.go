package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sebas/callhub/internal/banner"
	"github.com/sebas/callhub/internal/call"
	"github.com/sebas/callhub/internal/config"
	"github.com/sebas/callhub/internal/events"
	"github.com/sebas/callhub/internal/gateway"
	"github.com/sebas/callhub/internal/httpapi"
	"github.com/sebas/callhub/internal/ingest"
	"github.com/sebas/callhub/internal/logger"
	"github.com/sebas/callhub/internal/recorder"
	"github.com/sebas/callhub/internal/rtpingest"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger.InitLogger(os.Stdout)
	logger.SetLevel(cfg.LogLevel)

	extensions, err := config.LoadExtensions(cfg.ExtensionsPath)
	if err != nil {
		slog.Error("Failed to load extension directory", "error", err)
		os.Exit(1)
	}

	banner.Print("CallHub Session Manager", []banner.ConfigLine{
		{Label: "Gateway", Value: cfg.GatewayAddr},
		{Label: "HTTP API", Value: cfg.HTTPAddr},
		{Label: "RTP bridge", Value: orDisabled(cfg.RTPAddr)},
		{Label: "Recordings", Value: cfg.RecordingsDir},
		{Label: "Log level", Value: logger.GetLevel()},
	})

	hub := events.NewHub()
	finalizer := recorder.NewFinalizer(
		cfg.RecordingsDir,
		recorder.NewFFmpegTranscoder(cfg.FFmpegPath),
		cfg.TranscodeTimeout,
	)
	registry := call.NewRegistry(finalizer, hub, cfg.RelayQueueSize)
	pipeline := ingest.NewPipeline(registry, hub)

	listener := gateway.NewListener(registry, extensions)
	apiServer := httpapi.NewServer(cfg.HTTPAddr, registry, pipeline, hub, cfg.RecordingsDir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := listener.Listen(cfg.GatewayAddr); err != nil {
			slog.Error("Gateway listener error", "error", err)
			cancel()
		}
	}()

	if err := apiServer.Start(); err != nil {
		slog.Error("Failed to start API server", "error", err)
		os.Exit(1)
	}

	if cfg.RTPAddr != "" {
		bridge := rtpingest.NewBridge(pipeline)
		// Gateway calls carry their RTP source in the handshake; answering
		// binds it here, termination unbinds it
		registry.BindAudioSources(bridge)
		go func() {
			if err := bridge.Run(ctx, cfg.RTPAddr); err != nil {
				slog.Error("RTP bridge error", "error", err)
			}
		}()
	}

	slog.Info("CallHub started",
		"gateway", cfg.GatewayAddr,
		"http", cfg.HTTPAddr,
		"extensions", extensions.Count())

	// Wait for signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("Received signal, shutting down", "signal", sig)

	cancel()
	_ = listener.Close()
	_ = apiServer.Stop()

	// Finalize any open recordings before exit
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.TranscodeTimeout+5*time.Second)
	defer shutdownCancel()
	registry.CloseAll(shutdownCtx)

	slog.Info("Shutdown complete")
}

func orDisabled(v string) string {
	if v == "" {
		return "disabled"
	}
	return v
}
