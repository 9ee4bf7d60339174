package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the call session manager configuration
type Config struct {
	// GatewayAddr is the TCP address for the telephony gateway handshake
	GatewayAddr string `env:"GATEWAY_ADDR"`
	// HTTPAddr is the bind address for the lifecycle/audio API
	HTTPAddr string `env:"HTTP_ADDR"`
	// RTPAddr enables the RTP audio bridge when non-empty (UDP ip:port)
	RTPAddr string `env:"RTP_ADDR"`

	// RecordingsDir is where call artifacts are written
	RecordingsDir string `env:"RECORDINGS_DIR"`
	// FFmpegPath is the transcoder binary, "ffmpeg" on PATH by default
	FFmpegPath string `env:"FFMPEG_PATH"`
	// TranscodeTimeout bounds a single transcoder run
	TranscodeTimeout time.Duration `env:"TRANSCODE_TIMEOUT"`

	// ExtensionsPath optionally names a YAML extension directory file
	ExtensionsPath string `env:"EXTENSIONS_PATH"`
	// RelayQueueSize caps the per-side live relay queues
	RelayQueueSize int `env:"RELAY_QUEUE_SIZE"`

	LogLevel string `env:"LOGLEVEL"`
}

// Load reads configuration from command line flags, then lets environment
// variables override them. A .env file in the working directory is loaded
// first when present.
func Load() (*Config, error) {
	// Missing .env is the normal case, not an error
	_ = godotenv.Load()

	cfg := &Config{}

	flag.StringVar(&cfg.GatewayAddr, "gateway", "0.0.0.0:5001", "Gateway handshake listen address")
	flag.StringVar(&cfg.HTTPAddr, "http", "0.0.0.0:8080", "HTTP API listen address")
	flag.StringVar(&cfg.RTPAddr, "rtp", "", "RTP audio bridge listen address (disabled if empty)")
	flag.StringVar(&cfg.RecordingsDir, "recordings", "recordings", "Directory for recording artifacts")
	flag.StringVar(&cfg.FFmpegPath, "ffmpeg", "ffmpeg", "Path to the ffmpeg binary")
	flag.DurationVar(&cfg.TranscodeTimeout, "transcode-timeout", 60*time.Second, "Timeout for one transcoder run")
	flag.StringVar(&cfg.ExtensionsPath, "extensions", "", "Path to extensions.yaml directory file")
	flag.IntVar(&cfg.RelayQueueSize, "relay-queue", 100, "Live relay queue capacity per side")
	flag.StringVar(&cfg.LogLevel, "loglevel", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.RelayQueueSize <= 0 {
		cfg.RelayQueueSize = 100
	}
	if cfg.TranscodeTimeout <= 0 {
		cfg.TranscodeTimeout = 60 * time.Second
	}

	return cfg, nil
}
