// Command tradedesk runs the headless trading dashboard. It loads
// configuration, validates it, wires dependencies, sets up signal handling,
// and starts the application in the configured mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/alanyoungcy/tradedesk/internal/app"
	"github.com/alanyoungcy/tradedesk/internal/auth"
	"github.com/alanyoungcy/tradedesk/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (optional)")
	sealTo := flag.String("seal-token", "", "encrypt identity.token with identity.token_password into this file and exit")
	flag.Parse()

	// Bootstrap logger until the configured level and sinks are known.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	if *sealTo != "" {
		if err := sealToken(cfg, *sealTo); err != nil {
			fmt.Fprintf(os.Stderr, "seal-token: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "sealed token written to %s\n", *sealTo)
		return
	}

	logger = newLogger(cfg)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("tradedesk starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
		slog.Any("settings", config.RedactedConfig(cfg)),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		// context.Canceled is expected on clean shutdown.
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			application.Close()
			os.Exit(1)
		}
	}

	logger.Info("tradedesk stopped")
}

// newLogger builds the JSON logger at the configured level, teeing into a
// rotating file when log.file is set.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if cfg.Log.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   cfg.Log.Compress,
		})
	}

	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
}

func sealToken(cfg *config.Config, path string) error {
	if cfg.Identity.Token == "" {
		return errors.New("identity.token (or TRADEDESK_IDENTITY_TOKEN) is empty")
	}
	if cfg.Identity.TokenPassword == "" {
		return errors.New("identity.token_password (or TRADEDESK_IDENTITY_TOKEN_PASSWORD) is empty")
	}
	sealed, err := auth.SealToken(cfg.Identity.Token, cfg.Identity.TokenPassword)
	if err != nil {
		return err
	}
	return os.WriteFile(path, sealed, 0o600)
}
