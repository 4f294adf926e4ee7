// Package cmd hosts the shared process entrypoint: config discovery, logger
// lifecycle, and signal-driven shutdown.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/core/logger"
	coretelegram "github.com/m3rciful/relaybot/core/telegram"
)

// ConfigCarrier exposes the core part of an application config.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp produces the run options for the Telegram loop once the
// application is bootstrapped.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options wires an application into the shared runner.
type Options struct {
	// ConfigEnvVar names the env var holding the config path. Defaults to CONFIG_PATH.
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	// Overridable for tests.
	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// Run executes the application until SIGINT or SIGTERM.
func Run(opts Options) error {
	envVar := opts.ConfigEnvVar
	if envVar == "" {
		envVar = "CONFIG_PATH"
	}
	path := os.Getenv(envVar)
	if path == "" {
		path = opts.DefaultConfigPath
	}
	if opts.LoadConfig == nil || opts.Bootstrap == nil {
		return fmt.Errorf("runner: LoadConfig and Bootstrap are required")
	}

	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("runner: load config %q: %w", path, err)
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			fmt.Fprintf(os.Stderr, "logger shutdown: %v\n", err)
		}
	}()

	app, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("runner: bootstrap: %w", err)
	}

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("runner: telegram options: %w", err)
	}

	// Wrap OnStart so every application gets a uniform readiness line.
	prevOnStart := runOpts.OnStart
	runOpts.OnStart = func(rt coretelegram.Runtime) {
		if prevOnStart != nil {
			prevOnStart(rt)
		}
		if logger.L != nil {
			logger.L.LogAttrs(context.Background(), slog.LevelInfo, "app ready",
				slog.String("component", "app"),
				slog.String("event", "ready"),
			)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runTelegram := opts.RunTelegram
	if runTelegram == nil {
		runTelegram = coretelegram.RunTelegram
	}
	return runTelegram(ctx, runOpts)
}
