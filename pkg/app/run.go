// Package app provides the entry point shared by the webhook binary and its
// tests: configuration discovery, logging, module loading and the signal loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/danielfernandez00/mi-webhook/internal/config"
	"github.com/danielfernandez00/mi-webhook/internal/core"
	"github.com/danielfernandez00/mi-webhook/internal/gateway"
	"github.com/danielfernandez00/mi-webhook/internal/reload"
	"github.com/danielfernandez00/mi-webhook/internal/security"
	"github.com/danielfernandez00/mi-webhook/internal/telemetry"
)

// appName is used for config and data directory names.
const appName = "mi-webhook"

// RequiredNamespaces lists the module namespaces a runnable config must
// populate.
var RequiredNamespaces = []string{"gateway", "provider", "fulfillment"}

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, ResolveConfigPath is called automatically.
	ConfigPath string

	// EnvFile is loaded into the process environment before the config is
	// read. A missing file is ignored. Defaults to ".env".
	EnvFile string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides the data_dir config key and DefaultDataDir.
	DataDir string

	// Output receives log records. Defaults to os.Stderr.
	Output io.Writer
}

// Run loads configuration, starts all modules, and blocks until a shutdown
// signal is received. SIGHUP and file-change events trigger a live
// configuration reload for modules that implement core.Reloader.
func Run(params RunParams) error {
	if err := loadEnv(params.EnvFile); err != nil {
		return err
	}

	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	cfg, err := LoadConfig(cfgPath)
	if err != nil {
		return err
	}

	redactor := security.NewRedactor()
	out := params.Output
	if out == nil {
		out = os.Stderr
	}
	logger, err := NewLogger(out, cfg.Logging, redactor)
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Setup(context.Background(), telemetry.Config{
		Endpoint:    cfg.Telemetry.Endpoint,
		ServiceName: cfg.Telemetry.ServiceName,
		Version:     params.Version,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = cfg.DataDir
	}
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}

	logger.Info("starting",
		"version", params.Version,
		"commit", params.Commit,
		"built", params.Date,
		"config", cfgPath,
		"data_dir", dataDir,
	)

	baseCtx := core.NewAppContext(logger, dataDir)
	baseCtx.RegisterService(security.RedactorService, redactor)
	appCtx := baseCtx.WithModuleConfigs(cfg.Modules)

	application := core.NewApp(appCtx)
	if err := application.LoadModules(config.Resolve(cfg)); err != nil {
		return err
	}

	// Wire the cleanup scheduler between LoadModules and Start so it starts
	// after the fulfillment handler exists and stops before the store closes.
	if err := wireScheduler(application, appCtx, logger); err != nil {
		return err
	}

	// Register the reload handler BEFORE Start so the gateway admin API can use it.
	handler := reload.NewHandler(application, baseCtx, cfgPath, RequiredNamespaces...)
	appCtx.RegisterService(gateway.ReloaderService, handler)

	if err := application.Start(); err != nil {
		return err
	}

	// --- signal handling ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	// --- file watcher ---
	watcher := reload.NewWatcher(reload.WatcherConfig{
		ConfigPath: cfgPath,
	})
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	watcher.Start(watchCtx)
	defer watcher.Stop()

	// --- main event loop ---
	for {
		select {
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				logger.Info("SIGHUP received, reloading configuration")
				if err := handler.HandleReload(watchCtx); err != nil {
					logger.Error("reload failed", "error", err)
				}
			default:
				logger.Info("shutdown signal received", "signal", sig.String())
				application.Stop()
				logger.Info("shutdown complete")
				return nil
			}
		case evt := <-watcher.Events():
			logger.Info("config file changed, reloading", "path", evt.ConfigPath)
			if err := handler.HandleReload(watchCtx); err != nil {
				logger.Error("reload failed", "error", err)
			}
		}
	}
}

// LoadConfig reads, validates and checks a runnable config.
func LoadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	if err := config.RequireNamespaces(cfg, RequiredNamespaces...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewLogger builds the root logger described by cfg. Every record passes
// through a redacting handler backed by redactor.
func NewLogger(out io.Writer, cfg config.LoggingConfig, redactor *security.Redactor) (*slog.Logger, error) {
	var level slog.Level
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("logging.level: %w", err)
		}
	}
	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		inner = slog.NewTextHandler(out, opts)
	case "json":
		inner = slog.NewJSONHandler(out, opts)
	default:
		return nil, fmt.Errorf("logging.format %q is not one of text, json", cfg.Format)
	}
	return slog.New(security.NewRedactingHandler(inner, redactor)), nil
}

// loadEnv loads KEY=value pairs from path without overriding variables that
// are already set.
func loadEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// ResolveConfigPath searches for a config file in standard locations.
// Search order: $XDG_CONFIG_HOME/mi-webhook/webhook.yaml → ~/.config/mi-webhook/webhook.yaml → ./webhook.yaml
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		candidates = append(candidates, filepath.Join(xdg, appName, "webhook.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", appName, "webhook.yaml"))
	}

	candidates = append(candidates, "webhook.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir returns the default persistent data directory.
// Uses $XDG_DATA_HOME/mi-webhook if set, otherwise ~/.local/share/mi-webhook.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}
