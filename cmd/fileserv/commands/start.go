package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/marmos91/fileserv/internal/logger"
	"github.com/marmos91/fileserv/internal/telemetry"
	"github.com/marmos91/fileserv/pkg/config"
	"github.com/marmos91/fileserv/pkg/controlplane"
	"github.com/spf13/cobra"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the fileserv server",
	Long: `Start the fileserv server in the foreground.

Use --config to specify a custom configuration file, or it will use the
default location at $XDG_CONFIG_HOME/fileserv/config.yaml. Every setting
can be overridden with a FILESERV_ environment variable.

Changing logging.level in the configuration file takes effect without a
restart.

Examples:
  # Start with the default config
  fileserv start

  # Start with custom config file
  fileserv start --config /etc/fileserv/config.yaml

  # Start with environment variable overrides
  FILESERV_LOGGING_LEVEL=DEBUG fileserv start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file (default: $XDG_STATE_HOME/fileserv/fileserv.pid)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "fileserv",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err)
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "fileserv",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.KeyError, err)
		}
	}()

	logger.Info("Starting fileserv", "version", Version, "commit", Commit)
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	}

	metricsResult := config.InitializeMetrics(cfg)
	if metricsResult.Server == nil {
		logger.Info("Metrics collection disabled")
	}

	cp, err := controlplane.New(ctx, cfg, metricsResult)
	if err != nil {
		return err
	}
	defer func() {
		if err := cp.Close(); err != nil {
			logger.Error("Control plane close error", logger.KeyError, err)
		}
	}()

	adminPassword, err := cp.EnsureAdminUser(ctx, cfg.Admin.Username, cfg.Admin.PasswordHash)
	if err != nil {
		return err
	}
	if adminPassword != "" {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "\n*** IMPORTANT: Admin user %q created with password: %s ***\n", cfg.Admin.Username, adminPassword)
		_, _ = fmt.Fprintln(out, "Please save this password. It will not be shown again.")
		_, _ = fmt.Fprintln(out)
	}

	if configPath := watchablePath(); configPath != "" {
		if err := config.Watch(configPath, applyReload, func(err error) {
			logger.Warn("Ignoring invalid configuration change", logger.KeyError, err)
		}); err != nil {
			logger.Warn("Configuration hot reload disabled", logger.KeyError, err)
		}
	}

	pidPath := pidFile
	if pidPath == "" {
		pidPath = GetDefaultPidFile()
	}
	if err := writePidFile(pidPath); err != nil {
		return err
	}
	defer func() { _ = os.Remove(pidPath) }()

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- cp.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown", "signal", sig.String())
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("Server shutdown error", logger.KeyError, err)
			return err
		}
		logger.Info("Server stopped gracefully")
	case err := <-serverDone:
		if err != nil {
			logger.Error("Server error", logger.KeyError, err)
			return err
		}
		logger.Info("Server stopped")
	}
	return nil
}

// watchablePath returns the configuration file to watch, or "" when the
// server runs from defaults.
func watchablePath() string {
	if f := GetConfigFile(); f != "" {
		return f
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return ""
}

// applyReload applies the settings that can change at runtime.
func applyReload(cfg *config.Config) {
	logger.SetLevel(cfg.Logging.Level)
	logger.Info("Configuration reloaded", "level", cfg.Logging.Level)
}

func writePidFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}
