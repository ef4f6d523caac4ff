package commands

import (
	"fmt"
	"path/filepath"

	"github.com/marmos91/fileserv/internal/logger"
	"github.com/marmos91/fileserv/pkg/config"
	"github.com/marmos91/fileserv/pkg/controlplane/store"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// GetDefaultPidFile returns the default PID file path.
func GetDefaultPidFile() string {
	return filepath.Join(config.GetStateDir(), "fileserv.pid")
}

// getConfigSource describes where the configuration was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// openStore loads the configuration and opens the control plane database
// for offline management commands.
func openStore() (*store.GORMStore, func(), error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open control plane database: %w", err)
	}
	return st, func() { _ = st.Close() }, nil
}
