package config

import (
	"fmt"

	"github.com/marmos91/fileserv/internal/bytesize"
	"github.com/marmos91/fileserv/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the fileserv configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  fileserv config validate

  # Validate specific config file
  fileserv config validate --config /etc/fileserv/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	_, _ = fmt.Fprintln(out, "Validation: OK")

	if warnings := Warnings(cfg); len(warnings) > 0 {
		_, _ = fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", w)
		}
	}

	_, _ = fmt.Fprintf(out, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(out, "  Database type:   %s\n", cfg.Database.Type)
	_, _ = fmt.Fprintf(out, "  API port:        %d\n", cfg.ControlPlane.Port)
	_, _ = fmt.Fprintf(out, "  Quota ledger:    %s (cache %s)\n", emptyOr(cfg.Quota.LedgerPath, "memory"), bytesize.Format(int64(cfg.Quota.BlockCacheSize), false))
	_, _ = fmt.Fprintf(out, "  Link reaper:     %s\n", durationOr(cfg.Links.ReapInterval.String(), cfg.Links.ReapInterval == 0))
	_, _ = fmt.Fprintf(out, "  Log level:       %s\n", cfg.Logging.Level)
	return nil
}

// Warnings lists settings that are valid but probably not intended.
func Warnings(cfg *config.Config) []string {
	var warnings []string
	if !cfg.ControlPlane.HasJWTSecret() {
		warnings = append(warnings, "JWT secret not configured - the server will refuse to start")
	}
	if cfg.Quota.LedgerPath == "" {
		warnings = append(warnings, "quota.ledger_path is empty - usage is recomputed from zero on every restart")
	}
	if cfg.Admin.PasswordHash == "" {
		warnings = append(warnings, "admin.password_hash is empty - a random admin password is printed on first start")
	}
	if cfg.Links.DefaultExpiry == 0 {
		warnings = append(warnings, "links.default_expiry is 0 - share links without an explicit expiry never expire")
	}
	return warnings
}

func emptyOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func durationOr(value string, disabled bool) string {
	if disabled {
		return "disabled"
	}
	return value
}
