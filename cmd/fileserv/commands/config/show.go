package config

import (
	"github.com/marmos91/fileserv/internal/cli/output"
	"github.com/marmos91/fileserv/pkg/config"
	"github.com/spf13/cobra"
)

const redacted = "<redacted>"

var (
	showOutput  string
	showSecrets bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the effective fileserv configuration: the file merged with
defaults and FILESERV_ environment overrides.

Secrets are redacted unless --show-secrets is given.

Examples:
  # Show default config as YAML
  fileserv config show

  # Show as JSON
  fileserv config show --output json

  # Show specific config file
  fileserv config show --config /etc/fileserv/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
	showCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print secrets in clear text")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	if !showSecrets {
		redactSecrets(cfg)
	}

	if format == output.FormatJSON {
		return output.PrintJSON(cmd.OutOrStdout(), cfg)
	}
	return output.PrintYAML(cmd.OutOrStdout(), cfg)
}

func redactSecrets(cfg *config.Config) {
	if cfg.ControlPlane.JWT.Secret != "" {
		cfg.ControlPlane.JWT.Secret = redacted
	}
	if cfg.Admin.PasswordHash != "" {
		cfg.Admin.PasswordHash = redacted
	}
	if cfg.Database.Postgres.Password != "" {
		cfg.Database.Postgres.Password = redacted
	}
}
