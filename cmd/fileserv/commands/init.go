package commands

import (
	"fmt"

	"github.com/marmos91/fileserv/internal/cli/prompt"
	"github.com/marmos91/fileserv/pkg/config"
	"github.com/marmos91/fileserv/pkg/controlplane/api"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/spf13/cobra"
)

var (
	initForce         bool
	initAdminUser     string
	initAdminPassword string
	initNoPassword    bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a configuration file",
	Long: `Initialize a fileserv configuration file.

The file is created at $XDG_CONFIG_HOME/fileserv/config.yaml unless --config
is given. A random JWT secret is generated, and the administrator password
is hashed into the file so the first start creates the account with it.

Examples:
  # Initialize interactively (prompts for the admin password)
  fileserv init

  # Non-interactive, custom path
  fileserv init --config /etc/fileserv/config.yaml --admin-password 's3cret-pass'

  # Let the first start generate and print a random admin password
  fileserv init --no-password

  # Force overwrite existing config
  fileserv init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
	initCmd.Flags().StringVar(&initAdminUser, "admin-username", config.DefaultAdminUsername, "Administrator username")
	initCmd.Flags().StringVar(&initAdminPassword, "admin-password", "", "Administrator password (prompted if omitted)")
	initCmd.Flags().BoolVar(&initNoPassword, "no-password", false, "Do not set an admin password; one is generated on first start")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.NewInitialConfig()
	if err != nil {
		return err
	}
	cfg.Admin.Username = initAdminUser

	if !initNoPassword {
		password := initAdminPassword
		if password == "" {
			password, err = prompt.NewPassword(fmt.Sprintf("Password for %s", initAdminUser))
			if err != nil {
				if prompt.IsAborted(err) {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "\nAborted.")
					return nil
				}
				return err
			}
		}
		cfg.Admin.PasswordHash, err = models.HashPassword(password)
		if err != nil {
			return fmt.Errorf("invalid admin password: %w", err)
		}
	}

	if err := config.WriteInitialConfig(cfg, configPath, initForce); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Configuration file created at: %s\n", configPath)
	_, _ = fmt.Fprintln(out, "\nNext steps:")
	_, _ = fmt.Fprintln(out, "  1. Edit the configuration file to customize your setup")
	_, _ = fmt.Fprintf(out, "  2. Start the server with: fileserv start --config %s\n", configPath)
	_, _ = fmt.Fprintf(out, "  3. Log in with: fsctl login --server http://localhost:%d -u %s\n", cfg.ControlPlane.Port, cfg.Admin.Username)
	_, _ = fmt.Fprintln(out, "\nSecurity note:")
	_, _ = fmt.Fprintln(out, "  A random JWT secret has been written to the configuration file.")
	_, _ = fmt.Fprintln(out, "  For production, keep it out of the file and use an environment variable:")
	_, _ = fmt.Fprintf(out, "    export %s=$(openssl rand -hex 32)\n", api.EnvControlPlaneSecret)
	return nil
}
