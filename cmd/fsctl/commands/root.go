// Package commands implements the CLI commands for the fsctl client.
package commands

import (
	"github.com/marmos91/fileserv/cmd/fsctl/cmdutil"
	accesscmd "github.com/marmos91/fileserv/cmd/fsctl/commands/access"
	ctxcmd "github.com/marmos91/fileserv/cmd/fsctl/commands/context"
	linkcmd "github.com/marmos91/fileserv/cmd/fsctl/commands/link"
	poolcmd "github.com/marmos91/fileserv/cmd/fsctl/commands/pool"
	quotacmd "github.com/marmos91/fileserv/cmd/fsctl/commands/quota"
	zonecmd "github.com/marmos91/fileserv/cmd/fsctl/commands/zone"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fsctl",
	Short: "fileserv control - remote management client",
	Long: `fsctl is the command-line client for fileserv servers.

Use it to manage storage pools, share zones, permissions and share links,
and to inspect quotas through the fileserv REST API.

Use "fsctl [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdutil.Flags.ServerURL, _ = cmd.Flags().GetString("server")
		cmdutil.Flags.Token, _ = cmd.Flags().GetString("token")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
		cmdutil.Flags.NoColor, _ = cmd.Flags().GetBool("no-color")
		cmdutil.Flags.Verbose, _ = cmd.Flags().GetBool("verbose")
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().String("server", "", "Server URL (overrides stored credential)")
	rootCmd.PersistentFlags().String("token", "", "Bearer token (overrides stored credential)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json|yaml)")
	rootCmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(ctxcmd.Cmd)
	rootCmd.AddCommand(poolcmd.Cmd)
	rootCmd.AddCommand(zonecmd.Cmd)
	rootCmd.AddCommand(linkcmd.Cmd)
	rootCmd.AddCommand(quotacmd.Cmd)
	rootCmd.AddCommand(accesscmd.Cmd)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}
