// Package commands implements the fileserv server CLI.
package commands

import (
	"github.com/marmos91/fileserv/cmd/fileserv/commands/config"
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "fileserv",
	Short: "fileserv - multi-user file server with quotas and share links",
	Long: `fileserv serves files from storage pools to authenticated users.

Pools are directories on local disks. Zones expose folders inside a pool
to users, with per-user quotas and fine-grained grants. Files can be
shared with anyone through expiring, optionally password protected links.

This binary runs the server and manages its local state. Use fsctl to
administer a running server over its REST API.

Use "fileserv [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command for testing purposes.
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/fileserv/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(config.Cmd)
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
