package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/marmos91/fileserv/cmd/fsctl/cmdutil"
	"github.com/marmos91/fileserv/internal/cli/output"
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the authenticated user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := cmdutil.GetAuthenticatedClient()
		if err != nil {
			return err
		}
		me, err := client.Me()
		if err != nil {
			return fmt.Errorf("failed to fetch identity: %w", err)
		}
		details := output.NewDetails().
			Add("Username", me.Username).
			Add("Admin", cmdutil.BoolToYesNo(me.IsAdmin)).
			Add("Groups", strings.Join(me.Groups, ", ")).
			Add("Server", client.BaseURL())
		return cmdutil.PrintResource(os.Stdout, me, details)
	},
}
