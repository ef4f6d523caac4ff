package pool

import (
	"fmt"
	"os"

	"github.com/marmos91/fileserv/cmd/fsctl/cmdutil"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List storage pools",
	Long: `List all storage pools with their capacity and defaults.

Examples:
  # List pools as table
  fsctl pool list

  # List as JSON
  fsctl pool list -o json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var getCmd = &cobra.Command{
	Use:   "get <pool>",
	Short: "Show a storage pool",
	Long:  `Show a storage pool by ID or name.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	pools, err := client.ListPools()
	if err != nil {
		return fmt.Errorf("failed to list pools: %w", err)
	}
	return cmdutil.PrintOutput(os.Stdout, pools, len(pools) == 0, "No pools found.", PoolList(pools))
}

func runGet(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	pool, err := resolve(client, args[0])
	if err != nil {
		return err
	}
	return cmdutil.PrintResource(os.Stdout, pool, poolDetails(pool))
}
