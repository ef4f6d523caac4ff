package pool

import (
	"fmt"
	"os"

	"github.com/marmos91/fileserv/cmd/fsctl/cmdutil"
	"github.com/spf13/cobra"
)

var (
	disableCascade bool
	deleteForce    bool
)

var enableCmd = &cobra.Command{
	Use:   "enable <pool>",
	Short: "Enable a storage pool",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnable,
}

var disableCmd = &cobra.Command{
	Use:   "disable <pool>",
	Short: "Disable a storage pool",
	Long: `Disable a storage pool. Every operation on its zones is refused while
it is disabled. With --cascade its zones are disabled as well and stay
disabled when the pool is enabled again.

Examples:
  fsctl pool disable media
  fsctl pool disable media --cascade`,
	Args: cobra.ExactArgs(1),
	RunE: runDisable,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <pool>",
	Short: "Delete a storage pool",
	Long: `Delete a storage pool. Pools that still host zones cannot be deleted.
Files on disk are left untouched.

Examples:
  fsctl pool delete media
  fsctl pool delete media --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	disableCmd.Flags().BoolVar(&disableCascade, "cascade", false, "Also disable every zone in the pool")
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

func runEnable(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	pool, err := resolve(client, args[0])
	if err != nil {
		return err
	}
	resp, err := client.EnablePool(pool.ID)
	if err != nil {
		return fmt.Errorf("failed to enable pool: %w", err)
	}
	return cmdutil.PrintResourceWithSuccess(os.Stdout, resp, fmt.Sprintf("Pool '%s' enabled", pool.Name))
}

func runDisable(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	pool, err := resolve(client, args[0])
	if err != nil {
		return err
	}
	resp, err := client.DisablePool(pool.ID, disableCascade)
	if err != nil {
		return fmt.Errorf("failed to disable pool: %w", err)
	}
	msg := fmt.Sprintf("Pool '%s' disabled", pool.Name)
	if resp.ZonesDisabled > 0 {
		msg += fmt.Sprintf(" (%d zones disabled)", resp.ZonesDisabled)
	}
	return cmdutil.PrintResourceWithSuccess(os.Stdout, resp, msg)
}

func runDelete(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	pool, err := resolve(client, args[0])
	if err != nil {
		return err
	}
	return cmdutil.RunDeleteWithConfirmation("Pool", pool.Name, deleteForce, func() error {
		if err := client.DeletePool(pool.ID); err != nil {
			return fmt.Errorf("failed to delete pool: %w", err)
		}
		return nil
	})
}
