package pool

import (
	"fmt"
	"os"

	"github.com/marmos91/fileserv/cmd/fsctl/cmdutil"
	"github.com/marmos91/fileserv/pkg/apiclient"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	flagName         string
	flagPath         string
	flagDescription  string
	flagDisabled     bool
	flagReserved     string
	flagMaxFileSize  string
	flagAllowedTypes string
	flagDeniedTypes  string
	flagUserQuota    string
	flagGroupQuota   string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a storage pool",
	Long: `Create a storage pool rooted at a directory on the server.

Sizes accept units such as 500M, 10GiB or 2T; 0 means unlimited.

Examples:
  # Create a pool
  fsctl pool create --name main --path /srv/files

  # Create a pool with limits
  fsctl pool create --name media --path /srv/media \
    --max-file-size 4GiB --denied-types exe,bat --user-quota 50GiB`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

var updateCmd = &cobra.Command{
	Use:   "update <pool>",
	Short: "Update a storage pool",
	Long: `Change the settings of a storage pool. Only the flags given are changed.

Examples:
  fsctl pool update main --user-quota 20GiB
  fsctl pool update main --allowed-types ""`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

func addPoolFlags(fs *pflag.FlagSet) {
	fs.StringVar(&flagName, "name", "", "Pool name")
	fs.StringVar(&flagPath, "path", "", "Root directory on the server")
	fs.StringVar(&flagDescription, "description", "", "Description")
	fs.StringVar(&flagReserved, "reserved", "", "Space to keep free on the disk")
	fs.StringVar(&flagMaxFileSize, "max-file-size", "", "Largest file accepted")
	fs.StringVar(&flagAllowedTypes, "allowed-types", "", "Comma-separated extensions to allow (empty allows all)")
	fs.StringVar(&flagDeniedTypes, "denied-types", "", "Comma-separated extensions to reject")
	fs.StringVar(&flagUserQuota, "user-quota", "", "Default per-user quota")
	fs.StringVar(&flagGroupQuota, "group-quota", "", "Default per-group quota")
}

func init() {
	addPoolFlags(createCmd.Flags())
	createCmd.Flags().BoolVar(&flagDisabled, "disabled", false, "Create the pool disabled")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("path")

	addPoolFlags(updateCmd.Flags())
}

// buildRequest turns the changed flags into a request.
func buildRequest(fs *pflag.FlagSet) (*apiclient.PoolRequest, error) {
	req := &apiclient.PoolRequest{}
	if fs.Changed("name") {
		req.Name = &flagName
	}
	if fs.Changed("path") {
		req.Path = &flagPath
	}
	if fs.Changed("description") {
		req.Description = &flagDescription
	}

	sizes := []struct {
		flag  string
		value string
		dst   **int64
	}{
		{"reserved", flagReserved, &req.ReservedSpace},
		{"max-file-size", flagMaxFileSize, &req.MaxFileSize},
		{"user-quota", flagUserQuota, &req.DefaultUserQuota},
		{"group-quota", flagGroupQuota, &req.DefaultGroupQuota},
	}
	for _, s := range sizes {
		if !fs.Changed(s.flag) {
			continue
		}
		n, err := cmdutil.ParseSize(s.value)
		if err != nil {
			return nil, fmt.Errorf("--%s: %w", s.flag, err)
		}
		*s.dst = &n
	}

	if fs.Changed("allowed-types") {
		types := cmdutil.ParseCommaSeparatedList(flagAllowedTypes)
		req.AllowedTypes = &types
	}
	if fs.Changed("denied-types") {
		types := cmdutil.ParseCommaSeparatedList(flagDeniedTypes)
		req.DeniedTypes = &types
	}
	return req, nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	req, err := buildRequest(cmd.Flags())
	if err != nil {
		return err
	}
	if flagDisabled {
		enabled := false
		req.Enabled = &enabled
	}

	pool, err := client.CreatePool(req)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}
	return cmdutil.PrintResourceWithSuccess(os.Stdout, pool, fmt.Sprintf("Pool '%s' created (ID: %s)", pool.Name, pool.ID))
}

func runUpdate(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	req, err := buildRequest(cmd.Flags())
	if err != nil {
		return err
	}
	existing, err := resolve(client, args[0])
	if err != nil {
		return err
	}

	pool, err := client.UpdatePool(existing.ID, req)
	if err != nil {
		return fmt.Errorf("failed to update pool: %w", err)
	}
	return cmdutil.PrintResourceWithSuccess(os.Stdout, pool, fmt.Sprintf("Pool '%s' updated", pool.Name))
}
