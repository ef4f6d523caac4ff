package zone

import (
	"fmt"
	"os"

	"github.com/marmos91/fileserv/cmd/fsctl/cmdutil"
	"github.com/marmos91/fileserv/pkg/apiclient"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	flagName          string
	flagPool          string
	flagPath          string
	flagType          string
	flagDescription   string
	flagDisabled      bool
	flagAutoProvision bool
	flagReadOnly      bool
	flagAllowWrite    bool
	flagBrowsable     bool
	flagAllowedUsers  string
	flagAllowedGroups string
	flagDenyUsers     string
	flagDenyGroups    string
	flagUserQuota     string
	flagNetwork       bool
	flagWeb           bool

	flagLinksEnabled   bool
	flagLinksPublic    bool
	flagLinksMaxExpiry int
	flagLinksPassword  bool

	deleteForce bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a share zone",
	Long: `Create a share zone inside a storage pool.

The path is relative to the pool root. Personal zones hold one home
directory per user under the path.

Examples:
  # A shared team folder
  fsctl zone create --name team --pool main --path team --allow-write \
    --allowed-groups engineering

  # Home directories created on first use
  fsctl zone create --name homes --pool main --path home --type personal \
    --auto-provision --allow-write --user-quota 10GiB`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

var updateCmd = &cobra.Command{
	Use:   "update <zone>",
	Short: "Update a share zone",
	Long: `Change the settings of a share zone. Only the flags given are changed.
The pool of a zone cannot be changed.

Examples:
  fsctl zone update team --read-only
  fsctl zone update team --deny-users mallory`,
	Args: cobra.ExactArgs(1),
	RunE: runUpdate,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <zone>",
	Short: "Delete a share zone",
	Long: `Delete a share zone together with its grants and share links.
Files on disk are left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func addZoneFlags(fs *pflag.FlagSet) {
	fs.StringVar(&flagName, "name", "", "Zone name")
	fs.StringVar(&flagPath, "path", "", "Directory relative to the pool root")
	fs.StringVar(&flagType, "type", string(models.ZoneTypeGroup), "Zone type (personal|group|public)")
	fs.StringVar(&flagDescription, "description", "", "Description")
	fs.BoolVar(&flagAutoProvision, "auto-provision", false, "Create personal directories on first use")
	fs.BoolVar(&flagReadOnly, "read-only", false, "Refuse every write")
	fs.BoolVar(&flagAllowWrite, "allow-write", false, "Allow writes without an explicit grant")
	fs.BoolVar(&flagBrowsable, "browsable", true, "Show the zone in listings")
	fs.StringVar(&flagAllowedUsers, "allowed-users", "", "Comma-separated users allowed in")
	fs.StringVar(&flagAllowedGroups, "allowed-groups", "", "Comma-separated groups allowed in")
	fs.StringVar(&flagDenyUsers, "deny-users", "", "Comma-separated users kept out")
	fs.StringVar(&flagDenyGroups, "deny-groups", "", "Comma-separated groups kept out")
	fs.StringVar(&flagUserQuota, "user-quota", "", "Per-user quota overriding the pool default")
	fs.BoolVar(&flagNetwork, "network-shares", true, "Expose the zone over network protocols")
	fs.BoolVar(&flagWeb, "web-shares", true, "Allow share links in the zone")
	fs.BoolVar(&flagLinksEnabled, "link-policy", false, "Enforce the link policy flags below")
	fs.BoolVar(&flagLinksPublic, "link-public", true, "Allow links without a password")
	fs.IntVar(&flagLinksMaxExpiry, "link-max-expiry", 0, "Longest link lifetime in days (0 = unlimited)")
	fs.BoolVar(&flagLinksPassword, "link-require-password", false, "Require a password on every link")
}

func init() {
	addZoneFlags(createCmd.Flags())
	createCmd.Flags().StringVar(&flagPool, "pool", "", "Storage pool ID or name")
	createCmd.Flags().BoolVar(&flagDisabled, "disabled", false, "Create the zone disabled")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("pool")

	addZoneFlags(updateCmd.Flags())
	updateCmd.Flags().BoolVar(&flagDisabled, "disabled", false, "Disable (or with =false enable) the zone")

	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

// buildRequest turns the changed flags into a request. On create every
// boolean is sent so the flag defaults apply.
func buildRequest(fs *pflag.FlagSet, create bool, current *models.ShareZone) (*apiclient.ZoneRequest, error) {
	req := &apiclient.ZoneRequest{}
	changed := func(name string) bool { return create || fs.Changed(name) }

	if fs.Changed("name") {
		req.Name = &flagName
	}
	if fs.Changed("path") {
		req.Path = &flagPath
	}
	if fs.Changed("description") {
		req.Description = &flagDescription
	}
	if changed("type") {
		zt := models.ZoneType(flagType)
		if !zt.IsValid() {
			return nil, fmt.Errorf("invalid zone type %q (valid: personal, group, public)", flagType)
		}
		req.ZoneType = &zt
	}

	bools := []struct {
		flag string
		src  *bool
		dst  **bool
	}{
		{"auto-provision", &flagAutoProvision, &req.AutoProvision},
		{"read-only", &flagReadOnly, &req.ReadOnly},
		{"allow-write", &flagAllowWrite, &req.AllowWrite},
		{"browsable", &flagBrowsable, &req.Browsable},
		{"network-shares", &flagNetwork, &req.AllowNetworkShares},
		{"web-shares", &flagWeb, &req.AllowWebShares},
	}
	for _, b := range bools {
		if changed(b.flag) {
			*b.dst = b.src
		}
	}
	if fs.Changed("disabled") || (create && flagDisabled) {
		enabled := !flagDisabled
		req.Enabled = &enabled
	}

	lists := []struct {
		flag  string
		value string
		dst   **[]string
	}{
		{"allowed-users", flagAllowedUsers, &req.AllowedUsers},
		{"allowed-groups", flagAllowedGroups, &req.AllowedGroups},
		{"deny-users", flagDenyUsers, &req.DenyUsers},
		{"deny-groups", flagDenyGroups, &req.DenyGroups},
	}
	for _, l := range lists {
		if fs.Changed(l.flag) {
			items := cmdutil.ParseCommaSeparatedList(l.value)
			*l.dst = &items
		}
	}

	if fs.Changed("user-quota") {
		n, err := cmdutil.ParseSize(flagUserQuota)
		if err != nil {
			return nil, fmt.Errorf("--user-quota: %w", err)
		}
		req.MaxQuotaPerUser = &n
	}

	if changedAny(fs, "link-policy", "link-public", "link-max-expiry", "link-require-password") {
		opts := models.WebOptions{
			PublicEnabled: true,
			AllowDownload: true,
			AllowPreview:  true,
			AllowUpload:   true,
			AllowListing:  true,
		}
		if current != nil {
			opts = current.WebOptions
		}
		opts.Enabled = !fs.Changed("link-policy") || flagLinksEnabled
		if changed("link-public") {
			opts.PublicEnabled = flagLinksPublic
		}
		if changed("link-max-expiry") {
			opts.MaxLinkExpiry = flagLinksMaxExpiry
		}
		if changed("link-require-password") {
			opts.RequirePassword = flagLinksPassword
		}
		req.WebOptions = &opts
	}
	return req, nil
}

func changedAny(fs *pflag.FlagSet, names ...string) bool {
	for _, name := range names {
		if fs.Changed(name) {
			return true
		}
	}
	return false
}

func runCreate(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	req, err := buildRequest(cmd.Flags(), true, nil)
	if err != nil {
		return err
	}
	req.Pool = &flagPool

	zone, err := client.CreateZone(req)
	if err != nil {
		return fmt.Errorf("failed to create zone: %w", err)
	}
	return cmdutil.PrintResourceWithSuccess(os.Stdout, zone, fmt.Sprintf("Zone '%s' created (ID: %s)", zone.Name, zone.ID))
}

func runUpdate(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	current, err := client.GetZone(args[0])
	if err != nil {
		return fmt.Errorf("failed to get zone: %w", err)
	}
	req, err := buildRequest(cmd.Flags(), false, current)
	if err != nil {
		return err
	}

	zone, err := client.UpdateZone(current.ID, req)
	if err != nil {
		return fmt.Errorf("failed to update zone: %w", err)
	}
	return cmdutil.PrintResourceWithSuccess(os.Stdout, zone, fmt.Sprintf("Zone '%s' updated", zone.Name))
}

func runDelete(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	return cmdutil.RunDeleteWithConfirmation("Zone", args[0], deleteForce, func() error {
		if err := client.DeleteZone(args[0]); err != nil {
			return fmt.Errorf("failed to delete zone: %w", err)
		}
		return nil
	})
}
