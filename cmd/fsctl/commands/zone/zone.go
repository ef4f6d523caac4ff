// Package zone implements share zone and permission commands for fsctl.
package zone

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/marmos91/fileserv/cmd/fsctl/cmdutil"
	"github.com/marmos91/fileserv/internal/cli/output"
	"github.com/marmos91/fileserv/internal/cli/timeutil"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/spf13/cobra"
)

// Cmd is the zone subcommand.
var Cmd = &cobra.Command{
	Use:   "zone",
	Short: "Manage share zones",
	Long: `Manage share zones on the fileserv server.

A zone is a directory inside a storage pool that users can access. Personal
zones give every user a private home, group zones are shared by their
allowed members, and public zones are open to every authenticated user.

Subcommands:
  list        List zones
  get         Show a zone
  create      Create a zone (admin)
  update      Change a zone (admin)
  delete      Delete a zone (admin)
  permission  Manage path grants inside a zone (admin)`,
}

var listMine bool

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List share zones",
	Long: `List share zones. Administrators see every zone; with --mine only the
zones the caller can enter are shown.

Examples:
  fsctl zone list
  fsctl zone list --mine -o json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var getCmd = &cobra.Command{
	Use:   "get <zone>",
	Short: "Show a share zone",
	Long:  `Show a share zone by ID or name.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	listCmd.Flags().BoolVar(&listMine, "mine", false, "Only zones accessible to the current user")

	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(updateCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(permissionCmd)
}

// ZoneList is a list of zones for table rendering.
type ZoneList []models.ShareZone

// Headers implements TableRenderer.
func (zl ZoneList) Headers() []string {
	return []string{"NAME", "TYPE", "POOL", "PATH", "ENABLED", "ACCESS", "USER QUOTA"}
}

// Rows implements TableRenderer.
func (zl ZoneList) Rows() [][]string {
	rows := make([][]string, 0, len(zl))
	for _, z := range zl {
		rows = append(rows, []string{
			z.Name,
			string(z.ZoneType),
			z.PoolID,
			z.Path,
			cmdutil.BoolToYesNo(z.Enabled),
			accessMode(&z),
			cmdutil.FormatSize(z.MaxQuotaPerUser),
		})
	}
	return rows
}

func accessMode(z *models.ShareZone) string {
	switch {
	case z.ReadOnly:
		return "read-only"
	case z.AllowWrite:
		return "read-write"
	default:
		return "read"
	}
}

func zoneDetails(z *models.ShareZone) *output.Details {
	d := output.NewDetails().
		Add("ID", z.ID).
		Add("Name", z.Name).
		Add("Type", string(z.ZoneType)).
		Add("Pool", z.PoolID).
		Add("Path", z.Path).
		Add("Description", z.Description).
		Add("Enabled", cmdutil.BoolToYesNo(z.Enabled)).
		Add("Auto Provision", cmdutil.BoolToYesNo(z.AutoProvision)).
		Add("Access", accessMode(z)).
		Add("Browsable", cmdutil.BoolToYesNo(z.Browsable)).
		Add("Allowed Users", strings.Join(z.AllowedUsers, ", ")).
		Add("Allowed Groups", strings.Join(z.AllowedGroups, ", ")).
		Add("Denied Users", strings.Join(z.DenyUsers, ", ")).
		Add("Denied Groups", strings.Join(z.DenyGroups, ", ")).
		Add("Max Quota Per User", cmdutil.FormatSize(z.MaxQuotaPerUser)).
		Add("Network Shares", cmdutil.BoolToYesNo(z.AllowNetworkShares)).
		Add("Web Shares", cmdutil.BoolToYesNo(z.AllowWebShares))
	if z.WebOptions.Enabled {
		expiry := "unlimited"
		if z.WebOptions.MaxLinkExpiry > 0 {
			expiry = strconv.Itoa(z.WebOptions.MaxLinkExpiry) + " days"
		}
		d.Add("Link Max Expiry", expiry).
			Add("Link Password Required", cmdutil.BoolToYesNo(z.WebOptions.RequirePassword))
	}
	return d.Add("Created", timeutil.FormatTime(z.CreatedAt))
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	var zones []models.ShareZone
	if listMine {
		zones, err = client.MyZones()
	} else {
		zones, err = client.ListZones()
	}
	if err != nil {
		return fmt.Errorf("failed to list zones: %w", err)
	}
	return cmdutil.PrintOutput(os.Stdout, zones, len(zones) == 0, "No zones found.", ZoneList(zones))
}

func runGet(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	zone, err := client.GetZone(args[0])
	if err != nil {
		return fmt.Errorf("failed to get zone: %w", err)
	}
	return cmdutil.PrintResource(os.Stdout, zone, zoneDetails(zone))
}
