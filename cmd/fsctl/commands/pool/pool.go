// Package pool implements storage pool management commands for fsctl.
package pool

import (
	"fmt"
	"strings"

	"github.com/marmos91/fileserv/cmd/fsctl/cmdutil"
	"github.com/marmos91/fileserv/internal/cli/output"
	"github.com/marmos91/fileserv/internal/cli/timeutil"
	"github.com/marmos91/fileserv/pkg/apiclient"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/spf13/cobra"
)

// Cmd is the pool subcommand.
var Cmd = &cobra.Command{
	Use:   "pool",
	Short: "Manage storage pools",
	Long: `Manage storage pools on the fileserv server (admin only).

A pool is a directory on the server's disk that share zones are carved
out of. Pools carry the file size ceiling, the extension filters and the
default quotas for every zone they host.

Subcommands:
  list     List pools
  get      Show a pool
  create   Create a pool
  update   Change a pool
  enable   Enable a pool
  disable  Disable a pool (and optionally its zones)
  delete   Delete a pool`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(updateCmd)
	Cmd.AddCommand(enableCmd)
	Cmd.AddCommand(disableCmd)
	Cmd.AddCommand(deleteCmd)
}

// PoolList is a list of pools for table rendering.
type PoolList []models.StoragePool

// Headers implements TableRenderer.
func (pl PoolList) Headers() []string {
	return []string{"NAME", "PATH", "ENABLED", "USED", "FREE", "MAX FILE", "USER QUOTA"}
}

// Rows implements TableRenderer.
func (pl PoolList) Rows() [][]string {
	rows := make([][]string, 0, len(pl))
	for _, p := range pl {
		rows = append(rows, []string{
			p.Name,
			p.Path,
			cmdutil.BoolToYesNo(p.Enabled),
			cmdutil.FormatSize(p.UsedSpace),
			cmdutil.FormatSize(p.FreeSpace),
			cmdutil.FormatSize(p.MaxFileSize),
			cmdutil.FormatSize(p.DefaultUserQuota),
		})
	}
	return rows
}

func poolDetails(p *models.StoragePool) *output.Details {
	return output.NewDetails().
		Add("ID", p.ID).
		Add("Name", p.Name).
		Add("Path", p.Path).
		Add("Description", p.Description).
		Add("Enabled", cmdutil.BoolToYesNo(p.Enabled)).
		Add("Total Space", cmdutil.FormatSize(p.TotalSpace)).
		Add("Used Space", cmdutil.FormatSize(p.UsedSpace)).
		Add("Free Space", cmdutil.FormatSize(p.FreeSpace)).
		Add("Reserved Space", cmdutil.FormatSize(p.ReservedSpace)).
		Add("Max File Size", cmdutil.FormatSize(p.MaxFileSize)).
		Add("Allowed Types", strings.Join(p.AllowedTypes, ", ")).
		Add("Denied Types", strings.Join(p.DeniedTypes, ", ")).
		Add("Default User Quota", cmdutil.FormatSize(p.DefaultUserQuota)).
		Add("Default Group Quota", cmdutil.FormatSize(p.DefaultGroupQuota)).
		Add("Created", timeutil.FormatTime(p.CreatedAt))
}

// resolve finds a pool by ID, falling back to a name match.
func resolve(client *apiclient.Client, ref string) (*models.StoragePool, error) {
	pool, err := client.GetPool(ref)
	if err == nil {
		return pool, nil
	}
	if apiErr, ok := apiclient.AsAPIError(err); !ok || !apiErr.IsNotFound() {
		return nil, err
	}
	pools, listErr := client.ListPools()
	if listErr != nil {
		return nil, listErr
	}
	for i := range pools {
		if pools[i].Name == ref {
			return &pools[i], nil
		}
	}
	return nil, fmt.Errorf("pool %q not found", ref)
}
