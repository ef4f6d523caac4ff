// Package quota implements quota inspection commands for fsctl.
package quota

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/marmos91/fileserv/cmd/fsctl/cmdutil"
	"github.com/marmos91/fileserv/pkg/access/quota"
	"github.com/spf13/cobra"
)

// Cmd is the quota subcommand.
var Cmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect storage quotas",
	Long: `Inspect per-user storage usage against quota limits.

Subcommands:
  me    Show your usage in every pool
  over  List every subject over its limit (admin only)`,
}

func init() {
	Cmd.AddCommand(&cobra.Command{
		Use:   "me",
		Short: "Show your quota usage",
		Args:  cobra.NoArgs,
		RunE:  runMe,
	})
	Cmd.AddCommand(&cobra.Command{
		Use:   "over",
		Short: "List subjects over quota",
		Args:  cobra.NoArgs,
		RunE:  runOver,
	})
}

// UsageList is a list of usages for table rendering.
type UsageList []quota.Usage

// Headers implements TableRenderer.
func (ul UsageList) Headers() []string {
	return []string{"SUBJECT", "POOL", "USED", "RESERVED", "LIMIT", "USE%", "OVER", "ZONES"}
}

// Rows implements TableRenderer.
func (ul UsageList) Rows() [][]string {
	rows := make([][]string, 0, len(ul))
	for _, u := range ul {
		rows = append(rows, []string{
			string(u.Subject),
			u.PoolID,
			cmdutil.FormatSize(u.Used),
			cmdutil.FormatSize(u.Reserved),
			cmdutil.FormatSize(u.Limit),
			percent(u.Used+u.Reserved, u.Limit),
			cmdutil.BoolToYesNo(u.OverQuota),
			zoneBreakdown(u.Zones),
		})
	}
	return rows
}

func percent(used, limit int64) string {
	if limit <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(used)*100/float64(limit))
}

func zoneBreakdown(zones map[string]int64) string {
	if len(zones) == 0 {
		return "-"
	}
	names := make([]string, 0, len(zones))
	for name := range zones {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+cmdutil.FormatSize(zones[name]))
	}
	return strings.Join(parts, " ")
}

func runMe(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	usage, err := client.MyQuota()
	if err != nil {
		return fmt.Errorf("failed to get quota: %w", err)
	}
	return cmdutil.PrintOutput(os.Stdout, usage, len(usage) == 0, "No storage used yet.", UsageList(usage))
}

func runOver(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	usage, err := client.OverQuota()
	if err != nil {
		return fmt.Errorf("failed to list over-quota subjects: %w", err)
	}
	return cmdutil.PrintOutput(os.Stdout, usage, len(usage) == 0, "Nobody is over quota.", UsageList(usage))
}
