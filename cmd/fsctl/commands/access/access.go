// Package access implements the access check command for fsctl.
package access

import (
	"fmt"
	"os"

	"github.com/marmos91/fileserv/cmd/fsctl/cmdutil"
	"github.com/marmos91/fileserv/internal/cli/output"
	"github.com/marmos91/fileserv/pkg/apiclient"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/spf13/cobra"
)

// Cmd is the access subcommand.
var Cmd = &cobra.Command{
	Use:   "access",
	Short: "Check file access",
}

var (
	checkZone string
	checkPath string
	checkKind string
	checkSize string
	checkDir  bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether an operation would be allowed",
	Long: `Run an operation through the server's access checks without performing
it. Zone and pool state, access lists, grants, file type and size limits and
quota are all evaluated; nothing is charged.

Examples:
  fsctl access check --zone team --path /reports/q3.pdf --kind read
  fsctl access check --zone team --path /inbox/video.mp4 --kind write --size 3GiB`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkZone, "zone", "", "Zone ID or name")
	checkCmd.Flags().StringVar(&checkPath, "path", "", "Path inside the zone")
	checkCmd.Flags().StringVar(&checkKind, "kind", string(models.KindRead), "Operation kind (read|write|delete)")
	checkCmd.Flags().StringVar(&checkSize, "size", "0", "Bytes the operation would write")
	checkCmd.Flags().BoolVar(&checkDir, "dir", false, "The target is a directory")
	_ = checkCmd.MarkFlagRequired("zone")
	_ = checkCmd.MarkFlagRequired("path")

	Cmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	size, err := cmdutil.ParseSize(checkSize)
	if err != nil {
		return fmt.Errorf("--size: %w", err)
	}
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}

	resp, err := client.CheckAccess(&apiclient.CheckRequest{
		Zone:      checkZone,
		Path:      checkPath,
		Kind:      models.PermissionKind(checkKind),
		Size:      size,
		Directory: checkDir,
	})
	if err != nil {
		if apiErr, ok := apiclient.AsAPIError(err); ok && apiErr.Code != "" {
			return fmt.Errorf("denied: %w", err)
		}
		return fmt.Errorf("access check failed: %w", err)
	}

	details := output.NewDetails().
		Add("Allowed", cmdutil.BoolToYesNo(resp.Allowed)).
		Add("Zone", resp.Zone).
		Add("Path", resp.Path).
		Add("Kind", string(resp.Kind)).
		Add("Decided By Grant", resp.GrantID)
	return cmdutil.PrintResource(os.Stdout, resp, details)
}
