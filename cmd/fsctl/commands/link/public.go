package link

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/marmos91/fileserv/cmd/fsctl/cmdutil"
	"github.com/marmos91/fileserv/internal/bytesize"
	"github.com/marmos91/fileserv/internal/cli/output"
	"github.com/marmos91/fileserv/internal/cli/prompt"
	"github.com/marmos91/fileserv/internal/cli/timeutil"
	"github.com/marmos91/fileserv/pkg/apiclient"
	"github.com/spf13/cobra"
)

var (
	linkPassword    string
	askPassword     bool
	downloadPath    string
	downloadOutFile string
)

var viewCmd = &cobra.Command{
	Use:   "view <token>",
	Short: "Show what a share link points to",
	Long: `Show the target and limits of a share link. Every successful view
counts against the link's view limit.`,
	Args: cobra.ExactArgs(1),
	RunE: runView,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <token>",
	Short: "Check a share link password",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

var downloadCmd = &cobra.Command{
	Use:   "download <token>",
	Short: "Download through a share link",
	Long: `Download the file a share link points to, or a file inside a shared
folder with --path.

Examples:
  fsctl link download 3q2-7Zb...
  fsctl link download 3q2-7Zb... --path docs/report.pdf -O report.pdf
  fsctl link download 3q2-7Zb... -O - > file.bin`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	for _, c := range []*cobra.Command{verifyCmd, downloadCmd} {
		c.Flags().StringVar(&linkPassword, "password", "", "Link password")
		c.Flags().BoolVar(&askPassword, "ask-password", false, "Prompt for the link password")
	}
	downloadCmd.Flags().StringVar(&downloadPath, "path", "", "File inside a shared folder")
	downloadCmd.Flags().StringVarP(&downloadOutFile, "out", "O", "", "Output file (\"-\" for stdout, default: target name)")
}

func readPassword() (string, error) {
	if !askPassword {
		return linkPassword, nil
	}
	return prompt.Password("Link password")
}

func runView(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetServerClient()
	if err != nil {
		return err
	}
	info, err := client.ViewLink(args[0])
	if err != nil {
		return describeLinkError(err)
	}

	now := time.Now()
	details := output.NewDetails().
		Add("Target", info.TargetName).
		Add("Type", string(info.TargetType)).
		Add("Capabilities", capabilities(info.Capabilities)).
		Add("Password", cmdutil.BoolToYesNo(info.HasPassword)).
		Add("Downloads", usage(info.DownloadCount, info.MaxDownloads)).
		Add("Views", usage(info.ViewCount, info.MaxViews)).
		Add("Expires", timeutil.FormatExpiry(info.ExpiresAt, now)).
		Add("Description", info.Description)
	return cmdutil.PrintResource(os.Stdout, info, details)
}

func runVerify(cmd *cobra.Command, args []string) error {
	password, err := readPassword()
	if err != nil {
		return cmdutil.HandleAbort(err)
	}
	client, err := cmdutil.GetServerClient()
	if err != nil {
		return err
	}
	if err := client.VerifyLinkPassword(args[0], password); err != nil {
		return describeLinkError(err)
	}
	cmdutil.PrintSuccess("Password accepted")
	return nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	password, err := readPassword()
	if err != nil {
		return cmdutil.HandleAbort(err)
	}
	client, err := cmdutil.GetServerClient()
	if err != nil {
		return err
	}

	dest := downloadOutFile
	if dest == "" {
		if downloadPath != "" {
			dest = filepath.Base(downloadPath)
		} else {
			info, err := client.ViewLink(args[0])
			if err != nil {
				return describeLinkError(err)
			}
			dest = filepath.Base(info.TargetName)
		}
	}

	var w io.Writer = os.Stdout
	if dest != "-" {
		f, err := os.Create(dest)
		if err != nil {
			return fmt.Errorf("cannot create %s: %w", dest, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	n, err := client.DownloadLink(cmd.Context(), args[0], password, downloadPath, w)
	if err != nil {
		if dest != "-" {
			_ = os.Remove(dest)
		}
		return describeLinkError(err)
	}
	if dest != "-" {
		fmt.Fprintf(os.Stderr, "Saved %s (%s)\n", dest, bytesize.ByteSize(n))
	}
	return nil
}

// describeLinkError rewords the common refusals of the public endpoints.
func describeLinkError(err error) error {
	apiErr, ok := apiclient.AsAPIError(err)
	if !ok {
		return err
	}
	switch {
	case apiErr.IsGone():
		return fmt.Errorf("link is no longer usable: %s", cmdutil.EmptyOr(apiErr.Detail, apiErr.Title))
	case apiErr.IsNotFound():
		return fmt.Errorf("link not found")
	case apiErr.IsAuthError():
		return fmt.Errorf("password required or incorrect: %w", err)
	}
	return err
}
