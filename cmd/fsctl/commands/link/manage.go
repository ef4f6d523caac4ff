package link

import (
	"fmt"
	"os"
	"time"

	"github.com/marmos91/fileserv/cmd/fsctl/cmdutil"
	"github.com/marmos91/fileserv/internal/cli/output"
	"github.com/marmos91/fileserv/internal/cli/prompt"
	"github.com/marmos91/fileserv/pkg/apiclient"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/spf13/cobra"
)

var (
	listAll bool

	createZone         string
	createPath         string
	createType         string
	createDownload     bool
	createPreview      bool
	createUpload       bool
	createListing      bool
	createExpires      string
	createMaxDownloads int64
	createMaxViews     int64
	createPassword     string
	createAskPassword  bool
	createDescription  string

	deleteForce bool
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List share links",
	Long: `List the share links you created. Administrators can list every link
with --all.

Examples:
  fsctl link list
  fsctl link list --all -o json`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a share link",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a share link",
	Long: `Create a share link to a file or folder in a zone.

The token is shown once; only its hash is stored on the server.

Examples:
  # Share a file for a week
  fsctl link create --zone team --path /reports/q3.pdf --expires 7d

  # Let people drop files into a folder, behind a password
  fsctl link create --zone team --path /inbox --type folder \
    --upload --listing --ask-password --max-views 100`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

var disableCmd = &cobra.Command{
	Use:   "disable <id>",
	Short: "Disable a share link",
	Long:  `Disable a share link. The token stops working but the link is kept.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDisable,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a share link",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	listCmd.Flags().BoolVar(&listAll, "all", false, "List every link (admin only)")

	f := createCmd.Flags()
	f.StringVar(&createZone, "zone", "", "Zone ID or name")
	f.StringVar(&createPath, "path", "", "Target path inside the zone")
	f.StringVar(&createType, "type", string(models.TargetFile), "Target type (file|folder)")
	f.BoolVar(&createDownload, "download", true, "Allow downloads")
	f.BoolVar(&createPreview, "preview", true, "Allow previews")
	f.BoolVar(&createUpload, "upload", false, "Allow uploads (folders only)")
	f.BoolVar(&createListing, "listing", false, "Allow listing the folder")
	f.StringVar(&createExpires, "expires", "", "Expiry (24h, 7d, RFC 3339 time or never; default from server)")
	f.Int64Var(&createMaxDownloads, "max-downloads", 0, "Download limit (0 = unlimited)")
	f.Int64Var(&createMaxViews, "max-views", 0, "View limit (0 = unlimited)")
	f.StringVar(&createPassword, "password", "", "Link password")
	f.BoolVar(&createAskPassword, "ask-password", false, "Prompt for the link password")
	f.StringVar(&createDescription, "description", "", "Description")
	_ = createCmd.MarkFlagRequired("zone")
	_ = createCmd.MarkFlagRequired("path")
	createCmd.MarkFlagsMutuallyExclusive("password", "ask-password")

	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	links, err := client.ListLinks(listAll)
	if err != nil {
		return fmt.Errorf("failed to list links: %w", err)
	}
	return cmdutil.PrintOutput(os.Stdout, links, len(links) == 0, "No share links found.", LinkList(links))
}

func runGet(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	link, err := client.GetLink(args[0])
	if err != nil {
		return fmt.Errorf("failed to get link: %w", err)
	}
	return cmdutil.PrintResource(os.Stdout, link, linkDetails(link))
}

func runCreate(cmd *cobra.Command, args []string) error {
	targetType := models.LinkTargetType(createType)
	if !targetType.IsValid() {
		return fmt.Errorf("invalid type %q (valid: file, folder)", createType)
	}
	expires, err := cmdutil.ParseExpiry(createExpires, time.Now())
	if err != nil {
		return err
	}
	password := createPassword
	if createAskPassword {
		password, err = prompt.NewPassword("Link password")
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	zone, err := client.GetZone(createZone)
	if err != nil {
		return fmt.Errorf("failed to resolve zone: %w", err)
	}

	resp, err := client.CreateLink(&apiclient.CreateLinkRequest{
		ZoneID:     zone.ID,
		TargetPath: createPath,
		TargetType: targetType,
		Capabilities: models.LinkCapabilities{
			AllowDownload: createDownload,
			AllowPreview:  createPreview,
			AllowUpload:   createUpload,
			AllowListing:  createListing,
		},
		ExpiresAt:    expires,
		MaxDownloads: createMaxDownloads,
		MaxViews:     createMaxViews,
		Password:     password,
		Description:  createDescription,
	})
	if err != nil {
		return fmt.Errorf("failed to create link: %w", err)
	}

	p, err := cmdutil.GetPrinter(os.Stdout)
	if err != nil {
		return err
	}
	if p.Structured() {
		return p.Print(resp, nil)
	}
	p.Success("Share link created (ID: %s)", resp.Link.ID)
	details := output.NewDetails().
		Add("URL", resp.URL).
		Add("Token", resp.Token).
		Add("Expires", fmtExpiry(resp.Link))
	if err := output.PrintTable(os.Stdout, details); err != nil {
		return err
	}
	p.Warning("The token is shown only once. Store it now.")
	return nil
}

func fmtExpiry(l *models.ShareLink) string {
	if l == nil || l.ExpiresAt == nil {
		return "never"
	}
	return l.ExpiresAt.Format(time.RFC3339)
}

func runDisable(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	if err := client.DisableLink(args[0]); err != nil {
		return fmt.Errorf("failed to disable link: %w", err)
	}
	cmdutil.PrintSuccess(fmt.Sprintf("Link '%s' disabled", args[0]))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetAuthenticatedClient()
	if err != nil {
		return err
	}
	return cmdutil.RunDeleteWithConfirmation("Link", args[0], deleteForce, func() error {
		if err := client.DeleteLink(args[0]); err != nil {
			return fmt.Errorf("failed to delete link: %w", err)
		}
		return nil
	})
}
