// Package link implements share link commands for fsctl.
package link

import (
	"strconv"
	"strings"
	"time"

	"github.com/marmos91/fileserv/cmd/fsctl/cmdutil"
	"github.com/marmos91/fileserv/internal/cli/output"
	"github.com/marmos91/fileserv/internal/cli/timeutil"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/spf13/cobra"
)

// Cmd is the link subcommand.
var Cmd = &cobra.Command{
	Use:   "link",
	Short: "Manage share links",
	Long: `Create and manage share links.

A share link gives anyone holding its token access to one file or folder,
optionally behind a password and limited in time or number of uses.

Subcommands:
  list      List your links (--all for every link, admin)
  get       Show a link
  create    Create a link
  disable   Disable a link
  delete    Delete a link
  view      Show what a token points to (no login needed)
  verify    Check a link password (no login needed)
  download  Download through a link (no login needed)`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(disableCmd)
	Cmd.AddCommand(deleteCmd)
	Cmd.AddCommand(viewCmd)
	Cmd.AddCommand(verifyCmd)
	Cmd.AddCommand(downloadCmd)
}

// LinkList is a list of links for table rendering.
type LinkList []models.ShareLink

// Headers implements TableRenderer.
func (ll LinkList) Headers() []string {
	return []string{"ID", "OWNER", "TARGET", "TYPE", "STATE", "DOWNLOADS", "VIEWS", "EXPIRES"}
}

// Rows implements TableRenderer.
func (ll LinkList) Rows() [][]string {
	now := time.Now()
	rows := make([][]string, 0, len(ll))
	for _, l := range ll {
		rows = append(rows, []string{
			l.ID,
			l.Owner,
			l.TargetPath,
			string(l.TargetType),
			linkState(&l, now),
			usage(l.DownloadCount, l.MaxDownloads),
			usage(l.ViewCount, l.MaxViews),
			timeutil.FormatExpiry(l.ExpiresAt, now),
		})
	}
	return rows
}

func linkState(l *models.ShareLink, now time.Time) string {
	switch {
	case l.ExpiresAt != nil && !now.Before(*l.ExpiresAt):
		return "expired"
	case !l.Enabled:
		return "disabled"
	case (l.MaxDownloads > 0 && l.DownloadCount >= l.MaxDownloads) || (l.MaxViews > 0 && l.ViewCount >= l.MaxViews):
		return "exhausted"
	default:
		return "active"
	}
}

func usage(count, limit int64) string {
	if limit <= 0 {
		return strconv.FormatInt(count, 10)
	}
	return strconv.FormatInt(count, 10) + "/" + strconv.FormatInt(limit, 10)
}

func capabilities(c models.LinkCapabilities) string {
	var caps []string
	if c.AllowDownload {
		caps = append(caps, "download")
	}
	if c.AllowPreview {
		caps = append(caps, "preview")
	}
	if c.AllowUpload {
		caps = append(caps, "upload")
	}
	if c.AllowListing {
		caps = append(caps, "listing")
	}
	return cmdutil.EmptyOr(strings.Join(caps, ", "), "none")
}

func linkDetails(l *models.ShareLink) *output.Details {
	now := time.Now()
	d := output.NewDetails().
		Add("ID", l.ID).
		Add("Owner", l.Owner).
		Add("Zone", l.ZoneID).
		Add("Target", l.TargetPath).
		Add("Type", string(l.TargetType)).
		Add("State", linkState(l, now)).
		Add("Capabilities", capabilities(l.LinkCapabilities)).
		Add("Password", cmdutil.BoolToYesNo(l.PasswordHash != "")).
		Add("Downloads", usage(l.DownloadCount, l.MaxDownloads)).
		Add("Views", usage(l.ViewCount, l.MaxViews)).
		Add("Expires", timeutil.FormatExpiry(l.ExpiresAt, now)).
		Add("Description", l.Description).
		Add("Created", timeutil.FormatTime(l.CreatedAt))
	if l.LastAccessed != nil {
		d.Add("Last Accessed", timeutil.FormatTime(*l.LastAccessed))
	}
	return d
}
