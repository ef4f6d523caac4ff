// Package context implements context management subcommands for fsctl.
package context

import (
	"fmt"
	"os"

	"github.com/marmos91/fileserv/cmd/fsctl/cmdutil"
	"github.com/marmos91/fileserv/internal/cli/credentials"
	"github.com/marmos91/fileserv/internal/cli/output"
	"github.com/marmos91/fileserv/internal/cli/timeutil"
	"github.com/spf13/cobra"
)

// Cmd is the context subcommand.
var Cmd = &cobra.Command{
	Use:   "context",
	Short: "Manage server contexts",
	Long: `Manage connection contexts for multiple fileserv servers.

Contexts allow you to save and switch between different server logins,
similar to kubectl contexts. "fsctl login" creates them.

Subcommands:
  list     List all configured contexts
  use      Switch to a different context
  current  Show current context
  delete   Delete a context`,
}

var deleteForce bool

func init() {
	deleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a context",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "Skip confirmation prompt")

	Cmd.AddCommand(
		&cobra.Command{Use: "list", Aliases: []string{"ls"}, Short: "List contexts", Args: cobra.NoArgs, RunE: runList},
		&cobra.Command{Use: "use <name>", Short: "Switch to a context", Args: cobra.ExactArgs(1), RunE: runUse},
		&cobra.Command{Use: "current", Short: "Show the current context", Args: cobra.NoArgs, RunE: runCurrent},
		deleteCmd,
	)
}

// Entry is one context as listed.
type Entry struct {
	Name      string `json:"name"`
	Current   bool   `json:"current"`
	Server    string `json:"server"`
	Username  string `json:"username,omitempty"`
	Admin     bool   `json:"admin"`
	LoggedIn  bool   `json:"logged_in"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// EntryList is a list of contexts for table rendering.
type EntryList []Entry

// Headers implements TableRenderer.
func (l EntryList) Headers() []string {
	return []string{"", "NAME", "SERVER", "USER", "LOGGED IN"}
}

// Rows implements TableRenderer.
func (l EntryList) Rows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, e := range l {
		marker := ""
		if e.Current {
			marker = "*"
		}
		rows = append(rows, []string{marker, e.Name, e.Server, cmdutil.EmptyOr(e.Username, "-"), cmdutil.BoolToYesNo(e.LoggedIn)})
	}
	return rows
}

func entries(store *credentials.Store) EntryList {
	current := store.CurrentName()
	list := make(EntryList, 0)
	for _, name := range store.Names() {
		c, err := store.Get(name)
		if err != nil {
			continue
		}
		e := Entry{
			Name:     name,
			Current:  name == current,
			Server:   c.ServerURL,
			Username: c.Username,
			Admin:    c.IsAdmin,
			LoggedIn: c.LoggedIn(),
		}
		if !c.ExpiresAt.IsZero() {
			e.ExpiresAt = timeutil.FormatTime(c.ExpiresAt)
		}
		list = append(list, e)
	}
	return list
}

func openStore() (*credentials.Store, error) {
	store, err := credentials.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	return store, nil
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	list := entries(store)
	return cmdutil.PrintOutput(os.Stdout, list, len(list) == 0, "No contexts configured. Run 'fsctl login' to create one.", list)
}

func runUse(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if err := store.Use(args[0]); err != nil {
		return fmt.Errorf("cannot switch to %q: %w", args[0], err)
	}
	cmdutil.PrintSuccess(fmt.Sprintf("Switched to context %q", args[0]))
	return nil
}

func runCurrent(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	if _, err := store.Current(); err != nil {
		return err
	}
	for _, e := range entries(store) {
		if e.Current {
			details := output.NewDetails().
				Add("Name", e.Name).
				Add("Server", e.Server).
				Add("User", e.Username).
				Add("Admin", cmdutil.BoolToYesNo(e.Admin)).
				Add("Logged In", cmdutil.BoolToYesNo(e.LoggedIn)).
				Add("Token Expires", e.ExpiresAt)
			return cmdutil.PrintResource(os.Stdout, e, details)
		}
	}
	return credentials.ErrNoCurrentContext
}

func runDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	return cmdutil.RunDeleteWithConfirmation("Context", args[0], deleteForce, func() error {
		return store.Delete(args[0])
	})
}
