package commands

import (
	"fmt"
	"time"

	"github.com/marmos91/fileserv/cmd/fsctl/cmdutil"
	"github.com/marmos91/fileserv/internal/cli/credentials"
	"github.com/marmos91/fileserv/internal/cli/prompt"
	"github.com/marmos91/fileserv/pkg/apiclient"
	"github.com/spf13/cobra"
)

var (
	loginUsername string
	loginPassword string
	loginContext  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to a fileserv server",
	Long: `Authenticate against a fileserv server and save the session as a context.

The context is named user@host unless --context is given, and becomes the
current context.

Examples:
  # Log in interactively
  fsctl login --server http://localhost:8080

  # Log in non-interactively
  fsctl login --server http://localhost:8080 -u admin -p secret`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out of the current context",
	Long:  `Drop the tokens of the current context. The context itself is kept.`,
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Password (prompted if omitted)")
	loginCmd.Flags().StringVar(&loginContext, "context", "", "Context name (default user@host)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}

	server := cmdutil.Flags.ServerURL
	if server == "" {
		if current, err := store.Current(); err == nil {
			server = current.ServerURL
		}
	}
	if server == "" {
		server, err = prompt.InputRequired("Server URL")
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	username := loginUsername
	if username == "" {
		username, err = prompt.InputRequired("Username")
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}
	password := loginPassword
	if password == "" {
		password, err = prompt.Password("Password")
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	client := apiclient.New(server)
	tokens, err := client.Login(username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	name := loginContext
	if name == "" {
		name = credentials.ContextName(client.BaseURL(), tokens.User.Username)
	}
	if err := store.Set(name, &credentials.Context{
		ServerURL:    client.BaseURL(),
		Username:     tokens.User.Username,
		IsAdmin:      tokens.User.IsAdmin,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresAt:    cmdutil.TokenExpiry(tokens, time.Now()),
	}); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	role := "user"
	if tokens.User.IsAdmin {
		role = "admin"
	}
	cmdutil.PrintSuccess(fmt.Sprintf("Logged in to %s as %s (%s), context %q", client.BaseURL(), tokens.User.Username, role, name))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	store, err := credentials.NewStore()
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}
	if err := store.Logout(); err != nil {
		return fmt.Errorf("failed to log out: %w", err)
	}
	cmdutil.PrintSuccess(fmt.Sprintf("Logged out of %q", store.CurrentName()))
	return nil
}
