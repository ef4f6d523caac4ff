package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/marmos91/fileserv/internal/cli/output"
	"github.com/marmos91/fileserv/internal/cli/prompt"
	"github.com/marmos91/fileserv/internal/cli/timeutil"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/spf13/cobra"
)

// Users are read on every request, so these commands edit the database
// directly and work whether or not the server is running.

var userOutput string

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
	Long: `Manage fileserv user accounts in the control plane database.

Changes take effect immediately, also on a running server.

Examples:
  fileserv user create alice --email alice@example.com
  fileserv user passwd alice
  fileserv user disable alice
  fileserv user list -o json`,
}

var (
	userCreateAdmin       bool
	userCreatePassword    string
	userCreateDisplayName string
	userCreateEmail       string
	userCreateGroups      string
	userDeleteForce       bool
	userPasswdPassword    string
)

func init() {
	userCmd.PersistentFlags().StringVarP(&userOutput, "output", "o", "table", "Output format (table|json|yaml)")

	createCmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserCreate,
	}
	createCmd.Flags().BoolVar(&userCreateAdmin, "admin", false, "Grant the administrator role")
	createCmd.Flags().StringVar(&userCreatePassword, "password", "", "Password (prompted if omitted)")
	createCmd.Flags().StringVar(&userCreateDisplayName, "display-name", "", "Display name")
	createCmd.Flags().StringVar(&userCreateEmail, "email", "", "Email address")
	createCmd.Flags().StringVar(&userCreateGroups, "groups", "", "Comma-separated groups to join")

	deleteCmd := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user and its direct grants",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserDelete,
	}
	deleteCmd.Flags().BoolVarP(&userDeleteForce, "force", "f", false, "Skip confirmation")

	passwdCmd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Change a user's password",
		Args:  cobra.ExactArgs(1),
		RunE:  runUserPasswd,
	}
	passwdCmd.Flags().StringVar(&userPasswdPassword, "password", "", "New password (prompted if omitted)")

	userCmd.AddCommand(
		&cobra.Command{Use: "list", Aliases: []string{"ls"}, Short: "List users", Args: cobra.NoArgs, RunE: runUserList},
		&cobra.Command{Use: "get <username>", Short: "Show a user", Args: cobra.ExactArgs(1), RunE: runUserGet},
		createCmd,
		deleteCmd,
		passwdCmd,
		&cobra.Command{Use: "enable <username>", Short: "Allow a user to log in", Args: cobra.ExactArgs(1), RunE: setUserEnabled(true)},
		&cobra.Command{Use: "disable <username>", Short: "Prevent a user from logging in", Args: cobra.ExactArgs(1), RunE: setUserEnabled(false)},
		&cobra.Command{Use: "role <username> <admin|user>", Short: "Change a user's role", Args: cobra.ExactArgs(2), RunE: runUserRole},
	)
}

func printer(format string) (*output.Printer, error) {
	f, err := output.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return output.NewPrinter(os.Stdout, f, os.Getenv("NO_COLOR") == ""), nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	p, err := printer(userOutput)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	users, err := st.ListUsers(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	table := output.NewTable("Username", "Role", "Enabled", "Groups", "Last Login")
	for _, u := range users {
		last := "-"
		if u.LastLogin != nil {
			last = timeutil.FormatTime(*u.LastLogin)
		}
		table.AddRow(u.Username, u.Role, yesNo(u.Enabled), strings.Join(u.GetGroupNames(), ","), last)
	}
	return p.Print(users, table)
}

func runUserGet(cmd *cobra.Command, args []string) error {
	p, err := printer(userOutput)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	u, err := st.GetUser(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return p.Print(u, userDetails(u))
}

func userDetails(u *models.User) *output.Details {
	d := output.NewDetails().
		Add("ID", u.ID).
		Add("Username", u.Username).
		Add("Display Name", u.DisplayName).
		Add("Email", u.Email).
		Add("Role", u.Role).
		Add("Enabled", yesNo(u.Enabled)).
		Add("Groups", strings.Join(u.GetGroupNames(), ", ")).
		Add("Created", timeutil.FormatTime(u.CreatedAt))
	if u.LastLogin != nil {
		d.Add("Last Login", timeutil.FormatTime(*u.LastLogin))
	}
	return d
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	p, err := printer(userOutput)
	if err != nil {
		return err
	}

	password := userCreatePassword
	if password == "" {
		password, err = prompt.NewPassword("Password")
		if err != nil {
			return handleAbort(err)
		}
	}
	hash, err := models.HashPassword(password)
	if err != nil {
		return err
	}

	role := models.RoleUser
	if userCreateAdmin {
		role = models.RoleAdmin
	}
	user := &models.User{
		Username:     args[0],
		PasswordHash: hash,
		Enabled:      true,
		Role:         string(role),
		DisplayName:  userCreateDisplayName,
		Email:        userCreateEmail,
	}
	if err := user.Validate(); err != nil {
		return err
	}

	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	if _, err := st.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	for _, g := range splitList(userCreateGroups) {
		if err := st.AddUserToGroup(ctx, user.Username, g); err != nil {
			return fmt.Errorf("user created, but joining group %q failed: %w", g, err)
		}
	}

	created, err := st.GetUser(ctx, user.Username)
	if err != nil {
		return err
	}
	p.Success("User %q created", created.Username)
	if p.Structured() {
		return p.Print(created, nil)
	}
	return nil
}

func runUserDelete(cmd *cobra.Command, args []string) error {
	username := args[0]
	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete user '%s' and its grants?", username), userDeleteForce)
	if err != nil {
		return handleAbort(err)
	}
	if !ok {
		fmt.Println("Aborted.")
		return nil
	}

	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	if err := st.DeleteUser(cmd.Context(), username); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	fmt.Printf("User %q deleted\n", username)
	return nil
}

func runUserPasswd(cmd *cobra.Command, args []string) error {
	password := userPasswdPassword
	if password == "" {
		var err error
		password, err = prompt.NewPassword("New password")
		if err != nil {
			return handleAbort(err)
		}
	}
	hash, err := models.HashPassword(password)
	if err != nil {
		return err
	}

	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	if err := st.UpdatePassword(cmd.Context(), args[0], hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	fmt.Printf("Password for %q updated\n", args[0])
	return nil
}

func setUserEnabled(enabled bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return updateUser(cmd, args[0], func(u *models.User) error {
			u.Enabled = enabled
			return nil
		})
	}
}

func runUserRole(cmd *cobra.Command, args []string) error {
	role := models.UserRole(strings.ToLower(args[1]))
	if !role.IsValid() {
		return fmt.Errorf("invalid role %q (valid: admin, user)", args[1])
	}
	return updateUser(cmd, args[0], func(u *models.User) error {
		u.Role = string(role)
		return nil
	})
}

func updateUser(cmd *cobra.Command, username string, mutate func(*models.User) error) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	u, err := st.GetUser(ctx, username)
	if err != nil {
		return err
	}
	if err := mutate(u); err != nil {
		return err
	}
	if err := st.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	fmt.Printf("User %q updated (role %s, enabled %s)\n", u.Username, u.Role, yesNo(u.Enabled))
	return nil
}

func handleAbort(err error) error {
	if prompt.IsAborted(err) {
		fmt.Println("\nAborted.")
		return nil
	}
	return err
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
