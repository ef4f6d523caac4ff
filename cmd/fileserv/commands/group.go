package commands

import (
	"fmt"
	"strings"

	"github.com/marmos91/fileserv/internal/cli/output"
	"github.com/marmos91/fileserv/internal/cli/prompt"
	"github.com/marmos91/fileserv/pkg/controlplane/models"
	"github.com/spf13/cobra"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage groups",
	Long: `Manage user groups. Zone permissions can be granted to a group, and
apply to every member.

Examples:
  fileserv group create editors --description "Content editors"
  fileserv group add-user editors alice
  fileserv group members editors`,
}

var (
	groupDescription string
	groupDeleteForce bool
)

func init() {
	groupCmd.PersistentFlags().StringVarP(&userOutput, "output", "o", "table", "Output format (table|json|yaml)")

	createCmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a group",
		Args:  cobra.ExactArgs(1),
		RunE:  runGroupCreate,
	}
	createCmd.Flags().StringVar(&groupDescription, "description", "", "Group description")

	deleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a group and its grants",
		Args:  cobra.ExactArgs(1),
		RunE:  runGroupDelete,
	}
	deleteCmd.Flags().BoolVarP(&groupDeleteForce, "force", "f", false, "Skip confirmation")

	groupCmd.AddCommand(
		&cobra.Command{Use: "list", Aliases: []string{"ls"}, Short: "List groups", Args: cobra.NoArgs, RunE: runGroupList},
		createCmd,
		deleteCmd,
		&cobra.Command{Use: "members <name>", Short: "List group members", Args: cobra.ExactArgs(1), RunE: runGroupMembers},
		&cobra.Command{Use: "add-user <group> <username>", Short: "Add a user to a group", Args: cobra.ExactArgs(2), RunE: runGroupAddUser},
		&cobra.Command{Use: "remove-user <group> <username>", Short: "Remove a user from a group", Args: cobra.ExactArgs(2), RunE: runGroupRemoveUser},
	)
}

func runGroupList(cmd *cobra.Command, args []string) error {
	p, err := printer(userOutput)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	groups, err := st.ListGroups(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}
	table := output.NewTable("Name", "Description", "Members")
	for _, g := range groups {
		table.AddRow(g.Name, g.Description, strings.Join(g.MemberNames(), ", "))
	}
	return p.Print(groups, table)
}

func runGroupCreate(cmd *cobra.Command, args []string) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	group := &models.Group{Name: args[0], Description: groupDescription}
	if _, err := st.CreateGroup(cmd.Context(), group); err != nil {
		return fmt.Errorf("failed to create group: %w", err)
	}
	fmt.Printf("Group %q created\n", group.Name)
	return nil
}

func runGroupDelete(cmd *cobra.Command, args []string) error {
	ok, err := prompt.ConfirmWithForce(fmt.Sprintf("Delete group '%s' and its grants?", args[0]), groupDeleteForce)
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

	if err := st.DeleteGroup(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	fmt.Printf("Group %q deleted\n", args[0])
	return nil
}

func runGroupMembers(cmd *cobra.Command, args []string) error {
	p, err := printer(userOutput)
	if err != nil {
		return err
	}
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	members, err := st.GetGroupMembers(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	table := output.NewTable("Username", "Role", "Enabled")
	for _, u := range members {
		table.AddRow(u.Username, u.Role, yesNo(u.Enabled))
	}
	return p.Print(members, table)
}

func runGroupAddUser(cmd *cobra.Command, args []string) error {
	return changeMembership(cmd, args[0], args[1], true)
}

func runGroupRemoveUser(cmd *cobra.Command, args []string) error {
	return changeMembership(cmd, args[0], args[1], false)
}

func changeMembership(cmd *cobra.Command, group, username string, add bool) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	verb := "added to"
	if add {
		err = st.AddUserToGroup(cmd.Context(), username, group)
	} else {
		verb = "removed from"
		err = st.RemoveUserFromGroup(cmd.Context(), username, group)
	}
	if err != nil {
		return err
	}
	fmt.Printf("User %q %s group %q\n", username, verb, strings.TrimSpace(group))
	return nil
}
