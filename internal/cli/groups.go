package cli

import (
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage groups",
}

var groupLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List group ids",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := newClient()
		if err != nil {
			return err
		}
		ids, err := nc.Groups().List(cmd.Context(), listOptions(cmd))
		if err != nil {
			return err
		}
		return render(cmd, ids, func(w *tabwriter.Writer) {
			for _, id := range ids {
				writeRow(w, id)
			}
		})
	},
}

var groupAddCmd = &cobra.Command{
	Use:   "add <group>",
	Short: "Create a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := newClient()
		if err != nil {
			return err
		}
		if err := nc.Groups().Add(cmd.Context(), args[0]); err != nil {
			return err
		}
		done(cmd, "Created group %s", args[0])
		return nil
	},
}

var groupRmCmd = &cobra.Command{
	Use:   "rm <group>",
	Short: "Delete a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := newClient()
		if err != nil {
			return err
		}
		if err := nc.Groups().Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		done(cmd, "Deleted group %s", args[0])
		return nil
	},
}

var groupMembersCmd = &cobra.Command{
	Use:   "members <group>",
	Short: "List the members of a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := newClient()
		if err != nil {
			return err
		}
		subadmins, _ := cmd.Flags().GetBool("subadmins")

		var ids []string
		if subadmins {
			ids, err = nc.Groups().GetSubAdmins(cmd.Context(), args[0])
		} else {
			ids, err = nc.Groups().GetUsers(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}
		return render(cmd, ids, func(w *tabwriter.Writer) {
			for _, id := range ids {
				writeRow(w, id)
			}
		})
	},
}

func init() {
	addListFlags(groupLsCmd)
	groupMembersCmd.Flags().Bool("subadmins", false, "list the sub-admins instead")

	groupCmd.AddCommand(groupLsCmd)
	groupCmd.AddCommand(groupAddCmd)
	groupCmd.AddCommand(groupRmCmd)
	groupCmd.AddCommand(groupMembersCmd)
}
