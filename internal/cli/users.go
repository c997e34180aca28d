package cli

import (
	"strings"
	"text/tabwriter"

	"github.com/pulsepoint/nextcloud/pkg/models"
	"github.com/pulsepoint/nextcloud/pkg/ocs"
	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users (requires admin or sub-admin rights)",
}

var userLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List user ids",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := newClient()
		if err != nil {
			return err
		}
		ids, err := nc.Users().List(cmd.Context(), listOptions(cmd))
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

var userInfoCmd = &cobra.Command{
	Use:   "info <user>",
	Short: "Show a user record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := newClient()
		if err != nil {
			return err
		}
		u, err := nc.Users().Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return render(cmd, u, func(w *tabwriter.Writer) {
			writeRow(w, "id", u.ID)
			writeRow(w, "display name", orDash(u.DisplayName))
			writeRow(w, "email", orDash(u.Email))
			writeRow(w, "enabled", boolWord(u.Enabled))
			writeRow(w, "groups", orDash(strings.Join(u.Groups, ", ")))
			writeRow(w, "sub-admin of", orDash(strings.Join(u.SubAdmin, ", ")))
			writeRow(w, "quota used", sizeOf(u.Quota.Used))
		})
	},
}

var userAddCmd = &cobra.Command{
	Use:   "add <user>",
	Short: "Create a user; without password the server mails an invitation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		nu := models.OcsNewUser{UserID: args[0]}
		nu.Password, _ = f.GetString("new-password")
		nu.DisplayName, _ = f.GetString("display-name")
		nu.Email, _ = f.GetString("email")
		nu.Quota, _ = f.GetString("quota")
		nu.Language, _ = f.GetString("language")
		nu.Groups, _ = f.GetStringSlice("group")
		nu.SubAdmin, _ = f.GetStringSlice("subadmin")

		nc, err := newClient()
		if err != nil {
			return err
		}
		if err := nc.Users().Add(cmd.Context(), nu); err != nil {
			return err
		}
		done(cmd, "Created user %s", nu.UserID)
		return nil
	},
}

var userEditCmd = &cobra.Command{
	Use:   "edit <user> <field> <value>",
	Short: "Change one attribute: displayname, email, password, quota, phone, address, website, twitter, locale, language",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := newClient()
		if err != nil {
			return err
		}
		if err := nc.Users().Edit(cmd.Context(), args[0], models.OcsEditUserField(args[1]), args[2]); err != nil {
			return err
		}
		done(cmd, "Updated %s of %s", args[1], args[0])
		return nil
	},
}

var userRmCmd = &cobra.Command{
	Use:   "rm <user>",
	Short: "Delete a user and their files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := newClient()
		if err != nil {
			return err
		}
		if err := nc.Users().Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		done(cmd, "Deleted user %s", args[0])
		return nil
	},
}

var userEnableCmd = &cobra.Command{
	Use:   "enable <user>",
	Short: "Enable a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args[0], true)
	},
}

var userDisableCmd = &cobra.Command{
	Use:   "disable <user>",
	Short: "Disable a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setEnabled(cmd, args[0], false)
	},
}

var userGroupsCmd = &cobra.Command{
	Use:   "groups <user>",
	Short: "List the groups of a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := newClient()
		if err != nil {
			return err
		}
		subadmin, _ := cmd.Flags().GetBool("subadmin")

		var groups []string
		if subadmin {
			groups, err = nc.Users().GetSubAdminGroups(cmd.Context(), args[0])
		} else {
			groups, err = nc.Users().GetGroups(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}
		return render(cmd, groups, func(w *tabwriter.Writer) {
			for _, g := range groups {
				writeRow(w, g)
			}
		})
	},
}

var userJoinCmd = &cobra.Command{
	Use:   "join <user> <group>",
	Short: "Add a user to a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := newClient()
		if err != nil {
			return err
		}
		users := nc.Users()
		subadmin, _ := cmd.Flags().GetBool("subadmin")
		if subadmin {
			err = users.AddSubAdminToGroup(cmd.Context(), args[0], args[1])
		} else {
			err = users.AddToGroup(cmd.Context(), args[0], args[1])
		}
		if err != nil {
			return err
		}
		done(cmd, "Added %s to %s", args[0], args[1])
		return nil
	},
}

var userLeaveCmd = &cobra.Command{
	Use:   "leave <user> <group>",
	Short: "Remove a user from a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := newClient()
		if err != nil {
			return err
		}
		users := nc.Users()
		subadmin, _ := cmd.Flags().GetBool("subadmin")
		if subadmin {
			err = users.RemoveSubAdminFromGroup(cmd.Context(), args[0], args[1])
		} else {
			err = users.RemoveFromGroup(cmd.Context(), args[0], args[1])
		}
		if err != nil {
			return err
		}
		done(cmd, "Removed %s from %s", args[0], args[1])
		return nil
	},
}

var userWelcomeCmd = &cobra.Command{
	Use:   "welcome <user>",
	Short: "Send the welcome email again",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := newClient()
		if err != nil {
			return err
		}
		if err := nc.Users().ResendWelcomeEmail(cmd.Context(), args[0]); err != nil {
			return err
		}
		done(cmd, "Sent welcome email to %s", args[0])
		return nil
	},
}

func init() {
	addListFlags(userLsCmd)

	f := userAddCmd.Flags()
	f.String("new-password", "", "initial password")
	f.String("display-name", "", "display name")
	f.String("email", "", "email address")
	f.String("quota", "", "storage quota, e.g. 5 GB")
	f.String("language", "", "language code")
	f.StringSlice("group", nil, "group to join (repeatable)")
	f.StringSlice("subadmin", nil, "group to administer (repeatable)")

	userGroupsCmd.Flags().Bool("subadmin", false, "list administered groups instead")
	userJoinCmd.Flags().Bool("subadmin", false, "grant sub-admin rights instead of membership")
	userLeaveCmd.Flags().Bool("subadmin", false, "revoke sub-admin rights instead of membership")

	userCmd.AddCommand(userLsCmd)
	userCmd.AddCommand(userInfoCmd)
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userEditCmd)
	userCmd.AddCommand(userRmCmd)
	userCmd.AddCommand(userEnableCmd)
	userCmd.AddCommand(userDisableCmd)
	userCmd.AddCommand(userGroupsCmd)
	userCmd.AddCommand(userJoinCmd)
	userCmd.AddCommand(userLeaveCmd)
	userCmd.AddCommand(userWelcomeCmd)
}

func setEnabled(cmd *cobra.Command, userID string, enabled bool) error {
	nc, err := newClient()
	if err != nil {
		return err
	}
	if err := nc.Users().SetEnabled(cmd.Context(), userID, enabled); err != nil {
		return err
	}
	if enabled {
		done(cmd, "Enabled user %s", userID)
	} else {
		done(cmd, "Disabled user %s", userID)
	}
	return nil
}

func addListFlags(cmd *cobra.Command) {
	cmd.Flags().String("search", "", "only ids containing this text")
	cmd.Flags().Int("limit", 0, "maximum number of results")
	cmd.Flags().Int("offset", 0, "number of results to skip")
}

func listOptions(cmd *cobra.Command) ocs.ListOptions {
	var o ocs.ListOptions
	o.Search, _ = cmd.Flags().GetString("search")
	o.Limit, _ = cmd.Flags().GetInt("limit")
	o.Offset, _ = cmd.Flags().GetInt("offset")
	return o
}

func boolWord(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
