package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/pulsepoint/nextcloud/pkg/models"
	"github.com/pulsepoint/nextcloud/pkg/ocs"
	"github.com/spf13/cobra"
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Manage shares and public links",
}

var shareLsCmd = &cobra.Command{
	Use:   "ls [path]",
	Short: "List shares, optionally of one file or folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var opts ocs.ShareListOptions
		if len(args) == 1 {
			opts.Path = args[0]
		}
		opts.Reshares, _ = cmd.Flags().GetBool("reshares")
		opts.Subfiles, _ = cmd.Flags().GetBool("subfiles")

		nc, err := newClient()
		if err != nil {
			return err
		}
		shares, err := nc.Shares().List(cmd.Context(), opts)
		if err != nil {
			return err
		}
		return render(cmd, shares, func(w *tabwriter.Writer) {
			writeRow(w, "ID", "TYPE", "PATH", "WITH", "PERMISSIONS", "EXPIRES")
			for _, s := range shares {
				with := s.ShareWith
				if s.ShareType == models.ShareTypePublicLink {
					with = s.URL
				}
				writeRow(w, s.ID, s.ShareType.String(), s.Path, orDash(with),
					strconv.Itoa(int(s.Permissions)), orDash(s.Expiration))
			}
		})
	},
}

var shareInfoCmd = &cobra.Command{
	Use:   "info <id>",
	Short: "Show one share",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := newClient()
		if err != nil {
			return err
		}
		s, err := nc.Shares().Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return renderShare(cmd, s)
	},
}

var shareAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Share a file or folder",
	Long: `Share a file or folder with a user, a group, an email address or a
federated cloud id, or create a public link (--type link).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		typeName, _ := f.GetString("type")
		shareType, err := parseShareType(typeName)
		if err != nil {
			return err
		}

		req := ocs.ShareRequest{Path: args[0], ShareType: shareType}
		req.ShareWith, _ = f.GetString("with")
		req.Password, _ = f.GetString("share-password")
		req.ExpireDate, _ = f.GetString("expire")
		req.Note, _ = f.GetString("note")
		perms, _ := f.GetInt("permissions")
		req.Permissions = models.SharePermission(perms)
		if f.Changed("public-upload") {
			upload, _ := f.GetBool("public-upload")
			req.PublicUpload = &upload
		}

		nc, err := newClient()
		if err != nil {
			return err
		}
		s, err := nc.Shares().Add(cmd.Context(), req)
		if err != nil {
			return err
		}
		return renderShare(cmd, s)
	},
}

var shareEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change attributes of a share; only the given flags are applied",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := newClient()
		if err != nil {
			return err
		}
		editor := nc.Shares().Edit(args[0])
		ctx := cmd.Context()
		f := cmd.Flags()

		var share *models.OcsShare
		apply := func(s *models.OcsShare, err error) error {
			if err != nil {
				return err
			}
			share = s
			return nil
		}

		if f.Changed("permissions") {
			perms, _ := f.GetInt("permissions")
			if err := apply(editor.Permissions(ctx, models.SharePermission(perms))); err != nil {
				return err
			}
		}
		if f.Changed("share-password") {
			pw, _ := f.GetString("share-password")
			if err := apply(editor.Password(ctx, pw)); err != nil {
				return err
			}
		}
		if f.Changed("expire") {
			date, _ := f.GetString("expire")
			if err := apply(editor.ExpireDate(ctx, date)); err != nil {
				return err
			}
		}
		if f.Changed("note") {
			note, _ := f.GetString("note")
			if err := apply(editor.Note(ctx, note)); err != nil {
				return err
			}
		}
		if f.Changed("public-upload") {
			upload, _ := f.GetBool("public-upload")
			if err := apply(editor.PublicUpload(ctx, upload)); err != nil {
				return err
			}
		}

		if share == nil {
			return fmt.Errorf("nothing to change: pass at least one of --permissions, --share-password, --expire, --note, --public-upload")
		}
		return renderShare(cmd, share)
	},
}

var shareRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a share",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := newClient()
		if err != nil {
			return err
		}
		if err := nc.Shares().Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		done(cmd, "Deleted share %s", args[0])
		return nil
	},
}

func init() {
	shareLsCmd.Flags().Bool("reshares", false, "include shares created by others on the same items")
	shareLsCmd.Flags().Bool("subfiles", false, "list the shares of the folder's children")

	for _, c := range []*cobra.Command{shareAddCmd, shareEditCmd} {
		f := c.Flags()
		f.Int("permissions", 0, "permission mask: 1 read, 2 update, 4 create, 8 delete, 16 share")
		f.String("share-password", "", "password protecting a public link")
		f.String("expire", "", "expiry date, YYYY-MM-DD")
		f.String("note", "", "note for the recipient")
		f.Bool("public-upload", false, "allow uploads into a public folder link")
	}
	shareAddCmd.Flags().String("type", "user", "user, group, link, email, federated, circle or talk")
	shareAddCmd.Flags().String("with", "", "recipient: user id, group id, email or cloud id")

	shareCmd.AddCommand(shareLsCmd)
	shareCmd.AddCommand(shareInfoCmd)
	shareCmd.AddCommand(shareAddCmd)
	shareCmd.AddCommand(shareEditCmd)
	shareCmd.AddCommand(shareRmCmd)
}

var shareTypes = []models.ShareType{
	models.ShareTypeUser,
	models.ShareTypeGroup,
	models.ShareTypePublicLink,
	models.ShareTypeEmail,
	models.ShareTypeFederated,
	models.ShareTypeCircle,
	models.ShareTypeTalk,
}

func parseShareType(name string) (models.ShareType, error) {
	for _, t := range shareTypes {
		if t.String() == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown share type %q", name)
}

func renderShare(cmd *cobra.Command, s *models.OcsShare) error {
	return render(cmd, s, func(w *tabwriter.Writer) {
		writeRow(w, "id", s.ID)
		writeRow(w, "type", s.ShareType.String())
		writeRow(w, "path", s.Path)
		writeRow(w, "with", orDash(s.ShareWith))
		writeRow(w, "permissions", strconv.Itoa(int(s.Permissions)))
		writeRow(w, "expires", orDash(s.Expiration))
		writeRow(w, "note", orDash(s.Note))
		if s.Token != "" {
			writeRow(w, "token", s.Token)
		}
		if s.URL != "" {
			writeRow(w, "url", s.URL)
		}
	})
}
