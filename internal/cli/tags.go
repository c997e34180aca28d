package cli

import (
	"context"
	"strconv"
	"text/tabwriter"

	"github.com/pulsepoint/nextcloud/pkg/models"
	"github.com/spf13/cobra"
)

var tagCmd = &cobra.Command{
	Use:   "tag",
	Short: "Manage system tags",
}

var tagCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a visible, assignable tag and print its id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := newClient()
		if err != nil {
			return err
		}
		tag, err := nc.Properties().CreateTag(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return render(cmd, tag, func(w *tabwriter.Writer) {
			writeRow(w, "ID", "NAME")
			writeRow(w, tag.ID, tag.Name)
		})
	},
}

var tagAddCmd = &cobra.Command{
	Use:   "add <path> <tag-id>",
	Short: "Assign a tag to a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTag(cmd, args, func(nc tagger, fileID string, tag *models.Tag) error {
			if err := nc.AddTag(cmd.Context(), fileID, tag); err != nil {
				return err
			}
			done(cmd, "Tagged %s with %s", args[0], tag.ID)
			return nil
		})
	},
}

var tagRmCmd = &cobra.Command{
	Use:   "rm <path> <tag-id>",
	Short: "Remove a tag from a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTag(cmd, args, func(nc tagger, fileID string, tag *models.Tag) error {
			if err := nc.RemoveTag(cmd.Context(), fileID, tag); err != nil {
				return err
			}
			done(cmd, "Removed tag %s from %s", tag.ID, args[0])
			return nil
		})
	},
}

var tagLsCmd = &cobra.Command{
	Use:   "ls <path>",
	Short: "List the tags of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nc, err := newClient()
		if err != nil {
			return err
		}
		props := nc.Properties()

		fileID, err := props.GetFileID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		tags, err := props.GetTags(cmd.Context(), fileID)
		if err != nil {
			return err
		}

		return render(cmd, tags, func(w *tabwriter.Writer) {
			writeRow(w, "ID", "NAME", "VISIBLE", "ASSIGNABLE")
			for _, t := range tags {
				writeRow(w, t.ID, t.Name, strconv.FormatBool(t.UserVisible), strconv.FormatBool(t.UserAssignable))
			}
		})
	},
}

func init() {
	tagCmd.AddCommand(tagCreateCmd)
	tagCmd.AddCommand(tagAddCmd)
	tagCmd.AddCommand(tagRmCmd)
	tagCmd.AddCommand(tagLsCmd)
}

// tagger is the part of the properties client the assignment commands use
type tagger interface {
	AddTag(ctx context.Context, fileID string, tag *models.Tag) error
	RemoveTag(ctx context.Context, fileID string, tag *models.Tag) error
}

// withTag resolves the file id of args[0] and runs fn with the tag args[1]
func withTag(cmd *cobra.Command, args []string, fn func(nc tagger, fileID string, tag *models.Tag) error) error {
	nc, err := newClient()
	if err != nil {
		return err
	}
	props := nc.Properties()

	fileID, err := props.GetFileID(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return fn(props, fileID, &models.Tag{ID: args[1]})
}
