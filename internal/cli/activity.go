package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/pulsepoint/nextcloud/pkg/models"
	"github.com/pulsepoint/nextcloud/pkg/ocs"
	"github.com/spf13/cobra"
)

var activityCmd = &cobra.Command{
	Use:   "activity <path>",
	Short: "Show the activity stream of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runActivity,
}

func init() {
	activityCmd.Flags().Int("limit", ocs.DefaultActivityLimit, "maximum number of activities")
	activityCmd.Flags().String("sort", ocs.DefaultActivitySort, "order: asc or desc")
	activityCmd.Flags().Int64("since", 0, "continue after this activity id")
	activityCmd.Flags().Bool("creator", false, "only print the user who created the file")
}

func runActivity(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	sort, _ := cmd.Flags().GetString("sort")
	since, _ := cmd.Flags().GetInt64("since")
	creator, _ := cmd.Flags().GetBool("creator")

	if sort != models.SortAscending && sort != models.SortDescending {
		return fmt.Errorf("invalid sort order %q: use asc or desc", sort)
	}

	nc, err := newClient()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	fileID, err := nc.Properties().GetFileID(ctx, args[0])
	if err != nil {
		return err
	}

	if creator {
		user, err := nc.GetCreatorByFileID(ctx, fileID)
		if err != nil {
			return err
		}
		return render(cmd, map[string]string{"file_id": fileID, "creator": user}, func(w *tabwriter.Writer) {
			writeRow(w, user)
		})
	}

	activities, err := nc.Activities().Get(ctx, fileID, ocs.ActivityQuery{Sort: sort, Limit: limit, Since: since})
	if err != nil {
		return err
	}

	return render(cmd, activities, func(w *tabwriter.Writer) {
		writeRow(w, "ID", "TYPE", "USER", "WHEN", "SUBJECT")
		for _, a := range activities {
			writeRow(w, strconv.FormatInt(a.ActivityID, 10), a.Type, orDash(a.User), when(a.Datetime), a.Subject)
		}
	})
}
