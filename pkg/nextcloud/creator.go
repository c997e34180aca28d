package nextcloud

import (
	"context"

	"github.com/pulsepoint/nextcloud/pkg/errors"
	"github.com/pulsepoint/nextcloud/pkg/models"
	"github.com/pulsepoint/nextcloud/pkg/ocs"
)

// ActivityFileCreated is the activity type recorded when a file is uploaded
const ActivityFileCreated = "file_created"

// GetCreatorByPath returns the user who created the file at path
func (c *Client) GetCreatorByPath(ctx context.Context, path string) (string, error) {
	fileID, err := c.properties.GetFileID(ctx, path)
	if err != nil {
		return "", err
	}
	return c.GetCreatorByFileID(ctx, fileID)
}

// GetCreatorByFileID returns the user of the oldest file_created activity
// of a file id
func (c *Client) GetCreatorByFileID(ctx context.Context, fileID string) (string, error) {
	query := ocs.ActivityQuery{Sort: models.SortAscending}
	for {
		activities, err := c.Activities().Get(ctx, fileID, query)
		if err != nil {
			return "", err
		}
		for _, a := range activities {
			if a.Type == ActivityFileCreated {
				return a.User, nil
			}
		}
		if len(activities) < ocs.DefaultActivityLimit {
			break
		}
		query.Since = activities[len(activities)-1].ActivityID
	}
	return "", errors.NewNotFoundError("creator of file " + fileID)
}
