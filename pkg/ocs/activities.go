package ocs

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pulsepoint/nextcloud/pkg/errors"
	"github.com/pulsepoint/nextcloud/pkg/models"
	"go.uber.org/zap"
)

const activityFilterPath = "apps/activity/api/v2/activity/filter"

// Activity query defaults
const (
	DefaultActivityLimit = 200
	DefaultActivitySort  = models.SortDescending
)

// ActivityQuery pages through the activity stream of a file. Since is the
// activity id to continue after; zero starts at the newest (or oldest) one.
type ActivityQuery struct {
	Sort  string
	Limit int
	Since int64
}

func (q ActivityQuery) normalized() ActivityQuery {
	if q.Sort != models.SortAscending {
		q.Sort = DefaultActivitySort
	}
	if q.Limit <= 0 {
		q.Limit = DefaultActivityLimit
	}
	return q
}

// Activities reads the file activity stream
type Activities struct {
	c *Client
}

// Get returns the activities recorded for a file id
func (a *Activities) Get(ctx context.Context, fileID string, q ActivityQuery) ([]models.OcsActivity, error) {
	if err := requireID("file", fileID); err != nil {
		return nil, err
	}
	q = q.normalized()

	params := url.Values{
		"object_type": {"files"},
		"object_id":   {fileID},
		"sort":        {q.Sort},
		"limit":       {strconv.Itoa(q.Limit)},
	}
	if q.Since > 0 {
		params.Set("since", strconv.FormatInt(q.Since, 10))
	}

	resp, err := a.c.send(ctx, V2, http.MethodGet, activityFilterPath, params)
	if err != nil {
		return nil, err
	}
	// the server answers 304 when the stream holds nothing past since
	if resp.StatusCode == http.StatusNotModified || len(resp.Body) == 0 {
		return []models.OcsActivity{}, nil
	}

	env, err := parseEnvelope(resp.Body)
	if err != nil {
		return nil, err
	}

	items, ok := env.Data.([]interface{})
	if !ok {
		if s, isString := env.Data.(string); isString && s == "" {
			return []models.OcsActivity{}, nil
		}
		return nil, errors.NewParseError("activity data is not a list", resp.Body, nil)
	}

	activities := make([]models.OcsActivity, 0, len(items))
	for _, item := range items {
		activity, err := decodeActivity(item)
		if err != nil {
			return nil, err
		}
		activities = append(activities, activity)
	}

	a.c.logger.Debug("Fetched activities",
		zap.String("file_id", fileID),
		zap.Int("count", len(activities)))
	return activities, nil
}

func decodeActivity(item interface{}) (models.OcsActivity, error) {
	var activity models.OcsActivity
	if err := decode(item, &activity); err != nil {
		return activity, err
	}

	fields, ok := item.(map[string]interface{})
	if !ok {
		return activity, nil
	}
	activity.SubjectRich = decodeRichText(fields["subject_rich"])
	activity.MessageRich = decodeRichText(fields["message_rich"])
	return activity, nil
}

// decodeRichText reads the [template, {name: parameter}] pair of a rich
// activity string
func decodeRichText(v interface{}) *models.RichText {
	pair, ok := v.([]interface{})
	if !ok || len(pair) == 0 {
		return nil
	}
	template, _ := pair[0].(string)
	if template == "" {
		return nil
	}

	rich := &models.RichText{Template: template}
	if len(pair) < 2 {
		return rich
	}
	params, ok := pair[1].(map[string]interface{})
	if !ok || len(params) == 0 {
		return rich
	}

	rich.Parameters = make(map[string]models.RichParameter, len(params))
	for name, raw := range params {
		var p models.RichParameter
		if err := decode(raw, &p); err != nil {
			continue
		}
		rich.Parameters[name] = p
	}
	return rich
}
