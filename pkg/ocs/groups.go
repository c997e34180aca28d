package ocs

import (
	"context"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

const groupsPath = "cloud/groups"

// Groups is the group provisioning API
type Groups struct {
	c *Client
}

func groupPath(groupID string, sub ...string) string {
	p := groupsPath + "/" + url.PathEscape(groupID)
	for _, s := range sub {
		p += "/" + s
	}
	return p
}

// Add creates a group
func (g *Groups) Add(ctx context.Context, groupID string) error {
	if err := requireID("group", groupID); err != nil {
		return err
	}
	if _, err := g.c.call(ctx, V1, http.MethodPost, groupsPath, url.Values{"groupid": {groupID}}); err != nil {
		return err
	}

	g.c.logger.Info("Created group", zap.String("group", groupID))
	return nil
}

// Delete removes a group; its members are kept
func (g *Groups) Delete(ctx context.Context, groupID string) error {
	if err := requireID("group", groupID); err != nil {
		return err
	}
	_, err := g.c.call(ctx, V1, http.MethodDelete, groupPath(groupID), nil)
	return err
}

// List returns the ids of the groups matching opts
func (g *Groups) List(ctx context.Context, opts ListOptions) ([]string, error) {
	var data struct {
		Groups []string `mapstructure:"groups"`
	}
	if err := g.c.callInto(ctx, V1, http.MethodGet, groupsPath, opts.values(), &data); err != nil {
		return nil, err
	}
	if data.Groups == nil {
		data.Groups = []string{}
	}
	return data.Groups, nil
}

// GetUsers returns the members of a group
func (g *Groups) GetUsers(ctx context.Context, groupID string) ([]string, error) {
	if err := requireID("group", groupID); err != nil {
		return nil, err
	}
	var data struct {
		Users []string `mapstructure:"users"`
	}
	if err := g.c.callInto(ctx, V1, http.MethodGet, groupPath(groupID), nil, &data); err != nil {
		return nil, err
	}
	if data.Users == nil {
		data.Users = []string{}
	}
	return data.Users, nil
}

// GetSubAdmins returns the sub-admins of a group
func (g *Groups) GetSubAdmins(ctx context.Context, groupID string) ([]string, error) {
	if err := requireID("group", groupID); err != nil {
		return nil, err
	}
	users := []string{}
	if err := g.c.callInto(ctx, V1, http.MethodGet, groupPath(groupID, "subadmins"), nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}
