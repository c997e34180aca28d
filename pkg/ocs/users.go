package ocs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pulsepoint/nextcloud/pkg/errors"
	"github.com/pulsepoint/nextcloud/pkg/models"
	"go.uber.org/zap"
)

const usersPath = "cloud/users"

// Users is the user provisioning API. All calls require an admin or
// sub-admin credential.
type Users struct {
	c *Client
}

func userPath(userID string, sub ...string) string {
	parts := append([]string{usersPath, url.PathEscape(userID)}, sub...)
	return strings.Join(parts, "/")
}

// Add creates a user. Either a password or an email address is required;
// with only an email the server sends an invitation.
func (u *Users) Add(ctx context.Context, user models.OcsNewUser) error {
	if err := requireID("user", user.UserID); err != nil {
		return err
	}
	if user.Password == "" && user.Email == "" {
		return errors.NewValidationError("a password or an email address is required", nil)
	}

	params := url.Values{"userid": {user.UserID}}
	setIf(params, "password", user.Password)
	setIf(params, "displayName", user.DisplayName)
	setIf(params, "email", user.Email)
	setIf(params, "quota", user.Quota)
	setIf(params, "language", user.Language)
	for _, g := range user.Groups {
		params.Add("groups[]", g)
	}
	for _, g := range user.SubAdmin {
		params.Add("subadmin[]", g)
	}

	if _, err := u.c.call(ctx, V1, http.MethodPost, usersPath, params); err != nil {
		return err
	}

	u.c.logger.Info("Created user", zap.String("user", user.UserID))
	return nil
}

// Get returns the record of a user
func (u *Users) Get(ctx context.Context, userID string) (*models.OcsUser, error) {
	if err := requireID("user", userID); err != nil {
		return nil, err
	}

	var user models.OcsUser
	if err := u.c.callInto(ctx, V1, http.MethodGet, userPath(userID), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// List returns the ids of the users matching opts
func (u *Users) List(ctx context.Context, opts ListOptions) ([]string, error) {
	var data struct {
		Users []string `mapstructure:"users"`
	}
	if err := u.c.callInto(ctx, V1, http.MethodGet, usersPath, opts.values(), &data); err != nil {
		return nil, err
	}
	if data.Users == nil {
		data.Users = []string{}
	}
	return data.Users, nil
}

// Edit changes one attribute of a user
func (u *Users) Edit(ctx context.Context, userID string, field models.OcsEditUserField, value string) error {
	if err := requireID("user", userID); err != nil {
		return err
	}
	if !field.Valid() {
		return errors.NewValidationError(fmt.Sprintf("unknown user field %q", field), nil)
	}

	params := url.Values{"key": {string(field)}, "value": {value}}
	_, err := u.c.call(ctx, V1, http.MethodPut, userPath(userID), params)
	return err
}

// Delete removes a user and their files
func (u *Users) Delete(ctx context.Context, userID string) error {
	if err := requireID("user", userID); err != nil {
		return err
	}
	if _, err := u.c.call(ctx, V1, http.MethodDelete, userPath(userID), nil); err != nil {
		return err
	}

	u.c.logger.Info("Deleted user", zap.String("user", userID))
	return nil
}

// SetEnabled enables or disables a user
func (u *Users) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	if err := requireID("user", userID); err != nil {
		return err
	}
	action := "disable"
	if enabled {
		action = "enable"
	}
	_, err := u.c.call(ctx, V1, http.MethodPut, userPath(userID, action), nil)
	return err
}

// GetGroups returns the groups a user belongs to
func (u *Users) GetGroups(ctx context.Context, userID string) ([]string, error) {
	if err := requireID("user", userID); err != nil {
		return nil, err
	}
	var data struct {
		Groups []string `mapstructure:"groups"`
	}
	if err := u.c.callInto(ctx, V1, http.MethodGet, userPath(userID, "groups"), nil, &data); err != nil {
		return nil, err
	}
	if data.Groups == nil {
		data.Groups = []string{}
	}
	return data.Groups, nil
}

// AddToGroup adds a user to a group
func (u *Users) AddToGroup(ctx context.Context, userID, groupID string) error {
	return u.membership(ctx, http.MethodPost, userID, "groups", groupID)
}

// RemoveFromGroup removes a user from a group
func (u *Users) RemoveFromGroup(ctx context.Context, userID, groupID string) error {
	return u.membership(ctx, http.MethodDelete, userID, "groups", groupID)
}

// GetSubAdminGroups returns the groups a user administers
func (u *Users) GetSubAdminGroups(ctx context.Context, userID string) ([]string, error) {
	if err := requireID("user", userID); err != nil {
		return nil, err
	}
	groups := []string{}
	if err := u.c.callInto(ctx, V1, http.MethodGet, userPath(userID, "subadmins"), nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// AddSubAdminToGroup makes a user sub-admin of a group
func (u *Users) AddSubAdminToGroup(ctx context.Context, userID, groupID string) error {
	return u.membership(ctx, http.MethodPost, userID, "subadmins", groupID)
}

// RemoveSubAdminFromGroup revokes a user's sub-admin rights on a group
func (u *Users) RemoveSubAdminFromGroup(ctx context.Context, userID, groupID string) error {
	return u.membership(ctx, http.MethodDelete, userID, "subadmins", groupID)
}

// ResendWelcomeEmail asks the server to mail the welcome message again
func (u *Users) ResendWelcomeEmail(ctx context.Context, userID string) error {
	if err := requireID("user", userID); err != nil {
		return err
	}
	_, err := u.c.call(ctx, V1, http.MethodPost, userPath(userID, "welcome"), nil)
	return err
}

func (u *Users) membership(ctx context.Context, method, userID, kind, groupID string) error {
	if err := requireID("user", userID); err != nil {
		return err
	}
	if err := requireID("group", groupID); err != nil {
		return err
	}
	_, err := u.c.call(ctx, V1, method, userPath(userID, kind), url.Values{"groupid": {groupID}})
	return err
}

func setIf(v url.Values, key, value string) {
	if value != "" {
		v.Set(key, value)
	}
}
