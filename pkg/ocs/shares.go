package ocs

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pulsepoint/nextcloud/internal/davpath"
	"github.com/pulsepoint/nextcloud/pkg/errors"
	"github.com/pulsepoint/nextcloud/pkg/models"
	"go.uber.org/zap"
)

const sharesPath = "apps/files_sharing/api/v1/shares"

// ExpireDateLayout is the date format accepted for share expiry
const ExpireDateLayout = "2006-01-02"

// ShareRequest describes a share to create
type ShareRequest struct {
	Path        string
	ShareType   models.ShareType
	ShareWith   string
	Permissions models.SharePermission
	Password    string
	// PublicUpload applies to public links only
	PublicUpload *bool
	ExpireDate   string
	Note         string
}

// ShareListOptions narrows a share listing
type ShareListOptions struct {
	// Path limits the listing to shares of one file or folder
	Path string
	// Reshares includes shares created by other users on the same items
	Reshares bool
	// Subfiles lists the shares of the folder's children instead
	Subfiles bool
}

// Shares is the files_sharing API
type Shares struct {
	c *Client
}

func sharePath(id string) string {
	return sharesPath + "/" + url.PathEscape(id)
}

func needsRecipient(t models.ShareType) bool {
	switch t {
	case models.ShareTypePublicLink:
		return false
	}
	return true
}

// Add creates a share and returns it as stored by the server
func (s *Shares) Add(ctx context.Context, r ShareRequest) (*models.OcsShare, error) {
	p, err := davpath.Normalize(r.Path)
	if err != nil {
		return nil, err
	}
	if p == "/" {
		return nil, errors.NewValidationError("the root folder cannot be shared", nil)
	}
	if needsRecipient(r.ShareType) && r.ShareWith == "" {
		return nil, errors.NewValidationError("share type "+r.ShareType.String()+" needs a recipient", nil)
	}
	if r.ExpireDate != "" {
		if _, err := time.Parse(ExpireDateLayout, r.ExpireDate); err != nil {
			return nil, errors.NewValidationError("expire date must be YYYY-MM-DD", err)
		}
	}

	params := url.Values{
		"path":      {p},
		"shareType": {strconv.Itoa(int(r.ShareType))},
	}
	setIf(params, "shareWith", r.ShareWith)
	setIf(params, "password", r.Password)
	setIf(params, "expireDate", r.ExpireDate)
	setIf(params, "note", r.Note)
	if r.Permissions > 0 {
		params.Set("permissions", strconv.Itoa(int(r.Permissions)))
	}
	if r.PublicUpload != nil {
		params.Set("publicUpload", strconv.FormatBool(*r.PublicUpload))
	}

	var share models.OcsShare
	if err := s.c.callInto(ctx, V1, http.MethodPost, sharesPath, params, &share); err != nil {
		return nil, err
	}

	s.c.logger.Info("Created share",
		zap.String("path", p),
		zap.String("type", r.ShareType.String()),
		zap.String("id", share.ID))
	return &share, nil
}

// Get returns one share by id
func (s *Shares) Get(ctx context.Context, id string) (*models.OcsShare, error) {
	if err := requireID("share", id); err != nil {
		return nil, err
	}

	env, err := s.c.call(ctx, V1, http.MethodGet, sharePath(id), nil)
	if err != nil {
		return nil, err
	}

	// the server wraps a single share in a list
	data := env.Data
	if list, ok := data.([]interface{}); ok {
		if len(list) == 0 {
			return nil, errors.NewNotFoundError("share " + id)
		}
		data = list[0]
	}

	var share models.OcsShare
	if err := decode(data, &share); err != nil {
		return nil, err
	}
	return &share, nil
}

// List returns the shares visible to the credential
func (s *Shares) List(ctx context.Context, opts ShareListOptions) ([]models.OcsShare, error) {
	params := url.Values{}
	if opts.Path != "" {
		p, err := davpath.Normalize(opts.Path)
		if err != nil {
			return nil, err
		}
		params.Set("path", p)
	}
	if opts.Reshares {
		params.Set("reshares", "true")
	}
	if opts.Subfiles {
		params.Set("subfiles", "true")
	}

	shares := []models.OcsShare{}
	if err := s.c.callInto(ctx, V1, http.MethodGet, sharesPath, params, &shares); err != nil {
		return nil, err
	}
	return shares, nil
}

// Delete removes a share
func (s *Shares) Delete(ctx context.Context, id string) error {
	if err := requireID("share", id); err != nil {
		return err
	}
	if _, err := s.c.call(ctx, V1, http.MethodDelete, sharePath(id), nil); err != nil {
		return err
	}

	s.c.logger.Info("Deleted share", zap.String("id", id))
	return nil
}

// Edit returns an editor for one attribute at a time of a share
func (s *Shares) Edit(id string) *ShareEditor {
	return &ShareEditor{s: s, id: id}
}

// ShareEditor updates single attributes of an existing share
type ShareEditor struct {
	s  *Shares
	id string
}

func (e *ShareEditor) update(ctx context.Context, key, value string) (*models.OcsShare, error) {
	if err := requireID("share", e.id); err != nil {
		return nil, err
	}

	var share models.OcsShare
	if err := e.s.c.callInto(ctx, V1, http.MethodPut, sharePath(e.id), url.Values{key: {value}}, &share); err != nil {
		return nil, err
	}
	return &share, nil
}

// Permissions replaces the permission mask
func (e *ShareEditor) Permissions(ctx context.Context, p models.SharePermission) (*models.OcsShare, error) {
	if p <= 0 || p > models.PermissionAll {
		return nil, errors.NewValidationError("permissions must be between 1 and 31", nil)
	}
	return e.update(ctx, "permissions", strconv.Itoa(int(p)))
}

// Password sets the password of a public link; empty removes it
func (e *ShareEditor) Password(ctx context.Context, password string) (*models.OcsShare, error) {
	return e.update(ctx, "password", password)
}

// PublicUpload allows or forbids uploads into a public folder link
func (e *ShareEditor) PublicUpload(ctx context.Context, allow bool) (*models.OcsShare, error) {
	return e.update(ctx, "publicUpload", strconv.FormatBool(allow))
}

// ExpireDate sets the expiry date (YYYY-MM-DD); empty removes it
func (e *ShareEditor) ExpireDate(ctx context.Context, date string) (*models.OcsShare, error) {
	if date != "" {
		if _, err := time.Parse(ExpireDateLayout, date); err != nil {
			return nil, errors.NewValidationError("expire date must be YYYY-MM-DD", err)
		}
	}
	return e.update(ctx, "expireDate", date)
}

// Note sets the note shown to the recipient
func (e *ShareEditor) Note(ctx context.Context, note string) (*models.OcsShare, error) {
	return e.update(ctx, "note", note)
}
