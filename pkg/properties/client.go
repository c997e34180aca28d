// Package properties manages file ids, system tags and arbitrary DAV
// properties of files stored on a Nextcloud server.
package properties

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pulsepoint/nextcloud/internal/davpath"
	"github.com/pulsepoint/nextcloud/internal/davxml"
	"github.com/pulsepoint/nextcloud/internal/transport"
	"github.com/pulsepoint/nextcloud/pkg/errors"
	"github.com/pulsepoint/nextcloud/pkg/models"
	"github.com/pulsepoint/nextcloud/pkg/webdav"
	"go.uber.org/zap"
)

// protected lists live properties the server computes; they are read by
// GetFileProps but never written back by SaveProps
var protected = map[string]bool{
	models.QualifiedName(models.NamespaceDAV, "getlastmodified"):         true,
	models.QualifiedName(models.NamespaceDAV, "getcontentlength"):        true,
	models.QualifiedName(models.NamespaceDAV, "getcontenttype"):          true,
	models.QualifiedName(models.NamespaceDAV, "getetag"):                 true,
	models.QualifiedName(models.NamespaceDAV, "resourcetype"):            true,
	models.QualifiedName(models.NamespaceDAV, "creationdate"):            true,
	models.QualifiedName(models.NamespaceDAV, "quota-used-bytes"):        true,
	models.QualifiedName(models.NamespaceDAV, "quota-available-bytes"):   true,
	models.QualifiedName(models.NamespaceOwnCloud, "id"):                 true,
	models.QualifiedName(models.NamespaceOwnCloud, "fileid"):             true,
	models.QualifiedName(models.NamespaceOwnCloud, "size"):               true,
	models.QualifiedName(models.NamespaceOwnCloud, "permissions"):        true,
	models.QualifiedName(models.NamespaceOwnCloud, "owner-id"):           true,
	models.QualifiedName(models.NamespaceOwnCloud, "owner-display-name"): true,
	models.QualifiedName(models.NamespaceOwnCloud, "checksums"):          true,
	models.QualifiedName(models.NamespaceNextCloud, "has-preview"):       true,
}

// tag properties requested from the relations collection
var tagProps = []davxml.PropName{
	{Space: models.NamespaceOwnCloud, Local: "id", Prefix: "oc"},
	{Space: models.NamespaceOwnCloud, Local: "display-name", Prefix: "oc"},
	{Space: models.NamespaceOwnCloud, Local: "user-visible", Prefix: "oc"},
	{Space: models.NamespaceOwnCloud, Local: "user-assignable", Prefix: "oc"},
	{Space: models.NamespaceOwnCloud, Local: "can-assign", Prefix: "oc"},
}

// Client talks to the DAV properties and systemtags endpoints
type Client struct {
	conn   *transport.Connection
	urls   *davpath.Builder
	logger *zap.Logger
}

// NewClient creates a properties client bound to a connection and URL builder
func NewClient(conn *transport.Connection, urls *davpath.Builder) *Client {
	return &Client{
		conn:   conn,
		urls:   urls,
		logger: conn.Logger().Named("properties"),
	}
}

func (c *Client) do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	resp, err := c.conn.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if failure := resp.Failure(req); failure != nil {
		return nil, failure
	}
	return resp, nil
}

func (c *Client) propfind(ctx context.Context, u, depth string, props []davxml.PropName) ([]davxml.Response, error) {
	req := &transport.Request{
		Method: webdav.MethodPropfind,
		URL:    u,
		Header: http.Header{"Depth": {depth}},
		Body:   bytes.NewReader(davxml.PropfindBody(props)),
		Mode:   transport.ModeXML,
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusMultiStatus {
		return nil, errors.NewParseError(fmt.Sprintf("PROPFIND %s: expected 207, got %d", u, resp.StatusCode), resp.Body, nil)
	}
	return davxml.ParseMultiStatus(resp.Body)
}

// GetFileID returns the server's numeric id of the file at path
func (c *Client) GetFileID(ctx context.Context, path string) (string, error) {
	u, err := c.urls.DavURL(path)
	if err != nil {
		return "", err
	}

	responses, err := c.propfind(ctx, u, webdav.DepthZero, []davxml.PropName{
		{Space: models.NamespaceOwnCloud, Local: "fileid", Prefix: "oc"},
	})
	if err != nil {
		return "", err
	}

	for i := range responses {
		if err := responses[i].Err(); err != nil {
			return "", err
		}
		if p, ok := responses[i].Found(models.NamespaceOwnCloud, "fileid"); ok && p.Value != "" {
			return p.Value, nil
		}
	}
	return "", errors.NewNotFoundError("file id of " + path)
}

type createTagBody struct {
	Name           string `json:"name"`
	UserVisible    bool   `json:"userVisible"`
	UserAssignable bool   `json:"userAssignable"`
	CanAssign      bool   `json:"canAssign"`
}

// CreateTag creates a visible, assignable system tag and returns it with
// the id taken from the Location header
func (c *Client) CreateTag(ctx context.Context, name string) (*models.Tag, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.NewValidationError("tag name is required", nil)
	}

	body, err := json.Marshal(createTagBody{
		Name:           name,
		UserVisible:    true,
		UserAssignable: true,
		CanAssign:      true,
	})
	if err != nil {
		return nil, errors.NewValidationError("encode tag", err)
	}

	req := &transport.Request{
		Method: http.MethodPost,
		URL:    c.urls.TagsURL(),
		Header: http.Header{"Content-Type": {"application/json"}},
		Body:   bytes.NewReader(body),
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	id, err := ParseIDFromLocation(resp.Header.Get("Location"))
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Created tag", zap.String("name", name), zap.String("id", id))
	return &models.Tag{
		ID:             id,
		Name:           name,
		CanAssign:      true,
		UserAssignable: true,
		UserVisible:    true,
	}, nil
}

// AddTag assigns a tag to a file. Assigning an already assigned tag
// succeeds.
func (c *Client) AddTag(ctx context.Context, fileID string, tag *models.Tag) error {
	if tag == nil || tag.ID == "" {
		return errors.NewValidationError("tag id is required", nil)
	}

	req := &transport.Request{Method: http.MethodPut, URL: c.urls.TagRelationURL(fileID, tag.ID)}
	if _, err := c.do(ctx, req); err != nil {
		if errors.IsConflict(err) {
			return nil
		}
		return err
	}

	c.logger.Debug("Assigned tag", zap.String("file_id", fileID), zap.String("tag_id", tag.ID))
	return nil
}

// RemoveTag unassigns a tag from a file
func (c *Client) RemoveTag(ctx context.Context, fileID string, tag *models.Tag) error {
	if tag == nil || tag.ID == "" {
		return errors.NewValidationError("tag id is required", nil)
	}

	req := &transport.Request{Method: http.MethodDelete, URL: c.urls.TagRelationURL(fileID, tag.ID)}
	if _, err := c.do(ctx, req); err != nil {
		return err
	}
	return nil
}

// GetTags lists the tags assigned to a file
func (c *Client) GetTags(ctx context.Context, fileID string) ([]models.Tag, error) {
	responses, err := c.propfind(ctx, c.urls.TagRelationsURL(fileID), webdav.DepthOne, tagProps)
	if err != nil {
		return nil, err
	}

	tags := make([]models.Tag, 0, len(responses))
	for i := range responses {
		r := &responses[i]
		id, ok := r.Found(models.NamespaceOwnCloud, "id")
		if !ok || id.Value == "" {
			continue
		}
		tag := models.Tag{ID: id.Value}
		if p, ok := r.Found(models.NamespaceOwnCloud, "display-name"); ok {
			tag.Name = p.Value
		}
		tag.UserVisible = boolProp(r, "user-visible")
		tag.UserAssignable = boolProp(r, "user-assignable")
		tag.CanAssign = boolProp(r, "can-assign")
		tags = append(tags, tag)
	}
	return tags, nil
}

func boolProp(r *davxml.Response, local string) bool {
	p, ok := r.Found(models.NamespaceOwnCloud, local)
	return ok && (p.Value == "true" || p.Value == "1")
}

// GetFileProps reads properties of the file at path, keyed by Clark
// notation name. Without names every property the server offers is read.
func (c *Client) GetFileProps(ctx context.Context, path string, names ...string) (*models.FileProps, error) {
	norm, err := davpath.Normalize(path)
	if err != nil {
		return nil, err
	}
	u, err := c.urls.DavURL(norm)
	if err != nil {
		return nil, err
	}

	props := make([]davxml.PropName, 0, len(names))
	for _, n := range names {
		props = append(props, davxml.NameFromQualified(n))
	}

	responses, err := c.propfind(ctx, u, webdav.DepthZero, props)
	if err != nil {
		return nil, err
	}
	if len(responses) == 0 {
		return nil, errors.NewNotFoundError(norm)
	}
	if err := responses[0].Err(); err != nil {
		return nil, err
	}

	fp := models.NewFileProps(norm)
	for _, p := range responses[0].FoundProps() {
		fp.Set(models.QualifiedName(p.Name.Space, p.Name.Local), p.Value)
	}
	return fp, nil
}

// SaveProps writes back every property of fp that is not computed by the
// server
func (c *Client) SaveProps(ctx context.Context, fp *models.FileProps) error {
	if fp == nil {
		return errors.NewValidationError("file props are required", nil)
	}
	u, err := c.urls.DavURL(fp.Path)
	if err != nil {
		return err
	}

	var patch []davxml.PropValue
	for _, name := range fp.Names() {
		if protected[name] {
			continue
		}
		value, _ := fp.Get(name)
		patch = append(patch, davxml.PropValue{PropName: davxml.NameFromQualified(name), Value: value})
	}
	if len(patch) == 0 {
		return nil
	}

	if err := webdav.Proppatch(ctx, c.conn, u, patch); err != nil {
		return err
	}

	c.logger.Debug("Saved properties", zap.String("path", fp.Path), zap.Int("count", len(patch)))
	return nil
}

// ParseMultiStatus converts a raw Multi-Status body into one FileProps per
// resource, keeping only properties reported with 200 OK
func ParseMultiStatus(body []byte) ([]models.FileProps, error) {
	responses, err := davxml.ParseMultiStatus(body)
	if err != nil {
		return nil, err
	}

	out := make([]models.FileProps, 0, len(responses))
	for i := range responses {
		fp := models.NewFileProps(responses[i].Href)
		for _, p := range responses[i].FoundProps() {
			fp.Set(models.QualifiedName(p.Name.Space, p.Name.Local), p.Value)
		}
		out = append(out, *fp)
	}
	return out, nil
}

// ParseIDFromLocation extracts the trailing id of a created resource's
// Location header, e.g. "/remote.php/dav/systemtags/17" yields "17"
func ParseIDFromLocation(location string) (string, error) {
	if location == "" {
		return "", errors.NewParseError("missing Location header", nil, nil)
	}
	if u, err := url.Parse(location); err == nil {
		location = u.Path
	}
	trimmed := strings.TrimRight(location, "/")
	id := trimmed[strings.LastIndex(trimmed, "/")+1:]
	if id == "" {
		return "", errors.NewParseError(fmt.Sprintf("no id in Location %q", location), nil, nil)
	}
	return id, nil
}
