package webdav

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pulsepoint/nextcloud/internal/davpath"
	"github.com/pulsepoint/nextcloud/internal/davxml"
	"github.com/pulsepoint/nextcloud/internal/transport"
	"github.com/pulsepoint/nextcloud/pkg/errors"
	"github.com/pulsepoint/nextcloud/pkg/models"
	"go.uber.org/zap"
)

// GetFiles lists the names of the direct children of a folder
func (c *Client) GetFiles(ctx context.Context, path string) ([]string, error) {
	norm, u, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	responses, err := c.propfind(ctx, u, DepthOne, []davxml.PropName{
		{Space: models.NamespaceDAV, Local: "resourcetype", Prefix: "d"},
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(responses))
	for _, r := range c.children(responses, norm) {
		names = append(names, davpath.NameFromHref(r.Href))
	}
	return names, nil
}

// children drops the entry describing the folder itself and failed entries
func (c *Client) children(responses []davxml.Response, norm string) []davxml.Response {
	out := make([]davxml.Response, 0, len(responses))
	for _, r := range responses {
		if p, ok := c.urls.PathFromHref(r.Href); ok && p == norm {
			continue
		}
		if r.Err() != nil {
			continue
		}
		out = append(out, r)
	}
	return out
}

// GetFolderFileDetails lists the direct children of a folder with their
// standard properties plus the requested extra properties
func (c *Client) GetFolderFileDetails(ctx context.Context, path string, extra ...models.FolderDetailProperty) ([]models.FileDetail, error) {
	norm, u, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	props := append([]davxml.PropName{}, davxml.FileDetailProps...)
	for _, p := range extra {
		props = append(props, davxml.NameFromDetail(p))
	}

	responses, err := c.propfind(ctx, u, DepthOne, props)
	if err != nil {
		return nil, err
	}

	children := c.children(responses, norm)
	details := make([]models.FileDetail, 0, len(children))
	for i := range children {
		details = append(details, toFileDetail(&children[i], extra))
	}

	c.logger.Debug("Listed folder", zap.String("path", norm), zap.Int("entries", len(details)))
	return details, nil
}

func toFileDetail(r *davxml.Response, extra []models.FolderDetailProperty) models.FileDetail {
	d := models.FileDetail{
		Href: strings.TrimSuffix(r.Href, "/"),
		Name: davpath.NameFromHref(r.Href),
	}

	if r.IsCollection() {
		d.IsDirectory = true
		d.Type = models.TypeDirectory
	} else {
		d.IsFile = true
		d.Type = models.TypeFile
	}

	if p, ok := r.Found(models.NamespaceDAV, "getlastmodified"); ok {
		if t, err := http.ParseTime(p.Value); err == nil {
			d.LastModified = t
		}
	}
	if p, ok := r.Found(models.NamespaceDAV, "creationdate"); ok && p.Value != "" {
		if t, err := time.Parse(time.RFC3339, p.Value); err == nil {
			d.CreationDate = &t
		}
	}
	if p, ok := r.Found(models.NamespaceDAV, "getcontentlength"); ok {
		if n, err := strconv.ParseInt(p.Value, 10, 64); err == nil {
			d.Size = &n
		}
	}
	if p, ok := r.Found(models.NamespaceDAV, "getcontenttype"); ok {
		d.ContentType = p.Value
	}
	if p, ok := r.Found(models.NamespaceDAV, "getetag"); ok {
		d.ETag = p.Value
	}

	if len(extra) > 0 {
		d.ExtraProperties = make(map[string]interface{}, len(extra))
		for _, desc := range extra {
			if v, ok := extraValue(r, desc); ok {
				d.ExtraProperties[desc.Element] = v
			}
		}
	}
	return d
}

// extraValue decodes one requested property. Absent properties fall back to
// the descriptor's default; without a default they stay absent.
func extraValue(r *davxml.Response, desc models.FolderDetailProperty) (interface{}, bool) {
	p, found := r.Found(desc.Namespace, desc.Element)
	if found {
		if !desc.NativeType {
			return p.Value, true
		}
		if v, ok := nativeValue(p.Value); ok {
			return v, true
		}
	}
	if desc.DefaultValue != nil {
		return *desc.DefaultValue, true
	}
	return nil, false
}

// nativeValue converts integers and booleans to Go values
func nativeValue(s string) (interface{}, bool) {
	s = strings.TrimSpace(s)
	switch s {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	return nil, false
}

// GetFolderProperties reads the properties of a single resource. Without
// descriptors every property the server returns is reported as a string,
// keyed by its element name.
func (c *Client) GetFolderProperties(ctx context.Context, path string, extra ...models.FolderDetailProperty) (models.FolderProperties, error) {
	norm, u, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	var props []davxml.PropName
	for _, p := range extra {
		props = append(props, davxml.NameFromDetail(p))
	}

	responses, err := c.propfind(ctx, u, DepthZero, props)
	if err != nil {
		return nil, err
	}

	resp, ok := c.self(responses, norm)
	if !ok {
		if len(responses) == 0 {
			return nil, errors.NewNotFoundError(norm)
		}
		resp = &responses[0]
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}

	out := make(models.FolderProperties)
	if len(extra) == 0 {
		for _, p := range resp.FoundProps() {
			out[p.Name.Local] = p.Value
		}
		return out, nil
	}
	for _, desc := range extra {
		if v, ok := extraValue(resp, desc); ok {
			out[desc.Element] = v
		}
	}
	return out, nil
}

// SetFolderProperties stores text values on a resource with PROPPATCH. A
// property the server refuses fails the whole call.
func (c *Client) SetFolderProperties(ctx context.Context, path string, values ...models.PropertyValue) error {
	_, u, err := c.resolve(path)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return nil
	}

	patch := make([]davxml.PropValue, 0, len(values))
	for _, v := range values {
		patch = append(patch, davxml.PropValue{
			PropName: davxml.PropName{Space: v.Namespace, Local: v.Element, Prefix: v.NamespaceShort},
			Value:    v.Value,
		})
	}

	return Proppatch(ctx, c.conn, u, patch)
}

// Proppatch sends a PROPPATCH to an absolute URL and checks every propstat
// of the reply
func Proppatch(ctx context.Context, conn *transport.Connection, u string, patch []davxml.PropValue) error {
	req := &transport.Request{
		Method: MethodProppatch,
		URL:    u,
		Body:   bytes.NewReader(davxml.ProppatchBody(patch)),
		Mode:   transport.ModeXML,
	}
	resp, err := conn.Do(ctx, req)
	if err != nil {
		return err
	}
	if failure := resp.Failure(req); failure != nil {
		return failure
	}
	if resp.StatusCode != http.StatusMultiStatus {
		return nil
	}

	responses, err := davxml.ParseMultiStatus(resp.Body)
	if err != nil {
		return err
	}
	// a 424 only says another property failed; report the one that did
	var failed *davxml.Propstat
	for _, r := range responses {
		if err := r.Err(); err != nil {
			return err
		}
		for i := range r.Propstats {
			ps := &r.Propstats[i]
			if ps.Status == http.StatusOK || ps.Status == 0 {
				continue
			}
			if failed == nil || failed.Status == http.StatusFailedDependency {
				failed = ps
			}
		}
	}
	if failed == nil {
		return nil
	}

	names := make([]string, 0, len(failed.Props))
	for _, p := range failed.Props {
		names = append(names, models.QualifiedName(p.Name.Space, p.Name.Local))
	}
	errType := errors.Classify(failed.Status, 0, failed.Status)
	if errType == "" {
		errType = errors.Unexpected
	}
	return &errors.NextcloudError{
		Type:       errType,
		Message:    fmt.Sprintf("PROPPATCH %s refused %s", u, strings.Join(names, ", ")),
		StatusCode: failed.Status,
		Body:       resp.Body,
	}
}
