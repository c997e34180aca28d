// Package webdav implements the file operations of a Nextcloud user's DAV
// root: upload, download, streaming, folders, moves and property queries.
package webdav

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pulsepoint/nextcloud/internal/davpath"
	"github.com/pulsepoint/nextcloud/internal/davxml"
	"github.com/pulsepoint/nextcloud/internal/transport"
	"github.com/pulsepoint/nextcloud/pkg/errors"
	"go.uber.org/zap"
)

// DAV methods not defined by net/http
const (
	MethodPropfind  = "PROPFIND"
	MethodProppatch = "PROPPATCH"
	MethodMkcol     = "MKCOL"
	MethodMove      = "MOVE"
	MethodCopy      = "COPY"
)

// Depth header values
const (
	DepthZero = "0"
	DepthOne  = "1"
)

// Client performs WebDAV operations below /remote.php/dav/files/<user>
type Client struct {
	conn   *transport.Connection
	urls   *davpath.Builder
	logger *zap.Logger
}

// NewClient creates a WebDAV client bound to a connection and URL builder
func NewClient(conn *transport.Connection, urls *davpath.Builder) *Client {
	return &Client{
		conn:   conn,
		urls:   urls,
		logger: conn.Logger().Named("webdav"),
	}
}

// resolve normalizes a user path and returns it with its request URL
func (c *Client) resolve(p string) (string, string, error) {
	norm, err := davpath.Normalize(p)
	if err != nil {
		return "", "", err
	}
	u, err := c.urls.DavURL(norm)
	if err != nil {
		return "", "", err
	}
	return norm, u, nil
}

// do sends a request and turns failure statuses into classified errors
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

// propfind issues a PROPFIND and decodes the Multi-Status reply
func (c *Client) propfind(ctx context.Context, u, depth string, props []davxml.PropName) ([]davxml.Response, error) {
	req := &transport.Request{
		Method: MethodPropfind,
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

// self finds the response describing path itself
func (c *Client) self(responses []davxml.Response, norm string) (*davxml.Response, bool) {
	for i := range responses {
		if p, ok := c.urls.PathFromHref(responses[i].Href); ok && p == norm {
			return &responses[i], true
		}
	}
	return nil, false
}

// Exists reports whether a file or folder exists at path
func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	norm, u, err := c.resolve(path)
	if err != nil {
		return false, err
	}

	responses, err := c.propfind(ctx, u, DepthZero, []davxml.PropName{
		{Space: "DAV:", Local: "resourcetype", Prefix: "d"},
	})
	if errors.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	resp, ok := c.self(responses, norm)
	if !ok {
		if len(responses) == 0 {
			return false, nil
		}
		resp = &responses[0]
	}
	if err := resp.Err(); err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Put uploads content to path, replacing any existing file. A missing
// parent folder yields a NotFound error.
func (c *Client) Put(ctx context.Context, path string, content []byte) error {
	_, u, err := c.resolve(path)
	if err != nil {
		return err
	}

	req := &transport.Request{
		Method: http.MethodPut,
		URL:    u,
		Body:   bytes.NewReader(content),
	}
	if _, err := c.do(ctx, req); err != nil {
		return err
	}

	c.logger.Debug("Uploaded file", zap.String("path", path), zap.Int("size", len(content)))
	return nil
}

// PutString uploads a string encoded as UTF-8
func (c *Client) PutString(ctx context.Context, path, content string) error {
	return c.Put(ctx, path, []byte(content))
}

// Get downloads the file at path
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	_, u, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, &transport.Request{Method: http.MethodGet, URL: u})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GetString downloads the file at path and decodes it as UTF-8
func (c *Client) GetString(ctx context.Context, path string) (string, error) {
	data, err := c.Get(ctx, path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// GetReadStream opens the file at path for streaming. The caller must close
// the returned reader.
func (c *Client) GetReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	_, u, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, &transport.Request{Method: http.MethodGet, URL: u, Mode: transport.ModeStream})
	if err != nil {
		return nil, err
	}
	return resp.Stream, nil
}

// PipeStream uploads everything read from r to path
func (c *Client) PipeStream(ctx context.Context, path string, r io.Reader) error {
	_, u, err := c.resolve(path)
	if err != nil {
		return err
	}

	req := &transport.Request{
		Method:     http.MethodPut,
		URL:        u,
		Body:       r,
		StreamBody: true,
	}
	if _, err := c.do(ctx, req); err != nil {
		return err
	}

	c.logger.Debug("Streamed file", zap.String("path", path))
	return nil
}

// Remove deletes the file or folder at path, folders recursively
func (c *Client) Remove(ctx context.Context, path string) error {
	_, u, err := c.resolve(path)
	if err != nil {
		return err
	}

	if _, err := c.do(ctx, &transport.Request{Method: http.MethodDelete, URL: u}); err != nil {
		return err
	}

	c.logger.Debug("Removed resource", zap.String("path", path))
	return nil
}

// TouchFolder creates the folder at path. An existing folder is not an error.
func (c *Client) TouchFolder(ctx context.Context, path string) error {
	_, u, err := c.resolve(path)
	if err != nil {
		return err
	}

	req := &transport.Request{Method: MethodMkcol, URL: u}
	resp, err := c.conn.Do(ctx, req)
	if err != nil {
		return err
	}
	// 405: the folder already exists
	if resp.StatusCode == http.StatusMethodNotAllowed {
		return nil
	}
	if failure := resp.Failure(req); failure != nil {
		return failure
	}

	c.logger.Debug("Created folder", zap.String("path", path))
	return nil
}

// CreateFolderHierarchy creates path and every missing ancestor
func (c *Client) CreateFolderHierarchy(ctx context.Context, path string) error {
	norm, err := davpath.Normalize(path)
	if err != nil {
		return err
	}

	for _, prefix := range davpath.Prefixes(norm) {
		if err := c.TouchFolder(ctx, prefix); err != nil {
			return fmt.Errorf("create folder %s: %w", prefix, err)
		}
	}
	return nil
}

// Rename gives the resource at path a new name within the same folder
func (c *Client) Rename(ctx context.Context, path, newName string) error {
	if newName == "" || newName == "." || newName == ".." || strings.Contains(newName, "/") {
		return errors.NewValidationError(fmt.Sprintf("invalid name %q", newName), nil)
	}

	norm, err := davpath.Normalize(path)
	if err != nil {
		return err
	}
	if norm == "/" {
		return errors.NewValidationError("cannot rename the root folder", nil)
	}

	return c.relocate(ctx, MethodMove, norm, davpath.Join(davpath.Parent(norm), newName))
}

// Move moves the resource at path to toPath. An existing destination is
// not overwritten.
func (c *Client) Move(ctx context.Context, path, toPath string) error {
	return c.relocate(ctx, MethodMove, path, toPath)
}

// Copy copies the resource at path to toPath, folders recursively. An
// existing destination is not overwritten.
func (c *Client) Copy(ctx context.Context, path, toPath string) error {
	return c.relocate(ctx, MethodCopy, path, toPath)
}

func (c *Client) relocate(ctx context.Context, method, from, to string) error {
	_, src, err := c.resolve(from)
	if err != nil {
		return err
	}
	_, dst, err := c.resolve(to)
	if err != nil {
		return err
	}

	req := &transport.Request{
		Method: method,
		URL:    src,
		Header: http.Header{
			"Destination": {dst},
			"Overwrite":   {"F"},
		},
	}
	if _, err := c.do(ctx, req); err != nil {
		return err
	}

	c.logger.Debug("Relocated resource",
		zap.String("method", method),
		zap.String("from", from),
		zap.String("to", to))
	return nil
}

// CheckConnectivity reports whether the server answers for the configured
// credential
func (c *Client) CheckConnectivity(ctx context.Context) bool {
	u, err := c.urls.DavURL("/")
	if err != nil {
		return false
	}
	if _, err := c.propfind(ctx, u, DepthZero, []davxml.PropName{{Space: "DAV:", Local: "resourcetype", Prefix: "d"}}); err != nil {
		c.logger.Debug("Connectivity check failed", zap.Error(err))
		return false
	}
	return true
}
