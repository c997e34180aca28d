// Package nextcloud is the entry point of the library: one Client bound to a
// server URL and a credential, exposing file operations directly and the
// properties and OCS APIs as sub-clients.
package nextcloud

import (
	"context"
	"io"

	"github.com/pulsepoint/nextcloud/internal/davpath"
	"github.com/pulsepoint/nextcloud/internal/transport"
	"github.com/pulsepoint/nextcloud/pkg/logger"
	"github.com/pulsepoint/nextcloud/pkg/models"
	"github.com/pulsepoint/nextcloud/pkg/ocs"
	"github.com/pulsepoint/nextcloud/pkg/properties"
	"github.com/pulsepoint/nextcloud/pkg/webdav"
	"go.uber.org/zap"
)

// Client is safe for concurrent use. Its configuration never changes after
// New; As derives clients for other users.
type Client struct {
	opts       models.ConnectionOptions
	conn       *transport.Connection
	urls       *davpath.Builder
	webdav     *webdav.Client
	properties *properties.Client
	ocs        *ocs.Client
	logger     *zap.Logger
}

// New creates a client from connection options
func New(opts models.ConnectionOptions) (*Client, error) {
	opts = opts.Normalized()
	if opts.Logger == nil {
		opts.Logger = logger.Named("nextcloud")
	}

	urls, err := davpath.NewBuilder(opts.URL, opts.Username)
	if err != nil {
		return nil, err
	}

	return build(opts, transport.NewConnection(opts), urls), nil
}

func build(opts models.ConnectionOptions, conn *transport.Connection, urls *davpath.Builder) *Client {
	return &Client{
		opts:       opts,
		conn:       conn,
		urls:       urls,
		webdav:     webdav.NewClient(conn, urls),
		properties: properties.NewClient(conn, urls),
		ocs:        ocs.NewClient(conn, urls),
		logger:     opts.Logger,
	}
}

// As returns a client for the same server authenticating as another user.
// The receiver is not modified and both share the HTTP client.
func (c *Client) As(username, password string) (*Client, error) {
	urls, err := c.urls.WithUser(username)
	if err != nil {
		return nil, err
	}

	opts := c.opts
	opts.Username = username
	opts.Password = password

	c.logger.Debug("Derived client", zap.String("user", username))
	return build(opts, c.conn.WithCredential(username, password), urls), nil
}

// Username returns the user the client authenticates as
func (c *Client) Username() string {
	return c.urls.Username()
}

// URL returns the server URL without trailing slash
func (c *Client) URL() string {
	return c.urls.BaseURL()
}

// WebDAV returns the file client backing the delegating methods
func (c *Client) WebDAV() *webdav.Client {
	return c.webdav
}

// Properties returns the file id, tag and property API
func (c *Client) Properties() *properties.Client {
	return c.properties
}

// Activities returns the activity API
func (c *Client) Activities() *ocs.Activities {
	return c.ocs.Activities()
}

// Users returns the user provisioning API
func (c *Client) Users() *ocs.Users {
	return c.ocs.Users()
}

// Groups returns the group provisioning API
func (c *Client) Groups() *ocs.Groups {
	return c.ocs.Groups()
}

// Shares returns the share API
func (c *Client) Shares() *ocs.Shares {
	return c.ocs.Shares()
}

// CheckConnectivity reports whether the server accepts the credential
func (c *Client) CheckConnectivity(ctx context.Context) bool {
	return c.webdav.CheckConnectivity(ctx)
}

// Exists reports whether a file or folder exists
func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	return c.webdav.Exists(ctx, path)
}

// Put uploads content to path
func (c *Client) Put(ctx context.Context, path string, content []byte) error {
	return c.webdav.Put(ctx, path, content)
}

// PutString uploads a string to path
func (c *Client) PutString(ctx context.Context, path, content string) error {
	return c.webdav.PutString(ctx, path, content)
}

// Get downloads a file
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.webdav.Get(ctx, path)
}

// GetString downloads a file as text
func (c *Client) GetString(ctx context.Context, path string) (string, error) {
	return c.webdav.GetString(ctx, path)
}

// GetReadStream opens a file for streaming download
func (c *Client) GetReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	return c.webdav.GetReadStream(ctx, path)
}

// GetWriteStream opens a streaming upload
func (c *Client) GetWriteStream(ctx context.Context, path string) (*webdav.WriteStream, error) {
	return c.webdav.GetWriteStream(ctx, path)
}

// PipeStream uploads everything read from r
func (c *Client) PipeStream(ctx context.Context, path string, r io.Reader) error {
	return c.webdav.PipeStream(ctx, path, r)
}

// Remove deletes a file or folder
func (c *Client) Remove(ctx context.Context, path string) error {
	return c.webdav.Remove(ctx, path)
}

// TouchFolder creates a folder if it does not exist
func (c *Client) TouchFolder(ctx context.Context, path string) error {
	return c.webdav.TouchFolder(ctx, path)
}

// CreateFolderHierarchy creates a folder and its missing ancestors
func (c *Client) CreateFolderHierarchy(ctx context.Context, path string) error {
	return c.webdav.CreateFolderHierarchy(ctx, path)
}

// Rename renames a file or folder in place
func (c *Client) Rename(ctx context.Context, path, newName string) error {
	return c.webdav.Rename(ctx, path, newName)
}

// Move moves a file or folder
func (c *Client) Move(ctx context.Context, path, toPath string) error {
	return c.webdav.Move(ctx, path, toPath)
}

// Copy copies a file or folder
func (c *Client) Copy(ctx context.Context, path, toPath string) error {
	return c.webdav.Copy(ctx, path, toPath)
}

// GetFiles lists the names in a folder
func (c *Client) GetFiles(ctx context.Context, path string) ([]string, error) {
	return c.webdav.GetFiles(ctx, path)
}

// GetFolderFileDetails lists a folder with properties
func (c *Client) GetFolderFileDetails(ctx context.Context, path string, extra ...models.FolderDetailProperty) ([]models.FileDetail, error) {
	return c.webdav.GetFolderFileDetails(ctx, path, extra...)
}

// GetFolderProperties reads the properties of one resource
func (c *Client) GetFolderProperties(ctx context.Context, path string, extra ...models.FolderDetailProperty) (models.FolderProperties, error) {
	return c.webdav.GetFolderProperties(ctx, path, extra...)
}

// SetFolderProperties writes properties of one resource
func (c *Client) SetFolderProperties(ctx context.Context, path string, values ...models.PropertyValue) error {
	return c.webdav.SetFolderProperties(ctx, path, values...)
}
