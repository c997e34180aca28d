// Package transport is the single HTTP primitive every Nextcloud request
// goes through: credential, request id, deadlines and error mapping.
package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pulsepoint/nextcloud/pkg/errors"
	"github.com/pulsepoint/nextcloud/pkg/logger"
	"github.com/pulsepoint/nextcloud/pkg/models"
	"go.uber.org/zap"
)

// RequestIDHeader carries the per-request id used to correlate client and
// server logs
const RequestIDHeader = "X-Request-ID"

// Mode selects how the response body is delivered
type Mode int

const (
	// ModeBytes reads the whole body into Response.Body
	ModeBytes Mode = iota
	// ModeStream hands the open body to the caller as Response.Stream
	ModeStream
	// ModeXML reads the whole body and marks the request body as XML
	ModeXML
)

// Request describes one HTTP exchange
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   io.Reader
	Mode   Mode
	// StreamBody marks Body as a producer of unknown length. Such requests
	// have no overall deadline, only the idle timeout between reads.
	StreamBody bool
}

// Response is the outcome of an exchange that reached the server
type Response struct {
	StatusCode int
	Header     http.Header
	// Body is set in ModeBytes and ModeXML, and for failed ModeStream requests
	Body []byte
	// Stream is set for successful ModeStream requests; the caller must close it
	Stream io.ReadCloser
}

// Failure returns the classified error for a non-success status, or nil
func (r *Response) Failure(req *Request) error {
	if ne := errors.FromStatus(req.Method, req.URL, r.StatusCode, r.Body); ne != nil {
		return ne
	}
	return nil
}

// Connection carries the credential and the shared HTTP client
type Connection struct {
	httpClient  *http.Client
	username    string
	password    string
	timeout     time.Duration
	idleTimeout time.Duration
	logger      *zap.Logger
}

// NewConnection creates a connection from normalized options
func NewConnection(opts models.ConnectionOptions) *Connection {
	opts = opts.Normalized()

	httpClient := opts.HTTPClient
	if httpClient == nil {
		// No client-wide timeout: streams are bounded by the idle timeout
		httpClient = &http.Client{}
	}

	log := opts.Logger
	if log == nil {
		log = logger.Named("transport")
	}

	return &Connection{
		httpClient:  httpClient,
		username:    opts.Username,
		password:    opts.Password,
		timeout:     opts.Timeout,
		idleTimeout: opts.IdleTimeout,
		logger:      log,
	}
}

// WithCredential returns a connection sharing the HTTP client but
// authenticating as another user
func (c *Connection) WithCredential(username, password string) *Connection {
	clone := *c
	clone.username = username
	clone.password = password
	return &clone
}

// Username returns the user the connection authenticates as
func (c *Connection) Username() string {
	return c.username
}

// Logger returns the connection's logger
func (c *Connection) Logger() *zap.Logger {
	return c.logger
}

// Do performs the request. A returned error means no usable response was
// obtained (transport failure, cancellation); HTTP failure statuses are
// reported through Response.Failure.
func (c *Connection) Do(ctx context.Context, r *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, contextError(r, err)
	}

	parent := ctx
	streaming := r.Mode == ModeStream || r.StreamBody

	var (
		cancel context.CancelFunc
		idle   *idleTimer
	)
	if streaming {
		ctx, cancel = context.WithCancel(ctx)
		idle = newIdleTimer(c.idleTimeout, cancel)
	} else {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	body := r.Body
	if r.StreamBody && body != nil {
		body = &idleReader{r: body, idle: idle}
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		cancel()
		idle.stop()
		return nil, errors.NewValidationError(fmt.Sprintf("build %s request", r.Method), err)
	}

	for key, values := range r.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if r.Mode == ModeXML && r.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/xml; charset=utf-8")
	}

	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.SetBasicAuth(c.username, c.password)

	log := logger.WithRequestID(c.logger, requestID)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		fired := idle.stop()
		log.Debug("Request failed",
			zap.String("method", r.Method),
			zap.String("url", r.URL),
			zap.Error(err))
		return nil, c.mapError(parent, r, err, fired)
	}

	log.Debug("Request completed",
		zap.String("method", r.Method),
		zap.String("url", r.URL),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if r.Mode == ModeStream && resp.StatusCode < 400 {
		idle.reset()
		return &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Stream:     &streamBody{body: resp.Body, idle: idle, cancel: cancel, req: r},
		}, nil
	}

	defer cancel()
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if idle != nil {
		reader = &idleReader{r: resp.Body, idle: idle}
	}
	data, err := io.ReadAll(reader)
	fired := idle.stop()
	if err != nil {
		return nil, c.mapError(parent, r, err, fired)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

func (c *Connection) mapError(parent context.Context, r *Request, err error, idleFired bool) error {
	if perr := parent.Err(); stderrors.Is(perr, context.Canceled) {
		return contextError(r, perr)
	}
	if idleFired {
		return errors.NewTransportError(fmt.Sprintf("%s %s: idle timeout after %s", r.Method, r.URL, c.idleTimeout), err)
	}
	var ne *errors.NextcloudError
	if stderrors.As(err, &ne) {
		return ne
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewTransportError(fmt.Sprintf("%s %s: timed out", r.Method, r.URL), err)
	}
	return errors.NewTransportError(fmt.Sprintf("%s %s", r.Method, r.URL), err)
}

func contextError(r *Request, err error) error {
	if stderrors.Is(err, context.Canceled) {
		return errors.NewCancelledError(fmt.Sprintf("%s %s cancelled", r.Method, r.URL), err)
	}
	return errors.NewTransportError(fmt.Sprintf("%s %s: deadline exceeded", r.Method, r.URL), err)
}
