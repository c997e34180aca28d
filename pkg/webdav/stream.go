package webdav

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/pulsepoint/nextcloud/internal/davpath"
	"github.com/pulsepoint/nextcloud/internal/transport"
	"github.com/pulsepoint/nextcloud/pkg/errors"
	"go.uber.org/zap"
)

// WriteStream uploads everything written to it as a single PUT. The upload
// completes when Close returns; its outcome is reported by Close and,
// after Done is closed, by Err.
type WriteStream struct {
	path string
	pw   *io.PipeWriter
	done chan struct{}
	err  error
	once sync.Once
}

// GetWriteStream opens an upload to path. The parent folder is checked up
// front so that a missing folder fails here with NotFound instead of on
// Close.
func (c *Client) GetWriteStream(ctx context.Context, path string) (*WriteStream, error) {
	norm, u, err := c.resolve(path)
	if err != nil {
		return nil, err
	}

	parent := davpath.Parent(norm)
	if parent != "/" {
		ok, err := c.Exists(ctx, parent)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.NewNotFoundError(parent)
		}
	}

	pr, pw := io.Pipe()
	ws := &WriteStream{
		path: norm,
		pw:   pw,
		done: make(chan struct{}),
	}

	req := &transport.Request{
		Method:     http.MethodPut,
		URL:        u,
		Body:       pr,
		StreamBody: true,
	}

	go func() {
		defer close(ws.done)

		_, err := c.do(ctx, req)
		ws.err = err

		// unblock a writer when the server answered before reading everything
		if err != nil {
			pr.CloseWithError(err)
		} else {
			pr.CloseWithError(io.ErrClosedPipe)
		}

		if err != nil {
			c.logger.Debug("Write stream failed", zap.String("path", norm), zap.Error(err))
			return
		}
		c.logger.Debug("Write stream completed", zap.String("path", norm))
	}()

	return ws, nil
}

// Write sends p to the server
func (w *WriteStream) Write(p []byte) (int, error) {
	n, err := w.pw.Write(p)
	if err != nil {
		select {
		case <-w.done:
			if w.err != nil {
				return n, w.err
			}
		default:
		}
		return n, errors.NewTransportError("write stream "+w.path, err)
	}
	return n, nil
}

// Close ends the body and waits for the server's answer
func (w *WriteStream) Close() error {
	w.once.Do(func() {
		w.pw.Close()
	})
	<-w.done
	return w.err
}

// Abort cancels the upload with cause and waits for the request to end
func (w *WriteStream) Abort(cause error) error {
	w.once.Do(func() {
		w.pw.CloseWithError(cause)
	})
	<-w.done
	return w.err
}

// Done is closed once the upload has finished, successfully or not
func (w *WriteStream) Done() <-chan struct{} {
	return w.done
}

// Err returns the upload outcome; it is only meaningful after Done is closed
func (w *WriteStream) Err() error {
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}
