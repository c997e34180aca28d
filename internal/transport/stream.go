package transport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulsepoint/nextcloud/pkg/errors"
)

// idleTimer cancels a request when no bytes moved for the idle timeout.
// All methods are safe on a nil receiver.
type idleTimer struct {
	timeout time.Duration
	timer   *time.Timer
	fired   atomic.Bool
}

func newIdleTimer(timeout time.Duration, cancel context.CancelFunc) *idleTimer {
	t := &idleTimer{timeout: timeout}
	t.timer = time.AfterFunc(timeout, func() {
		t.fired.Store(true)
		cancel()
	})
	return t
}

func (t *idleTimer) reset() {
	if t == nil || t.fired.Load() {
		return
	}
	t.timer.Reset(t.timeout)
}

// stop disarms the timer and reports whether it had already fired
func (t *idleTimer) stop() bool {
	if t == nil {
		return false
	}
	t.timer.Stop()
	return t.fired.Load()
}

// idleReader re-arms the idle timer on every read that moves bytes
type idleReader struct {
	r    io.Reader
	idle *idleTimer
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.idle.reset()
	}
	return n, err
}

// streamBody is the response body handed to callers in ModeStream. It owns
// the request context and releases it exactly once on Close.
type streamBody struct {
	body   io.ReadCloser
	idle   *idleTimer
	cancel context.CancelFunc
	req    *Request

	once     sync.Once
	closeErr error
}

func (s *streamBody) Read(p []byte) (int, error) {
	n, err := s.body.Read(p)
	if n > 0 {
		s.idle.reset()
	}
	if err != nil && err != io.EOF && s.idle.fired.Load() {
		return n, errors.NewTransportError(fmt.Sprintf("%s %s: idle timeout", s.req.Method, s.req.URL), err)
	}
	return n, err
}

func (s *streamBody) Close() error {
	s.once.Do(func() {
		s.idle.stop()
		s.closeErr = s.body.Close()
		s.cancel()
	})
	return s.closeErr
}
