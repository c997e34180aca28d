package models

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Defaults applied when ConnectionOptions leaves a duration unset
const (
	DefaultTimeout     = 60 * time.Second
	DefaultIdleTimeout = 30 * time.Second
)

// ConnectionOptions binds a client to a server URL and a credential
type ConnectionOptions struct {
	URL      string `json:"url" mapstructure:"url"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`

	// Timeout bounds every non-streaming operation
	Timeout time.Duration `json:"timeout,omitempty" mapstructure:"timeout"`
	// IdleTimeout bounds the gap between reads or writes on a stream
	IdleTimeout time.Duration `json:"idle_timeout,omitempty" mapstructure:"idle_timeout"`

	HTTPClient *http.Client `json:"-" mapstructure:"-"`
	Logger     *zap.Logger  `json:"-" mapstructure:"-"`
}

// Normalized returns a copy with exactly one trailing slash stripped from the
// URL and default timeouts filled in.
func (o ConnectionOptions) Normalized() ConnectionOptions {
	o.URL = strings.TrimSuffix(o.URL, "/")
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = DefaultIdleTimeout
	}
	return o
}
