// Package ocs implements the Open Collaboration Services endpoints of a
// Nextcloud server: activities, users, groups and shares.
package ocs

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pulsepoint/nextcloud/internal/davpath"
	"github.com/pulsepoint/nextcloud/internal/davxml"
	"github.com/pulsepoint/nextcloud/internal/transport"
	"github.com/pulsepoint/nextcloud/pkg/errors"
	"go.uber.org/zap"
)

// API versions
const (
	V1 = 1
	V2 = 2
)

// APIRequestHeader must be present on every OCS request
const APIRequestHeader = "OCS-APIRequest"

// ListOptions narrows user and group listings
type ListOptions struct {
	Search string
	Limit  int
	Offset int
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	if o.Search != "" {
		v.Set("search", o.Search)
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		v.Set("offset", strconv.Itoa(o.Offset))
	}
	return v
}

// Client sends OCS requests and decodes their envelopes
type Client struct {
	conn   *transport.Connection
	urls   *davpath.Builder
	logger *zap.Logger
}

// NewClient creates an OCS client bound to a connection and URL builder
func NewClient(conn *transport.Connection, urls *davpath.Builder) *Client {
	return &Client{
		conn:   conn,
		urls:   urls,
		logger: conn.Logger().Named("ocs"),
	}
}

// Activities returns the activity API
func (c *Client) Activities() *Activities {
	return &Activities{c: c}
}

// Users returns the user provisioning API
func (c *Client) Users() *Users {
	return &Users{c: c}
}

// Groups returns the group provisioning API
func (c *Client) Groups() *Groups {
	return &Groups{c: c}
}

// Shares returns the share API
func (c *Client) Shares() *Shares {
	return &Shares{c: c}
}

// send performs an OCS request. Parameters travel in the query string for
// GET and DELETE and as a form body otherwise.
func (c *Client) send(ctx context.Context, version int, method, apiPath string, params url.Values) (*transport.Response, error) {
	query := url.Values{"format": {"json"}}
	header := http.Header{
		APIRequestHeader: {"true"},
		"Accept":         {"application/json"},
	}

	var body io.Reader
	switch method {
	case http.MethodGet, http.MethodDelete:
		for k, v := range params {
			query[k] = v
		}
	default:
		if len(params) > 0 {
			body = strings.NewReader(params.Encode())
			header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}

	req := &transport.Request{
		Method: method,
		URL:    c.urls.OcsURL(version, apiPath, query),
		Header: header,
		Body:   body,
	}
	resp, err := c.conn.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	if failure := resp.Failure(req); failure != nil {
		// v2 failures still carry an envelope explaining the status
		var ne *errors.NextcloudError
		if env, perr := davxml.ParseOcsEnvelope(resp.Body); perr == nil && stderrors.As(failure, &ne) {
			ne.OcsCode = env.Meta.StatusCode
			if env.Meta.Message != "" {
				ne.Message += ": " + env.Meta.Message
			}
		}
		return nil, failure
	}
	return resp, nil
}

// call performs an OCS request and returns the envelope of a successful
// reply
func (c *Client) call(ctx context.Context, version int, method, apiPath string, params url.Values) (*davxml.Envelope, error) {
	resp, err := c.send(ctx, version, method, apiPath, params)
	if err != nil {
		return nil, err
	}

	env, err := davxml.ParseOcsEnvelope(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := env.Err(); err != nil {
		var ne *errors.NextcloudError
		if stderrors.As(err, &ne) {
			ne.StatusCode = resp.StatusCode
			ne.WithContext("endpoint", apiPath)
		}
		c.logger.Debug("OCS request failed",
			zap.String("method", method),
			zap.String("endpoint", apiPath),
			zap.Int("ocs_status", env.Meta.StatusCode),
			zap.String("message", env.Meta.Message))
		return nil, err
	}
	return env, nil
}

// callInto performs an OCS request and decodes its data into out
func (c *Client) callInto(ctx context.Context, version int, method, apiPath string, params url.Values, out interface{}) error {
	env, err := c.call(ctx, version, method, apiPath, params)
	if err != nil {
		return err
	}
	return decode(env.Data, out)
}

var timeType = reflect.TypeOf(time.Time{})

// emptyContainerHook maps the empty values the server uses for missing
// collections ("" in XML, [] in JSON) onto empty maps, slices and structs
func emptyContainerHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	empty := false
	switch v := data.(type) {
	case string:
		empty = strings.TrimSpace(v) == ""
	case []interface{}:
		empty = len(v) == 0 && to.Kind() != reflect.Slice
	}
	if !empty {
		return data, nil
	}

	if to == timeType {
		return time.Time{}, nil
	}
	switch to.Kind() {
	case reflect.Slice:
		return []interface{}{}, nil
	case reflect.Map, reflect.Struct:
		return map[string]interface{}{}, nil
	}
	return data, nil
}

// lenientIntHook turns non-numeric strings such as quota "none" into 0
func lenientIntHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if _, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return strings.TrimSpace(s), nil
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return int64(f), nil
		}
		return 0, nil
	}
	return data, nil
}

// decode maps generic OCS data onto a model
func decode(data interface{}, out interface{}) error {
	if data == nil {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			emptyContainerHook,
			lenientIntHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return errors.NewParseError("build OCS decoder", nil, err)
	}
	if err := dec.Decode(data); err != nil {
		return errors.NewParseError("decode OCS data", nil, err)
	}
	return nil
}

// requireID rejects empty identifiers before a request is made
func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.NewValidationError(kind+" id is required", nil)
	}
	return nil
}

// parseEnvelope decodes a body and returns the failure it carries, if any
func parseEnvelope(body []byte) (*davxml.Envelope, error) {
	env, err := davxml.ParseOcsEnvelope(body)
	if err != nil {
		return nil, err
	}
	if err := env.Err(); err != nil {
		return nil, err
	}
	return env, nil
}
