// Package errors defines the error taxonomy surfaced by the Nextcloud client
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// NotFound indicates the remote resource does not exist
	NotFound ErrorType = "not_found"
	// Forbidden indicates the credential lacks permission (HTTP 403)
	Forbidden ErrorType = "forbidden"
	// Unauthorized indicates the credential was rejected (HTTP 401)
	Unauthorized ErrorType = "unauthorized"
	// Conflict indicates the request clashes with the resource state (405, 409, 412)
	Conflict ErrorType = "conflict"
	// BadRequest indicates the server rejected the request shape (400, 422)
	BadRequest ErrorType = "bad_request"
	// Transport indicates the request never produced an HTTP response
	Transport ErrorType = "transport"
	// ServerError indicates a 5xx response
	ServerError ErrorType = "server"
	// OcsFailure indicates an OCS envelope carrying a failure status code
	OcsFailure ErrorType = "ocs"
	// ParseError indicates a response body that could not be decoded
	ParseError ErrorType = "parse"
	// Cancelled indicates the caller cancelled the operation
	Cancelled ErrorType = "cancelled"
	// Validation indicates input rejected before any request was made
	Validation ErrorType = "validation"
	// Unexpected covers any other non-success HTTP status (e.g. 423 Locked)
	Unexpected ErrorType = "unexpected"
)

// OCS meta status codes signalling success
const (
	OcsV1Success = 100
	OcsV2Success = 200
)

// NextcloudError is the error type returned by every client operation
type NextcloudError struct {
	Type       ErrorType
	Message    string
	Err        error
	StatusCode int
	OcsCode    int
	// Body holds the raw response body for parse and protocol failures
	Body    []byte
	Context map[string]interface{}
}

// Error implements the error interface
func (e *NextcloudError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	switch {
	case e.OcsCode != 0:
		msg = fmt.Sprintf("%s (ocs status %d)", msg, e.OcsCode)
	case e.StatusCode != 0:
		msg = fmt.Sprintf("%s (http status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *NextcloudError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a NextcloudError of the same type, so that
// errors.Is(err, errors.ErrNotFound) works through wrapping.
func (e *NextcloudError) Is(target error) bool {
	t, ok := target.(*NextcloudError)
	if !ok {
		return false
	}
	return t.Type == e.Type && t.Message == ""
}

// WithContext adds context to the error
func (e *NextcloudError) WithContext(key string, value interface{}) *NextcloudError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// Sentinels for use with errors.Is
var (
	ErrNotFound     = &NextcloudError{Type: NotFound}
	ErrForbidden    = &NextcloudError{Type: Forbidden}
	ErrUnauthorized = &NextcloudError{Type: Unauthorized}
	ErrConflict     = &NextcloudError{Type: Conflict}
	ErrCancelled    = &NextcloudError{Type: Cancelled}
)

// New creates a new NextcloudError
func New(errType ErrorType, message string, err error) *NextcloudError {
	return &NextcloudError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Classify maps an HTTP status, an OCS meta status and a DAV response-level
// status onto the taxonomy. A zero value means "not present". The empty
// ErrorType is returned when none of the inputs signal a failure.
func Classify(httpStatus, ocsStatus, davStatus int) ErrorType {
	switch {
	case httpStatus == http.StatusUnauthorized:
		return Unauthorized
	case httpStatus == http.StatusForbidden:
		return Forbidden
	case httpStatus == http.StatusNotFound, davStatus == http.StatusNotFound:
		return NotFound
	case httpStatus == http.StatusMethodNotAllowed,
		httpStatus == http.StatusConflict,
		httpStatus == http.StatusPreconditionFailed:
		return Conflict
	case httpStatus == http.StatusBadRequest, httpStatus == http.StatusUnprocessableEntity:
		return BadRequest
	case httpStatus >= 500:
		return ServerError
	case httpStatus >= 400:
		return Unexpected
	case ocsStatus != 0 && ocsStatus != OcsV1Success && ocsStatus != OcsV2Success:
		return OcsFailure
	}
	return ""
}

// FromStatus builds the classified error for a failed HTTP exchange, or nil
// when the status is not a failure.
func FromStatus(method, url string, status int, body []byte) *NextcloudError {
	errType := Classify(status, 0, 0)
	if errType == "" {
		return nil
	}
	return &NextcloudError{
		Type:       errType,
		Message:    fmt.Sprintf("%s %s failed", method, url),
		StatusCode: status,
		Body:       body,
	}
}

// NewNotFoundError creates a not-found error for the given resource
func NewNotFoundError(resource string) *NextcloudError {
	return &NextcloudError{
		Type:       NotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

// NewOcsError creates an OCS failure from an envelope's meta block
func NewOcsError(code int, message string) *NextcloudError {
	if message == "" {
		message = "OCS request failed"
	}
	return &NextcloudError{
		Type:    OcsFailure,
		Message: message,
		OcsCode: code,
	}
}

// NewParseError creates a parse error preserving the offending body
func NewParseError(message string, body []byte, err error) *NextcloudError {
	return &NextcloudError{
		Type:    ParseError,
		Message: message,
		Err:     err,
		Body:    body,
	}
}

// NewTransportError creates a transport error
func NewTransportError(message string, err error) *NextcloudError {
	return New(Transport, message, err)
}

// NewCancelledError creates a cancellation error
func NewCancelledError(message string, err error) *NextcloudError {
	return New(Cancelled, message, err)
}

// NewValidationError creates a new validation error
func NewValidationError(message string, err error) *NextcloudError {
	return New(Validation, message, err)
}

// KindOf returns the ErrorType carried by err, or the empty type when err is
// not a NextcloudError.
func KindOf(err error) ErrorType {
	var ne *NextcloudError
	if stderrors.As(err, &ne) {
		return ne.Type
	}
	return ""
}

// IsNotFound checks if the error indicates a resource was not found
func IsNotFound(err error) bool {
	return KindOf(err) == NotFound
}

// IsForbidden checks if the error is a permission failure
func IsForbidden(err error) bool {
	return KindOf(err) == Forbidden
}

// IsUnauthorized checks if the error is an authentication failure
func IsUnauthorized(err error) bool {
	return KindOf(err) == Unauthorized
}

// IsConflict checks if the error is a conflict
func IsConflict(err error) bool {
	return KindOf(err) == Conflict
}

// IsTransport checks if the error is a transport failure
func IsTransport(err error) bool {
	return KindOf(err) == Transport
}

// IsCancelled checks if the error is a cancellation
func IsCancelled(err error) bool {
	return KindOf(err) == Cancelled
}

// IsParseError checks if the error is a parse failure
func IsParseError(err error) bool {
	return KindOf(err) == ParseError
}

// IsOcsFailure checks if the error carries a failing OCS status
func IsOcsFailure(err error) bool {
	return KindOf(err) == OcsFailure
}

// StatusCode returns the HTTP status attached to err, or 0
func StatusCode(err error) int {
	var ne *NextcloudError
	if stderrors.As(err, &ne) {
		return ne.StatusCode
	}
	return 0
}
