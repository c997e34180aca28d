package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		http     int
		ocs      int
		dav      int
		wantType ErrorType
	}{
		{name: "success", http: 200, wantType: ""},
		{name: "multistatus", http: 207, wantType: ""},
		{name: "unauthorized", http: 401, wantType: Unauthorized},
		{name: "forbidden", http: 403, wantType: Forbidden},
		{name: "http not found", http: 404, wantType: NotFound},
		{name: "dav not found inside 207", http: 207, dav: 404, wantType: NotFound},
		{name: "method not allowed", http: 405, wantType: Conflict},
		{name: "conflict", http: 409, wantType: Conflict},
		{name: "precondition failed", http: 412, wantType: Conflict},
		{name: "bad request", http: 400, wantType: BadRequest},
		{name: "unprocessable", http: 422, wantType: BadRequest},
		{name: "locked", http: 423, wantType: Unexpected},
		{name: "internal", http: 500, wantType: ServerError},
		{name: "unavailable", http: 503, wantType: ServerError},
		{name: "ocs v1 ok", http: 200, ocs: 100, wantType: ""},
		{name: "ocs v2 ok", http: 200, ocs: 200, wantType: ""},
		{name: "ocs failure", http: 200, ocs: 997, wantType: OcsFailure},
		{name: "http wins over ocs", http: 401, ocs: 997, wantType: Unauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, Classify(tt.http, tt.ocs, tt.dav))
		})
	}
}

func TestFromStatus(t *testing.T) {
	assert.Nil(t, FromStatus("GET", "http://x/a", 200, nil))

	err := FromStatus("GET", "http://x/a", 404, []byte("missing"))
	assert.NotNil(t, err)
	assert.Equal(t, NotFound, err.Type)
	assert.Equal(t, 404, err.StatusCode)
	assert.Equal(t, []byte("missing"), err.Body)
	assert.Contains(t, err.Error(), "GET http://x/a failed")
}

func TestPredicatesThroughWrapping(t *testing.T) {
	base := NewNotFoundError("/a.txt")
	wrapped := fmt.Errorf("loading: %w", base)

	assert.True(t, IsNotFound(wrapped))
	assert.True(t, stderrors.Is(wrapped, ErrNotFound))
	assert.False(t, stderrors.Is(wrapped, ErrConflict))
	assert.False(t, IsConflict(wrapped))
	assert.Equal(t, 404, StatusCode(wrapped))
	assert.Equal(t, ErrorType(""), KindOf(stderrors.New("plain")))
}

func TestOcsError(t *testing.T) {
	err := NewOcsError(102, "")
	assert.True(t, IsOcsFailure(err))
	assert.Equal(t, 102, err.OcsCode)
	assert.Contains(t, err.Error(), "ocs status 102")
}

func TestParseErrorKeepsBody(t *testing.T) {
	cause := stderrors.New("unexpected EOF")
	err := NewParseError("decode multistatus", []byte("<d:multi"), cause)

	assert.True(t, IsParseError(err))
	assert.Equal(t, []byte("<d:multi"), err.Body)
	assert.ErrorIs(t, err, cause)
}

func TestWithContext(t *testing.T) {
	err := NewTransportError("dial", nil).WithContext("url", "http://x")
	assert.Equal(t, "http://x", err.Context["url"])
	assert.True(t, IsTransport(err))
	assert.False(t, IsCancelled(err))
}
