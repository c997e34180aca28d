package mockserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	s := New()
	t.Cleanup(s.Close)
	s.AddAdmin("admin", "secret")
	return s
}

func do(t *testing.T, s *Server, method, path string, body io.Reader, header http.Header) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, s.URL()+path, body)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "secret")
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRejectsUnknownCredentials(t *testing.T) {
	s := newServer(t)

	req, err := http.NewRequest("PROPFIND", s.URL()+filesPrefix+"admin/", nil)
	require.NoError(t, err)
	req.SetBasicAuth("admin", "wrong")
	resp, err := s.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("WWW-Authenticate"), "Basic")
}

func TestPutAndPropfind(t *testing.T) {
	s := newServer(t)

	resp := do(t, s, http.MethodPut, filesPrefix+"admin/hello%20world.txt", strings.NewReader("hi"), nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, s, http.MethodPut, filesPrefix+"admin/hello%20world.txt", strings.NewReader("hey"), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	content, ok := s.FileContent("admin", "/hello world.txt")
	require.True(t, ok)
	assert.Equal(t, "hey", string(content))

	resp = do(t, s, "PROPFIND", filesPrefix+"admin/", nil, http.Header{"Depth": {"1"}})
	require.Equal(t, http.StatusMultiStatus, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<d:href>/remote.php/dav/files/admin/hello%20world.txt</d:href>")
	assert.Contains(t, string(body), "<d:getcontentlength>3</d:getcontentlength>")

	resp = do(t, s, http.MethodPut, filesPrefix+"admin/missing/x.txt", strings.NewReader("x"), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMkcolAndDelete(t *testing.T) {
	s := newServer(t)

	assert.Equal(t, http.StatusCreated, do(t, s, "MKCOL", filesPrefix+"admin/dir", nil, nil).StatusCode)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, "MKCOL", filesPrefix+"admin/dir", nil, nil).StatusCode)
	assert.Equal(t, http.StatusConflict, do(t, s, "MKCOL", filesPrefix+"admin/a/b", nil, nil).StatusCode)

	assert.Equal(t, http.StatusNoContent, do(t, s, http.MethodDelete, filesPrefix+"admin/dir", nil, nil).StatusCode)
	assert.False(t, s.Exists("admin", "/dir"))
	assert.Equal(t, http.StatusForbidden, do(t, s, http.MethodDelete, filesPrefix+"admin/", nil, nil).StatusCode)
}

func TestFailNextIsConsumedOnce(t *testing.T) {
	s := newServer(t)

	s.FailNext(http.MethodGet, http.StatusLocked)
	assert.Equal(t, http.StatusLocked, do(t, s, http.MethodGet, filesPrefix+"admin/x", nil, nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, filesPrefix+"admin/x", nil, nil).StatusCode)
}

func TestOcsRequiresAPIHeader(t *testing.T) {
	s := newServer(t)

	resp := do(t, s, http.MethodGet, "/ocs/v2.php/cloud/users?format=json", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var env struct {
		Ocs struct {
			Meta struct {
				StatusCode int    `json:"statuscode"`
				Message    string `json:"message"`
			} `json:"meta"`
		} `json:"ocs"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, http.StatusUnauthorized, env.Ocs.Meta.StatusCode)
	assert.Equal(t, "CSRF check failed", env.Ocs.Meta.Message)
}

func TestOcsVersionsReportFailuresDifferently(t *testing.T) {
	s := newServer(t)
	header := http.Header{"Ocs-Apirequest": {"true"}}

	v1 := do(t, s, http.MethodGet, "/ocs/v1.php/cloud/users/nobody?format=json", nil, header)
	assert.Equal(t, http.StatusOK, v1.StatusCode)

	v2 := do(t, s, http.MethodGet, "/ocs/v2.php/cloud/users/nobody?format=json", nil, header)
	assert.Equal(t, http.StatusNotFound, v2.StatusCode)
}

func TestOcsXMLFormat(t *testing.T) {
	s := newServer(t)
	header := http.Header{"Ocs-Apirequest": {"true"}}

	resp := do(t, s, http.MethodGet, "/ocs/v1.php/cloud/groups", nil, header)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "<statuscode>100</statuscode>")
	assert.Contains(t, string(body), "<groups><element>admin</element></groups>")
}

func TestCreateUserWithForm(t *testing.T) {
	s := newServer(t)
	header := http.Header{
		"Ocs-Apirequest": {"true"},
		"Content-Type":   {"application/x-www-form-urlencoded"},
	}
	form := url.Values{"userid": {"eve"}, "password": {"evepw"}, "groups[]": {"admin"}}

	resp := do(t, s, http.MethodPost, "/ocs/v1.php/cloud/users?format=json", strings.NewReader(form.Encode()), header)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	s.mu.RLock()
	defer s.mu.RUnlock()
	require.Contains(t, s.accounts, "eve")
	assert.True(t, s.accounts["eve"].groups[AdminGroup])
	assert.True(t, s.trees["eve"]["/"].isDir)
}

func TestWriteXMLValue(t *testing.T) {
	tests := []struct {
		name string
		in   interface{}
		want string
	}{
		{name: "nil", in: nil, want: ""},
		{name: "true", in: true, want: "1"},
		{name: "false", in: false, want: ""},
		{name: "list", in: []string{"a", "b"}, want: "<element>a</element><element>b</element>"},
		{name: "map sorted", in: map[string]interface{}{"b": 2, "a": "x<y"}, want: "<a>x&lt;y</a><b>2</b>"},
		{name: "numeric key", in: map[string]string{"12": "/f"}, want: "<_12>/f</_12>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			writeXMLValue(&buf, tt.in)
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestPage(t *testing.T) {
	ids := []string{"anna", "bert", "carl", "dora"}
	req := func(q string) *ocsRequest {
		r, _ := http.NewRequest(http.MethodGet, "/?"+q, nil)
		_ = r.ParseForm()
		return &ocsRequest{r: r}
	}

	assert.Equal(t, ids, page(ids, req("")))
	assert.Equal(t, []string{"carl"}, page(ids, req("search=AR")))
	assert.Equal(t, []string{"bert", "carl"}, page(ids, req("offset=1&limit=2")))
	assert.Equal(t, []string{}, page(ids, req("offset=10")))
}
