package properties

import (
	"context"
	"net/http"
	"testing"

	"github.com/pulsepoint/nextcloud/internal/davpath"
	"github.com/pulsepoint/nextcloud/internal/mockserver"
	"github.com/pulsepoint/nextcloud/internal/transport"
	"github.com/pulsepoint/nextcloud/pkg/errors"
	"github.com/pulsepoint/nextcloud/pkg/models"
	"github.com/pulsepoint/nextcloud/pkg/webdav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	props *Client
	dav   *webdav.Client
	srv   *mockserver.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv := mockserver.New()
	t.Cleanup(srv.Close)
	srv.AddUser("nextcloud", "secret")

	opts := models.ConnectionOptions{URL: srv.URL(), Username: "nextcloud", Password: "secret"}
	urls, err := davpath.NewBuilder(opts.Normalized().URL, "nextcloud")
	require.NoError(t, err)
	conn := transport.NewConnection(opts)

	return &fixture{
		props: NewClient(conn, urls),
		dav:   webdav.NewClient(conn, urls),
		srv:   srv,
	}
}

func TestGetFileID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dav.PutString(ctx, "/a.txt", "a"))
	require.NoError(t, f.dav.PutString(ctx, "/b.txt", "b"))

	a, err := f.props.GetFileID(ctx, "/a.txt")
	require.NoError(t, err)
	b, err := f.props.GetFileID(ctx, "/b.txt")
	require.NoError(t, err)

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)

	_, err = f.props.GetFileID(ctx, "/missing.txt")
	assert.True(t, errors.IsNotFound(err))
}

func TestTagLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dav.PutString(ctx, "/tagged.txt", "x"))
	fileID, err := f.props.GetFileID(ctx, "/tagged.txt")
	require.NoError(t, err)

	tag, err := f.props.CreateTag(ctx, "invoice")
	require.NoError(t, err)
	assert.NotEmpty(t, tag.ID)
	assert.Equal(t, "invoice", tag.Name)

	_, err = f.props.CreateTag(ctx, "invoice")
	assert.True(t, errors.IsConflict(err))

	require.NoError(t, f.props.AddTag(ctx, fileID, tag))
	// assigning twice is not an error
	require.NoError(t, f.props.AddTag(ctx, fileID, tag))

	tags, err := f.props.GetTags(ctx, fileID)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, tag.ID, tags[0].ID)
	assert.Equal(t, "invoice", tags[0].Name)
	assert.True(t, tags[0].UserVisible)
	assert.True(t, tags[0].UserAssignable)
	assert.True(t, tags[0].CanAssign)

	require.NoError(t, f.props.RemoveTag(ctx, fileID, tag))
	tags, err = f.props.GetTags(ctx, fileID)
	require.NoError(t, err)
	assert.Empty(t, tags)

	err = f.props.RemoveTag(ctx, fileID, tag)
	assert.True(t, errors.IsNotFound(err))
}

func TestTagValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.props.CreateTag(ctx, "  ")
	assert.Equal(t, errors.Validation, errors.KindOf(err))

	err = f.props.AddTag(ctx, "1", nil)
	assert.Equal(t, errors.Validation, errors.KindOf(err))

	err = f.props.RemoveTag(ctx, "1", &models.Tag{Name: "no id"})
	assert.Equal(t, errors.Validation, errors.KindOf(err))
}

func TestGetTagsOfUnknownFile(t *testing.T) {
	f := newFixture(t)

	_, err := f.props.GetTags(context.Background(), "999999")
	assert.True(t, errors.IsNotFound(err))
}

func TestFilePropsRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dav.PutString(ctx, "/doc.txt", "content"))

	fp, err := f.props.GetFileProps(ctx, "/doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "/doc.txt", fp.Path)

	etag, ok := fp.Get(models.QualifiedName(models.NamespaceDAV, "getetag"))
	require.True(t, ok)
	assert.NotEmpty(t, etag)

	custom := models.QualifiedName("http://example.com/ns", "reviewed")
	fp.Set(custom, "yes")
	// saving after a full read must not trip over the live properties
	require.NoError(t, f.props.SaveProps(ctx, fp))

	again, err := f.props.GetFileProps(ctx, "/doc.txt", custom, models.QualifiedName(models.NamespaceOwnCloud, "fileid"))
	require.NoError(t, err)
	value, ok := again.Get(custom)
	require.True(t, ok)
	assert.Equal(t, "yes", value)
	_, ok = again.Get(models.QualifiedName(models.NamespaceOwnCloud, "fileid"))
	assert.True(t, ok)
	assert.Len(t, again.Props, 2)
}

func TestSaveOnlyProtectedPropsIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dav.PutString(ctx, "/doc.txt", "content"))

	fp := models.NewFileProps("/doc.txt")
	fp.Set(models.QualifiedName(models.NamespaceOwnCloud, "fileid"), "1")

	// nothing reaches the server, so the injected failure stays pending
	f.srv.FailNext(webdav.MethodProppatch, http.StatusInternalServerError)
	require.NoError(t, f.props.SaveProps(ctx, fp))
}

func TestSavePropsReportsServerFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dav.PutString(ctx, "/doc.txt", "content"))

	fp := models.NewFileProps("/doc.txt")
	fp.Set(models.QualifiedName("http://example.com/ns", "a"), "1")

	f.srv.FailNext(webdav.MethodProppatch, http.StatusInternalServerError)
	err := f.props.SaveProps(ctx, fp)
	assert.Equal(t, errors.ServerError, errors.KindOf(err))

	assert.Equal(t, errors.Validation, errors.KindOf(f.props.SaveProps(ctx, nil)))
}

func TestParseIDFromLocation(t *testing.T) {
	tests := []struct {
		name     string
		location string
		want     string
		wantErr  bool
	}{
		{name: "relative", location: "/remote.php/dav/systemtags/17", want: "17"},
		{name: "absolute", location: "https://cloud.example.com/remote.php/dav/systemtags/4", want: "4"},
		{name: "trailing slash", location: "/remote.php/dav/systemtags/9/", want: "9"},
		{name: "empty", location: "", wantErr: true},
		{name: "only slashes", location: "///", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseIDFromLocation(tt.location)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsParseError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMultiStatus(t *testing.T) {
	body := []byte(`<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:" xmlns:oc="http://owncloud.org/ns">
  <d:response>
    <d:href>/remote.php/dav/files/nextcloud/a.txt</d:href>
    <d:propstat>
      <d:prop>
        <oc:fileid>12</oc:fileid>
        <d:getetag>"abc"</d:getetag>
      </d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
    <d:propstat>
      <d:prop><oc:missing/></d:prop>
      <d:status>HTTP/1.1 404 Not Found</d:status>
    </d:propstat>
  </d:response>
  <d:response>
    <d:href>/remote.php/dav/files/nextcloud/b.txt</d:href>
    <d:propstat>
      <d:prop><oc:fileid>13</oc:fileid></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`)

	got, err := ParseMultiStatus(body)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "/remote.php/dav/files/nextcloud/a.txt", got[0].Path)
	assert.Equal(t, "12", got[0].Props["{http://owncloud.org/ns}fileid"])
	assert.Equal(t, `"abc"`, got[0].Props["{DAV:}getetag"])
	assert.NotContains(t, got[0].Props, "{http://owncloud.org/ns}missing")
	assert.Equal(t, "13", got[1].Props["{http://owncloud.org/ns}fileid"])

	_, err = ParseMultiStatus([]byte("<not-xml"))
	assert.True(t, errors.IsParseError(err))
}
