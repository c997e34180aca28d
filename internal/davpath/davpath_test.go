package davpath

import (
	"net/url"
	"testing"

	"github.com/pulsepoint/nextcloud/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "root", input: "/", want: "/"},
		{name: "empty is root", input: "", want: "/"},
		{name: "missing leading slash", input: "a/b", want: "/a/b"},
		{name: "trailing slash trimmed", input: "/a/b/", want: "/a/b"},
		{name: "duplicate slashes", input: "//a///b", want: "/a/b"},
		{name: "dot segments", input: "/a/./b", want: "/a/b"},
		{name: "spaces kept", input: "/b test", want: "/b test"},
		{name: "percent encoded input", input: "/b%20test", want: "/b test"},
		{name: "accents", input: "/testé", want: "/testé"},
		{name: "encoded accents", input: "/test%C3%A9", want: "/testé"},
		{name: "broken escape kept literally", input: "/100%", want: "/100%"},
		{name: "parent segment rejected", input: "/a/../b", wantErr: true},
		{name: "encoded parent rejected", input: "/a/%2E%2E/b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errors.Validation, errors.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode(t *testing.T) {
	assert.Equal(t, "/b%20test", Encode("/b test"))
	assert.Equal(t, "/a/test%C3%A9", Encode("/a/testé"))
	assert.Equal(t, "/", Encode("/"))
	assert.Equal(t, "/a%3Fb", Encode("/a?b"))
}

func TestPathHelpers(t *testing.T) {
	assert.Equal(t, "/", Parent("/a"))
	assert.Equal(t, "/a", Parent("/a/b"))
	assert.Equal(t, "/", Parent("/"))
	assert.Equal(t, "b", Base("/a/b"))
	assert.Equal(t, "/x", Join("/", "x"))
	assert.Equal(t, "/a/x", Join("/a", "x"))
	assert.Equal(t, []string{"/a", "/a/b", "/a/b/c"}, Prefixes("/a/b/c"))
	assert.Empty(t, Prefixes("/"))
}

func TestNameFromHref(t *testing.T) {
	assert.Equal(t, "b test", NameFromHref("/remote.php/dav/files/u/b%20test/"))
	assert.Equal(t, "file1", NameFromHref("/remote.php/dav/files/u/d/file1"))
}

func TestBuilder(t *testing.T) {
	b, err := NewBuilder("https://cloud.example.com/nc", "nextcloud")
	require.NoError(t, err)

	u, err := b.DavURL("/b test/é")
	require.NoError(t, err)
	assert.Equal(t, "https://cloud.example.com/nc/remote.php/dav/files/nextcloud/b%20test/%C3%A9", u)

	root, err := b.DavURL("/")
	require.NoError(t, err)
	assert.Equal(t, "https://cloud.example.com/nc/remote.php/dav/files/nextcloud/", root)

	href, err := b.DavHref("/d/file1")
	require.NoError(t, err)
	assert.Equal(t, "/nc/remote.php/dav/files/nextcloud/d/file1", href)

	_, err = b.DavURL("/../etc")
	assert.Error(t, err)

	assert.Equal(t,
		"https://cloud.example.com/nc/ocs/v2.php/cloud/users?search=al",
		b.OcsURL(2, "/cloud/users", url.Values{"search": {"al"}}))
	assert.Equal(t, "https://cloud.example.com/nc/remote.php/dav/systemtags", b.TagsURL())
	assert.Equal(t, "https://cloud.example.com/nc/remote.php/dav/systemtags-relations/files/42/7", b.TagRelationURL("42", "7"))
}

func TestBuilderPathFromHref(t *testing.T) {
	b, err := NewBuilder("https://cloud.example.com", "nextcloud")
	require.NoError(t, err)

	p, ok := b.PathFromHref("/remote.php/dav/files/nextcloud/b%20test/")
	assert.True(t, ok)
	assert.Equal(t, "/b test", p)

	p, ok = b.PathFromHref("https://cloud.example.com/remote.php/dav/files/nextcloud/")
	assert.True(t, ok)
	assert.Equal(t, "/", p)

	_, ok = b.PathFromHref("/remote.php/dav/files/nextcloudother/a")
	assert.False(t, ok)
	_, ok = b.PathFromHref("/elsewhere/a")
	assert.False(t, ok)
}

func TestNewBuilderValidation(t *testing.T) {
	_, err := NewBuilder("not a url", "u")
	assert.Error(t, err)
	_, err = NewBuilder("https://cloud.example.com", "")
	assert.Error(t, err)

	b, err := NewBuilder("https://cloud.example.com", "a")
	require.NoError(t, err)
	other, err := b.WithUser("b")
	require.NoError(t, err)
	assert.Equal(t, "b", other.Username())
	assert.Equal(t, "a", b.Username())
}
