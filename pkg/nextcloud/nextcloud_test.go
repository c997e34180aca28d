package nextcloud

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/pulsepoint/nextcloud/internal/mockserver"
	"github.com/pulsepoint/nextcloud/pkg/errors"
	"github.com/pulsepoint/nextcloud/pkg/models"
	"github.com/pulsepoint/nextcloud/pkg/ocs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T) (*Client, *mockserver.Server) {
	t.Helper()

	srv := mockserver.New()
	t.Cleanup(srv.Close)
	srv.AddAdmin("nextcloud", "secret")
	srv.AddUser("alice", "alicepw")

	c, err := New(models.ConnectionOptions{
		URL:      srv.URL() + "/",
		Username: "nextcloud",
		Password: "secret",
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)
	return c, srv
}

func TestNewValidatesOptions(t *testing.T) {
	tests := []struct {
		name string
		opts models.ConnectionOptions
	}{
		{name: "missing url", opts: models.ConnectionOptions{Username: "u"}},
		{name: "relative url", opts: models.ConnectionOptions{URL: "cloud.example.com", Username: "u"}},
		{name: "missing username", opts: models.ConnectionOptions{URL: "https://cloud.example.com"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			require.Error(t, err)
			assert.Equal(t, errors.Validation, errors.KindOf(err))
		})
	}
}

func TestURLIsNormalized(t *testing.T) {
	c, srv := newTestClient(t)

	assert.Equal(t, srv.URL(), c.URL())
	assert.Equal(t, "nextcloud", c.Username())
	assert.True(t, c.CheckConnectivity(context.Background()))
}

func TestExistsPutRemove(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	paths := []string{"/plain.txt", "/with space.txt", "/àccénted.txt"}
	for _, p := range paths {
		exists, err := c.Exists(ctx, p)
		require.NoError(t, err)
		assert.False(t, exists, p)

		require.NoError(t, c.PutString(ctx, p, ""))
		exists, err = c.Exists(ctx, p)
		require.NoError(t, err)
		assert.True(t, exists, p)

		require.NoError(t, c.Remove(ctx, p))
		exists, err = c.Exists(ctx, p)
		require.NoError(t, err)
		assert.False(t, exists, p)
	}

	exists, err := c.Exists(ctx, "/very/deeply/nested/path/that/is/missing")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestPercentEncodedPathsMatchCanonicalForm(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.TouchFolder(ctx, "/enc dir"))
	require.NoError(t, c.PutString(ctx, "/enc dir/ä.txt", "umlaut"))

	content, err := c.GetString(ctx, "/enc%20dir/%C3%A4.txt")
	require.NoError(t, err)
	assert.Equal(t, "umlaut", content)

	names, err := c.GetFiles(ctx, "/enc%20dir")
	require.NoError(t, err)
	assert.Equal(t, []string{"ä.txt"}, names)
}

func TestRemoveFolderDeletesDescendants(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.CreateFolderHierarchy(ctx, "/tree/a/b"))
	require.NoError(t, c.PutString(ctx, "/tree/a/b/leaf.txt", "leaf"))

	require.NoError(t, c.Remove(ctx, "/tree"))
	assert.False(t, srv.Exists("nextcloud", "/tree/a/b/leaf.txt"))
	assert.False(t, srv.Exists("nextcloud", "/tree"))
}

func TestScenarios(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	t.Run("put into missing folder", func(t *testing.T) {
		err := c.PutString(ctx, "/123/a.txt", "hi")
		assert.True(t, errors.IsNotFound(err))
	})

	t.Run("read stream", func(t *testing.T) {
		require.NoError(t, c.PutString(ctx, "/a", "x"))
		rs, err := c.GetReadStream(ctx, "/a")
		require.NoError(t, err)
		defer rs.Close()

		payload, err := io.ReadAll(rs)
		require.NoError(t, err)
		assert.Equal(t, "x", string(payload))
	})

	t.Run("folder with space", func(t *testing.T) {
		require.NoError(t, c.TouchFolder(ctx, "/b test"))
		require.NoError(t, c.TouchFolder(ctx, "/b test"))

		exists, err := c.Exists(ctx, "/b test")
		require.NoError(t, err)
		assert.True(t, exists)

		encoded, err := c.Exists(ctx, "/b%20test")
		require.NoError(t, err)
		assert.True(t, encoded)

		names, err := c.GetFiles(ctx, "/")
		require.NoError(t, err)
		assert.Contains(t, names, "b test")
	})

	t.Run("write stream replaces content", func(t *testing.T) {
		require.NoError(t, c.PutString(ctx, "/c", ""))

		ws, err := c.GetWriteStream(ctx, "/c")
		require.NoError(t, err)
		_, err = io.WriteString(ws, "test")
		require.NoError(t, err)
		require.NoError(t, ws.Close())

		content, err := c.GetString(ctx, "/c")
		require.NoError(t, err)
		assert.Equal(t, "test", content)
	})

	t.Run("folder details with extra properties", func(t *testing.T) {
		require.NoError(t, c.TouchFolder(ctx, "/d"))
		require.NoError(t, c.PutString(ctx, "/d/only file.txt", "content"))

		details, err := c.GetFolderFileDetails(ctx, "/d",
			models.OwnCloudProperty("fileid", true),
			models.NextCloudProperty("has-preview", true),
			models.NewFileDetailProperty("http://doesnt/exist", "de", "test2", false, 42),
		)
		require.NoError(t, err)
		require.Len(t, details, 1)

		detail := details[0]
		assert.NotEqual(t, detail.IsFile, detail.IsDirectory)
		assert.True(t, strings.HasSuffix(detail.Href, "/only%20file.txt"), detail.Href)
		assert.Equal(t, int64(42), detail.ExtraProperties["test2"])
		assert.IsType(t, false, detail.ExtraProperties["has-preview"])
		assert.IsType(t, int64(0), detail.ExtraProperties["fileid"])
	})

	t.Run("activity of a fresh upload", func(t *testing.T) {
		require.NoError(t, c.PutString(ctx, "/fresh.txt", "new"))
		fileID, err := c.Properties().GetFileID(ctx, "/fresh.txt")
		require.NoError(t, err)

		activities, err := c.Activities().Get(ctx, fileID, ocs.ActivityQuery{})
		require.NoError(t, err)

		var created bool
		for _, a := range activities {
			if a.Type == ActivityFileCreated && a.User == "nextcloud" {
				created = true
			}
		}
		assert.True(t, created)
	})
}

func TestAsDerivesIndependentClient(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	alice, err := c.As("alice", "alicepw")
	require.NoError(t, err)
	assert.Equal(t, "alice", alice.Username())
	assert.Equal(t, "nextcloud", c.Username())

	require.NoError(t, alice.PutString(ctx, "/mine.txt", "alice's"))
	_, ok := srv.FileContent("alice", "/mine.txt")
	assert.True(t, ok)
	_, ok = srv.FileContent("nextcloud", "/mine.txt")
	assert.False(t, ok)

	exists, err := c.Exists(ctx, "/mine.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	wrong, err := c.As("alice", "nope")
	require.NoError(t, err)
	_, err = wrong.Exists(ctx, "/")
	assert.True(t, errors.IsUnauthorized(err))

	// the original credential keeps working
	assert.True(t, c.CheckConnectivity(ctx))

	_, err = c.As("", "x")
	assert.Equal(t, errors.Validation, errors.KindOf(err))
}

func TestSubClientsShareCredential(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	users, err := c.Users().List(ctx, ocs.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "nextcloud"}, users)

	groups, err := c.Groups().List(ctx, ocs.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, groups)

	require.NoError(t, c.TouchFolder(ctx, "/s"))
	share, err := c.Shares().Add(ctx, ocs.ShareRequest{Path: "/s", ShareType: models.ShareTypeUser, ShareWith: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "alice", share.ShareWith)

	// alice is no admin
	alice, err := c.As("alice", "alicepw")
	require.NoError(t, err)
	_, err = alice.Users().List(ctx, ocs.ListOptions{})
	assert.True(t, errors.IsOcsFailure(err))
}

func TestGetCreator(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	alice, err := c.As("alice", "alicepw")
	require.NoError(t, err)

	require.NoError(t, alice.PutString(ctx, "/created.txt", "one"))
	require.NoError(t, alice.PutString(ctx, "/created.txt", "two"))

	creator, err := alice.GetCreatorByPath(ctx, "/created.txt")
	require.NoError(t, err)
	assert.Equal(t, "alice", creator)

	_, err = alice.GetCreatorByPath(ctx, "/absent.txt")
	assert.True(t, errors.IsNotFound(err))

	_, err = alice.GetCreatorByFileID(ctx, "987654")
	assert.True(t, errors.IsNotFound(err))
}

func TestRenameThroughFacade(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.CreateFolderHierarchy(ctx, "/r"))
	require.NoError(t, c.PutString(ctx, "/r/old.txt", "data"))
	require.NoError(t, c.Rename(ctx, "/r/old.txt", "new.txt"))

	exists, err := c.Exists(ctx, "/r/old.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = c.Exists(ctx, "/r/new.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, c.Copy(ctx, "/r/new.txt", "/r/copy.txt"))
	require.NoError(t, c.Move(ctx, "/r/copy.txt", "/moved.txt"))

	content, err := c.Get(ctx, "/moved.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), content)
}

func TestFolderPropertiesThroughFacade(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.TouchFolder(ctx, "/p"))
	require.NoError(t, c.SetFolderProperties(ctx, "/p", models.PropertyValue{
		Namespace: "http://example.com/ns", NamespaceShort: "ex", Element: "state", Value: "done",
	}))

	props, err := c.GetFolderProperties(ctx, "/p", models.NewFileDetailProperty("http://example.com/ns", "ex", "state", false))
	require.NoError(t, err)
	assert.Equal(t, "done", props["state"])
}

func TestPipeStreamThroughFacade(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.PipeStream(ctx, "/piped", strings.NewReader("streamed")))
	content, err := c.GetString(ctx, "/piped")
	require.NoError(t, err)
	assert.Equal(t, "streamed", content)
}
