package ocs

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/pulsepoint/nextcloud/internal/davpath"
	"github.com/pulsepoint/nextcloud/internal/mockserver"
	"github.com/pulsepoint/nextcloud/internal/transport"
	"github.com/pulsepoint/nextcloud/pkg/errors"
	"github.com/pulsepoint/nextcloud/pkg/models"
	"github.com/pulsepoint/nextcloud/pkg/properties"
	"github.com/pulsepoint/nextcloud/pkg/webdav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ocs   *Client
	dav   *webdav.Client
	props *properties.Client
	srv   *mockserver.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	srv := mockserver.New()
	t.Cleanup(srv.Close)
	srv.AddAdmin("admin", "secret")
	srv.AddUser("bob", "bobpw")

	return fixtureFor(t, srv, "admin", "secret")
}

func fixtureFor(t *testing.T, srv *mockserver.Server, user, password string) *fixture {
	t.Helper()

	opts := models.ConnectionOptions{URL: srv.URL(), Username: user, Password: password}
	urls, err := davpath.NewBuilder(opts.Normalized().URL, user)
	require.NoError(t, err)
	conn := transport.NewConnection(opts)

	return &fixture{
		ocs:   NewClient(conn, urls),
		dav:   webdav.NewClient(conn, urls),
		props: properties.NewClient(conn, urls),
		srv:   srv,
	}
}

func TestUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users := f.ocs.Users()

	require.NoError(t, users.Add(ctx, models.OcsNewUser{
		UserID:      "carol",
		Password:    "carolpw",
		DisplayName: "Carol",
		Email:       "carol@example.com",
		Groups:      []string{"admin"},
	}))

	user, err := users.Get(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, "carol", user.ID)
	assert.Equal(t, "Carol", user.DisplayName)
	assert.Equal(t, "carol@example.com", user.Email)
	assert.True(t, user.Enabled)
	assert.Equal(t, []string{"admin"}, user.Groups)
	assert.Empty(t, user.SubAdmin)
	// quota "none" carries no number
	assert.Equal(t, int64(0), user.Quota.Quota)

	ids, err := users.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "bob", "carol"}, ids)

	ids, err = users.List(ctx, ListOptions{Search: "ca"})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, ids)

	ids, err = users.List(ctx, ListOptions{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, ids)

	require.NoError(t, users.Edit(ctx, "carol", models.UserFieldDisplayName, "Carol C."))
	require.NoError(t, users.SetEnabled(ctx, "carol", false))
	user, err = users.Get(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, "Carol C.", user.DisplayName)
	assert.False(t, user.Enabled)

	require.NoError(t, users.ResendWelcomeEmail(ctx, "carol"))

	require.NoError(t, users.Delete(ctx, "carol"))
	_, err = users.Get(ctx, "carol")
	require.Error(t, err)
	assert.True(t, errors.IsOcsFailure(err))
}

func TestUserValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users := f.ocs.Users()

	tests := []struct {
		name string
		call func() error
	}{
		{name: "add without id", call: func() error {
			return users.Add(ctx, models.OcsNewUser{Password: "x"})
		}},
		{name: "add without password or email", call: func() error {
			return users.Add(ctx, models.OcsNewUser{UserID: "dave"})
		}},
		{name: "edit unknown field", call: func() error {
			return users.Edit(ctx, "bob", models.OcsEditUserField("shoe-size"), "44")
		}},
		{name: "group without id", call: func() error {
			return users.AddToGroup(ctx, "bob", "")
		}},
		{name: "get without id", call: func() error {
			_, err := users.Get(ctx, " ")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, errors.Validation, errors.KindOf(err))
		})
	}
}

func TestUserFailuresCarryOcsCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.ocs.Users().Add(ctx, models.OcsNewUser{UserID: "bob", Password: "x"})
	require.Error(t, err)
	assert.True(t, errors.IsOcsFailure(err))

	var ne *errors.NextcloudError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, 102, ne.OcsCode)
	assert.Equal(t, "cloud/users", ne.Context["endpoint"])

	bob := fixtureFor(t, f.srv, "bob", "bobpw")
	_, err = bob.ocs.Users().List(ctx, ListOptions{})
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, 403, ne.OcsCode)
}

func TestGroupMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	groups := f.ocs.Groups()
	users := f.ocs.Users()

	require.NoError(t, groups.Add(ctx, "editors"))
	err := groups.Add(ctx, "editors")
	assert.True(t, errors.IsOcsFailure(err))

	list, err := groups.List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "editors"}, list)

	require.NoError(t, users.AddToGroup(ctx, "bob", "editors"))
	members, err := groups.GetUsers(ctx, "editors")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, members)

	bobGroups, err := users.GetGroups(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"editors"}, bobGroups)

	require.NoError(t, users.AddSubAdminToGroup(ctx, "bob", "editors"))
	subadmins, err := groups.GetSubAdmins(ctx, "editors")
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, subadmins)

	administered, err := users.GetSubAdminGroups(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"editors"}, administered)

	require.NoError(t, users.RemoveSubAdminFromGroup(ctx, "bob", "editors"))
	require.NoError(t, users.RemoveFromGroup(ctx, "bob", "editors"))
	members, err = groups.GetUsers(ctx, "editors")
	require.NoError(t, err)
	assert.Empty(t, members)

	require.NoError(t, groups.Delete(ctx, "editors"))
	_, err = groups.GetUsers(ctx, "editors")
	assert.True(t, errors.IsOcsFailure(err))
}

func TestSharesLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shares := f.ocs.Shares()

	require.NoError(t, f.dav.CreateFolderHierarchy(ctx, "/shared"))
	require.NoError(t, f.dav.PutString(ctx, "/shared/report.txt", "numbers"))

	userShare, err := shares.Add(ctx, ShareRequest{
		Path:      "/shared",
		ShareType: models.ShareTypeUser,
		ShareWith: "bob",
		Note:      "have a look",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, userShare.ID)
	assert.Equal(t, models.ShareTypeUser, userShare.ShareType)
	assert.Equal(t, "bob", userShare.ShareWith)
	assert.Equal(t, "folder", userShare.ItemType)
	assert.Equal(t, models.PermissionAll, userShare.Permissions)
	assert.Equal(t, "have a look", userShare.Note)

	link, err := shares.Add(ctx, ShareRequest{
		Path:       "/shared/report.txt",
		ShareType:  models.ShareTypePublicLink,
		ExpireDate: time.Now().AddDate(0, 0, 7).Format(ExpireDateLayout),
	})
	require.NoError(t, err)
	assert.Len(t, link.Token, 15)
	assert.Contains(t, link.URL, "/s/"+link.Token)
	assert.Equal(t, models.PermissionRead, link.Permissions)
	assert.NotEmpty(t, link.Expiration)

	got, err := shares.Get(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, link.Token, got.Token)
	assert.Equal(t, "/shared/report.txt", got.Path)

	all, err := shares.List(ctx, ShareListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byPath, err := shares.List(ctx, ShareListOptions{Path: "/shared"})
	require.NoError(t, err)
	require.Len(t, byPath, 1)
	assert.Equal(t, userShare.ID, byPath[0].ID)

	children, err := shares.List(ctx, ShareListOptions{Path: "/shared", Subfiles: true})
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, link.ID, children[0].ID)

	edited, err := shares.Edit(userShare.ID).Permissions(ctx, models.PermissionRead|models.PermissionShare)
	require.NoError(t, err)
	assert.True(t, edited.Permissions.Has(models.PermissionShare))
	assert.False(t, edited.Permissions.Has(models.PermissionUpdate))

	edited, err = shares.Edit(userShare.ID).Note(ctx, "updated")
	require.NoError(t, err)
	assert.Equal(t, "updated", edited.Note)

	_, err = shares.Edit(link.ID).ExpireDate(ctx, "2001-01-01")
	assert.True(t, errors.IsOcsFailure(err))

	require.NoError(t, shares.Delete(ctx, link.ID))
	_, err = shares.Get(ctx, link.ID)
	assert.True(t, errors.IsOcsFailure(err))
}

func TestShareValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	shares := f.ocs.Shares()

	tests := []struct {
		name string
		call func() error
	}{
		{name: "root", call: func() error {
			_, err := shares.Add(ctx, ShareRequest{Path: "/", ShareType: models.ShareTypePublicLink})
			return err
		}},
		{name: "user share without recipient", call: func() error {
			_, err := shares.Add(ctx, ShareRequest{Path: "/x", ShareType: models.ShareTypeUser})
			return err
		}},
		{name: "bad expire date", call: func() error {
			_, err := shares.Add(ctx, ShareRequest{Path: "/x", ShareType: models.ShareTypePublicLink, ExpireDate: "tomorrow"})
			return err
		}},
		{name: "permissions out of range", call: func() error {
			_, err := shares.Edit("1").Permissions(ctx, 64)
			return err
		}},
		{name: "edit without id", call: func() error {
			_, err := shares.Edit("").Note(ctx, "x")
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, errors.Validation, errors.KindOf(err))
		})
	}
}

func TestActivities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.dav.PutString(ctx, "/log.txt", "v1"))
	require.NoError(t, f.dav.PutString(ctx, "/log.txt", "v2"))
	require.NoError(t, f.dav.PutString(ctx, "/log.txt", "v3"))
	fileID, err := f.props.GetFileID(ctx, "/log.txt")
	require.NoError(t, err)

	activities := f.ocs.Activities()

	newest, err := activities.Get(ctx, fileID, ActivityQuery{})
	require.NoError(t, err)
	require.Len(t, newest, 3)
	assert.Equal(t, "file_changed", newest[0].Type)
	assert.Equal(t, "file_created", newest[2].Type)
	assert.Equal(t, "admin", newest[2].User)
	assert.Equal(t, "files", newest[2].ObjectType)
	assert.Equal(t, "/log.txt", newest[2].ObjectName)
	assert.False(t, newest[2].Datetime.IsZero())

	require.NotNil(t, newest[2].SubjectRich)
	assert.Equal(t, "You created {file}", newest[2].SubjectRich.Template)
	assert.Equal(t, "log.txt", newest[2].SubjectRich.Parameters["file"].Name)
	assert.Equal(t, fileID, newest[2].SubjectRich.Parameters["file"].ID)

	var paged []models.OcsActivity
	q := ActivityQuery{Sort: models.SortAscending, Limit: 1}
	for {
		page, err := activities.Get(ctx, fileID, q)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		paged = append(paged, page...)
		q.Since = page[len(page)-1].ActivityID
	}
	require.Len(t, paged, 3)
	assert.Equal(t, "file_created", paged[0].Type)
	assert.Less(t, paged[0].ActivityID, paged[1].ActivityID)

	// nothing recorded for an unknown file answers 304
	empty, err := activities.Get(ctx, "999999", ActivityQuery{})
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = activities.Get(ctx, "", ActivityQuery{})
	assert.Equal(t, errors.Validation, errors.KindOf(err))
}

func TestXMLResponses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.srv.PreferXML(true)

	require.NoError(t, f.ocs.Groups().Add(ctx, "editors"))
	require.NoError(t, f.ocs.Users().AddToGroup(ctx, "bob", "editors"))

	user, err := f.ocs.Users().Get(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", user.ID)
	assert.True(t, user.Enabled)
	assert.Equal(t, []string{"editors"}, user.Groups)
	assert.Empty(t, user.SubAdmin)
	assert.Equal(t, int64(0), user.Quota.Quota)

	groups, err := f.ocs.Groups().List(ctx, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"admin", "editors"}, groups)

	require.NoError(t, f.dav.PutString(ctx, "/x.txt", "x"))
	share, err := f.ocs.Shares().Add(ctx, ShareRequest{Path: "/x.txt", ShareType: models.ShareTypePublicLink})
	require.NoError(t, err)
	assert.Equal(t, models.ShareTypePublicLink, share.ShareType)
	assert.Empty(t, share.ShareWith)

	err = f.ocs.Groups().Add(ctx, "editors")
	var ne *errors.NextcloudError
	require.ErrorAs(t, err, &ne)
	assert.Equal(t, 102, ne.OcsCode)
}

func TestEmptyContainerHook(t *testing.T) {
	tests := []struct {
		name string
		data interface{}
		to   reflect.Type
		want interface{}
	}{
		{name: "empty string to slice", data: "", to: reflect.TypeOf([]string{}), want: []interface{}{}},
		{name: "empty string to struct", data: " ", to: reflect.TypeOf(models.OcsQuota{}), want: map[string]interface{}{}},
		{name: "empty list to map", data: []interface{}{}, to: reflect.TypeOf(map[string]string{}), want: map[string]interface{}{}},
		{name: "empty string to time", data: "", to: reflect.TypeOf(time.Time{}), want: time.Time{}},
		{name: "empty list to slice untouched", data: []interface{}{}, to: reflect.TypeOf([]string{}), want: []interface{}{}},
		{name: "text untouched", data: "abc", to: reflect.TypeOf(""), want: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := emptyContainerHook(reflect.TypeOf(tt.data), tt.to, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeIsLenient(t *testing.T) {
	var quota models.OcsQuota
	require.NoError(t, decode(map[string]interface{}{
		"free":     "100",
		"used":     "12.0",
		"total":    "",
		"relative": "0.5",
		"quota":    "none",
	}, &quota))
	assert.Equal(t, int64(100), quota.Free)
	assert.Equal(t, int64(12), quota.Used)
	assert.Equal(t, int64(0), quota.Total)
	assert.Equal(t, 0.5, quota.Relative)
	assert.Equal(t, int64(0), quota.Quota)

	var activity models.OcsActivity
	require.NoError(t, decode(map[string]interface{}{
		"activity_id": "7",
		"objects":     []interface{}{},
		"datetime":    "2024-03-01T10:00:00+00:00",
	}, &activity))
	assert.Equal(t, int64(7), activity.ActivityID)
	assert.Empty(t, activity.Objects)
	assert.Equal(t, 2024, activity.Datetime.Year())
}
