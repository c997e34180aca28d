// Package davpath normalizes user paths and builds the DAV and OCS URLs of a
// Nextcloud server.
package davpath

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pulsepoint/nextcloud/pkg/errors"
)

const (
	filesRoot        = "/remote.php/dav/files/"
	systemTagsRoot   = "/remote.php/dav/systemtags"
	tagRelationsRoot = "/remote.php/dav/systemtags-relations/files/"
)

// Normalize turns a user supplied path into its canonical form: leading
// slash, no empty or "." segments, no trailing slash except for the root,
// percent-encoded input decoded. Paths containing ".." are rejected.
func Normalize(p string) (string, error) {
	if decoded, err := url.PathUnescape(p); err == nil {
		p = decoded
	}

	segments := make([]string, 0, strings.Count(p, "/")+1)
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", errors.NewValidationError(fmt.Sprintf("path %q contains a parent segment", p), nil)
		}
		segments = append(segments, seg)
	}

	return "/" + strings.Join(segments, "/"), nil
}

// Encode percent-encodes each segment of a normalized path
func Encode(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// Parent returns the parent of a normalized path; the root is its own parent
func Parent(p string) string {
	idx := strings.LastIndex(p, "/")
	if idx <= 0 {
		return "/"
	}
	return p[:idx]
}

// Base returns the last segment of a normalized path
func Base(p string) string {
	return p[strings.LastIndex(p, "/")+1:]
}

// Join appends name to a normalized parent path
func Join(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// Prefixes returns every ancestor of p followed by p itself, root excluded:
// "/a/b/c" yields "/a", "/a/b", "/a/b/c".
func Prefixes(p string) []string {
	if p == "/" {
		return nil
	}
	segments := strings.Split(strings.TrimPrefix(p, "/"), "/")
	out := make([]string, 0, len(segments))
	for i := range segments {
		out = append(out, "/"+strings.Join(segments[:i+1], "/"))
	}
	return out
}

// NameFromHref returns the last non-empty segment of href, percent-decoded
func NameFromHref(href string) string {
	trimmed := strings.TrimRight(href, "/")
	name := trimmed[strings.LastIndex(trimmed, "/")+1:]
	if decoded, err := url.PathUnescape(name); err == nil {
		return decoded
	}
	return name
}

// Builder builds request URLs for one server and user
type Builder struct {
	baseURL    string
	basePath   string
	username   string
	davRootRel string
}

// NewBuilder creates a Builder. baseURL must already be stripped of its
// trailing slash.
func NewBuilder(baseURL, username string) (*Builder, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.NewValidationError(fmt.Sprintf("invalid server url %q", baseURL), err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.NewValidationError(fmt.Sprintf("server url %q must be absolute", baseURL), nil)
	}
	if username == "" {
		return nil, errors.NewValidationError("username is required", nil)
	}

	basePath := strings.TrimSuffix(u.Path, "/")
	return &Builder{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		basePath:   basePath,
		username:   username,
		davRootRel: basePath + filesRoot + url.PathEscape(username),
	}, nil
}

// BaseURL returns the server URL
func (b *Builder) BaseURL() string {
	return b.baseURL
}

// Username returns the user the DAV root belongs to
func (b *Builder) Username() string {
	return b.username
}

// WithUser returns a builder for the same server and another user
func (b *Builder) WithUser(username string) (*Builder, error) {
	return NewBuilder(b.baseURL, username)
}

// DavHref returns the server-relative href of a path, the form used in
// Multi-Status responses.
func (b *Builder) DavHref(p string) (string, error) {
	norm, err := Normalize(p)
	if err != nil {
		return "", err
	}
	if norm == "/" {
		return b.davRootRel + "/", nil
	}
	return b.davRootRel + Encode(norm), nil
}

// DavURL returns the absolute URL of a path under the user's DAV root
func (b *Builder) DavURL(p string) (string, error) {
	href, err := b.DavHref(p)
	if err != nil {
		return "", err
	}
	return b.baseURL + strings.TrimPrefix(href, b.basePath), nil
}

// PathFromHref maps an href from a Multi-Status response back to a user
// path. ok is false when href lies outside the user's DAV root.
func (b *Builder) PathFromHref(href string) (string, bool) {
	if u, err := url.Parse(href); err == nil && u.Path != "" {
		href = u.Path
	} else if decoded, err := url.PathUnescape(href); err == nil {
		href = decoded
	}
	rest, found := strings.CutPrefix(href, b.basePath+filesRoot+b.username)
	if !found || (rest != "" && rest[0] != '/') {
		return "", false
	}
	for _, seg := range strings.Split(rest, "/") {
		if seg == ".." {
			return "", false
		}
	}
	return "/" + strings.Trim(rest, "/"), true
}

// OcsURL returns the absolute URL of an OCS endpoint. version is 1 or 2.
func (b *Builder) OcsURL(version int, apiPath string, query url.Values) string {
	u := fmt.Sprintf("%s/ocs/v%d.php/%s", b.baseURL, version, strings.TrimPrefix(apiPath, "/"))
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// TagsURL returns the system tags collection URL
func (b *Builder) TagsURL() string {
	return b.baseURL + systemTagsRoot
}

// TagRelationsURL returns the collection of tags assigned to a file
func (b *Builder) TagRelationsURL(fileID string) string {
	return b.baseURL + tagRelationsRoot + url.PathEscape(fileID)
}

// TagRelationURL returns the assignment of one tag to one file
func (b *Builder) TagRelationURL(fileID, tagID string) string {
	return b.TagRelationsURL(fileID) + "/" + url.PathEscape(tagID)
}
