package mockserver

import (
	"encoding/xml"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pulsepoint/nextcloud/internal/davpath"
)

type propfindRequest struct {
	XMLName xml.Name  `xml:"DAV: propfind"`
	AllProp *struct{} `xml:"DAV: allprop"`
	Prop    struct {
		Items []struct {
			XMLName xml.Name
		} `xml:",any"`
	} `xml:"DAV: prop"`
}

type proppatchRequest struct {
	XMLName xml.Name `xml:"DAV: propertyupdate"`
	Set     []struct {
		Prop struct {
			Items []struct {
				XMLName xml.Name
				Value   string `xml:",chardata"`
			} `xml:",any"`
		} `xml:"DAV: prop"`
	} `xml:"DAV: set"`
	Remove []struct {
		Prop struct {
			Items []struct {
				XMLName xml.Name
			} `xml:",any"`
		} `xml:"DAV: prop"`
	} `xml:"DAV: remove"`
}

// allprop is what an allprop PROPFIND reports besides dead properties
var allprop = []xml.Name{
	{Space: nsDAV, Local: "getlastmodified"},
	{Space: nsDAV, Local: "getcontentlength"},
	{Space: nsDAV, Local: "resourcetype"},
	{Space: nsDAV, Local: "getcontenttype"},
	{Space: nsDAV, Local: "getetag"},
}

// live properties are computed and cannot be changed with PROPPATCH
var live = map[xml.Name]bool{
	{Space: nsDAV, Local: "getlastmodified"}:         true,
	{Space: nsDAV, Local: "getcontentlength"}:        true,
	{Space: nsDAV, Local: "resourcetype"}:            true,
	{Space: nsDAV, Local: "getcontenttype"}:          true,
	{Space: nsDAV, Local: "getetag"}:                 true,
	{Space: nsDAV, Local: "quota-used-bytes"}:        true,
	{Space: nsDAV, Local: "quota-available-bytes"}:   true,
	{Space: nsOwnCloud, Local: "fileid"}:             true,
	{Space: nsOwnCloud, Local: "id"}:                 true,
	{Space: nsOwnCloud, Local: "size"}:               true,
	{Space: nsOwnCloud, Local: "permissions"}:        true,
	{Space: nsOwnCloud, Local: "owner-id"}:           true,
	{Space: nsOwnCloud, Local: "owner-display-name"}: true,
	{Space: nsNextCloud, Local: "has-preview"}:       true,
}

// davTarget splits /remote.php/dav/files/<user>/<path> into its parts
func davTarget(p string) (user, target string) {
	rest := strings.TrimPrefix(p, filesPrefix)
	user, sub, _ := strings.Cut(rest, "/")
	return user, cleanPath(sub)
}

func cleanPath(p string) string {
	return path.Clean("/" + p)
}

func (s *Server) hrefLocked(user, p string, n *node) string {
	root := filesPrefix + url.PathEscape(user)
	if p == "/" {
		return root + "/"
	}
	href := root + davpath.Encode(p)
	if n.isDir {
		href += "/"
	}
	return href
}

func (s *Server) serveDAV(w http.ResponseWriter, r *http.Request, user string) {
	owner, target := davTarget(r.URL.Path)
	if owner != user {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	switch r.Method {
	case "PROPFIND":
		s.propfind(w, r, user, target)
	case "PROPPATCH":
		s.proppatch(w, r, user, target)
	case http.MethodGet, http.MethodHead:
		s.get(w, r, user, target)
	case http.MethodPut:
		s.put(w, r, user, target)
	case http.MethodDelete:
		s.delete(w, user, target)
	case "MKCOL":
		s.mkcol(w, user, target)
	case "MOVE", "COPY":
		s.relocate(w, r, user, target)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) propfind(w http.ResponseWriter, r *http.Request, user, target string) {
	body, _ := io.ReadAll(r.Body)

	var names []xml.Name
	if len(strings.TrimSpace(string(body))) > 0 {
		var req propfindRequest
		if err := xml.Unmarshal(body, &req); err != nil {
			http.Error(w, "malformed propfind", http.StatusBadRequest)
			return
		}
		if req.AllProp == nil {
			for _, item := range req.Prop.Items {
				names = append(names, item.XMLName)
			}
		}
	}

	depth := r.Header.Get("Depth")
	if depth == "" {
		depth = "1"
	}
	if depth != "0" && depth != "1" {
		http.Error(w, "infinite depth is not supported", http.StatusForbidden)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tree := s.trees[user]
	n, ok := tree[target]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	ms := newMultistatus()
	s.describeLocked(ms, user, target, n, names)
	if depth == "1" && n.isDir {
		for _, child := range childrenLocked(tree, target) {
			s.describeLocked(ms, user, child, tree[child], names)
		}
	}
	ms.write(w)
}

// childrenLocked returns the direct children of dir sorted by path
func childrenLocked(tree map[string]*node, dir string) []string {
	var out []string
	for p := range tree {
		if p != "/" && path.Dir(p) == dir {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Server) describeLocked(ms *multistatus, user, p string, n *node, names []xml.Name) {
	if len(names) == 0 {
		names = append([]xml.Name{}, allprop...)
		dead := make([]xml.Name, 0, len(n.props))
		for name := range n.props {
			dead = append(dead, name)
		}
		sort.Slice(dead, func(i, j int) bool {
			return dead[i].Space+dead[i].Local < dead[j].Space+dead[j].Local
		})
		names = append(names, dead...)
	}

	found := propstat{status: http.StatusOK}
	missing := propstat{status: http.StatusNotFound}
	for _, name := range names {
		if rendered, ok := s.renderPropLocked(user, p, n, name); ok {
			found.props = append(found.props, rendered)
		} else {
			missing.props = append(missing.props, emptyProp(name))
		}
	}
	ms.response(s.hrefLocked(user, p, n), found, missing)
}

func (s *Server) renderPropLocked(user, p string, n *node, name xml.Name) (string, bool) {
	if v, ok := n.props[name]; ok {
		return textProp(name, v), true
	}

	switch name {
	case xml.Name{Space: nsDAV, Local: "getlastmodified"}:
		return textProp(name, n.modified.Format(http.TimeFormat)), true
	case xml.Name{Space: nsDAV, Local: "getcontentlength"}:
		if n.isDir {
			return "", false
		}
		return textProp(name, strconv.Itoa(len(n.content))), true
	case xml.Name{Space: nsDAV, Local: "resourcetype"}:
		if n.isDir {
			return rawProp(name, "<d:collection/>"), true
		}
		return rawProp(name, ""), true
	case xml.Name{Space: nsDAV, Local: "getcontenttype"}:
		if n.isDir {
			return "", false
		}
		return textProp(name, contentType(p)), true
	case xml.Name{Space: nsDAV, Local: "getetag"}:
		return textProp(name, `"`+n.etag+`"`), true
	case xml.Name{Space: nsDAV, Local: "quota-used-bytes"}:
		if !n.isDir {
			return "", false
		}
		return textProp(name, strconv.FormatInt(s.sizeLocked(user, p), 10)), true
	case xml.Name{Space: nsOwnCloud, Local: "fileid"}:
		return textProp(name, strconv.FormatInt(n.fileID, 10)), true
	case xml.Name{Space: nsOwnCloud, Local: "id"}:
		return textProp(name, fmt.Sprintf("%08docmock", n.fileID)), true
	case xml.Name{Space: nsOwnCloud, Local: "size"}:
		return textProp(name, strconv.FormatInt(s.sizeLocked(user, p), 10)), true
	case xml.Name{Space: nsOwnCloud, Local: "permissions"}:
		if n.isDir {
			return textProp(name, "RGDNVCK"), true
		}
		return textProp(name, "RGDNVW"), true
	case xml.Name{Space: nsOwnCloud, Local: "owner-id"}:
		return textProp(name, user), true
	case xml.Name{Space: nsOwnCloud, Local: "owner-display-name"}:
		return textProp(name, s.accounts[user].displayName), true
	case xml.Name{Space: nsOwnCloud, Local: "favorite"}:
		return textProp(name, "0"), true
	case xml.Name{Space: nsNextCloud, Local: "has-preview"}:
		return textProp(name, "false"), true
	}
	return "", false
}

func (s *Server) sizeLocked(user, p string) int64 {
	var total int64
	for candidate, n := range s.trees[user] {
		if candidate == p || strings.HasPrefix(candidate, strings.TrimSuffix(p, "/")+"/") {
			total += int64(len(n.content))
		}
	}
	return total
}

func contentType(p string) string {
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func (s *Server) proppatch(w http.ResponseWriter, r *http.Request, user, target string) {
	var req proppatchRequest
	if err := xml.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed proppatch", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.trees[user][target]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	refused := propstat{status: http.StatusForbidden}
	accepted := propstat{status: http.StatusOK}
	sets := make(map[xml.Name]string)
	var removes []xml.Name

	for _, set := range req.Set {
		for _, item := range set.Prop.Items {
			if live[item.XMLName] {
				refused.props = append(refused.props, emptyProp(item.XMLName))
				continue
			}
			sets[item.XMLName] = item.Value
			accepted.props = append(accepted.props, emptyProp(item.XMLName))
		}
	}
	for _, rm := range req.Remove {
		for _, item := range rm.Prop.Items {
			if live[item.XMLName] {
				refused.props = append(refused.props, emptyProp(item.XMLName))
				continue
			}
			removes = append(removes, item.XMLName)
			accepted.props = append(accepted.props, emptyProp(item.XMLName))
		}
	}

	ms := newMultistatus()
	if len(refused.props) > 0 {
		// PROPPATCH is atomic: the acceptable part fails as a dependency
		accepted.status = http.StatusFailedDependency
		ms.response(s.hrefLocked(user, target, n), refused, accepted)
		ms.write(w)
		return
	}

	for name, v := range sets {
		n.props[name] = v
	}
	for _, name := range removes {
		delete(n.props, name)
	}
	ms.response(s.hrefLocked(user, target, n), accepted)
	ms.write(w)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request, user, target string) {
	s.mu.RLock()
	n, ok := s.trees[user][target]
	var content []byte
	var etag string
	var modified time.Time
	if ok {
		content = append([]byte(nil), n.content...)
		etag = n.etag
		modified = n.modified
	}
	isDir := ok && n.isDir
	s.mu.RUnlock()

	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if isDir {
		http.Error(w, "cannot download a folder", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", contentType(target))
	w.Header().Set("Content-Length", strconv.Itoa(len(content)))
	w.Header().Set("ETag", `"`+etag+`"`)
	w.Header().Set("Last-Modified", modified.Format(http.TimeFormat))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		w.Write(content)
	}
}

func (s *Server) put(w http.ResponseWriter, r *http.Request, user, target string) {
	content, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "incomplete body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tree := s.trees[user]
	if target == "/" {
		http.Error(w, "cannot overwrite the root", http.StatusMethodNotAllowed)
		return
	}
	parent, ok := tree[path.Dir(target)]
	if !ok || !parent.isDir {
		http.Error(w, "parent folder does not exist", http.StatusNotFound)
		return
	}

	if existing, ok := tree[target]; ok {
		if existing.isDir {
			http.Error(w, "a folder exists at this path", http.StatusConflict)
			return
		}
		existing.content = content
		existing.modified = time.Now().UTC().Truncate(time.Second)
		existing.etag = uuid.NewString()
		s.recordLocked("file_changed", user, existing, target)
		w.Header().Set("ETag", `"`+existing.etag+`"`)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	n := s.newNodeLocked(false, content)
	tree[target] = n
	s.recordLocked("file_created", user, n, target)
	w.Header().Set("ETag", `"`+n.etag+`"`)
	w.Header().Set("OC-FileId", fmt.Sprintf("%08docmock", n.fileID))
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) delete(w http.ResponseWriter, user, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree := s.trees[user]
	n, ok := tree[target]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if target == "/" {
		http.Error(w, "cannot delete the root", http.StatusForbidden)
		return
	}

	for _, p := range subtree(tree, target) {
		delete(s.relations, tree[p].fileID)
		delete(tree, p)
	}
	s.recordLocked("file_deleted", user, n, target)
	w.WriteHeader(http.StatusNoContent)
}

// subtree returns root and every path below it
func subtree(tree map[string]*node, root string) []string {
	out := []string{root}
	prefix := strings.TrimSuffix(root, "/") + "/"
	for p := range tree {
		if strings.HasPrefix(p, prefix) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (s *Server) mkcol(w http.ResponseWriter, user, target string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tree := s.trees[user]
	if _, ok := tree[target]; ok {
		http.Error(w, "the resource you tried to create already exists", http.StatusMethodNotAllowed)
		return
	}
	parent, ok := tree[path.Dir(target)]
	if !ok || !parent.isDir {
		http.Error(w, "parent node does not exist", http.StatusConflict)
		return
	}

	n := s.newNodeLocked(true, nil)
	tree[target] = n
	s.recordLocked("file_created", user, n, target)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) relocate(w http.ResponseWriter, r *http.Request, user, target string) {
	dest, err := url.Parse(r.Header.Get("Destination"))
	if err != nil || !strings.HasPrefix(dest.Path, filesPrefix) {
		http.Error(w, "invalid destination", http.StatusBadRequest)
		return
	}
	destUser, destPath := davTarget(dest.Path)
	if destUser != user {
		http.Error(w, "cross-user destination", http.StatusForbidden)
		return
	}
	overwrite := !strings.EqualFold(r.Header.Get("Overwrite"), "F")

	s.mu.Lock()
	defer s.mu.Unlock()

	tree := s.trees[user]
	src, ok := tree[target]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if target == "/" || destPath == "/" || destPath == target || strings.HasPrefix(destPath, target+"/") {
		http.Error(w, "invalid destination", http.StatusForbidden)
		return
	}
	parent, ok := tree[path.Dir(destPath)]
	if !ok || !parent.isDir {
		http.Error(w, "destination parent does not exist", http.StatusConflict)
		return
	}

	status := http.StatusCreated
	if _, exists := tree[destPath]; exists {
		if !overwrite {
			http.Error(w, "destination exists", http.StatusPreconditionFailed)
			return
		}
		for _, p := range subtree(tree, destPath) {
			delete(tree, p)
		}
		status = http.StatusNoContent
	}

	paths := subtree(tree, target)
	if r.Method == "MOVE" {
		for _, p := range paths {
			tree[destPath+strings.TrimPrefix(p, target)] = tree[p]
			delete(tree, p)
		}
		s.recordLocked("file_changed", user, src, destPath)
	} else {
		for _, p := range paths {
			orig := tree[p]
			clone := s.newNodeLocked(orig.isDir, append([]byte(nil), orig.content...))
			for k, v := range orig.props {
				clone.props[k] = v
			}
			np := destPath + strings.TrimPrefix(p, target)
			tree[np] = clone
			s.recordLocked("file_created", user, clone, np)
		}
	}
	w.WriteHeader(status)
}
