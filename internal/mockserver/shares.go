package mockserver

import (
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	shareTypeUser  = 0
	shareTypeGroup = 1
	shareTypeLink  = 3
	shareTypeEmail = 4

	permRead   = 1
	permUpdate = 2
	permCreate = 4
	permDelete = 8
	permShare  = 16
	permAll    = 31
	// files cannot carry create or delete
	permFileMask = permRead | permUpdate | permShare
)

func (s *Server) shareRecordLocked(sh *share) map[string]interface{} {
	itemType := "file"
	mimeType := contentType(sh.path)
	if sh.isDir {
		itemType = "folder"
		mimeType = "httpd/unix-directory"
	}
	owner := s.accounts[sh.owner]
	ownerName := sh.owner
	if owner != nil {
		ownerName = owner.displayName
	}

	record := map[string]interface{}{
		"id":                     strconv.FormatInt(sh.id, 10),
		"share_type":             sh.shareType,
		"uid_owner":              sh.owner,
		"displayname_owner":      ownerName,
		"permissions":            sh.permissions,
		"stime":                  sh.created.Unix(),
		"uid_file_owner":         sh.owner,
		"displayname_file_owner": ownerName,
		"path":                   sh.path,
		"item_type":              itemType,
		"mimetype":               mimeType,
		"item_source":            sh.fileID,
		"file_source":            sh.fileID,
		"file_parent":            s.parentIDLocked(sh.owner, sh.path),
		"file_target":            "/" + path.Base(sh.path),
		"share_with":             sh.shareWith,
		"share_with_displayname": sh.shareWith,
		"token":                  sh.token,
		"expiration":             nil,
		"note":                   sh.note,
		"label":                  "",
		"hide_download":          0,
	}
	if sh.expiration != "" {
		record["expiration"] = sh.expiration + " 00:00:00"
	}
	if sh.shareType == shareTypeLink {
		record["url"] = s.URL() + "/s/" + sh.token
		record["share_with"] = nil
		record["share_with_displayname"] = nil
	}
	if a, ok := s.accounts[sh.shareWith]; ok && sh.shareType == shareTypeUser {
		record["share_with_displayname"] = a.displayName
	}
	return record
}

func (s *Server) parentIDLocked(owner, p string) int64 {
	if parent, ok := s.trees[owner][path.Dir(p)]; ok {
		return parent.fileID
	}
	return 0
}

func (s *Server) sharesCollection(req *ocsRequest) ocsReply {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.r.Method {
	case http.MethodGet:
		return s.listSharesLocked(req)
	case http.MethodPost:
		return s.createShareLocked(req)
	}
	return failure(ocsBadRequest, "method not allowed")
}

func (s *Server) listSharesLocked(req *ocsRequest) ocsReply {
	filter := req.param("path")
	subfiles := req.param("subfiles") == "true"
	if filter != "" {
		filter = cleanPath(filter)
		if _, ok := s.trees[req.user][filter]; !ok {
			return failure(ocsNotFound, "wrong path, file/folder doesn't exist")
		}
	}

	ids := make([]int64, 0, len(s.shares))
	for id, sh := range s.shares {
		if sh.owner != req.user {
			continue
		}
		switch {
		case filter == "":
		case subfiles && path.Dir(sh.path) == filter:
		case !subfiles && sh.path == filter:
		default:
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	list := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		list = append(list, s.shareRecordLocked(s.shares[id]))
	}
	return success(list)
}

func (s *Server) createShareLocked(req *ocsRequest) ocsReply {
	p := req.param("path")
	if p == "" {
		return failure(ocsNotFound, "please specify a file or folder path")
	}
	p = cleanPath(p)
	n, ok := s.trees[req.user][p]
	if !ok || p == "/" {
		return failure(ocsNotFound, "wrong path, file/folder doesn't exist")
	}

	shareType, err := strconv.Atoi(req.param("shareType"))
	if err != nil {
		return failure(ocsBadRequest, "unknown share type")
	}
	with := req.param("shareWith")

	switch shareType {
	case shareTypeUser:
		if _, ok := s.accounts[with]; !ok {
			return failure(ocsNotFound, "please specify a valid user")
		}
		if with == req.user {
			return failure(ocsBadRequest, "cannot share with yourself")
		}
	case shareTypeGroup:
		if !s.groups[with] {
			return failure(ocsNotFound, "please specify a valid group")
		}
	case shareTypeEmail:
		if !strings.Contains(with, "@") {
			return failure(ocsNotFound, "please specify a valid email address")
		}
	case shareTypeLink:
		with = ""
	default:
		return failure(ocsBadRequest, "unknown share type")
	}

	permissions := permAll
	if shareType == shareTypeLink {
		permissions = permRead
	}
	if v := req.param("permissions"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > permAll {
			return failure(ocsBadRequest, "invalid permissions")
		}
		permissions = parsed
	}
	if shareType == shareTypeLink && req.param("publicUpload") == "true" {
		if !n.isDir {
			return failure(ocsBadRequest, "public upload is only possible for publicly shared folders")
		}
		permissions = permRead | permUpdate | permCreate | permDelete
	}
	if !n.isDir {
		permissions &= permFileMask
	}

	expiration := req.param("expireDate")
	if expiration != "" {
		if _, err := time.Parse("2006-01-02", expiration); err != nil {
			return failure(ocsBadRequest, "invalid date, date format must be YYYY-MM-DD")
		}
	}

	s.nextShareID++
	sh := &share{
		id:          s.nextShareID,
		shareType:   shareType,
		owner:       req.user,
		path:        p,
		fileID:      n.fileID,
		isDir:       n.isDir,
		shareWith:   with,
		permissions: permissions,
		password:    req.param("password"),
		expiration:  expiration,
		note:        req.param("note"),
		created:     time.Now().UTC(),
	}
	if shareType == shareTypeLink || shareType == shareTypeEmail {
		sh.token = strings.ReplaceAll(uuid.NewString(), "-", "")[:15]
	}
	s.shares[sh.id] = sh
	return success(s.shareRecordLocked(sh))
}

func (s *Server) shareResource(req *ocsRequest, rawID string) ocsReply {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return failure(ocsNotFound, "wrong share ID, share doesn't exist")
	}
	sh, ok := s.shares[id]
	if !ok || sh.owner != req.user {
		return failure(ocsNotFound, "wrong share ID, share doesn't exist")
	}

	switch req.r.Method {
	case http.MethodGet:
		return success([]interface{}{s.shareRecordLocked(sh)})
	case http.MethodDelete:
		delete(s.shares, id)
		return success([]interface{}{})
	case http.MethodPut:
		return s.updateShareLocked(req, sh)
	}
	return failure(ocsBadRequest, "method not allowed")
}

func (s *Server) updateShareLocked(req *ocsRequest, sh *share) ocsReply {
	switch {
	case req.has("permissions"):
		p, err := strconv.Atoi(req.param("permissions"))
		if err != nil || p <= 0 || p > permAll {
			return failure(ocsBadRequest, "invalid permissions")
		}
		if !sh.isDir {
			p &= permFileMask
		}
		sh.permissions = p
	case req.has("password"):
		sh.password = req.param("password")
	case req.has("publicUpload"):
		if sh.shareType != shareTypeLink || !sh.isDir {
			return failure(ocsBadRequest, "public upload is only possible for publicly shared folders")
		}
		if req.param("publicUpload") == "true" {
			sh.permissions = permRead | permUpdate | permCreate | permDelete
		} else {
			sh.permissions = permRead
		}
	case req.has("expireDate"):
		date := req.param("expireDate")
		if date != "" {
			t, err := time.Parse("2006-01-02", date)
			if err != nil {
				return failure(ocsBadRequest, "invalid date, date format must be YYYY-MM-DD")
			}
			if t.Before(time.Now().UTC().Truncate(24 * time.Hour)) {
				return failure(ocsBadRequest, "expiration date is in the past")
			}
		}
		sh.expiration = date
	case req.has("note"):
		sh.note = req.param("note")
	default:
		return failure(ocsBadRequest, "wrong or no update parameter given")
	}
	return success(s.shareRecordLocked(sh))
}
