package mockserver

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
)

var editableUserFields = map[string]bool{
	"displayname": true,
	"display":     true,
	"email":       true,
	"password":    true,
	"quota":       true,
	"phone":       true,
	"address":     true,
	"website":     true,
	"twitter":     true,
	"language":    true,
	"locale":      true,
}

// page applies search, offset and limit to sorted ids
func page(ids []string, req *ocsRequest) []string {
	search := strings.ToLower(req.param("search"))
	var out []string
	for _, id := range ids {
		if search == "" || strings.Contains(strings.ToLower(id), search) {
			out = append(out, id)
		}
	}
	if offset, err := strconv.Atoi(req.param("offset")); err == nil && offset > 0 {
		if offset >= len(out) {
			return []string{}
		}
		out = out[offset:]
	}
	if limit, err := strconv.Atoi(req.param("limit")); err == nil && limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	if out == nil {
		out = []string{}
	}
	return out
}

func (s *Server) usersCollection(req *ocsRequest) ocsReply {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isAdminLocked(req.user) {
		return failure(ocsForbidden, "logged in user must be an admin")
	}

	switch req.r.Method {
	case http.MethodGet:
		ids := make([]string, 0, len(s.accounts))
		for id := range s.accounts {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return success(map[string]interface{}{"users": page(ids, req)})

	case http.MethodPost:
		id := req.param("userid")
		if id == "" {
			return failure(ocsInvalidInput, "no user id given")
		}
		if _, exists := s.accounts[id]; exists {
			return failure(ocsExists, "user already exists")
		}
		password := req.param("password")
		email := req.param("email")
		if password == "" && email == "" {
			return failure(ocsNoPassword, "to send a password link to the user an email address is required")
		}
		groups := req.r.Form["groups[]"]
		for _, g := range groups {
			if !s.groups[g] {
				return failure(104, "group "+g+" does not exist")
			}
		}
		subadmin := req.r.Form["subadmin[]"]
		for _, g := range subadmin {
			if !s.groups[g] {
				return failure(109, "subadmin group "+g+" does not exist")
			}
		}

		a := s.addAccountLocked(id, password, groups...)
		a.email = email
		if dn := req.param("displayName"); dn != "" {
			a.displayName = dn
		}
		if q := req.param("quota"); q != "" {
			a.quota = q
		}
		a.language = req.param("language")
		for _, g := range subadmin {
			a.subadmin[g] = true
		}
		return success(map[string]interface{}{"id": id})
	}
	return failure(ocsBadRequest, "method not allowed")
}

func (s *Server) userRecordLocked(a *account) map[string]interface{} {
	var used int64
	for _, n := range s.trees[a.id] {
		used += int64(len(n.content))
	}
	return map[string]interface{}{
		"id":              a.id,
		"enabled":         a.enabled,
		"storageLocation": "/var/www/html/data/" + a.id,
		"lastLogin":       0,
		"backend":         "Database",
		"subadmin":        sortedKeys(a.subadmin),
		"quota": map[string]interface{}{
			"free":     10737418240 - used,
			"used":     used,
			"total":    10737418240,
			"relative": 0,
			"quota":    a.quota,
		},
		"email":       a.email,
		"displayname": a.displayName,
		"phone":       a.phone,
		"address":     a.address,
		"website":     a.website,
		"twitter":     a.twitter,
		"groups":      sortedKeys(a.groups),
		"language":    a.language,
		"locale":      a.locale,
	}
}

func (s *Server) userResource(req *ocsRequest, id string) ocsReply {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.accounts[id]
	admin := s.isAdminLocked(req.user)

	switch req.r.Method {
	case http.MethodGet:
		if !admin && req.user != id {
			return failure(ocsForbidden, "not allowed")
		}
		if !exists {
			return failure(ocsNotFound, "user does not exist")
		}
		return success(s.userRecordLocked(a))

	case http.MethodPut:
		if !admin && req.user != id {
			return failure(ocsForbidden, "not allowed")
		}
		if !exists {
			return failure(ocsNotFound, "user does not exist")
		}
		key := req.param("key")
		if !editableUserFields[key] {
			return failure(ocsInvalidInput, "unknown key "+key)
		}
		value := req.param("value")
		switch key {
		case "displayname", "display":
			a.displayName = value
		case "email":
			a.email = value
		case "password":
			if value == "" {
				return failure(ocsInvalidInput, "empty password")
			}
			a.password = value
		case "quota":
			a.quota = value
		case "phone":
			a.phone = value
		case "address":
			a.address = value
		case "website":
			a.website = value
		case "twitter":
			a.twitter = value
		case "language":
			a.language = value
		case "locale":
			a.locale = value
		}
		return success([]interface{}{})

	case http.MethodDelete:
		if !admin {
			return failure(ocsForbidden, "not allowed")
		}
		if !exists {
			return failure(ocsNotFound, "user does not exist")
		}
		if id == req.user {
			return failure(ocsInvalidInput, "cannot delete yourself")
		}
		delete(s.accounts, id)
		delete(s.trees, id)
		return success([]interface{}{})
	}
	return failure(ocsBadRequest, "method not allowed")
}

func (s *Server) userSubresource(req *ocsRequest, id, sub string) ocsReply {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isAdminLocked(req.user) && !(req.user == id && sub == "groups" && req.r.Method == http.MethodGet) {
		return failure(ocsForbidden, "not allowed")
	}
	a, exists := s.accounts[id]
	if !exists {
		return failure(ocsNotFound, "user does not exist")
	}

	switch sub {
	case "enable", "disable":
		if req.r.Method != http.MethodPut {
			return failure(ocsBadRequest, "method not allowed")
		}
		a.enabled = sub == "enable"
		return success([]interface{}{})

	case "welcome":
		if req.r.Method != http.MethodPost {
			return failure(ocsBadRequest, "method not allowed")
		}
		if a.email == "" {
			return failure(ocsInvalidInput, "email address not available")
		}
		return success([]interface{}{})

	case "groups":
		switch req.r.Method {
		case http.MethodGet:
			return success(map[string]interface{}{"groups": sortedKeys(a.groups)})
		case http.MethodPost, http.MethodDelete:
			group := req.param("groupid")
			if group == "" {
				return failure(ocsInvalidInput, "no group given")
			}
			if !s.groups[group] {
				return failure(ocsExists, "group does not exist")
			}
			if req.r.Method == http.MethodPost {
				a.groups[group] = true
			} else {
				delete(a.groups, group)
			}
			return success([]interface{}{})
		}

	case "subadmins":
		switch req.r.Method {
		case http.MethodGet:
			return success(sortedKeys(a.subadmin))
		case http.MethodPost, http.MethodDelete:
			group := req.param("groupid")
			if group == "" || !s.groups[group] {
				return failure(ocsExists, "group does not exist")
			}
			if req.r.Method == http.MethodPost {
				a.subadmin[group] = true
				return success([]interface{}{})
			}
			if !a.subadmin[group] {
				return failure(ocsNoSuchUser, "user is not a subadmin of this group")
			}
			delete(a.subadmin, group)
			return success([]interface{}{})
		}
	}
	return failure(ocsNotFound, "invalid query, please check the syntax")
}

func (s *Server) groupsCollection(req *ocsRequest) ocsReply {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isAdminLocked(req.user) {
		return failure(ocsForbidden, "logged in user must be an admin")
	}

	switch req.r.Method {
	case http.MethodGet:
		return success(map[string]interface{}{"groups": page(sortedKeys(s.groups), req)})
	case http.MethodPost:
		id := req.param("groupid")
		if id == "" {
			return failure(ocsInvalidInput, "invalid group name")
		}
		if s.groups[id] {
			return failure(ocsExists, "group exists")
		}
		s.groups[id] = true
		return success([]interface{}{})
	}
	return failure(ocsBadRequest, "method not allowed")
}

func (s *Server) groupResource(req *ocsRequest, id string) ocsReply {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isAdminLocked(req.user) {
		return failure(ocsForbidden, "logged in user must be an admin")
	}
	if !s.groups[id] {
		return failure(ocsNotFound, "the requested group could not be found")
	}

	switch req.r.Method {
	case http.MethodGet:
		users := []string{}
		for uid, a := range s.accounts {
			if a.groups[id] {
				users = append(users, uid)
			}
		}
		sort.Strings(users)
		return success(map[string]interface{}{"users": users})
	case http.MethodDelete:
		if id == AdminGroup {
			return failure(ocsExists, "cannot delete the admin group")
		}
		delete(s.groups, id)
		for _, a := range s.accounts {
			delete(a.groups, id)
			delete(a.subadmin, id)
		}
		return success([]interface{}{})
	}
	return failure(ocsBadRequest, "method not allowed")
}

func (s *Server) groupSubAdmins(req *ocsRequest, id string) ocsReply {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isAdminLocked(req.user) {
		return failure(ocsForbidden, "logged in user must be an admin")
	}
	if !s.groups[id] {
		return failure(ocsInvalidInput, "group does not exist")
	}
	if req.r.Method != http.MethodGet {
		return failure(ocsBadRequest, "method not allowed")
	}

	users := []string{}
	for uid, a := range s.accounts {
		if a.subadmin[id] {
			users = append(users, uid)
		}
	}
	sort.Strings(users)
	return success(users)
}
