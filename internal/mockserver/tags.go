package mockserver

import (
	"encoding/json"
	"encoding/xml"
	"net/http"
	"sort"
	"strconv"
	"strings"
)

type tagRequest struct {
	Name           string `json:"name"`
	UserVisible    *bool  `json:"userVisible"`
	UserAssignable *bool  `json:"userAssignable"`
	CanAssign      *bool  `json:"canAssign"`
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func (s *Server) serveTags(w http.ResponseWriter, r *http.Request, user string) {
	if r.Method != http.MethodPost || strings.TrimSuffix(r.URL.Path, "/") != tagsPrefix {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req tagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		http.Error(w, "invalid tag", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tags {
		if t.name == req.Name {
			http.Error(w, "tag already exists", http.StatusConflict)
			return
		}
	}

	s.nextTagID++
	t := &tag{
		id:         s.nextTagID,
		name:       req.Name,
		visible:    boolOr(req.UserVisible, true),
		assignable: boolOr(req.UserAssignable, true),
		canAssign:  boolOr(req.CanAssign, true),
	}
	s.tags[t.id] = t

	w.Header().Set("Content-Location", tagsPrefix+"/"+strconv.FormatInt(t.id, 10))
	w.Header().Set("Location", tagsPrefix+"/"+strconv.FormatInt(t.id, 10))
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) serveRelations(w http.ResponseWriter, r *http.Request, user string) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, relationsPrefix), "/")
	fileIDPart, tagIDPart, hasTag := strings.Cut(rest, "/")

	fileID, err := strconv.ParseInt(fileIDPart, 10, 64)
	if err != nil {
		http.Error(w, "invalid file id", http.StatusNotFound)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	owner, _, _, ok := s.findFileLocked(fileID)
	if !ok || (owner != user && !s.isAdminLocked(user)) {
		http.Error(w, "file not found", http.StatusNotFound)
		return
	}

	if !hasTag {
		if r.Method != "PROPFIND" {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.listRelationsLocked(w, fileID)
		return
	}

	tagID, err := strconv.ParseInt(tagIDPart, 10, 64)
	if err != nil {
		http.Error(w, "invalid tag id", http.StatusNotFound)
		return
	}
	if _, ok := s.tags[tagID]; !ok {
		http.Error(w, "tag not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodPut:
		if s.relations[fileID][tagID] {
			http.Error(w, "tag already assigned", http.StatusConflict)
			return
		}
		if s.relations[fileID] == nil {
			s.relations[fileID] = make(map[int64]bool)
		}
		s.relations[fileID][tagID] = true
		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		if !s.relations[fileID][tagID] {
			http.Error(w, "tag not assigned", http.StatusNotFound)
			return
		}
		delete(s.relations[fileID], tagID)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listRelationsLocked(w http.ResponseWriter, fileID int64) {
	base := relationsPrefix + strconv.FormatInt(fileID, 10)

	ids := make([]int64, 0, len(s.relations[fileID]))
	for id, assigned := range s.relations[fileID] {
		if assigned {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	ms := newMultistatus()
	ms.response(base+"/", propstat{status: http.StatusOK, props: []string{
		rawProp(xml.Name{Space: nsDAV, Local: "resourcetype"}, "<d:collection/>"),
	}})
	for _, id := range ids {
		t := s.tags[id]
		ms.response(base+"/"+strconv.FormatInt(id, 10), propstat{status: http.StatusOK, props: []string{
			textProp(xml.Name{Space: nsOwnCloud, Local: "id"}, strconv.FormatInt(t.id, 10)),
			textProp(xml.Name{Space: nsOwnCloud, Local: "display-name"}, t.name),
			textProp(xml.Name{Space: nsOwnCloud, Local: "user-visible"}, strconv.FormatBool(t.visible)),
			textProp(xml.Name{Space: nsOwnCloud, Local: "user-assignable"}, strconv.FormatBool(t.assignable)),
			textProp(xml.Name{Space: nsOwnCloud, Local: "can-assign"}, strconv.FormatBool(t.canAssign)),
		}})
	}
	ms.write(w)
}
