package mockserver

import (
	"path"
	"sort"
	"strconv"
	"time"
)

const defaultActivityLimit = 50

var activitySubjects = map[string]string{
	"file_created": "You created {file}",
	"file_changed": "You changed {file}",
	"file_deleted": "You deleted {file}",
}

func (s *Server) activityFilter(req *ocsRequest) ocsReply {
	if req.param("object_type") != "files" {
		return failure(ocsNotFound, "filter not supported")
	}
	fileID, err := strconv.ParseInt(req.param("object_id"), 10, 64)
	if err != nil {
		return failure(ocsNotFound, "invalid object id")
	}

	ascending := req.param("sort") == "asc"
	limit := defaultActivityLimit
	if v, err := strconv.Atoi(req.param("limit")); err == nil && v > 0 {
		limit = v
	}
	since, _ := strconv.ParseInt(req.param("since"), 10, 64)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*activity
	for _, a := range s.activities {
		if a.fileID != fileID || a.affected != req.user {
			continue
		}
		if since > 0 && ((ascending && a.id <= since) || (!ascending && a.id >= since)) {
			continue
		}
		matched = append(matched, a)
	}
	sort.Slice(matched, func(i, j int) bool {
		if ascending {
			return matched[i].id < matched[j].id
		}
		return matched[i].id > matched[j].id
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	if len(matched) == 0 {
		return ocsReply{notModified: true}
	}

	list := make([]interface{}, 0, len(matched))
	for _, a := range matched {
		list = append(list, s.activityRecord(a))
	}
	return success(list)
}

func (s *Server) activityRecord(a *activity) map[string]interface{} {
	id := strconv.FormatInt(a.fileID, 10)
	name := path.Base(a.path)
	link := s.URL() + "/index.php/apps/files/?dir=" + path.Dir(a.path)
	subject := activitySubjects[a.kind]

	return map[string]interface{}{
		"activity_id":  a.id,
		"app":          "files",
		"type":         a.kind,
		"affecteduser": a.affected,
		"user":         a.user,
		"timestamp":    a.at.Unix(),
		"subject":      "You " + verb(a.kind) + " " + name,
		"subject_rich": []interface{}{
			subject,
			map[string]interface{}{
				"file": map[string]interface{}{
					"type": "file",
					"id":   id,
					"name": name,
					"path": a.path,
					"link": link,
				},
			},
		},
		"message":      "",
		"message_rich": []interface{}{"", []interface{}{}},
		"object_type":  "files",
		"object_id":    a.fileID,
		"object_name":  a.path,
		"objects":      map[string]interface{}{id: a.path},
		"link":         link,
		"icon":         s.URL() + "/apps/files/img/add-color.svg",
		"datetime":     a.at.Format(time.RFC3339),
	}
}

func verb(kind string) string {
	switch kind {
	case "file_created":
		return "created"
	case "file_deleted":
		return "deleted"
	}
	return "changed"
}
