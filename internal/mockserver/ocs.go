package mockserver

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"unicode"
)

// OCS meta status codes used by the fake
const (
	ocsOK           = 100
	ocsUnauthorized = 997
	ocsNotFound     = 998
	ocsBadRequest   = 400
	ocsForbidden    = 403
	ocsInvalidInput = 101
	ocsExists       = 102
	ocsNoSuchUser   = 103
	ocsNoPassword   = 108
)

// ocsReply is what an endpoint produces; the envelope depends on the API
// version and the requested format
type ocsReply struct {
	code    int
	message string
	data    interface{}
	// notModified answers 304 without body
	notModified bool
}

func success(data interface{}) ocsReply {
	return ocsReply{code: ocsOK, message: "OK", data: data}
}

func failure(code int, message string) ocsReply {
	return ocsReply{code: code, message: message, data: []interface{}{}}
}

type ocsRequest struct {
	version int
	user    string
	path    []string
	r       *http.Request
}

func (o *ocsRequest) param(key string) string {
	return strings.TrimSpace(o.r.Form.Get(key))
}

func (o *ocsRequest) has(key string) bool {
	_, ok := o.r.Form[key]
	return ok
}

func (o *ocsRequest) is(segments ...string) bool {
	if len(o.path) != len(segments) {
		return false
	}
	for i, seg := range segments {
		if seg != "*" && seg != o.path[i] {
			return false
		}
	}
	return true
}

func (s *Server) serveOCS(w http.ResponseWriter, r *http.Request, user string) {
	var version int
	rest := strings.TrimPrefix(r.URL.Path, ocsPrefix)
	switch {
	case strings.HasPrefix(rest, "1.php/"):
		version = 1
	case strings.HasPrefix(rest, "2.php/"):
		version = 2
	default:
		http.NotFound(w, r)
		return
	}
	rest = rest[len("1.php/"):]

	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	asJSON := r.Form.Get("format") == "json"
	s.mu.RLock()
	if s.preferXML {
		asJSON = false
	}
	s.mu.RUnlock()

	if r.Header.Get("OCS-APIRequest") != "true" {
		s.writeOCS(w, version, asJSON, failure(ocsUnauthorized, "CSRF check failed"))
		return
	}

	req := &ocsRequest{
		version: version,
		user:    user,
		path:    strings.Split(strings.Trim(rest, "/"), "/"),
		r:       r,
	}
	s.writeOCS(w, version, asJSON, s.routeOCS(req))
}

func (s *Server) routeOCS(req *ocsRequest) ocsReply {
	switch {
	case req.is("cloud", "users"):
		return s.usersCollection(req)
	case req.is("cloud", "users", "*"):
		return s.userResource(req, req.path[2])
	case req.is("cloud", "users", "*", "*"):
		return s.userSubresource(req, req.path[2], req.path[3])
	case req.is("cloud", "groups"):
		return s.groupsCollection(req)
	case req.is("cloud", "groups", "*"):
		return s.groupResource(req, req.path[2])
	case req.is("cloud", "groups", "*", "subadmins"):
		return s.groupSubAdmins(req, req.path[2])
	case req.is("apps", "files_sharing", "api", "v1", "shares"):
		return s.sharesCollection(req)
	case req.is("apps", "files_sharing", "api", "v1", "shares", "*"):
		return s.shareResource(req, req.path[5])
	case req.is("apps", "activity", "api", "v2", "activity", "filter"):
		return s.activityFilter(req)
	}
	return failure(ocsNotFound, "invalid query, please check the syntax")
}

// httpStatus maps a meta code onto the HTTP status of a v2 reply
func httpStatus(version, code int) int {
	if version == 1 || code == ocsOK {
		return http.StatusOK
	}
	switch {
	case code == ocsNotFound:
		return http.StatusNotFound
	case code == ocsUnauthorized:
		return http.StatusUnauthorized
	case code >= 400 && code < 600:
		return code
	}
	return http.StatusBadRequest
}

func (s *Server) writeOCS(w http.ResponseWriter, version int, asJSON bool, reply ocsReply) {
	if reply.notModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	code := reply.code
	status := "failure"
	if code == ocsOK {
		status = "ok"
		if version == 2 {
			code = 200
		}
	} else if version == 2 {
		code = httpStatus(version, code)
	}

	if asJSON {
		body, _ := json.Marshal(map[string]interface{}{
			"ocs": map[string]interface{}{
				"meta": map[string]interface{}{
					"status":       status,
					"statuscode":   code,
					"message":      reply.message,
					"totalitems":   "",
					"itemsperpage": "",
				},
				"data": reply.data,
			},
		})
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(httpStatus(version, reply.code))
		w.Write(body)
		return
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	fmt.Fprintf(&buf, "<ocs><meta><status>%s</status><statuscode>%d</statuscode><message>%s</message><totalitems></totalitems><itemsperpage></itemsperpage></meta><data>",
		status, code, escapeText(reply.message))
	writeXMLValue(&buf, reply.data)
	buf.WriteString("</data></ocs>")

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(httpStatus(version, reply.code))
	w.Write(buf.Bytes())
}

// writeXMLValue renders data the way the OCS XML formatter does: maps as
// child elements, lists as <element> children, booleans as 1 or nothing
func writeXMLValue(buf *bytes.Buffer, v interface{}) {
	switch val := v.(type) {
	case nil:
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			name := xmlElementName(k)
			fmt.Fprintf(buf, "<%s>", name)
			writeXMLValue(buf, val[k])
			fmt.Fprintf(buf, "</%s>", name)
		}
	case map[string]string:
		generic := make(map[string]interface{}, len(val))
		for k, s := range val {
			generic[k] = s
		}
		writeXMLValue(buf, generic)
	case []interface{}:
		for _, item := range val {
			buf.WriteString("<element>")
			writeXMLValue(buf, item)
			buf.WriteString("</element>")
		}
	case []string:
		for _, item := range val {
			buf.WriteString("<element>")
			buf.WriteString(escapeText(item))
			buf.WriteString("</element>")
		}
	case bool:
		if val {
			buf.WriteString("1")
		}
	default:
		buf.WriteString(escapeText(fmt.Sprint(val)))
	}
}

func xmlElementName(k string) string {
	if k == "" || !unicode.IsLetter(rune(k[0])) {
		return "_" + k
	}
	return k
}
