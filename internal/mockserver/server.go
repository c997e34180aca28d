// Package mockserver provides an in-memory Nextcloud for testing: WebDAV
// files and properties, system tags, the activity stream and the OCS
// provisioning and sharing endpoints, served over httptest.
package mockserver

import (
	"encoding/xml"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pulsepoint/nextcloud/pkg/logger"
	"go.uber.org/zap"
)

// AdminGroup is the group whose members may use the provisioning API
const AdminGroup = "admin"

const (
	filesPrefix     = "/remote.php/dav/files/"
	tagsPrefix      = "/remote.php/dav/systemtags"
	relationsPrefix = "/remote.php/dav/systemtags-relations/files/"
	ocsPrefix       = "/ocs/v"
)

type node struct {
	isDir    bool
	content  []byte
	modified time.Time
	fileID   int64
	etag     string
	// dead properties stored with PROPPATCH
	props map[xml.Name]string
}

type account struct {
	id          string
	password    string
	displayName string
	email       string
	phone       string
	address     string
	website     string
	twitter     string
	quota       string
	language    string
	locale      string
	enabled     bool
	groups      map[string]bool
	subadmin    map[string]bool
}

type tag struct {
	id         int64
	name       string
	visible    bool
	assignable bool
	canAssign  bool
}

type share struct {
	id          int64
	shareType   int
	owner       string
	path        string
	fileID      int64
	isDir       bool
	shareWith   string
	permissions int
	token       string
	password    string
	expiration  string
	note        string
	created     time.Time
}

type activity struct {
	id       int64
	kind     string
	user     string
	affected string
	fileID   int64
	path     string
	at       time.Time
}

// Server is a fake Nextcloud instance. All state lives in memory and is
// guarded by one mutex.
type Server struct {
	mu     sync.RWMutex
	http   *httptest.Server
	logger *zap.Logger

	accounts map[string]*account
	groups   map[string]bool
	trees    map[string]map[string]*node

	tags      map[int64]*tag
	relations map[int64]map[int64]bool
	shares    map[int64]*share

	activities []*activity

	nextFileID     int64
	nextTagID      int64
	nextShareID    int64
	nextActivityID int64

	preferXML bool
	failures  map[string][]int
}

// New starts a server with an "admin" group and no users
func New() *Server {
	s := &Server{
		logger:    logger.Named("mockserver"),
		accounts:  make(map[string]*account),
		groups:    map[string]bool{AdminGroup: true},
		trees:     make(map[string]map[string]*node),
		tags:      make(map[int64]*tag),
		relations: make(map[int64]map[int64]bool),
		shares:    make(map[int64]*share),
		failures:  make(map[string][]int),
	}
	s.http = httptest.NewServer(s)
	return s
}

// URL returns the base URL of the server
func (s *Server) URL() string {
	return s.http.URL
}

// Client returns an HTTP client suited to the server
func (s *Server) Client() *http.Client {
	return s.http.Client()
}

// Close shuts the server down
func (s *Server) Close() {
	s.http.Close()
}

// AddUser creates an enabled user with an empty file tree
func (s *Server) AddUser(id, password string, groups ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addAccountLocked(id, password, groups...)
}

// AddAdmin creates a user belonging to the admin group
func (s *Server) AddAdmin(id, password string) {
	s.AddUser(id, password, AdminGroup)
}

func (s *Server) addAccountLocked(id, password string, groups ...string) *account {
	a := &account{
		id:          id,
		password:    password,
		displayName: id,
		enabled:     true,
		quota:       "none",
		groups:      make(map[string]bool),
		subadmin:    make(map[string]bool),
	}
	for _, g := range groups {
		s.groups[g] = true
		a.groups[g] = true
	}
	s.accounts[id] = a
	s.trees[id] = map[string]*node{"/": s.newNodeLocked(true, nil)}
	return a
}

// PreferXML makes OCS endpoints answer in XML even when JSON is requested
func (s *Server) PreferXML(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferXML = enabled
}

// FailNext makes the next request with the given method answer status
func (s *Server) FailNext(method string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = append(s.failures[method], status)
}

// FileContent returns the stored content of a user's file
func (s *Server) FileContent(user, path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.trees[user][path]
	if !ok || n.isDir {
		return nil, false
	}
	return append([]byte(nil), n.content...), true
}

// Exists reports whether a user's tree contains path
func (s *Server) Exists(user, path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.trees[user][path]
	return ok
}

func (s *Server) newNodeLocked(isDir bool, content []byte) *node {
	s.nextFileID++
	return &node{
		isDir:    isDir,
		content:  content,
		modified: time.Now().UTC().Truncate(time.Second),
		fileID:   s.nextFileID,
		etag:     uuid.NewString(),
		props:    make(map[xml.Name]string),
	}
}

func (s *Server) recordLocked(kind, user string, n *node, path string) {
	s.nextActivityID++
	s.activities = append(s.activities, &activity{
		id:       s.nextActivityID,
		kind:     kind,
		user:     user,
		affected: user,
		fileID:   n.fileID,
		path:     path,
		at:       time.Now().UTC().Truncate(time.Second),
	})
}

// ServeHTTP authenticates the request and routes it to the DAV, tag or
// OCS handlers
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", `Basic realm="Nextcloud"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if status, ok := s.injectedFailure(r.Method); ok {
		http.Error(w, http.StatusText(status), status)
		return
	}

	s.logger.Debug("Mock request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("user", user))

	p := r.URL.Path
	switch {
	case strings.HasPrefix(p, filesPrefix):
		s.serveDAV(w, r, user)
	case strings.HasPrefix(p, relationsPrefix):
		s.serveRelations(w, r, user)
	case strings.HasPrefix(p, tagsPrefix):
		s.serveTags(w, r, user)
	case strings.HasPrefix(p, ocsPrefix):
		s.serveOCS(w, r, user)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) authenticate(r *http.Request) (string, bool) {
	user, password, ok := r.BasicAuth()
	if !ok {
		return "", false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, exists := s.accounts[user]
	if !exists || !a.enabled || a.password != password {
		return "", false
	}
	return user, true
}

func (s *Server) injectedFailure(method string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	queue := s.failures[method]
	if len(queue) == 0 {
		return 0, false
	}
	s.failures[method] = queue[1:]
	return queue[0], true
}

func (s *Server) isAdminLocked(user string) bool {
	a, ok := s.accounts[user]
	return ok && a.groups[AdminGroup]
}

// findFileLocked locates a file id in any tree
func (s *Server) findFileLocked(fileID int64) (owner, path string, n *node, ok bool) {
	for user, tree := range s.trees {
		for p, candidate := range tree {
			if candidate.fileID == fileID {
				return user, p, candidate, true
			}
		}
	}
	return "", "", nil, false
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
