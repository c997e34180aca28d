// Package ignore decides which entries of a local tree a recursive upload
// skips, using gitignore-style patterns.
package ignore

import (
	"bufio"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FileName is the per-tree ignore file read by recursive uploads
const FileName = ".ncignore"

// defaultPatterns are always applied
var defaultPatterns = []string{
	".DS_Store",
	"Thumbs.db",
	"desktop.ini",
	".git",
	".svn",
	".hg",
	"*.swp",
	"*~",
	".#*",
	FileName,
}

// Pattern is one parsed ignore rule
type Pattern struct {
	Pattern string
	// Negate re-includes what earlier patterns excluded (leading !)
	Negate bool
	// DirOnly matches folders only (trailing /)
	DirOnly bool
	// Anchored patterns match from the tree root (leading / or inner /)
	Anchored bool
}

// Matcher holds the patterns of one tree
type Matcher struct {
	patterns []Pattern
}

// NewMatcher returns a matcher with the default patterns
func NewMatcher() *Matcher {
	m := &Matcher{}
	m.AddPatterns(defaultPatterns)
	return m
}

// LoadFile adds the patterns of an ignore file. A missing file is not an
// error.
func (m *Matcher) LoadFile(name string) error {
	f, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m.AddPattern(scanner.Text())
	}
	return scanner.Err()
}

// AddPatterns adds several patterns in order
func (m *Matcher) AddPatterns(patterns []string) {
	for _, p := range patterns {
		m.AddPattern(p)
	}
}

// AddPattern parses and adds one pattern; blank lines and comments are
// skipped
func (m *Matcher) AddPattern(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}

	var p Pattern
	if strings.HasPrefix(line, "!") {
		p.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.DirOnly = true
		line = strings.TrimRight(line, "/")
	}
	if strings.Contains(line, "/") {
		p.Anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	if line == "" {
		return
	}
	p.Pattern = line
	m.patterns = append(m.patterns, p)
}

// Patterns returns the patterns in their textual form
func (m *Matcher) Patterns() []string {
	out := make([]string, len(m.patterns))
	for i, p := range m.patterns {
		s := p.Pattern
		if p.Anchored && !strings.Contains(s, "/") {
			s = "/" + s
		}
		if p.DirOnly {
			s += "/"
		}
		if p.Negate {
			s = "!" + s
		}
		out[i] = s
	}
	return out
}

// Match reports whether the entry at rel, a path relative to the tree root,
// is ignored. The last matching pattern decides.
func (m *Matcher) Match(rel string, isDir bool) bool {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return false
	}

	ignored := false
	for _, p := range m.patterns {
		if p.DirOnly && !isDir {
			continue
		}
		if p.matches(rel) {
			ignored = !p.Negate
		}
	}
	return ignored
}

func (p Pattern) matches(rel string) bool {
	if p.Anchored {
		ok, _ := path.Match(p.Pattern, rel)
		return ok
	}
	ok, _ := path.Match(p.Pattern, path.Base(rel))
	return ok
}
