package models

import (
	"fmt"
	"sort"
)

// Tag is a Nextcloud system tag
type Tag struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	CanAssign      bool   `json:"canAssign"`
	UserAssignable bool   `json:"userAssignable"`
	UserVisible    bool   `json:"userVisible"`
}

// FileProps holds the properties of a single resource keyed by their
// qualified name in Clark notation, e.g. "{http://owncloud.org/ns}fileid".
type FileProps struct {
	Path  string            `json:"path"`
	Props map[string]string `json:"props"`
}

// QualifiedName builds the Clark notation key for a namespaced property
func QualifiedName(namespace, local string) string {
	return fmt.Sprintf("{%s}%s", namespace, local)
}

// SplitQualifiedName is the inverse of QualifiedName. Names without a
// namespace part are returned in the DAV: namespace.
func SplitQualifiedName(name string) (namespace, local string) {
	if len(name) > 0 && name[0] == '{' {
		for i := 1; i < len(name); i++ {
			if name[i] == '}' {
				return name[1:i], name[i+1:]
			}
		}
	}
	return NamespaceDAV, name
}

// NewFileProps creates an empty property set for path
func NewFileProps(path string) *FileProps {
	return &FileProps{Path: path, Props: make(map[string]string)}
}

// Get returns the value of a qualified property
func (f *FileProps) Get(name string) (string, bool) {
	v, ok := f.Props[name]
	return v, ok
}

// Set stores the value of a qualified property
func (f *FileProps) Set(name, value string) {
	if f.Props == nil {
		f.Props = make(map[string]string)
	}
	f.Props[name] = value
}

// Names returns the property names in a stable order
func (f *FileProps) Names() []string {
	names := make([]string, 0, len(f.Props))
	for name := range f.Props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
