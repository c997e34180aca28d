// Package models defines the data structures exchanged with a Nextcloud server
package models

import (
	"time"
)

// DAV namespaces understood by the client
const (
	NamespaceDAV       = "DAV:"
	NamespaceOwnCloud  = "http://owncloud.org/ns"
	NamespaceNextCloud = "http://nextcloud.org/ns"
)

// Resource types reported in FileDetail.Type
const (
	TypeFile      = "file"
	TypeDirectory = "directory"
)

// FileDetail describes one entry of a folder listing
type FileDetail struct {
	// Href is the absolute DAV path as returned by the server
	Href         string     `json:"href"`
	Name         string     `json:"name"`
	IsFile       bool       `json:"is_file"`
	IsDirectory  bool       `json:"is_directory"`
	CreationDate *time.Time `json:"creation_date,omitempty"`
	LastModified time.Time  `json:"last_modified"`
	Type         string     `json:"type"`
	Size         *int64     `json:"size,omitempty"`
	ContentType  string     `json:"content_type,omitempty"`
	ETag         string     `json:"etag,omitempty"`

	// ExtraProperties maps the local property name to a string, int64 or bool
	ExtraProperties map[string]interface{} `json:"extra_properties,omitempty"`
}

// FolderDetailProperty asks for an additional property in a folder listing
type FolderDetailProperty struct {
	Namespace      string `json:"namespace"`
	NamespaceShort string `json:"namespace_short"`
	Element        string `json:"element"`
	// NativeType requests integer (or boolean) decoding of the value
	NativeType   bool   `json:"native_type"`
	DefaultValue *int64 `json:"default_value,omitempty"`
}

// NewFileDetailProperty describes an arbitrary namespaced property. An
// optional default value populates the property when the server omits it.
func NewFileDetailProperty(namespace, namespaceShort, element string, nativeType bool, defaultValue ...int64) FolderDetailProperty {
	p := FolderDetailProperty{
		Namespace:      namespace,
		NamespaceShort: namespaceShort,
		Element:        element,
		NativeType:     nativeType,
	}
	if len(defaultValue) > 0 {
		v := defaultValue[0]
		p.DefaultValue = &v
	}
	return p
}

// OwnCloudProperty describes a property in the oc: namespace
func OwnCloudProperty(element string, nativeType bool, defaultValue ...int64) FolderDetailProperty {
	return NewFileDetailProperty(NamespaceOwnCloud, "oc", element, nativeType, defaultValue...)
}

// NextCloudProperty describes a property in the nc: namespace
func NextCloudProperty(element string, nativeType bool, defaultValue ...int64) FolderDetailProperty {
	return NewFileDetailProperty(NamespaceNextCloud, "nc", element, nativeType, defaultValue...)
}

// DAVProperty describes a property in the DAV: namespace
func DAVProperty(element string, nativeType bool) FolderDetailProperty {
	return NewFileDetailProperty(NamespaceDAV, "d", element, nativeType)
}

// FolderProperties is the result of a depth-0 property query, keyed by the
// element name of each requested property.
type FolderProperties map[string]interface{}

// PropertyValue is a property to write with PROPPATCH
type PropertyValue struct {
	Namespace      string `json:"namespace"`
	NamespaceShort string `json:"namespace_short"`
	Element        string `json:"element"`
	Value          string `json:"value"`
}
