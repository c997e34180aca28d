package models

import (
	"time"
)

// ShareType identifies the kind of principal a share is granted to
type ShareType int

// Share types accepted by the files_sharing API
const (
	ShareTypeUser       ShareType = 0
	ShareTypeGroup      ShareType = 1
	ShareTypePublicLink ShareType = 3
	ShareTypeEmail      ShareType = 4
	ShareTypeFederated  ShareType = 6
	ShareTypeCircle     ShareType = 7
	ShareTypeTalk       ShareType = 10
)

// String returns the name used by the command line for the share type
func (t ShareType) String() string {
	switch t {
	case ShareTypeUser:
		return "user"
	case ShareTypeGroup:
		return "group"
	case ShareTypePublicLink:
		return "link"
	case ShareTypeEmail:
		return "email"
	case ShareTypeFederated:
		return "federated"
	case ShareTypeCircle:
		return "circle"
	case ShareTypeTalk:
		return "talk"
	}
	return "unknown"
}

// SharePermission is a bitmask of share permissions
type SharePermission int

// Share permission bits
const (
	PermissionRead   SharePermission = 1
	PermissionUpdate SharePermission = 2
	PermissionCreate SharePermission = 4
	PermissionDelete SharePermission = 8
	PermissionShare  SharePermission = 16
	PermissionAll    SharePermission = 31
)

// Has reports whether every bit of p is set
func (s SharePermission) Has(p SharePermission) bool {
	return s&p == p
}

// OcsShare is a share as returned by the files_sharing API
type OcsShare struct {
	ID                   string          `json:"id" mapstructure:"id"`
	ShareType            ShareType       `json:"share_type" mapstructure:"share_type"`
	UIDOwner             string          `json:"uid_owner" mapstructure:"uid_owner"`
	DisplayNameOwner     string          `json:"displayname_owner" mapstructure:"displayname_owner"`
	Permissions          SharePermission `json:"permissions" mapstructure:"permissions"`
	STime                int64           `json:"stime" mapstructure:"stime"`
	UIDFileOwner         string          `json:"uid_file_owner" mapstructure:"uid_file_owner"`
	DisplayNameFileOwner string          `json:"displayname_file_owner,omitempty" mapstructure:"displayname_file_owner"`
	Path                 string          `json:"path" mapstructure:"path"`
	MimeType             string          `json:"mimetype" mapstructure:"mimetype"`
	ItemType             string          `json:"item_type" mapstructure:"item_type"`
	ItemSource           int64           `json:"item_source" mapstructure:"item_source"`
	FileSource           int64           `json:"file_source" mapstructure:"file_source"`
	FileParent           int64           `json:"file_parent" mapstructure:"file_parent"`
	FileTarget           string          `json:"file_target" mapstructure:"file_target"`
	ShareWith            string          `json:"share_with,omitempty" mapstructure:"share_with"`
	ShareWithDisplayName string          `json:"share_with_displayname,omitempty" mapstructure:"share_with_displayname"`
	Token                string          `json:"token,omitempty" mapstructure:"token"`
	URL                  string          `json:"url,omitempty" mapstructure:"url"`
	Expiration           string          `json:"expiration,omitempty" mapstructure:"expiration"`
	Password             string          `json:"password,omitempty" mapstructure:"password"`
	Note                 string          `json:"note,omitempty" mapstructure:"note"`
	Label                string          `json:"label,omitempty" mapstructure:"label"`
	HideDownload         bool            `json:"hide_download,omitempty" mapstructure:"hide_download"`
}

// OcsQuota is the storage quota block of a user record
type OcsQuota struct {
	Free     int64   `json:"free" mapstructure:"free"`
	Used     int64   `json:"used" mapstructure:"used"`
	Total    int64   `json:"total" mapstructure:"total"`
	Relative float64 `json:"relative" mapstructure:"relative"`
	Quota    int64   `json:"quota" mapstructure:"quota"`
}

// OcsUser is a user record as returned by cloud/users/<id>
type OcsUser struct {
	ID              string   `json:"id" mapstructure:"id"`
	Enabled         bool     `json:"enabled" mapstructure:"enabled"`
	StorageLocation string   `json:"storageLocation,omitempty" mapstructure:"storageLocation"`
	LastLogin       int64    `json:"lastLogin" mapstructure:"lastLogin"`
	Backend         string   `json:"backend,omitempty" mapstructure:"backend"`
	SubAdmin        []string `json:"subadmin" mapstructure:"subadmin"`
	Quota           OcsQuota `json:"quota" mapstructure:"quota"`
	Email           string   `json:"email,omitempty" mapstructure:"email"`
	DisplayName     string   `json:"displayname" mapstructure:"displayname"`
	Phone           string   `json:"phone,omitempty" mapstructure:"phone"`
	Address         string   `json:"address,omitempty" mapstructure:"address"`
	Website         string   `json:"website,omitempty" mapstructure:"website"`
	Twitter         string   `json:"twitter,omitempty" mapstructure:"twitter"`
	Groups          []string `json:"groups" mapstructure:"groups"`
	Language        string   `json:"language,omitempty" mapstructure:"language"`
	Locale          string   `json:"locale,omitempty" mapstructure:"locale"`
}

// OcsNewUser describes a user to create
type OcsNewUser struct {
	UserID      string   `json:"userid"`
	Password    string   `json:"password,omitempty"`
	DisplayName string   `json:"displayName,omitempty"`
	Email       string   `json:"email,omitempty"`
	Groups      []string `json:"groups,omitempty"`
	SubAdmin    []string `json:"subadmin,omitempty"`
	Quota       string   `json:"quota,omitempty"`
	Language    string   `json:"language,omitempty"`
}

// OcsEditUserField names a user attribute accepted by the edit endpoint
type OcsEditUserField string

// Editable user fields
const (
	UserFieldDisplayName OcsEditUserField = "displayname"
	UserFieldEmail       OcsEditUserField = "email"
	UserFieldPassword    OcsEditUserField = "password"
	UserFieldQuota       OcsEditUserField = "quota"
	UserFieldPhone       OcsEditUserField = "phone"
	UserFieldAddress     OcsEditUserField = "address"
	UserFieldWebsite     OcsEditUserField = "website"
	UserFieldTwitter     OcsEditUserField = "twitter"
	UserFieldLocale      OcsEditUserField = "locale"
	UserFieldLanguage    OcsEditUserField = "language"
	UserFieldGroups      OcsEditUserField = "groups"
)

// Valid reports whether the field is one the server accepts
func (f OcsEditUserField) Valid() bool {
	switch f {
	case UserFieldDisplayName, UserFieldEmail, UserFieldPassword, UserFieldQuota,
		UserFieldPhone, UserFieldAddress, UserFieldWebsite, UserFieldTwitter,
		UserFieldLocale, UserFieldLanguage, UserFieldGroups:
		return true
	}
	return false
}

// RichParameter is one placeholder value of a rich activity string
type RichParameter struct {
	Type string `json:"type" mapstructure:"type"`
	ID   string `json:"id" mapstructure:"id"`
	Name string `json:"name" mapstructure:"name"`
	Path string `json:"path,omitempty" mapstructure:"path"`
	Link string `json:"link,omitempty" mapstructure:"link"`
}

// RichText is a template with {placeholder} parameters
type RichText struct {
	Template   string                   `json:"template"`
	Parameters map[string]RichParameter `json:"parameters,omitempty"`
}

// OcsActivity is one entry of the activity stream
type OcsActivity struct {
	ActivityID  int64             `json:"activity_id" mapstructure:"activity_id"`
	App         string            `json:"app" mapstructure:"app"`
	Type        string            `json:"type" mapstructure:"type"`
	User        string            `json:"user" mapstructure:"user"`
	Subject     string            `json:"subject" mapstructure:"subject"`
	SubjectRich *RichText         `json:"subject_rich,omitempty" mapstructure:"-"`
	Message     string            `json:"message" mapstructure:"message"`
	MessageRich *RichText         `json:"message_rich,omitempty" mapstructure:"-"`
	ObjectType  string            `json:"object_type" mapstructure:"object_type"`
	ObjectID    int64             `json:"object_id" mapstructure:"object_id"`
	ObjectName  string            `json:"object_name" mapstructure:"object_name"`
	Objects     map[string]string `json:"objects,omitempty" mapstructure:"objects"`
	Link        string            `json:"link,omitempty" mapstructure:"link"`
	Icon        string            `json:"icon,omitempty" mapstructure:"icon"`
	Datetime    time.Time         `json:"datetime" mapstructure:"datetime"`
}

// Activity sort orders
const (
	SortAscending  = "asc"
	SortDescending = "desc"
)
