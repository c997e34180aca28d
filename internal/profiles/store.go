// Package profiles persists named Nextcloud connection profiles for the
// command line in a BoltDB file.
package profiles

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pulsepoint/nextcloud/pkg/errors"
	"github.com/pulsepoint/nextcloud/pkg/logger"
	"github.com/pulsepoint/nextcloud/pkg/models"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// Buckets
const (
	// BucketProfiles stores one JSON profile per name
	BucketProfiles = "profiles"

	// BucketMeta stores store-wide settings such as the active profile
	BucketMeta = "meta"
)

const keyActive = "active"

// Profile is a saved server URL and credential
type Profile struct {
	Name      string    `json:"name" yaml:"name"`
	URL       string    `json:"url" yaml:"url"`
	Username  string    `json:"username" yaml:"username"`
	Password  string    `json:"password" yaml:"-"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Options converts the profile into client connection options
func (p *Profile) Options() models.ConnectionOptions {
	return models.ConnectionOptions{
		URL:      p.URL,
		Username: p.Username,
		Password: p.Password,
	}
}

func (p *Profile) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.NewValidationError("profile name is required", nil)
	}
	if strings.ContainsAny(p.Name, "/\\") {
		return errors.NewValidationError(fmt.Sprintf("profile name %q must not contain slashes", p.Name), nil)
	}
	u, err := url.Parse(p.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.NewValidationError(fmt.Sprintf("profile url %q must be absolute", p.URL), err)
	}
	if p.Username == "" {
		return errors.NewValidationError("profile username is required", nil)
	}
	return nil
}

// Options configures the store file
type Options struct {
	Path     string        `json:"path"`
	FileMode uint32        `json:"file_mode"`
	Timeout  time.Duration `json:"timeout"`
	ReadOnly bool          `json:"read_only"`
}

// DefaultOptions returns options for ~/.ncctl/profiles.db
func DefaultOptions() *Options {
	path := filepath.Join(".ncctl", "profiles.db")
	if home, err := os.UserHomeDir(); err == nil {
		path = filepath.Join(home, path)
	}
	return &Options{
		Path:     path,
		FileMode: 0600,
		Timeout:  1 * time.Second,
	}
}

// Store manages the profile database
type Store struct {
	db      *bolt.DB
	path    string
	logger  *zap.Logger
	mu      sync.RWMutex
	isOpen  bool
	options *Options
}

// NewStore creates a store; call Open before use
func NewStore(options *Options) *Store {
	if options == nil {
		options = DefaultOptions()
	}
	return &Store{
		path:    options.Path,
		logger:  logger.Named("profiles"),
		options: options,
	}
}

// Open opens the database, creating the file and its buckets if needed
func (s *Store) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isOpen {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create profile directory: %w", err)
	}

	db, err := bolt.Open(s.path, os.FileMode(s.options.FileMode), &bolt.Options{
		Timeout:  s.options.Timeout,
		ReadOnly: s.options.ReadOnly,
	})
	if err != nil {
		return fmt.Errorf("failed to open profile store: %w", err)
	}
	s.db = db

	if !s.options.ReadOnly {
		if err := s.initBuckets(); err != nil {
			s.db.Close()
			return fmt.Errorf("failed to initialize buckets: %w", err)
		}
	}

	s.isOpen = true
	s.logger.Debug("Profile store opened", zap.String("path", s.path))
	return nil
}

// Close closes the database
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isOpen {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close profile store: %w", err)
	}
	s.isOpen = false
	return nil
}

// IsOpen reports whether Open succeeded and Close was not called since
func (s *Store) IsOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOpen
}

func (s *Store) initBuckets() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range []string{BucketProfiles, BucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(bucket)); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
}

func (s *Store) transaction(writable bool, fn func(*bolt.Tx) error) error {
	if !s.IsOpen() {
		return fmt.Errorf("profile store is not open")
	}
	if writable {
		return s.db.Update(fn)
	}
	return s.db.View(fn)
}

// Put creates or replaces a profile
func (s *Store) Put(p Profile) error {
	if err := p.validate(); err != nil {
		return err
	}
	p.URL = strings.TrimSuffix(p.URL, "/")

	now := time.Now().UTC()
	err := s.transaction(true, func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketProfiles))
		if existing := b.Get([]byte(p.Name)); existing != nil {
			var old Profile
			if err := json.Unmarshal(existing, &old); err == nil {
				p.CreatedAt = old.CreatedAt
			}
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		p.UpdatedAt = now

		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal profile: %w", err)
		}
		return b.Put([]byte(p.Name), data)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Saved profile", zap.String("name", p.Name), zap.String("url", p.URL))
	return nil
}

// Get returns a profile by name
func (s *Store) Get(name string) (*Profile, error) {
	var p Profile
	err := s.transaction(false, func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(BucketProfiles)).Get([]byte(name))
		if data == nil {
			return errors.NewNotFoundError("profile " + name)
		}
		return json.Unmarshal(data, &p)
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns every profile ordered by name
func (s *Store) List() ([]Profile, error) {
	var out []Profile
	err := s.transaction(false, func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketProfiles)).ForEach(func(k, v []byte) error {
			var p Profile
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("corrupt profile %s: %w", k, err)
			}
			out = append(out, p)
			return nil
		})
	})
	return out, err
}

// Delete removes a profile; deleting the active one leaves no profile
// active
func (s *Store) Delete(name string) error {
	return s.transaction(true, func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketProfiles))
		if b.Get([]byte(name)) == nil {
			return errors.NewNotFoundError("profile " + name)
		}
		if err := b.Delete([]byte(name)); err != nil {
			return err
		}

		meta := tx.Bucket([]byte(BucketMeta))
		if string(meta.Get([]byte(keyActive))) == name {
			return meta.Delete([]byte(keyActive))
		}
		return nil
	})
}

// SetActive marks an existing profile as the one commands use by default
func (s *Store) SetActive(name string) error {
	return s.transaction(true, func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(BucketProfiles)).Get([]byte(name)) == nil {
			return errors.NewNotFoundError("profile " + name)
		}
		return tx.Bucket([]byte(BucketMeta)).Put([]byte(keyActive), []byte(name))
	})
}

// ActiveName returns the name of the active profile, empty when none is set
func (s *Store) ActiveName() (string, error) {
	var name string
	err := s.transaction(false, func(tx *bolt.Tx) error {
		name = string(tx.Bucket([]byte(BucketMeta)).Get([]byte(keyActive)))
		return nil
	})
	return name, err
}

// Active returns the active profile
func (s *Store) Active() (*Profile, error) {
	name, err := s.ActiveName()
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.NewNotFoundError("active profile")
	}
	return s.Get(name)
}
