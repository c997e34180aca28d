package cli

import (
	"fmt"
	"strings"

	"github.com/pulsepoint/nextcloud/internal/profiles"
	"github.com/pulsepoint/nextcloud/pkg/errors"
	"github.com/pulsepoint/nextcloud/pkg/logger"
	"github.com/pulsepoint/nextcloud/pkg/models"
	"github.com/pulsepoint/nextcloud/pkg/nextcloud"
	"github.com/spf13/viper"
)

// openProfiles opens the profile database; the caller closes it
func openProfiles() (*profiles.Store, error) {
	opts := profiles.DefaultOptions()
	if p := viper.GetString("profiles.path"); p != "" {
		opts.Path = p
	}
	store := profiles.NewStore(opts)
	if err := store.Open(); err != nil {
		return nil, err
	}
	return store, nil
}

// connectionOptions resolves server and credential. Explicit settings
// (flags, environment, config file) win over the selected profile.
func connectionOptions() (models.ConnectionOptions, error) {
	opts := models.ConnectionOptions{
		URL:      viper.GetString("url"),
		Username: viper.GetString("username"),
		Password: viper.GetString("password"),
		Timeout:  viper.GetDuration("timeout"),
	}
	if opts.URL != "" && opts.Username != "" && opts.Password != "" {
		return opts, nil
	}

	store, err := openProfiles()
	if err != nil {
		return opts, err
	}
	defer store.Close()

	var p *profiles.Profile
	if name := viper.GetString("profile"); name != "" {
		p, err = store.Get(name)
	} else {
		p, err = store.Active()
	}
	if errors.IsNotFound(err) {
		if opts.URL != "" && opts.Username != "" {
			return opts, nil
		}
		return opts, fmt.Errorf(`no server configured: run "ncctl profile add" or pass --url and --username`)
	}
	if err != nil {
		return opts, err
	}

	// a profile's password is only sent to its own server
	if opts.URL != "" && strings.TrimRight(opts.URL, "/") != p.URL {
		if opts.Username == "" {
			return opts, fmt.Errorf("--username is required with --url")
		}
		return opts, nil
	}

	if opts.URL == "" {
		opts.URL = p.URL
	}
	if opts.Username == "" {
		opts.Username = p.Username
	}
	if opts.Password == "" {
		opts.Password = p.Password
	}
	return opts, nil
}

// newClient builds the facade for the resolved connection
func newClient() (*nextcloud.Client, error) {
	opts, err := connectionOptions()
	if err != nil {
		return nil, err
	}
	opts.Logger = logger.Named("ncctl")
	return nextcloud.New(opts)
}
