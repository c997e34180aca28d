// Package cli implements the ncctl command line
package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pulsepoint/nextcloud/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile     string
	verboseMode bool
	version     string
	buildDate   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ncctl",
	Short: "ncctl - work with files, shares and users on a Nextcloud server",
	Long: `ncctl talks to a Nextcloud or ownCloud server over WebDAV and OCS.

Files are addressed by their path inside the user's home, e.g. /Documents/a.txt.
The server and credential come from the active profile (see "ncctl profile")
or from the url, username and password settings, flags or NCCTL_* variables.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command; cancelling ctx aborts requests in flight
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, bd string) {
	version = v
	buildDate = bd
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildDate)
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ncctl/config.yaml)")
	flags.BoolVarP(&verboseMode, "verbose", "v", false, "verbose output")
	flags.String("profile", "", "connection profile to use instead of the active one")
	flags.String("url", "", "server URL")
	flags.StringP("username", "u", "", "user name")
	flags.String("password", "", "password or app token")
	flags.Duration("timeout", 60*time.Second, "deadline of each request")
	flags.String("profiles-db", "", "profile database (default is $HOME/.ncctl/profiles.db)")
	flags.StringP("output", "o", "table", "output format: table, json or yaml")

	viper.BindPFlag("verbose", flags.Lookup("verbose"))
	viper.BindPFlag("profile", flags.Lookup("profile"))
	viper.BindPFlag("url", flags.Lookup("url"))
	viper.BindPFlag("username", flags.Lookup("username"))
	viper.BindPFlag("password", flags.Lookup("password"))
	viper.BindPFlag("timeout", flags.Lookup("timeout"))
	viper.BindPFlag("profiles.path", flags.Lookup("profiles-db"))
	viper.BindPFlag("output", flags.Lookup("output"))

	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(cpCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(propsCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(groupCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(configCmd)
}

// configDir returns $HOME/.ncctl
func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ncctl"
	}
	return filepath.Join(home, ".ncctl")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(configDir())
		viper.AddConfigPath("/etc/ncctl/")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("NCCTL")
	viper.AutomaticEnv()

	viper.SetDefault("logging.level", "warn")
	viper.SetDefault("logging.max_size", 50)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 14)

	configErr := viper.ReadInConfig()

	cfg := logger.DefaultConfig()
	cfg.Level = viper.GetString("logging.level")
	cfg.OutputPath = viper.GetString("logging.file")
	cfg.MaxSize = viper.GetInt("logging.max_size")
	cfg.MaxBackups = viper.GetInt("logging.max_backups")
	cfg.MaxAge = viper.GetInt("logging.max_age")
	cfg.EnableJSON = viper.GetBool("logging.json")
	if verboseMode {
		cfg.Level = "debug"
		cfg.Development = true
	}
	if err := logger.Initialize(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
	}

	if configErr == nil {
		logger.Get().Debug("Using config file", zap.String("file", viper.ConfigFileUsed()))
	}
}
