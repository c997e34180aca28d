package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage ncctl configuration",
	Long: `View and modify ncctl configuration settings.

Keys are dotted paths, e.g. logging.level or timeout. Every key can also be
set with an NCCTL_ environment variable.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
}

// secretKeys are never printed
var secretKeys = map[string]bool{"password": true}

func configFile() string {
	if f := viper.ConfigFileUsed(); f != "" {
		return f
	}
	return filepath.Join(configDir(), "config.yaml")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	settings := viper.AllSettings()
	for k := range secretKeys {
		if _, ok := settings[k]; ok && settings[k] != "" {
			settings[k] = "********"
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "📋 ncctl configuration\n")
	fmt.Fprintf(out, "📁 Config file: %s\n\n", configFile())

	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}
	fmt.Fprint(out, string(yamlData))
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(args[0])
	value := args[1]

	// only keys from the file end up in it, not flag defaults
	fileOnly := viper.New()
	fileOnly.SetConfigFile(configFile())
	if err := fileOnly.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read configuration: %w", err)
	}
	fileOnly.Set(key, value)

	if err := os.MkdirAll(filepath.Dir(configFile()), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := fileOnly.WriteConfigAs(configFile()); err != nil {
		return fmt.Errorf("failed to write configuration: %w", err)
	}
	viper.Set(key, value)

	shown := value
	if secretKeys[key] {
		shown = "********"
	}
	done(cmd, "Configuration updated: %s = %s", key, shown)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	key := strings.ToLower(args[0])
	value := viper.Get(key)

	if value == nil {
		keys := viper.AllKeys()
		sort.Strings(keys)
		return fmt.Errorf("configuration key '%s' not found (known keys: %s)", key, strings.Join(keys, ", "))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%v\n", value)
	return nil
}
