package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pulsepoint/nextcloud/internal/profiles"
	"github.com/pulsepoint/nextcloud/pkg/logger"
	"github.com/pulsepoint/nextcloud/pkg/nextcloud"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage saved server connections",
	Long: `Profiles store a server URL, user name and password in
$HOME/.ncctl/profiles.db. The active profile is used when no --url is given.`,
}

var profileAddCmd = &cobra.Command{
	Use:   "add <name> --url <url> --username <user>",
	Short: "Save a connection profile; the password is prompted for when not given",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileAdd,
}

var profileLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfileLs,
}

var profileUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a profile the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openProfiles()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.SetActive(args[0]); err != nil {
			return err
		}
		done(cmd, "Active profile is now %s", args[0])
		return nil
	},
}

var profileRmCmd = &cobra.Command{
	Use:   "rm <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openProfiles()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(args[0]); err != nil {
			return err
		}
		done(cmd, "Deleted profile %s", args[0])
		return nil
	},
}

func init() {
	profileAddCmd.Flags().Bool("activate", false, "make the new profile the active one")
	profileAddCmd.Flags().Bool("check", true, "verify the credential against the server first")

	profileCmd.AddCommand(profileAddCmd)
	profileCmd.AddCommand(profileLsCmd)
	profileCmd.AddCommand(profileUseCmd)
	profileCmd.AddCommand(profileRmCmd)
}

func runProfileAdd(cmd *cobra.Command, args []string) error {
	p := profiles.Profile{
		Name:     args[0],
		URL:      viper.GetString("url"),
		Username: viper.GetString("username"),
		Password: viper.GetString("password"),
	}
	if p.URL == "" || p.Username == "" {
		return fmt.Errorf("--url and --username are required")
	}

	if p.Password == "" {
		pw, err := readPassword(cmd, fmt.Sprintf("Password for %s: ", p.Username))
		if err != nil {
			return err
		}
		p.Password = pw
	}

	if check, _ := cmd.Flags().GetBool("check"); check {
		opts := p.Options()
		opts.Timeout = viper.GetDuration("timeout")
		opts.Logger = logger.Named("ncctl")
		nc, err := nextcloud.New(opts)
		if err != nil {
			return err
		}
		if !nc.CheckConnectivity(cmd.Context()) {
			return fmt.Errorf("cannot reach %s as %s: check the url and credential, or pass --check=false", p.URL, p.Username)
		}
	}

	store, err := openProfiles()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Put(p); err != nil {
		return err
	}

	activate, _ := cmd.Flags().GetBool("activate")
	if !activate {
		// the first profile becomes active on its own
		active, err := store.ActiveName()
		if err != nil {
			return err
		}
		activate = active == ""
	}
	if activate {
		if err := store.SetActive(p.Name); err != nil {
			return err
		}
	}

	logger.Get().Debug("Saved profile", zap.String("profile", p.Name), zap.Bool("active", activate))
	done(cmd, "Saved profile %s (%s@%s)", p.Name, p.Username, p.URL)
	return nil
}

// readPassword reads a password without echo from a terminal, or the first
// line of a piped stdin
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runProfileLs(cmd *cobra.Command, args []string) error {
	store, err := openProfiles()
	if err != nil {
		return err
	}
	defer store.Close()

	list, err := store.List()
	if err != nil {
		return err
	}
	active, err := store.ActiveName()
	if err != nil {
		return err
	}

	for i := range list {
		list[i].Password = ""
	}

	return render(cmd, list, func(w *tabwriter.Writer) {
		writeRow(w, "", "NAME", "URL", "USER", "UPDATED")
		for _, p := range list {
			mark := ""
			if p.Name == active {
				mark = "*"
			}
			writeRow(w, mark, p.Name, p.URL, p.Username, when(p.UpdatedAt))
		}
	})
}
