package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/pulsepoint/nextcloud/pkg/models"
	"github.com/spf13/cobra"
)

var propsCmd = &cobra.Command{
	Use:   "props",
	Short: "Read and write WebDAV properties",
	Long: `Read and write WebDAV properties of a file or folder.

Property names use Clark notation ({namespace}name) or one of the prefixes
d: (DAV:), oc: (ownCloud) and nc: (Nextcloud), e.g. oc:favorite.`,
}

var propsGetCmd = &cobra.Command{
	Use:   "get <path> [name]...",
	Short: "Show properties; without names every property the server offers",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPropsGet,
}

var propsSetCmd = &cobra.Command{
	Use:   "set <path> <name=value>...",
	Short: "Set properties",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runPropsSet,
}

func init() {
	propsCmd.AddCommand(propsGetCmd)
	propsCmd.AddCommand(propsSetCmd)
}

var namespacePrefixes = map[string]string{
	"d":  models.NamespaceDAV,
	"oc": models.NamespaceOwnCloud,
	"nc": models.NamespaceNextCloud,
}

// qualify turns a prefixed property name into Clark notation
func qualify(name string) (string, error) {
	if strings.HasPrefix(name, "{") {
		if !strings.Contains(name, "}") {
			return "", fmt.Errorf("invalid property name %q", name)
		}
		return name, nil
	}
	prefix, local, found := strings.Cut(name, ":")
	if !found {
		return models.QualifiedName(models.NamespaceDAV, name), nil
	}
	space, ok := namespacePrefixes[prefix]
	if !ok || local == "" {
		return "", fmt.Errorf("unknown namespace prefix in %q", name)
	}
	return models.QualifiedName(space, local), nil
}

func runPropsGet(cmd *cobra.Command, args []string) error {
	names := make([]string, 0, len(args)-1)
	for _, a := range args[1:] {
		n, err := qualify(a)
		if err != nil {
			return err
		}
		names = append(names, n)
	}

	nc, err := newClient()
	if err != nil {
		return err
	}

	fp, err := nc.Properties().GetFileProps(cmd.Context(), args[0], names...)
	if err != nil {
		return err
	}

	return render(cmd, fp, func(w *tabwriter.Writer) {
		for _, n := range fp.Names() {
			v, _ := fp.Get(n)
			writeRow(w, n, v)
		}
	})
}

func runPropsSet(cmd *cobra.Command, args []string) error {
	fp := models.NewFileProps(args[0])
	for _, a := range args[1:] {
		name, value, found := strings.Cut(a, "=")
		if !found {
			return fmt.Errorf("expected name=value, got %q", a)
		}
		qualified, err := qualify(name)
		if err != nil {
			return err
		}
		fp.Set(qualified, value)
	}

	nc, err := newClient()
	if err != nil {
		return err
	}

	if err := nc.Properties().SaveProps(cmd.Context(), fp); err != nil {
		return err
	}
	done(cmd, "Saved %d propert(ies) on %s", len(fp.Props), args[0])
	return nil
}
