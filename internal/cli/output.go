package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// render prints v as JSON or YAML when requested, otherwise as the table
// drawn by table
func render(cmd *cobra.Command, v interface{}, table func(w *tabwriter.Writer)) error {
	out := cmd.OutOrStdout()

	switch format := strings.ToLower(viper.GetString("output")); format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "", "table":
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// done prints a confirmation unless machine readable output was requested
func done(cmd *cobra.Command, format string, args ...interface{}) {
	switch strings.ToLower(viper.GetString("output")) {
	case "json", "yaml":
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ "+format+"\n", args...)
}

func size(n *int64) string {
	if n == nil {
		return "-"
	}
	return humanize.IBytes(uint64(*n))
}

func when(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func writeRow(w io.Writer, cols ...string) {
	fmt.Fprintln(w, strings.Join(cols, "\t"))
}
