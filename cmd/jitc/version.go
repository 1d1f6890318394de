package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"jitc/internal/version"
)

// versionOptions selects which metadata `jitc version` shows.
type versionOptions struct {
	format      string
	showHash    bool
	showMessage bool
	showDate    bool
}

func newVersionCmd() *cobra.Command {
	var opts versionOptions
	var full bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show jitc build metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			applyColorFlag(cmd)
			opts.format = strings.ToLower(opts.format)
			if full {
				opts.showHash, opts.showMessage, opts.showDate = true, true, true
			}
			info := version.Collect()
			switch opts.format {
			case "json":
				return renderVersionJSON(cmd.OutOrStdout(), info, opts)
			case "pretty":
				renderVersionPretty(cmd.OutOrStdout(), info, opts)
				return nil
			}
			return fmt.Errorf("unsupported format %q (must be pretty or json)", opts.format)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.format, "format", "pretty", "output format (pretty|json)")
	f.BoolVar(&opts.showHash, "hash", false, "include git commit hash")
	f.BoolVar(&opts.showMessage, "message", false, "include git commit message")
	f.BoolVar(&opts.showDate, "date", false, "include build timestamp")
	f.BoolVar(&full, "full", false, "include all build metadata")
	return cmd
}

// visible drops the fields opts does not ask for and fills the rest.
func (opts versionOptions) visible(info version.Info) version.Info {
	out := version.Info{Version: info.Version}
	if opts.showHash {
		out.GitCommit = orUnknown(info.GitCommit)
	}
	if opts.showMessage {
		out.GitMessage = orUnknown(info.GitMessage)
	}
	if opts.showDate {
		out.BuildDate = orUnknown(info.BuildDate)
	}
	return out
}

func renderVersionPretty(out io.Writer, info version.Info, opts versionOptions) {
	v := opts.visible(info)
	fmt.Fprintf(out, "jitc %s\n", version.Colored(v.Version))
	for _, row := range [][2]string{{"commit", v.GitCommit}, {"message", v.GitMessage}, {"built", v.BuildDate}} {
		if row[1] != "" {
			fmt.Fprintf(out, "%-8s %s\n", row[0]+":", row[1])
		}
	}
}

func renderVersionJSON(out io.Writer, info version.Info, opts versionOptions) error {
	payload := struct {
		Tool string `json:"tool"`
		version.Info
	}{Tool: "jitc", Info: opts.visible(info)}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
