package app

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type buildInfo struct {
	Version string
	Commit  string
	Date    string
}

var build = buildInfo{Version: "dev", Commit: "none", Date: "unknown"}

// SetBuildInfo records the values injected by the linker into main. Empty
// values keep the defaults.
func SetBuildInfo(version, commit, date string) {
	for _, f := range []struct {
		dst *string
		v   string
	}{{&build.Version, version}, {&build.Commit, commit}, {&build.Date, date}} {
		if v := strings.TrimSpace(f.v); v != "" {
			*f.dst = v
		}
	}
}

func BuildVersionString() string {
	return fmt.Sprintf("%s (%s) %s", build.Version, build.Commit, build.Date)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "unical %s\n", BuildVersionString())
		},
	}
}

func newCompletionCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:   "completion <bash|zsh|fish|powershell>",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shell := strings.ToLower(args[0])
			switch shell {
			case "bash":
				return root.GenBashCompletion(cmd.OutOrStdout())
			case "zsh":
				return root.GenZshCompletion(cmd.OutOrStdout())
			case "fish":
				return root.GenFishCompletion(cmd.OutOrStdout(), true)
			case "powershell":
				return root.GenPowerShellCompletion(cmd.OutOrStdout())
			default:
				return Wrap(exitUsage, fmt.Errorf("unsupported shell: %s", shell))
			}
		},
	}
}
