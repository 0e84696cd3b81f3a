package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sesh/pkg/session"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// NewRootCmd builds the sesh command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sesh",
		Short: "HTTP sessions with pooled clients and a persistent cookie jar",
		Long: `sesh sends HTTP requests through a session that keeps cookies between
calls and reuses one transport client per connection configuration.

Get started:
  sesh request GET https://example.com      Send a single request
  sesh run -c scenario.yaml                 Run a scenario step by step
  sesh load -c scenario.yaml                Replay a scenario under load`,
		Version:       versionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		newRequestCmd(),
		newRunCmd(),
		newLoadCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// SetVersion sets the version info
func SetVersion(v, bt string) {
	version = v
	buildTime = bt
	session.SetVersion(v)
}

// SetGitCommit sets the git commit hash
func SetGitCommit(commit string) {
	gitCommit = commit
}

func versionString() string {
	return fmt.Sprintf("%s (built %s, commit %s)", version, buildTime, gitCommit)
}

func newVersionCmd() *cobra.Command {
	var showErrors bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sesh %s\n", versionString())
			fmt.Fprintf(out, "user agent: %s\n", session.DefaultUserAgent())
			if !showErrors {
				return
			}
			fmt.Fprintln(out)
			for _, k := range session.Kinds() {
				if len(k.Parents) == 0 {
					fmt.Fprintln(out, k.Name)
					continue
				}
				fmt.Fprintf(out, "%s < %s\n", k.Name, strings.Join(k.Parents, ", "))
			}
		},
	}
	cmd.Flags().BoolVar(&showErrors, "errors", false, "List error kinds and their parents")
	return cmd
}
