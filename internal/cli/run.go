package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sesh/internal/runner"
)

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a scenario file step by step",
		Long: `Run every request of a scenario in order on one session, so cookies
set by one step are sent by the next. The run stops at the first failing
step.

Example:
  sesh run --config scenario.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadScenario(configPath)
			if err != nil {
				return err
			}
			defer s.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			s.start(ctx)

			out := cmd.OutOrStdout()
			theme := themeFor(out)

			r := runner.New(s.session, s.metrics, s.logger)
			err = r.Run(ctx, s.cfg.Requests, func(res runner.Result) {
				theme.Step(out, res)
			})
			s.summary(out, theme)
			if err != nil {
				return fmt.Errorf("scenario failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "sesh.yaml", "Path to scenario file")
	return cmd
}
