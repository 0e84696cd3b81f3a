package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sesh/internal/runner"
	"github.com/sesh/internal/tui"
	"github.com/sesh/internal/worker"
)

type loadOptions struct {
	configPath string
	workers    int
	rps        float64
	total      int
	duration   time.Duration
	seed       int64
}

func newLoadCmd() *cobra.Command {
	o := &loadOptions{}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Replay a scenario under load",
		Long: `Send the requests of a scenario from a pool of workers sharing one
session. Requests are picked at random by weight and rate limited. A
latency report is printed when the run ends.

Examples:
  sesh load --config scenario.yaml
  sesh load --config scenario.yaml --rps 200 --duration 1m`,
		Args: cobra.NoArgs,
		RunE: o.run,
	}

	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "sesh.yaml", "Path to scenario file")
	f.IntVarP(&o.workers, "workers", "w", 0, "Override load.workers")
	f.Float64Var(&o.rps, "rps", 0, "Override load.rps")
	f.IntVarP(&o.total, "total", "n", 0, "Override load.total")
	f.DurationVar(&o.duration, "duration", 0, "Override load.duration")
	f.Int64Var(&o.seed, "seed", 0, "Seed for weighted selection (default: current time)")
	return cmd
}

func (o *loadOptions) run(cmd *cobra.Command, args []string) error {
	s, err := loadScenario(o.configPath)
	if err != nil {
		return err
	}
	defer s.close()

	load := s.cfg.Load
	if o.workers > 0 {
		load.Workers = o.workers
		if load.QueueSize < load.Workers {
			load.QueueSize = load.Workers * 100
		}
	}
	if o.rps > 0 {
		load.RPS = o.rps
	}
	if o.total > 0 {
		load.Total = o.total
	}
	if o.duration > 0 {
		load.Duration = o.duration
	}
	seed := o.seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	s.start(ctx)

	out := cmd.OutOrStdout()
	theme := themeFor(out)
	fmt.Fprintf(out, "%s %d requests, %d workers, %.0f rps\n",
		theme.Render(tui.HighlightStyle, "load"), len(s.cfg.Requests), load.Workers, load.RPS)

	r := runner.New(s.session, s.metrics, s.logger)
	pool := worker.NewPool(load, r, s.metrics, s.logger)
	picker := runner.NewPicker(s.cfg.Requests, seed)

	report := worker.Generate(ctx, pool, picker, load.Total, load.Duration)
	s.logger.Info("load finished",
		zap.Int64("total", report.Total),
		zap.Int64("failed", report.Failed),
		zap.Duration("p99", report.P99))

	theme.Report(out, report)
	s.summary(out, theme)
	return nil
}
