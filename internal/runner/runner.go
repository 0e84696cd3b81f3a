package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sesh/internal/config"
	"github.com/sesh/internal/filter"
	"github.com/sesh/internal/health"
	"github.com/sesh/pkg/session"
)

// ErrUnexpectedStatus is returned when a step's response status differs
// from its expect_status.
var ErrUnexpectedStatus = errors.New("unexpected status")

// Result is the outcome of one step.
type Result struct {
	Step     string
	Response *session.Response
	// Query holds the rendered JMESPath result when the step has a query.
	Query   []byte
	Elapsed time.Duration
	Err     error
}

// Runner sends scenario requests on one session, so cookies set by one
// step are sent by the next.
type Runner struct {
	sess    *session.Session
	metrics *health.Metrics
	logger  *zap.Logger
}

// New creates a Runner. metrics and logger may be nil.
func New(sess *session.Session, metrics *health.Metrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{sess: sess, metrics: metrics, logger: logger}
}

// Step sends a single scenario request and checks its expectations.
func (r *Runner) Step(ctx context.Context, req config.Request) Result {
	start := time.Now()
	res := Result{Step: req.Name}
	res.Err = r.step(ctx, req, &res)
	res.Elapsed = time.Since(start)
	if r.metrics != nil {
		r.metrics.RecordStep(req.Name, res.Err == nil)
	}
	return res
}

func (r *Runner) step(ctx context.Context, req config.Request, res *Result) error {
	p, err := Params(req)
	if err != nil {
		return err
	}

	resp, err := r.sess.Do(ctx, p)
	if err != nil {
		return err
	}
	res.Response = resp

	if req.Stream {
		if err := resp.Load(); err != nil {
			return err
		}
	}

	if req.ExpectStatus != 0 && int(resp.Status) != req.ExpectStatus {
		return fmt.Errorf("%w: expected %d, got %d", ErrUnexpectedStatus, req.ExpectStatus, resp.Status)
	}

	if req.Query != "" {
		out, err := filter.Apply(resp.Content(), req.Query)
		if err != nil {
			return err
		}
		res.Query = out
	}
	return nil
}

// Run executes steps in order and stops at the first failure. onResult is
// called after every step, including the failing one.
func (r *Runner) Run(ctx context.Context, steps []config.Request, onResult func(Result)) error {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		res := r.Step(ctx, step)
		if onResult != nil {
			onResult(res)
		}
		if res.Err != nil {
			r.logger.Warn("step failed", zap.String("step", step.Name), zap.Error(res.Err))
			return fmt.Errorf("step %s: %w", step.Name, res.Err)
		}
		r.logger.Debug("step done",
			zap.String("step", step.Name),
			zap.Uint16("status", res.Response.Status),
			zap.Duration("elapsed", res.Elapsed))
	}
	return nil
}
