package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sesh/internal/config"
	"github.com/sesh/internal/health"
	"github.com/sesh/internal/runner"
	"github.com/sesh/pkg/session"
)

// Latencies are recorded in microseconds up to one minute.
const (
	minLatency = 1
	maxLatency = int64(time.Minute / time.Microsecond)
)

// Job is a single scenario request to send.
type Job struct {
	Request config.Request
}

// Pool runs jobs on a fixed set of workers sharing one session.
type Pool struct {
	cfg     config.Load
	runner  *runner.Runner
	metrics *health.Metrics
	logger  *zap.Logger
	limiter *rate.Limiter
	jobs    chan Job
	wg      sync.WaitGroup
	active  int64
	cancel  context.CancelFunc
	mu      sync.RWMutex

	rpsCount int64
	stats    *stats
	jitter   *jitter
	closed   sync.Once
}

// NewPool creates a new worker pool. metrics may be nil.
func NewPool(cfg config.Load, r *runner.Runner, metrics *health.Metrics, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		cfg:     cfg,
		runner:  r,
		metrics: metrics,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), 1),
		jobs:    make(chan Job, cfg.QueueSize),
		stats:   newStats(),
	}
	if cfg.Jitter > 0 {
		p.jitter = newJitter(cfg.Jitter, time.Now().UnixNano())
	}
	p.SetRate(cfg.RPS)
	return p
}

// Start launches the worker pool.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.stats.start = time.Now()

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}

	go p.measureRPS(ctx)

	p.logger.Info("workers started", zap.Int("workers", p.cfg.Workers), zap.Int("queue_size", p.cfg.QueueSize))
}

func (p *Pool) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.processJob(ctx, job)
		}
	}
}

func (p *Pool) processJob(ctx context.Context, job Job) {
	if err := p.limiter.Wait(ctx); err != nil {
		return // Context cancelled
	}

	atomic.AddInt64(&p.active, 1)
	p.withMetrics(func(m *health.Metrics) {
		m.IncRequestsInFlight()
		m.SetActiveWorkers(int(atomic.LoadInt64(&p.active)))
	})
	defer func() {
		atomic.AddInt64(&p.active, -1)
		p.withMetrics(func(m *health.Metrics) { m.DecRequestsInFlight() })
	}()

	res := p.runner.Step(ctx, job.Request)
	if res.Err != nil && ctx.Err() != nil {
		return // Cut short by shutdown
	}
	p.stats.record(res)
	atomic.AddInt64(&p.rpsCount, 1)
}

func (p *Pool) measureRPS(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.jitter != nil {
				p.SetRate(p.cfg.RPS * p.jitter.multiplier())
			}
			count := atomic.SwapInt64(&p.rpsCount, 0)
			p.withMetrics(func(m *health.Metrics) {
				m.SetCurrentRPS(float64(count))
				m.SetQueuedRequests(len(p.jobs))
			})
		}
	}
}

func (p *Pool) withMetrics(fn func(*health.Metrics)) {
	if p.metrics != nil {
		fn(p.metrics)
	}
}

// Submit adds a job to the queue. It reports false when the queue is full.
func (p *Pool) Submit(job Job) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

// SetRate updates the rate limiter.
func (p *Pool) SetRate(rps float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.limiter.SetLimit(rate.Limit(rps))
	p.limiter.SetBurst(int(rps / 10)) // Burst of 10% of the rate
	if p.limiter.Burst() < 1 {
		p.limiter.SetBurst(1)
	}

	p.withMetrics(func(m *health.Metrics) { m.SetTargetRPS(rps) })
}

// Active returns the number of workers currently sending a request.
func (p *Pool) Active() int {
	return int(atomic.LoadInt64(&p.active))
}

// QueueSize returns the current queue length.
func (p *Pool) QueueSize() int {
	return len(p.jobs)
}

// Wait closes the queue and blocks until every queued job has run.
func (p *Pool) Wait() {
	p.closed.Do(func() { close(p.jobs) })
	p.wg.Wait()
	if p.cancel != nil {
		p.cancel()
	}
}

// Stop cancels in-flight work, drops queued jobs and waits for the
// workers to exit.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.closed.Do(func() { close(p.jobs) })
	p.wg.Wait()

	p.logger.Info("all workers stopped")
}

// Report summarizes everything the pool has run so far.
func (p *Pool) Report() Report {
	return p.stats.report()
}

// Report is a latency and outcome summary of a load run.
type Report struct {
	Total    int64
	Failed   int64
	Statuses map[int]int64
	Errors   map[string]int64
	Duration time.Duration
	RPS      float64
	Mean     time.Duration
	P50      time.Duration
	P90      time.Duration
	P99      time.Duration
	Max      time.Duration
}

type stats struct {
	mu       sync.Mutex
	start    time.Time
	hist     *hdrhistogram.Histogram
	total    int64
	failed   int64
	statuses map[int]int64
	errors   map[string]int64
}

func newStats() *stats {
	return &stats{
		start:    time.Now(),
		hist:     hdrhistogram.New(minLatency, maxLatency, 3),
		statuses: make(map[int]int64),
		errors:   make(map[string]int64),
	}
}

func (s *stats) record(res runner.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	us := res.Elapsed.Microseconds()
	if us < minLatency {
		us = minLatency
	}
	if us > maxLatency {
		us = maxLatency
	}
	_ = s.hist.RecordValue(us)

	if res.Response != nil {
		s.statuses[int(res.Response.Status)]++
	}
	if res.Err != nil {
		s.failed++
		s.errors[errorLabel(res.Err)]++
	}
}

func errorLabel(err error) string {
	if kind, ok := session.KindOf(err); ok {
		return kind.String()
	}
	if errors.Is(err, runner.ErrUnexpectedStatus) {
		return "UnexpectedStatus"
	}
	return "Other"
}

func (s *stats) report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Report{
		Total:    s.total,
		Failed:   s.failed,
		Statuses: make(map[int]int64, len(s.statuses)),
		Errors:   make(map[string]int64, len(s.errors)),
		Duration: time.Since(s.start),
	}
	for k, v := range s.statuses {
		r.Statuses[k] = v
	}
	for k, v := range s.errors {
		r.Errors[k] = v
	}
	if r.Duration > 0 {
		r.RPS = float64(s.total) / r.Duration.Seconds()
	}
	if s.total > 0 {
		r.Mean = time.Duration(s.hist.Mean()) * time.Microsecond
		r.P50 = time.Duration(s.hist.ValueAtQuantile(50)) * time.Microsecond
		r.P90 = time.Duration(s.hist.ValueAtQuantile(90)) * time.Microsecond
		r.P99 = time.Duration(s.hist.ValueAtQuantile(99)) * time.Microsecond
		r.Max = time.Duration(s.hist.Max()) * time.Microsecond
	}
	return r
}
