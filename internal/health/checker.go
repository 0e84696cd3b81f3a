package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sesh/internal/config"
	"github.com/sesh/pkg/session"
)

// Checker periodically probes the scenario's target and tracks whether it
// is answering. Probes go through the scenario session, so they see the
// same cookies and transport settings as the requests themselves.
type Checker struct {
	cfg     config.Health
	sess    *session.Session
	metrics *Metrics
	logger  *zap.Logger

	mu      sync.RWMutex
	healthy bool
	lastErr error
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewChecker creates a new health checker. metrics may be nil.
func NewChecker(cfg config.Health, sess *session.Session, metrics *Metrics, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		cfg:     cfg,
		sess:    sess,
		metrics: metrics,
		logger:  logger,
	}
}

// Start probes once and then keeps probing every interval until Stop.
func (c *Checker) Start(ctx context.Context) {
	if !c.cfg.Enabled {
		return
	}

	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})

	c.Check(ctx)
	go c.run(ctx)
}

func (c *Checker) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check probes the target once and records the outcome.
func (c *Checker) Check(ctx context.Context) bool {
	opts := []session.Option{}
	if c.cfg.Timeout > 0 {
		opts = append(opts, session.WithTimeout(session.SingleDeadline{Seconds: c.cfg.Timeout.Seconds()}))
	}

	resp, err := c.sess.Get(ctx, c.cfg.URL, opts...)
	healthy := err == nil && resp.Status >= 200 && resp.Status < 400
	if err == nil && !healthy {
		err = resp.RaiseForStatus()
	}

	c.mu.Lock()
	prev := c.healthy
	c.healthy = healthy
	c.lastErr = err
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.SetTargetHealth(c.cfg.URL, healthy)
	}

	if prev != healthy {
		if healthy {
			c.logger.Info("target is now healthy", zap.String("url", c.cfg.URL))
		} else {
			c.logger.Warn("target is now unhealthy", zap.String("url", c.cfg.URL), zap.Error(err))
		}
	}
	return healthy
}

// Healthy reports the outcome of the last probe. A disabled checker is
// always healthy.
func (c *Checker) Healthy() bool {
	if !c.cfg.Enabled {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

// LastError returns the error of the last failed probe.
func (c *Checker) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Stop stops the health checker.
func (c *Checker) Stop() {
	if c.cancel != nil {
		c.cancel()
		<-c.done
	}
}

// Server serves Prometheus metrics and health endpoints.
type Server struct {
	server *http.Server
	logger *zap.Logger
}

// NewServer creates a new metrics/health HTTP server. ready backs /readyz;
// nil means always ready.
func NewServer(cfg config.Metrics, gatherer prometheus.Gatherer, ready func() bool, logger *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()

	// Prometheus metrics endpoint
	mux.Handle(cfg.Path, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Liveness probe
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Readiness probe
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil && !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("target unhealthy"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return &Server{
		server: &http.Server{
			Addr:    cfg.Address,
			Handler: mux,
		},
		logger: logger,
	}
}

// Handler exposes the server's routes.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving metrics. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting metrics server", zap.String("addr", s.server.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
