package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sesh/internal/config"
	"github.com/sesh/internal/health"
	"github.com/sesh/internal/logging"
	"github.com/sesh/internal/tui"
	"github.com/sesh/pkg/protocol"
	"github.com/sesh/pkg/session"
)

func themeFor(w io.Writer) tui.Theme {
	if f, ok := w.(*os.File); ok {
		return tui.Detect(f)
	}
	return tui.Plain()
}

// scenario is everything a scenario command runs on.
type scenario struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *health.Metrics
	session  *session.Session
	checker  *health.Checker
	server   *health.Server
}

// loadScenario reads the scenario file, applies SESH_* overrides and builds
// the shared session.
func loadScenario(path string) (*scenario, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	env.Apply(cfg)

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	metrics := health.NewMetrics(reg)

	sess := session.New(buildSessionOptions(cfg.Session, metrics, logger)...)
	if len(cfg.Session.Cookies) > 0 {
		sess.SetCookies(cfg.Session.Cookies)
	}

	return &scenario{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		metrics:  metrics,
		session:  sess,
		checker:  health.NewChecker(cfg.Health, sess, metrics, logger),
	}, nil
}

func buildSessionOptions(cfg config.Session, metrics *health.Metrics, logger *zap.Logger) []session.SessionOption {
	client := protocol.DefaultClientConfig()
	if cfg.MaxIdleConns > 0 {
		client.MaxIdleConns = cfg.MaxIdleConns
	}
	if cfg.IdleConnTimeout > 0 {
		client.IdleConnTimeout = cfg.IdleConnTimeout
	}
	if cfg.DialTimeout > 0 {
		client.DialTimeout = cfg.DialTimeout
	}
	client.HTTP2 = cfg.HTTP2

	opts := []session.SessionOption{
		session.WithLogger(logger),
		session.WithObserver(metrics),
		session.WithClientConfig(client),
		session.WithDefaultHeaders(cfg.Headers),
	}
	if cfg.UserAgent != "" {
		opts = append(opts, session.WithUserAgent(cfg.UserAgent))
	}
	return opts
}

// start launches the health checker and, when enabled, the metrics server.
func (s *scenario) start(ctx context.Context) {
	s.checker.Start(ctx)

	if !s.cfg.Metrics.Enabled {
		return
	}
	s.server = health.NewServer(s.cfg.Metrics, s.registry, s.checker.Healthy, s.logger)
	go func() {
		if err := s.server.Start(); err != nil {
			s.logger.Error("metrics server error", zap.Error(err))
		}
	}()
}

func (s *scenario) close() {
	s.checker.Stop()
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Stop(ctx); err != nil {
			s.logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	s.session.Close()
	s.logger.Sync()
}

// summary writes session counters gathered from the registry.
func (s *scenario) summary(w io.Writer, theme tui.Theme) {
	totals, err := health.Totals(s.registry)
	if err != nil {
		s.logger.Warn("failed to gather metrics", zap.Error(err))
		return
	}
	fmt.Fprintf(w, "%s requests=%.0f errors=%.0f clients=%.0f cookies=%.0f\n",
		theme.Render(tui.DimStyle, "session"),
		totals["requests_total"],
		totals["request_errors_total"],
		totals["pool_clients_created_total"],
		totals["cookie_jar_size"])
}
