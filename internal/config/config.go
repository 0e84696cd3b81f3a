package config

import "time"

// Config is the root configuration structure of a scenario file.
type Config struct {
	Session  Session   `yaml:"session"`
	Requests []Request `yaml:"requests"`
	Load     Load      `yaml:"load"`
	Health   Health    `yaml:"health"`
	Metrics  Metrics   `yaml:"metrics"`
	Logging  Logging   `yaml:"logging"`
}

// Session configures the shared session all requests run on.
type Session struct {
	UserAgent       string            `yaml:"user_agent,omitempty"`
	Headers         map[string]string `yaml:"headers,omitempty"`
	Cookies         map[string]string `yaml:"cookies,omitempty"`
	HTTP2           bool              `yaml:"http2"`
	MaxIdleConns    int               `yaml:"max_idle_conns"`
	IdleConnTimeout time.Duration     `yaml:"idle_conn_timeout"`
	DialTimeout     time.Duration     `yaml:"dial_timeout"`
}

// Request describes one request of a scenario. Data, JSON, Timeout and
// Cert accept the same shapes as the library options: data is a mapping or
// a string, timeout a number of seconds or a [connect, read] pair, cert a
// path or a [cert, key] pair.
type Request struct {
	Name           string            `yaml:"name"`
	Method         string            `yaml:"method"`
	URL            string            `yaml:"url"`
	Params         map[string]string `yaml:"params,omitempty"`
	Data           any               `yaml:"data,omitempty"`
	JSON           any               `yaml:"json,omitempty"`
	Headers        map[string]string `yaml:"headers,omitempty"`
	Cookies        map[string]string `yaml:"cookies,omitempty"`
	Files          map[string]string `yaml:"files,omitempty"`
	Auth           *Auth             `yaml:"auth,omitempty"`
	Timeout        any               `yaml:"timeout,omitempty"`
	AllowRedirects *bool             `yaml:"allow_redirects,omitempty"`
	Proxies        map[string]string `yaml:"proxies,omitempty"`
	Stream         bool              `yaml:"stream"`
	Verify         *bool             `yaml:"verify,omitempty"`
	Cert           any               `yaml:"cert,omitempty"`

	// Weight is the relative share of this request under load.
	Weight int `yaml:"weight"`
	// ExpectStatus fails a run step when the response status differs.
	ExpectStatus int `yaml:"expect_status,omitempty"`
	// Query is a JMESPath expression applied to a JSON response.
	Query string `yaml:"query,omitempty"`
}

// Auth holds basic auth credentials.
type Auth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Load configures the load runner.
type Load struct {
	Workers   int           `yaml:"workers"`
	QueueSize int           `yaml:"queue_size"`
	RPS       float64       `yaml:"rps"`
	Total     int           `yaml:"total"`
	Duration  time.Duration `yaml:"duration"`
	// Jitter varies the rate smoothly by up to this fraction of RPS.
	Jitter float64 `yaml:"jitter"`
}

// Health configures the readiness probe run alongside a scenario.
type Health struct {
	Enabled  bool          `yaml:"enabled"`
	URL      string        `yaml:"url"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Metrics configures Prometheus metrics.
type Metrics struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// Logging configures the zap logger.
type Logging struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Session: Session{
			MaxIdleConns:    100,
			IdleConnTimeout: 90 * time.Second,
			DialTimeout:     30 * time.Second,
		},
		Load: Load{
			Workers:  10,
			RPS:      50,
			Duration: 30 * time.Second,
		},
		Health: Health{
			Interval: 10 * time.Second,
			Timeout:  5 * time.Second,
		},
		Metrics: Metrics{
			Address: ":9090",
			Path:    "/metrics",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}
