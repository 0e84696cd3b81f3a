package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sesh/internal/config"
	"github.com/sesh/pkg/session"
)

func TestMetricsObserveSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "1"})
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s := session.New(session.WithObserver(m))
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := s.Post(ctx, srv.URL)
		require.NoError(t, err)
	}
	_, err := s.Get(ctx, "not-a-url")
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClientsCreated))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ClientsReused))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestErrors.WithLabelValues("MissingSchema")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CookieJarSize))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CookiesStored))
}

func TestCheckerTracksHealth(t *testing.T) {
	var up atomic.Bool
	up.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !up.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	m := NewMetrics(prometheus.NewRegistry())
	s := session.New()
	defer s.Close()

	c := NewChecker(config.Health{Enabled: true, URL: srv.URL, Interval: time.Hour, Timeout: time.Second}, s, m, nil)
	c.Start(context.Background())
	defer c.Stop()

	assert.True(t, c.Healthy())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TargetHealth.WithLabelValues(srv.URL)))

	up.Store(false)
	assert.False(t, c.Check(context.Background()))
	assert.False(t, c.Healthy())
	assert.ErrorIs(t, c.LastError(), session.ErrHTTP)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TargetHealth.WithLabelValues(srv.URL)))
}

func TestServerEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.SetTargetRPS(25)

	var ready atomic.Bool
	srv := NewServer(config.Metrics{Path: "/metrics"}, reg, ready.Load, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	ready.Store(true)
	resp, err = http.Get(ts.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	s := session.New()
	defer s.Close()
	metrics, err := s.Get(context.Background(), ts.URL+"/metrics")
	require.NoError(t, err)
	assert.Contains(t, metrics.Text(), "sesh_target_rps 25")
}

func TestTotals(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.RequestDone("GET", 200, time.Millisecond)
	m.RequestDone("POST", 201, time.Millisecond)
	m.RequestDone("GET", 200, time.Millisecond)
	m.RecordStep("login", false)
	m.SetTargetRPS(5)

	totals, err := Totals(reg)
	require.NoError(t, err)

	assert.Equal(t, 3.0, totals["requests_total"])
	assert.Equal(t, 3.0, totals["request_duration_seconds"])
	assert.Equal(t, 1.0, totals["step_requests_total"])
	assert.Equal(t, 5.0, totals["target_rps"])
	_, hasFailures := totals["request_errors_total"]
	assert.False(t, hasFailures)
}
