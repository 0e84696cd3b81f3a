package worker

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
	"github.com/sesh/internal/health"
	"github.com/sesh/internal/runner"
	"github.com/sesh/pkg/session"
)

func newLoadServer(t *testing.T, hits *int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(hits, 1)
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerateTotal(t *testing.T) {
	var hits int64
	srv := newLoadServer(t, &hits)

	reg := prometheus.NewRegistry()
	metrics := health.NewMetrics(reg)
	sess := session.New(session.WithObserver(metrics))
	defer sess.Close()
	r := runner.New(sess, metrics, nil)

	cfg := config.Load{Workers: 4, QueueSize: 8, RPS: 1000, Total: 40}
	pool := NewPool(cfg, r, metrics, nil)
	picker := runner.NewPicker([]config.Request{
		{Name: "ok", Method: "GET", URL: srv.URL + "/ok", ExpectStatus: 200, Weight: 3},
		{Name: "missing", Method: "GET", URL: srv.URL + "/missing", ExpectStatus: 200, Weight: 1},
	}, 7)

	report := Generate(context.Background(), pool, picker, cfg.Total, 0)

	assert.Equal(t, int64(40), report.Total)
	assert.Equal(t, int64(40), atomic.LoadInt64(&hits))
	assert.Equal(t, report.Statuses[404], report.Failed)
	assert.Equal(t, report.Failed, report.Errors["UnexpectedStatus"])
	assert.Equal(t, int64(40), report.Statuses[200]+report.Statuses[404])
	assert.Positive(t, report.P50)
	assert.LessOrEqual(t, report.P50, report.P99)
	assert.LessOrEqual(t, report.P99, report.Max)

	assert.Equal(t, 1000.0, testutil.ToFloat64(metrics.TargetRPS))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ClientsCreated))
	assert.Equal(t, 0, pool.Active())
}

func TestGenerateDuration(t *testing.T) {
	var hits int64
	srv := newLoadServer(t, &hits)

	sess := session.New()
	defer sess.Close()

	cfg := config.Load{Workers: 2, QueueSize: 4, RPS: 50}
	pool := NewPool(cfg, runner.New(sess, nil, nil), nil, nil)
	picker := runner.NewPicker([]config.Request{{Name: "ok", Method: "GET", URL: srv.URL + "/ok"}}, 1)

	start := time.Now()
	report := Generate(context.Background(), pool, picker, 0, 300*time.Millisecond)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Positive(t, report.Total)
	// 50 rps over 300ms plus the initial burst
	assert.LessOrEqual(t, report.Total, int64(30))
	assert.Zero(t, report.Failed)
}

func TestSubmitFullQueue(t *testing.T) {
	pool := NewPool(config.Load{Workers: 1, QueueSize: 1, RPS: 10}, runner.New(session.New(), nil, nil), nil, nil)

	assert.True(t, pool.Submit(Job{}))
	assert.False(t, pool.Submit(Job{}))
	assert.Equal(t, 1, pool.QueueSize())
}

func TestSetRateBurst(t *testing.T) {
	pool := NewPool(config.Load{Workers: 1, QueueSize: 1, RPS: 5}, runner.New(session.New(), nil, nil), nil, nil)
	assert.Equal(t, 1, pool.limiter.Burst())

	pool.SetRate(200)
	assert.Equal(t, 20, pool.limiter.Burst())
}

func TestErrorLabel(t *testing.T) {
	res := runner.New(session.New(), nil, nil).Step(context.Background(), config.Request{Name: "x", URL: "ftp://example.com"})
	require.Error(t, res.Err)
	assert.Equal(t, "InvalidSchema", errorLabel(res.Err))
	assert.Equal(t, "UnexpectedStatus", errorLabel(runner.ErrUnexpectedStatus))
}

func TestJitterStaysInBounds(t *testing.T) {
	j := newJitter(0.2, 99)
	moved := false
	for i := 0; i < 1000; i++ {
		m := j.multiplier()
		require.GreaterOrEqual(t, m, 0.8)
		require.LessOrEqual(t, m, 1.2)
		if m != 1.0 {
			moved = true
		}
	}
	assert.True(t, moved)

	var off *jitter
	assert.Equal(t, 1.0, off.multiplier())
	assert.Equal(t, 1.0, newJitter(0, 1).multiplier())
}
