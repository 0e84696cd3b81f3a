package runner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sesh/internal/config"
	"github.com/sesh/internal/health"
	"github.com/sesh/pkg/session"
)

func newScenarioServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Set-Cookie", "sid=abc123; Path=/")
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("sid")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user":{"name":"ada","sid":"` + c.Value + `"}}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func boolPtr(b bool) *bool { return &b }

func TestParamsMapping(t *testing.T) {
	p, err := Params(config.Request{
		Name:           "upload",
		Method:         "POST",
		URL:            "http://example.com/upload",
		Params:         map[string]string{"q": "1"},
		Data:           map[string]any{"n": 2, "s": "x"},
		Auth:           &config.Auth{Username: "u", Password: "p"},
		Timeout:        []any{1, 2.5},
		AllowRedirects: boolPtr(false),
		Verify:         boolPtr(false),
		Cert:           []any{"c.pem", "k.pem"},
		Stream:         true,
	})
	require.NoError(t, err)

	assert.Equal(t, "POST", p.Method)
	assert.Equal(t, map[string]string{"q": "1"}, p.Query)
	assert.Equal(t, session.FormFields{"n": "2", "s": "x"}, p.Data)
	assert.Equal(t, &session.BasicAuth{Username: "u", Password: "p"}, p.Auth)
	assert.Equal(t, session.ConnectReadPair{Connect: 1, Read: 2.5}, p.Timeout)
	assert.False(t, p.AllowRedirects)
	require.NotNil(t, p.Verify)
	assert.False(t, *p.Verify)
	assert.Equal(t, session.KeyCertPair{Cert: "c.pem", Key: "k.pem"}, p.Cert)
	require.NotNil(t, p.Stream)
	assert.True(t, *p.Stream)
}

func TestParamsDefaults(t *testing.T) {
	p, err := Params(config.Request{Name: "r", Method: "GET", URL: "http://example.com"})
	require.NoError(t, err)

	assert.True(t, p.AllowRedirects)
	assert.Nil(t, p.Data)
	assert.Nil(t, p.Timeout)
	assert.Nil(t, p.Cert)
	assert.Nil(t, p.Verify)
}

func TestParamsRejectsBadTimeout(t *testing.T) {
	_, err := Params(config.Request{Name: "bad", URL: "http://example.com", Timeout: "soon"})
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "request bad")
}

func TestRunPersistsCookiesAcrossSteps(t *testing.T) {
	srv := newScenarioServer(t)
	sess := session.New()
	defer sess.Close()

	reg := prometheus.NewRegistry()
	metrics := health.NewMetrics(reg)
	r := New(sess, metrics, nil)

	var results []Result
	err := r.Run(context.Background(), []config.Request{
		{Name: "login", Method: "POST", URL: srv.URL + "/login", ExpectStatus: 204},
		{Name: "me", Method: "GET", URL: srv.URL + "/me", ExpectStatus: 200, Query: "user.name"},
	}, func(res Result) { results = append(results, res) })
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "login", results[0].Step)
	assert.Equal(t, uint16(204), results[0].Response.Status)
	assert.Equal(t, "ada", string(results[1].Query))
	assert.Equal(t, map[string]string{"sid": "abc123"}, sess.Cookies())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.StepRequests.WithLabelValues("me", "success")))
}

func TestRunStopsAtUnexpectedStatus(t *testing.T) {
	srv := newScenarioServer(t)
	sess := session.New()
	defer sess.Close()

	r := New(sess, nil, nil)

	var steps []string
	err := r.Run(context.Background(), []config.Request{
		{Name: "me", Method: "GET", URL: srv.URL + "/me", ExpectStatus: 200},
		{Name: "never", Method: "GET", URL: srv.URL + "/login"},
	}, func(res Result) { steps = append(steps, res.Step) })

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedStatus))
	assert.Contains(t, err.Error(), "expected 200, got 401")
	assert.Equal(t, []string{"me"}, steps)
}

func TestStepStreamIsLoaded(t *testing.T) {
	srv := newScenarioServer(t)
	sess := session.New()
	defer sess.Close()

	r := New(sess, nil, nil)
	res := r.Step(context.Background(), config.Request{Name: "login", URL: srv.URL + "/login", Method: "POST"})
	require.NoError(t, res.Err)

	res = r.Step(context.Background(), config.Request{Name: "me", URL: srv.URL + "/me", Method: "GET", Stream: true, Query: "user.sid"})
	require.NoError(t, res.Err)
	assert.Equal(t, "abc123", string(res.Query))
	assert.Positive(t, res.Elapsed)
}

func TestStepReportsTransportErrors(t *testing.T) {
	r := New(session.New(), nil, nil)
	res := r.Step(context.Background(), config.Request{Name: "bad", Method: "GET", URL: "example.com"})

	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, session.ErrMissingSchema)
	assert.Nil(t, res.Response)
}

func TestPickerHonorsWeights(t *testing.T) {
	p := NewPicker([]config.Request{
		{Name: "heavy", Weight: 9},
		{Name: "light", Weight: 1},
		{Name: "unset"},
	}, 42)

	counts := map[string]int{}
	for i := 0; i < 11000; i++ {
		counts[p.Pick().Name]++
	}

	assert.InDelta(t, 9000, counts["heavy"], 400)
	assert.InDelta(t, 1000, counts["light"], 200)
	assert.InDelta(t, 1000, counts["unset"], 200)
}

func TestPickerEmpty(t *testing.T) {
	p := NewPicker(nil, 1)
	assert.Equal(t, config.Request{}, p.Pick())
}
