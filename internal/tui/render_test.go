package tui

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sesh/internal/runner"
	"github.com/sesh/internal/worker"
	"github.com/sesh/pkg/session"
)

func fetch(t *testing.T) *session.Response {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-B", "2")
		w.Header().Set("X-A", "1")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("hello"))
	}))
	t.Cleanup(srv.Close)

	s := session.New()
	t.Cleanup(func() { s.Close() })
	resp, err := s.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	return resp
}

func TestResponsePlain(t *testing.T) {
	resp := fetch(t)

	var buf bytes.Buffer
	Plain().Response(&buf, resp, false)
	assert.Equal(t, "hello\n", buf.String())

	buf.Reset()
	Plain().Response(&buf, resp, true)
	out := buf.String()
	assert.Contains(t, out, "201 Created (")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("X-A: 1")), bytes.Index(buf.Bytes(), []byte("X-B: 2")))
	assert.Contains(t, out, "\n\nhello\n")
}

func TestStep(t *testing.T) {
	resp := fetch(t)

	var buf bytes.Buffer
	Plain().Step(&buf, runner.Result{Step: "create", Response: resp, Query: []byte(`"x"`)})
	assert.Contains(t, buf.String(), CheckMark+" create 201 Created")
	assert.Contains(t, buf.String(), ArrowRight+` "x"`)

	buf.Reset()
	Plain().Step(&buf, runner.Result{Step: "broken", Err: errors.New("boom")})
	assert.Equal(t, CrossMark+" broken boom\n", buf.String())
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	Plain().Report(&buf, worker.Report{
		Total:    10,
		Failed:   2,
		Statuses: map[int]int64{500: 2, 200: 8},
		Errors:   map[string]int64{"UnexpectedStatus": 2},
		Duration: time.Second,
		RPS:      10,
		P50:      5 * time.Millisecond,
		Max:      10 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "Total:     10")
	assert.Contains(t, out, "Rate:      10.0/s")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("200  8")), bytes.Index(buf.Bytes(), []byte("500  2")))
	assert.Contains(t, out, "UnexpectedStatus  2")
}

func TestBarClamps(t *testing.T) {
	th := Plain()
	assert.Equal(t, "██░░", th.Bar(0.5, 4))
	assert.Equal(t, "████", th.Bar(3, 4))
	assert.Equal(t, "░░░░", th.Bar(-1, 4))
}
