package cli

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sesh/pkg/session"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("X-Method", r.Method)
		w.Header().Set("X-Query", r.URL.RawQuery)
		w.Header().Set("X-Cookie", r.Header.Get("Cookie"))
		w.Header().Set("X-Content-Type", r.Header.Get("Content-Type"))
		w.Write(body)
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"id":1},{"id":2}]}`))
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s1"})
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/me", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("sid"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"ada"}`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRequestCommand(t *testing.T) {
	srv := newTestServer(t)

	out, err := execute(t, "request", "post", srv.URL+"/echo",
		"-p", "a=1", "-b", "c=2", "-d", "payload", "-i")
	require.NoError(t, err)

	assert.Contains(t, out, "200 OK")
	assert.Contains(t, out, "X-Method: POST")
	assert.Contains(t, out, "X-Query: a=1")
	assert.Contains(t, out, "X-Cookie: c=2")
	assert.True(t, strings.HasSuffix(out, "\npayload\n"))
}

func TestRequestForm(t *testing.T) {
	srv := newTestServer(t)

	out, err := execute(t, "request", "PUT", srv.URL+"/echo", "-f", "b=2", "-f", "a=1")
	require.NoError(t, err)
	assert.Equal(t, "a=1&b=2\n", out)
}

func TestRequestQuery(t *testing.T) {
	srv := newTestServer(t)

	out, err := execute(t, "request", "GET", srv.URL+"/json", "-q", "items[].id")
	require.NoError(t, err)
	assert.JSONEq(t, `[1, 2]`, out)
}

func TestRequestStream(t *testing.T) {
	srv := newTestServer(t)

	out, err := execute(t, "request", "POST", srv.URL+"/echo", "--json", `{"k":"v"}`, "--stream")
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, out)
}

func TestRequestRaise(t *testing.T) {
	srv := newTestServer(t)

	_, err := execute(t, "request", "GET", srv.URL+"/missing")
	require.NoError(t, err)

	_, err = execute(t, "request", "GET", srv.URL+"/missing", "--raise")
	require.Error(t, err)
	assert.ErrorIs(t, err, session.ErrHTTP)
	assert.Contains(t, err.Error(), "404 Client Error")
}

func TestRequestFlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad header", []string{"-H", "nocolon"}, "invalid header"},
		{"bad pair", []string{"-p", "novalue"}, "invalid --param"},
		{"two bodies", []string{"-d", "x", "--json", "{}"}, "only one of"},
		{"bad json", []string{"--json", "{"}, "invalid --json"},
		{"bad timeout", []string{"--timeout", "soon"}, "invalid --timeout"},
		{"key without cert", []string{"--key", "k.pem"}, "--key requires --cert"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"request", "GET", "http://127.0.0.1:1/"}, tt.args...)
			_, err := execute(t, args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseTimeout(t *testing.T) {
	tm, err := parseTimeout("5")
	require.NoError(t, err)
	assert.Equal(t, session.SingleDeadline{Seconds: 5}, tm)

	tm, err = parseTimeout("2, 7.5")
	require.NoError(t, err)
	assert.Equal(t, session.ConnectReadPair{Connect: 2, Read: 7.5}, tm)
}

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunCommand(t *testing.T) {
	srv := newTestServer(t)
	path := writeScenario(t, `
requests:
  - name: login
    method: POST
    url: `+srv.URL+`/login
    expect_status: 204
  - name: me
    url: `+srv.URL+`/me
    expect_status: 200
    query: name
`)

	out, err := execute(t, "run", "-c", path)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ login 204 No Content")
	assert.Contains(t, out, "→ ada")
	assert.Contains(t, out, "requests=2 errors=0 clients=1 cookies=1")
}

func TestRunCommandFailure(t *testing.T) {
	srv := newTestServer(t)
	path := writeScenario(t, `
requests:
  - name: me
    url: `+srv.URL+`/me
    expect_status: 200
`)

	out, err := execute(t, "run", "-c", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenario failed")
	assert.Contains(t, out, "✗ me")
}

func TestLoadCommand(t *testing.T) {
	srv := newTestServer(t)
	path := writeScenario(t, `
requests:
  - name: echo
    url: `+srv.URL+`/echo
    weight: 2
  - name: json
    url: `+srv.URL+`/json
load:
  workers: 2
  rps: 500
  total: 20
`)

	out, err := execute(t, "load", "-c", path, "--seed", "3")
	require.NoError(t, err)

	assert.Contains(t, out, "load 2 requests, 2 workers, 500 rps")
	assert.Contains(t, out, "Total:     20")
	assert.Contains(t, out, "Failed:    0")
	assert.Contains(t, out, "p99")
	assert.Contains(t, out, "requests=20")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version", "--errors")
	require.NoError(t, err)

	assert.Contains(t, out, "sesh dev")
	assert.Contains(t, out, "user agent: sesh/")
	assert.Contains(t, out, "ConnectTimeout < ConnectionError, Timeout")
	assert.Contains(t, out, "RequestException\n")
}
