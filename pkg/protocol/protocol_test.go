package protocol

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectProxyPrecedence(t *testing.T) {
	sel, err := ProxyFunc(map[string]string{
		"all":                    "http://fallback:1",
		"https":                  "http://secure:2",
		"http://api.example.com": "http://exact:3",
		"all://other.example":    "http://other:4",
	})
	require.NoError(t, err)

	tests := []struct {
		target string
		want   string
	}{
		{"http://api.example.com/x", "exact:3"},
		{"https://api.example.com/x", "secure:2"},
		{"http://other.example/", "other:4"},
		{"http://elsewhere/", "fallback:1"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			u, _ := url.Parse(tt.target)
			got, err := sel(&http.Request{URL: u})
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Host)
		})
	}
}

func TestProxyWithoutSchemeDefaultsToHTTP(t *testing.T) {
	sel, err := ProxyFunc(map[string]string{"http": "proxy.local:3128"})
	require.NoError(t, err)

	u, _ := url.Parse("http://example.com")
	got, err := sel(&http.Request{URL: u})
	require.NoError(t, err)
	assert.Equal(t, "http", got.Scheme)
	assert.Equal(t, "proxy.local:3128", got.Host)
}

func TestInvalidProxyURL(t *testing.T) {
	_, err := NewHTTPClient(ClientConfig{Proxies: map[string]string{"http": "ftp://nope"}})
	var pe *ProxyURLError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "http", pe.Key)
}

func TestMissingCertificate(t *testing.T) {
	_, err := NewHTTPClient(ClientConfig{CertFile: filepath.Join(t.TempDir(), "missing.pem")})
	var ce *CertError
	require.ErrorAs(t, err, &ce)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestGarbageCertificate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a pem"), 0o600))

	_, err := NewHTTPClient(ClientConfig{CertFile: path})
	var ce *CertError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, path, ce.Path)
}

func TestRedirectPolicy(t *testing.T) {
	var hops int
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/loop" {
			hops++
			http.Redirect(w, r, srv.URL+"/loop", http.StatusFound)
			return
		}
		http.Redirect(w, r, srv.URL+"/done", http.StatusFound)
	}))
	defer srv.Close()

	t.Run("disabled returns the redirect", func(t *testing.T) {
		cfg := DefaultClientConfig()
		cfg.FollowRedirects = false
		client, err := NewHTTPClient(cfg)
		require.NoError(t, err)

		resp, err := client.Get(srv.URL + "/start")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusFound, resp.StatusCode)
	})

	t.Run("limit stops loops", func(t *testing.T) {
		cfg := DefaultClientConfig()
		cfg.MaxRedirects = 3
		client, err := NewHTTPClient(cfg)
		require.NoError(t, err)

		_, err = client.Get(srv.URL + "/loop")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrTooManyRedirects)
		assert.Equal(t, 4, hops)
	})
}
