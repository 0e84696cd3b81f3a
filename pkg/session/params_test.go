package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestParamsDefaults(t *testing.T) {
	p, err := NewRequestParams("get", "http://example.com")
	require.NoError(t, err)

	assert.True(t, p.AllowRedirects)
	assert.Nil(t, p.Data)
	assert.Nil(t, p.JSON)
	assert.Nil(t, p.Timeout)
	assert.Nil(t, p.Verify)
	assert.Nil(t, p.Cert)
	assert.True(t, p.verify())
	assert.False(t, p.stream())
}

func TestWithData(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want DataPayload
	}{
		{"string map", map[string]string{"a": "1"}, FormFields{"a": "1"}},
		{"scalar map", map[string]any{"n": 2, "b": true}, FormFields{"n": "2", "b": "true"}},
		{"string", "raw", RawBytes("raw")},
		{"bytes", []byte{1, 2}, RawBytes{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewRequestParams("POST", "http://x", WithData(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Data)
		})
	}

	_, err := NewRequestParams("POST", "http://x", WithData(42))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewRequestParams("POST", "http://x", WithData(map[string]any{"nested": []int{1}}))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestWithTimeoutValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want time.Duration
	}{
		{"float seconds", 1.5, 1500 * time.Millisecond},
		{"int seconds", 3, 3 * time.Second},
		{"duration", 250 * time.Millisecond, 250 * time.Millisecond},
		{"pair slice", []float64{2, 5}, 5 * time.Second},
		{"pair array", [2]int{7, 1}, 7 * time.Second},
		{"pair any", []any{1.0, 4}, 4 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewRequestParams("GET", "http://x", WithTimeoutValue(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Timeout.Deadline())
		})
	}

	_, err := NewRequestParams("GET", "http://x", WithTimeoutValue("soon"))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = NewRequestParams("GET", "http://x", WithTimeoutValue([]float64{1, 2, 3}))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestWithCertValue(t *testing.T) {
	p, err := NewRequestParams("GET", "http://x", WithCertValue("client.pem"))
	require.NoError(t, err)
	assert.Equal(t, SinglePath{Path: "client.pem"}, p.Cert)

	p, err = NewRequestParams("GET", "http://x", WithCertValue([]string{"c.pem", "k.pem"}))
	require.NoError(t, err)
	assert.Equal(t, KeyCertPair{Cert: "c.pem", Key: "k.pem"}, p.Cert)

	_, err = NewRequestParams("GET", "http://x", WithCertValue([]string{"only"}))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestKeyFor(t *testing.T) {
	base, _ := NewRequestParams("GET", "http://x")
	noProxies, _ := NewRequestParams("GET", "http://x", WithProxies(map[string]string{}))
	assert.Equal(t, KeyFor(base), KeyFor(noProxies))

	a, _ := NewRequestParams("GET", "http://x", WithProxies(map[string]string{"http": "p:1", "https": "p:2"}))
	b, _ := NewRequestParams("PUT", "http://y", WithProxies(map[string]string{"https": "p:2", "http": "p:1"}),
		WithQuery(map[string]string{"q": "1"}), WithTimeoutSeconds(3))
	assert.Equal(t, KeyFor(a), KeyFor(b))

	single, _ := NewRequestParams("GET", "http://x", WithCert("a"))
	pair, _ := NewRequestParams("GET", "http://x", WithCertPair("a", ""))
	assert.NotEqual(t, KeyFor(single), KeyFor(pair))

	upper, _ := NewRequestParams("GET", "http://x", WithProxies(map[string]string{"HTTP": "p:1", "Https": "p:2"}))
	assert.Equal(t, KeyFor(a), KeyFor(upper))

	unverified, _ := NewRequestParams("GET", "http://x", WithVerify(false))
	assert.NotEqual(t, KeyFor(base), KeyFor(unverified))
}
