// Package protocol builds the net/http clients that sessions pool. Each
// ClientConfig maps to exactly one client construction.
package protocol

import (
	"errors"
	"fmt"
	"time"
)

// DefaultMaxRedirects bounds redirect chains when following is enabled.
const DefaultMaxRedirects = 30

// ErrTooManyRedirects is returned by the redirect policy once a chain
// exceeds ClientConfig.MaxRedirects.
var ErrTooManyRedirects = errors.New("exceeded redirect limit")

// ClientConfig contains the transport settings a client is built from.
type ClientConfig struct {
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	DialTimeout     time.Duration
	TLSInsecure     bool

	// CertFile alone names a PEM file holding both certificate and key.
	CertFile string
	KeyFile  string

	// Proxies maps "scheme://host", "scheme", "all://host" or "all" to a
	// proxy URL. Empty means proxies from the environment.
	Proxies map[string]string

	FollowRedirects bool
	MaxRedirects    int
	HTTP2           bool
}

// DefaultClientConfig returns tuning defaults with verification on and
// redirects followed.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
		DialTimeout:     30 * time.Second,
		FollowRedirects: true,
		MaxRedirects:    DefaultMaxRedirects,
	}
}

// CertError reports client certificate material that could not be loaded.
type CertError struct {
	Path string
	Err  error
}

func (e *CertError) Error() string {
	return fmt.Sprintf("could not load client certificate %s: %v", e.Path, e.Err)
}

func (e *CertError) Unwrap() error { return e.Err }

// ProxyURLError reports a proxy entry whose URL is unusable.
type ProxyURLError struct {
	Key string
	URL string
	Err error
}

func (e *ProxyURLError) Error() string {
	return fmt.Sprintf("invalid proxy URL %q for %q: %v", e.URL, e.Key, e.Err)
}

func (e *ProxyURLError) Unwrap() error { return e.Err }
