package protocol

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"os"

	"golang.org/x/net/http2"
)

// NewHTTPClient creates a client for cfg. Response bodies are left
// compressed; callers decode Content-Encoding themselves.
func NewHTTPClient(cfg ClientConfig) (*http.Client, error) {
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.TLSInsecure,
	}
	if cfg.CertFile != "" {
		cert, err := loadCertificate(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	proxy, err := ProxyFunc(cfg.Proxies)
	if err != nil {
		return nil, err
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = DefaultClientConfig().DialTimeout
	}

	transport := &http.Transport{
		Proxy: proxy,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: dialTimeout,
		}).DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConns,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableCompression:  true,
		TLSClientConfig:     tlsConfig,
	}

	if cfg.HTTP2 {
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("failed to enable http2: %w", err)
		}
	}

	return &http.Client{
		Transport:     transport,
		CheckRedirect: redirectPolicy(cfg),
	}, nil
}

func redirectPolicy(cfg ClientConfig) func(*http.Request, []*http.Request) error {
	limit := cfg.MaxRedirects
	if limit <= 0 {
		limit = DefaultMaxRedirects
	}
	return func(req *http.Request, via []*http.Request) error {
		if !cfg.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) > limit {
			return fmt.Errorf("%w of %d", ErrTooManyRedirects, limit)
		}
		if hook, ok := req.Context().Value(redirectHookKey{}).(RedirectHook); ok {
			hook(req, via)
		}
		return nil
	}
}

type redirectHookKey struct{}

// RedirectHook runs before a redirect is followed. next.Response is the
// redirect response that produced next.
type RedirectHook func(next *http.Request, via []*http.Request)

// WithRedirectHook attaches hook to requests sent with ctx. Clients are
// shared, so per-request redirect handling travels in the context.
func WithRedirectHook(ctx context.Context, hook RedirectHook) context.Context {
	return context.WithValue(ctx, redirectHookKey{}, hook)
}

func loadCertificate(certFile, keyFile string) (tls.Certificate, error) {
	if keyFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return tls.Certificate{}, &CertError{Path: certFile, Err: err}
		}
		return cert, nil
	}

	pem, err := os.ReadFile(certFile)
	if err != nil {
		return tls.Certificate{}, &CertError{Path: certFile, Err: err}
	}
	cert, err := tls.X509KeyPair(pem, pem)
	if err != nil {
		return tls.Certificate{}, &CertError{Path: certFile, Err: err}
	}
	return cert, nil
}
