// Package session implements a long-lived HTTP session: pooled transport
// clients keyed by their configuration, a cookie jar that persists across
// calls, and normalization of loosely typed request options.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sesh/pkg/protocol"
)

// Session issues requests and carries cookies between them. It is safe for
// concurrent use.
type Session struct {
	pool     *ClientPool
	jar      *CookieJar
	logger   *zap.Logger
	observer Observer
	headers  map[string]string
	advisory AdvisoryHandler
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithObserver(o Observer) SessionOption {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithDefaultHeaders sets headers sent with every request. Per-request
// headers override them.
func WithDefaultHeaders(h map[string]string) SessionOption {
	return func(s *Session) {
		for k, v := range h {
			s.headers[http.CanonicalHeaderKey(k)] = v
		}
	}
}

func WithUserAgent(ua string) SessionOption {
	return func(s *Session) {
		s.headers["User-Agent"] = ua
	}
}

// WithClientConfig sets the transport tuning shared by pooled clients.
// Verification, certificates, proxies and redirects still come from each
// request.
func WithClientConfig(cfg protocol.ClientConfig) SessionOption {
	return func(s *Session) {
		s.pool.base = cfg
	}
}

// WithAdvisoryHandler receives non-fatal advisories. By default they are
// logged at warn level.
func WithAdvisoryHandler(h AdvisoryHandler) SessionOption {
	return func(s *Session) {
		s.advisory = h
	}
}

// New creates a Session with an empty pool and jar.
func New(opts ...SessionOption) *Session {
	Register()

	s := &Session{
		pool:     NewClientPool(protocol.DefaultClientConfig()),
		jar:      NewCookieJar(),
		logger:   zap.NewNop(),
		observer: nopObserver{},
		headers: map[string]string{
			"User-Agent":      DefaultUserAgent(),
			"Accept":          "*/*",
			"Accept-Encoding": DefaultAcceptEncoding,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) advise(a Advisory, msg string) {
	if s.advisory != nil {
		s.advisory(a, msg)
		return
	}
	s.logger.Warn("advisory", zap.Stringer("advisory", a), zap.String("detail", msg))
}

// Request builds RequestParams from method, url and opts and sends them.
func (s *Session) Request(ctx context.Context, method, url string, opts ...Option) (*Response, error) {
	p, err := NewRequestParams(method, url, opts...)
	if err != nil {
		return nil, err
	}
	return s.Do(ctx, p)
}

// Do sends p and blocks until the response has been read, or until its
// headers have arrived when streaming.
func (s *Session) Do(ctx context.Context, p *RequestParams) (*Response, error) {
	id := uuid.NewString()
	log := s.logger.With(zap.String("request_id", id), zap.String("method", p.Method), zap.String("url", p.URL))
	start := time.Now()

	resp, err := s.do(ctx, p, log, start)
	if err != nil {
		kind, _ := KindOf(err)
		s.observer.RequestFailed(p.Method, kind, time.Since(start))
		log.Warn("request failed", zap.Stringer("kind", kind), zap.Error(err))

		var e *Error
		if errors.As(err, &e) && e.URL == "" {
			e.Method, e.URL = p.Method, p.URL
		}
		return nil, err
	}

	s.observer.RequestDone(p.Method, int(resp.Status), resp.Elapsed)
	log.Debug("request completed",
		zap.Uint16("status", resp.Status),
		zap.Duration("elapsed", resp.Elapsed),
		zap.Bool("stream", p.stream()))
	return resp, nil
}

func (s *Session) do(ctx context.Context, p *RequestParams, log *zap.Logger, start time.Time) (*Response, error) {
	client, key, created, err := s.pool.GetOrCreate(p)
	if err != nil {
		return nil, err
	}
	if created {
		s.observer.ClientCreated(key)
		log.Debug("client created", zap.Bool("verify", key.Verify), zap.Bool("allow_redirects", key.AllowRedirects))
	} else {
		s.observer.ClientReused(key)
	}

	cookies := s.jar.Merge(p.Cookies)
	ctx = protocol.WithRedirectHook(ctx, s.redirectHook(p))

	req, cancel, err := s.assemble(ctx, p, cookies)
	if err != nil {
		return nil, err
	}

	httpResp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, classifySend(err)
	}
	s.storeCookies(httpResp.Header)

	out := newResponse(httpResp, req.Method, time.Since(start))
	if p.stream() {
		out.streaming = true
		out.stream = newBodyStream(httpResp, cancel, s.advise)
		return out, nil
	}

	defer cancel()
	if err := out.materialize(httpResp, s.advise); err != nil {
		return nil, err
	}
	out.Elapsed = time.Since(start)
	return out, nil
}

// redirectHook stores cookies set by intermediate redirect responses and
// refreshes the Cookie header of the next hop when it stays on the same
// host.
func (s *Session) redirectHook(p *RequestParams) protocol.RedirectHook {
	return func(next *http.Request, via []*http.Request) {
		if next.Response == nil {
			return
		}
		if s.storeCookies(next.Response.Header) == 0 {
			return
		}
		if next.URL.Host != via[0].URL.Host {
			return
		}
		next.Header.Del("Cookie")
		for k, v := range p.Headers {
			if strings.EqualFold(k, "Cookie") {
				next.Header.Set("Cookie", v)
			}
		}
		setCookieHeader(next.Header, s.jar.Merge(p.Cookies))
	}
}

func (s *Session) storeCookies(h http.Header) int {
	n := s.jar.UpdateFromResponse(h)
	if n > 0 {
		s.observer.CookiesUpdated(n, s.jar.Len())
	}
	return n
}

// Get, Head, Options, Post, Put, Patch and Delete are shorthands for
// Request with the matching method.
func (s *Session) Get(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return s.Request(ctx, http.MethodGet, url, opts...)
}

func (s *Session) Head(ctx context.Context, url string, opts ...Option) (*Response, error) {
	opts = append([]Option{WithAllowRedirects(false)}, opts...)
	return s.Request(ctx, http.MethodHead, url, opts...)
}

func (s *Session) Options(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return s.Request(ctx, http.MethodOptions, url, opts...)
}

func (s *Session) Post(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return s.Request(ctx, http.MethodPost, url, opts...)
}

func (s *Session) Put(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return s.Request(ctx, http.MethodPut, url, opts...)
}

func (s *Session) Patch(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return s.Request(ctx, http.MethodPatch, url, opts...)
}

func (s *Session) Delete(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return s.Request(ctx, http.MethodDelete, url, opts...)
}

// Cookies returns a copy of the session cookies.
func (s *Session) Cookies() map[string]string {
	return s.jar.Snapshot()
}

// SetCookies adds cookies to the session, replacing same-named ones.
func (s *Session) SetCookies(cookies map[string]string) {
	s.jar.Set(cookies)
}

// PoolSize reports how many transport clients are cached.
func (s *Session) PoolSize() int {
	return s.pool.Len()
}

// Close drops every pooled client and all cookies. The session stays
// usable; later requests build fresh clients.
func (s *Session) Close() error {
	s.pool.Close()
	s.jar.Clear()
	s.logger.Debug("session closed")
	return nil
}

// Request sends a single request on a throwaway Session.
func Request(ctx context.Context, method, url string, opts ...Option) (*Response, error) {
	s := New()
	defer s.Close()
	resp, err := s.Request(ctx, method, url, opts...)
	if err != nil {
		return nil, err
	}
	if resp.streaming {
		if err := resp.Load(); err != nil {
			return nil, err
		}
	}
	return resp, nil
}
