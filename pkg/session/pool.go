package session

import (
	"errors"
	"net/http"
	"sync"

	"github.com/sesh/pkg/protocol"
)

// ClientPool caches one *http.Client per ClientKey. The lock covers only
// lookup and insertion; it is never held while a request is in flight.
type ClientPool struct {
	mu      sync.Mutex
	clients map[ClientKey]*http.Client
	base    protocol.ClientConfig
	build   func(protocol.ClientConfig) (*http.Client, error)
}

// NewClientPool creates an empty pool. base carries transport tuning shared
// by every client the pool builds.
func NewClientPool(base protocol.ClientConfig) *ClientPool {
	return &ClientPool{
		clients: make(map[ClientKey]*http.Client),
		base:    base,
		build:   protocol.NewHTTPClient,
	}
}

// GetOrCreate returns the client for p's configuration, building it on
// first use. created reports whether this call built the client.
func (cp *ClientPool) GetOrCreate(p *RequestParams) (client *http.Client, key ClientKey, created bool, err error) {
	key = KeyFor(p)

	cp.mu.Lock()
	defer cp.mu.Unlock()

	if c, ok := cp.clients[key]; ok {
		return c, key, false, nil
	}

	c, err := cp.build(cp.configFor(p))
	if err != nil {
		return nil, key, false, classifyBuildError(err)
	}
	cp.clients[key] = c
	return c, key, true, nil
}

func (cp *ClientPool) configFor(p *RequestParams) protocol.ClientConfig {
	cfg := cp.base
	cfg.TLSInsecure = !p.verify()
	cfg.FollowRedirects = p.AllowRedirects
	cfg.Proxies = p.Proxies
	cfg.CertFile, cfg.KeyFile = "", ""
	switch c := p.Cert.(type) {
	case SinglePath:
		cfg.CertFile = c.Path
	case KeyCertPair:
		cfg.CertFile, cfg.KeyFile = c.Cert, c.Key
	}
	return cfg
}

func classifyBuildError(err error) error {
	var ce *protocol.CertError
	if errors.As(err, &ce) {
		return newError(KindSSL, "could not load client certificate", err)
	}
	var pe *protocol.ProxyURLError
	if errors.As(err, &pe) {
		return newError(KindInvalidProxyURL, "invalid proxy URL", err)
	}
	return newError(KindRequest, "could not build client", err)
}

// Len reports how many clients are cached.
func (cp *ClientPool) Len() int {
	cp.mu.Lock()
	defer cp.mu.Unlock()
	return len(cp.clients)
}

// Close drops every cached client and closes their idle connections.
func (cp *ClientPool) Close() {
	cp.mu.Lock()
	clients := cp.clients
	cp.clients = make(map[ClientKey]*http.Client)
	cp.mu.Unlock()

	for _, c := range clients {
		c.CloseIdleConnections()
	}
}
