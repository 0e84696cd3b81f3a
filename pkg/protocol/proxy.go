package protocol

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
)

// ProxyFunc returns the proxy selector for a proxies mapping. Keys are
// tried from most to least specific: scheme://host, scheme, all://host,
// all. An empty mapping defers to the environment.
func ProxyFunc(proxies map[string]string) (func(*http.Request) (*url.URL, error), error) {
	if len(proxies) == 0 {
		return http.ProxyFromEnvironment, nil
	}

	parsed := make(map[string]*url.URL, len(proxies))
	for key, raw := range proxies {
		u, err := parseProxyURL(raw)
		if err != nil {
			return nil, &ProxyURLError{Key: key, URL: raw, Err: err}
		}
		parsed[strings.ToLower(key)] = u
	}

	return func(req *http.Request) (*url.URL, error) {
		return selectProxy(parsed, req.URL), nil
	}, nil
}

func selectProxy(proxies map[string]*url.URL, target *url.URL) *url.URL {
	scheme := strings.ToLower(target.Scheme)
	host := strings.ToLower(target.Hostname())

	candidates := []string{scheme, "all"}
	if host != "" {
		candidates = []string{scheme + "://" + host, scheme, "all://" + host, "all"}
	}
	for _, key := range candidates {
		if u, ok := proxies[key]; ok {
			return u
		}
	}
	return nil
}

func parseProxyURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("empty proxy URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, errors.New("proxy URL has no host")
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return nil, errors.New("unsupported proxy scheme " + u.Scheme)
	}
	return u, nil
}
