package session

import (
	"sort"
	"strings"
)

// ClientKey identifies a transport configuration. Requests with equal keys
// share one *http.Client. Only verification, certificate, proxy and redirect
// settings take part; everything else is applied per request.
type ClientKey struct {
	Verify         bool
	CertIdentity   string
	ProxyIdentity  string
	AllowRedirects bool
}

// KeyFor derives the ClientKey for p.
func KeyFor(p *RequestParams) ClientKey {
	k := ClientKey{
		Verify:         p.verify(),
		AllowRedirects: p.AllowRedirects,
	}
	if p.Cert != nil {
		k.CertIdentity = p.Cert.identity()
	}
	k.ProxyIdentity = proxyIdentity(p.Proxies)
	return k
}

// proxyIdentity renders proxies in key order. Schemes are lowercased the
// same way the transport reads them. A nil and an empty map both yield the
// empty identity.
func proxyIdentity(proxies map[string]string) string {
	if len(proxies) == 0 {
		return ""
	}
	lowered := make(map[string]string, len(proxies))
	keys := make([]string, 0, len(proxies))
	for k, v := range proxies {
		k = strings.ToLower(k)
		if _, ok := lowered[k]; !ok {
			keys = append(keys, k)
		}
		lowered[k] = v
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(lowered[k])
	}
	return b.String()
}
