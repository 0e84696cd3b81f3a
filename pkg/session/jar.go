package session

import (
	"net/http"
	"sort"
	"strings"
	"sync"
)

// CookieJar holds session cookies as plain name/value pairs. Attributes
// such as Domain, Path and Expires are discarded.
type CookieJar struct {
	mu      sync.Mutex
	cookies map[string]string
}

func NewCookieJar() *CookieJar {
	return &CookieJar{cookies: make(map[string]string)}
}

// Merge returns the jar's cookies overlaid with perRequest. The jar itself
// is not modified.
func (j *CookieJar) Merge(perRequest map[string]string) map[string]string {
	j.mu.Lock()
	merged := make(map[string]string, len(j.cookies)+len(perRequest))
	for k, v := range j.cookies {
		merged[k] = v
	}
	j.mu.Unlock()

	for k, v := range perRequest {
		merged[k] = v
	}
	return merged
}

// UpdateFromResponse stores every Set-Cookie in h and returns how many
// cookies were stored. Header names are matched case-insensitively.
func (j *CookieJar) UpdateFromResponse(h http.Header) int {
	parsed := parseSetCookies(h)
	if len(parsed) == 0 {
		return 0
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	for _, c := range parsed {
		j.cookies[c[0]] = c[1]
	}
	return len(parsed)
}

func parseSetCookies(h http.Header) [][2]string {
	var out [][2]string
	for key, values := range h {
		if !strings.EqualFold(key, "Set-Cookie") {
			continue
		}
		for _, v := range values {
			if name, value, ok := parseSetCookie(v); ok {
				out = append(out, [2]string{name, value})
			}
		}
	}
	return out
}

// parseSetCookie keeps the leading name=value of a Set-Cookie value.
func parseSetCookie(v string) (string, string, bool) {
	pair, _, _ := strings.Cut(v, ";")
	name, value, ok := strings.Cut(pair, "=")
	if !ok {
		return "", "", false
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", false
	}
	return name, strings.TrimSpace(value), true
}

// Snapshot returns a copy of the stored cookies.
func (j *CookieJar) Snapshot() map[string]string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make(map[string]string, len(j.cookies))
	for k, v := range j.cookies {
		out[k] = v
	}
	return out
}

// Set merges cookies into the jar, replacing same-named entries.
func (j *CookieJar) Set(cookies map[string]string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for k, v := range cookies {
		j.cookies[k] = v
	}
}

func (j *CookieJar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.cookies)
}

func (j *CookieJar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies = make(map[string]string)
}

// cookieHeader renders cookies as a single Cookie header value in name
// order.
func cookieHeader(cookies map[string]string) string {
	names := make([]string, 0, len(cookies))
	for k := range cookies {
		names = append(names, k)
	}
	sort.Strings(names)

	pairs := make([]string, len(names))
	for i, k := range names {
		pairs[i] = k + "=" + cookies[k]
	}
	return strings.Join(pairs, "; ")
}
