// Package runner executes scenario requests on a shared session.
package runner

import (
	"fmt"

	"github.com/sesh/internal/config"
	"github.com/sesh/pkg/session"
)

// Params converts a scenario request into RequestParams. The loosely typed
// data, timeout and cert fields are resolved here, once.
func Params(r config.Request) (*session.RequestParams, error) {
	opts := []session.Option{
		session.WithQuery(r.Params),
		session.WithHeaders(r.Headers),
		session.WithCookies(r.Cookies),
		session.WithFiles(r.Files),
		session.WithProxies(r.Proxies),
		session.WithData(r.Data),
		session.WithTimeoutValue(r.Timeout),
		session.WithCertValue(r.Cert),
	}
	if r.JSON != nil {
		opts = append(opts, session.WithJSON(r.JSON))
	}
	if r.Auth != nil {
		opts = append(opts, session.WithBasicAuth(r.Auth.Username, r.Auth.Password))
	}
	if r.AllowRedirects != nil {
		opts = append(opts, session.WithAllowRedirects(*r.AllowRedirects))
	}
	if r.Verify != nil {
		opts = append(opts, session.WithVerify(*r.Verify))
	}
	if r.Stream {
		opts = append(opts, session.WithStream(true))
	}

	p, err := session.NewRequestParams(r.Method, r.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", r.Name, err)
	}
	return p, nil
}
