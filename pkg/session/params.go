package session

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"
)

// DataPayload is the body given through the data option. It is either
// FormFields or RawBytes.
type DataPayload interface {
	isDataPayload()
}

// FormFields is sent URL-encoded as application/x-www-form-urlencoded.
type FormFields map[string]string

// RawBytes is sent as-is with no content type.
type RawBytes []byte

func (FormFields) isDataPayload() {}
func (RawBytes) isDataPayload()   {}

// Timeout bounds a request. It is either SingleDeadline or ConnectReadPair.
type Timeout interface {
	// Deadline returns the overall deadline applied to the request.
	Deadline() time.Duration
	seconds() float64
}

// SingleDeadline applies one deadline, in seconds, to the whole request.
type SingleDeadline struct {
	Seconds float64
}

// ConnectReadPair carries separate connect and read budgets. The request
// is bounded by the larger of the two.
type ConnectReadPair struct {
	Connect float64
	Read    float64
}

func (t SingleDeadline) seconds() float64 { return t.Seconds }

func (t SingleDeadline) Deadline() time.Duration { return secondsToDuration(t.Seconds) }

func (t ConnectReadPair) seconds() float64 { return math.Max(t.Connect, t.Read) }

func (t ConnectReadPair) Deadline() time.Duration { return secondsToDuration(t.seconds()) }

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Cert names client certificate material on disk. It is either SinglePath
// (one PEM file holding certificate and key) or KeyCertPair.
type Cert interface {
	identity() string
}

type SinglePath struct {
	Path string
}

type KeyCertPair struct {
	Cert string
	Key  string
}

func (c SinglePath) identity() string  { return "single:" + c.Path }
func (c KeyCertPair) identity() string { return "pair:" + c.Cert + "|" + c.Key }

// BasicAuth holds credentials for the Authorization header.
type BasicAuth struct {
	Username string
	Password string
}

// RequestParams is the normalized description of one request. Unset
// optional fields are nil.
type RequestParams struct {
	Method         string
	URL            string
	Query          map[string]string
	Data           DataPayload
	JSON           any
	Headers        map[string]string
	Cookies        map[string]string
	Files          map[string]string
	Auth           *BasicAuth
	Timeout        Timeout
	AllowRedirects bool
	Proxies        map[string]string
	Stream         *bool
	Verify         *bool
	Cert           Cert
}

// Option sets one field of RequestParams.
type Option func(*RequestParams) error

// NewRequestParams builds RequestParams from a method, a URL and options.
// Redirects are followed unless disabled. Method and URL are not checked
// here; problems with them surface when the request is sent.
func NewRequestParams(method, url string, opts ...Option) (*RequestParams, error) {
	p := &RequestParams{
		Method:         method,
		URL:            url,
		AllowRedirects: true,
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *RequestParams) verify() bool {
	return p.Verify == nil || *p.Verify
}

func (p *RequestParams) stream() bool {
	return p.Stream != nil && *p.Stream
}

func invalidArgument(format string, args ...any) error {
	return newError(KindInvalidArgument, fmt.Sprintf(format, args...), nil)
}

func WithQuery(q map[string]string) Option {
	return func(p *RequestParams) error {
		p.Query = q
		return nil
	}
}

func WithHeaders(h map[string]string) Option {
	return func(p *RequestParams) error {
		p.Headers = h
		return nil
	}
}

// WithHeader adds a single header, keeping previously set ones.
func WithHeader(key, value string) Option {
	return func(p *RequestParams) error {
		if p.Headers == nil {
			p.Headers = map[string]string{}
		}
		p.Headers[key] = value
		return nil
	}
}

func WithCookies(c map[string]string) Option {
	return func(p *RequestParams) error {
		p.Cookies = c
		return nil
	}
}

// WithForm sets a form body.
func WithForm(fields map[string]string) Option {
	return func(p *RequestParams) error {
		p.Data = FormFields(fields)
		return nil
	}
}

// WithBody sets an opaque body.
func WithBody(b []byte) Option {
	return func(p *RequestParams) error {
		p.Data = RawBytes(b)
		return nil
	}
}

// WithData resolves a loosely typed body once: string keyed maps become
// FormFields, strings and byte slices become RawBytes.
func WithData(v any) Option {
	return func(p *RequestParams) error {
		switch x := v.(type) {
		case nil:
			p.Data = nil
		case DataPayload:
			p.Data = x
		case map[string]string:
			p.Data = FormFields(x)
		case map[string]any:
			fields := make(FormFields, len(x))
			for k, item := range x {
				s, ok := scalarString(item)
				if !ok {
					return invalidArgument("data field %q: unsupported value of type %T", k, item)
				}
				fields[k] = s
			}
			p.Data = fields
		case string:
			p.Data = RawBytes(x)
		case []byte:
			p.Data = RawBytes(x)
		default:
			return invalidArgument("data must be a mapping, string or bytes, got %T", v)
		}
		return nil
	}
}

func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	}
	return "", false
}

// WithJSON sets a value to be serialized as the JSON body.
func WithJSON(v any) Option {
	return func(p *RequestParams) error {
		p.JSON = v
		return nil
	}
}

// WithFiles sets multipart file fields, mapping field name to file path.
func WithFiles(files map[string]string) Option {
	return func(p *RequestParams) error {
		p.Files = files
		return nil
	}
}

func WithBasicAuth(username, password string) Option {
	return func(p *RequestParams) error {
		p.Auth = &BasicAuth{Username: username, Password: password}
		return nil
	}
}

func WithTimeout(t Timeout) Option {
	return func(p *RequestParams) error {
		p.Timeout = t
		return nil
	}
}

func WithTimeoutSeconds(s float64) Option {
	return WithTimeout(SingleDeadline{Seconds: s})
}

func WithConnectReadTimeout(connect, read float64) Option {
	return WithTimeout(ConnectReadPair{Connect: connect, Read: read})
}

// WithTimeoutValue resolves a loosely typed timeout: a number of seconds, a
// time.Duration, or a two element sequence of connect and read seconds.
func WithTimeoutValue(v any) Option {
	return func(p *RequestParams) error {
		switch x := v.(type) {
		case nil:
			p.Timeout = nil
			return nil
		case Timeout:
			p.Timeout = x
			return nil
		case time.Duration:
			p.Timeout = SingleDeadline{Seconds: x.Seconds()}
			return nil
		}

		if s, ok := toFloat(v); ok {
			p.Timeout = SingleDeadline{Seconds: s}
			return nil
		}

		rv := reflect.ValueOf(v)
		if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Len() == 2 {
			c, okc := toFloat(rv.Index(0).Interface())
			r, okr := toFloat(rv.Index(1).Interface())
			if okc && okr {
				p.Timeout = ConnectReadPair{Connect: c, Read: r}
				return nil
			}
		}
		return invalidArgument("timeout must be a number or a (connect, read) pair, got %T", v)
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint64:
		return float64(x), true
	}
	return 0, false
}

func WithAllowRedirects(allow bool) Option {
	return func(p *RequestParams) error {
		p.AllowRedirects = allow
		return nil
	}
}

// WithProxies maps a scheme, scheme://host, all or all://host to a proxy URL.
func WithProxies(proxies map[string]string) Option {
	return func(p *RequestParams) error {
		p.Proxies = proxies
		return nil
	}
}

func WithStream(stream bool) Option {
	return func(p *RequestParams) error {
		p.Stream = &stream
		return nil
	}
}

func WithVerify(verify bool) Option {
	return func(p *RequestParams) error {
		p.Verify = &verify
		return nil
	}
}

func WithCert(path string) Option {
	return func(p *RequestParams) error {
		p.Cert = SinglePath{Path: path}
		return nil
	}
}

func WithCertPair(cert, key string) Option {
	return func(p *RequestParams) error {
		p.Cert = KeyCertPair{Cert: cert, Key: key}
		return nil
	}
}

// WithCertValue resolves a loosely typed certificate: a path string or a
// two element sequence of certificate and key paths.
func WithCertValue(v any) Option {
	return func(p *RequestParams) error {
		switch x := v.(type) {
		case nil:
			p.Cert = nil
		case Cert:
			p.Cert = x
		case string:
			p.Cert = SinglePath{Path: x}
		case []string:
			if len(x) != 2 {
				return invalidArgument("cert pair needs 2 paths, got %d", len(x))
			}
			p.Cert = KeyCertPair{Cert: x[0], Key: x[1]}
		case [2]string:
			p.Cert = KeyCertPair{Cert: x[0], Key: x[1]}
		case []any:
			if len(x) != 2 {
				return invalidArgument("cert pair needs 2 paths, got %d", len(x))
			}
			c, okc := x[0].(string)
			k, okk := x[1].(string)
			if !okc || !okk {
				return invalidArgument("cert pair must hold strings")
			}
			p.Cert = KeyCertPair{Cert: c, Key: k}
		default:
			return invalidArgument("cert must be a path or a (cert, key) pair, got %T", v)
		}
		return nil
	}
}
