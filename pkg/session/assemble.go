package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/net/http/httpguts"

	"github.com/sesh/pkg/jsonvalue"
)

// encodedBody is an encoded request body and the content type it implies. An
// empty contentType means none is sent.
type encodedBody struct {
	data        []byte
	contentType string
}

// assemble builds the outgoing request. The returned cancel func releases
// the request deadline and must be called once the response is done with.
func (s *Session) assemble(ctx context.Context, p *RequestParams, cookies map[string]string) (*http.Request, context.CancelFunc, error) {
	u, err := parseRequestURL(p.URL)
	if err != nil {
		return nil, nil, err
	}
	appendQuery(u, p.Query)

	b, err := s.encodeBody(p)
	if err != nil {
		return nil, nil, err
	}

	cancel := context.CancelFunc(func() {})
	if p.Timeout != nil {
		secs := p.Timeout.seconds()
		if math.IsNaN(secs) || secs <= 0 {
			return nil, nil, invalidArgument("timeout must be positive, got %v", secs)
		}
		ctx, cancel = context.WithTimeout(ctx, p.Timeout.Deadline())
	}

	method := strings.ToUpper(p.Method)
	if method == "" {
		method = http.MethodGet
	}

	var reader io.Reader
	if b != nil {
		reader = bytes.NewReader(b.data)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		cancel()
		return nil, nil, newError(KindInvalidArgument, "could not build request", err)
	}

	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	if b != nil && b.contentType != "" {
		req.Header.Set("Content-Type", b.contentType)
	}
	for k, v := range p.Headers {
		if !httpguts.ValidHeaderFieldName(k) {
			cancel()
			return nil, nil, newError(KindInvalidHeader, fmt.Sprintf("invalid header name %q", k), nil)
		}
		if !httpguts.ValidHeaderFieldValue(v) {
			cancel()
			return nil, nil, newError(KindInvalidHeader, fmt.Sprintf("invalid value for header %q", k), nil)
		}
		req.Header.Set(k, v)
	}

	setCookieHeader(req.Header, cookies)

	if p.Auth != nil {
		req.SetBasicAuth(p.Auth.Username, p.Auth.Password)
	}

	return req, cancel, nil
}

// setCookieHeader writes cookies as one Cookie header. An explicit Cookie
// header comes first, followed by the session pairs.
func setCookieHeader(h http.Header, cookies map[string]string) {
	if len(cookies) == 0 {
		return
	}
	value := cookieHeader(cookies)
	if explicit := h.Get("Cookie"); explicit != "" {
		value = explicit + "; " + value
	}
	h.Set("Cookie", value)
}

func parseRequestURL(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, newError(KindURLRequired, "a valid URL is required to make a request", nil)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, newError(KindInvalidURL, fmt.Sprintf("invalid URL %q", raw), err)
	}
	if u.Scheme == "" {
		return nil, newError(KindMissingSchema,
			fmt.Sprintf("invalid URL %q: no scheme supplied, perhaps you meant https://%s", raw, raw), nil)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, newError(KindInvalidSchema, fmt.Sprintf("no connection adapters were found for %q", raw), nil)
	}
	if u.Host == "" {
		return nil, newError(KindInvalidURL, fmt.Sprintf("invalid URL %q: no host supplied", raw), nil)
	}
	return u, nil
}

// appendQuery adds params after any query already present in u.
func appendQuery(u *url.URL, params map[string]string) {
	if len(params) == 0 {
		return
	}
	values := make(url.Values, len(params))
	for k, v := range params {
		values.Set(k, v)
	}
	encoded := values.Encode()
	if u.RawQuery == "" {
		u.RawQuery = encoded
	} else {
		u.RawQuery += "&" + encoded
	}
}

// encodeBody applies body precedence: json, then files, then data.
func (s *Session) encodeBody(p *RequestParams) (*encodedBody, error) {
	switch {
	case p.JSON != nil:
		return encodeJSON(p.JSON)
	case len(p.Files) > 0:
		return s.encodeMultipart(p.Files)
	case p.Data != nil:
		return encodeData(p.Data), nil
	}
	return nil, nil
}

func encodeJSON(v any) (*encodedBody, error) {
	val, err := jsonvalue.FromGo(v)
	if err != nil {
		return nil, newError(KindInvalidJSON, "could not serialize json body", err)
	}
	data, err := val.MarshalJSON()
	if err != nil {
		return nil, newError(KindInvalidJSON, "could not serialize json body", err)
	}
	return &encodedBody{data: data, contentType: "application/json"}, nil
}

func encodeData(d DataPayload) *encodedBody {
	switch x := d.(type) {
	case FormFields:
		values := make(url.Values, len(x))
		for k, v := range x {
			values.Set(k, v)
		}
		return &encodedBody{data: []byte(values.Encode()), contentType: "application/x-www-form-urlencoded"}
	case RawBytes:
		return &encodedBody{data: x}
	}
	return nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func (s *Session) encodeMultipart(files map[string]string) (*encodedBody, error) {
	fields := make([]string, 0, len(files))
	for f := range files {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, field := range fields {
		path := files[field]
		info, err := os.Stat(path)
		if err != nil {
			return nil, newError(KindRequest, fmt.Sprintf("could not open file for field %q", field), err)
		}
		if !info.Mode().IsRegular() {
			s.advise(AdvisoryFileMode, fmt.Sprintf("file for field %q is not a regular file: %s", field, path))
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, newError(KindRequest, fmt.Sprintf("could not read file for field %q", field), err)
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(field), quoteEscaper.Replace(filepath.Base(path))))
		h.Set("Content-Type", mimetype.Detect(data).String())

		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, newError(KindRequest, "could not build multipart body", err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, newError(KindRequest, "could not build multipart body", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, newError(KindRequest, "could not build multipart body", err)
	}

	return &encodedBody{data: buf.Bytes(), contentType: mw.FormDataContentType()}, nil
}
