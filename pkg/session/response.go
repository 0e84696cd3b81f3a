package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/saintfish/chardet"

	"github.com/sesh/pkg/jsonvalue"
)

// Response is a completed HTTP exchange. The body is read once into an
// immutable buffer which every accessor shares; none of them consume it.
type Response struct {
	Status uint16
	// URL is the final URL after redirects.
	URL string
	// Headers maps each header name to its values joined by ", ".
	Headers map[string]string
	Header  http.Header
	Elapsed time.Duration
	Method  string

	reason string
	body   []byte

	mu        sync.Mutex
	stream    *bodyStream
	streaming bool
	loaded    bool
}

func newResponse(resp *http.Response, method string, elapsed time.Duration) *Response {
	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		headers[k] = strings.Join(v, ", ")
	}

	reason := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}

	return &Response{
		Status:  uint16(resp.StatusCode),
		URL:     resp.Request.URL.String(),
		Headers: headers,
		Header:  resp.Header,
		Elapsed: elapsed,
		Method:  method,
		reason:  reason,
	}
}

// materialize reads the whole body and strips its content coding.
func (r *Response) materialize(resp *http.Response, advise AdvisoryHandler) error {
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return classifyRead(err)
	}

	body, err := decodeBody(resp.Header.Get("Content-Encoding"), raw, advise)
	if err != nil {
		return err
	}
	r.body = body
	r.loaded = true
	return nil
}

func decodeBody(contentEncoding string, raw []byte, advise AdvisoryHandler) ([]byte, error) {
	if len(raw) == 0 || contentEncoding == "" {
		return raw, nil
	}
	dr, closers, err := decodingReader(contentEncoding, bytes.NewReader(raw), advise)
	defer closeAll(closers)
	if err != nil {
		return nil, newError(KindContentDecoding, "failed to decode response body", err)
	}
	out, err := io.ReadAll(dr)
	if err != nil {
		return nil, newError(KindContentDecoding, "failed to decode response body", err)
	}
	return out, nil
}

// Reason is the status text sent by the server.
func (r *Response) Reason() string { return r.reason }

// OK reports whether Status is below 400.
func (r *Response) OK() bool { return r.Status < 400 }

// RaiseForStatus returns a KindHTTP error for 4xx and 5xx responses.
func (r *Response) RaiseForStatus() error {
	var class string
	switch {
	case r.Status >= 400 && r.Status < 500:
		class = "Client Error"
	case r.Status >= 500 && r.Status < 600:
		class = "Server Error"
	default:
		return nil
	}
	return &Error{
		Kind:    KindHTTP,
		Message: fmt.Sprintf("%d %s: %s", r.Status, class, r.reason),
		Method:  r.Method,
		URL:     r.URL,
	}
}

// Content returns a copy of the body. A streamed response that has not
// been loaded has an empty body.
func (r *Response) Content() []byte {
	b := r.bytes()
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (r *Response) bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body
}

// Text decodes the body as UTF-8. Each maximal invalid subsequence is
// replaced with one U+FFFD.
func (r *Response) Text() string {
	return lossyString(r.bytes())
}

func lossyString(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	var sb strings.Builder
	sb.Grow(len(b) + 8)
	for len(b) > 0 {
		c, size := utf8.DecodeRune(b)
		if c == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
			size = invalidPrefixLen(b)
		} else {
			sb.Write(b[:size])
		}
		b = b[size:]
	}
	return sb.String()
}

// invalidPrefixLen returns the length of the truncated sequence at the
// start of b: the lead byte plus the continuation bytes that could still
// have completed it. b is known not to start with a valid rune.
func invalidPrefixLen(b []byte) int {
	lo, hi := byte(0x80), byte(0xBF)
	var need int
	switch lead := b[0]; {
	case lead >= 0xC2 && lead <= 0xDF:
		need = 1
	case lead == 0xE0:
		need, lo = 2, 0xA0
	case lead == 0xED:
		need, hi = 2, 0x9F
	case lead >= 0xE1 && lead <= 0xEF:
		need = 2
	case lead == 0xF0:
		need, lo = 3, 0x90
	case lead == 0xF4:
		need, hi = 3, 0x8F
	case lead >= 0xF1 && lead <= 0xF3:
		need = 3
	default:
		return 1
	}

	n := 1
	for ; n <= need && n < len(b); n++ {
		if b[n] < lo || b[n] > hi {
			break
		}
		lo, hi = 0x80, 0xBF
	}
	return n
}

// JSONValue parses the body into a jsonvalue.Value.
func (r *Response) JSONValue() (jsonvalue.Value, error) {
	b := r.bytes()
	v, err := jsonvalue.Parse(b)
	if err != nil {
		var se *jsonvalue.SyntaxError
		if errors.As(err, &se) {
			return jsonvalue.Value{}, newJSONDecodeError(se.Msg, b, se.Offset)
		}
		return jsonvalue.Value{}, newJSONDecodeError(err.Error(), b, 0)
	}
	return v, nil
}

// JSON parses the body into plain Go values. Objects become map[string]any,
// arrays []any, integers int64 and other numbers float64.
func (r *Response) JSON() (any, error) {
	v, err := r.JSONValue()
	if err != nil {
		return nil, err
	}
	return v.Interface(), nil
}

// DecodeJSON unmarshals the body into out.
func (r *Response) DecodeJSON(out any) error {
	if _, err := r.JSONValue(); err != nil {
		return err
	}
	if err := sonic.Unmarshal(r.bytes(), out); err != nil {
		return newError(KindInvalidJSON, "could not decode body", err)
	}
	return nil
}

// Encoding returns the charset named by Content-Type. Text types without
// one default to ISO-8859-1 and JSON to utf-8.
func (r *Response) Encoding() string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	if cs, ok := params["charset"]; ok {
		return strings.Trim(cs, `'"`)
	}
	switch {
	case strings.HasPrefix(mediaType, "text/"):
		return "ISO-8859-1"
	case mediaType == "application/json":
		return "utf-8"
	}
	return ""
}

// ApparentEncoding guesses the body's charset from its bytes.
func (r *Response) ApparentEncoding() string {
	b := r.bytes()
	if len(b) == 0 {
		return ""
	}
	res, err := chardet.NewTextDetector().DetectBest(b)
	if err != nil {
		return ""
	}
	return res.Charset
}

// Cookies returns the name/value pairs set by this response.
func (r *Response) Cookies() map[string]string {
	out := make(map[string]string)
	for _, c := range parseSetCookies(r.Header) {
		out[c[0]] = c[1]
	}
	return out
}

// Stream hands out the unread body of a streamed response. It can be
// taken once; later calls fail with KindStreamConsumed.
func (r *Response) Stream() (io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.streaming || r.loaded || r.stream == nil || r.stream.taken {
		return nil, newError(KindStreamConsumed, "the content for this response was already consumed", nil)
	}
	r.stream.taken = true
	return r.stream, nil
}

// IterContent reads a streamed body in chunks of at most size bytes and
// passes each to fn. A loaded body is replayed from memory.
func (r *Response) IterContent(size int, fn func([]byte) error) error {
	if size <= 0 {
		size = 512
	}

	r.mu.Lock()
	loaded := r.loaded
	r.mu.Unlock()
	if loaded {
		b := r.bytes()
		for len(b) > 0 {
			n := min(size, len(b))
			if err := fn(b[:n]); err != nil {
				return err
			}
			b = b[n:]
		}
		return nil
	}

	rc, err := r.Stream()
	if err != nil {
		return err
	}
	defer rc.Close()

	buf := make([]byte, size)
	for {
		n, err := rc.Read(buf)
		if n > 0 {
			if ferr := fn(buf[:n]); ferr != nil {
				return ferr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Load reads a streamed body into memory so Content, Text and JSON see it.
// It is a no-op for responses that are already loaded.
func (r *Response) Load() error {
	r.mu.Lock()
	if r.loaded {
		r.mu.Unlock()
		return nil
	}
	if r.stream == nil || r.stream.taken {
		r.mu.Unlock()
		return newError(KindStreamConsumed, "the content for this response was already consumed", nil)
	}
	s := r.stream
	s.taken = true
	r.mu.Unlock()

	data, err := io.ReadAll(s)
	s.Close()
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.body = data
	r.loaded = true
	r.mu.Unlock()
	return nil
}

// Close releases the connection held by a streamed response.
func (r *Response) Close() error {
	r.mu.Lock()
	s := r.stream
	r.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}

// bodyStream decodes a response body lazily. Closing it releases the
// connection and the request deadline.
type bodyStream struct {
	raw      io.ReadCloser
	src      *sourceReader
	encoding string
	cancel   context.CancelFunc
	advise   AdvisoryHandler

	once    sync.Once
	decoded io.Reader
	closers []io.Closer
	initErr error

	taken  bool
	closed sync.Once
}

func newBodyStream(resp *http.Response, cancel context.CancelFunc, advise AdvisoryHandler) *bodyStream {
	return &bodyStream{
		raw:      resp.Body,
		src:      &sourceReader{r: resp.Body},
		encoding: resp.Header.Get("Content-Encoding"),
		cancel:   cancel,
		advise:   advise,
	}
}

func (s *bodyStream) init() error {
	s.once.Do(func() {
		var err error
		s.decoded, s.closers, err = decodingReader(s.encoding, s.src, s.advise)
		switch {
		case err == io.EOF && s.src.err == nil:
			// Empty body: nothing to decode.
			s.decoded = bytes.NewReader(nil)
		case err != nil:
			s.initErr = s.wrap(err)
		}
	})
	return s.initErr
}

func (s *bodyStream) Read(p []byte) (int, error) {
	if err := s.init(); err != nil {
		return 0, err
	}
	n, err := s.decoded.Read(p)
	if err != nil && err != io.EOF {
		return n, s.wrap(err)
	}
	return n, err
}

// wrap attributes a read failure to the connection when the network body
// failed, and to the content coding otherwise.
func (s *bodyStream) wrap(err error) error {
	if s.src.err != nil {
		return classifyRead(s.src.err)
	}
	return newError(KindContentDecoding, "failed to decode response body", err)
}

func (s *bodyStream) Close() error {
	var err error
	s.closed.Do(func() {
		closeAll(s.closers)
		err = s.raw.Close()
		if s.cancel != nil {
			s.cancel()
		}
	})
	return err
}
