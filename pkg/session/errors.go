package session

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. Kinds form a hierarchy rooted at KindRequest so
// that callers can match broad categories with errors.Is, for example
// errors.Is(err, ErrConnection) also matches proxy and TLS failures.
type Kind uint8

const (
	KindRequest Kind = iota
	KindHTTP
	KindConnection
	KindProxy
	KindSSL
	KindTimeout
	KindConnectTimeout
	KindReadTimeout
	KindURLRequired
	KindTooManyRedirects
	KindMissingSchema
	KindInvalidSchema
	KindInvalidURL
	KindInvalidHeader
	KindInvalidProxyURL
	KindChunkedEncoding
	KindContentDecoding
	KindStreamConsumed
	KindRetry
	KindUnrewindableBody
	KindInvalidJSON
	KindJSONDecode
	KindInvalidArgument
)

type kindInfo struct {
	name    string
	parents []Kind
}

var kinds = map[Kind]kindInfo{
	KindRequest:          {"RequestException", nil},
	KindHTTP:             {"HTTPError", []Kind{KindRequest}},
	KindConnection:       {"ConnectionError", []Kind{KindRequest}},
	KindProxy:            {"ProxyError", []Kind{KindConnection}},
	KindSSL:              {"SSLError", []Kind{KindConnection}},
	KindTimeout:          {"Timeout", []Kind{KindRequest}},
	KindConnectTimeout:   {"ConnectTimeout", []Kind{KindConnection, KindTimeout}},
	KindReadTimeout:      {"ReadTimeout", []Kind{KindTimeout}},
	KindURLRequired:      {"URLRequired", []Kind{KindRequest}},
	KindTooManyRedirects: {"TooManyRedirects", []Kind{KindRequest}},
	KindMissingSchema:    {"MissingSchema", []Kind{KindRequest}},
	KindInvalidSchema:    {"InvalidSchema", []Kind{KindRequest}},
	KindInvalidURL:       {"InvalidURL", []Kind{KindRequest}},
	KindInvalidHeader:    {"InvalidHeader", []Kind{KindRequest}},
	KindInvalidProxyURL:  {"InvalidProxyURL", []Kind{KindInvalidURL}},
	KindChunkedEncoding:  {"ChunkedEncodingError", []Kind{KindRequest}},
	KindContentDecoding:  {"ContentDecodingError", []Kind{KindRequest}},
	KindStreamConsumed:   {"StreamConsumedError", []Kind{KindRequest}},
	KindRetry:            {"RetryError", []Kind{KindRequest}},
	KindUnrewindableBody: {"UnrewindableBodyError", []Kind{KindRequest}},
	KindInvalidJSON:      {"InvalidJSONError", []Kind{KindRequest}},
	KindJSONDecode:       {"JSONDecodeError", []Kind{KindInvalidJSON}},
	KindInvalidArgument:  {"InvalidArgument", []Kind{KindRequest}},
}

func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Parents returns the direct ancestors of k.
func (k Kind) Parents() []Kind {
	return append([]Kind(nil), kinds[k].parents...)
}

// IsA reports whether k is target or descends from it.
func (k Kind) IsA(target Kind) bool {
	if k == target {
		return true
	}
	for _, p := range kinds[k].parents {
		if p.IsA(target) {
			return true
		}
	}
	return false
}

// Sentinels for errors.Is matching. Each matches its kind and every
// descendant kind.
var (
	ErrRequest          = &Error{Kind: KindRequest}
	ErrHTTP             = &Error{Kind: KindHTTP}
	ErrConnection       = &Error{Kind: KindConnection}
	ErrProxy            = &Error{Kind: KindProxy}
	ErrSSL              = &Error{Kind: KindSSL}
	ErrTimeout          = &Error{Kind: KindTimeout}
	ErrConnectTimeout   = &Error{Kind: KindConnectTimeout}
	ErrReadTimeout      = &Error{Kind: KindReadTimeout}
	ErrURLRequired      = &Error{Kind: KindURLRequired}
	ErrTooManyRedirects = &Error{Kind: KindTooManyRedirects}
	ErrMissingSchema    = &Error{Kind: KindMissingSchema}
	ErrInvalidSchema    = &Error{Kind: KindInvalidSchema}
	ErrInvalidURL       = &Error{Kind: KindInvalidURL}
	ErrInvalidHeader    = &Error{Kind: KindInvalidHeader}
	ErrInvalidProxyURL  = &Error{Kind: KindInvalidProxyURL}
	ErrChunkedEncoding  = &Error{Kind: KindChunkedEncoding}
	ErrContentDecoding  = &Error{Kind: KindContentDecoding}
	ErrStreamConsumed   = &Error{Kind: KindStreamConsumed}
	ErrInvalidJSON      = &Error{Kind: KindInvalidJSON}
	ErrJSONDecode       = &Error{Kind: KindJSONDecode}
	ErrInvalidArgument  = &Error{Kind: KindInvalidArgument}
)

// Error is the error type returned by Session operations.
type Error struct {
	Kind    Kind
	Message string
	Method  string
	URL     string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.URL != "" {
		msg = fmt.Sprintf("%s %s: %s", e.Method, e.URL, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error when e's kind descends from the target's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind.IsA(t.Kind)
}

func newError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	var de *JSONDecodeError
	if errors.As(err, &de) {
		return KindJSONDecode, true
	}
	return 0, false
}

// JSONDecodeError reports a body that could not be parsed as JSON.
type JSONDecodeError struct {
	Msg  string
	Doc  string
	Pos  int
	Line int
	Col  int
}

func newJSONDecodeError(msg string, doc []byte, pos int) *JSONDecodeError {
	if pos > len(doc) {
		pos = len(doc)
	}
	line, col := 1, 1
	for _, c := range doc[:pos] {
		if c == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return &JSONDecodeError{Msg: msg, Doc: lossyString(doc), Pos: pos, Line: line, Col: col}
}

func (e *JSONDecodeError) Error() string {
	return fmt.Sprintf("%s: line %d column %d (char %d)", e.Msg, e.Line, e.Col, e.Pos)
}

// Is lets errors.Is(err, ErrJSONDecode) and errors.Is(err, ErrInvalidJSON)
// match decode failures.
func (e *JSONDecodeError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && KindJSONDecode.IsA(t.Kind)
}

// Advisory is a non-fatal condition reported while building or reading a
// request. Advisories never abort the operation.
type Advisory uint8

const (
	AdvisoryFileMode Advisory = iota + 1
	AdvisoryDependency
)

func (a Advisory) String() string {
	switch a {
	case AdvisoryFileMode:
		return "FileModeWarning"
	case AdvisoryDependency:
		return "RequestsDependencyWarning"
	}
	return fmt.Sprintf("Advisory(%d)", uint8(a))
}

// AdvisoryHandler receives advisories as they occur.
type AdvisoryHandler func(a Advisory, msg string)
