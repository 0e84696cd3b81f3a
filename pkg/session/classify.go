package session

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/sesh/pkg/protocol"
)

// classifySend maps an error from http.Client.Do onto a Kind.
func classifySend(err error) *Error {
	var opErr *net.OpError
	isOp := errors.As(err, &opErr)

	switch {
	case errors.Is(err, protocol.ErrTooManyRedirects):
		return newError(KindTooManyRedirects, "too many redirects", err)
	case isTimeout(err):
		if isOp && opErr.Op == "dial" {
			return newError(KindConnectTimeout, "connection timed out", err)
		}
		return newError(KindTimeout, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return newError(KindRequest, "request canceled", err)
	case isOp && opErr.Op == "proxyconnect":
		return newError(KindProxy, "cannot connect to proxy", err)
	case isTLSError(err):
		return newError(KindSSL, "TLS handshake failed", err)
	}

	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr):
		return newError(KindConnection, "name resolution failed", err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return newError(KindConnection, "connection refused", err)
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return newError(KindConnection, "connection aborted", err)
	}
	return newError(KindConnection, "connection failed", err)
}

// classifyRead maps an error from reading the response body onto a Kind.
func classifyRead(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if isTimeout(err) {
		return newError(KindReadTimeout, "read timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return newError(KindRequest, "request canceled", err)
	}
	return newError(KindChunkedEncoding, "connection broken while reading body", err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

func isTLSError(err error) bool {
	var (
		verifyErr    *tls.CertificateVerificationError
		recordErr    tls.RecordHeaderError
		alertErr     tls.AlertError
		unknownAuth  x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidCert  x509.CertificateInvalidError
		systemRoots  x509.SystemRootsError
		insecureAlgo x509.InsecureAlgorithmError
	)
	return errors.As(err, &verifyErr) ||
		errors.As(err, &recordErr) ||
		errors.As(err, &alertErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidCert) ||
		errors.As(err, &systemRoots) ||
		errors.As(err, &insecureAlgo)
}
