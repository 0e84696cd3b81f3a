package session

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// DefaultAcceptEncoding lists the content codings responses are decoded
// from.
const DefaultAcceptEncoding = "gzip, deflate, zstd"

// sourceReader records the first non-EOF error from the network body so a
// broken connection can be told apart from a corrupt encoding.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF && s.err == nil {
		s.err = err
	}
	return n, err
}

// decodingReader undoes the Content-Encoding of a response body. Codings
// are removed in reverse order of application. Unknown codings are
// reported through advise and the remaining data is passed through as is.
func decodingReader(contentEncoding string, r io.Reader, advise AdvisoryHandler) (io.Reader, []io.Closer, error) {
	var closers []io.Closer
	codings := strings.Split(contentEncoding, ",")
	for i := len(codings) - 1; i >= 0; i-- {
		coding := strings.ToLower(strings.TrimSpace(codings[i]))
		switch coding {
		case "", "identity":
			continue
		case "gzip", "x-gzip":
			gz, err := gzip.NewReader(r)
			if err != nil {
				return nil, closers, err
			}
			closers = append(closers, gz)
			r = gz
		case "deflate":
			dr, err := deflateReader(r)
			if err != nil {
				return nil, closers, err
			}
			closers = append(closers, dr)
			r = dr
		case "zstd":
			zr, err := zstd.NewReader(r)
			if err != nil {
				return nil, closers, err
			}
			rc := zr.IOReadCloser()
			closers = append(closers, rc)
			r = rc
		default:
			if advise != nil {
				advise(AdvisoryDependency, fmt.Sprintf("no decoder for content encoding %q, body left encoded", coding))
			}
			return r, closers, nil
		}
	}
	return r, closers, nil
}

// deflateReader accepts both zlib wrapped and raw deflate streams; servers
// disagree on which one "deflate" means.
func deflateReader(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if len(head) == 2 && head[0]&0x0f == 8 && (uint16(head[0])<<8|uint16(head[1]))%31 == 0 {
		return zlib.NewReader(br)
	}
	return flate.NewReader(br), nil
}

func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i].Close()
	}
}
