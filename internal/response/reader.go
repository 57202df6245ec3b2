package response

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/Brownie44l1/pollhttpd/internal/headers"
)

var ErrMalformedResponse = errors.New("malformed response")

var (
	crlf            = []byte("\r\n")
	headerSeparator = []byte("\r\n\r\n")
)

// readLimits are deliberately loose: we only read back what we wrote.
var readLimits = headers.Limits{MaxHeaders: 64, MaxKeyLen: 256, MaxValueLen: 1024}

// ReadResponse parses a serialized response. Content-Length must match the
// bytes after the header block exactly.
func ReadResponse(data []byte) (*Response, error) {
	lineEnd := bytes.Index(data, crlf)
	if lineEnd == -1 {
		return nil, fmt.Errorf("%w: no status line", ErrMalformedResponse)
	}

	parts := bytes.SplitN(data[:lineEnd], []byte(" "), 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: status line %q", ErrMalformedResponse, data[:lineEnd])
	}
	code, err := strconv.Atoi(string(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("%w: status code %q", ErrMalformedResponse, parts[1])
	}

	r := &Response{
		Protocol:   string(parts[0]),
		StatusCode: StatusCode(code),
		Reason:     string(parts[2]),
		Headers:    headers.NewHeaders(),
	}

	rest := data[lineEnd+2:]
	var block, body []byte
	if bytes.HasPrefix(rest, crlf) {
		body = rest[2:]
	} else {
		idx := bytes.Index(rest, headerSeparator)
		if idx == -1 {
			return nil, fmt.Errorf("%w: unterminated headers", ErrMalformedResponse)
		}
		block = rest[:idx+2]
		body = rest[idx+4:]
	}

	if err := r.Headers.Parse(block, readLimits); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if cl, ok := r.Headers.Get("Content-Length"); ok {
		n, err := strconv.Atoi(cl)
		if err != nil || n != len(body) {
			return nil, fmt.Errorf("%w: Content-Length %q for %d body bytes", ErrMalformedResponse, cl, len(body))
		}
	}

	if len(body) > 0 {
		r.Body = bytes.Clone(body)
	}
	return r, nil
}
