package request

import (
	"bytes"

	"github.com/Brownie44l1/pollhttpd/internal/headers"
)

// Complete reports whether data holds a whole request message, or enough
// bytes to know the parser will reject it. Until then the caller should keep
// reading instead of answering a request that is merely split across reads.
func (p Parser) Complete(data []byte) bool {
	lineEnd := bytes.Index(data, crlf)
	if lineEnd == -1 {
		return len(data) > p.Limits.MaxRequestLine
	}
	if lineEnd > p.Limits.MaxRequestLine {
		return true
	}

	rest := data[lineEnd+2:]
	var block, body []byte
	if bytes.HasPrefix(rest, crlf) {
		body = rest[2:]
	} else {
		idx := bytes.Index(rest, headerTerminus)
		if idx == -1 {
			return len(rest) > p.Limits.MaxHeaderBlock
		}
		block = rest[:idx+2]
		body = rest[idx+4:]
		if len(block) > p.Limits.MaxHeaderBlock {
			return true
		}
	}

	h := headers.NewHeaders()
	if err := h.Parse(block, p.Limits.headerLimits()); err != nil {
		return true
	}
	cl, ok := h.Get("Content-Length")
	if !ok {
		return true
	}
	n, valid := parseContentLength(cl)
	if !valid || n > int64(p.Limits.MaxBody) {
		return true
	}
	return int64(len(body)) >= n
}
