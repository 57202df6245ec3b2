package request

import (
	"github.com/Brownie44l1/pollhttpd/internal/headers"
)

// Supported methods
const (
	MethodGet  = "GET"
	MethodPost = "POST"
	MethodHead = "HEAD"
)

// Request is a fully parsed HTTP request. The parser only hands out
// requests that passed every stage.
type Request struct {
	Method   string
	Path     string
	Protocol string
	Headers  *headers.Headers
	Body     []byte
}

func newRequest() *Request {
	return &Request{
		Headers: headers.NewHeaders(),
	}
}

// Header returns the first value for key, compared case-insensitively
func (r *Request) Header(key string) (string, bool) {
	return r.Headers.Get(key)
}

// ContentLength returns the declared Content-Length, or -1 when absent
func (r *Request) ContentLength() int64 {
	cl, ok := r.Headers.Get("Content-Length")
	if !ok {
		return -1
	}
	n, valid := parseContentLength(cl)
	if !valid {
		return -1
	}
	return n
}

// BodyLen returns the number of body bytes
func (r *Request) BodyLen() int {
	return len(r.Body)
}

// ReleaseHeaders drops the header list. Safe to call repeatedly.
func (r *Request) ReleaseHeaders() {
	if r == nil {
		return
	}
	r.Headers.Reset()
}

// ReleaseBody drops the body. Safe to call repeatedly.
func (r *Request) ReleaseBody() {
	if r == nil || r.Body == nil {
		return
	}
	clear(r.Body)
	r.Body = nil
}

// Release drops everything the request owns.
func (r *Request) Release() {
	r.ReleaseHeaders()
	r.ReleaseBody()
}
