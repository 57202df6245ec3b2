package response

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/Brownie44l1/pollhttpd/internal/headers"
	"github.com/Brownie44l1/pollhttpd/internal/request"
)

var (
	ErrBodyTooLarge     = errors.New("response body too large")
	ErrResponseTooLarge = errors.New("serialized response exceeds buffer")
)

// Response is a fully built response. Once built it always carries exactly
// Connection, Content-Length and Content-Type, in that order.
type Response struct {
	Protocol   string
	StatusCode StatusCode
	Reason     string
	Headers    *headers.Headers
	Body       []byte
}

// Builder builds and serializes responses within fixed bounds.
type Builder struct {
	MaxBody    int
	BufferSize int
}

// DefaultBuilder sizes the output buffer for the largest header block and
// body the parser accepts, plus room for the status line.
func DefaultBuilder() Builder {
	return Builder{
		MaxBody:    request.MaxBodySize,
		BufferSize: request.MaxHeaderBlock + request.MaxBodySize + 1024,
	}
}

var defaultBuilder = DefaultBuilder()

// Build builds a response for outcome with the default bounds
func Build(outcome request.Outcome, body string) (*Response, error) {
	return defaultBuilder.Build(outcome, body)
}

// Build maps outcome to a status and attaches body.
func (b Builder) Build(outcome request.Outcome, body string) (*Response, error) {
	return b.BuildStatus(StatusFor(outcome), body)
}

// BuildStatus builds a response with an explicit status, e.g. 201 for a
// successful create.
func (b Builder) BuildStatus(code StatusCode, body string) (*Response, error) {
	if len(body) > b.MaxBody {
		return nil, fmt.Errorf("%w: %d > %d", ErrBodyTooLarge, len(body), b.MaxBody)
	}

	r := &Response{
		Protocol:   request.Protocol,
		StatusCode: code,
		Reason:     ReasonFor(code),
		Headers:    headers.NewHeaders(),
	}
	if len(body) > 0 {
		r.Body = []byte(body)
	}

	r.Headers.Add("Connection", "close")
	r.Headers.Add("Content-Length", strconv.Itoa(len(r.Body)))
	r.Headers.Add("Content-Type", request.ContentType)
	return r, nil
}

// Release drops the headers and body. Safe to call repeatedly.
func (r *Response) Release() {
	if r == nil {
		return
	}
	r.Headers.Reset()
	if r.Body != nil {
		clear(r.Body)
		r.Body = nil
	}
}
