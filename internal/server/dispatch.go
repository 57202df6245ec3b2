package server

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/Brownie44l1/pollhttpd/internal/request"
	"github.com/Brownie44l1/pollhttpd/internal/response"
)

var ErrShortWrite = errors.New("short write")

// Exchange is the engine side of one request/response: the bytes received
// so far and a way to send the answer.
type Exchange interface {
	Bytes() []byte
	Write(p []byte) (int, error)
	RemoteAddr() string
}

// BodyFunc produces the body of a successful response
type BodyFunc func(r *request.Request) string

// EchoBody answers with the request body
func EchoBody(r *request.Request) string {
	return string(r.Body)
}

// Result describes one dispatched exchange
type Result struct {
	Outcome request.Outcome
	Status  response.StatusCode
	Written int
	Err     error
}

// Dispatcher turns received bytes into exactly one response. It is shared by
// both engines and owns no connection state.
type Dispatcher struct {
	parser  request.Parser
	builder response.Builder
	framing string
	body    BodyFunc
	logger  Logger
	metrics *Metrics
}

func NewDispatcher(cfg Config, body BodyFunc, logger Logger, metrics *Metrics) *Dispatcher {
	if logger == nil {
		logger = &NullLogger{}
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	return &Dispatcher{
		parser: request.NewParser(cfg.Limits),
		builder: response.Builder{
			MaxBody:    cfg.Limits.MaxBody,
			BufferSize: cfg.ResponseBufferSize,
		},
		framing: cfg.Framing,
		body:    body,
		logger:  logger,
		metrics: metrics,
	}
}

// Ready reports whether buf should be answered now. A full buffer is always
// answered.
func (d *Dispatcher) Ready(buf []byte, full bool) bool {
	if full || d.framing == FramingOneShot {
		return true
	}
	return d.parser.Complete(buf)
}

// Dispatch parses, builds, serializes and writes once. Write failures are
// reported in the Result and logged; the caller tears the connection down
// either way.
func (d *Dispatcher) Dispatch(x Exchange) Result {
	start := time.Now()

	req, outcome := d.parser.Parse(x.Bytes())
	res := Result{Outcome: outcome}

	code := response.StatusFor(outcome)
	var body string
	if outcome == request.OK && d.body != nil {
		b, err := callBody(d.body, req, d.logger)
		if err != nil {
			code = response.StatusInternalServerError
		}
		body = b
	}

	out := getOutputBuffer()
	defer putOutputBuffer(out)

	res.Status = d.render(out, code, body)
	req.Release()

	n, err := x.Write(out.Bytes())
	res.Written = n
	switch {
	case err != nil:
		res.Err = fmt.Errorf("write response: %w", err)
	case n < out.Len():
		res.Err = fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, out.Len())
	}

	d.metrics.RecordRequest(int(res.Status), outcome, time.Since(start))
	if res.Err != nil {
		d.metrics.WriteFailed()
		d.logger.Warn("Response write failed",
			Field{"remote", x.RemoteAddr()},
			Field{"status", int(res.Status)},
			Field{"error", res.Err},
		)
		return res
	}

	fields := []Field{
		{"remote", x.RemoteAddr()},
		{"outcome", outcome.String()},
		{"status", int(res.Status)},
		{"bytes", n},
		{"duration", time.Since(start).String()},
	}
	if req != nil {
		fields = append(fields, Field{"method", req.Method}, Field{"path", req.Path})
	}
	if outcome == request.OK {
		d.logger.Info("Request served", fields...)
	} else {
		d.logger.Debug("Request rejected", fields...)
	}
	return res
}

// fallbackResponse is sent when the real response cannot be built or does
// not fit the output buffer.
const fallbackResponse = "HTTP/1.1 500 Internal Server Error\r\n" +
	"Connection: close\r\n" +
	"Content-Length: 0\r\n" +
	"Content-Type: text/plain\r\n" +
	"\r\n"

// render writes the response into out, degrading to an empty 500 when it
// cannot be built or serialized.
func (d *Dispatcher) render(out *bytes.Buffer, code response.StatusCode, body string) response.StatusCode {
	resp, err := d.builder.BuildStatus(code, body)
	if err == nil {
		defer resp.Release()
		err = d.builder.SerializeTo(out, resp)
	}
	if err == nil {
		return resp.StatusCode
	}

	d.logger.Error("Failed to build response",
		Field{"status", int(code)},
		Field{"error", err},
	)
	out.Reset()
	out.WriteString(fallbackResponse)
	return response.StatusInternalServerError
}
