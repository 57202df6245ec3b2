package response

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// writerState tracks what's been written so far
type writerState int

const (
	stateStart writerState = iota
	stateStatusWritten
	stateHeadersWritten
	stateBodyWritten
)

// Writer renders a response in wire order: status line, header lines,
// blank line, body.
type Writer struct {
	w     io.Writer
	state writerState
}

// NewWriter creates a new response writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:     w,
		state: stateStart,
	}
}

// WriteStatusLine writes PROTOCOL SP CODE SP REASON CRLF
func (w *Writer) WriteStatusLine(r *Response) error {
	if w.state != stateStart {
		return fmt.Errorf("status line already written")
	}

	line := r.Protocol + " " + strconv.Itoa(int(r.StatusCode)) + " " + r.Reason + "\r\n"
	if _, err := io.WriteString(w.w, line); err != nil {
		return err
	}

	w.state = stateStatusWritten
	return nil
}

// WriteHeaders writes every header line followed by the blank line
func (w *Writer) WriteHeaders(r *Response) error {
	if w.state != stateStatusWritten {
		return fmt.Errorf("must write status line before headers")
	}

	for _, f := range r.Headers.All() {
		if _, err := io.WriteString(w.w, f.Key+": "+f.Value+"\r\n"); err != nil {
			return err
		}
	}

	if _, err := io.WriteString(w.w, "\r\n"); err != nil {
		return err
	}

	w.state = stateHeadersWritten
	return nil
}

// WriteBody writes the raw body bytes
func (w *Writer) WriteBody(r *Response) error {
	if w.state != stateHeadersWritten {
		return fmt.Errorf("must write headers before body")
	}

	if len(r.Body) > 0 {
		if _, err := w.w.Write(r.Body); err != nil {
			return err
		}
	}

	w.state = stateBodyWritten
	return nil
}

// WriteResponse writes the whole response
func (w *Writer) WriteResponse(r *Response) error {
	if err := w.WriteStatusLine(r); err != nil {
		return err
	}
	if err := w.WriteHeaders(r); err != nil {
		return err
	}
	return w.WriteBody(r)
}

// cappedBuffer refuses any write that would take it past limit.
type cappedBuffer struct {
	buf   *bytes.Buffer
	limit int
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if c.buf.Len()+len(p) > c.limit {
		return 0, ErrResponseTooLarge
	}
	return c.buf.Write(p)
}

// Serialize renders r with the default buffer capacity
func (r *Response) Serialize() ([]byte, error) {
	return defaultBuilder.Serialize(r)
}

// Serialize renders r into a new byte slice, failing if the result would not
// fit in b.BufferSize bytes.
func (b Builder) Serialize(r *Response) ([]byte, error) {
	var buf bytes.Buffer
	if err := b.SerializeTo(&buf, r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SerializeTo appends the rendered response to buf. On failure buf holds a
// truncated rendering and must be discarded by the caller.
func (b Builder) SerializeTo(buf *bytes.Buffer, r *Response) error {
	start := buf.Len()
	w := NewWriter(&cappedBuffer{buf: buf, limit: start + b.BufferSize})
	if err := w.WriteResponse(r); err != nil {
		return fmt.Errorf("serialize %d response: %w", r.StatusCode, err)
	}
	return nil
}
