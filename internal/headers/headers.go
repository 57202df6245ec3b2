package headers

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedHeader     = errors.New("malformed header")
	ErrTooManyHeaders      = errors.New("too many header lines")
	ErrHeaderKeyTooLarge   = errors.New("header key too large")
	ErrHeaderValueTooLarge = errors.New("header value too large")
)

var crlf = []byte("\r\n")

// Field is a single header line after trimming.
type Field struct {
	Key   string
	Value string
}

// Headers keeps header fields in the order they arrived. Duplicate keys are
// kept; lookups return the first case-insensitive match.
type Headers struct {
	fields []Field
}

func NewHeaders() *Headers {
	return &Headers{}
}

// Get returns the first value for a header
func (h *Headers) Get(key string) (string, bool) {
	if h == nil {
		return "", false
	}
	for _, f := range h.fields {
		if strings.EqualFold(f.Key, key) {
			return f.Value, true
		}
	}
	return "", false
}

// Values returns every value stored under key, in insertion order
func (h *Headers) Values(key string) []string {
	if h == nil {
		return nil
	}
	var out []string
	for _, f := range h.fields {
		if strings.EqualFold(f.Key, key) {
			out = append(out, f.Value)
		}
	}
	return out
}

// Add appends a field, keeping any existing ones with the same key
func (h *Headers) Add(key, value string) {
	h.fields = append(h.fields, Field{Key: key, Value: value})
}

// Len returns the number of stored fields
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.fields)
}

// All returns the fields in insertion order. The slice must not be modified.
func (h *Headers) All() []Field {
	if h == nil {
		return nil
	}
	return h.fields
}

// Reset drops every field. Calling it again is a no-op.
func (h *Headers) Reset() {
	if h == nil || h.fields == nil {
		return
	}
	clear(h.fields)
	h.fields = nil
}

// Limits bounds a header block.
type Limits struct {
	MaxHeaders  int
	MaxKeyLen   int
	MaxValueLen int
}

// Parse parses a complete header block: zero or more "Key: Value\r\n" lines,
// without the terminating blank line. A single bad line rejects the whole
// block and nothing is added to h.
func (h *Headers) Parse(block []byte, lim Limits) error {
	if len(block) == 0 {
		return nil
	}
	if !bytes.HasSuffix(block, crlf) {
		return fmt.Errorf("%w: unterminated line", ErrMalformedHeader)
	}

	count := bytes.Count(block, crlf)
	if count > lim.MaxHeaders {
		return fmt.Errorf("%w: %d > %d", ErrTooManyHeaders, count, lim.MaxHeaders)
	}

	parsed := make([]Field, 0, count)
	rest := block
	for len(rest) > 0 {
		idx := bytes.Index(rest, crlf)
		line := rest[:idx]
		rest = rest[idx+2:]

		f, err := parseLine(line, lim)
		if err != nil {
			return err
		}
		parsed = append(parsed, f)
	}

	h.fields = append(h.fields, parsed...)
	return nil
}

func parseLine(line []byte, lim Limits) (Field, error) {
	if len(line) == 0 {
		return Field{}, fmt.Errorf("%w: empty line inside block", ErrMalformedHeader)
	}

	// Obsolete line folding is not supported
	if line[0] == ' ' || line[0] == '\t' {
		return Field{}, fmt.Errorf("%w: obsolete line folding", ErrMalformedHeader)
	}

	colonIdx := bytes.IndexByte(line, ':')
	if colonIdx == -1 {
		return Field{}, fmt.Errorf("%w: no colon", ErrMalformedHeader)
	}

	key := strings.Trim(string(line[:colonIdx]), " ")
	value := strings.Trim(string(line[colonIdx+1:]), " ")

	if len(key) > lim.MaxKeyLen {
		return Field{}, fmt.Errorf("%w: %d bytes", ErrHeaderKeyTooLarge, len(key))
	}
	if len(value) > lim.MaxValueLen {
		return Field{}, fmt.Errorf("%w: %d bytes", ErrHeaderValueTooLarge, len(value))
	}

	return Field{Key: key, Value: value}, nil
}
