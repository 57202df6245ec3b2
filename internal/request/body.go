package request

import (
	"bytes"
	"strconv"
)

// ContentType is the only media type accepted.
const ContentType = "text/plain"

// parseBody validates the bytes after the blank line and captures them
// verbatim. Order: Content-Type, Content-Length, size.
func (p Parser) parseBody(data []byte, req *Request) Outcome {
	ct, hasCT := req.Headers.Get("Content-Type")
	if req.Method == MethodPost && !hasCT {
		return UnsupportedContentType
	}
	if hasCT && ct != ContentType {
		return UnsupportedContentType
	}

	if cl, ok := req.Headers.Get("Content-Length"); ok {
		n, valid := parseContentLength(cl)
		if !valid {
			return ContentLengthInvalid
		}
		if n != int64(len(data)) {
			return ContentLengthMismatch
		}
	}

	if len(data) > p.Limits.MaxBody {
		return BodyTooLarge
	}

	if len(data) > 0 {
		req.Body = bytes.Clone(data)
	}
	return OK
}

// parseContentLength accepts a base-10 non-negative integer.
func parseContentLength(v string) (int64, bool) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
