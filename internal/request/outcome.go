package request

import "errors"

// Outcome classifies the result of one parse attempt.
type Outcome int

const (
	OK Outcome = iota
	InvalidMethod
	InvalidPath
	InvalidProtocol
	MalformedRequestLine
	UnterminatedRequestLine
	MalformedHeaders
	TooManyHeaders
	HeadersTooLarge
	HeaderKeyTooLarge
	HeaderValueTooLarge
	BodyTooLarge
	ContentLengthInvalid
	ContentLengthMismatch
	UnsupportedContentType
	OutOfMemory
)

var (
	ErrInvalidMethod           = errors.New("invalid HTTP method")
	ErrInvalidPath             = errors.New("invalid request path")
	ErrUnsupportedVersion      = errors.New("unsupported HTTP version")
	ErrMalformedRequestLine    = errors.New("malformed request line")
	ErrUnterminatedRequestLine = errors.New("unterminated request line")
	ErrMalformedHeaders        = errors.New("malformed headers")
	ErrTooManyHeaders          = errors.New("too many header lines")
	ErrHeaderTooLarge          = errors.New("headers too large")
	ErrHeaderKeyTooLarge       = errors.New("header key too large")
	ErrHeaderValueTooLarge     = errors.New("header value too large")
	ErrBodyTooLarge            = errors.New("body too large")
	ErrContentLengthInvalid    = errors.New("invalid Content-Length")
	ErrContentLengthMismatch   = errors.New("Content-Length does not match body")
	ErrUnsupportedContentType  = errors.New("unsupported Content-Type")
	ErrOutOfMemory             = errors.New("out of memory")
)

var outcomeNames = [...]string{
	OK:                      "ok",
	InvalidMethod:           "invalid_method",
	InvalidPath:             "invalid_path",
	InvalidProtocol:         "invalid_protocol",
	MalformedRequestLine:    "malformed_request_line",
	UnterminatedRequestLine: "unterminated_request_line",
	MalformedHeaders:        "malformed_headers",
	TooManyHeaders:          "too_many_headers",
	HeadersTooLarge:         "headers_too_large",
	HeaderKeyTooLarge:       "header_key_too_large",
	HeaderValueTooLarge:     "header_value_too_large",
	BodyTooLarge:            "body_too_large",
	ContentLengthInvalid:    "content_length_invalid",
	ContentLengthMismatch:   "content_length_mismatch",
	UnsupportedContentType:  "unsupported_content_type",
	OutOfMemory:             "out_of_memory",
}

var outcomeErrs = [...]error{
	OK:                      nil,
	InvalidMethod:           ErrInvalidMethod,
	InvalidPath:             ErrInvalidPath,
	InvalidProtocol:         ErrUnsupportedVersion,
	MalformedRequestLine:    ErrMalformedRequestLine,
	UnterminatedRequestLine: ErrUnterminatedRequestLine,
	MalformedHeaders:        ErrMalformedHeaders,
	TooManyHeaders:          ErrTooManyHeaders,
	HeadersTooLarge:         ErrHeaderTooLarge,
	HeaderKeyTooLarge:       ErrHeaderKeyTooLarge,
	HeaderValueTooLarge:     ErrHeaderValueTooLarge,
	BodyTooLarge:            ErrBodyTooLarge,
	ContentLengthInvalid:    ErrContentLengthInvalid,
	ContentLengthMismatch:   ErrContentLengthMismatch,
	UnsupportedContentType:  ErrUnsupportedContentType,
	OutOfMemory:             ErrOutOfMemory,
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// Err returns the sentinel error for o, or nil for OK. Unknown values map
// to ErrOutOfMemory so callers always get a non-nil error for failures.
func (o Outcome) Err() error {
	if o < 0 || int(o) >= len(outcomeErrs) {
		return ErrOutOfMemory
	}
	return outcomeErrs[o]
}

// Outcomes lists every outcome in declaration order.
func Outcomes() []Outcome {
	out := make([]Outcome, 0, len(outcomeNames))
	for o := OK; int(o) < len(outcomeNames); o++ {
		out = append(out, o)
	}
	return out
}
