package request

import (
	"bytes"
	"errors"

	"github.com/Brownie44l1/pollhttpd/internal/headers"
)

// Size limits
const (
	MaxRequestLineLen = 4096    // request line, without CRLF
	MaxMethodLen      = 7       // longest method token
	MaxPathLen        = 2048    // longest path
	MaxProtocolLen    = 15      // longest protocol token
	MaxHeaders        = 10      // header lines
	MaxHeaderBlock    = 8192    // header lines incl. CRLF, excl. the blank line
	MaxHeaderKeyLen   = 255     // trimmed key
	MaxHeaderValueLen = 511     // trimmed value
	MaxBodySize       = 1 << 20 // 1MB body
)

var (
	crlf           = []byte("\r\n")
	headerTerminus = []byte("\r\n\r\n")
)

// Limits holds every bound the parser enforces.
type Limits struct {
	MaxRequestLine int `yaml:"max_request_line"`
	MaxMethod      int `yaml:"max_method"`
	MaxPath        int `yaml:"max_path"`
	MaxProtocol    int `yaml:"max_protocol"`
	MaxHeaders     int `yaml:"max_headers"`
	MaxHeaderBlock int `yaml:"max_header_block"`
	MaxHeaderKey   int `yaml:"max_header_key"`
	MaxHeaderValue int `yaml:"max_header_value"`
	MaxBody        int `yaml:"max_body"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxRequestLine: MaxRequestLineLen,
		MaxMethod:      MaxMethodLen,
		MaxPath:        MaxPathLen,
		MaxProtocol:    MaxProtocolLen,
		MaxHeaders:     MaxHeaders,
		MaxHeaderBlock: MaxHeaderBlock,
		MaxHeaderKey:   MaxHeaderKeyLen,
		MaxHeaderValue: MaxHeaderValueLen,
		MaxBody:        MaxBodySize,
	}
}

func (l Limits) headerLimits() headers.Limits {
	return headers.Limits{
		MaxHeaders:  l.MaxHeaders,
		MaxKeyLen:   l.MaxHeaderKey,
		MaxValueLen: l.MaxHeaderValue,
	}
}

// parserState represents the stage the parser is in
type parserState int

const (
	stateRequestLine parserState = iota
	stateHeaders
	stateBody
	stateDone
)

// Parser parses one complete request held in memory. It keeps no state
// between calls and is safe to share.
type Parser struct {
	Limits Limits
}

func NewParser(lim Limits) Parser {
	return Parser{Limits: lim}
}

var defaultParser = NewParser(DefaultLimits())

// Parse parses data with the default limits.
func Parse(data []byte) (*Request, Outcome) {
	return defaultParser.Parse(data)
}

// Parse runs the request-line, header and body stages over data. On any
// failure the partially built request is released and nil is returned.
func (p Parser) Parse(data []byte) (*Request, Outcome) {
	req := newRequest()
	state := stateRequestLine
	rest := data
	var block []byte

	for state != stateDone {
		var outcome Outcome
		switch state {
		case stateRequestLine:
			var n int
			n, outcome = p.parseRequestLine(rest, req)
			rest = rest[n:]
			state = stateHeaders

		case stateHeaders:
			block, rest, outcome = p.splitHeaderBlock(rest)
			if outcome == OK {
				outcome = p.parseHeaders(block, req)
			}
			state = stateBody

		case stateBody:
			outcome = p.parseBody(rest, req)
			state = stateDone
		}

		if outcome != OK {
			req.Release()
			return nil, outcome
		}
	}

	return req, OK
}

// splitHeaderBlock separates the header lines from the body. The returned
// block keeps the CRLF of its last line; the blank line is dropped.
func (p Parser) splitHeaderBlock(data []byte) (block, body []byte, outcome Outcome) {
	if bytes.HasPrefix(data, crlf) {
		return nil, data[2:], OK
	}

	idx := bytes.Index(data, headerTerminus)
	if idx == -1 {
		if len(data) > p.Limits.MaxHeaderBlock {
			return nil, nil, HeadersTooLarge
		}
		return nil, nil, MalformedHeaders
	}

	block = data[:idx+2]
	if len(block) > p.Limits.MaxHeaderBlock {
		return nil, nil, HeadersTooLarge
	}
	return block, data[idx+4:], OK
}

func (p Parser) parseHeaders(block []byte, req *Request) Outcome {
	err := req.Headers.Parse(block, p.Limits.headerLimits())
	switch {
	case err == nil:
		return OK
	case errors.Is(err, headers.ErrTooManyHeaders):
		return TooManyHeaders
	case errors.Is(err, headers.ErrHeaderKeyTooLarge):
		return HeaderKeyTooLarge
	case errors.Is(err, headers.ErrHeaderValueTooLarge):
		return HeaderValueTooLarge
	default:
		return MalformedHeaders
	}
}
