package request

import (
	"bytes"
	"strings"
)

// Protocol is the only protocol version accepted and emitted.
const Protocol = "HTTP/1.1"

// parseRequestLine parses: METHOD PATH VERSION\r\n
// Returns the number of bytes consumed including the CRLF.
func (p Parser) parseRequestLine(data []byte, req *Request) (int, Outcome) {
	idx := bytes.Index(data, crlf)
	if idx == -1 {
		return 0, UnterminatedRequestLine
	}
	if idx > p.Limits.MaxRequestLine {
		return 0, MalformedRequestLine
	}

	parts := bytes.Fields(data[:idx])
	if len(parts) != 3 {
		return 0, MalformedRequestLine
	}
	if len(parts[0]) > p.Limits.MaxMethod || len(parts[2]) > p.Limits.MaxProtocol {
		return 0, MalformedRequestLine
	}

	method := string(parts[0])
	path := string(parts[1])
	version := string(parts[2])

	if o := ParseMethod(method); o != OK {
		return 0, o
	}
	if o := p.ParsePath(path); o != OK {
		return 0, o
	}
	if o := ParseProtocol(version); o != OK {
		return 0, o
	}

	req.Method = method
	req.Path = path
	req.Protocol = version
	return idx + 2, OK
}

// ParseMethod checks if the HTTP method is supported
func ParseMethod(method string) Outcome {
	switch method {
	case MethodGet, MethodPost, MethodHead:
		return OK
	default:
		return InvalidMethod
	}
}

// ParsePath checks a path against the default limits.
func ParsePath(path string) Outcome {
	return defaultParser.ParsePath(path)
}

// ParsePath checks if the request path is valid
func (p Parser) ParsePath(path string) Outcome {
	if len(path) == 0 || path[0] != '/' {
		return InvalidPath
	}
	if len(path) > p.Limits.MaxPath {
		return InvalidPath
	}
	if strings.ContainsRune(path, ' ') {
		return InvalidPath
	}
	return OK
}

// ParseProtocol checks the version token byte for byte
func ParseProtocol(protocol string) Outcome {
	if protocol != Protocol {
		return InvalidProtocol
	}
	return OK
}
