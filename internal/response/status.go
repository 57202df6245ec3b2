package response

import "github.com/Brownie44l1/pollhttpd/internal/request"

// StatusCode represents HTTP status codes
type StatusCode int

const (
	StatusOK                      StatusCode = 200
	StatusCreated                 StatusCode = 201
	StatusBadRequest              StatusCode = 400
	StatusNotFound                StatusCode = 404
	StatusMethodNotAllowed        StatusCode = 405
	StatusPayloadTooLarge         StatusCode = 413
	StatusUnsupportedMediaType    StatusCode = 415
	StatusInternalServerError     StatusCode = 500
	StatusHTTPVersionNotSupported StatusCode = 505
)

// statusText maps status codes to reason phrases
var statusText = map[StatusCode]string{
	StatusOK:                      "OK",
	StatusCreated:                 "Created",
	StatusBadRequest:              "Bad Request",
	StatusNotFound:                "Not Found",
	StatusMethodNotAllowed:        "Method Not Allowed",
	StatusPayloadTooLarge:         "Payload Too Large",
	StatusUnsupportedMediaType:    "Unsupported Media Type",
	StatusInternalServerError:     "Internal Server Error",
	StatusHTTPVersionNotSupported: "HTTP Version Not Supported",
}

// ReasonFor returns the reason phrase for a status code
func ReasonFor(code StatusCode) string {
	if text, ok := statusText[code]; ok {
		return text
	}
	return "Unknown"
}

// StatusFor maps a parse outcome to the status sent back to the client.
func StatusFor(o request.Outcome) StatusCode {
	switch o {
	case request.OK:
		return StatusOK
	case request.InvalidMethod:
		return StatusMethodNotAllowed
	case request.InvalidPath:
		return StatusBadRequest
	case request.InvalidProtocol:
		return StatusHTTPVersionNotSupported
	case request.MalformedRequestLine,
		request.UnterminatedRequestLine,
		request.MalformedHeaders:
		return StatusBadRequest
	case request.TooManyHeaders,
		request.HeadersTooLarge,
		request.HeaderKeyTooLarge,
		request.HeaderValueTooLarge,
		request.BodyTooLarge:
		return StatusPayloadTooLarge
	case request.ContentLengthInvalid, request.ContentLengthMismatch:
		return StatusBadRequest
	case request.UnsupportedContentType:
		return StatusUnsupportedMediaType
	default:
		return StatusInternalServerError
	}
}

// IsSuccess returns true for 2xx status codes
func (code StatusCode) IsSuccess() bool {
	return code >= 200 && code < 300
}

// IsClientError returns true for 4xx status codes
func (code StatusCode) IsClientError() bool {
	return code >= 400 && code < 500
}

// IsServerError returns true for 5xx status codes
func (code StatusCode) IsServerError() bool {
	return code >= 500 && code < 600
}
