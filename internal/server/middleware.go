package server

import (
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/Brownie44l1/pollhttpd/internal/request"
)

var ErrBodyPanic = errors.New("body function panicked")

// BodyMiddleware wraps a BodyFunc
type BodyMiddleware func(next BodyFunc) BodyFunc

// Chain applies middleware so the first one listed runs outermost
func Chain(fn BodyFunc, mw ...BodyMiddleware) BodyFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		fn = mw[i](fn)
	}
	return fn
}

// LoggingBody logs every body produced for a successful request
func LoggingBody(logger Logger) BodyMiddleware {
	return func(next BodyFunc) BodyFunc {
		return func(r *request.Request) string {
			body := next(r)
			logger.Debug("Body produced",
				Field{"method", r.Method},
				Field{"path", r.Path},
				Field{"request_bytes", r.BodyLen()},
				Field{"response_bytes", len(body)},
			)
			return body
		}
	}
}

// callBody runs fn and converts a panic into ErrBodyPanic so the exchange
// can still be answered with a 500.
func callBody(fn BodyFunc, r *request.Request, logger Logger) (body string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic recovered",
				Field{"error", fmt.Sprint(rec)},
				Field{"stack", string(debug.Stack())},
				Field{"path", r.Path},
			)
			body, err = "", fmt.Errorf("%w: %v", ErrBodyPanic, rec)
		}
	}()
	return fn(r), nil
}
