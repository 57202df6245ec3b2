package router

import (
	"strings"

	"github.com/Brownie44l1/pollhttpd/internal/request"
)

// Handler produces the body of a successful response. Params holds the
// values of ":name" segments in the matched pattern.
type Handler func(r *request.Request, params map[string]string) string

// Route represents a single route
type Route struct {
	Method  string
	Path    string
	Handler Handler
	Params  []string // Parameter names (e.g., ["id", "name"])
}

// Router picks the body for a request by method and path. Status codes are
// not its concern: a request that parsed is always answered 200.
type Router struct {
	routes   []*Route
	fallback Handler
}

// New creates a new router
func New() *Router {
	return &Router{
		routes: make([]*Route, 0),
	}
}

// Handle registers a new route
func (r *Router) Handle(method, path string, handler Handler) {
	r.routes = append(r.routes, &Route{
		Method:  method,
		Path:    path,
		Handler: handler,
		Params:  extractParams(path),
	})
}

// GET is a shortcut for Handle("GET", ...)
func (r *Router) GET(path string, handler Handler) {
	r.Handle(request.MethodGet, path, handler)
}

// POST is a shortcut for Handle("POST", ...)
func (r *Router) POST(path string, handler Handler) {
	r.Handle(request.MethodPost, path, handler)
}

// HEAD is a shortcut for Handle("HEAD", ...)
func (r *Router) HEAD(path string, handler Handler) {
	r.Handle(request.MethodHead, path, handler)
}

// Fallback sets the handler for requests no route matches. Without one
// they get an empty body.
func (r *Router) Fallback(handler Handler) {
	r.fallback = handler
}

// Match finds a route that matches the given method and path
func (r *Router) Match(method, path string) (*Route, map[string]string) {
	// Remove query string if present
	if idx := strings.Index(path, "?"); idx != -1 {
		path = path[:idx]
	}

	for _, route := range r.routes {
		if route.Method != method {
			continue
		}
		if params := matchPath(route.Path, path); params != nil {
			return route, params
		}
	}
	return nil, nil
}

// Body dispatches to the matching route
func (r *Router) Body(req *request.Request) string {
	route, params := r.Match(req.Method, req.Path)
	if route == nil {
		if r.fallback == nil {
			return ""
		}
		return r.fallback(req, nil)
	}
	return route.Handler(req, params)
}

// extractParams extracts parameter names from a path pattern
// Example: "/users/:id/posts/:postId" -> ["id", "postId"]
func extractParams(path string) []string {
	params := make([]string, 0)
	for _, part := range strings.Split(path, "/") {
		if strings.HasPrefix(part, ":") {
			params = append(params, part[1:])
		}
	}
	return params
}

// matchPath checks if a request path matches a route pattern
// Returns parameter values if match, nil otherwise
func matchPath(pattern, path string) map[string]string {
	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")

	if len(patternParts) != len(pathParts) {
		return nil
	}

	params := make(map[string]string)
	for i, patternPart := range patternParts {
		pathPart := pathParts[i]

		if strings.HasPrefix(patternPart, ":") {
			params[patternPart[1:]] = pathPart
		} else if patternPart != pathPart {
			return nil
		}
	}
	return params
}
