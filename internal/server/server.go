package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Brownie44l1/pollhttpd/internal/request"
)

var (
	ErrServerClosed  = errors.New("server closed")
	ErrNotListening  = errors.New("server not listening")
	ErrAlreadyServed = errors.New("server already serving")
)

type serverState int

const (
	stateNew serverState = iota
	stateListening
	stateServing
	stateClosed
)

// Server answers exactly one request per connection on a single event loop.
type Server struct {
	cfg     Config
	logger  Logger
	metrics *Metrics
	body    BodyFunc

	dispatcher *Dispatcher
	poll       *pollEngine
	gnet       *gnetEngine

	mu    sync.Mutex
	state serverState
}

// Option configures a Server
type Option func(*Server)

func WithLogger(l Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithBody sets the body sent with every successful response
func WithBody(fn BodyFunc) Option {
	return func(s *Server) { s.body = fn }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New validates cfg and builds a server. Nothing is bound until Listen.
func New(cfg Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{cfg: cfg}
	if cfg.Body != "" {
		body := cfg.Body
		s.body = func(*request.Request) string { return body }
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = &NullLogger{}
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.body != nil {
		s.body = Chain(s.body, LoggingBody(s.logger))
	}

	s.dispatcher = NewDispatcher(cfg, s.body, s.logger, s.metrics)
	switch cfg.Engine {
	case EngineGnet:
		s.gnet = newGnetEngine(cfg, s.dispatcher, s.logger, s.metrics)
	default:
		s.poll = newPollEngine(cfg, s.dispatcher, s.logger, s.metrics)
	}
	return s, nil
}

// Listen binds the listening socket. The gnet engine binds inside Serve.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateClosed:
		return ErrServerClosed
	case stateNew:
	default:
		return nil
	}

	if s.poll != nil {
		if err := s.poll.listen(); err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}
	s.state = stateListening
	return nil
}

// Addr returns the bound address, or the configured one before Listen and
// for the gnet engine.
func (s *Server) Addr() string {
	if s.poll != nil && s.poll.Addr() != "" {
		return s.poll.Addr()
	}
	return s.cfg.Addr
}

// Serve runs the event loop until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Serve() error {
	s.mu.Lock()
	switch s.state {
	case stateClosed:
		s.mu.Unlock()
		return ErrServerClosed
	case stateNew:
		s.mu.Unlock()
		return ErrNotListening
	case stateServing:
		s.mu.Unlock()
		return ErrAlreadyServed
	}
	s.state = stateServing
	s.mu.Unlock()

	s.logger.Info("Server starting",
		Field{"addr", s.Addr()},
		Field{"engine", s.cfg.Engine},
		Field{"framing", s.cfg.Framing},
		Field{"max_conns", s.cfg.MaxConns},
	)

	if s.gnet != nil {
		return s.gnet.run()
	}
	return s.poll.serve()
}

func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

// Shutdown stops the loop, closes every live connection and the listener,
// and waits for the loop to exit or ctx to end.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	prev := s.state
	s.state = stateClosed
	s.mu.Unlock()

	if prev == stateClosed {
		return nil
	}
	s.logger.Info("Shutting down server")

	switch {
	case prev == stateNew:
		return nil
	case s.gnet != nil:
		if prev != stateServing {
			return nil
		}
		return s.gnet.stop(ctx)
	case prev == stateListening:
		s.poll.teardown()
		return nil
	}

	s.poll.stop()
	select {
	case <-s.poll.done:
		s.logger.Info("Server stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns a snapshot of the server metrics
func (s *Server) Stats() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// Metrics returns the live metrics
func (s *Server) Metrics() *Metrics {
	return s.metrics
}
