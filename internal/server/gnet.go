package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/gnet/v2"
)

// gnetEngine serves the same one-shot exchange on a single gnet event loop.
type gnetEngine struct {
	gnet.BuiltinEventEngine

	cfg        Config
	dispatcher *Dispatcher
	logger     Logger
	metrics    *Metrics

	eng    gnet.Engine
	active int

	booted   chan struct{}
	bootOnce sync.Once
}

// gnetExchange is the per-connection context
type gnetExchange struct {
	c     gnet.Conn
	buf   []byte
	limit int
	addr  string
}

func (x *gnetExchange) Bytes() []byte               { return x.buf }
func (x *gnetExchange) Write(p []byte) (int, error) { return x.c.Write(p) }
func (x *gnetExchange) RemoteAddr() string          { return x.addr }
func (x *gnetExchange) full() bool                  { return len(x.buf) >= x.limit }

// readSize is how many of the buffered inbound bytes fit in the exchange.
// Anything past it stays in gnet's inbound buffer.
func (x *gnetExchange) readSize(buffered int) int {
	return min(x.limit-len(x.buf), buffered)
}

// fill appends data, which the caller has sized with readSize. Data that
// does not fit is rejected whole.
func (x *gnetExchange) fill(data []byte) error {
	if len(x.buf)+len(data) > x.limit {
		return ErrBufferFull
	}
	if len(x.buf)+len(data) > cap(x.buf) {
		x.buf = growBuffer(x.buf, x.limit)
		for len(x.buf)+len(data) > cap(x.buf) {
			x.buf = growBuffer(x.buf, x.limit)
		}
	}
	x.buf = append(x.buf, data...)
	return nil
}

func (x *gnetExchange) release() {
	if x.buf != nil {
		PutBuffer(x.buf)
		x.buf = nil
	}
}

func newGnetEngine(cfg Config, d *Dispatcher, logger Logger, metrics *Metrics) *gnetEngine {
	return &gnetEngine{
		cfg:        cfg,
		dispatcher: d,
		logger:     logger,
		metrics:    metrics,
		booted:     make(chan struct{}),
	}
}

func (g *gnetEngine) OnBoot(eng gnet.Engine) gnet.Action {
	g.eng = eng
	g.bootOnce.Do(func() { close(g.booted) })
	g.logger.Info("gnet engine started", Field{"addr", g.cfg.Addr})
	return gnet.None
}

func (g *gnetEngine) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	addr := c.RemoteAddr().String()
	if g.active >= g.cfg.MaxConns {
		g.metrics.ConnRejected()
		g.logger.Warn("Connection rejected", Field{"remote", addr}, Field{"active", g.active})
		return nil, gnet.Close
	}

	g.active++
	g.metrics.ConnOpened()
	c.SetContext(&gnetExchange{
		c:     c,
		buf:   boundedBuffer(min(g.cfg.ConnBufferSize, smallBufferSize), g.cfg.ConnBufferSize),
		limit: g.cfg.ConnBufferSize,
		addr:  addr,
	})
	return nil, gnet.None
}

func (g *gnetEngine) OnTraffic(c gnet.Conn) gnet.Action {
	x, ok := c.Context().(*gnetExchange)
	if !ok {
		return gnet.Close
	}

	if n := x.readSize(c.InboundBuffered()); n > 0 {
		data, err := c.Next(n)
		if err != nil {
			g.logger.Error("Failed to read inbound buffer", Field{"remote", x.addr}, Field{"error", err})
			return gnet.Close
		}
		if err := x.fill(data); err != nil {
			g.logger.Error("Inbound read past buffer limit", Field{"remote", x.addr}, Field{"error", err})
			return gnet.Close
		}
	}

	if !g.dispatcher.Ready(x.buf, x.full()) {
		return gnet.None
	}

	g.dispatcher.Dispatch(x)
	return gnet.Close
}

func (g *gnetEngine) OnClose(c gnet.Conn, err error) gnet.Action {
	x, ok := c.Context().(*gnetExchange)
	if !ok {
		return gnet.None
	}

	if err != nil {
		g.logger.Debug("Connection closed with error", Field{"remote", x.addr}, Field{"error", err})
	}
	x.release()
	c.SetContext(nil)
	g.active--
	g.metrics.ConnClosed()
	return gnet.None
}

// run blocks until the engine stops
func (g *gnetEngine) run() error {
	err := gnet.Run(g, "tcp://"+g.cfg.Addr,
		gnet.WithMulticore(false),
		gnet.WithReusePort(false),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
		gnet.WithLogger(gnetLogger{g.logger}),
	)
	if err != nil {
		return fmt.Errorf("gnet: %w", err)
	}
	return nil
}

func (g *gnetEngine) stop(ctx context.Context) error {
	select {
	case <-g.booted:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.eng.Stop(ctx)
}

// gnetLogger adapts Logger to gnet's logging.Logger
type gnetLogger struct {
	l Logger
}

func (gl gnetLogger) Debugf(format string, args ...interface{}) {
	gl.l.Debug(fmt.Sprintf(format, args...))
}

func (gl gnetLogger) Infof(format string, args ...interface{}) {
	gl.l.Info(fmt.Sprintf(format, args...))
}

func (gl gnetLogger) Warnf(format string, args ...interface{}) {
	gl.l.Warn(fmt.Sprintf(format, args...))
}

func (gl gnetLogger) Errorf(format string, args ...interface{}) {
	gl.l.Error(fmt.Sprintf(format, args...))
}

func (gl gnetLogger) Fatalf(format string, args ...interface{}) {
	gl.l.Error(fmt.Sprintf(format, args...))
}
