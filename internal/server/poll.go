package server

import (
	"fmt"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// pollEngine serves every connection from one goroutine blocked in poll(2).
type pollEngine struct {
	cfg        Config
	dispatcher *Dispatcher
	logger     Logger
	metrics    *Metrics

	lfd   int
	addr  string
	wakeR int
	wakeW int
	conns *ConnSet

	closed atomic.Bool
	done   chan struct{}

	// mu orders wake writes against closing the fds; released is set once
	// they are closed and their numbers may belong to someone else.
	mu       sync.Mutex
	released bool
}

func newPollEngine(cfg Config, d *Dispatcher, logger Logger, metrics *Metrics) *pollEngine {
	return &pollEngine{
		cfg:        cfg,
		dispatcher: d,
		logger:     logger,
		metrics:    metrics,
		lfd:        -1,
		wakeR:      -1,
		wakeW:      -1,
		conns:      NewConnSet(cfg.MaxConns),
		done:       make(chan struct{}),
	}
}

// listen binds the listening socket and the wake pipe
func (e *pollEngine) listen() error {
	lfd, addr, err := listenTCP4(e.cfg.Addr, e.cfg.Backlog)
	if err != nil {
		return err
	}

	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		unix.Close(lfd)
		return fmt.Errorf("wake pipe: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lfd, e.addr = lfd, addr
	e.wakeR, e.wakeW = p[0], p[1]
	return nil
}

func (e *pollEngine) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addr
}

// serve runs the event loop until stop is called
func (e *pollEngine) serve() error {
	defer close(e.done)
	defer e.teardown()

	fds := []unix.PollFd{
		{Fd: int32(e.lfd), Events: unix.POLLIN},
		{Fd: int32(e.wakeR), Events: unix.POLLIN},
	}

	for {
		if _, err := e.conns.Wait(fds, -1); err != nil {
			if e.closed.Load() {
				return nil
			}
			return fmt.Errorf("poll: %w", err)
		}

		if fds[1].Revents != 0 || e.closed.Load() {
			return nil
		}

		if fds[0].Revents&unix.POLLIN != 0 {
			e.acceptOne()
		}

		for _, c := range e.conns.Ready() {
			e.serviceConn(c)
		}
	}
}

// acceptOne accepts at most one pending connection per wake
func (e *pollEngine) acceptOne() {
	fd, sa, err := unix.Accept4(e.lfd, unix.SOCK_CLOEXEC)
	if err != nil {
		if err != unix.EAGAIN && err != unix.EINTR && err != unix.ECONNABORTED {
			e.logger.Error("Error accepting connection", Field{"error", err})
		}
		return
	}

	c := newConn(fd, sockaddrString(sa), e.cfg.ConnBufferSize)
	if err := e.conns.Register(c); err != nil {
		e.metrics.ConnRejected()
		e.logger.Warn("Connection rejected",
			Field{"remote", c.RemoteAddr()},
			Field{"active", e.conns.Len()},
		)
		return
	}

	e.metrics.ConnOpened()
	e.logger.Debug("Connection accepted", Field{"remote", c.RemoteAddr()}, Field{"fd", fd})
}

func (e *pollEngine) serviceConn(c *Conn) {
	_, err := c.ReadInto()
	switch {
	case err == ErrBufferFull:
	case err != nil:
		e.logger.Debug("Connection closed before a full request",
			Field{"remote", c.RemoteAddr()},
			Field{"buffered", c.Len()},
			Field{"error", err},
		)
		e.drop(c)
		return
	}

	if !e.dispatcher.Ready(c.Bytes(), c.Full()) {
		return
	}

	e.dispatcher.Dispatch(c)
	e.drop(c)
}

func (e *pollEngine) drop(c *Conn) {
	e.conns.Unregister(c.FD())
	e.metrics.ConnClosed()
}

// stop marks the engine closed and wakes the loop
func (e *pollEngine) stop() {
	e.closed.Store(true)

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.released && e.wakeW >= 0 {
		unix.Write(e.wakeW, []byte{1})
	}
}

// teardown closes every connection, the listener and the wake pipe. Only
// the first call does anything.
func (e *pollEngine) teardown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return
	}
	e.released = true

	n := e.conns.Len()
	e.conns.CloseAll()
	e.metrics.ActiveConnections.Add(int64(-n))

	for _, fd := range []int{e.lfd, e.wakeR, e.wakeW} {
		if fd >= 0 {
			unix.Close(fd)
		}
	}
}

// listenTCP4 opens a nonblocking IPv4 listening socket on addr and returns
// the bound address.
func listenTCP4(addr string, backlog int) (int, string, error) {
	tcp, err := net.ResolveTCPAddr("tcp4", addr)
	if err != nil {
		return -1, "", fmt.Errorf("resolve %s: %w", addr, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, "", fmt.Errorf("socket: %w", err)
	}

	fail := func(op string, err error) (int, string, error) {
		unix.Close(fd)
		return -1, "", fmt.Errorf("%s %s: %w", op, addr, err)
	}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail("setsockopt", err)
	}

	sa := &unix.SockaddrInet4{Port: tcp.Port}
	if ip4 := tcp.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	if err := unix.Bind(fd, sa); err != nil {
		return fail("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return fail("listen", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return fail("nonblock", err)
	}

	bound, err := unix.Getsockname(fd)
	if err != nil {
		return fail("getsockname", err)
	}
	return fd, sockaddrString(bound), nil
}

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port)).String()
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(a.Addr), uint16(a.Port)).String()
	case *unix.SockaddrUnix:
		return a.Name
	default:
		return "unknown"
	}
}
