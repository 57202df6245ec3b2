package server

import (
	"errors"
	"io"

	"golang.org/x/sys/unix"
)

var (
	// ErrBufferFull means the receive buffer is at its ceiling. Nothing is
	// read and nothing is truncated.
	ErrBufferFull = errors.New("receive buffer full")
	ErrConnClosed = errors.New("connection closed")
)

// Conn is one accepted client socket and the bytes received on it so far.
type Conn struct {
	fd      int
	addr    string
	buf     []byte
	limit   int
	revents int16
	closed  bool
}

func newConn(fd int, addr string, limit int) *Conn {
	return &Conn{
		fd:    fd,
		addr:  addr,
		buf:   boundedBuffer(min(limit, smallBufferSize), limit),
		limit: limit,
	}
}

func (c *Conn) FD() int            { return c.fd }
func (c *Conn) RemoteAddr() string { return c.addr }

// Bytes returns the received bytes. Valid until the next ReadInto.
func (c *Conn) Bytes() []byte { return c.buf }

func (c *Conn) Len() int { return len(c.buf) }

// Full reports whether the buffer has reached its ceiling
func (c *Conn) Full() bool { return len(c.buf) >= c.limit }

// Readable reports whether the last poll flagged the socket for reading
// or hang-up.
func (c *Conn) Readable() bool {
	return c.revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0
}

// ReadInto appends whatever the socket has to the buffer without blocking.
// It returns (0, nil) when the read would block, io.EOF on orderly
// shutdown by the peer.
func (c *Conn) ReadInto() (int, error) {
	if c.closed {
		return 0, ErrConnClosed
	}
	if c.Full() {
		return 0, ErrBufferFull
	}
	if len(c.buf) == cap(c.buf) {
		c.buf = growBuffer(c.buf, c.limit)
	}

	space := c.buf[len(c.buf):cap(c.buf)]
	n, _, err := unix.Recvfrom(c.fd, space, unix.MSG_DONTWAIT)
	switch {
	case err == unix.EAGAIN || err == unix.EINTR:
		return 0, nil
	case err != nil:
		return 0, err
	case n == 0:
		return 0, io.EOF
	}

	c.buf = c.buf[:len(c.buf)+n]
	return n, nil
}

// Write sends p on the blocking socket. A short count is returned as is.
func (c *Conn) Write(p []byte) (int, error) {
	if c.closed {
		return 0, ErrConnClosed
	}
	n, err := unix.Write(c.fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

// Close zeroes and releases the buffer and closes the socket. Safe to call
// more than once.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.reset()
	return unix.Close(c.fd)
}

func (c *Conn) reset() {
	if c.buf != nil {
		PutBuffer(c.buf)
		c.buf = nil
	}
	c.revents = 0
}
