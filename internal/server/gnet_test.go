package server

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/pollhttpd/internal/response"
)

// freePort reserves and releases a loopback port for engines that cannot
// report their bound address.
func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestGnetEngineServesOneShot(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine = EngineGnet
	cfg.Addr = freePort(t)
	cfg.MaxConns = 1

	srv, err := New(cfg, WithBody(EchoBody))
	require.NoError(t, err)
	require.NoError(t, srv.Listen())

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve() }()

	var c net.Conn
	require.Eventually(t, func() bool {
		c, err = net.Dial("tcp", srv.Addr())
		return err == nil
	}, testTimeout, tick)
	defer c.Close()
	require.NoError(t, c.SetDeadline(time.Now().Add(testTimeout)))

	_, err = io.WriteString(c, "POST / HTTP/1.1\r\nContent-Type: text/plain\r\n")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = io.WriteString(c, "Content-Length: 4\r\n\r\ngnet")
	require.NoError(t, err)

	raw, err := io.ReadAll(c)
	require.NoError(t, err)
	resp, err := response.ReadResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, response.StatusOK, resp.StatusCode)
	assert.Equal(t, "gnet", string(resp.Body))

	require.Eventually(t, func() bool { return srv.Stats().ActiveConnections == 0 }, testTimeout, tick)
	assert.Equal(t, int64(1), srv.Stats().ByStatus[200])

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-errc)
}

func TestGnetExchangeReadsOnlyWhatFits(t *testing.T) {
	x := &gnetExchange{buf: boundedBuffer(8, 8), limit: 8}
	defer x.release()

	assert.Equal(t, 6, x.readSize(6))
	require.NoError(t, x.fill([]byte("GET / ")))
	assert.False(t, x.full())

	// Ten bytes are waiting but only two fit; the rest stay queued.
	n := x.readSize(10)
	assert.Equal(t, 2, n)
	require.NoError(t, x.fill([]byte("HTTP/1.1\r\n")[:n]))
	assert.True(t, x.full())
	assert.Equal(t, "GET / HT", string(x.Bytes()))
	assert.Equal(t, 0, x.readSize(8))
}

func TestGnetExchangeRejectsOversizedFill(t *testing.T) {
	x := &gnetExchange{buf: boundedBuffer(4, 8), limit: 8}
	defer x.release()

	require.NoError(t, x.fill([]byte("GET ")))
	assert.ErrorIs(t, x.fill([]byte("/ HTTP/1.1")), ErrBufferFull)
	assert.Equal(t, "GET ", string(x.Bytes()), "a rejected read leaves the buffer untouched")

	require.NoError(t, x.fill([]byte("/ HT")))
	assert.Equal(t, "GET / HT", string(x.Bytes()))
}
