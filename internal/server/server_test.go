package server

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Brownie44l1/pollhttpd/internal/response"
)

const (
	testTimeout = 5 * time.Second
	tick        = 10 * time.Millisecond
)

// startServer runs a server on an ephemeral loopback port and shuts it down
// when the test ends.
func startServer(t *testing.T, cfg Config, opts ...Option) *Server {
	t.Helper()
	if cfg.Addr == "" || cfg.Addr == DefaultConfig().Addr {
		cfg.Addr = "127.0.0.1:0"
	}

	srv, err := New(cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, srv.Listen())

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve() }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		defer cancel()
		assert.NoError(t, srv.Shutdown(ctx))
		select {
		case err := <-errc:
			assert.NoError(t, err)
		case <-time.After(testTimeout):
			t.Error("Serve did not return after Shutdown")
		}
	})
	return srv
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	c, err := net.DialTimeout("tcp", addr, testTimeout)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	require.NoError(t, c.SetDeadline(time.Now().Add(testTimeout)))
	return c
}

// roundTrip sends every chunk, then reads until the server closes.
func roundTrip(t *testing.T, addr string, chunks ...string) *response.Response {
	t.Helper()
	c := dial(t, addr)
	for i, chunk := range chunks {
		if i > 0 {
			time.Sleep(20 * time.Millisecond)
		}
		_, err := io.WriteString(c, chunk)
		require.NoError(t, err)
	}

	raw, err := io.ReadAll(c)
	require.NoError(t, err)
	resp, err := response.ReadResponse(raw)
	require.NoError(t, err, "raw response: %q", raw)
	return resp
}

func TestServerAnswersAndCloses(t *testing.T) {
	srv := startServer(t, DefaultConfig())

	resp := roundTrip(t, srv.Addr(), "GET / HTTP/1.1\r\nHost: localhost\r\n\r\n")
	assert.Equal(t, response.StatusOK, resp.StatusCode)
	v, _ := resp.Headers.Get("Connection")
	assert.Equal(t, "close", v)

	resp = roundTrip(t, srv.Addr(), "BREW /pot HTTP/1.1\r\n\r\n")
	assert.Equal(t, response.StatusMethodNotAllowed, resp.StatusCode)

	require.Eventually(t, func() bool {
		return srv.Stats().RequestsTotal == 2 && srv.Stats().ActiveConnections == 0
	}, testTimeout, tick)
}

func TestServerWaitsForSplitRequest(t *testing.T) {
	srv := startServer(t, DefaultConfig(), WithBody(EchoBody))

	resp := roundTrip(t, srv.Addr(),
		"POST /echo HTTP/1.1\r\nContent-Type: text/plain\r\n",
		"Content-Length: 11\r\n\r\nhello ",
		"world",
	)
	assert.Equal(t, response.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello world", string(resp.Body))
}

func TestServerOneShotFraming(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Framing = FramingOneShot
	srv := startServer(t, cfg)

	// The first read is answered on its own, so a split request is judged
	// on its first fragment.
	c := dial(t, srv.Addr())
	_, err := io.WriteString(c, "GET / HTTP/1.1\r\n")
	require.NoError(t, err)

	raw, err := io.ReadAll(c)
	require.NoError(t, err)
	resp, err := response.ReadResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, response.StatusBadRequest, resp.StatusCode)
}

func TestServerConfiguredBody(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Body = "hi there"
	srv := startServer(t, cfg)

	resp := roundTrip(t, srv.Addr(), "HEAD / HTTP/1.1\r\n\r\n")
	assert.Equal(t, response.StatusOK, resp.StatusCode)
	assert.Equal(t, "hi there", string(resp.Body))
}

func TestServerClientHangsUpEarly(t *testing.T) {
	srv := startServer(t, DefaultConfig())

	c := dial(t, srv.Addr())
	_, err := io.WriteString(c, "GET / HT")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.Stats().ActiveConnections == 1 }, testTimeout, tick)
	c.Close()

	require.Eventually(t, func() bool { return srv.Stats().ActiveConnections == 0 }, testTimeout, tick)
	assert.Equal(t, int64(0), srv.Stats().RequestsTotal, "no response for a torn down partial request")
}

func TestServerRejectsOverCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConns = 2
	srv := startServer(t, cfg)

	held := []net.Conn{dial(t, srv.Addr()), dial(t, srv.Addr())}
	require.Eventually(t, func() bool { return srv.Stats().ActiveConnections == 2 }, testTimeout, tick)

	extra := dial(t, srv.Addr())
	buf := make([]byte, 1)
	_, err := extra.Read(buf)
	assert.ErrorIs(t, err, io.EOF, "connection over capacity is closed without a response")
	require.Eventually(t, func() bool { return srv.Stats().ConnectionsRejected == 1 }, testTimeout, tick)

	// Held connections are still served.
	_, err = io.WriteString(held[0], "GET / HTTP/1.1\r\n\r\n")
	require.NoError(t, err)
	raw, err := io.ReadAll(held[0])
	require.NoError(t, err)
	resp, err := response.ReadResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, response.StatusOK, resp.StatusCode)
}

func TestServerConcurrentClients(t *testing.T) {
	srv := startServer(t, DefaultConfig(), WithBody(EchoBody))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := net.DialTimeout("tcp", srv.Addr(), testTimeout)
			if !assert.NoError(t, err) {
				return
			}
			defer c.Close()
			c.SetDeadline(time.Now().Add(testTimeout))

			io.WriteString(c, "POST / HTTP/1.1\r\nContent-Type: text/plain\r\nContent-Length: 4\r\n\r\nping")
			raw, err := io.ReadAll(c)
			if !assert.NoError(t, err) {
				return
			}
			resp, err := response.ReadResponse(raw)
			if assert.NoError(t, err) {
				assert.Equal(t, "ping", string(resp.Body))
			}
		}()
	}
	wg.Wait()
}

func TestServerShutdownClosesLiveConnections(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	srv, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, srv.Listen())

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve() }()

	c := dial(t, srv.Addr())
	require.Eventually(t, func() bool { return srv.Stats().ActiveConnections == 1 }, testTimeout, tick)

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	require.NoError(t, <-errc)

	buf := make([]byte, 1)
	_, err = c.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, int64(0), srv.Stats().ActiveConnections)

	require.NoError(t, srv.Shutdown(ctx), "second shutdown is a no-op")
	assert.ErrorIs(t, srv.Serve(), ErrServerClosed)
}

func TestServerLifecycleErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine = "epoll"
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	srv, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.ErrorIs(t, srv.Serve(), ErrNotListening)
	assert.Equal(t, DefaultConfig().Addr, srv.Addr())
	require.NoError(t, srv.Shutdown(context.Background()))
}

func TestServerShutdownWhileStarting(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"

	for i := 0; i < 20; i++ {
		srv, err := New(cfg)
		require.NoError(t, err)
		require.NoError(t, srv.Listen())

		errc := make(chan error, 1)
		go func() { errc <- srv.Serve() }()

		ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
		assert.NoError(t, srv.Shutdown(ctx))
		cancel()

		// Serve either ran and stopped cleanly or saw the server closed first.
		select {
		case err := <-errc:
			if err != nil {
				assert.ErrorIs(t, err, ErrServerClosed)
			}
		case <-time.After(testTimeout):
			t.Fatal("Serve did not return after Shutdown")
		}
		assert.Equal(t, int64(0), srv.Stats().ActiveConnections)
	}
}

func TestServerServeTwice(t *testing.T) {
	srv := startServer(t, DefaultConfig())
	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.state == stateServing
	}, testTimeout, tick)

	assert.ErrorIs(t, srv.Serve(), ErrAlreadyServed)
	assert.NoError(t, srv.Listen(), "listening again is a no-op")
}
