package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func pairConn(t *testing.T) (*Conn, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	t.Cleanup(func() { unix.Close(fds[1]) })
	return newConn(fds[0], "pair", 1024), fds[1]
}

func TestConnSetRegisterUpToCapacity(t *testing.T) {
	set := NewConnSet(2)
	defer set.CloseAll()

	a, _ := pairConn(t)
	b, _ := pairConn(t)
	c, cPeer := pairConn(t)

	require.NoError(t, set.Register(a))
	require.NoError(t, set.Register(b))
	assert.ErrorIs(t, set.Register(c), ErrConnSetFull)
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, 2, set.Cap())

	// Rejected connection is closed: the peer sees EOF.
	buf := make([]byte, 1)
	n, err := unix.Read(cPeer, buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, ok := set.Get(a.FD())
	require.True(t, ok)
	assert.Same(t, a, got)
}

func TestConnSetUnregisterFreesSlot(t *testing.T) {
	set := NewConnSet(1)
	defer set.CloseAll()

	a, _ := pairConn(t)
	require.NoError(t, set.Register(a))

	set.Unregister(a.FD())
	assert.Equal(t, 0, set.Len())
	assert.Nil(t, a.Bytes(), "buffer must be released on unregister")
	_, ok := set.Get(a.FD())
	assert.False(t, ok)

	// Unknown and repeated fds are ignored.
	set.Unregister(a.FD())
	set.Unregister(12345)

	b, _ := pairConn(t)
	require.NoError(t, set.Register(b))
	assert.Equal(t, 1, set.Len())
}

func TestConnSetSlotsAreStable(t *testing.T) {
	set := NewConnSet(3)
	defer set.CloseAll()

	conns := make([]*Conn, 3)
	for i := range conns {
		conns[i], _ = pairConn(t)
		require.NoError(t, set.Register(conns[i]))
	}
	slotOf := func(c *Conn) int { return set.byFD[c.FD()] }
	before := slotOf(conns[2])

	set.Unregister(conns[0].FD())
	assert.Equal(t, before, slotOf(conns[2]), "removing a connection must not move the others")

	var seen []int
	set.Each(func(c *Conn) { seen = append(seen, c.FD()) })
	assert.ElementsMatch(t, []int{conns[1].FD(), conns[2].FD()}, seen)
}

func TestConnSetWaitReportsReadable(t *testing.T) {
	set := NewConnSet(3)
	defer set.CloseAll()

	quiet, _ := pairConn(t)
	loud, loudPeer := pairConn(t)
	require.NoError(t, set.Register(quiet))
	require.NoError(t, set.Register(loud))

	_, err := unix.Write(loudPeer, []byte("GET"))
	require.NoError(t, err)

	n, err := set.Wait(nil, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ready := set.Ready()
	require.Len(t, ready, 1)
	assert.Same(t, loud, ready[0])
	assert.False(t, quiet.Readable())
}

func TestConnSetWaitExtraFds(t *testing.T) {
	set := NewConnSet(1)
	defer set.CloseAll()

	var p [2]int
	require.NoError(t, unix.Pipe(p[:]))
	defer unix.Close(p[0])
	defer unix.Close(p[1])

	extra := []unix.PollFd{{Fd: int32(p[0]), Events: unix.POLLIN}}
	n, err := set.Wait(extra, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Zero(t, extra[0].Revents)

	_, err = unix.Write(p[1], []byte{1})
	require.NoError(t, err)
	_, err = set.Wait(extra, 1000)
	require.NoError(t, err)
	assert.NotZero(t, extra[0].Revents&unix.POLLIN)
}

func TestConnSetCloseAll(t *testing.T) {
	set := NewConnSet(2)
	a, _ := pairConn(t)
	b, _ := pairConn(t)
	require.NoError(t, set.Register(a))
	require.NoError(t, set.Register(b))

	set.CloseAll()
	assert.Equal(t, 0, set.Len())
	assert.Len(t, set.Ready(), 0)
}
