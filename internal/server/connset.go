package server

import (
	"errors"

	"golang.org/x/sys/unix"
)

var ErrConnSetFull = errors.New("connection set full")

// ConnSet holds at most max live connections in fixed slots. A slot index
// never changes while its connection is registered, and poll registrations
// are rebuilt from the slots on every Wait.
type ConnSet struct {
	slots []*Conn
	byFD  map[int]int
	free  []int
	max   int

	pollfds []unix.PollFd
	order   []*Conn
}

func NewConnSet(max int) *ConnSet {
	s := &ConnSet{
		slots: make([]*Conn, max),
		byFD:  make(map[int]int, max),
		free:  make([]int, 0, max),
		max:   max,
	}
	for i := max - 1; i >= 0; i-- {
		s.free = append(s.free, i)
	}
	return s
}

// Register takes ownership of c. When the set is full c is closed and
// ErrConnSetFull returned.
func (s *ConnSet) Register(c *Conn) error {
	if len(s.free) == 0 {
		c.Close()
		return ErrConnSetFull
	}

	slot := s.free[len(s.free)-1]
	s.free = s.free[:len(s.free)-1]
	s.slots[slot] = c
	s.byFD[c.fd] = slot
	return nil
}

// Unregister closes the connection on fd and frees its slot. Unknown fds
// are ignored.
func (s *ConnSet) Unregister(fd int) {
	slot, ok := s.byFD[fd]
	if !ok {
		return
	}

	s.slots[slot].Close()
	s.slots[slot] = nil
	delete(s.byFD, fd)
	s.free = append(s.free, slot)
}

func (s *ConnSet) Get(fd int) (*Conn, bool) {
	slot, ok := s.byFD[fd]
	if !ok {
		return nil, false
	}
	return s.slots[slot], true
}

func (s *ConnSet) Len() int { return len(s.byFD) }
func (s *ConnSet) Cap() int { return s.max }

// Each calls fn for every live connection in slot order
func (s *ConnSet) Each(fn func(*Conn)) {
	for _, c := range s.slots {
		if c != nil {
			fn(c)
		}
	}
}

// CloseAll unregisters every connection
func (s *ConnSet) CloseAll() {
	for fd := range s.byFD {
		s.Unregister(fd)
	}
}

// Wait polls extra (listener, wake pipe) followed by every live connection.
// Revents are written back into extra and into each Conn. EINTR is retried.
func (s *ConnSet) Wait(extra []unix.PollFd, timeout int) (int, error) {
	s.pollfds = append(s.pollfds[:0], extra...)
	s.order = s.order[:0]
	for _, c := range s.slots {
		if c == nil {
			continue
		}
		c.revents = 0
		s.pollfds = append(s.pollfds, unix.PollFd{Fd: int32(c.fd), Events: unix.POLLIN})
		s.order = append(s.order, c)
	}

	var (
		n   int
		err error
	)
	for {
		n, err = unix.Poll(s.pollfds, timeout)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		return 0, err
	}

	for i := range extra {
		extra[i].Revents = s.pollfds[i].Revents
	}
	for i, c := range s.order {
		c.revents = s.pollfds[len(extra)+i].Revents
	}
	return n, nil
}

// Ready returns the connections flagged readable by the last Wait, in
// reverse registration order so unregistering while iterating is safe.
func (s *ConnSet) Ready() []*Conn {
	var ready []*Conn
	for i := len(s.order) - 1; i >= 0; i-- {
		c := s.order[i]
		if !c.closed && c.Readable() {
			ready = append(ready, c)
		}
	}
	return ready
}
