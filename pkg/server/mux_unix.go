//go:build unix

package server

import (
	"errors"
	"fmt"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

type pollMux struct {
	fds     []unix.PollFd
	sockets map[int32]*Socket
}

func newPollMux(sockets []*Socket) (multiplexer, error) {
	m := &pollMux{
		fds:     make([]unix.PollFd, 0, len(sockets)),
		sockets: make(map[int32]*Socket, len(sockets)),
	}

	for _, sock := range sockets {
		fd, err := socketFD(sock)
		if err != nil {
			return nil, err
		}
		m.fds = append(m.fds, unix.PollFd{Fd: fd, Events: unix.POLLIN})
		m.sockets[fd] = sock
	}

	return m, nil
}

func socketFD(sock *Socket) (int32, error) {
	sc, ok := sock.conn.(syscall.Conn)
	if !ok {
		return 0, fmt.Errorf("socket %s does not expose a file descriptor", sock)
	}

	raw, err := sc.SyscallConn()
	if err != nil {
		return 0, fmt.Errorf("socket %s: %w", sock, err)
	}

	var fd int32
	if err := raw.Control(func(f uintptr) {
		fd = int32(f)
	}); err != nil {
		return 0, fmt.Errorf("socket %s: control: %w", sock, err)
	}

	return fd, nil
}

func (m *pollMux) Wait(timeout time.Duration) ([]*Socket, error) {
	for i := range m.fds {
		m.fds[i].Revents = 0
	}

	n, err := unix.Poll(m.fds, int(timeout.Milliseconds()))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, ErrInterrupted
		}
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}

	ready := make([]*Socket, 0, n)
	for _, pfd := range m.fds {
		if pfd.Revents&unix.POLLNVAL != 0 {
			return nil, fmt.Errorf("socket %s: invalid descriptor", m.sockets[pfd.Fd])
		}
		if pfd.Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP) != 0 {
			ready = append(ready, m.sockets[pfd.Fd])
		}
	}

	return ready, nil
}
