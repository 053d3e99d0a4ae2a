package server

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"
)

// ErrProxySocketBound is returned when a second proxy socket is registered.
var ErrProxySocketBound = errors.New("proxy socket already bound")

// Socket is a bound datagram endpoint tagged with its role.
type Socket struct {
	conn net.PacketConn
	role Role
}

// Role returns the socket role.
func (s *Socket) Role() Role {
	return s.role
}

// LocalAddr returns the bound address.
func (s *Socket) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// WriteTo sends a datagram from this socket.
func (s *Socket) WriteTo(b []byte, addr net.Addr) (int, error) {
	return s.conn.WriteTo(b, addr)
}

func (s *Socket) readFrom(buf []byte, deadline time.Time) (int, net.Addr, error) {
	if err := s.conn.SetReadDeadline(deadline); err != nil {
		return 0, nil, err
	}
	return s.conn.ReadFrom(buf)
}

func (s *Socket) String() string {
	return fmt.Sprintf("%s/%s", s.role, s.conn.LocalAddr())
}

// SocketSet owns every socket the dispatcher reads from.
type SocketSet struct {
	mu      sync.Mutex
	sockets []*Socket
	proxy   *Socket
	closed  bool
}

// NewSocketSet creates an empty socket set.
func NewSocketSet() *SocketSet {
	return &SocketSet{}
}

// BindAuth binds an authentication socket. An empty address means all addresses.
func (s *SocketSet) BindAuth(address string, port uint16) error {
	_, err := s.bind(RoleAuth, address, port)
	return err
}

// BindAcct binds an accounting socket.
func (s *SocketSet) BindAcct(address string, port uint16) error {
	_, err := s.bind(RoleAcct, address, port)
	return err
}

// BindProxy binds the proxy socket. Only one may exist.
func (s *SocketSet) BindProxy(address string, port uint16) error {
	_, err := s.bind(RoleProxy, address, port)
	return err
}

func (s *SocketSet) bind(role Role, address string, port uint16) (*Socket, error) {
	hostport := net.JoinHostPort(address, strconv.Itoa(int(port)))

	if role == RoleProxy && s.Proxy() != nil {
		return nil, &BindError{Role: role, Address: hostport, Err: ErrProxySocketBound}
	}

	udpAddr, err := net.ResolveUDPAddr("udp", hostport)
	if err != nil {
		return nil, &BindError{Role: role, Address: hostport, Err: err}
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, &BindError{Role: role, Address: hostport, Err: err}
	}

	sock, err := s.Add(conn, role)
	if err != nil {
		conn.Close()
		return nil, &BindError{Role: role, Address: hostport, Err: err}
	}

	return sock, nil
}

// Add registers an already open connection. The set takes ownership of conn.
func (s *SocketSet) Add(conn net.PacketConn, role Role) (*Socket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, net.ErrClosed
	}
	if role == RoleProxy && s.proxy != nil {
		return nil, ErrProxySocketBound
	}

	sock := &Socket{conn: conn, role: role}
	s.sockets = append(s.sockets, sock)
	if role == RoleProxy {
		s.proxy = sock
	}

	return sock, nil
}

// Sockets returns all sockets in registration order.
func (s *SocketSet) Sockets() []*Socket {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Socket, len(s.sockets))
	copy(out, s.sockets)
	return out
}

// Proxy returns the proxy socket, or nil.
func (s *SocketSet) Proxy() *Socket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proxy
}

// Addrs returns the local addresses of all sockets with the given role.
func (s *SocketSet) Addrs(role Role) []net.Addr {
	var addrs []net.Addr
	for _, sock := range s.Sockets() {
		if sock.role == role {
			addrs = append(addrs, sock.LocalAddr())
		}
	}
	return addrs
}

// Close closes every socket. Calling it again is a no-op.
func (s *SocketSet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for _, sock := range s.sockets {
		if err := sock.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", sock, err))
		}
	}

	return errors.Join(errs...)
}
