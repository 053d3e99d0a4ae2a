package host

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sort"
)

var (
	// ErrDuplicateHost is returned when two remote hosts share an address.
	ErrDuplicateHost = errors.New("duplicate remote host")
	// ErrInvalidHost is returned for remote hosts without an address or secret.
	ErrInvalidHost = errors.New("invalid remote host")
)

// RemoteHost is a peer allowed to exchange packets with the daemon.
type RemoteHost struct {
	Address netip.Addr
	Secret  []byte
	Name    string

	// AuthPort and AcctPort are used when requests are forwarded to this
	// host. Zero means the default port.
	AuthPort uint16
	AcctPort uint16
}

// AuthAddr returns the UDP address for authentication requests to this host.
func (r *RemoteHost) AuthAddr() *net.UDPAddr {
	return udpAddr(r.Address, r.AuthPort, DefaultAuthPort)
}

// AcctAddr returns the UDP address for accounting requests to this host.
func (r *RemoteHost) AcctAddr() *net.UDPAddr {
	return udpAddr(r.Address, r.AcctPort, DefaultAcctPort)
}

func (r *RemoteHost) String() string {
	if r.Name == "" {
		return r.Address.String()
	}
	return fmt.Sprintf("%s(%s)", r.Name, r.Address)
}

func udpAddr(addr netip.Addr, port, fallback uint16) *net.UDPAddr {
	if port == 0 {
		port = fallback
	}
	return net.UDPAddrFromAddrPort(netip.AddrPortFrom(addr, port))
}

// RemoteHostTable maps source addresses to trusted remote hosts.
// Add must not be called once the table is shared with a running server.
type RemoteHostTable struct {
	hosts map[netip.Addr]*RemoteHost
}

// NewRemoteHostTable builds a table from hosts, failing on the first invalid
// or duplicate entry.
func NewRemoteHostTable(hosts ...*RemoteHost) (*RemoteHostTable, error) {
	t := &RemoteHostTable{
		hosts: make(map[netip.Addr]*RemoteHost, len(hosts)),
	}

	for _, h := range hosts {
		if err := t.Add(h); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// Add registers a remote host.
func (t *RemoteHostTable) Add(h *RemoteHost) error {
	if h == nil || !h.Address.IsValid() {
		return fmt.Errorf("%w: missing address", ErrInvalidHost)
	}
	if len(h.Secret) == 0 {
		return fmt.Errorf("%w: %s has no secret", ErrInvalidHost, h.Address)
	}

	key := h.Address.Unmap()
	if _, ok := t.hosts[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateHost, key)
	}

	h.Address = key
	t.hosts[key] = h
	return nil
}

// Lookup finds the remote host for a packet source address.
func (t *RemoteHostTable) Lookup(addr net.Addr) (*RemoteHost, bool) {
	ip, ok := AddrOf(addr)
	if !ok {
		return nil, false
	}
	return t.LookupIP(ip)
}

// LookupIP finds the remote host with the given address.
func (t *RemoteHostTable) LookupIP(ip netip.Addr) (*RemoteHost, bool) {
	if t == nil {
		return nil, false
	}
	h, ok := t.hosts[ip.Unmap()]
	return h, ok
}

// Len returns the number of remote hosts.
func (t *RemoteHostTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.hosts)
}

// Hosts returns all remote hosts ordered by address.
func (t *RemoteHostTable) Hosts() []*RemoteHost {
	if t == nil {
		return nil
	}

	out := make([]*RemoteHost, 0, len(t.hosts))
	for _, h := range t.hosts {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address.Less(out[j].Address) })
	return out
}

// AddrOf extracts the IP address of a UDP or IP network address, with
// IPv4-mapped IPv6 addresses converted to plain IPv4.
func AddrOf(addr net.Addr) (netip.Addr, bool) {
	var ip net.IP

	switch a := addr.(type) {
	case *net.UDPAddr:
		if a == nil {
			return netip.Addr{}, false
		}
		ip = a.IP
	case *net.IPAddr:
		if a == nil {
			return netip.Addr{}, false
		}
		ip = a.IP
	default:
		return netip.Addr{}, false
	}

	parsed, ok := netip.AddrFromSlice(ip)
	if !ok {
		return netip.Addr{}, false
	}
	return parsed.Unmap(), true
}
