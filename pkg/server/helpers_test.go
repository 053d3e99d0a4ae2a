package server

import (
	"net"
	"net/netip"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/radiusd/pkg/host"
	"github.com/vitalvas/radiusd/pkg/log"
	"github.com/vitalvas/radiusd/pkg/packet"
)

var (
	clientIP       = netip.MustParseAddr("192.0.2.1")
	upstreamIP     = netip.MustParseAddr("192.0.2.50")
	clientSecret   = []byte("client-secret")
	upstreamSecret = []byte("upstream-secret")
	clientAddr     = &net.UDPAddr{IP: net.ParseIP("192.0.2.1"), Port: 40001}
	upstreamAuth   = &net.UDPAddr{IP: net.ParseIP("192.0.2.50"), Port: 1812}
)

type datagram struct {
	data []byte
	addr net.Addr
}

// fakeConn is an in-memory net.PacketConn.
type fakeConn struct {
	mu       sync.Mutex
	local    net.Addr
	inbound  []datagram
	sent     []datagram
	closed   bool
	writeErr error
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{local: net.UDPAddrFromAddrPort(netip.MustParseAddrPort(addr))}
}

func (c *fakeConn) push(data []byte, from net.Addr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inbound = append(c.inbound, datagram{data: append([]byte(nil), data...), addr: from})
}

func (c *fakeConn) ReadFrom(b []byte) (int, net.Addr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, nil, net.ErrClosed
	}
	if len(c.inbound) == 0 {
		return 0, nil, os.ErrDeadlineExceeded
	}

	d := c.inbound[0]
	c.inbound = c.inbound[1:]
	return copy(b, d.data), d.addr, nil
}

func (c *fakeConn) WriteTo(b []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, net.ErrClosed
	}
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.sent = append(c.sent, datagram{data: append([]byte(nil), b...), addr: addr})
	return len(b), nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return net.ErrClosed
	}
	c.closed = true
	return nil
}

func (c *fakeConn) LocalAddr() net.Addr                { return c.local }
func (c *fakeConn) SetDeadline(_ time.Time) error      { return nil }
func (c *fakeConn) SetReadDeadline(_ time.Time) error  { return nil }
func (c *fakeConn) SetWriteDeadline(_ time.Time) error { return nil }

func (c *fakeConn) sentDatagrams() []datagram {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]datagram(nil), c.sent...)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type muxStep struct {
	before func()
	ready  []*Socket
	err    error
}

// fakeMux replays scripted wait results and sets the shutdown flag once the
// script runs out.
type fakeMux struct {
	steps []muxStep
	flag  *ShutdownFlag
	waits int
}

func (m *fakeMux) Wait(_ time.Duration) ([]*Socket, error) {
	m.waits++
	if len(m.steps) == 0 {
		m.flag.Shutdown()
		return nil, nil
	}

	step := m.steps[0]
	m.steps = m.steps[1:]
	if step.before != nil {
		step.before()
	}
	return step.ready, step.err
}

type testEnv struct {
	server    *Server
	flag      *ShutdownFlag
	mux       *fakeMux
	hook      *test.Hook
	authConn  *fakeConn
	acctConn  *fakeConn
	proxyConn *fakeConn
	auth      *Socket
	acct      *Socket
	proxy     *Socket
}

func newTestEnv(t *testing.T, handler Handler, proxy *ProxyConfig, opts ...Option) *testEnv {
	t.Helper()

	hosts, err := host.NewRemoteHostTable(
		&host.RemoteHost{Address: clientIP, Secret: clientSecret, Name: "nas"},
		&host.RemoteHost{Address: upstreamIP, Secret: upstreamSecret, Name: "upstream"},
	)
	require.NoError(t, err)

	env := &testEnv{
		flag:     &ShutdownFlag{},
		authConn: newFakeConn("198.51.100.1:1812"),
		acctConn: newFakeConn("198.51.100.1:1813"),
	}

	set := NewSocketSet()
	env.auth, err = set.Add(env.authConn, RoleAuth)
	require.NoError(t, err)
	env.acct, err = set.Add(env.acctConn, RoleAcct)
	require.NoError(t, err)

	if proxy != nil {
		env.proxyConn = newFakeConn("198.51.100.1:40000")
		env.proxy, err = set.Add(env.proxyConn, RoleProxy)
		require.NoError(t, err)
	}

	env.mux = &fakeMux{flag: env.flag}

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	env.hook = hook

	opts = append([]Option{
		WithSocketSet(set),
		withMultiplexer(func(_ []*Socket) (multiplexer, error) { return env.mux, nil }),
	}, opts...)

	env.server, err = New(Config{
		Hosts:    hosts,
		Handler:  handler,
		Proxy:    proxy,
		Shutdown: env.flag,
		Logger:   log.NewFromLogrus(logger),
	}, opts...)
	require.NoError(t, err)

	return env
}

func (e *testEnv) steps(steps ...muxStep) {
	e.mux.steps = append(e.mux.steps, steps...)
}

func (e *testEnv) reasons() []string {
	var out []string
	for _, entry := range e.hook.AllEntries() {
		if reason, ok := entry.Data["reason"]; ok {
			out = append(out, reason.(string))
		}
	}
	return out
}

func accessRequest(t *testing.T, id uint8, user, password string, secret []byte) (*packet.Packet, []byte) {
	t.Helper()

	pkt := packet.New(packet.CodeAccessRequest, id)
	pkt.Secret = secret
	pkt.AddAttribute(packet.NewStringAttribute(packet.AttrUserName, user))
	if password != "" {
		require.NoError(t, pkt.SetPassword([]byte(password)))
	}

	data, err := pkt.EncodeRequest()
	require.NoError(t, err)
	return pkt, data
}

func accountingRequest(t *testing.T, id uint8, secret []byte) (*packet.Packet, []byte) {
	t.Helper()

	pkt := packet.New(packet.CodeAccountingRequest, id)
	pkt.Secret = secret
	pkt.AddAttribute(packet.NewIntegerAttribute(packet.AttrAcctStatusType, 1))
	pkt.AddAttribute(packet.NewStringAttribute(packet.AttrAcctSessionID, "session-1"))

	data, err := pkt.EncodeRequest()
	require.NoError(t, err)
	return pkt, data
}

func acceptAll(r *Request) (*packet.Packet, error) {
	return r.Reply(), nil
}
