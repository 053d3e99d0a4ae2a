package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/vitalvas/radiusd/pkg/host"
	"github.com/vitalvas/radiusd/pkg/log"
	"github.com/vitalvas/radiusd/pkg/packet"
)

const (
	// MaxDatagramSize is the largest datagram the dispatcher reads.
	// Anything longer is treated as truncated and dropped.
	MaxDatagramSize = 8192
	// DefaultPollInterval bounds how long a shutdown request can go unnoticed.
	DefaultPollInterval = 250 * time.Millisecond
)

// Config holds the server configuration
type Config struct {
	// Host is the local identity. host.New() defaults are used when nil.
	Host *host.Host
	// Hosts lists the remote hosts allowed to talk to the server.
	Hosts *host.RemoteHostTable
	// Addresses to bind auth and acct sockets on. Empty means all addresses.
	Addresses []string
	Handler   Handler
	// Proxy enables the proxy socket when set.
	Proxy *ProxyConfig
	// Shutdown is polled between waits. A fresh ShutdownFlag is used when nil.
	Shutdown     ShutdownSignal
	PollInterval time.Duration
	Logger       log.Logger
}

// Option customizes a Server.
type Option func(*Server)

// WithMiddleware adds middleware in the order given.
func WithMiddleware(middlewares ...Middleware) Option {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, middlewares...)
	}
}

// WithSocketSet makes the server read from sockets bound by the caller
// instead of binding from Config.
func WithSocketSet(set *SocketSet) Option {
	return func(s *Server) {
		s.sockets = set
	}
}

func withMultiplexer(factory multiplexerFactory) Option {
	return func(s *Server) {
		s.newMux = factory
	}
}

func withClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// Server dispatches RADIUS packets from a set of sockets on a single goroutine.
type Server struct {
	host         *host.Host
	hosts        *host.RemoteHostTable
	handler      Handler
	middlewares  []Middleware
	validator    *Validator
	sockets      *SocketSet
	proxy        *Proxy
	shutdown     ShutdownSignal
	pollInterval time.Duration
	logger       log.Logger

	newMux multiplexerFactory
	now    func() time.Time

	state atomic.Int32
	stats counters
	buf   []byte
}

// New builds a server and binds its sockets. A bind failure closes every
// socket bound so far and returns a *BindError.
func New(cfg Config, opts ...Option) (*Server, error) {
	if cfg.Handler == nil {
		return nil, ErrNoHandler
	}

	s := &Server{
		host:         cfg.Host,
		hosts:        cfg.Hosts,
		handler:      cfg.Handler,
		shutdown:     cfg.Shutdown,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
		newMux:       newPollMux,
		now:          time.Now,
		buf:          make([]byte, MaxDatagramSize+1),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = log.NewDefaultLogger()
	}
	if s.pollInterval <= 0 {
		s.pollInterval = DefaultPollInterval
	}
	if s.shutdown == nil {
		s.shutdown = &ShutdownFlag{}
	}
	if s.hosts == nil {
		s.hosts, _ = host.NewRemoteHostTable()
	}
	if s.host == nil {
		h, err := host.New()
		if err != nil {
			return nil, err
		}
		s.host = h
	}

	if s.sockets == nil {
		set, err := bindSockets(s.host, cfg.Addresses, cfg.Proxy)
		if err != nil {
			return nil, err
		}
		s.sockets = set
	}

	if cfg.Proxy != nil {
		sock := s.sockets.Proxy()
		if sock == nil {
			s.sockets.Close()
			return nil, fmt.Errorf("%w: no proxy socket in socket set", ErrProxyDisabled)
		}
		s.proxy = newProxy(s, sock, cfg.Proxy)
	}

	s.validator = NewValidator(s.hosts)
	s.handler = s.buildHandler()

	return s, nil
}

func bindSockets(h *host.Host, addresses []string, proxy *ProxyConfig) (*SocketSet, error) {
	if len(addresses) == 0 {
		addresses = []string{""}
	}

	set := NewSocketSet()

	for _, addr := range addresses {
		if err := set.BindAuth(addr, h.AuthPort); err != nil {
			set.Close()
			return nil, err
		}
		if err := set.BindAcct(addr, h.AcctPort); err != nil {
			set.Close()
			return nil, err
		}
	}

	if proxy != nil {
		if err := set.BindProxy(proxy.Address, proxy.Port); err != nil {
			set.Close()
			return nil, err
		}
	}

	return set, nil
}

// buildHandler wraps the handler with all middlewares
func (s *Server) buildHandler() Handler {
	handler := s.handler

	// Apply middlewares in reverse order (last added is outermost)
	for i := len(s.middlewares) - 1; i >= 0; i-- {
		handler = s.middlewares[i](handler)
	}

	return handler
}

// State returns the current dispatcher state.
func (s *Server) State() State {
	return State(s.state.Load())
}

// Stats returns a snapshot of the counters. Safe to call from any goroutine.
func (s *Server) Stats() Stats {
	return s.stats.snapshot()
}

// Addrs returns the local addresses of sockets with the given role.
func (s *Server) Addrs(role Role) []net.Addr {
	return s.sockets.Addrs(role)
}

// Proxy returns the proxy extension, or nil when proxying is disabled.
func (s *Server) Proxy() *Proxy {
	return s.proxy
}

// Close releases the sockets of a server that is not running.
// A running server closes them itself once it observes shutdown.
func (s *Server) Close() error {
	if s.state.CompareAndSwap(int32(StateIdle), int32(StateStopped)) {
		return s.sockets.Close()
	}
	return nil
}

// Run dispatches packets until the shutdown signal is observed or the
// multiplexer fails. It returns nil after a clean shutdown and a *PollError
// on a fatal wait failure. The sockets are closed on return.
func (s *Server) Run() error {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StatePolling)) {
		return ErrAlreadyStarted
	}

	defer s.stop()

	mux, err := s.newMux(s.sockets.Sockets())
	if err != nil {
		return &PollError{Err: err}
	}

	s.logger.Infof("RADIUS server polling %d sockets", len(s.sockets.Sockets()))

	for !s.shutdown.IsShuttingDown() {
		ready, err := mux.Wait(s.pollInterval)
		if err != nil {
			if errors.Is(err, ErrInterrupted) {
				continue
			}
			s.logger.Errorf("Multiplexer failed: %v", err)
			return &PollError{Err: err}
		}

		for _, sock := range ready {
			if s.shutdown.IsShuttingDown() {
				break
			}
			s.processSocket(sock)
		}

		if s.proxy != nil {
			s.proxy.expire(s.now())
		}
	}

	s.state.Store(int32(StateDraining))
	s.logger.Info("Shutdown requested, stopping RADIUS server")

	return nil
}

func (s *Server) stop() {
	if err := s.sockets.Close(); err != nil {
		s.logger.Warnf("Error closing sockets: %v", err)
	}
	s.state.Store(int32(StateStopped))
	s.logger.Info("RADIUS server stopped")
}

// processSocket reads and handles one datagram from a ready socket.
func (s *Server) processSocket(sock *Socket) {
	n, addr, err := sock.readFrom(s.buf, time.Now().Add(s.pollInterval))
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return
		}
		s.logger.Warnf("Error reading from %s: %v", sock, err)
		return
	}

	s.stats.received.Add(1)

	if n > MaxDatagramSize {
		s.stats.decodeErrors.Add(1)
		s.logger.Warnf("Dropping truncated datagram from %s on %s", addr, sock)
		return
	}

	pkt, err := packet.Decode(s.buf[:n])
	if err != nil {
		s.stats.decodeErrors.Add(1)
		s.logger.WithFields(map[string]interface{}{
			"remote": addr.String(),
			"role":   sock.Role().String(),
		}).Warnf("Failed to decode packet: %v", err)
		return
	}

	pkt.Source = addr
	pkt.Dict = s.host.Dict

	decision := s.validator.Validate(pkt, sock.Role())
	if !decision.Accept {
		s.drop(sock.Role(), decision.Err(pkt))
		return
	}

	s.stats.accepted.Add(1)

	if sock.Role() == RoleProxy {
		if s.proxy == nil {
			s.drop(sock.Role(), newRejectError(pkt, ReasonUnmatchedReply))
			return
		}
		s.proxy.handleReply(pkt, decision.Host)
		return
	}

	s.dispatch(sock, pkt, decision.Host)
}

func (s *Server) drop(role Role, err error) {
	fields := map[string]interface{}{"role": role.String()}

	var rejectErr *RejectError
	if errors.As(err, &rejectErr) {
		s.stats.reject(rejectErr.Reason)
		fields["reason"] = rejectErr.Reason.String()
		fields["code"] = rejectErr.Code.String()
		if rejectErr.Source != nil {
			fields["remote"] = rejectErr.Source.String()
		}
	}

	s.logger.WithFields(fields).Warnf("Dropping packet: %v", err)
}

func (s *Server) dispatch(sock *Socket, pkt *packet.Packet, remote *host.RemoteHost) {
	req := &Request{
		Packet:     pkt,
		Socket:     sock,
		RemoteAddr: pkt.Source,
		RemoteHost: remote,
		proxy:      s.proxy,
	}

	reply, err := s.serve(req)
	if err != nil {
		s.stats.handlerErrors.Add(1)
		s.logger.WithFields(map[string]interface{}{
			"remote": pkt.Source.String(),
			"role":   sock.Role().String(),
			"code":   pkt.Code.String(),
		}).Errorf("Dropping packet: %v", err)
		return
	}

	if reply == nil {
		return
	}

	s.sendReply(sock, pkt, reply)
}

func (s *Server) serve(req *Request) (reply *packet.Packet, err error) {
	defer func() {
		if r := recover(); r != nil {
			reply = nil
			err = &HandlerError{Err: fmt.Errorf("%v", r), Panic: true}
		}
	}()

	reply, err = s.handler.ServeRADIUS(req)
	if err != nil {
		return nil, &HandlerError{Err: err}
	}
	return reply, nil
}

// sendReply writes reply to the source of request through sock.
func (s *Server) sendReply(sock *Socket, request, reply *packet.Packet) {
	reply.Source = request.Source
	if len(reply.Secret) == 0 {
		reply.Secret = request.Secret
	}
	if request.HasMessageAuthenticator() {
		reply.AddMessageAuthenticator()
	}

	if err := s.host.SendReplyPacket(sock, reply); err != nil {
		s.stats.sendErrors.Add(1)
		s.logger.Errorf("Failed to send reply to %s: %v", request.Source, err)
		return
	}

	s.stats.repliesSent.Add(1)
}
