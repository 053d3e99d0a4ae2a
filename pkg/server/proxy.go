package server

import (
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/vitalvas/radiusd/pkg/host"
	"github.com/vitalvas/radiusd/pkg/packet"
)

const (
	DefaultProxyTimeout = 3 * time.Second
	DefaultProxyRetries = 2
)

// ProxyConfig enables forwarding requests to upstream servers.
type ProxyConfig struct {
	// Address and Port of the proxy socket. Port 0 picks an ephemeral port.
	Address string
	Port    uint16

	// Timeout before a forwarded request is retransmitted or given up.
	Timeout time.Duration
	// Retries is the number of retransmissions before a request is dropped.
	Retries int

	// ReplyHandler builds the client reply from a matched upstream reply.
	// RelayReplyHandler is used when nil.
	ReplyHandler ReplyHandler
}

// Proxy forwards requests upstream and routes replies back. All of its
// state belongs to the dispatch goroutine.
type Proxy struct {
	server       *Server
	socket       *Socket
	pending      *pendingTable
	timeout      time.Duration
	retries      int
	replyHandler ReplyHandler
}

func newProxy(s *Server, socket *Socket, cfg *ProxyConfig) *Proxy {
	p := &Proxy{
		server:       s,
		socket:       socket,
		pending:      newPendingTable(),
		timeout:      cfg.Timeout,
		retries:      cfg.Retries,
		replyHandler: cfg.ReplyHandler,
	}

	if p.timeout <= 0 {
		p.timeout = DefaultProxyTimeout
	}
	if p.retries < 0 {
		p.retries = 0
	}
	if p.replyHandler == nil {
		p.replyHandler = RelayReplyHandler
	}

	return p
}

// Pending returns the number of forwarded requests awaiting a reply.
func (p *Proxy) Pending() int {
	return p.pending.len()
}

func (p *Proxy) forward(req *Request, upstream netip.Addr) error {
	remote, ok := p.server.hosts.LookupIP(upstream)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUpstream, upstream)
	}

	var dest net.Addr
	switch req.Packet.Code {
	case packet.CodeAccessRequest:
		dest = remote.AuthAddr()
	case packet.CodeAccountingRequest:
		dest = remote.AcctAddr()
	default:
		return fmt.Errorf("%w: %s", ErrNotForwardable, req.Packet.Code)
	}

	if entry, ok := p.pending.byOrigin(req.Packet); ok {
		p.retransmit(entry)
		p.server.logger.Debugf("Client %s retransmitted id %d, resent pending id %d to %s",
			req.Packet.Source, req.Packet.Identifier, entry.key.identifier, entry.dest)
		return nil
	}

	id, err := p.pending.allocate(remote.Address)
	if err != nil {
		return fmt.Errorf("%w %s", err, remote)
	}

	out, err := p.buildForward(req.Packet, id, remote)
	if err != nil {
		return err
	}

	data, err := out.EncodeRequest()
	if err != nil {
		return fmt.Errorf("failed to encode forwarded request: %w", err)
	}

	if _, err := p.socket.WriteTo(data, dest); err != nil {
		return fmt.Errorf("failed to forward to %s: %w", dest, err)
	}

	p.pending.add(&pendingRequest{
		key:         pendingKey{upstream: remote.Address, identifier: id},
		request:     req.Packet,
		socket:      req.Socket,
		upstream:    remote,
		dest:        dest,
		auth:        out.Authenticator,
		data:        data,
		sentAt:      p.server.now(),
		retriesLeft: p.retries,
	})
	p.server.stats.proxyForwarded.Add(1)

	p.server.logger.Debugf("Forwarded %s id %d from %s to %s as id %d",
		req.Packet.Code, req.Packet.Identifier, req.Packet.Source, dest, id)

	return nil
}

// buildForward copies the request under a new identifier, re-hiding
// User-Password with the upstream secret. A CHAP-Password that was computed
// over the client's authenticator gets that authenticator as CHAP-Challenge.
// Message-Authenticator is re-signed by EncodeRequest.
func (p *Proxy) buildForward(in *packet.Packet, id uint8, remote *host.RemoteHost) (*packet.Packet, error) {
	out := packet.NewWithDictionary(in.Code, id, in.Dict)
	out.Secret = remote.Secret

	var password []byte
	hasPassword := false

	for _, attr := range in.Attributes {
		if attr.Type == packet.AttrUserPassword {
			revealed, err := in.Password()
			if err != nil {
				return nil, fmt.Errorf("failed to reveal password for forwarding: %w", err)
			}
			password = revealed
			hasPassword = true
			continue
		}
		out.AddAttribute(attr.Clone())
	}

	if hasPassword {
		if err := out.SetPassword(password); err != nil {
			return nil, fmt.Errorf("failed to hide password for upstream: %w", err)
		}
	}

	if _, ok := in.GetAttribute(packet.AttrCHAPPassword); ok {
		if _, ok := in.GetAttribute(packet.AttrCHAPChallenge); !ok {
			out.AddAttribute(packet.NewAttribute(packet.AttrCHAPChallenge, append([]byte(nil), in.Authenticator[:]...)))
		}
	}

	return out, nil
}

// handleReply routes a validated reply from the proxy socket.
func (p *Proxy) handleReply(pkt *packet.Packet, remote *host.RemoteHost) {
	key := pendingKey{upstream: remote.Address, identifier: pkt.Identifier}

	entry, ok := p.pending.get(key)
	if !ok {
		p.server.drop(RoleProxy, newRejectError(pkt, ReasonUnmatchedReply))
		return
	}

	if !pkt.VerifyReply(entry.auth, remote.Secret) {
		p.server.drop(RoleProxy, newRejectError(pkt, ReasonAuthenticatorMismatch))
		return
	}

	if pkt.HasMessageAuthenticator() && !pkt.VerifyReplyMessageAuthenticator(entry.auth, remote.Secret) {
		p.server.drop(RoleProxy, newRejectError(pkt, ReasonAuthenticatorMismatch))
		return
	}

	if !codeIn(pkt.Code, entry.request.Code.ExpectedResponseCode()) {
		p.server.drop(RoleProxy, newRejectError(pkt, ReasonWrongCodeForPort))
		return
	}

	p.pending.remove(key)
	p.server.stats.proxyReplies.Add(1)

	reply, err := p.serveReply(&ProxyReply{
		Request:  entry.request,
		Reply:    pkt,
		Upstream: remote,
		Socket:   entry.socket,
	})
	if err != nil {
		p.server.stats.handlerErrors.Add(1)
		p.server.logger.Errorf("Proxy reply from %s dropped: %v", remote, err)
		return
	}
	if reply == nil {
		return
	}

	p.server.sendReply(entry.socket, entry.request, reply)
}

func (p *Proxy) serveReply(r *ProxyReply) (reply *packet.Packet, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reply = nil
			err = &HandlerError{Err: fmt.Errorf("%v", rec), Panic: true}
		}
	}()

	reply, err = p.replyHandler.ServeProxyReply(r)
	if err != nil {
		return nil, &HandlerError{Err: err}
	}
	return reply, nil
}

// expire retransmits or evicts requests that waited longer than the timeout.
func (p *Proxy) expire(now time.Time) {
	for _, entry := range p.pending.expired(now, p.timeout) {
		if entry.retriesLeft > 0 {
			entry.retriesLeft--
			entry.sentAt = now
			p.retransmit(entry)
			continue
		}

		p.pending.remove(entry.key)
		p.server.stats.proxyTimeouts.Add(1)
		p.server.logger.WithFields(map[string]interface{}{
			"upstream": entry.upstream.String(),
			"remote":   entry.request.Source.String(),
			"id":       entry.request.Identifier,
		}).Warn("Upstream did not answer, dropping request")
	}
}

func (p *Proxy) retransmit(entry *pendingRequest) {
	if _, err := p.socket.WriteTo(entry.data, entry.dest); err != nil {
		p.server.logger.Warnf("Retransmit to %s failed: %v", entry.dest, err)
	}
	p.server.stats.proxyRetransmits.Add(1)
}

func codeIn(code packet.Code, codes []packet.Code) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}
