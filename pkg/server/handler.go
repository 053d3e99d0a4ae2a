package server

import (
	"net"
	"net/netip"

	"github.com/vitalvas/radiusd/pkg/host"
	"github.com/vitalvas/radiusd/pkg/packet"
)

// Request is a validated packet handed to the Handler.
type Request struct {
	// Packet carries the matched host secret in Packet.Secret and the
	// source address in Packet.Source.
	Packet     *packet.Packet
	Socket     *Socket
	RemoteAddr net.Addr
	RemoteHost *host.RemoteHost

	proxy     *Proxy
	forwarded bool
}

// Code returns the packet code
func (r *Request) Code() packet.Code {
	return r.Packet.Code
}

// Role returns the role of the socket the request arrived on.
func (r *Request) Role() Role {
	return r.Socket.Role()
}

// Reply creates an empty reply addressed to the request source.
func (r *Request) Reply() *packet.Packet {
	return r.Packet.CreateReply()
}

// Forward proxies the request to the remote host with address upstream.
// The upstream reply is later routed back to the client by the ReplyHandler.
// It must only be called from within ServeRADIUS.
func (r *Request) Forward(upstream netip.Addr) error {
	if r.proxy == nil {
		return ErrProxyDisabled
	}
	if err := r.proxy.forward(r, upstream); err != nil {
		return err
	}
	r.forwarded = true
	return nil
}

// Forwarded reports whether Forward succeeded for this request.
func (r *Request) Forwarded() bool {
	return r.forwarded
}

// Handler processes requests arriving on auth and acct sockets. A non-nil
// reply is sent back from the socket the request arrived on; it should be
// built with Request.Reply so it carries the request authenticator.
type Handler interface {
	ServeRADIUS(r *Request) (*packet.Packet, error)
}

// HandlerFunc is an adapter to allow use of ordinary functions as RADIUS handlers
type HandlerFunc func(*Request) (*packet.Packet, error)

// ServeRADIUS calls f(r)
func (f HandlerFunc) ServeRADIUS(r *Request) (*packet.Packet, error) {
	return f(r)
}

// Middleware wraps a Handler and returns a new Handler
type Middleware func(Handler) Handler

// ProxyReply is an upstream reply matched to the request it answers.
type ProxyReply struct {
	// Request is the original client request.
	Request *packet.Packet
	// Reply is the upstream reply, carrying the upstream secret.
	Reply    *packet.Packet
	Upstream *host.RemoteHost
	// Socket is where the original request arrived.
	Socket *Socket
}

// ReplyHandler turns an upstream reply into the reply for the original
// client. Returning nil sends nothing.
type ReplyHandler interface {
	ServeProxyReply(r *ProxyReply) (*packet.Packet, error)
}

// ReplyHandlerFunc adapts a function to ReplyHandler.
type ReplyHandlerFunc func(*ProxyReply) (*packet.Packet, error)

// ServeProxyReply calls f(r)
func (f ReplyHandlerFunc) ServeProxyReply(r *ProxyReply) (*packet.Packet, error) {
	return f(r)
}

// RelayReplyHandler copies the upstream code and attributes into a reply to
// the original request. Upstream Proxy-State is not relayed; the client's own
// Proxy-State is echoed instead. An upstream Message-Authenticator is
// replaced by one signed for the client.
var RelayReplyHandler ReplyHandler = ReplyHandlerFunc(relayReply)

func relayReply(r *ProxyReply) (*packet.Packet, error) {
	reply := r.Request.CreateReply()
	reply.Code = r.Reply.Code

	for _, attr := range r.Reply.Attributes {
		switch attr.Type {
		case packet.AttrProxyState, packet.AttrMessageAuthenticator:
			continue
		}
		reply.AddAttribute(attr.Clone())
	}

	if r.Reply.HasMessageAuthenticator() {
		reply.AddMessageAuthenticator()
	}

	return reply, nil
}
