package main

import (
	"crypto/subtle"
	"fmt"
	"net/netip"

	"github.com/vitalvas/radiusd/pkg/config"
	"github.com/vitalvas/radiusd/pkg/crypto"
	"github.com/vitalvas/radiusd/pkg/log"
	"github.com/vitalvas/radiusd/pkg/packet"
	"github.com/vitalvas/radiusd/pkg/server"
)

// handler answers Access-Request from a static user table and acknowledges
// accounting. With proxying enabled, requests from every client except the
// upstream itself are forwarded instead.
type handler struct {
	users    map[string]string
	upstream netip.Addr
	logger   log.Logger
}

func newHandler(cfg *config.Config, logger log.Logger) (*handler, error) {
	h := &handler{
		users:  cfg.Users,
		logger: logger,
	}

	if cfg.Proxy.Enabled {
		upstream, err := cfg.UpstreamAddr()
		if err != nil {
			return nil, err
		}
		h.upstream = upstream
	}

	return h, nil
}

func (h *handler) ServeRADIUS(r *server.Request) (*packet.Packet, error) {
	if h.shouldForward(r) {
		if err := r.Forward(h.upstream); err != nil {
			return nil, fmt.Errorf("forward to %s: %w", h.upstream, err)
		}
		return nil, nil
	}

	switch r.Code() {
	case packet.CodeAccessRequest:
		return h.authenticate(r)
	case packet.CodeAccountingRequest:
		return r.Reply(), nil
	default:
		h.logger.Debugf("Ignoring %s from %s", r.Code(), r.RemoteAddr)
		return nil, nil
	}
}

func (h *handler) shouldForward(r *server.Request) bool {
	if !h.upstream.IsValid() {
		return false
	}
	if r.RemoteHost != nil && r.RemoteHost.Address == h.upstream {
		return false
	}
	return r.Code() == packet.CodeAccessRequest || r.Code() == packet.CodeAccountingRequest
}

func (h *handler) authenticate(r *server.Request) (*packet.Packet, error) {
	reply := r.Reply()

	username := ""
	if attr, ok := r.Packet.GetAttribute(packet.AttrUserName); ok {
		username = attr.String()
	}

	expected, known := h.users[username]

	if !known || !checkPassword(r.Packet, []byte(expected)) {
		h.logger.Infof("Access rejected for user %q from %s", username, r.RemoteAddr)
		reply.Code = packet.CodeAccessReject
		reply.AddAttribute(packet.NewStringAttribute(packet.AttrReplyMessage, "Access denied"))
		return reply, nil
	}

	h.logger.Infof("Access granted for user %q from %s", username, r.RemoteAddr)
	reply.Code = packet.CodeAccessAccept
	reply.AddAttribute(packet.NewStringAttribute(packet.AttrReplyMessage, "Welcome, "+username))
	return reply, nil
}

// checkPassword verifies either CHAP-Password or User-Password. The CHAP
// challenge is the Request Authenticator when CHAP-Challenge is absent.
func checkPassword(pkt *packet.Packet, expected []byte) bool {
	if chap, ok := pkt.GetAttribute(packet.AttrCHAPPassword); ok {
		challenge := pkt.Authenticator[:]
		if attr, ok := pkt.GetAttribute(packet.AttrCHAPChallenge); ok {
			challenge = attr.Value
		}
		return crypto.VerifyCHAPPassword(chap.Value, expected, challenge)
	}

	password, err := pkt.Password()
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare(password, expected) == 1
}
