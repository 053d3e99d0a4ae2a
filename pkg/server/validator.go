package server

import (
	"github.com/vitalvas/radiusd/pkg/host"
	"github.com/vitalvas/radiusd/pkg/packet"
)

// Reason explains why a packet was dropped.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonUnknownSource
	ReasonWrongCodeForPort
	ReasonAuthenticatorMismatch
	ReasonUnmatchedReply
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonUnknownSource:
		return "unknown source"
	case ReasonWrongCodeForPort:
		return "wrong code for port"
	case ReasonAuthenticatorMismatch:
		return "authenticator mismatch"
	case ReasonUnmatchedReply:
		return "unmatched reply"
	default:
		return "unknown"
	}
}

// Decision is the outcome of validating one packet.
type Decision struct {
	Accept bool
	Reason Reason
	// Host is the matched remote host. It is set on accept and on rejections
	// after the source lookup succeeded.
	Host *host.RemoteHost
}

// Err returns a *RejectError for rejected decisions and nil otherwise.
func (d Decision) Err(pkt *packet.Packet) error {
	if d.Accept {
		return nil
	}
	return newRejectError(pkt, d.Reason)
}

// Validator decides whether a decoded packet may be dispatched.
type Validator struct {
	hosts *host.RemoteHostTable
}

// NewValidator creates a validator backed by hosts.
func NewValidator(hosts *host.RemoteHostTable) *Validator {
	return &Validator{hosts: hosts}
}

// Validate checks pkt, which arrived on a socket of the given role from
// pkt.Source. The first failing rule decides the reason. On accept the
// matched host secret is attached to the packet.
func (v *Validator) Validate(pkt *packet.Packet, role Role) Decision {
	remote, ok := v.hosts.Lookup(pkt.Source)
	if !ok {
		return Decision{Reason: ReasonUnknownSource}
	}

	if !role.Accepts(pkt.Code) {
		return Decision{Reason: ReasonWrongCodeForPort, Host: remote}
	}

	if pkt.Code == packet.CodeAccountingRequest && !pkt.VerifyAccountingAuthenticator(remote.Secret) {
		return Decision{Reason: ReasonAuthenticatorMismatch, Host: remote}
	}

	if role != RoleProxy && pkt.HasMessageAuthenticator() && !pkt.VerifyMessageAuthenticator(remote.Secret) {
		return Decision{Reason: ReasonAuthenticatorMismatch, Host: remote}
	}

	pkt.Secret = remote.Secret
	return Decision{Accept: true, Host: remote}
}
