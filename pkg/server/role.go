package server

import "github.com/vitalvas/radiusd/pkg/packet"

// Role tells the dispatcher what a socket is for.
type Role uint8

const (
	// RoleAuth sockets receive Access-Requests from clients.
	RoleAuth Role = iota + 1
	// RoleAcct sockets receive accounting traffic from clients.
	RoleAcct
	// RoleProxy is the socket requests are forwarded from; it receives upstream replies.
	RoleProxy
)

func (r Role) String() string {
	switch r {
	case RoleAuth:
		return "auth"
	case RoleAcct:
		return "acct"
	case RoleProxy:
		return "proxy"
	default:
		return "unknown"
	}
}

// Accepts reports whether a packet with code may arrive on a socket of this role.
func (r Role) Accepts(code packet.Code) bool {
	switch r {
	case RoleAuth:
		return code == packet.CodeAccessRequest
	case RoleAcct:
		return code == packet.CodeAccountingRequest || code == packet.CodeAccountingResponse
	case RoleProxy:
		return code == packet.CodeAccessAccept || code == packet.CodeAccessReject ||
			code == packet.CodeAccountingResponse
	default:
		return false
	}
}
