package server

import "sync/atomic"

// Stats is a point-in-time copy of the dispatcher counters.
type Stats struct {
	Received      uint64
	Accepted      uint64
	DecodeErrors  uint64
	UnknownSource uint64
	WrongCode     uint64
	BadAuth       uint64
	Unmatched     uint64
	HandlerErrors uint64
	RepliesSent   uint64
	SendErrors    uint64

	ProxyForwarded   uint64
	ProxyRetransmits uint64
	ProxyReplies     uint64
	ProxyTimeouts    uint64
}

// Dropped returns the number of packets rejected by validation.
func (s Stats) Dropped() uint64 {
	return s.UnknownSource + s.WrongCode + s.BadAuth + s.Unmatched
}

type counters struct {
	received      atomic.Uint64
	accepted      atomic.Uint64
	decodeErrors  atomic.Uint64
	unknownSource atomic.Uint64
	wrongCode     atomic.Uint64
	badAuth       atomic.Uint64
	unmatched     atomic.Uint64
	handlerErrors atomic.Uint64
	repliesSent   atomic.Uint64
	sendErrors    atomic.Uint64

	proxyForwarded   atomic.Uint64
	proxyRetransmits atomic.Uint64
	proxyReplies     atomic.Uint64
	proxyTimeouts    atomic.Uint64
}

func (c *counters) reject(reason Reason) {
	switch reason {
	case ReasonUnknownSource:
		c.unknownSource.Add(1)
	case ReasonWrongCodeForPort:
		c.wrongCode.Add(1)
	case ReasonAuthenticatorMismatch:
		c.badAuth.Add(1)
	case ReasonUnmatchedReply:
		c.unmatched.Add(1)
	}
}

func (c *counters) snapshot() Stats {
	return Stats{
		Received:         c.received.Load(),
		Accepted:         c.accepted.Load(),
		DecodeErrors:     c.decodeErrors.Load(),
		UnknownSource:    c.unknownSource.Load(),
		WrongCode:        c.wrongCode.Load(),
		BadAuth:          c.badAuth.Load(),
		Unmatched:        c.unmatched.Load(),
		HandlerErrors:    c.handlerErrors.Load(),
		RepliesSent:      c.repliesSent.Load(),
		SendErrors:       c.sendErrors.Load(),
		ProxyForwarded:   c.proxyForwarded.Load(),
		ProxyRetransmits: c.proxyRetransmits.Load(),
		ProxyReplies:     c.proxyReplies.Load(),
		ProxyTimeouts:    c.proxyTimeouts.Load(),
	}
}
