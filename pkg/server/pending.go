package server

import (
	"net"
	"net/netip"
	"sort"
	"time"

	"github.com/vitalvas/radiusd/pkg/host"
	"github.com/vitalvas/radiusd/pkg/packet"
)

type pendingKey struct {
	upstream   netip.Addr
	identifier uint8
}

// originKey identifies a client request, so retransmissions of it map to the
// entry already in flight.
type originKey struct {
	source        string
	identifier    uint8
	authenticator [packet.AuthenticatorLength]byte
}

func originOf(pkt *packet.Packet) originKey {
	key := originKey{identifier: pkt.Identifier, authenticator: pkt.Authenticator}
	if pkt.Source != nil {
		key.source = pkt.Source.String()
	}
	return key
}

// pendingRequest is a forwarded request awaiting its upstream reply.
type pendingRequest struct {
	key      pendingKey
	request  *packet.Packet
	socket   *Socket
	upstream *host.RemoteHost
	dest     net.Addr

	// auth is the Request Authenticator sent upstream, needed to verify the reply.
	auth [packet.AuthenticatorLength]byte
	data []byte

	sentAt      time.Time
	retriesLeft int
}

// pendingTable is only touched from the dispatch goroutine.
type pendingTable struct {
	entries map[pendingKey]*pendingRequest
	origins map[originKey]*pendingRequest
	next    map[netip.Addr]uint8
}

func newPendingTable() *pendingTable {
	return &pendingTable{
		entries: make(map[pendingKey]*pendingRequest),
		origins: make(map[originKey]*pendingRequest),
		next:    make(map[netip.Addr]uint8),
	}
}

// allocate returns an identifier not in flight to upstream, rotating from the
// last one handed out.
func (t *pendingTable) allocate(upstream netip.Addr) (uint8, error) {
	start := t.next[upstream]
	for i := 0; i < 256; i++ {
		id := start + uint8(i)
		if _, busy := t.entries[pendingKey{upstream: upstream, identifier: id}]; !busy {
			t.next[upstream] = id + 1
			return id, nil
		}
	}
	return 0, ErrNoFreeIdentifier
}

func (t *pendingTable) add(req *pendingRequest) {
	t.entries[req.key] = req
	t.origins[originOf(req.request)] = req
}

func (t *pendingTable) get(key pendingKey) (*pendingRequest, bool) {
	req, ok := t.entries[key]
	return req, ok
}

// byOrigin finds the entry forwarded for the client request pkt.
func (t *pendingTable) byOrigin(pkt *packet.Packet) (*pendingRequest, bool) {
	req, ok := t.origins[originOf(pkt)]
	return req, ok
}

func (t *pendingTable) remove(key pendingKey) {
	req, ok := t.entries[key]
	if !ok {
		return
	}
	delete(t.entries, key)
	if t.origins[originOf(req.request)] == req {
		delete(t.origins, originOf(req.request))
	}
}

func (t *pendingTable) len() int {
	return len(t.entries)
}

// expired returns entries sent at least timeout before now, oldest first.
func (t *pendingTable) expired(now time.Time, timeout time.Duration) []*pendingRequest {
	var out []*pendingRequest
	for _, req := range t.entries {
		if now.Sub(req.sentAt) >= timeout {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].sentAt.Before(out[j].sentAt) })
	return out
}
