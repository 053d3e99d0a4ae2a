package host

import (
	"errors"
	"fmt"
	"net"

	"github.com/vitalvas/radiusd/pkg/dictionary"
	"github.com/vitalvas/radiusd/pkg/packet"
)

const (
	// DefaultAuthPort is the IANA assigned RADIUS authentication port.
	DefaultAuthPort = 1812
	// DefaultAcctPort is the IANA assigned RADIUS accounting port.
	DefaultAcctPort = 1813
)

// ErrNoDestination is returned when a packet has no Source address to send to.
var ErrNoDestination = errors.New("packet has no destination address")

// PacketWriter is the subset of net.PacketConn used to send datagrams.
type PacketWriter interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
}

// Host is the local RADIUS identity: the dictionary and the ports this
// daemon serves. It is immutable after New returns.
type Host struct {
	Dict     *dictionary.Dictionary
	AuthPort uint16
	AcctPort uint16
}

// Option configures a Host.
type Option func(*Host)

// WithDictionary sets the dictionary attached to packets built by the host.
func WithDictionary(dict *dictionary.Dictionary) Option {
	return func(h *Host) {
		h.Dict = dict
	}
}

// WithAuthPort overrides the authentication port.
func WithAuthPort(port uint16) Option {
	return func(h *Host) {
		h.AuthPort = port
	}
}

// WithAcctPort overrides the accounting port.
func WithAcctPort(port uint16) Option {
	return func(h *Host) {
		h.AcctPort = port
	}
}

// New creates a Host with ports 1812/1813 and the standard dictionary
// unless overridden by opts.
func New(opts ...Option) (*Host, error) {
	h := &Host{
		AuthPort: DefaultAuthPort,
		AcctPort: DefaultAcctPort,
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.Dict == nil {
		dict, err := dictionary.NewDefault()
		if err != nil {
			return nil, fmt.Errorf("failed to load default dictionary: %w", err)
		}
		h.Dict = dict
	}

	return h, nil
}

// NewPacket creates a packet bound to the host dictionary.
func (h *Host) NewPacket(code packet.Code, identifier uint8) *packet.Packet {
	return packet.NewWithDictionary(code, identifier, h.Dict)
}

// NewAuthPacket creates an Access-Request.
func (h *Host) NewAuthPacket(identifier uint8) *packet.Packet {
	return h.NewPacket(packet.CodeAccessRequest, identifier)
}

// NewAcctPacket creates an Accounting-Request.
func (h *Host) NewAcctPacket(identifier uint8) *packet.Packet {
	return h.NewPacket(packet.CodeAccountingRequest, identifier)
}

// SendPacket encodes pkt as a request, filling in its Request Authenticator,
// and writes it to pkt.Source.
func (h *Host) SendPacket(conn PacketWriter, pkt *packet.Packet) error {
	if pkt.Source == nil {
		return ErrNoDestination
	}

	data, err := pkt.EncodeRequest()
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	if _, err := conn.WriteTo(data, pkt.Source); err != nil {
		return fmt.Errorf("failed to send request to %s: %w", pkt.Source, err)
	}

	return nil
}

// SendReplyPacket encodes pkt as a reply, computing the Response Authenticator
// from the request authenticator it carries, and writes it to pkt.Source.
func (h *Host) SendReplyPacket(conn PacketWriter, pkt *packet.Packet) error {
	if pkt.Source == nil {
		return ErrNoDestination
	}

	data, err := pkt.EncodeReply()
	if err != nil {
		return fmt.Errorf("failed to encode reply: %w", err)
	}

	if _, err := conn.WriteTo(data, pkt.Source); err != nil {
		return fmt.Errorf("failed to send reply to %s: %w", pkt.Source, err)
	}

	return nil
}
