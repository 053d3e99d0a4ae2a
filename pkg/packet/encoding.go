package packet

import (
	"errors"
	"fmt"

	"github.com/vitalvas/radiusd/pkg/crypto"
)

// ErrMalformedPacket wraps every decoding failure.
var ErrMalformedPacket = errors.New("malformed packet")

// Encode converts a Packet into its binary representation per RFC 2865 Section 3.
// The authenticator field is written as-is.
func (p *Packet) Encode() ([]byte, error) {
	if err := p.IsValid(); err != nil {
		return nil, fmt.Errorf("invalid packet: %w", err)
	}

	data := make([]byte, PacketHeaderLength, p.Length)
	data[0] = byte(p.Code)
	data[1] = p.Identifier
	data[2] = byte(p.Length >> 8)
	data[3] = byte(p.Length)
	copy(data[4:20], p.Authenticator[:])

	return append(data, p.encodeAttributes()...), nil
}

// EncodeRequest encodes an outgoing request, filling in its Request Authenticator:
// random for Access-Request and Status-Server, computed from the secret otherwise.
// The chosen authenticator is stored on the packet so replies can be verified.
// A Message-Authenticator attribute, if present, is signed first.
func (p *Packet) EncodeRequest() ([]byte, error) {
	if p.Code.hasRandomAuthenticator() {
		if err := p.ensureRandomAuthenticator(); err != nil {
			return nil, err
		}
		data, err := p.Encode()
		if err != nil {
			return nil, err
		}
		if err := p.signMessageAuthenticator(data); err != nil {
			return nil, err
		}
		return data, nil
	}

	if len(p.Secret) == 0 {
		return nil, ErrMissingSecret
	}

	p.Authenticator = [AuthenticatorLength]byte{}
	data, err := p.Encode()
	if err != nil {
		return nil, err
	}
	if err := p.signMessageAuthenticator(data); err != nil {
		return nil, err
	}

	auth := crypto.CalculateRequestAuthenticator(uint8(p.Code), p.Identifier, p.Length,
		data[PacketHeaderLength:], p.Secret)
	p.Authenticator = auth
	copy(data[4:20], auth[:])

	return data, nil
}

// EncodeReply encodes a reply built with CreateReply. The packet's Authenticator
// must still hold the request authenticator; the encoded bytes carry the
// Response Authenticator computed with the packet secret.
func (p *Packet) EncodeReply() ([]byte, error) {
	if len(p.Secret) == 0 {
		return nil, ErrMissingSecret
	}

	data, err := p.Encode()
	if err != nil {
		return nil, err
	}
	if err := p.signMessageAuthenticator(data); err != nil {
		return nil, err
	}

	auth := crypto.CalculateResponseAuthenticator(uint8(p.Code), p.Identifier, p.Length,
		p.Authenticator, data[PacketHeaderLength:], p.Secret)
	copy(data[4:20], auth[:])

	return data, nil
}

// signMessageAuthenticator fills the Message-Authenticator of the encoded
// packet in data and mirrors the value onto the attribute.
func (p *Packet) signMessageAuthenticator(data []byte) error {
	attr, ok := p.GetAttribute(AttrMessageAuthenticator)
	if !ok {
		return nil
	}
	if len(p.Secret) == 0 {
		return ErrMissingSecret
	}

	sum, err := crypto.SignMessageAuthenticator(data, p.Secret)
	if err != nil {
		return fmt.Errorf("failed to sign Message-Authenticator: %w", err)
	}
	attr.Value = sum[:]
	return nil
}

func (p *Packet) encodeAttributes() []byte {
	data := make([]byte, 0, max(int(p.Length)-PacketHeaderLength, 0))
	for _, attr := range p.Attributes {
		data = append(data, attr.Type, attr.Length)
		data = append(data, attr.Value...)
	}
	return data
}

// Decode parses binary data into a Packet per RFC 2865 Section 3.
// Octets beyond the Length field are padding and ignored.
func Decode(data []byte) (*Packet, error) {
	if len(data) < MinPacketLength {
		return nil, fmt.Errorf("%w: packet too short: %d bytes", ErrMalformedPacket, len(data))
	}

	length := uint16(data[2])<<8 | uint16(data[3])

	if length < MinPacketLength || length > MaxPacketLength {
		return nil, fmt.Errorf("%w: invalid packet length in header: %d", ErrMalformedPacket, length)
	}

	if int(length) > len(data) {
		return nil, fmt.Errorf("%w: packet length mismatch: header says %d, got %d", ErrMalformedPacket, length, len(data))
	}

	packet := &Packet{
		Code:       Code(data[0]),
		Identifier: data[1],
		Length:     length,
		Attributes: make([]*Attribute, 0),
	}
	copy(packet.Authenticator[:], data[4:20])

	offset := PacketHeaderLength
	for offset < int(length) {
		if offset+AttributeHeaderLength > int(length) {
			return nil, fmt.Errorf("%w: incomplete attribute header at offset %d", ErrMalformedPacket, offset)
		}

		attrType := data[offset]
		attrLength := data[offset+1]

		if attrLength < AttributeHeaderLength {
			return nil, fmt.Errorf("%w: invalid attribute length: %d", ErrMalformedPacket, attrLength)
		}

		if offset+int(attrLength) > int(length) {
			return nil, fmt.Errorf("%w: attribute extends beyond packet: offset %d, length %d, packet length %d",
				ErrMalformedPacket, offset, attrLength, length)
		}

		value := make([]byte, int(attrLength)-AttributeHeaderLength)
		copy(value, data[offset+AttributeHeaderLength:offset+int(attrLength)])

		packet.Attributes = append(packet.Attributes, &Attribute{
			Type:   attrType,
			Length: attrLength,
			Value:  value,
		})
		offset += int(attrLength)
	}

	return packet, nil
}
