package packet

import (
	"errors"
	"fmt"
	"net"

	"github.com/vitalvas/radiusd/pkg/crypto"
	"github.com/vitalvas/radiusd/pkg/dictionary"
)

var (
	// ErrMissingSecret is returned when an operation needs the shared secret and none is set.
	ErrMissingSecret = errors.New("packet has no shared secret")
	// ErrUnknownAttribute is returned for attribute names the dictionary does not define.
	ErrUnknownAttribute = errors.New("unknown attribute")
)

// Packet represents a RADIUS packet as defined in RFC 2865
type Packet struct {
	Code          Code
	Identifier    uint8
	Length        uint16
	Authenticator [AuthenticatorLength]byte
	Attributes    []*Attribute

	// Dict is used for attribute name lookups.
	Dict *dictionary.Dictionary

	// Secret is the shared secret of the remote host this packet belongs to.
	// The decoder never sets it; validation attaches it from the trusted host table.
	Secret []byte

	// Source is the address the packet came from, or the address replies go to.
	Source net.Addr
}

// New creates a new RADIUS packet with the specified code and identifier
func New(code Code, identifier uint8) *Packet {
	return &Packet{
		Code:       code,
		Identifier: identifier,
		Length:     PacketHeaderLength,
		Attributes: make([]*Attribute, 0),
	}
}

// NewWithDictionary creates a new RADIUS packet with dictionary support
func NewWithDictionary(code Code, identifier uint8, dict *dictionary.Dictionary) *Packet {
	p := New(code, identifier)
	p.Dict = dict
	return p
}

// AddAttribute adds an attribute to the packet
func (p *Packet) AddAttribute(attr *Attribute) {
	p.Attributes = append(p.Attributes, attr)
	p.Length += uint16(attr.Length)
}

// GetAttribute returns the first attribute with the specified type
func (p *Packet) GetAttribute(attrType uint8) (*Attribute, bool) {
	for _, attr := range p.Attributes {
		if attr.Type == attrType {
			return attr, true
		}
	}
	return nil, false
}

// GetAttributes returns all attributes with the specified type
func (p *Packet) GetAttributes(attrType uint8) []*Attribute {
	var attrs []*Attribute
	for _, attr := range p.Attributes {
		if attr.Type == attrType {
			attrs = append(attrs, attr)
		}
	}
	return attrs
}

// RemoveAttributes removes all attributes with the specified type
func (p *Packet) RemoveAttributes(attrType uint8) int {
	kept := p.Attributes[:0]
	removed := 0
	for _, attr := range p.Attributes {
		if attr.Type == attrType {
			p.Length -= uint16(attr.Length)
			removed++
			continue
		}
		kept = append(kept, attr)
	}
	p.Attributes = kept
	return removed
}

// Lookup returns all attributes with the given dictionary name.
func (p *Packet) Lookup(name string) ([]*Attribute, error) {
	if p.Dict == nil {
		return nil, fmt.Errorf("%w: %s (no dictionary)", ErrUnknownAttribute, name)
	}
	def, ok := p.Dict.LookupByName(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAttribute, name)
	}
	return p.GetAttributes(def.ID), nil
}

// AttributeName resolves an attribute type through the packet dictionary.
func (p *Packet) AttributeName(attrType uint8) string {
	if p.Dict == nil {
		return fmt.Sprintf("Attr-%d", attrType)
	}
	return p.Dict.Name(attrType)
}

// CreateReply builds an empty reply carrying the request's routing metadata:
// identifier, request authenticator, secret, source address, dictionary and
// any Proxy-State attributes, which RFC 2865 requires to be echoed.
func (p *Packet) CreateReply() *Packet {
	code := p.Code
	if codes := p.Code.ExpectedResponseCode(); len(codes) > 0 {
		code = codes[0]
	}

	reply := NewWithDictionary(code, p.Identifier, p.Dict)
	reply.Authenticator = p.Authenticator
	reply.Secret = p.Secret
	reply.Source = p.Source

	for _, attr := range p.GetAttributes(AttrProxyState) {
		reply.AddAttribute(attr.Clone())
	}

	return reply
}

// VerifyAccountingAuthenticator reports whether the Request Authenticator matches
// the one computed over the packet with secret (RFC 2866 section 3).
func (p *Packet) VerifyAccountingAuthenticator(secret []byte) bool {
	return crypto.ValidateRequestAuthenticator(uint8(p.Code), p.Identifier, p.Length,
		p.encodeAttributes(), p.Authenticator, secret)
}

// VerifyReply reports whether p is a genuine reply to a request that carried
// requestAuth, signed with secret.
func (p *Packet) VerifyReply(requestAuth [AuthenticatorLength]byte, secret []byte) bool {
	return crypto.ValidateResponseAuthenticator(uint8(p.Code), p.Identifier, p.Length,
		requestAuth, p.encodeAttributes(), p.Authenticator, secret)
}

// AddMessageAuthenticator appends a zeroed Message-Authenticator unless one is
// present. The value is filled in by EncodeRequest and EncodeReply.
func (p *Packet) AddMessageAuthenticator() {
	if p.HasMessageAuthenticator() {
		return
	}
	p.AddAttribute(NewAttribute(AttrMessageAuthenticator, make([]byte, crypto.MessageAuthenticatorLength)))
}

// HasMessageAuthenticator reports whether the packet carries a Message-Authenticator.
func (p *Packet) HasMessageAuthenticator() bool {
	_, ok := p.GetAttribute(AttrMessageAuthenticator)
	return ok
}

// VerifyMessageAuthenticator checks the Message-Authenticator of a request
// (RFC 3579 section 3.2). Access-Request and Status-Server are signed over
// their own authenticator, other requests over sixteen zero octets
// (RFC 5080 section 2.2.2). It returns false when the attribute is absent.
func (p *Packet) VerifyMessageAuthenticator(secret []byte) bool {
	var authField [AuthenticatorLength]byte
	if p.Code.hasRandomAuthenticator() {
		authField = p.Authenticator
	}
	return p.validMessageAuthenticator(authField, secret)
}

// VerifyReplyMessageAuthenticator checks the Message-Authenticator of a reply
// to a request that carried requestAuth.
func (p *Packet) VerifyReplyMessageAuthenticator(requestAuth [AuthenticatorLength]byte, secret []byte) bool {
	return p.validMessageAuthenticator(requestAuth, secret)
}

func (p *Packet) validMessageAuthenticator(authField [AuthenticatorLength]byte, secret []byte) bool {
	if !p.HasMessageAuthenticator() {
		return false
	}

	data, err := p.Encode()
	if err != nil {
		return false
	}
	copy(data[4:20], authField[:])

	valid, err := crypto.ValidateMessageAuthenticator(data, secret)
	return err == nil && valid
}

// Password reveals the User-Password attribute using the packet secret and authenticator.
func (p *Packet) Password() ([]byte, error) {
	if len(p.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	attr, ok := p.GetAttribute(AttrUserPassword)
	if !ok {
		return nil, fmt.Errorf("%w: User-Password not present", ErrUnknownAttribute)
	}
	return crypto.RevealPassword(attr.Value, p.Secret, p.Authenticator)
}

// SetPassword replaces User-Password with password hidden under the packet secret.
// A random Request Authenticator is generated first if none is set.
func (p *Packet) SetPassword(password []byte) error {
	if len(p.Secret) == 0 {
		return ErrMissingSecret
	}
	if err := p.ensureRandomAuthenticator(); err != nil {
		return err
	}

	hidden, err := crypto.HidePassword(password, p.Secret, p.Authenticator)
	if err != nil {
		return err
	}

	p.RemoveAttributes(AttrUserPassword)
	p.AddAttribute(NewAttribute(AttrUserPassword, hidden))
	return nil
}

func (p *Packet) ensureRandomAuthenticator() error {
	if p.Authenticator != [AuthenticatorLength]byte{} {
		return nil
	}
	auth, err := crypto.GenerateRequestAuthenticator()
	if err != nil {
		return err
	}
	p.Authenticator = auth
	return nil
}

// IsValid performs basic validation of the packet
func (p *Packet) IsValid() error {
	if !p.Code.IsValid() {
		return fmt.Errorf("invalid packet code: %d", p.Code)
	}

	if p.Length < MinPacketLength {
		return fmt.Errorf("packet too short: %d bytes", p.Length)
	}

	if p.Length > MaxPacketLength {
		return fmt.Errorf("packet too long: %d bytes", p.Length)
	}

	expectedLength := uint16(PacketHeaderLength)
	for _, attr := range p.Attributes {
		if err := attr.validate(); err != nil {
			return err
		}
		expectedLength += uint16(attr.Length)
	}

	if p.Length != expectedLength {
		return fmt.Errorf("packet length mismatch: header says %d, calculated %d", p.Length, expectedLength)
	}

	return nil
}

// String returns a string representation of the packet
func (p *Packet) String() string {
	return fmt.Sprintf("Code=%s(%d), ID=%d, Length=%d, Attributes=%d",
		p.Code.String(), p.Code, p.Identifier, p.Length, len(p.Attributes))
}
