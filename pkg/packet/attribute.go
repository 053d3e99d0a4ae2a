package packet

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Attribute represents a RADIUS attribute
type Attribute struct {
	Type   uint8
	Length uint8
	Value  []byte
}

// NewAttribute creates a new RADIUS attribute
func NewAttribute(attrType uint8, value []byte) *Attribute {
	return &Attribute{
		Type:   attrType,
		Length: uint8(len(value) + AttributeHeaderLength),
		Value:  value,
	}
}

// NewStringAttribute creates a text attribute.
func NewStringAttribute(attrType uint8, value string) *Attribute {
	return NewAttribute(attrType, []byte(value))
}

// NewIntegerAttribute creates a 32-bit big-endian integer attribute.
func NewIntegerAttribute(attrType uint8, value uint32) *Attribute {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, value)
	return NewAttribute(attrType, buf)
}

// NewIPAddrAttribute creates an IPv4 address attribute.
func NewIPAddrAttribute(attrType uint8, ip net.IP) (*Attribute, error) {
	v4 := ip.To4()
	if v4 == nil {
		return nil, fmt.Errorf("not an IPv4 address: %s", ip)
	}
	return NewAttribute(attrType, append([]byte(nil), v4...)), nil
}

// String returns the value as text.
func (a *Attribute) String() string {
	return string(a.Value)
}

// Integer decodes a 32-bit integer value.
func (a *Attribute) Integer() (uint32, error) {
	if len(a.Value) != 4 {
		return 0, fmt.Errorf("integer attribute %d has %d bytes", a.Type, len(a.Value))
	}
	return binary.BigEndian.Uint32(a.Value), nil
}

// IPAddr decodes an IPv4 address value.
func (a *Attribute) IPAddr() (net.IP, error) {
	if len(a.Value) != net.IPv4len {
		return nil, fmt.Errorf("address attribute %d has %d bytes", a.Type, len(a.Value))
	}
	return net.IP(append([]byte(nil), a.Value...)), nil
}

// Clone returns a deep copy.
func (a *Attribute) Clone() *Attribute {
	return &Attribute{
		Type:   a.Type,
		Length: a.Length,
		Value:  append([]byte(nil), a.Value...),
	}
}

func (a *Attribute) validate() error {
	if len(a.Value) > MaxAttributeValueLength {
		return fmt.Errorf("attribute %d value too long: %d bytes", a.Type, len(a.Value))
	}
	if int(a.Length) != len(a.Value)+AttributeHeaderLength {
		return fmt.Errorf("attribute %d length mismatch: header says %d, value has %d bytes", a.Type, a.Length, len(a.Value))
	}
	return nil
}
