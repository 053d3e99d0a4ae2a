package packet

import (
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/vitalvas/radiusd/pkg/dictionary"
)

// AddAttributeByName adds an attribute by its dictionary name, encoding value
// according to the attribute's data type. User-Password is hidden with the
// packet secret.
func (p *Packet) AddAttributeByName(name string, value interface{}) error {
	if p.Dict == nil {
		return fmt.Errorf("%w: %s (no dictionary)", ErrUnknownAttribute, name)
	}

	def, ok := p.Dict.LookupByName(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAttribute, name)
	}

	if def.Encryption == dictionary.EncryptionUserPassword {
		password, err := bytesValue(value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return p.SetPassword(password)
	}

	attr, err := encodeTyped(def, value)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := attr.validate(); err != nil {
		return err
	}

	p.AddAttribute(attr)
	return nil
}

func encodeTyped(def *dictionary.AttributeDefinition, value interface{}) (*Attribute, error) {
	switch def.DataType {
	case dictionary.DataTypeInteger, dictionary.DataTypeDate:
		n, err := integerValue(value)
		if err != nil {
			return nil, err
		}
		return NewIntegerAttribute(def.ID, n), nil

	case dictionary.DataTypeIPAddr:
		var ip net.IP
		switch v := value.(type) {
		case net.IP:
			ip = v
		case string:
			ip = net.ParseIP(v)
			if ip == nil {
				return nil, fmt.Errorf("invalid IP address %q", v)
			}
		default:
			return nil, fmt.Errorf("unsupported value type %T for ipaddr", value)
		}
		return NewIPAddrAttribute(def.ID, ip)

	default:
		b, err := bytesValue(value)
		if err != nil {
			return nil, err
		}
		return NewAttribute(def.ID, b), nil
	}
}

func bytesValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return append([]byte(nil), v...), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", value)
	}
}

func integerValue(value interface{}) (uint32, error) {
	switch v := value.(type) {
	case uint32:
		return v, nil
	case int:
		if v < 0 || int64(v) > int64(^uint32(0)) {
			return 0, fmt.Errorf("integer %d out of range", v)
		}
		return uint32(v), nil
	case time.Time:
		return uint32(v.Unix()), nil
	case string:
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid integer %q", v)
		}
		return uint32(n), nil
	default:
		return 0, fmt.Errorf("unsupported value type %T for integer", value)
	}
}

// FormatAttribute renders an attribute value for display using its
// dictionary type. Unknown and binary attributes are shown as hex.
func (p *Packet) FormatAttribute(attr *Attribute) string {
	var def *dictionary.AttributeDefinition
	if p.Dict != nil {
		def, _ = p.Dict.LookupByID(attr.Type)
	}
	if def == nil {
		return "0x" + hex.EncodeToString(attr.Value)
	}

	if def.Encryption != dictionary.EncryptionNone {
		return "<hidden>"
	}

	switch def.DataType {
	case dictionary.DataTypeString:
		return attr.String()
	case dictionary.DataTypeInteger:
		if n, err := attr.Integer(); err == nil {
			return strconv.FormatUint(uint64(n), 10)
		}
	case dictionary.DataTypeDate:
		if n, err := attr.Integer(); err == nil {
			return time.Unix(int64(n), 0).UTC().Format(time.RFC3339)
		}
	case dictionary.DataTypeIPAddr:
		if ip, err := attr.IPAddr(); err == nil {
			return ip.String()
		}
	}

	return "0x" + hex.EncodeToString(attr.Value)
}
