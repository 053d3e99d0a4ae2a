package crypto

import (
	"crypto/hmac"
	"crypto/md5"
	"errors"
)

// MessageAuthenticatorLength is the length of the Message-Authenticator value (RFC 3579 section 3.2).
const MessageAuthenticatorLength = 16

const (
	messageAuthenticatorType = 80
	headerLength             = 20
)

// ErrNoMessageAuthenticator indicates the datagram carries no Message-Authenticator attribute.
var ErrNoMessageAuthenticator = errors.New("message-authenticator not present")

// messageAuthenticatorValue returns the offset of the Message-Authenticator
// value inside an encoded datagram, or -1 when the attribute is absent or
// the attribute list is malformed.
func messageAuthenticatorValue(data []byte) int {
	if len(data) < headerLength {
		return -1
	}

	length := int(data[2])<<8 | int(data[3])
	if length > len(data) {
		return -1
	}

	for offset := headerLength; offset+2 <= length; {
		attrLen := int(data[offset+1])
		if attrLen < 2 || offset+attrLen > length {
			return -1
		}
		if data[offset] == messageAuthenticatorType {
			if attrLen != 2+MessageAuthenticatorLength {
				return -1
			}
			return offset + 2
		}
		offset += attrLen
	}
	return -1
}

// HasMessageAuthenticator reports whether the datagram carries a well-formed Message-Authenticator.
func HasMessageAuthenticator(data []byte) bool {
	return messageAuthenticatorValue(data) >= 0
}

// CalculateMessageAuthenticator computes HMAC-MD5 over the datagram with the
// Message-Authenticator value treated as zero. The authenticator field is
// used as it appears in data.
func CalculateMessageAuthenticator(data, secret []byte) (Authenticator, error) {
	var result Authenticator

	offset := messageAuthenticatorValue(data)
	if offset < 0 {
		return result, ErrNoMessageAuthenticator
	}

	length := int(data[2])<<8 | int(data[3])
	zeroed := make([]byte, length)
	copy(zeroed, data[:length])
	clear(zeroed[offset : offset+MessageAuthenticatorLength])

	mac := hmac.New(md5.New, secret)
	mac.Write(zeroed)
	copy(result[:], mac.Sum(nil))
	return result, nil
}

// SignMessageAuthenticator recomputes the Message-Authenticator of data in place.
func SignMessageAuthenticator(data, secret []byte) (Authenticator, error) {
	sum, err := CalculateMessageAuthenticator(data, secret)
	if err != nil {
		return sum, err
	}

	offset := messageAuthenticatorValue(data)
	copy(data[offset:offset+MessageAuthenticatorLength], sum[:])
	return sum, nil
}

// ValidateMessageAuthenticator reports whether the Message-Authenticator
// carried in data matches the one computed with secret.
func ValidateMessageAuthenticator(data, secret []byte) (bool, error) {
	expected, err := CalculateMessageAuthenticator(data, secret)
	if err != nil {
		return false, err
	}

	offset := messageAuthenticatorValue(data)
	return hmac.Equal(expected[:], data[offset:offset+MessageAuthenticatorLength]), nil
}
