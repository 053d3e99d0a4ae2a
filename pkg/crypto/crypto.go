package crypto

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"errors"
	"fmt"
)

// AuthenticatorLength is the length of RADIUS authenticators in bytes
const AuthenticatorLength = 16

// Authenticator represents a 16-byte RADIUS authenticator
type Authenticator [AuthenticatorLength]byte

var (
	// ErrInvalidAuthenticatorLength indicates an invalid authenticator length
	ErrInvalidAuthenticatorLength = errors.New("invalid authenticator length")
	// ErrAuthenticatorMismatch indicates authenticator validation failed
	ErrAuthenticatorMismatch = errors.New("authenticator validation failed")
)

// GenerateRequestAuthenticator generates a random Request Authenticator
func GenerateRequestAuthenticator() (Authenticator, error) {
	var auth Authenticator
	if _, err := rand.Read(auth[:]); err != nil {
		return auth, fmt.Errorf("failed to generate random authenticator: %w", err)
	}
	return auth, nil
}

// digest hashes Code + ID + Length + authField + attributes + secret.
func digest(code, identifier uint8, length uint16, authField []byte, attributes, secret []byte) Authenticator {
	hash := md5.New()
	hash.Write([]byte{code, identifier, byte(length >> 8), byte(length)})
	hash.Write(authField)
	hash.Write(attributes)
	hash.Write(secret)

	var result Authenticator
	copy(result[:], hash.Sum(nil))
	return result
}

// CalculateResponseAuthenticator calculates the Response Authenticator (RFC 2865 section 3):
// MD5(Code + ID + Length + Request Authenticator + Response Attributes + Secret)
func CalculateResponseAuthenticator(code, identifier uint8, length uint16, requestAuth Authenticator, attributes, secret []byte) Authenticator {
	return digest(code, identifier, length, requestAuth[:], attributes, secret)
}

// ValidateResponseAuthenticator reports whether received matches the expected Response Authenticator.
func ValidateResponseAuthenticator(code, identifier uint8, length uint16, requestAuth Authenticator, attributes []byte, received Authenticator, secret []byte) bool {
	expected := CalculateResponseAuthenticator(code, identifier, length, requestAuth, attributes, secret)
	return expected.Equal(received)
}

// CalculateRequestAuthenticator calculates the Request Authenticator of accounting and
// CoA requests (RFC 2866 section 3):
// MD5(Code + ID + Length + 16 zero octets + Request Attributes + Secret)
func CalculateRequestAuthenticator(code, identifier uint8, length uint16, attributes, secret []byte) Authenticator {
	var zero Authenticator
	return digest(code, identifier, length, zero[:], attributes, secret)
}

// ValidateRequestAuthenticator reports whether received matches the expected Request Authenticator.
func ValidateRequestAuthenticator(code, identifier uint8, length uint16, attributes []byte, received Authenticator, secret []byte) bool {
	expected := CalculateRequestAuthenticator(code, identifier, length, attributes, secret)
	return expected.Equal(received)
}

// String returns a hex representation of the authenticator
func (a Authenticator) String() string {
	return fmt.Sprintf("%x", a[:])
}

// Equal compares two authenticators in constant time.
func (a Authenticator) Equal(other Authenticator) bool {
	return hmac.Equal(a[:], other[:])
}

// IsZero returns true if the authenticator is all zeros
func (a Authenticator) IsZero() bool {
	return a.Equal(Authenticator{})
}

// FromBytes creates an authenticator from a byte slice
func FromBytes(data []byte) (Authenticator, error) {
	var auth Authenticator
	if len(data) != AuthenticatorLength {
		return auth, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAuthenticatorLength, AuthenticatorLength, len(data))
	}
	copy(auth[:], data)
	return auth, nil
}
