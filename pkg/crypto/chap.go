package crypto

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"
)

const (
	// CHAPChallengeLength is the default length of a CHAP challenge in bytes.
	CHAPChallengeLength = 16

	// CHAPPasswordLength is the size of a CHAP-Password value: ident plus MD5 hash.
	CHAPPasswordLength = 1 + md5.Size
)

// NewCHAPChallenge returns length random bytes, clamped to 1..253 so the
// challenge fits a single CHAP-Challenge attribute.
func NewCHAPChallenge(length int) ([]byte, error) {
	if length <= 0 {
		length = CHAPChallengeLength
	}
	length = min(length, 253)

	challenge := make([]byte, length)
	if _, err := rand.Read(challenge); err != nil {
		return nil, err
	}
	return challenge, nil
}

// CHAPPassword builds a CHAP-Password value (RFC 2865 section 5.3):
// ident followed by MD5(ident + password + challenge).
func CHAPPassword(ident byte, password, challenge []byte) []byte {
	hash := md5.New()
	hash.Write([]byte{ident})
	hash.Write(password)
	hash.Write(challenge)

	return hash.Sum([]byte{ident})
}

// VerifyCHAPPassword reports whether chapPassword was computed from password
// and challenge.
func VerifyCHAPPassword(chapPassword, password, challenge []byte) bool {
	if len(chapPassword) != CHAPPasswordLength {
		return false
	}

	expected := CHAPPassword(chapPassword[0], password, challenge)
	return subtle.ConstantTimeCompare(chapPassword, expected) == 1
}
