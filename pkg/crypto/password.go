package crypto

import (
	"crypto/md5"
	"errors"
	"fmt"
)

// MaxPasswordLength is the longest User-Password value RFC 2865 allows.
const MaxPasswordLength = 128

var (
	// ErrPasswordTooLong is returned for passwords over MaxPasswordLength bytes.
	ErrPasswordTooLong = errors.New("password too long")
	// ErrInvalidHiddenPassword is returned when a hidden value is not a multiple of 16 bytes.
	ErrInvalidHiddenPassword = errors.New("invalid hidden password length")
)

// HidePassword obfuscates a User-Password value (RFC 2865 section 5.2).
func HidePassword(password, secret []byte, requestAuth Authenticator) ([]byte, error) {
	if len(password) > MaxPasswordLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrPasswordTooLong, len(password))
	}

	size := len(password)
	if size == 0 || size%16 != 0 {
		size += 16 - size%16
	}

	out := make([]byte, size)
	copy(out, password)

	prev := requestAuth[:]
	for i := 0; i < size; i += 16 {
		b := md5.Sum(append(append([]byte{}, secret...), prev...))
		for j := 0; j < 16; j++ {
			out[i+j] ^= b[j]
		}
		prev = out[i : i+16]
	}

	return out, nil
}

// RevealPassword reverses HidePassword and strips trailing NUL padding.
func RevealPassword(hidden, secret []byte, requestAuth Authenticator) ([]byte, error) {
	if len(hidden) == 0 || len(hidden)%16 != 0 || len(hidden) > MaxPasswordLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidHiddenPassword, len(hidden))
	}

	out := make([]byte, len(hidden))
	prev := requestAuth[:]
	for i := 0; i < len(hidden); i += 16 {
		b := md5.Sum(append(append([]byte{}, secret...), prev...))
		for j := 0; j < 16; j++ {
			out[i+j] = hidden[i+j] ^ b[j]
		}
		prev = hidden[i : i+16]
	}

	end := len(out)
	for end > 0 && out[end-1] == 0 {
		end--
	}

	return out[:end], nil
}
