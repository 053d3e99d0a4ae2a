package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/radiusd/pkg/crypto"
)

func TestPacketEncode(t *testing.T) {
	packet := New(CodeAccessRequest, 123)
	packet.Authenticator = [16]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}
	packet.AddAttribute(NewStringAttribute(AttrUserName, "test"))

	data, err := packet.Encode()
	require.NoError(t, err)

	assert.Equal(t, int(packet.Length), len(data))
	assert.Equal(t, byte(CodeAccessRequest), data[0])
	assert.Equal(t, byte(123), data[1])
	assert.Equal(t, packet.Length, uint16(data[2])<<8|uint16(data[3]))
	assert.Equal(t, packet.Authenticator[:], data[4:20])

	assert.Equal(t, AttrUserName, data[20])
	assert.Equal(t, byte(6), data[21])
	assert.Equal(t, []byte("test"), data[22:26])
}

func TestPacketDecode(t *testing.T) {
	data := []byte{
		1,     // Code: Access-Request
		123,   // Identifier
		0, 26, // Length: 26 bytes
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
		1, 6, 't', 'e', 's', 't', // User-Name = "test"
	}

	packet, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, CodeAccessRequest, packet.Code)
	assert.Equal(t, uint8(123), packet.Identifier)
	assert.Equal(t, uint16(26), packet.Length)
	assert.Equal(t, [16]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10}, packet.Authenticator)

	require.Len(t, packet.Attributes, 1)
	assert.Equal(t, AttrUserName, packet.Attributes[0].Type)
	assert.Equal(t, "test", packet.Attributes[0].String())

	assert.Nil(t, packet.Secret, "decoder must not set the secret")
	assert.Nil(t, packet.Source)

	t.Run("trailing padding ignored", func(t *testing.T) {
		padded := append(append([]byte(nil), data...), 0, 0, 0, 0)
		packet, err := Decode(padded)
		require.NoError(t, err)
		assert.Equal(t, uint16(26), packet.Length)
		assert.Len(t, packet.Attributes, 1)
	})
}

func TestPacketDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte{1, 2, 3}},
		{"zero length header", make([]byte, 20)},
		{"length below minimum", []byte{1, 123, 0, 10, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"length above maximum", append([]byte{1, 123, 0xFF, 0xFF}, make([]byte, 16)...)},
		{"data shorter than packet length", []byte{1, 123, 0, 100, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}},
		{"incomplete attribute header", append([]byte{1, 1, 0, 21}, append(make([]byte, 16), 1)...)},
		{"attribute length below header", append([]byte{1, 1, 0, 22}, append(make([]byte, 16), 1, 1)...)},
		{"attribute beyond packet", append([]byte{1, 1, 0, 22}, append(make([]byte, 16), 1, 9)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedPacket)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := New(CodeAccountingRequest, 200)
	original.Authenticator = [16]byte{9, 8, 7, 6, 5, 4, 3, 2, 1}
	original.AddAttribute(NewStringAttribute(AttrUserName, "testuser"))
	original.AddAttribute(NewIntegerAttribute(AttrAcctStatusType, 2))

	data, err := original.Encode()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, original.Code, decoded.Code)
	assert.Equal(t, original.Identifier, decoded.Identifier)
	assert.Equal(t, original.Length, decoded.Length)
	assert.Equal(t, original.Authenticator, decoded.Authenticator)
	assert.Equal(t, original.Attributes, decoded.Attributes)
}

func TestEncodeRequest(t *testing.T) {
	t.Run("access request gets random authenticator", func(t *testing.T) {
		pkt := New(CodeAccessRequest, 1)
		pkt.AddAttribute(NewStringAttribute(AttrUserName, "bob"))

		data, err := pkt.EncodeRequest()
		require.NoError(t, err)
		assert.NotEqual(t, [16]byte{}, pkt.Authenticator)
		assert.Equal(t, pkt.Authenticator[:], data[4:20])
	})

	t.Run("access request keeps preset authenticator", func(t *testing.T) {
		pkt := New(CodeAccessRequest, 1)
		pkt.Authenticator = [16]byte{1}

		data, err := pkt.EncodeRequest()
		require.NoError(t, err)
		assert.Equal(t, byte(1), data[4])
	})

	t.Run("accounting request needs secret", func(t *testing.T) {
		pkt := New(CodeAccountingRequest, 1)
		_, err := pkt.EncodeRequest()
		assert.ErrorIs(t, err, ErrMissingSecret)
	})

	t.Run("accounting request authenticator", func(t *testing.T) {
		secret := []byte("testing123")
		pkt := New(CodeAccountingRequest, 4)
		pkt.Secret = secret
		pkt.AddAttribute(NewIntegerAttribute(AttrAcctStatusType, 1))

		data, err := pkt.EncodeRequest()
		require.NoError(t, err)

		expected := crypto.CalculateRequestAuthenticator(uint8(CodeAccountingRequest), 4, pkt.Length, data[20:], secret)
		assert.Equal(t, expected[:], data[4:20])
		assert.Equal(t, [16]byte(expected), pkt.Authenticator)
	})
}

func TestEncodeReply(t *testing.T) {
	secret := []byte("testing123")

	req := New(CodeAccessRequest, 42)
	req.Authenticator = [16]byte{0xAA, 0xBB}
	req.Secret = secret

	reply := req.CreateReply()
	reply.AddAttribute(NewStringAttribute(AttrReplyMessage, "welcome"))

	data, err := reply.EncodeReply()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, CodeAccessAccept, decoded.Code)
	assert.Equal(t, uint8(42), decoded.Identifier)
	assert.True(t, decoded.VerifyReply(req.Authenticator, secret))
	assert.False(t, decoded.VerifyReply(req.Authenticator, []byte("wrong")))
	assert.False(t, decoded.VerifyReply([16]byte{0xAA}, secret))

	// the reply packet still carries the request authenticator
	assert.Equal(t, req.Authenticator, reply.Authenticator)

	t.Run("missing secret", func(t *testing.T) {
		orphan := New(CodeAccessAccept, 1)
		_, err := orphan.EncodeReply()
		assert.ErrorIs(t, err, ErrMissingSecret)
	})
}
