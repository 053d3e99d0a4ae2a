package host

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/radiusd/pkg/dictionary"
	"github.com/vitalvas/radiusd/pkg/packet"
)

type recordingWriter struct {
	data [][]byte
	addr []net.Addr
	err  error
}

func (w *recordingWriter) WriteTo(b []byte, addr net.Addr) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	w.data = append(w.data, append([]byte(nil), b...))
	w.addr = append(w.addr, addr)
	return len(b), nil
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		h, err := New()
		require.NoError(t, err)

		assert.Equal(t, uint16(1812), h.AuthPort)
		assert.Equal(t, uint16(1813), h.AcctPort)
		require.NotNil(t, h.Dict)
		assert.Equal(t, "User-Name", h.Dict.Name(packet.AttrUserName))
	})

	t.Run("options", func(t *testing.T) {
		dict := dictionary.New()
		h, err := New(WithDictionary(dict), WithAuthPort(11812), WithAcctPort(11813))
		require.NoError(t, err)

		assert.Same(t, dict, h.Dict)
		assert.Equal(t, uint16(11812), h.AuthPort)
		assert.Equal(t, uint16(11813), h.AcctPort)
	})
}

func TestHostNewPackets(t *testing.T) {
	h, err := New()
	require.NoError(t, err)

	auth := h.NewAuthPacket(7)
	assert.Equal(t, packet.CodeAccessRequest, auth.Code)
	assert.Equal(t, uint8(7), auth.Identifier)
	assert.Same(t, h.Dict, auth.Dict)

	acct := h.NewAcctPacket(8)
	assert.Equal(t, packet.CodeAccountingRequest, acct.Code)
	assert.Same(t, h.Dict, acct.Dict)
}

func TestHostSendPacket(t *testing.T) {
	h, err := New()
	require.NoError(t, err)

	dst := &net.UDPAddr{IP: net.ParseIP("192.0.2.10"), Port: 1813}
	secret := []byte("testing123")

	t.Run("accounting request", func(t *testing.T) {
		w := &recordingWriter{}
		pkt := h.NewAcctPacket(3)
		pkt.Secret = secret
		pkt.Source = dst
		pkt.AddAttribute(packet.NewIntegerAttribute(packet.AttrAcctStatusType, 1))

		require.NoError(t, h.SendPacket(w, pkt))
		require.Len(t, w.data, 1)
		assert.Equal(t, dst, w.addr[0])

		decoded, err := packet.Decode(w.data[0])
		require.NoError(t, err)
		assert.True(t, decoded.VerifyAccountingAuthenticator(secret))
	})

	t.Run("no destination", func(t *testing.T) {
		pkt := h.NewAuthPacket(1)
		assert.ErrorIs(t, h.SendPacket(&recordingWriter{}, pkt), ErrNoDestination)
	})

	t.Run("write failure", func(t *testing.T) {
		boom := errors.New("boom")
		pkt := h.NewAuthPacket(1)
		pkt.Source = dst
		assert.ErrorIs(t, h.SendPacket(&recordingWriter{err: boom}, pkt), boom)
	})
}

func TestHostSendReplyPacket(t *testing.T) {
	h, err := New()
	require.NoError(t, err)

	secret := []byte("testing123")
	src := &net.UDPAddr{IP: net.ParseIP("192.0.2.20"), Port: 40000}

	req := h.NewAuthPacket(9)
	req.Authenticator = [16]byte{1, 2, 3}
	req.Secret = secret
	req.Source = src

	reply := req.CreateReply()
	w := &recordingWriter{}
	require.NoError(t, h.SendReplyPacket(w, reply))
	require.Len(t, w.data, 1)
	assert.Equal(t, src, w.addr[0])

	decoded, err := packet.Decode(w.data[0])
	require.NoError(t, err)
	assert.Equal(t, packet.CodeAccessAccept, decoded.Code)
	assert.True(t, decoded.VerifyReply(req.Authenticator, secret))

	t.Run("missing secret", func(t *testing.T) {
		orphan := h.NewPacket(packet.CodeAccessAccept, 1)
		orphan.Source = src
		assert.ErrorIs(t, h.SendReplyPacket(w, orphan), packet.ErrMissingSecret)
	})
}
