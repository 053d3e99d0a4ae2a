package client

import (
	"bytes"
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/radiusd/pkg/crypto"
	"github.com/vitalvas/radiusd/pkg/packet"
)

var testSecret = []byte("testing123")

// responder answers each request with the datagrams returned by respond.
type responder struct {
	conn     net.PacketConn
	received atomic.Int32
}

func newResponder(t *testing.T, respond func(req *packet.Packet, n int) [][]byte) *responder {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	r := &responder{conn: conn}
	done := make(chan struct{})

	go func() {
		defer close(done)
		buf := make([]byte, packet.MaxPacketLength)
		for {
			n, addr, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}

			req, err := packet.Decode(buf[:n])
			if err != nil {
				continue
			}
			req.Secret = testSecret

			count := int(r.received.Add(1))
			for _, data := range respond(req, count) {
				_, _ = conn.WriteTo(data, addr)
			}
		}
	}()

	t.Cleanup(func() {
		conn.Close()
		<-done
	})

	return r
}

func (r *responder) addr() string {
	return r.conn.LocalAddr().String()
}

func encodeReply(t *testing.T, req *packet.Packet, code packet.Code, mutate func(*packet.Packet)) []byte {
	reply := req.CreateReply()
	reply.Code = code
	if mutate != nil {
		mutate(reply)
	}

	data, err := reply.EncodeReply()
	require.NoError(t, err)
	return data
}

func newTestClient(t *testing.T, addr string, timeout time.Duration, retries int) *Client {
	t.Helper()

	c, err := New(Config{
		Addr:    addr,
		Secret:  testSecret,
		Timeout: timeout,
		Retries: &retries,
	})
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		c, err := New(Config{Addr: "127.0.0.1:1812", Secret: testSecret})
		require.NoError(t, err)

		assert.Equal(t, DefaultTimeout, c.timeout)
		assert.Equal(t, DefaultRetries, c.retries)
		assert.NotNil(t, c.dict)
		assert.Equal(t, 1812, c.addr.Port)
	})

	t.Run("negative retries", func(t *testing.T) {
		retries := -1
		c, err := New(Config{Addr: "127.0.0.1:1812", Secret: testSecret, Retries: &retries})
		require.NoError(t, err)
		assert.Equal(t, 0, c.retries)
	})

	t.Run("missing secret", func(t *testing.T) {
		_, err := New(Config{Addr: "127.0.0.1:1812"})
		assert.ErrorIs(t, err, packet.ErrMissingSecret)
	})

	t.Run("missing port", func(t *testing.T) {
		_, err := New(Config{Addr: "127.0.0.1", Secret: testSecret})
		assert.Error(t, err)
	})
}

func TestNewPacket(t *testing.T) {
	c := newTestClient(t, "127.0.0.1:1812", 0, 0)

	pkt, err := c.NewPacket(packet.CodeAccessRequest, map[string]interface{}{
		"User-Name":      "alice",
		"NAS-IP-Address": "192.0.2.1",
		"NAS-Port":       7,
	})
	require.NoError(t, err)

	assert.Equal(t, testSecret, pkt.Secret)
	require.Len(t, pkt.Attributes, 3)
	assert.Equal(t, packet.AttrUserName, pkt.Attributes[2].Type)

	_, err = c.NewPacket(packet.CodeAccessRequest, map[string]interface{}{"Bogus": "x"})
	assert.ErrorIs(t, err, packet.ErrUnknownAttribute)

	t.Run("message authenticator", func(t *testing.T) {
		signer, err := New(Config{Addr: "127.0.0.1:1812", Secret: testSecret, MessageAuthenticator: true})
		require.NoError(t, err)

		pkt, err := signer.NewPacket(packet.CodeAccessRequest, map[string]interface{}{"User-Name": "alice"})
		require.NoError(t, err)
		require.True(t, pkt.HasMessageAuthenticator())

		data, err := pkt.EncodeRequest()
		require.NoError(t, err)

		decoded, err := packet.Decode(data)
		require.NoError(t, err)
		assert.True(t, decoded.VerifyMessageAuthenticator(testSecret))
	})
}

func TestAccessRequest(t *testing.T) {
	r := newResponder(t, func(req *packet.Packet, _ int) [][]byte {
		code := packet.CodeAccessReject
		if password, err := req.Password(); err == nil && string(password) == "letmein" {
			code = packet.CodeAccessAccept
		}
		return [][]byte{encodeReply(t, req, code, func(reply *packet.Packet) {
			reply.AddAttribute(packet.NewStringAttribute(packet.AttrReplyMessage, "hello"))
		})}
	})

	c := newTestClient(t, r.addr(), time.Second, 0)

	tests := []struct {
		name     string
		password string
		expected packet.Code
	}{
		{"accept", "letmein", packet.CodeAccessAccept},
		{"reject", "wrong", packet.CodeAccessReject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := c.AccessRequest(context.Background(), map[string]interface{}{
				"User-Name":     "alice",
				"User-Password": tt.password,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, reply.Code)
			assert.Equal(t, testSecret, reply.Secret)

			msg, ok := reply.GetAttribute(packet.AttrReplyMessage)
			require.True(t, ok)
			assert.Equal(t, "hello", reply.FormatAttribute(msg))
		})
	}
}

func TestAccountingRequest(t *testing.T) {
	r := newResponder(t, func(req *packet.Packet, _ int) [][]byte {
		if !req.VerifyAccountingAuthenticator(testSecret) {
			return nil
		}
		return [][]byte{encodeReply(t, req, packet.CodeAccountingResponse, nil)}
	})

	c := newTestClient(t, r.addr(), time.Second, 0)

	reply, err := c.AccountingRequest(context.Background(), map[string]interface{}{
		"Acct-Status-Type": 1,
		"Acct-Session-Id":  "session-1",
	})
	require.NoError(t, err)
	assert.Equal(t, packet.CodeAccountingResponse, reply.Code)
}

func TestStatusServer(t *testing.T) {
	r := newResponder(t, func(req *packet.Packet, _ int) [][]byte {
		return [][]byte{encodeReply(t, req, packet.CodeAccessAccept, nil)}
	})

	c := newTestClient(t, r.addr(), time.Second, 0)

	reply, err := c.StatusServer(context.Background())
	require.NoError(t, err)
	assert.Equal(t, packet.CodeAccessAccept, reply.Code)
}

func TestExchangeIgnoresInvalidReplies(t *testing.T) {
	r := newResponder(t, func(req *packet.Packet, _ int) [][]byte {
		wrongID := encodeReply(t, req, packet.CodeAccessReject, func(reply *packet.Packet) {
			reply.Identifier++
		})
		forged := encodeReply(t, req, packet.CodeAccessReject, func(reply *packet.Packet) {
			reply.Secret = []byte("not-the-secret")
		})

		// valid response authenticator over a garbage Message-Authenticator
		badMAC := req.CreateReply()
		badMAC.Code = packet.CodeAccessReject
		badMAC.AddAttribute(packet.NewAttribute(packet.AttrMessageAuthenticator, bytes.Repeat([]byte{0x5A}, 16)))
		badMACData, err := badMAC.Encode()
		require.NoError(t, err)
		auth := crypto.CalculateResponseAuthenticator(uint8(badMAC.Code), badMAC.Identifier, badMAC.Length,
			req.Authenticator, badMACData[packet.PacketHeaderLength:], testSecret)
		copy(badMACData[4:20], auth[:])

		return [][]byte{
			{0x01, 0x02},
			wrongID,
			forged,
			badMACData,
			encodeReply(t, req, packet.CodeAccessAccept, func(reply *packet.Packet) {
				reply.AddMessageAuthenticator()
			}),
		}
	})

	c := newTestClient(t, r.addr(), time.Second, 0)

	reply, err := c.AccessRequest(context.Background(), map[string]interface{}{"User-Name": "alice"})
	require.NoError(t, err)
	assert.Equal(t, packet.CodeAccessAccept, reply.Code)
	assert.Equal(t, int32(1), r.received.Load())
}

func TestExchangeRetransmits(t *testing.T) {
	var first atomic.Pointer[packet.Packet]

	r := newResponder(t, func(req *packet.Packet, n int) [][]byte {
		if n == 1 {
			first.Store(req)
			return nil
		}

		prev := first.Load()
		if prev == nil || prev.Identifier != req.Identifier || prev.Authenticator != req.Authenticator {
			return nil
		}
		return [][]byte{encodeReply(t, req, packet.CodeAccessAccept, nil)}
	})

	c := newTestClient(t, r.addr(), 100*time.Millisecond, 2)

	reply, err := c.AccessRequest(context.Background(), map[string]interface{}{"User-Name": "alice"})
	require.NoError(t, err)
	assert.Equal(t, packet.CodeAccessAccept, reply.Code)
	assert.Equal(t, int32(2), r.received.Load())
}

func TestExchangeTimeout(t *testing.T) {
	r := newResponder(t, func(*packet.Packet, int) [][]byte { return nil })

	c := newTestClient(t, r.addr(), 50*time.Millisecond, 2)

	_, err := c.AccessRequest(context.Background(), map[string]interface{}{"User-Name": "alice"})
	assert.ErrorIs(t, err, ErrTimeout)

	assert.Eventually(t, func() bool {
		return r.received.Load() == 3
	}, time.Second, 10*time.Millisecond)
}

func TestExchangeContextCancel(t *testing.T) {
	r := newResponder(t, func(*packet.Packet, int) [][]byte { return nil })

	c := newTestClient(t, r.addr(), 10*time.Second, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.AccessRequest(ctx, map[string]interface{}{"User-Name": "alice"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}
