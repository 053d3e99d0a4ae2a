package client

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"os"
	"sort"
	"time"

	"github.com/vitalvas/radiusd/pkg/dictionary"
	"github.com/vitalvas/radiusd/pkg/log"
	"github.com/vitalvas/radiusd/pkg/packet"
)

const (
	DefaultTimeout = 3 * time.Second
	DefaultRetries = 2
)

// ErrTimeout is returned when no valid reply arrived within all attempts.
var ErrTimeout = errors.New("no reply from server")

type Client struct {
	addr    *net.UDPAddr
	secret  []byte
	dict    *dictionary.Dictionary
	timeout time.Duration
	retries int
	sign    bool
	logger  log.Logger
}

type Config struct {
	Addr       string
	Secret     []byte
	Dictionary *dictionary.Dictionary
	Timeout    time.Duration
	// Retries is the number of retransmissions after the first attempt.
	// Negative values disable retransmission.
	Retries *int
	// MessageAuthenticator adds a signed Message-Authenticator to every request.
	MessageAuthenticator bool
	Logger               log.Logger
}

func New(cfg Config) (*Client, error) {
	if len(cfg.Secret) == 0 {
		return nil, packet.ErrMissingSecret
	}

	addr, err := net.ResolveUDPAddr("udp", cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve address: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	retries := DefaultRetries
	if cfg.Retries != nil {
		retries = max(*cfg.Retries, 0)
	}

	if cfg.Dictionary == nil {
		cfg.Dictionary, err = dictionary.NewDefault()
		if err != nil {
			return nil, err
		}
	}

	if cfg.Logger == nil {
		cfg.Logger = log.NewDiscardLogger()
	}

	return &Client{
		addr:    addr,
		secret:  cfg.Secret,
		dict:    cfg.Dictionary,
		timeout: cfg.Timeout,
		retries: retries,
		sign:    cfg.MessageAuthenticator,
		logger:  cfg.Logger,
	}, nil
}

// NewPacket creates a request with a random identifier, the client secret
// and the given attributes, added in name order.
func (c *Client) NewPacket(code packet.Code, attributes map[string]interface{}) (*packet.Packet, error) {
	identifier := make([]byte, 1)
	if _, err := rand.Read(identifier); err != nil {
		return nil, fmt.Errorf("failed to generate identifier: %w", err)
	}

	pkt := packet.NewWithDictionary(code, identifier[0], c.dict)
	pkt.Secret = c.secret

	names := make([]string, 0, len(attributes))
	for name := range attributes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := pkt.AddAttributeByName(name, attributes[name]); err != nil {
			return nil, fmt.Errorf("failed to add attribute %q: %w", name, err)
		}
	}

	if c.sign {
		pkt.AddMessageAuthenticator()
	}

	return pkt, nil
}

func (c *Client) AccessRequest(ctx context.Context, attributes map[string]interface{}) (*packet.Packet, error) {
	pkt, err := c.NewPacket(packet.CodeAccessRequest, attributes)
	if err != nil {
		return nil, err
	}
	return c.Exchange(ctx, pkt)
}

func (c *Client) AccountingRequest(ctx context.Context, attributes map[string]interface{}) (*packet.Packet, error) {
	pkt, err := c.NewPacket(packet.CodeAccountingRequest, attributes)
	if err != nil {
		return nil, err
	}
	return c.Exchange(ctx, pkt)
}

func (c *Client) StatusServer(ctx context.Context) (*packet.Packet, error) {
	pkt, err := c.NewPacket(packet.CodeStatusServer, nil)
	if err != nil {
		return nil, err
	}
	return c.Exchange(ctx, pkt)
}

// Exchange sends pkt and waits for a reply carrying the same identifier and
// a valid Response Authenticator. Replies failing either check are ignored.
// The request is retransmitted unchanged after each timeout.
func (c *Client) Exchange(ctx context.Context, pkt *packet.Packet) (*packet.Packet, error) {
	if len(pkt.Secret) == 0 {
		pkt.Secret = c.secret
	}
	if pkt.Dict == nil {
		pkt.Dict = c.dict
	}

	data, err := pkt.EncodeRequest()
	if err != nil {
		return nil, fmt.Errorf("failed to encode packet: %w", err)
	}

	// Create a new connection for each request to ensure concurrency safety
	conn, err := net.DialUDP("udp", nil, c.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, packet.MaxPacketLength)

	for attempt := 0; attempt <= c.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if attempt > 0 {
			c.logger.Debugf("Retransmitting %s id=%d to %s (attempt %d)", pkt.Code, pkt.Identifier, c.addr, attempt+1)
		}

		if _, err := conn.Write(data); err != nil {
			return nil, fmt.Errorf("failed to write packet: %w", err)
		}

		reply, err := c.awaitReply(ctx, conn, pkt, buf)
		if err == nil {
			return reply, nil
		}
		if !errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: %s id=%d after %d attempts", ErrTimeout, pkt.Code, pkt.Identifier, c.retries+1)
}

func (c *Client) awaitReply(ctx context.Context, conn *net.UDPConn, req *packet.Packet, buf []byte) (*packet.Packet, error) {
	if err := conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("failed to read response: %w", err)
		}

		reply, err := packet.Decode(buf[:n])
		if err != nil {
			c.logger.Debugf("Ignoring malformed reply from %s: %v", c.addr, err)
			continue
		}

		// Verify response identifier matches request identifier (RFC 2865)
		if reply.Identifier != req.Identifier {
			c.logger.Debugf("Ignoring reply with identifier %d, expected %d", reply.Identifier, req.Identifier)
			continue
		}

		if !reply.VerifyReply(req.Authenticator, req.Secret) {
			c.logger.Warnf("Ignoring reply id=%d from %s: response authenticator mismatch", reply.Identifier, c.addr)
			continue
		}

		if reply.HasMessageAuthenticator() && !reply.VerifyReplyMessageAuthenticator(req.Authenticator, req.Secret) {
			c.logger.Warnf("Ignoring reply id=%d from %s: message-authenticator mismatch", reply.Identifier, c.addr)
			continue
		}

		reply.Secret = req.Secret
		reply.Dict = req.Dict
		reply.Source = conn.RemoteAddr()
		return reply, nil
	}
}
