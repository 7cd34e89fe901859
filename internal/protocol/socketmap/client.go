package socketmap

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nsmapd/nsmapd/internal/protocol/netstring"
)

var (
	ErrAddressRequired = errors.New("socketmap: server address required")
	ErrNotConnected    = errors.New("socketmap: client not connected")
)

// ClientConfig configures one Client. MaxConnectAttempts <= 0 retries
// until the context ends.
type ClientConfig struct {
	Address            string
	MaxConnectAttempts int
	MaxReplyLen        uint64
	Session            Config
}

func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		MaxReplyLen: DefaultMaxReplyLen,
		Session:     DefaultConfig(),
	}
}

// Client issues socketmap lookups over one connection. Lookups are
// serialized; the protocol has no request pipelining.
type Client struct {
	cfg ClientConfig
	rng *rand.Rand

	mu     sync.Mutex
	conn   net.Conn
	reader *bufio.Reader
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.Address) == "" {
		return nil, ErrAddressRequired
	}
	cfg.Session = cfg.Session.WithDefaults()
	if cfg.MaxReplyLen == 0 {
		cfg.MaxReplyLen = DefaultMaxReplyLen
	}
	return &Client{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Connect dials the server, retrying with backoff until it succeeds, the
// attempt budget runs out, or ctx ends. Connecting an already-connected
// client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	var attempt int
	for {
		attempt++
		conn, err := c.dial(ctx)
		if err == nil {
			c.conn = conn
			c.reader = bufio.NewReader(conn)
			return nil
		}
		log.Warn().Err(err).Int("attempt", attempt).Str("addr", c.cfg.Address).Msg("socketmap dial failed")
		if !c.shouldRetry(attempt) {
			return err
		}
		if err := c.sleepBackoff(ctx, attempt); err != nil {
			return err
		}
	}
}

// Lookup sends one "name key" request and decodes the single reply.
func (c *Client) Lookup(ctx context.Context, name, key string) (Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return Reply{}, ErrNotConnected
	}

	if err := c.setWriteDeadline(ctx); err != nil {
		return Reply{}, err
	}
	if err := WriteRequest(c.conn, name, key); err != nil {
		if !errors.Is(err, ErrInvalidRequest) {
			_ = c.closeLocked()
		}
		return Reply{}, err
	}

	if err := c.setReadDeadline(ctx); err != nil {
		return Reply{}, err
	}
	var buf bytes.Buffer
	maxLen := c.cfg.MaxReplyLen
	if _, err := netstring.Decode(c.reader, func(n uint64) bool { return n <= maxLen }, &buf); err != nil {
		// The stream position is untrustworthy after a framing error;
		// drop the connection rather than resynchronize.
		_ = c.closeLocked()
		return Reply{}, fmt.Errorf("socketmap: reading reply: %w", err)
	}
	return ParseReply(buf.Bytes())
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.reader = nil
	return err
}

func (c *Client) dial(ctx context.Context) (net.Conn, error) {
	if err := c.cfg.Session.ValidateClientTransport(); err != nil {
		return nil, err
	}

	network, address := SplitNetworkAddress(c.cfg.Address)
	dialer := net.Dialer{Timeout: c.cfg.Session.ConnectTimeout}
	rawConn, err := dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	if !c.cfg.Session.TLS.Enabled {
		return rawConn, nil
	}

	tlsCfg, err := c.clientTLSConfig(address)
	if err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	conn := tls.Client(rawConn, tlsCfg)
	handshakeCtx, cancel := context.WithTimeout(ctx, c.cfg.Session.HandshakeTimeout)
	defer cancel()
	if err := conn.HandshakeContext(handshakeCtx); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *Client) clientTLSConfig(address string) (*tls.Config, error) {
	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.cfg.Session.TLS.InsecureSkipVerify,
	}

	serverName := strings.TrimSpace(c.cfg.Session.TLS.ServerName)
	if serverName == "" {
		host, _, err := net.SplitHostPort(address)
		if err != nil {
			return nil, err
		}
		serverName = host
	}
	cfg.ServerName = serverName

	if caPath := strings.TrimSpace(c.cfg.Session.TLS.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("socketmap: parse tls ca bundle: %s", caPath)
		}
		cfg.RootCAs = pool
	}

	if c.cfg.Session.TLS.Mutual {
		cert, err := tls.LoadX509KeyPair(c.cfg.Session.TLS.CertFile, c.cfg.Session.TLS.KeyFile)
		if err != nil {
			return nil, err
		}
		cfg.Certificates = []tls.Certificate{cert}
	}
	return cfg, nil
}

func (c *Client) shouldRetry(attempt int) bool {
	if c.cfg.MaxConnectAttempts <= 0 {
		return true
	}
	return attempt < c.cfg.MaxConnectAttempts
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	delay := NextBackoffDelay(c.cfg.Session.Backoff, attempt, c.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) setWriteDeadline(ctx context.Context) error {
	deadline := time.Now().Add(c.cfg.Session.WriteTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	return c.conn.SetWriteDeadline(deadline)
}

func (c *Client) setReadDeadline(ctx context.Context) error {
	deadline := time.Now().Add(c.cfg.Session.ReadTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	return c.conn.SetReadDeadline(deadline)
}
