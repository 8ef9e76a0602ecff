package xmpp

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"mellium.im/sasl"
	"mellium.im/xmlstream"
	"mellium.im/xmpp"
	"mellium.im/xmpp/jid"

	"github.com/meszmate/chatcore/internal/core"
	"github.com/meszmate/chatcore/internal/xmpp/stanza"
)

// ErrNotConnected is returned by Encode without a session.
var ErrNotConnected = errors.New("xmpp: not connected")

// StanzaHandler consumes decoded incoming stanzas in arrival order.
type StanzaHandler interface {
	Handle(ctx context.Context, s stanza.Stanza) error
}

// StatusFunc receives connection status changes with the bound address.
type StatusFunc func(status core.Status, localJID string)

type encoder interface {
	Encode(ctx context.Context, v interface{}) error
}

// Config contains configuration for the XMPP client
type Config struct {
	// JID is the account address, or only a domain for anonymous logins.
	JID       string
	Password  string
	Anonymous bool
	Server    string
	Port      int
	Resource  string

	// SendRate limits outgoing stanzas per second, 0 disables the limit.
	SendRate  float64
	SendBurst int

	DialTimeout time.Duration
}

// Client owns one stream to the server. Incoming stanzas are handed to the
// handler one at a time; outgoing stanzas are throttled.
type Client struct {
	cfg      Config
	origin   jid.JID
	handler  StanzaHandler
	onStatus StatusFunc
	limiter  *rate.Limiter
	log      zerolog.Logger

	mu        sync.RWMutex
	session   *xmpp.Session
	enc       encoder
	local     jid.JID
	connected bool
	cancel    context.CancelFunc
}

// NewClient creates a new XMPP client
func NewClient(cfg Config, h StanzaHandler, onStatus StatusFunc, log zerolog.Logger) (*Client, error) {
	j, err := jid.Parse(cfg.JID)
	if err != nil {
		return nil, fmt.Errorf("invalid JID: %w", err)
	}
	if cfg.Resource != "" && !cfg.Anonymous {
		j, err = j.WithResource(cfg.Resource)
		if err != nil {
			return nil, fmt.Errorf("invalid resource: %w", err)
		}
	}
	if cfg.Port == 0 {
		cfg.Port = 5222
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 30 * time.Second
	}
	if onStatus == nil {
		onStatus = func(core.Status, string) {}
	}

	limit := rate.Inf
	if cfg.SendRate > 0 {
		limit = rate.Limit(cfg.SendRate)
	}
	burst := cfg.SendBurst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		cfg:      cfg,
		origin:   j,
		handler:  h,
		onStatus: onStatus,
		limiter:  rate.NewLimiter(limit, burst),
		log:      log,
	}, nil
}

func (c *Client) mechanisms() []sasl.Mechanism {
	if c.cfg.Anonymous {
		return []sasl.Mechanism{anonymous}
	}
	return []sasl.Mechanism{sasl.ScramSha256Plus, sasl.ScramSha256, sasl.ScramSha1Plus, sasl.ScramSha1, sasl.Plain}
}

// Connect dials the server, negotiates the stream and starts serving
// incoming stanzas. Status changes are reported as they happen.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.onStatus(core.StatusConnecting, "")

	server := c.cfg.Server
	if server == "" {
		server = c.origin.Domain().String()
	}
	addr := net.JoinHostPort(server, strconv.Itoa(c.cfg.Port))

	dialer := net.Dialer{Timeout: c.cfg.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		c.onStatus(core.StatusConnFail, "")
		return fmt.Errorf("failed to dial server: %w", err)
	}

	tlsConfig := &tls.Config{
		ServerName: c.origin.Domain().String(),
		MinVersion: tls.VersionTLS12,
	}
	negotiator := xmpp.NewNegotiator(func(_ *xmpp.Session, _ *xmpp.StreamConfig) xmpp.StreamConfig {
		return xmpp.StreamConfig{
			Features: []xmpp.StreamFeature{
				xmpp.StartTLS(tlsConfig),
				xmpp.SASL("", c.cfg.Password, c.mechanisms()...),
				xmpp.BindResource(),
			},
		}
	})

	c.onStatus(core.StatusAuthenticating, "")
	session, err := xmpp.NewSession(ctx, c.origin.Domain(), c.origin, conn, 0, negotiator)
	if err != nil {
		conn.Close()
		c.onStatus(core.StatusAuthFail, "")
		return fmt.Errorf("failed to negotiate session: %w", err)
	}

	c.start(session, core.StatusConnected)
	return nil
}

// Attach serves a session negotiated elsewhere.
func (c *Client) Attach(session *xmpp.Session) {
	c.start(session, core.StatusAttached)
}

func (c *Client) start(session *xmpp.Session, status core.Status) {
	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.session = session
	c.enc = session
	c.local = session.LocalAddr()
	c.connected = true
	c.cancel = cancel
	local := c.local.String()
	c.mu.Unlock()

	c.log.Info().Str("jid", local).Str("status", status.String()).Msg("session established")
	c.onStatus(status, local)

	go c.serve(ctx, session)
}

func (c *Client) serve(ctx context.Context, session *xmpp.Session) {
	err := session.Serve(xmpp.HandlerFunc(func(t xmlstream.TokenReadEncoder, start *xml.StartElement) error {
		s, err := decodeStanza(t, start)
		if err != nil {
			c.log.Warn().Err(err).Str("element", start.Name.Local).Msg("undecodable stanza")
			return nil
		}
		if err := c.handler.Handle(ctx, s); err != nil {
			c.log.Debug().Err(err).Msg("stanza rejected")
		}
		return nil
	}))
	if err != nil {
		c.log.Warn().Err(err).Msg("stream closed")
	}

	c.mu.Lock()
	wasConnected := c.connected && c.session == session
	if wasConnected {
		c.connected = false
		c.session = nil
		c.enc = nil
	}
	c.mu.Unlock()

	if wasConnected {
		c.onStatus(core.StatusDisconnected, "")
	}
}

// decodeStanza rebuilds the complete element from the start token and the
// inner tokens.
func decodeStanza(t xml.TokenReader, start *xml.StartElement) (stanza.Stanza, error) {
	r := xmlstream.MultiReader(
		xmlstream.Token(start.Copy()),
		xmlstream.Inner(t),
		xmlstream.Token(start.End()),
	)
	d := xml.NewTokenDecoder(r)
	tok, err := d.Token()
	if err != nil {
		return nil, err
	}
	first, ok := tok.(xml.StartElement)
	if !ok {
		return nil, fmt.Errorf("%w: %T", stanza.ErrUnknownStanza, tok)
	}
	return stanza.Decode(d, &first)
}

// Disconnect sends unavailable presence and closes the stream.
func (c *Client) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil
	}
	session := c.session
	cancel := c.cancel
	c.connected = false
	c.session = nil
	c.enc = nil
	c.mu.Unlock()

	c.onStatus(core.StatusDisconnecting, "")
	_ = session.Encode(ctx, &stanza.OutPresence{Type: stanza.TypeUnavailable})
	err := session.Close()
	cancel()
	c.onStatus(core.StatusDisconnected, "")
	if err != nil {
		return fmt.Errorf("close session: %w", err)
	}
	return nil
}

// Encode sends one stanza, waiting for the send limiter.
func (c *Client) Encode(ctx context.Context, v interface{}) error {
	c.mu.RLock()
	enc := c.enc
	c.mu.RUnlock()
	if enc == nil {
		return ErrNotConnected
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return enc.Encode(ctx, v)
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// JID returns the bound address, the configured one before binding.
func (c *Client) JID() jid.JID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.connected {
		return c.local
	}
	return c.origin
}
