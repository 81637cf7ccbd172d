// Package signal is the peer side of the rendezvous service. It implements
// core.Signaling over a WebSocket and negotiates every transport with one
// offer and one answer.
package signal

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/dkeye/duet/internal/adapters/rtc"
	"github.com/dkeye/duet/internal/core"
	"github.com/dkeye/duet/internal/domain"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotConnected      = errors.New("not connected to rendezvous")
	ErrAlreadyRegistered = errors.New("already registered")
	ErrDestroyed         = errors.New("signaling destroyed")
	ErrRejected          = errors.New("offer rejected by peer")
	ErrUnexpectedReply   = errors.New("unexpected rendezvous reply")
)

type Config struct {
	URL         string
	DialTimeout time.Duration
	PingPeriod  time.Duration
	WriteWait   time.Duration
}

// closer is a transport this client negotiated.
type closer interface {
	Close()
}

type Client struct {
	cfg    Config
	api    *webrtc.API
	dialer *websocket.Dialer

	mu        sync.Mutex
	id        domain.PeerID
	rtcCfg    webrtc.Configuration
	link      *wsSignalConn
	destroyed bool
	pending   map[domain.ConnectionID]chan domain.Message
	conns     map[domain.ConnectionID]closer
	onCall    func(core.IncomingCall)
	onData    func(core.IncomingData)
}

func New(cfg Config, api *webrtc.API) *Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = 30 * time.Second
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 5 * time.Second
	}
	return &Client{
		cfg:     cfg,
		api:     api,
		dialer:  &websocket.Dialer{HandshakeTimeout: cfg.DialTimeout},
		pending: make(map[domain.ConnectionID]chan domain.Message),
		conns:   make(map[domain.ConnectionID]closer),
	}
}

// Register connects to the rendezvous service under id and waits for it to
// confirm the registration.
func (c *Client) Register(ctx context.Context, id domain.PeerID, opts core.Options) error {
	c.mu.Lock()
	switch {
	case c.destroyed:
		c.mu.Unlock()
		return ErrDestroyed
	case c.link != nil:
		c.mu.Unlock()
		return ErrAlreadyRegistered
	}
	c.mu.Unlock()

	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return fmt.Errorf("rendezvous url: %w", err)
	}
	q := u.Query()
	q.Set("id", id.String())
	u.RawQuery = q.Encode()

	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	defer cancel()
	ws, _, err := c.dialer.DialContext(dialCtx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial rendezvous: %w", err)
	}

	reply, err := c.readFirst(dialCtx, ws)
	if err != nil {
		_ = ws.Close()
		return err
	}
	switch reply.Type {
	case domain.MsgOpen:
	case domain.MsgIDTaken:
		_ = ws.Close()
		return core.ErrIDTaken
	default:
		_ = ws.Close()
		return fmt.Errorf("%w: %s", ErrUnexpectedReply, reply.Type)
	}

	link := newWSSignalConn(ws)
	c.mu.Lock()
	if c.destroyed || c.link != nil {
		c.mu.Unlock()
		_ = ws.Close()
		if c.destroyed {
			return ErrDestroyed
		}
		return ErrAlreadyRegistered
	}
	c.id = id
	c.rtcCfg = webrtc.Configuration{ICEServers: opts.ICEServers}
	c.link = link
	c.mu.Unlock()

	go c.writePump(link)
	go c.readPump(link)
	log.Info().Str("module", "signal").Str("peer", id.String()).Msg("registered")
	return nil
}

func (c *Client) readFirst(ctx context.Context, ws *websocket.Conn) (domain.Message, error) {
	var msg domain.Message
	if dl, ok := ctx.Deadline(); ok {
		_ = ws.SetReadDeadline(dl)
	}
	_, data, err := ws.ReadMessage()
	if err != nil {
		return msg, fmt.Errorf("await registration: %w", err)
	}
	_ = ws.SetReadDeadline(time.Time{})
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("await registration: %w", err)
	}
	return msg, nil
}

func (c *Client) OnIncomingCall(fn func(core.IncomingCall)) {
	c.mu.Lock()
	c.onCall = fn
	c.mu.Unlock()
}

func (c *Client) OnIncomingData(fn func(core.IncomingData)) {
	c.mu.Lock()
	c.onData = fn
	c.mu.Unlock()
}

// Call offers a media connection carrying local to remote.
func (c *Client) Call(ctx context.Context, remote domain.PeerID, local core.MediaStream, h core.MediaHandlers) (core.MediaConnection, error) {
	rtcCfg, err := c.config()
	if err != nil {
		return nil, err
	}
	id := domain.NewConnectionID(domain.KindMedia)
	m, err := rtc.NewMedia(c.api, rtcCfg, id, remote, h)
	if err != nil {
		return nil, err
	}
	if err := m.AddLocal(local); err != nil {
		m.Abort()
		return nil, err
	}
	if err := m.ReceiveMissing(); err != nil {
		m.Abort()
		return nil, err
	}
	if err := c.negotiate(ctx, m.Conn, domain.KindMedia, ""); err != nil {
		m.Abort()
		return nil, err
	}
	return m, nil
}

// ConnectData offers the ordered chat data channel to remote.
func (c *Client) ConnectData(ctx context.Context, remote domain.PeerID, h core.DataHandlers) (core.DataConnection, error) {
	rtcCfg, err := c.config()
	if err != nil {
		return nil, err
	}
	id := domain.NewConnectionID(domain.KindData)
	d, err := rtc.NewDataOffer(c.api, rtcCfg, id, remote, h)
	if err != nil {
		return nil, err
	}
	if err := c.negotiate(ctx, d.Conn, domain.KindData, rtc.ChatLabel); err != nil {
		d.Abort()
		return nil, err
	}
	return d, nil
}

func (c *Client) config() (webrtc.Configuration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		return webrtc.Configuration{}, ErrDestroyed
	}
	if c.link == nil {
		return webrtc.Configuration{}, ErrNotConnected
	}
	return c.rtcCfg, nil
}

// negotiate sends the offer of conn and applies the answer. The connection
// is tracked from then on, so a remote leave or Destroy closes it.
func (c *Client) negotiate(ctx context.Context, conn *rtc.Conn, kind domain.TransportKind, label string) error {
	sdp, err := conn.Offer(ctx)
	if err != nil {
		return err
	}

	reply := make(chan domain.Message, 1)
	c.mu.Lock()
	c.pending[conn.ID()] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, conn.ID())
		c.mu.Unlock()
	}()

	logger := log.With().Str("module", "signal").Str("remote", conn.Peer().String()).Str("conn_id", string(conn.ID())).Logger()
	logger.Info().Str("kind", string(kind)).Msg("sending offer")
	if err := c.send(domain.Message{
		Type:    domain.MsgOffer,
		Dst:     conn.Peer(),
		Payload: &domain.Payload{ConnectionID: conn.ID(), Kind: kind, SDP: sdp, Label: label},
	}); err != nil {
		return err
	}

	select {
	case msg := <-reply:
		switch msg.Type {
		case domain.MsgAnswer:
		case domain.MsgExpire:
			return core.ErrPeerUnavailable
		case domain.MsgLeave:
			return ErrRejected
		default:
			return ErrNotConnected
		}
		if err := conn.Accept(msg.Payload.SDP); err != nil {
			c.leave(conn.Peer(), conn.ID())
			return fmt.Errorf("apply answer: %w", err)
		}
	case <-ctx.Done():
		c.leave(conn.Peer(), conn.ID())
		return ctx.Err()
	}

	c.track(conn)
	logger.Info().Msg("answer applied")
	return nil
}

// track keeps conn until it closes. A local close tells the remote side.
func (c *Client) track(conn *rtc.Conn) {
	c.mu.Lock()
	c.conns[conn.ID()] = conn
	c.mu.Unlock()
	conn.OnClosed(func() {
		c.mu.Lock()
		_, owned := c.conns[conn.ID()]
		delete(c.conns, conn.ID())
		c.mu.Unlock()
		if owned {
			c.leave(conn.Peer(), conn.ID())
		}
	})
}

func (c *Client) leave(remote domain.PeerID, id domain.ConnectionID) {
	err := c.send(domain.Message{Type: domain.MsgLeave, Dst: remote, Payload: &domain.Payload{ConnectionID: id}})
	if err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("conn_id", string(id)).Msg("leave not sent")
	}
}

func (c *Client) send(msg domain.Message) error {
	c.mu.Lock()
	link := c.link
	c.mu.Unlock()
	if link == nil {
		return ErrNotConnected
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return link.TrySend(b)
}

// Disconnect leaves the rendezvous service. Negotiated connections stay up.
// Messages already queued are still written.
func (c *Client) Disconnect() {
	if c.dropLink(nil) {
		log.Info().Str("module", "signal").Str("peer", c.id.String()).Msg("disconnected")
	}
}

// dropLink detaches link, or the current link when nil, and fails every
// offer still waiting for an answer.
func (c *Client) dropLink(link *wsSignalConn) bool {
	c.mu.Lock()
	if c.link == nil || (link != nil && c.link != link) {
		c.mu.Unlock()
		return false
	}
	link = c.link
	c.link = nil
	pending := c.pending
	c.pending = make(map[domain.ConnectionID]chan domain.Message)
	c.mu.Unlock()

	link.Close()
	for _, ch := range pending {
		select {
		case ch <- domain.Message{Type: domain.MsgError, Error: ErrNotConnected.Error()}:
		default:
		}
	}
	return true
}

// Destroy closes every negotiated connection, then disconnects.
func (c *Client) Destroy() {
	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return
	}
	c.destroyed = true
	conns := make([]closer, 0, len(c.conns))
	for _, conn := range c.conns {
		conns = append(conns, conn)
	}
	c.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
	c.Disconnect()
	log.Info().Str("module", "signal").Str("peer", c.id.String()).Int("closed", len(conns)).Msg("destroyed")
}
